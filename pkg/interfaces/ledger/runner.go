package ledger

import (
	"context"

	// 仅引用类型，不引入实现
	types "github.com/veridium/ves/pkg/types"
)

// 账本执行核心抽象
//
// 设计目标：
// 1) 为上层（共识、RPC、工具）提供统一的交易执行入口；
// 2) 执行语义（写日志、沙箱、VP验证、原子提交）由 internal/core/ledger 实现；
// 3) 不依赖具体存储与引擎实现，避免循环依赖；
// 4) 便于通过 fx 进行装配与替换。
//
// 注意：本文件仅定义接口与类型，不包含任何实现。

// Runner 交易运行器
//
// 一次 ExecuteTx 走完完整生命周期：
// 解码 -> 沙箱执行交易代码 -> 聚合VP验证 -> 原子提交或整体丢弃。
// 同一运行器实例上的交易严格串行执行。
type Runner interface {
	// ExecuteTx 执行一笔交易并落盘（或拒绝）
	// rawTx 为RLP编码的交易封装字节；返回的结果总是非nil，
	// error 仅在宿主自身故障（存储不可用等）时非nil
	ExecuteTx(ctx context.Context, rawTx []byte, blockCtx types.BlockContext) (*types.TxResult, error)

	// DryRunTx 以只读方式执行一笔交易
	// 走完解码、执行与VP验证但从不提交，用于费用预估与调试
	DryRunTx(ctx context.Context, rawTx []byte, blockCtx types.BlockContext) (*types.TxResult, error)
}

// ModuleResolver 字节码引用解析器
//
// 交易封装以 CodeHash 引用已存储字节码时，
// 运行器通过解析器取回实际模块内容。
type ModuleResolver interface {
	// ResolveModule 按哈希取回字节码
	// 引用缺失时返回nil与nil错误，由调用方转化为解码故障
	ResolveModule(ctx context.Context, codeHash types.Hash) ([]byte, error)
}
