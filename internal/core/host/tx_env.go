package host

import (
	"context"
	"errors"

	"github.com/tetratelabs/wazero/api"

	"github.com/veridium/ves/internal/core/sandbox"
	"github.com/veridium/ves/internal/core/state"
	"github.com/veridium/ves/pkg/types"
)

// MaxEventsPerTx 单笔交易可发射的事件上限
const MaxEventsPerTx = 1024

// TxEnv 交易语境的宿主函数面
//
// 读写均落在本笔交易的write-log覆盖层；
// 事件与验证者登记同样限定在本次执行内。
type TxEnv struct {
	*Env

	view      *state.OverlayView
	verifiers *types.VerifierSet
	events    []types.Event
}

// NewTxEnv 创建交易执行环境
func NewTxEnv(p Params, view *state.OverlayView, verifiers *types.VerifierSet) *TxEnv {
	return &TxEnv{
		Env:       newEnv(p),
		view:      view,
		verifiers: verifiers,
	}
}

// Events 返回本次执行发射的事件（外部只读）
func (e *TxEnv) Events() []types.Event {
	return e.events
}

// View 返回本次执行的覆盖视图
func (e *TxEnv) View() *state.OverlayView {
	return e.view
}

// Verifiers 返回本次执行的验证者集合
func (e *TxEnv) Verifiers() *types.VerifierSet {
	return e.verifiers
}

// ==================== 状态读写 ====================

// hostRead 读取键的当前值（write-log优先于已提交存储）
//
// 返回暂存值的长度；键不存在返回 -1。
func (e *TxEnv) hostRead(ctx context.Context, mem api.Memory, keyPtr, keyLen uint32) int64 {
	e.charge(costBase)
	key := e.readGuestKey(mem, keyPtr, keyLen)

	value, err := e.view.Read(ctx, key)
	if err != nil {
		e.abortErr("读取状态失败", err)
	}
	if value == nil {
		return -1
	}
	e.charge(uint64(len(value)) * costReadPerByte)
	return int64(e.stageResult(value))
}

// hostHasKey 存在性检查（同 read 的优先级规则）
func (e *TxEnv) hostHasKey(ctx context.Context, mem api.Memory, keyPtr, keyLen uint32) uint32 {
	e.charge(costBase)
	key := e.readGuestKey(mem, keyPtr, keyLen)

	exists, err := e.view.Has(ctx, key)
	if err != nil {
		e.abortErr("查询状态失败", err)
	}
	if exists {
		return 1
	}
	return 0
}

// hostWrite 在write-log插入写入条目
func (e *TxEnv) hostWrite(mem api.Memory, keyPtr, keyLen, valPtr, valLen uint32) {
	e.charge(costBase + uint64(keyLen+valLen)*costWritePerByte)
	key := e.readGuestKey(mem, keyPtr, keyLen)
	value := e.readGuest(mem, valPtr, valLen)

	if err := e.view.Log().Write(key, value); err != nil {
		e.abort(sandbox.Faultf(types.ErrKindTrap, "写入 %s 被拒绝: %v", key, err))
	}
}

// hostDelete 在write-log插入删除条目
//
// VP存储键不可删除：账户必须始终持有其验证谓词。
func (e *TxEnv) hostDelete(mem api.Memory, keyPtr, keyLen uint32) {
	e.charge(costBase + uint64(keyLen)*costWritePerByte)
	key := e.readGuestKey(mem, keyPtr, keyLen)

	if err := e.view.Log().Delete(key); err != nil {
		if errors.Is(err, state.ErrVpDeleteForbidden) {
			e.abort(sandbox.Faultf(types.ErrKindTrap, "不允许删除验证谓词存储: %s", key))
		}
		e.abortErr("删除状态失败", err)
	}
}

// hostIterPrefix 创建覆盖层合并迭代器，返回句柄
func (e *TxEnv) hostIterPrefix(ctx context.Context, mem api.Memory, prefixPtr, prefixLen uint32) uint32 {
	e.charge(costBase)
	prefix := e.readGuestKey(mem, prefixPtr, prefixLen)

	it, err := e.view.IteratePrefix(ctx, prefix)
	if err != nil {
		e.abortErr("创建前缀迭代器失败", err)
	}
	return e.registerIter(it)
}

// ==================== 账户与验证者 ====================

// hostInsertVerifier 将地址加入验证者集合
func (e *TxEnv) hostInsertVerifier(mem api.Memory, addrPtr, addrLen uint32) {
	e.charge(costBase)
	addr := e.readGuestAddress(mem, addrPtr, addrLen)
	e.verifiers.Insert(addr)
}

// hostInitAccount 初始化新账户并写入其验证谓词
func (e *TxEnv) hostInitAccount(mem api.Memory, addrPtr, addrLen, codePtr, codeLen uint32) {
	e.charge(costBase + uint64(codeLen)*costWritePerByte)
	addr := e.readGuestAddress(mem, addrPtr, addrLen)
	code := e.readGuest(mem, codePtr, codeLen)

	if err := e.view.Log().InitAccount(addr, code); err != nil {
		e.abort(sandbox.Faultf(types.ErrKindTrap, "初始化账户 %s 失败: %v", addr, err))
	}
}

// ==================== 事件 ====================

// hostEmitEvent 追加结构化事件到交易事件日志
//
// 载荷为RLP编码的 types.Event；事件数量有硬上限。
func (e *TxEnv) hostEmitEvent(mem api.Memory, evPtr, evLen uint32) {
	e.charge(costBase + uint64(evLen)*costEventPerByte)
	raw := e.readGuest(mem, evPtr, evLen)

	event, err := types.DecodeEvent(raw)
	if err != nil {
		e.abort(sandbox.Faultf(types.ErrKindTrap, "非法事件编码: %v", err))
	}
	if err := event.Validate(); err != nil {
		e.abort(sandbox.Faultf(types.ErrKindTrap, "非法事件: %v", err))
	}
	e.RecordEvent(*event)
}

// RecordEvent 追加一条已校验的事件（达到上限按资源超限故障中止）
func (e *TxEnv) RecordEvent(ev types.Event) {
	if len(e.events) >= MaxEventsPerTx {
		e.abort(sandbox.Faultf(types.ErrKindResourceExceeded,
			"事件数量超限: 上限 %d", MaxEventsPerTx))
	}
	e.events = append(e.events, ev)
}

// ==================== 函数注册表 ====================

// HostFunctions 返回交易语境的 env 模块函数映射
//
// VP专属函数注册为禁用桩：交易模块调用它们按语境禁用故障处理。
func (e *TxEnv) HostFunctions() map[string]interface{} {
	return map[string]interface{}{
		// 状态访问
		"read": func(ctx context.Context, m api.Module, keyPtr, keyLen uint32) int64 {
			return e.hostRead(ctx, m.Memory(), keyPtr, keyLen)
		},
		"has_key": func(ctx context.Context, m api.Module, keyPtr, keyLen uint32) uint32 {
			return e.hostHasKey(ctx, m.Memory(), keyPtr, keyLen)
		},
		"write": func(ctx context.Context, m api.Module, keyPtr, keyLen, valPtr, valLen uint32) {
			e.hostWrite(m.Memory(), keyPtr, keyLen, valPtr, valLen)
		},
		"delete": func(ctx context.Context, m api.Module, keyPtr, keyLen uint32) {
			e.hostDelete(m.Memory(), keyPtr, keyLen)
		},
		"iter_prefix": func(ctx context.Context, m api.Module, prefixPtr, prefixLen uint32) uint32 {
			return e.hostIterPrefix(ctx, m.Memory(), prefixPtr, prefixLen)
		},
		"iter_next": func(ctx context.Context, m api.Module, handle uint32) int64 {
			return e.hostIterNext(handle)
		},

		// 账户与验证者
		"insert_verifier": func(ctx context.Context, m api.Module, addrPtr, addrLen uint32) {
			e.hostInsertVerifier(m.Memory(), addrPtr, addrLen)
		},
		"init_account": func(ctx context.Context, m api.Module, addrPtr, addrLen, codePtr, codeLen uint32) {
			e.hostInitAccount(m.Memory(), addrPtr, addrLen, codePtr, codeLen)
		},

		// 事件
		"emit_event": func(ctx context.Context, m api.Module, evPtr, evLen uint32) {
			e.hostEmitEvent(m.Memory(), evPtr, evLen)
		},

		// 链上元数据
		"get_chain_id": func(ctx context.Context, m api.Module) uint32 {
			return e.hostChainID()
		},
		"get_block_height": func(ctx context.Context, m api.Module) uint64 {
			return e.hostBlockHeight()
		},
		"get_block_time": func(ctx context.Context, m api.Module) int64 {
			return e.hostBlockTime()
		},

		// 结果缓冲协议
		"result_len": func(ctx context.Context, m api.Module) uint32 {
			return e.hostResultLen()
		},
		"result_fetch": func(ctx context.Context, m api.Module, dstPtr, dstCap uint32) uint32 {
			return e.hostResultFetch(m.Memory(), dstPtr, dstCap)
		},

		// 调试日志
		"log_string": func(ctx context.Context, m api.Module, ptr, length uint32) {
			e.hostLogString(m.Memory(), ptr, length)
		},

		// VP专属函数在交易语境注册为禁用桩
		"read_pre": func(ctx context.Context, m api.Module, keyPtr, keyLen uint32) int64 {
			e.forbidden("read_pre", "交易")
			return -1
		},
		"read_post": func(ctx context.Context, m api.Module, keyPtr, keyLen uint32) int64 {
			e.forbidden("read_post", "交易")
			return -1
		},
		"has_key_pre": func(ctx context.Context, m api.Module, keyPtr, keyLen uint32) uint32 {
			e.forbidden("has_key_pre", "交易")
			return 0
		},
		"has_key_post": func(ctx context.Context, m api.Module, keyPtr, keyLen uint32) uint32 {
			e.forbidden("has_key_post", "交易")
			return 0
		},
		"iter_prefix_pre": func(ctx context.Context, m api.Module, prefixPtr, prefixLen uint32) uint32 {
			e.forbidden("iter_prefix_pre", "交易")
			return 0
		},
		"iter_prefix_post": func(ctx context.Context, m api.Module, prefixPtr, prefixLen uint32) uint32 {
			e.forbidden("iter_prefix_post", "交易")
			return 0
		},
		"eval": func(ctx context.Context, m api.Module, addrPtr, addrLen, inputPtr, inputLen uint32) uint32 {
			e.forbidden("eval", "交易")
			return 0
		},
	}
}
