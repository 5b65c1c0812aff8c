package types

import (
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"
	"lukechampine.com/blake3"
)

// ==================== 哈希 ====================

// HashLen 交易哈希长度（字节）
const HashLen = 32

// Hash 交易哈希（BLAKE3-256）
type Hash [HashLen]byte

// HashBytes 计算字节串的BLAKE3哈希
func HashBytes(data []byte) Hash {
	return Hash(blake3.Sum256(data))
}

// Hex 返回十六进制表示
func (h Hash) Hex() string {
	return hex.EncodeToString(h[:])
}

// String 返回截断的可读形式（日志友好）
func (h Hash) String() string {
	full := h.Hex()
	return full[:8] + ".." + full[len(full)-4:]
}

// IsZero 判断是否为零哈希
func (h Hash) IsZero() bool {
	return h == Hash{}
}

// ==================== 交易封装 ====================

// MinGasLimit 交易允许声明的最小燃料上限
// 低于该值的交易在解码阶段即被拒绝
const MinGasLimit uint64 = 100

// TxEnvelope 交易封装
//
// 🎯 核心职责：
// 携带一笔交易执行所需的全部输入：交易代码（内联字节码或已存码的哈希引用）、
// 不透明数据负载、以及费用声明。Code 与 CodeHash 恰好填写其一。
//
// 编码采用RLP；Memo/GasPayer/GasLimit 为可选尾部字段，
// 旧版编码缺省时按零值解码。
type TxEnvelope struct {
	// Code 内联交易字节码（与 CodeHash 互斥）
	Code []byte

	// CodeHash 已存储字节码的哈希引用（与 Code 互斥）
	CodeHash []byte

	// Data 不透明数据负载，原样传递给交易入口
	Data []byte

	// Memo 备注（可选，不参与执行）
	Memo []byte `rlp:"optional"`

	// GasPayer 费用支付方地址（可选）
	GasPayer Address `rlp:"optional"`

	// GasLimit 交易声明的燃料上限（可选，0 表示使用链级默认）
	GasLimit uint64 `rlp:"optional"`
}

// DecodeTxEnvelope 从RLP字节解码交易封装
func DecodeTxEnvelope(raw []byte) (*TxEnvelope, error) {
	if len(raw) == 0 {
		return nil, errors.New("empty transaction bytes")
	}
	var env TxEnvelope
	if err := rlp.DecodeBytes(raw, &env); err != nil {
		return nil, fmt.Errorf("交易RLP解码失败: %w", err)
	}
	if err := env.Validate(); err != nil {
		return nil, err
	}
	return &env, nil
}

// Encode 编码为RLP字节
func (e *TxEnvelope) Encode() ([]byte, error) {
	return rlp.EncodeToBytes(e)
}

// Validate 校验封装的结构完整性
func (e *TxEnvelope) Validate() error {
	hasCode := len(e.Code) > 0
	hasRef := len(e.CodeHash) > 0
	if hasCode == hasRef {
		return errors.New("transaction must carry exactly one of code or code hash")
	}
	if hasRef && len(e.CodeHash) != HashLen {
		return fmt.Errorf("代码哈希长度非法: 期望%d字节, 实际%d字节", HashLen, len(e.CodeHash))
	}
	if e.GasPayer != "" {
		if _, err := ParseAddress(string(e.GasPayer)); err != nil {
			return fmt.Errorf("费用支付方地址非法: %w", err)
		}
	}
	if e.GasLimit != 0 && e.GasLimit < MinGasLimit {
		return fmt.Errorf("燃料上限低于下限: %d < %d", e.GasLimit, MinGasLimit)
	}
	return nil
}

// ==================== 执行结果 ====================

// TxStatus 交易终态
type TxStatus uint8

const (
	// TxCommitted 已提交：交易副作用已原子落盘
	TxCommitted TxStatus = iota

	// TxRejected 已拒绝：交易副作用被整体丢弃
	TxRejected
)

// String 返回终态的可读形式
func (s TxStatus) String() string {
	switch s {
	case TxCommitted:
		return "committed"
	case TxRejected:
		return "rejected"
	default:
		return fmt.Sprintf("status(%d)", uint8(s))
	}
}

// ErrKind 执行故障类别
//
// 故障类别在拒绝原因中机器可读地暴露，
// 便于上层区分确定性拒绝与资源类拒绝。
type ErrKind string

const (
	// ErrKindDecode 交易封装解码失败
	ErrKindDecode ErrKind = "decode"

	// ErrKindTrap 客体代码陷入不可恢复陷阱
	ErrKindTrap ErrKind = "trap"

	// ErrKindInvalidMemory 客体越界访问线性内存
	ErrKindInvalidMemory ErrKind = "invalid_memory_access"

	// ErrKindResourceExceeded 燃料或内存预算耗尽
	ErrKindResourceExceeded ErrKind = "resource_exceeded"

	// ErrKindRecursionLimit 嵌套求值深度超限
	ErrKindRecursionLimit ErrKind = "recursion_limit"

	// ErrKindMissingVpModule 必需地址缺少VP模块
	ErrKindMissingVpModule ErrKind = "missing_vp_module"

	// ErrKindInvalidReturn 客体入口返回值形状非法
	ErrKindInvalidReturn ErrKind = "invalid_return"

	// ErrKindInternal 宿主内部错误（存储故障等）
	ErrKindInternal ErrKind = "internal"
)

// RejectReason 拒绝原因
type RejectReason struct {
	// Kind 故障类别；VP明确否决时为空
	Kind ErrKind

	// Address 关联的VP地址（交易代码故障为空）
	Address Address

	// Detail 人类可读描述
	Detail string
}

// String 返回拒绝原因的可读形式
func (r RejectReason) String() string {
	switch {
	case r.Kind == "" && r.Address == "":
		return r.Detail
	case r.Kind == "":
		return fmt.Sprintf("vp rejected: %s", r.Address)
	case r.Address != "":
		return fmt.Sprintf("%s (vp %s): %s", r.Kind, r.Address, r.Detail)
	default:
		return fmt.Sprintf("%s: %s", r.Kind, r.Detail)
	}
}

// TxResult 交易执行结果
type TxResult struct {
	// TxHash 交易封装字节的哈希
	TxHash Hash

	// Status 终态
	Status TxStatus

	// Reason 拒绝原因（仅 TxRejected 时有效）
	Reason *RejectReason

	// Verdicts 各必需地址的VP裁决（按地址有序）
	Verdicts []Verdict

	// Events 交易发出的事件（仅提交时非空）
	Events []Event

	// ChangedKeys 本次交易触达的键（规范序）
	ChangedKeys []Key

	// InitializedAccounts 本次交易初始化的账户地址
	InitializedAccounts []Address

	// GasUsed 实际消耗的燃料（交易执行与VP验证的合计）
	GasUsed uint64
}

// IsCommitted 判断交易是否提交
func (r *TxResult) IsCommitted() bool {
	return r.Status == TxCommitted
}
