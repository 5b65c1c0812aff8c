package types

import "fmt"

// VerdictCode 验证谓词裁决码
type VerdictCode uint8

const (
	// VerdictAccept 接受：VP认可本次状态变更
	VerdictAccept VerdictCode = iota

	// VerdictReject 拒绝：VP明确否决本次状态变更
	VerdictReject

	// VerdictError 错误：VP执行本身失败（trap、资源超限、模块缺失等）
	// 对交易级结果而言与拒绝等价，但保留结构化原因用于观测
	VerdictError
)

// String 返回裁决码的可读形式
func (c VerdictCode) String() string {
	switch c {
	case VerdictAccept:
		return "accept"
	case VerdictReject:
		return "reject"
	case VerdictError:
		return "error"
	default:
		return fmt.Sprintf("verdict(%d)", uint8(c))
	}
}

// Verdict 验证谓词的三态裁决结果
//
// 交易级裁决是所有必需地址VP裁决的逻辑与：
// 任意一个 Reject 或 Error 都使整笔交易被拒绝。
type Verdict struct {
	// Code 裁决码
	Code VerdictCode

	// Address 产生该裁决的VP地址（聚合裁决为空）
	Address Address

	// Kind 错误类别（仅 VerdictError 时有效）
	Kind ErrKind

	// Detail 人类可读的原因描述
	Detail string
}

// Accept 构造接受裁决
func Accept() Verdict {
	return Verdict{Code: VerdictAccept}
}

// Reject 构造拒绝裁决
func Reject(addr Address, detail string) Verdict {
	return Verdict{Code: VerdictReject, Address: addr, Detail: detail}
}

// VerdictErr 构造错误裁决
func VerdictErr(addr Address, kind ErrKind, detail string) Verdict {
	return Verdict{Code: VerdictError, Address: addr, Kind: kind, Detail: detail}
}

// IsAccept 判断是否为接受裁决
func (v Verdict) IsAccept() bool {
	return v.Code == VerdictAccept
}

// String 返回裁决的可读形式
func (v Verdict) String() string {
	switch v.Code {
	case VerdictAccept:
		return "accept"
	case VerdictReject:
		if v.Address != "" {
			return fmt.Sprintf("reject(%s: %s)", v.Address, v.Detail)
		}
		return fmt.Sprintf("reject(%s)", v.Detail)
	default:
		return fmt.Sprintf("error(%s: %s: %s)", v.Address, v.Kind, v.Detail)
	}
}
