// Package sandbox 实现VES的客体代码沙箱执行引擎
//
// 🏗️ **沙箱执行引擎 (Sandbox Execution Engine)**
//
// 本包基于 github.com/tetratelabs/wazero 实现不可信字节码的受控执行：
// - Engine：模块解码、宿主函数装配、入口调用与结果裁剪
// - Fault：结构化执行故障（解码/陷阱/越界/资源/返回值）
// - GasMeter：宿主函数边界的燃料计费
// - 客体内存访问的边界检查读写
//
// ⚠️ **核心不变量**
// - 任何执行都必须携带燃料与内存页限额，缺失限额直接拒绝执行
// - 客体故障永不逃逸为宿主panic，统一折叠为Fault返回
// - 每次调用使用独立的运行时实例，模块间零共享状态
package sandbox

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tetratelabs/wazero/sys"

	"github.com/veridium/ves/pkg/types"
)

// Fault 沙箱执行故障
//
// 区分客体引发的确定性故障与宿主内部错误：
// 前者作为交易/VP的拒绝原因，后者中止整个执行流程。
type Fault struct {
	// Kind 故障类别
	Kind types.ErrKind

	// Detail 人类可读描述
	Detail string

	wrapped error
}

// NewFault 构造故障
func NewFault(kind types.ErrKind, detail string) *Fault {
	return &Fault{Kind: kind, Detail: detail}
}

// Faultf 构造带格式化描述的故障
func Faultf(kind types.ErrKind, format string, args ...interface{}) *Fault {
	return &Fault{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}

// WrapFault 构造包裹底层错误的故障
func WrapFault(kind types.ErrKind, detail string, err error) *Fault {
	return &Fault{Kind: kind, Detail: detail, wrapped: err}
}

// Error 实现error接口
func (f *Fault) Error() string {
	if f.wrapped != nil {
		return fmt.Sprintf("%s: %s: %v", f.Kind, f.Detail, f.wrapped)
	}
	return fmt.Sprintf("%s: %s", f.Kind, f.Detail)
}

// Unwrap 返回底层错误
func (f *Fault) Unwrap() error {
	return f.wrapped
}

// AsFault 从错误链中提取故障
func AsFault(err error) (*Fault, bool) {
	var fault *Fault
	if errors.As(err, &fault) {
		return fault, true
	}
	return nil, false
}

// classifyGuestError 将wazero执行错误折叠为结构化故障
//
// wazero对客体陷阱只暴露文本化的运行时错误，
// 此处按已知错误形态分类；未识别的错误一律按陷阱处理。
func classifyGuestError(err error) *Fault {
	if fault, ok := AsFault(err); ok {
		return fault
	}

	// 墙钟超时：宿主自保护触发
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return WrapFault(types.ErrKindResourceExceeded, "execution wall clock exceeded", err)
	}

	// 客体主动退出（如panic展开后的exit）
	var exitErr *sys.ExitError
	if errors.As(err, &exitErr) {
		return Faultf(types.ErrKindTrap, "guest exited with code %d", exitErr.ExitCode())
	}

	msg := err.Error()
	switch {
	case strings.Contains(msg, "out of bounds memory access"):
		return WrapFault(types.ErrKindInvalidMemory, "guest memory access out of bounds", err)
	case strings.Contains(msg, "stack overflow"):
		return WrapFault(types.ErrKindResourceExceeded, "guest call stack exhausted", err)
	case strings.Contains(msg, "module closed with context"):
		return WrapFault(types.ErrKindResourceExceeded, "execution wall clock exceeded", err)
	case strings.Contains(msg, "over limit"):
		return WrapFault(types.ErrKindResourceExceeded, "guest memory declaration exceeds page limit", err)
	case strings.Contains(msg, "not exported in module"), strings.Contains(msg, "not instantiated"):
		return WrapFault(types.ErrKindDecode, "module imports unavailable host function", err)
	default:
		return WrapFault(types.ErrKindTrap, "guest trapped", err)
	}
}

// classifyCompileError 区分解码失败与内存声明超限
//
// 内存页限额在编译期校验，超限模块在CompileModule即报错，
// 语义上仍属于资源限额故障而非字节码损坏。
func classifyCompileError(err error) *Fault {
	if strings.Contains(err.Error(), "over limit") {
		return WrapFault(types.ErrKindResourceExceeded, "guest memory declaration exceeds page limit", err)
	}
	return WrapFault(types.ErrKindDecode, "module decode failed", err)
}
