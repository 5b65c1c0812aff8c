package types

import (
	"errors"
	"fmt"
)

// ==================== 资源限额 ====================

const (
	// DefaultMaxGas 默认单次执行燃料预算
	DefaultMaxGas uint64 = 10_000_000

	// DefaultMaxMemoryPages 默认客体线性内存页数上限（64KiB/页）
	DefaultMaxMemoryPages uint32 = 256

	// HardMaxMemoryPages 线性内存页数硬上限（wasm32地址空间）
	HardMaxMemoryPages uint32 = 65536

	// DefaultMaxEvalDepth 默认嵌套求值深度上限
	DefaultMaxEvalDepth uint32 = 8

	// HardMaxEvalDepth 嵌套求值深度硬上限
	HardMaxEvalDepth uint32 = 32
)

// ExecLimits 单次沙箱执行的强制资源限额
//
// ⚠️ 限额不是可选项：引擎拒绝在缺失限额的情况下执行任何客体代码。
type ExecLimits struct {
	// MaxGas 燃料预算（宿主函数边界计费）
	MaxGas uint64

	// MaxMemoryPages 客体线性内存页数上限
	MaxMemoryPages uint32
}

// DefaultExecLimits 返回默认限额
func DefaultExecLimits() ExecLimits {
	return ExecLimits{
		MaxGas:         DefaultMaxGas,
		MaxMemoryPages: DefaultMaxMemoryPages,
	}
}

// Validate 校验限额的完备性
func (l ExecLimits) Validate() error {
	if l.MaxGas == 0 {
		return errors.New("gas limit must be positive")
	}
	if l.MaxMemoryPages == 0 {
		return errors.New("memory page limit must be positive")
	}
	if l.MaxMemoryPages > HardMaxMemoryPages {
		return fmt.Errorf("内存页数上限超过硬上限: %d > %d", l.MaxMemoryPages, HardMaxMemoryPages)
	}
	return nil
}

// WithGas 返回替换燃料预算后的副本
func (l ExecLimits) WithGas(maxGas uint64) ExecLimits {
	l.MaxGas = maxGas
	return l
}
