package sandbox

import (
	"time"

	configtypes "github.com/veridium/ves/pkg/types"
)

// SandboxOptions 沙箱引擎配置选项
// 专注于宿主自保护与编译行为的简化配置
type SandboxOptions struct {
	// === 编译配置 ===
	CompilationMode string `json:"compilation_mode"` // 编译模式 (compiler, interpreter)

	// === 自保护配置 ===
	ExecutionTimeoutSeconds int    `json:"execution_timeout_seconds"` // 单次调用墙钟上限（秒）
	MaxGuestIOBytes         uint32 `json:"max_guest_io_bytes"`        // 单次客体IO字节上限
}

// Config 沙箱引擎配置实现
type Config struct {
	options *SandboxOptions
}

// New 创建沙箱引擎配置实现
func New(userConfig interface{}) *Config {
	// 1. 先创建完整的默认配置
	defaultOptions := createDefaultSandboxOptions()

	// 2. 如果有用户配置，应用用户配置覆盖默认值
	if userConfig != nil {
		applyUserSandboxConfig(defaultOptions, userConfig)
	}

	return &Config{
		options: defaultOptions,
	}
}

// NewFromProvider 从配置提供者创建沙箱引擎配置
func NewFromProvider(provider interface{}) *Config {
	// 类型断言获取配置提供者
	if p, ok := provider.(interface{ GetSandbox() *SandboxOptions }); ok {
		// 直接使用配置提供者返回的SandboxOptions
		return &Config{
			options: p.GetSandbox(),
		}
	}

	// 如果类型断言失败，回退到默认配置
	return New(nil)
}

// createDefaultSandboxOptions 创建默认沙箱配置
func createDefaultSandboxOptions() *SandboxOptions {
	return &SandboxOptions{
		CompilationMode:         defaultCompilationMode,
		ExecutionTimeoutSeconds: defaultExecutionTimeoutSeconds,
		MaxGuestIOBytes:         defaultMaxGuestIOBytes,
	}
}

// applyUserSandboxConfig 应用用户沙箱配置覆盖默认值
func applyUserSandboxConfig(options *SandboxOptions, userConfig interface{}) {
	if sandboxConfig, ok := userConfig.(*configtypes.UserSandboxConfig); ok && sandboxConfig != nil {
		if sandboxConfig.CompilationMode != nil {
			options.CompilationMode = *sandboxConfig.CompilationMode
		}
		if sandboxConfig.ExecutionTimeoutSeconds != nil {
			options.ExecutionTimeoutSeconds = *sandboxConfig.ExecutionTimeoutSeconds
		}
		if sandboxConfig.MaxGuestIOBytes != nil {
			options.MaxGuestIOBytes = *sandboxConfig.MaxGuestIOBytes
		}
	}
}

// GetOptions 获取完整的沙箱配置选项
func (c *Config) GetOptions() *SandboxOptions {
	return c.options
}

// UseCompiler 是否使用编译器模式
func (c *Config) UseCompiler() bool {
	return c.options.CompilationMode != "interpreter"
}

// GetExecutionTimeout 获取单次调用墙钟上限
// 返回0表示不启用墙钟保护
func (c *Config) GetExecutionTimeout() time.Duration {
	if c.options.ExecutionTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(c.options.ExecutionTimeoutSeconds) * time.Second
}

// GetMaxGuestIOBytes 获取单次客体IO字节上限
func (c *Config) GetMaxGuestIOBytes() uint32 {
	return c.options.MaxGuestIOBytes
}
