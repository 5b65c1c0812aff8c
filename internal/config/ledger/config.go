package ledger

import (
	configtypes "github.com/veridium/ves/pkg/types"
)

// LedgerOptions 账本执行配置选项
// 安全上限与VP并行度；单次执行的具体限额由外部调用方按笔提供
type LedgerOptions struct {
	// === 资源上限 ===
	MaxGas         uint64 `json:"max_gas"`          // 单笔交易燃气上限（安全上限）
	MaxMemoryPages uint32 `json:"max_memory_pages"` // 客体线性内存页数上限
	MaxEvalDepth   uint32 `json:"max_eval_depth"`   // 嵌套VP评估深度上限

	// === VP评估配置 ===
	VpWorkers int `json:"vp_workers"`  // 并行VP评估的工作协程数
	VpCacheMB int `json:"vp_cache_mb"` // VP字节码缓存容量（MB）
}

// Config 账本执行配置实现
type Config struct {
	options *LedgerOptions
}

// New 创建账本执行配置实现
func New(userConfig interface{}) *Config {
	// 1. 先创建完整的默认配置
	defaultOptions := createDefaultLedgerOptions()

	// 2. 如果有用户配置，应用用户配置覆盖默认值
	if userConfig != nil {
		applyUserLedgerConfig(defaultOptions, userConfig)
	}

	return &Config{
		options: defaultOptions,
	}
}

// NewFromProvider 从配置提供者创建账本执行配置
func NewFromProvider(provider interface{}) *Config {
	// 类型断言获取配置提供者
	if p, ok := provider.(interface{ GetLedger() *LedgerOptions }); ok {
		// 直接使用配置提供者返回的LedgerOptions
		return &Config{
			options: p.GetLedger(),
		}
	}

	// 如果类型断言失败，回退到默认配置
	return New(nil)
}

// createDefaultLedgerOptions 创建默认账本配置
func createDefaultLedgerOptions() *LedgerOptions {
	return &LedgerOptions{
		MaxGas:         defaultMaxGas,
		MaxMemoryPages: defaultMaxMemoryPages,
		MaxEvalDepth:   defaultMaxEvalDepth,
		VpWorkers:      defaultVpWorkers,
		VpCacheMB:      defaultVpCacheMB,
	}
}

// applyUserLedgerConfig 应用用户账本配置覆盖默认值
func applyUserLedgerConfig(options *LedgerOptions, userConfig interface{}) {
	if ledgerConfig, ok := userConfig.(*configtypes.UserLedgerConfig); ok && ledgerConfig != nil {
		if ledgerConfig.MaxGas != nil {
			options.MaxGas = *ledgerConfig.MaxGas
		}
		if ledgerConfig.MaxMemoryPages != nil {
			options.MaxMemoryPages = *ledgerConfig.MaxMemoryPages
		}
		if ledgerConfig.MaxEvalDepth != nil {
			options.MaxEvalDepth = *ledgerConfig.MaxEvalDepth
		}
		if ledgerConfig.VpWorkers != nil {
			options.VpWorkers = *ledgerConfig.VpWorkers
		}
		if ledgerConfig.VpCacheMB != nil {
			options.VpCacheMB = *ledgerConfig.VpCacheMB
		}
	}
}

// GetOptions 获取完整的账本配置选项
func (c *Config) GetOptions() *LedgerOptions {
	return c.options
}

// GetMaxGas 获取单笔交易燃气上限
func (c *Config) GetMaxGas() uint64 {
	return c.options.MaxGas
}

// GetMaxMemoryPages 获取客体内存页数上限
// 超过硬上限时回落到硬上限，保证宿主自保护
func (c *Config) GetMaxMemoryPages() uint32 {
	if c.options.MaxMemoryPages == 0 || c.options.MaxMemoryPages > configtypes.HardMaxMemoryPages {
		return configtypes.HardMaxMemoryPages
	}
	return c.options.MaxMemoryPages
}

// GetMaxEvalDepth 获取嵌套VP评估深度上限
func (c *Config) GetMaxEvalDepth() uint32 {
	if c.options.MaxEvalDepth == 0 || c.options.MaxEvalDepth > configtypes.HardMaxEvalDepth {
		return configtypes.HardMaxEvalDepth
	}
	return c.options.MaxEvalDepth
}

// GetVpWorkers 获取并行VP评估的工作协程数
func (c *Config) GetVpWorkers() int {
	if c.options.VpWorkers <= 0 {
		return 1
	}
	return c.options.VpWorkers
}

// GetVpCacheMB 获取VP字节码缓存容量
func (c *Config) GetVpCacheMB() int {
	return c.options.VpCacheMB
}
