package event

// EventOptions 事件系统配置选项
// 专注于基础设施核心功能的简化配置
type EventOptions struct {
	// === 基础配置 ===
	Enabled bool `json:"enabled"` // 是否启用事件系统

	// === 基础限制 ===
	MaxSubscribers int `json:"max_subscribers"` // 最大订阅者数量（0为不限制）
}

// Config 事件配置实现
type Config struct {
	options *EventOptions
}

// New 创建事件配置实现
func New(userConfig interface{}) *Config {
	defaultOptions := createDefaultEventOptions()

	// 如果有用户配置，应用用户配置覆盖默认值
	if userConfig != nil {
		applyUserEventConfig(defaultOptions, userConfig)
	}

	return &Config{
		options: defaultOptions,
	}
}

// NewFromProvider 从配置提供者创建事件配置
func NewFromProvider(provider interface{}) *Config {
	if provider != nil {
		if p, ok := provider.(interface {
			GetEvent() *EventOptions
		}); ok {
			if options := p.GetEvent(); options != nil {
				return &Config{options: options}
			}
		}
	}
	// 回退到默认配置
	return New(nil)
}

// createDefaultEventOptions 创建默认事件配置
func createDefaultEventOptions() *EventOptions {
	return &EventOptions{
		Enabled:        defaultEnabled,
		MaxSubscribers: defaultMaxSubscribers,
	}
}

// applyUserEventConfig 应用用户配置覆盖默认值
func applyUserEventConfig(options *EventOptions, userConfig interface{}) {
	if cfg, ok := userConfig.(*EventOptions); ok && cfg != nil {
		*options = *cfg
	}
}

// GetOptions 获取完整的事件配置选项
func (c *Config) GetOptions() *EventOptions {
	return c.options
}

// === 基础配置访问方法 ===

// IsEnabled 是否启用事件系统
func (c *Config) IsEnabled() bool {
	return c.options.Enabled
}

// GetMaxSubscribers 获取最大订阅者数量
func (c *Config) GetMaxSubscribers() int {
	return c.options.MaxSubscribers
}
