package app

import (
	"github.com/veridium/ves/pkg/interfaces/config"
	"github.com/veridium/ves/pkg/types"
)

// Option 应用程序选项函数类型
type Option func(*options)

// options 应用程序选项
// 实现config.AppOptions接口
type options struct {
	// 配置文件路径
	configFilePath string

	// 命令行级覆盖配置（优先级高于配置文件）
	overrides *types.AppConfig

	// 最终生效的用户配置（Start时由文件配置与覆盖配置合成）
	appConfig *types.AppConfig
}

// 编译时校验options是否实现了config.AppOptions接口
var _ config.AppOptions = (*options)(nil)

// WithConfigFile 设置配置文件路径
func WithConfigFile(configPath string) Option {
	return func(o *options) {
		o.configFilePath = configPath
	}
}

// WithAppConfig 直接注入用户配置
// 非nil的顶层字段覆盖配置文件中的同名部分，用于命令行标志与测试
func WithAppConfig(appConfig *types.AppConfig) Option {
	return func(o *options) {
		if appConfig != nil {
			o.overrides = appConfig
		}
	}
}

// WithDataDir 设置数据根目录
func WithDataDir(dataDir string) Option {
	return func(o *options) {
		if dataDir == "" {
			return
		}
		o.ensureOverrides().DataDir = types.StringPtr(dataDir)
	}
}

// WithChainID 设置链标识
func WithChainID(chainID string) Option {
	return func(o *options) {
		if chainID == "" {
			return
		}
		o.ensureOverrides().Chain = &types.UserChainConfig{
			ChainID: types.StringPtr(chainID),
		}
	}
}

// ensureOverrides 惰性创建覆盖配置
func (o *options) ensureOverrides() *types.AppConfig {
	if o.overrides == nil {
		o.overrides = &types.AppConfig{}
	}
	return o.overrides
}

// newOptions 创建选项
func newOptions(opts ...Option) *options {
	options := &options{
		appConfig: &types.AppConfig{},
	}

	for _, opt := range opts {
		opt(options)
	}

	return options
}

// GetAppConfig 返回应用程序配置
// 实现config.AppOptions接口
func (o *options) GetAppConfig() *types.AppConfig {
	return o.appConfig
}
