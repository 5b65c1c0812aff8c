package config

import (
	"strings"

	eventconfig "github.com/veridium/ves/internal/config/event"
	ledgerconfig "github.com/veridium/ves/internal/config/ledger"
	logconfig "github.com/veridium/ves/internal/config/log"
	sandboxconfig "github.com/veridium/ves/internal/config/sandbox"
	badgerconfig "github.com/veridium/ves/internal/config/storage/badger"
	"github.com/veridium/ves/pkg/interfaces/config"
	"github.com/veridium/ves/pkg/types"
)

// Provider 实现配置提供者接口
type Provider struct {
	appConfig *types.AppConfig
}

var _ config.Provider = (*Provider)(nil)

// NewProvider 创建配置提供者
func NewProvider(appConfig *types.AppConfig) config.Provider {
	return &Provider{
		appConfig: appConfig,
	}
}

// GetLog 获取日志配置
func (p *Provider) GetLog() *logconfig.LogOptions {
	// 直接传递用户日志配置给log.New，让它处理默认值和转换
	var userLogConfig *types.UserLogConfig
	if p.appConfig != nil && p.appConfig.Log != nil {
		userLogConfig = p.appConfig.Log
	}

	return logconfig.New(userLogConfig).GetOptions()
}

// GetSandbox 获取沙箱引擎配置
func (p *Provider) GetSandbox() *sandboxconfig.SandboxOptions {
	var userSandboxConfig *types.UserSandboxConfig
	if p.appConfig != nil && p.appConfig.Sandbox != nil {
		userSandboxConfig = p.appConfig.Sandbox
	}

	return sandboxconfig.New(userSandboxConfig).GetOptions()
}

// GetLedger 获取账本执行配置
func (p *Provider) GetLedger() *ledgerconfig.LedgerOptions {
	var userLedgerConfig *types.UserLedgerConfig
	if p.appConfig != nil && p.appConfig.Ledger != nil {
		userLedgerConfig = p.appConfig.Ledger
	}

	return ledgerconfig.New(userLedgerConfig).GetOptions()
}

// GetEvent 获取事件配置
func (p *Provider) GetEvent() *eventconfig.EventOptions {
	return eventconfig.New(nil).GetOptions()
}

// GetBadger 获取BadgerDB存储配置
//
// storage.path 未配置时以 data_dir 兜底，保证存储与日志等
// 运行时数据都聚在同一数据根目录下。
func (p *Provider) GetBadger() *badgerconfig.BadgerOptions {
	var userStorageConfig *types.UserStorageConfig
	if p.appConfig != nil && p.appConfig.Storage != nil {
		userStorageConfig = p.appConfig.Storage
	}

	if dataDir := p.configuredDataDir(); dataDir != "" {
		if userStorageConfig == nil {
			userStorageConfig = &types.UserStorageConfig{Path: &dataDir}
		} else if userStorageConfig.Path == nil {
			cloned := *userStorageConfig
			cloned.Path = &dataDir
			userStorageConfig = &cloned
		}
	}

	return badgerconfig.New(userStorageConfig).GetOptions()
}

// GetEnvironment 获取运行环境
// 未配置时默认为 "prod"（安全优先）
func (p *Provider) GetEnvironment() string {
	if p.appConfig != nil && p.appConfig.Environment != nil {
		env := strings.ToLower(strings.TrimSpace(*p.appConfig.Environment))
		if env != "" {
			return env
		}
	}
	return "prod"
}

// GetChainID 获取链标识
func (p *Provider) GetChainID() string {
	if p.appConfig != nil && p.appConfig.Chain != nil && p.appConfig.Chain.ChainID != nil {
		return strings.TrimSpace(*p.appConfig.Chain.ChainID)
	}
	return ""
}

// GetDataDir 获取数据根目录
func (p *Provider) GetDataDir() string {
	if dataDir := p.configuredDataDir(); dataDir != "" {
		return dataDir
	}
	return "./data"
}

// configuredDataDir 返回显式配置的数据目录，未配置时为空串
func (p *Provider) configuredDataDir() string {
	if p.appConfig != nil && p.appConfig.DataDir != nil {
		return strings.TrimSpace(*p.appConfig.DataDir)
	}
	return ""
}

// GetAppConfig 获取原始应用配置
func (p *Provider) GetAppConfig() *types.AppConfig {
	return p.appConfig
}
