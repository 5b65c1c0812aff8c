// Package config provides configuration provider interfaces.
package config

import (
	eventconfig "github.com/veridium/ves/internal/config/event"
	ledgerconfig "github.com/veridium/ves/internal/config/ledger"
	logconfig "github.com/veridium/ves/internal/config/log"
	sandboxconfig "github.com/veridium/ves/internal/config/sandbox"
	badgerconfig "github.com/veridium/ves/internal/config/storage/badger"
	"github.com/veridium/ves/pkg/types"
)

// Provider 配置提供者接口
//
// 各实现模块通过Provider拿到自己关心的配置选项；
// 选项对象由对应的internal/config子包负责默认值与用户覆盖。
type Provider interface {
	// === 核心配置 ===

	// GetLog 获取日志配置
	GetLog() *logconfig.LogOptions

	// GetSandbox 获取沙箱引擎配置
	GetSandbox() *sandboxconfig.SandboxOptions

	// GetLedger 获取账本执行配置
	GetLedger() *ledgerconfig.LedgerOptions

	// GetEvent 获取事件配置
	GetEvent() *eventconfig.EventOptions

	// === 存储引擎配置 ===

	// GetBadger 获取BadgerDB存储配置
	GetBadger() *badgerconfig.BadgerOptions

	// === 环境与链配置 ===

	// GetEnvironment 获取运行环境
	// 返回运行环境字符串：dev | test | prod
	// 未配置时默认为 "prod"（安全优先）
	GetEnvironment() string

	// GetChainID 获取链标识
	// 用于构造区块上下文；未配置时返回空串，由调用方fail-fast
	GetChainID() string

	// GetDataDir 获取数据根目录
	// 存储与日志的默认路径都挂在该目录下
	GetDataDir() string

	// === 原始配置访问 ===

	// GetAppConfig 获取原始应用配置（用于验证等场景）
	GetAppConfig() *types.AppConfig
}
