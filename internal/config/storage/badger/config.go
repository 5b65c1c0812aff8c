package badger

import (
	"path/filepath"

	configtypes "github.com/veridium/ves/pkg/types"
)

// BadgerOptions BadgerDB存储配置选项
// 专注于账本状态存储所需的简化配置
type BadgerOptions struct {
	// === 基础配置 ===
	Path       string `json:"path"`        // 数据库存储路径
	InMemory   bool   `json:"in_memory"`   // 纯内存模式（不落盘，测试用）
	SyncWrites bool   `json:"sync_writes"` // 是否同步写入（数据安全性）

	// === 基础性能配置 ===
	MemTableSize int64 `json:"mem_table_size"` // 内存表大小（字节）
	BlockCacheMB int64 `json:"block_cache_mb"` // 块缓存大小（MB）
	IndexCacheMB int64 `json:"index_cache_mb"` // 索引缓存大小（MB）
}

// Config BadgerDB配置实现
type Config struct {
	options *BadgerOptions
}

// New 创建BadgerDB配置实现
func New(userConfig interface{}) *Config {
	defaultOptions := createDefaultBadgerOptions()

	// 如果有用户配置，应用用户配置覆盖默认值
	if userConfig != nil {
		applyUserBadgerConfig(defaultOptions, userConfig)
	}

	return &Config{
		options: defaultOptions,
	}
}

// NewFromProvider 从配置提供者创建BadgerDB配置
func NewFromProvider(provider interface{}) *Config {
	if provider != nil {
		if p, ok := provider.(interface {
			GetBadger() *BadgerOptions
		}); ok {
			if options := p.GetBadger(); options != nil {
				return &Config{options: options}
			}
		}
	}
	// 回退到默认配置
	return New(nil)
}

// createDefaultBadgerOptions 创建默认BadgerDB配置
func createDefaultBadgerOptions() *BadgerOptions {
	return &BadgerOptions{
		Path:         defaultPath,
		InMemory:     defaultInMemory,
		SyncWrites:   defaultSyncWrites,
		MemTableSize: defaultMemTableSize,
		BlockCacheMB: defaultBlockCacheMB,
		IndexCacheMB: defaultIndexCacheMB,
	}
}

// applyUserBadgerConfig 应用用户配置覆盖默认值
//
// 路径规则：用户给出的是数据根目录，BadgerDB固定落在 {path}/badger/ 子目录，
// 与日志等其他数据并列，便于整体备份。
func applyUserBadgerConfig(options *BadgerOptions, userConfig interface{}) {
	switch cfg := userConfig.(type) {
	case *configtypes.UserStorageConfig:
		if cfg == nil {
			return
		}
		if cfg.Path != nil {
			options.Path = filepath.Join(*cfg.Path, "badger")
		}
		if cfg.InMemory != nil {
			options.InMemory = *cfg.InMemory
		}
		if cfg.SyncWrites != nil {
			options.SyncWrites = *cfg.SyncWrites
		}
	case *BadgerOptions:
		if cfg == nil {
			return
		}
		*options = *cfg
		// 零值回退到默认，避免把BadgerDB配成0字节内存表
		if options.MemTableSize == 0 {
			options.MemTableSize = defaultMemTableSize
		}
		if options.BlockCacheMB == 0 {
			options.BlockCacheMB = defaultBlockCacheMB
		}
		if options.IndexCacheMB == 0 {
			options.IndexCacheMB = defaultIndexCacheMB
		}
	}
}

// GetOptions 获取完整的BadgerDB配置选项
func (c *Config) GetOptions() *BadgerOptions {
	return c.options
}

// === 基础配置访问方法 ===

// GetPath 获取数据库路径
func (c *Config) GetPath() string {
	return c.options.Path
}

// IsInMemory 是否纯内存模式
func (c *Config) IsInMemory() bool {
	return c.options.InMemory
}

// IsSyncWritesEnabled 是否启用同步写入
func (c *Config) IsSyncWritesEnabled() bool {
	return c.options.SyncWrites
}

// GetMemTableSize 获取内存表大小
func (c *Config) GetMemTableSize() int64 {
	return c.options.MemTableSize
}

// GetBlockCacheSize 获取块缓存大小（字节）
func (c *Config) GetBlockCacheSize() int64 {
	return c.options.BlockCacheMB << 20
}

// GetIndexCacheSize 获取索引缓存大小（字节）
func (c *Config) GetIndexCacheSize() int64 {
	return c.options.IndexCacheMB << 20
}
