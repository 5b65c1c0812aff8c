package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/allegro/bigcache/v3"

	ledgercfg "github.com/veridium/ves/internal/config/ledger"
	"github.com/veridium/ves/pkg/interfaces/infrastructure/log"
	storageIface "github.com/veridium/ves/pkg/interfaces/infrastructure/storage"
	"github.com/veridium/ves/pkg/types"
)

// VpLoader 验证谓词字节码装载抽象
//
// 评估器通过装载器取回各必需地址的VP模块；
// 装载总是针对已提交状态：本笔交易对VP存储的修改
// 要到提交之后才对后续交易生效。
type VpLoader interface {
	// Load 取回地址的VP字节码
	// 地址未初始化（无VP）时返回nil与nil错误
	Load(ctx context.Context, addr types.Address) ([]byte, error)

	// Invalidate 使地址的缓存条目失效
	// 在VP存储键被提交覆盖后由运行器调用
	Invalidate(addr types.Address)
}

// CachedVpLoader 带内存缓存的VP装载器
//
// VP字节码在交易流中被反复读取（同一账户的每笔相关交易都要装载），
// 且只在显式的VP更替交易提交时变化，是典型的读多写少热点。
// 这里用 bigcache 做前置缓存：分片无锁、零GC压力，
// 失效由运行器在提交路径精确触发。
type CachedVpLoader struct {
	logger log.Logger
	store  storageIface.StateStore
	cache  *bigcache.BigCache
}

var _ VpLoader = (*CachedVpLoader)(nil)

// NewCachedVpLoader 创建VP装载器
func NewCachedVpLoader(logger log.Logger, store storageIface.StateStore, config *ledgercfg.Config) (*CachedVpLoader, error) {
	if logger == nil {
		return nil, errors.New("logger 不能为 nil")
	}
	if store == nil {
		return nil, errors.New("state store 不能为 nil")
	}
	if config == nil {
		return nil, errors.New("ledger config 不能为 nil")
	}

	// 失效由提交路径显式驱动，生存窗口只作为兜底
	cacheConfig := bigcache.DefaultConfig(10 * time.Minute)
	cacheConfig.Shards = 256
	cacheConfig.MaxEntrySize = 64 * 1024
	cacheConfig.CleanWindow = 5 * time.Minute
	cacheConfig.HardMaxCacheSize = config.GetVpCacheMB()
	cacheConfig.Verbose = false

	cache, err := bigcache.New(context.Background(), cacheConfig)
	if err != nil {
		return nil, fmt.Errorf("创建VP字节码缓存失败: %w", err)
	}

	return &CachedVpLoader{
		logger: logger,
		store:  store,
		cache:  cache,
	}, nil
}

// Load 取回地址的VP字节码（缓存优先，未命中回源已提交存储）
func (l *CachedVpLoader) Load(ctx context.Context, addr types.Address) ([]byte, error) {
	cacheKey := string(addr)

	if code, err := l.cache.Get(cacheKey); err == nil {
		observeVpCacheLookup(true)
		return code, nil
	} else if !errors.Is(err, bigcache.ErrEntryNotFound) {
		l.logger.Warnf("VP缓存读取异常，回源存储: addr=%s, err=%v", addr, err)
	}
	observeVpCacheLookup(false)

	code, err := l.store.Get(ctx, types.VpKey(addr).Raw())
	if err != nil {
		return nil, fmt.Errorf("读取VP字节码失败: addr=%s: %w", addr, err)
	}
	if code == nil {
		// 未初始化的账户没有VP；缺失不缓存，
		// 账户初始化提交后下一次装载即可见
		return nil, nil
	}

	if err := l.cache.Set(cacheKey, code); err != nil {
		// 缓存失败只影响性能，不影响正确性
		l.logger.Debugf("VP缓存写入失败: addr=%s, err=%v", addr, err)
	}
	return code, nil
}

// Invalidate 使地址的缓存条目失效
func (l *CachedVpLoader) Invalidate(addr types.Address) {
	if err := l.cache.Delete(string(addr)); err != nil && !errors.Is(err, bigcache.ErrEntryNotFound) {
		l.logger.Warnf("VP缓存失效失败: addr=%s, err=%v", addr, err)
	}
}

// Close 关闭底层缓存
func (l *CachedVpLoader) Close() error {
	return l.cache.Close()
}
