// Package badger 提供基于BadgerDB的账本状态存储实现
package badger

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	badgerdb "github.com/dgraph-io/badger/v3"
	"go.uber.org/zap"

	badgerconfig "github.com/veridium/ves/internal/config/storage/badger"
	log "github.com/veridium/ves/pkg/interfaces/infrastructure/log"
	storageIface "github.com/veridium/ves/pkg/interfaces/infrastructure/storage"
	"github.com/veridium/ves/pkg/types"
)

// Store 基于BadgerDB实现StateStore接口
type Store struct {
	db     *badgerdb.DB
	config *badgerconfig.Config
	logger log.Logger

	// 避免 Close 过程中仍被写入，触发 Badger y.AssertTrue(db.mt != nil) 的 fatal 退出
	closing int32
	writeWg sync.WaitGroup
}

var _ storageIface.StateStore = (*Store)(nil)

// New 创建BadgerDB状态存储实例
func New(config *badgerconfig.Config, logger log.Logger) (*Store, error) {
	if config == nil {
		return nil, fmt.Errorf("BadgerDB配置不能为空")
	}
	if logger == nil {
		logger = nopLogger{}
	}

	var opts badgerdb.Options
	if config.IsInMemory() {
		// 内存模式：不落盘，进程退出后数据丢失，仅供测试显式开启
		logger.Info("初始化内存BadgerDB存储（数据不持久化）")
		opts = badgerdb.DefaultOptions("").WithInMemory(true)
	} else {
		dataDir := config.GetPath()
		if dataDir == "" {
			dataDir = "./data/badger"
			logger.Warnf("BadgerDB数据目录路径未配置，使用默认路径: %s", dataDir)
		}

		logger.Infof("初始化BadgerDB存储，数据目录: %s", dataDir)

		if err := os.MkdirAll(dataDir, 0700); err != nil {
			return nil, fmt.Errorf("无法创建BadgerDB数据目录: %w", err)
		}
		opts = badgerdb.DefaultOptions(dataDir)
	}

	opts.SyncWrites = config.IsSyncWritesEnabled()
	opts.MemTableSize = config.GetMemTableSize()

	// 降低缓存与memtable数量，控制常驻内存
	opts.BlockCacheSize = config.GetBlockCacheSize()
	opts.IndexCacheSize = config.GetIndexCacheSize()
	opts.NumMemtables = 2

	// 后台整理参数
	opts.NumCompactors = 2
	opts.NumLevelZeroTables = 5
	opts.NumLevelZeroTablesStall = 10

	opts.Logger = newBadgerLogger(logger)

	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("无法打开BadgerDB: %w", err)
	}

	logger.Info("BadgerDB存储初始化完成")
	return &Store{
		db:     db,
		config: config,
		logger: logger,
	}, nil
}

// Close 关闭存储并释放资源
func (s *Store) Close() error {
	// 进入关闭态：阻断后续写入，并等待 in-flight 写完成
	if !atomic.CompareAndSwapInt32(&s.closing, 0, 1) {
		return nil
	}

	if s.db == nil {
		return nil
	}

	// 等待所有写事务退出，避免 Close 过程中仍有 Update 写入
	waitCh := make(chan struct{})
	go func() {
		s.writeWg.Wait()
		close(waitCh)
	}()
	select {
	case <-waitCh:
	case <-time.After(30 * time.Second):
		s.logger.Warn("等待 in-flight 写事务超时（30s），仍继续关闭 BadgerDB")
	}

	if err := s.db.Close(); err != nil {
		// LOCK文件不存在说明已经释放过，按正常关闭处理
		if strings.Contains(err.Error(), "LOCK: no such file or directory") {
			s.logger.Warn("BadgerDB LOCK文件已不存在，这通常是正常的关闭过程")
		} else {
			return fmt.Errorf("关闭BadgerDB失败: %w", err)
		}
	}

	s.logger.Info("BadgerDB存储已安全关闭")
	return nil
}

func (s *Store) beginWrite() (func(), error) {
	// 关闭过程中拒绝写入，避免 Badger Close 与写入并发导致 fatal
	if atomic.LoadInt32(&s.closing) == 1 {
		return nil, fmt.Errorf("badger存储正在关闭")
	}
	s.writeWg.Add(1)
	// double-check，避免在 Add 之后进入 closing
	if atomic.LoadInt32(&s.closing) == 1 {
		s.writeWg.Done()
		return nil, fmt.Errorf("badger存储正在关闭")
	}
	return s.writeWg.Done, nil
}

// Get 获取指定键的已提交值
// 键不存在时返回nil值和nil错误
func (s *Store) Get(ctx context.Context, key []byte) ([]byte, error) {
	var valCopy []byte
	err := s.db.View(func(txn *badgerdb.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			if err == badgerdb.ErrKeyNotFound {
				return nil // 键不存在时返回nil值和nil错误
			}
			return err
		}

		// 复制值
		valCopy, err = item.ValueCopy(nil)
		return err
	})

	if err != nil {
		return nil, fmt.Errorf("badger获取键失败: %w", err)
	}

	return valCopy, nil
}

// Has 检查键是否存在
func (s *Store) Has(ctx context.Context, key []byte) (bool, error) {
	var exists bool
	err := s.db.View(func(txn *badgerdb.Txn) error {
		_, err := txn.Get(key)
		if err == badgerdb.ErrKeyNotFound {
			exists = false
			return nil
		}
		if err != nil {
			return err
		}
		exists = true
		return nil
	})

	if err != nil {
		return false, fmt.Errorf("badger检查键存在性失败: %w", err)
	}

	return exists, nil
}

// IteratePrefix 按前缀遍历已提交状态
//
// 游标持有一个只读事务，看到的是创建时刻的快照；
// 遍历期间的并发提交不会出现在结果中。使用完毕必须Close。
func (s *Store) IteratePrefix(ctx context.Context, prefix []byte) (storageIface.StateIterator, error) {
	if atomic.LoadInt32(&s.closing) == 1 {
		return nil, fmt.Errorf("badger存储正在关闭")
	}

	txn := s.db.NewTransaction(false)

	opts := badgerdb.DefaultIteratorOptions
	opts.PrefetchValues = true

	it := txn.NewIterator(opts)

	return &prefixIterator{
		txn:    txn,
		it:     it,
		prefix: prefix,
	}, nil
}

// WriteBatch 原子应用一批变更
//
// 所有变更在同一个BadgerDB事务中落盘：任一失败则整体回滚，
// 部分写入永不对后续读可见。批次大小受执行层燃气上限约束，
// 不会触及Badger单事务的容量限制。
func (s *Store) WriteBatch(ctx context.Context, mutations []types.Mutation) error {
	done, err := s.beginWrite()
	if err != nil {
		return err
	}
	defer done()

	err = s.db.Update(func(txn *badgerdb.Txn) error {
		for _, m := range mutations {
			key := m.Key.Raw()
			if m.Delete {
				if err := txn.Delete(key); err != nil {
					return err
				}
				continue
			}
			if err := txn.Set(key, m.Value); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("badger批量提交失败: %w", err)
	}

	return nil
}

// ==================== 前缀游标 ====================

// prefixIterator 持有只读事务的前缀游标
type prefixIterator struct {
	txn    *badgerdb.Txn
	it     *badgerdb.Iterator
	prefix []byte

	started bool
	closed  bool
	key     []byte
	value   []byte
	err     error
}

var _ storageIface.StateIterator = (*prefixIterator)(nil)

// Next 推进游标到下一条记录
func (i *prefixIterator) Next() bool {
	if i.closed || i.err != nil {
		return false
	}

	if !i.started {
		i.started = true
		i.it.Seek(i.prefix)
	} else {
		i.it.Next()
	}

	if !i.it.ValidForPrefix(i.prefix) {
		return false
	}

	item := i.it.Item()
	i.key = item.KeyCopy(nil)

	value, err := item.ValueCopy(nil)
	if err != nil {
		i.err = fmt.Errorf("badger读取迭代值失败: %w", err)
		return false
	}
	i.value = value

	return true
}

// Key 返回当前记录的键
func (i *prefixIterator) Key() []byte {
	return i.key
}

// Value 返回当前记录的值
func (i *prefixIterator) Value() []byte {
	return i.value
}

// Error 返回遍历过程中发生的错误
func (i *prefixIterator) Error() error {
	return i.err
}

// Close 释放游标持有的迭代器与只读事务
func (i *prefixIterator) Close() error {
	if i.closed {
		return nil
	}
	i.closed = true
	i.it.Close() // Badger Iterator.Close() 无返回值
	i.txn.Discard()
	return nil
}

// ==================== 日志适配 ====================

// badgerLogger 实现BadgerDB的日志接口
type badgerLogger struct {
	logger log.Logger
}

// newBadgerLogger 创建BadgerDB日志适配器
func newBadgerLogger(logger log.Logger) *badgerLogger {
	return &badgerLogger{logger: logger}
}

// Errorf 输出错误日志
func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Errorf("[BadgerDB] "+format, args...)
}

// Warningf 输出警告日志
func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warnf("[BadgerDB] "+format, args...)
}

// Infof 输出信息日志
func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Infof("[BadgerDB] "+format, args...)
}

// Debugf 输出调试日志
func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debugf("[BadgerDB] "+format, args...)
}

// nopLogger 用于在测试/工具链等 logger 未注入时，避免 nil 指针崩溃。
// 生产环境应通过 DI 注入真实 logger。
type nopLogger struct{}

func (nopLogger) Debug(string)                   {}
func (nopLogger) Debugf(string, ...interface{})  {}
func (nopLogger) Info(string)                    {}
func (nopLogger) Infof(string, ...interface{})   {}
func (nopLogger) Warn(string)                    {}
func (nopLogger) Warnf(string, ...interface{})   {}
func (nopLogger) Error(string)                   {}
func (nopLogger) Errorf(string, ...interface{})  {}
func (nopLogger) Fatal(string)                   {}
func (nopLogger) Fatalf(string, ...interface{})  {}
func (nopLogger) With(...interface{}) log.Logger { return nopLogger{} }
func (nopLogger) Sync() error                    { return nil }
func (nopLogger) GetZapLogger() *zap.Logger      { return zap.NewNop() }
