package state

import (
	storageIface "github.com/veridium/ves/pkg/interfaces/infrastructure/storage"
	"github.com/veridium/ves/pkg/types"
)

// 接口实现断言
var (
	_ storageIface.StateIterator = (*prefixFilterIterator)(nil)
	_ storageIface.StateIterator = (*mergedIterator)(nil)
)

// ==================== 段前缀过滤 ====================

// prefixFilterIterator 在字节前缀扫描之上做段前缀过滤
//
// 存储层按字节前缀扫描会多出假命中（如前缀 "#a/b" 命中 "#a/bc"），
// 此处按键段语义二次过滤，只放行真正位于前缀子空间内的键。
type prefixFilterIterator struct {
	inner  storageIface.StateIterator
	prefix types.Key

	key   []byte
	value []byte
	err   error
}

func newPrefixFilterIterator(inner storageIface.StateIterator, prefix types.Key) *prefixFilterIterator {
	return &prefixFilterIterator{inner: inner, prefix: prefix}
}

func (it *prefixFilterIterator) Next() bool {
	if it.err != nil {
		return false
	}
	for it.inner.Next() {
		parsed, err := types.ParseKey(string(it.inner.Key()))
		if err != nil {
			// 非规范键不属于账本键空间，跳过
			continue
		}
		if !parsed.HasPrefix(it.prefix) {
			continue
		}
		it.key = append(it.key[:0], it.inner.Key()...)
		it.value = append(it.value[:0], it.inner.Value()...)
		return true
	}
	it.err = it.inner.Error()
	return false
}

func (it *prefixFilterIterator) Key() []byte   { return it.key }
func (it *prefixFilterIterator) Value() []byte { return it.value }
func (it *prefixFilterIterator) Error() error  { return it.err }
func (it *prefixFilterIterator) Close() error  { return it.inner.Close() }

// ==================== 归并迭代 ====================

// mergedIterator 写日志与存储游标的有序归并
//
// 两路输入都按键升序产出；同键时日志条目遮蔽存储记录，
// 删除条目使该键从结果中消失。
type mergedIterator struct {
	store      storageIface.StateIterator
	logKeys    []string
	logEntries map[string]logEntry
	logIdx     int

	storePending bool
	storeDone    bool

	key   []byte
	value []byte
	err   error
}

// newMergedIterator 创建归并迭代器
// store 可为nil（纯日志遍历）；logKeys 必须已按规范序排列
func newMergedIterator(store storageIface.StateIterator, logKeys []string, logEntries map[string]logEntry) *mergedIterator {
	it := &mergedIterator{
		store:      store,
		logKeys:    logKeys,
		logEntries: logEntries,
	}
	if store == nil {
		it.storeDone = true
	}
	return it
}

func (it *mergedIterator) Next() bool {
	if it.err != nil {
		return false
	}
	for {
		// 补充存储侧待决记录
		if !it.storePending && !it.storeDone {
			if it.store.Next() {
				it.storePending = true
			} else {
				it.storeDone = true
				if err := it.store.Error(); err != nil {
					it.err = err
					return false
				}
			}
		}

		haveLog := it.logIdx < len(it.logKeys)
		haveStore := it.storePending

		switch {
		case !haveLog && !haveStore:
			return false

		case haveLog && (!haveStore || it.logKeys[it.logIdx] < string(it.store.Key())):
			// 日志侧领先
			raw := it.logKeys[it.logIdx]
			it.logIdx++
			entry := it.logEntries[raw]
			if entry.kind == entryDelete {
				continue
			}
			it.emit([]byte(raw), entry.value)
			return true

		case haveStore && (!haveLog || string(it.store.Key()) < it.logKeys[it.logIdx]):
			// 存储侧领先
			it.storePending = false
			it.emit(it.store.Key(), it.store.Value())
			return true

		default:
			// 同键：日志遮蔽存储
			it.storePending = false
			raw := it.logKeys[it.logIdx]
			it.logIdx++
			entry := it.logEntries[raw]
			if entry.kind == entryDelete {
				continue
			}
			it.emit([]byte(raw), entry.value)
			return true
		}
	}
}

func (it *mergedIterator) emit(key, value []byte) {
	it.key = append(it.key[:0], key...)
	it.value = append(it.value[:0], value...)
}

func (it *mergedIterator) Key() []byte   { return it.key }
func (it *mergedIterator) Value() []byte { return it.value }
func (it *mergedIterator) Error() error  { return it.err }

func (it *mergedIterator) Close() error {
	if it.store != nil {
		return it.store.Close()
	}
	return nil
}
