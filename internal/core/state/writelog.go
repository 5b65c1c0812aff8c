// Package state 实现VES账本的交易级可变状态层
//
// 🏗️ **写日志与状态视图 (Write Log & State Views)**
//
// 本包实现交易执行期间的全部状态语义：
// - WriteLog：交易作用域的内存写覆盖层，承接客体的写入/删除/账户初始化
// - CommittedView：已提交状态的只读视图（VP的pre视图）
// - OverlayView：写日志叠加已提交状态的读取视图（交易与VP的post视图）
// - 合并迭代器：覆盖层与底层存储的有序前缀归并
//
// ⚠️ **核心不变量**
// - 交易对状态的副作用只进入写日志，提交前对存储不可见
// - 同键多次写入后写覆盖先写；提交时每键至多折叠出一条变更
// - 拒绝路径整体丢弃写日志，存储保持逐字节不变
package state

import (
	"sort"
	"sync"

	"github.com/veridium/ves/pkg/types"
)

// ==================== 写日志条目 ====================

// entryKind 写日志条目类别
type entryKind uint8

const (
	// entryWrite 普通写入
	entryWrite entryKind = iota

	// entryDelete 删除标记
	entryDelete

	// entryInit 账户初始化写入（新账户的VP落位）
	entryInit
)

// logEntry 单键的最新日志条目
type logEntry struct {
	kind  entryKind
	value []byte
}

// ==================== WriteLog ====================

// WriteLog 交易作用域的写覆盖层
//
// 每个键只保留最后一次生效的条目；条目的存在即意味着
// 该键属于本笔交易的触达键集合。
//
// 并发约定：交易执行阶段由运行器串行写入；
// VP验证阶段只读，允许多个VP工作协程并发读取。
type WriteLog struct {
	mu sync.RWMutex

	// entries 规范键 -> 最新条目
	entries map[string]logEntry

	// initialized 本笔交易初始化的账户
	initialized map[types.Address]struct{}

	// bytesWritten 累计写入字节数（含键与值）
	bytesWritten uint64
}

// NewWriteLog 创建空写日志
func NewWriteLog() *WriteLog {
	return &WriteLog{
		entries:     make(map[string]logEntry),
		initialized: make(map[types.Address]struct{}),
	}
}

// Write 记录一次写入
// 同键覆盖之前的任何条目（含删除标记）
func (w *WriteLog) Write(key types.Key, value []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	copied := make([]byte, len(value))
	copy(copied, value)
	w.entries[key.String()] = logEntry{kind: entryWrite, value: copied}
	w.bytesWritten += uint64(len(key.String()) + len(value))
	return nil
}

// Delete 记录一次删除
// 删除不存在的键同样会留下删除标记（键进入触达集合）；
// VP元数据键不允许删除，账本地址必须始终受谓词保护
func (w *WriteLog) Delete(key types.Key) error {
	if _, ok := key.VpOwner(); ok {
		return ErrVpDeleteForbidden
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	w.entries[key.String()] = logEntry{kind: entryDelete}
	w.bytesWritten += uint64(len(key.String()))
	return nil
}

// InitAccount 记录一次账户初始化
// 将新账户的VP字节码写入其元数据键，并把地址标记为本交易初始化；
// 被初始化的账户在本笔交易中免于VP验证（其谓词此前并不存在）
func (w *WriteLog) InitAccount(addr types.Address, vpCode []byte) error {
	if len(vpCode) == 0 {
		return ErrEmptyVpCode
	}
	vpKey := types.VpKey(addr)

	w.mu.Lock()
	defer w.mu.Unlock()

	if _, exists := w.initialized[addr]; exists {
		return ErrAccountAlreadyInitialized
	}
	copied := make([]byte, len(vpCode))
	copy(copied, vpCode)
	w.entries[vpKey.String()] = logEntry{kind: entryInit, value: copied}
	w.initialized[addr] = struct{}{}
	w.bytesWritten += uint64(len(vpKey.String()) + len(vpCode))
	return nil
}

// Lookup 查询键在写日志中的最新条目
// 第二返回值为false表示键不在日志中，调用方应回落到底层存储；
// 删除条目返回 (nil, true, true)
func (w *WriteLog) Lookup(key types.Key) (value []byte, deleted bool, present bool) {
	return w.lookupRaw(key.String())
}

func (w *WriteLog) lookupRaw(canonical string) (value []byte, deleted bool, present bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	entry, ok := w.entries[canonical]
	if !ok {
		return nil, false, false
	}
	if entry.kind == entryDelete {
		return nil, true, true
	}
	return entry.value, false, true
}

// ChangedKeys 返回本交易触达的全部键（规范序）
func (w *WriteLog) ChangedKeys() []types.Key {
	w.mu.RLock()
	defer w.mu.RUnlock()

	raw := make([]string, 0, len(w.entries))
	for k := range w.entries {
		raw = append(raw, k)
	}
	sort.Strings(raw)

	keys := make([]types.Key, 0, len(raw))
	for _, r := range raw {
		key, err := types.ParseKey(r)
		if err != nil {
			// 入口已校验，规范键必定可解析
			continue
		}
		keys = append(keys, key)
	}
	return keys
}

// InitializedAccounts 返回本交易初始化的账户（有序）
func (w *WriteLog) InitializedAccounts() []types.Address {
	w.mu.RLock()
	defer w.mu.RUnlock()

	addrs := make([]types.Address, 0, len(w.initialized))
	for a := range w.initialized {
		addrs = append(addrs, a)
	}
	sort.Slice(addrs, func(i, j int) bool { return addrs[i] < addrs[j] })
	return addrs
}

// IsInitialized 判断地址是否由本交易初始化
func (w *WriteLog) IsInitialized(addr types.Address) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()

	_, ok := w.initialized[addr]
	return ok
}

// TouchedAddresses 返回触达键中出现的全部地址（去重、有序）
//
// 该集合与显式声明的验证方合并后，再剔除本交易初始化的账户，
// 即为需要运行VP的必需地址集合。
func (w *WriteLog) TouchedAddresses() []types.Address {
	seen := make(map[types.Address]struct{})
	for _, key := range w.ChangedKeys() {
		for _, addr := range key.Addresses() {
			seen[addr] = struct{}{}
		}
	}
	addrs := make([]types.Address, 0, len(seen))
	for a := range seen {
		addrs = append(addrs, a)
	}
	sort.Slice(addrs, func(i, j int) bool { return addrs[i] < addrs[j] })
	return addrs
}

// Mutations 将写日志折叠为提交批次（规范键序）
// 每个触达键恰好产生一条变更
func (w *WriteLog) Mutations() []types.Mutation {
	w.mu.RLock()
	defer w.mu.RUnlock()

	raw := make([]string, 0, len(w.entries))
	for k := range w.entries {
		raw = append(raw, k)
	}
	sort.Strings(raw)

	muts := make([]types.Mutation, 0, len(raw))
	for _, r := range raw {
		key, err := types.ParseKey(r)
		if err != nil {
			continue
		}
		entry := w.entries[r]
		if entry.kind == entryDelete {
			muts = append(muts, types.Mutation{Key: key, Delete: true})
			continue
		}
		muts = append(muts, types.Mutation{Key: key, Value: entry.value})
	}
	return muts
}

// Len 返回触达键数量
func (w *WriteLog) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.entries)
}

// BytesWritten 返回累计写入字节数（燃料计费依据之一）
func (w *WriteLog) BytesWritten() uint64 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.bytesWritten
}

// prefixEntries 返回匹配前缀的日志键（规范序）及其条目快照
// 供合并迭代器使用
func (w *WriteLog) prefixEntries(prefix types.Key) ([]string, map[string]logEntry) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	var keys []string
	snap := make(map[string]logEntry)
	for raw, entry := range w.entries {
		key, err := types.ParseKey(raw)
		if err != nil {
			continue
		}
		if !key.HasPrefix(prefix) {
			continue
		}
		keys = append(keys, raw)
		snap[raw] = entry
	}
	sort.Strings(keys)
	return keys, snap
}
