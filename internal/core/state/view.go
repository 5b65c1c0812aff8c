package state

import (
	"context"

	storageIface "github.com/veridium/ves/pkg/interfaces/infrastructure/storage"
	"github.com/veridium/ves/pkg/types"
)

// View 统一状态读取视图
//
// 交易代码读 OverlayView（写日志叠加存储）；
// VP同时持有两个视图：CommittedView 为交易前状态（pre），
// OverlayView 为交易生效后的假想状态（post）。
type View interface {
	// Read 读取键值，键不存在时返回nil值和nil错误
	Read(ctx context.Context, key types.Key) ([]byte, error)

	// Has 检查键是否存在
	Has(ctx context.Context, key types.Key) (bool, error)

	// IteratePrefix 按段前缀有序遍历
	IteratePrefix(ctx context.Context, prefix types.Key) (storageIface.StateIterator, error)
}

// 接口实现断言
var (
	_ View = (*CommittedView)(nil)
	_ View = (*OverlayView)(nil)
)

// ==================== CommittedView ====================

// CommittedView 已提交状态的只读视图
type CommittedView struct {
	store storageIface.StateStore
}

// NewCommittedView 创建已提交状态视图
func NewCommittedView(store storageIface.StateStore) *CommittedView {
	return &CommittedView{store: store}
}

// Read 读取已提交值
func (v *CommittedView) Read(ctx context.Context, key types.Key) ([]byte, error) {
	return v.store.Get(ctx, key.Raw())
}

// Has 检查已提交键是否存在
func (v *CommittedView) Has(ctx context.Context, key types.Key) (bool, error) {
	return v.store.Has(ctx, key.Raw())
}

// IteratePrefix 按段前缀遍历已提交状态
func (v *CommittedView) IteratePrefix(ctx context.Context, prefix types.Key) (storageIface.StateIterator, error) {
	inner, err := v.store.IteratePrefix(ctx, prefix.Raw())
	if err != nil {
		return nil, err
	}
	return newPrefixFilterIterator(inner, prefix), nil
}

// ==================== OverlayView ====================

// OverlayView 写日志叠加已提交状态的读取视图
//
// 读取顺序：写日志条目优先（含删除遮蔽），未触达键回落到存储。
// 这保证客体代码总是读到自己刚写入的值。
type OverlayView struct {
	store storageIface.StateStore
	log   *WriteLog
}

// NewOverlayView 创建叠加视图
func NewOverlayView(store storageIface.StateStore, log *WriteLog) *OverlayView {
	return &OverlayView{store: store, log: log}
}

// Read 读取叠加后的值
func (v *OverlayView) Read(ctx context.Context, key types.Key) ([]byte, error) {
	value, deleted, present := v.log.Lookup(key)
	if present {
		if deleted {
			return nil, nil
		}
		return value, nil
	}
	return v.store.Get(ctx, key.Raw())
}

// Has 检查叠加后键是否存在
func (v *OverlayView) Has(ctx context.Context, key types.Key) (bool, error) {
	_, deleted, present := v.log.Lookup(key)
	if present {
		return !deleted, nil
	}
	return v.store.Has(ctx, key.Raw())
}

// IteratePrefix 按段前缀遍历叠加状态
// 写日志条目与存储记录按键序归并，日志遮蔽同键存储值，删除键被跳过
func (v *OverlayView) IteratePrefix(ctx context.Context, prefix types.Key) (storageIface.StateIterator, error) {
	inner, err := v.store.IteratePrefix(ctx, prefix.Raw())
	if err != nil {
		return nil, err
	}
	logKeys, logEntries := v.log.prefixEntries(prefix)
	return newMergedIterator(newPrefixFilterIterator(inner, prefix), logKeys, logEntries), nil
}

// Log 返回底层写日志
func (v *OverlayView) Log() *WriteLog {
	return v.log
}
