package state

import (
	"context"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	storageIface "github.com/veridium/ves/pkg/interfaces/infrastructure/storage"
	"github.com/veridium/ves/pkg/types"
)

// ==================== 测试用内存存储 ====================

// mockStateStoreForView 按字节序扫描的内存存储
// 模拟BadgerDB语义：字节前缀扫描、不存在返回nil
type mockStateStoreForView struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func newMockStateStore() *mockStateStoreForView {
	return &mockStateStoreForView{data: make(map[string][]byte)}
}

func (s *mockStateStoreForView) seed(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = []byte(value)
}

func (s *mockStateStoreForView) Get(_ context.Context, key []byte) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, ok := s.data[string(key)]
	if !ok {
		return nil, nil
	}
	out := make([]byte, len(value))
	copy(out, value)
	return out, nil
}

func (s *mockStateStoreForView) Has(_ context.Context, key []byte) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.data[string(key)]
	return ok, nil
}

func (s *mockStateStoreForView) IteratePrefix(_ context.Context, prefix []byte) (storageIface.StateIterator, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var keys []string
	for k := range s.data {
		if strings.HasPrefix(k, string(prefix)) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	items := make([][2][]byte, 0, len(keys))
	for _, k := range keys {
		v := make([]byte, len(s.data[k]))
		copy(v, s.data[k])
		items = append(items, [2][]byte{[]byte(k), v})
	}
	return &sliceIterator{items: items, idx: -1}, nil
}

func (s *mockStateStoreForView) WriteBatch(_ context.Context, mutations []types.Mutation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range mutations {
		if m.Delete {
			delete(s.data, m.Key.String())
			continue
		}
		v := make([]byte, len(m.Value))
		copy(v, m.Value)
		s.data[m.Key.String()] = v
	}
	return nil
}

func (s *mockStateStoreForView) Close() error { return nil }

type sliceIterator struct {
	items [][2][]byte
	idx   int
}

func (it *sliceIterator) Next() bool {
	it.idx++
	return it.idx < len(it.items)
}
func (it *sliceIterator) Key() []byte   { return it.items[it.idx][0] }
func (it *sliceIterator) Value() []byte { return it.items[it.idx][1] }
func (it *sliceIterator) Error() error  { return nil }
func (it *sliceIterator) Close() error  { return nil }

// ==================== 视图测试 ====================

// TestOverlayView_ReadYourWrites 测试写后读可见性
func TestOverlayView_ReadYourWrites(t *testing.T) {
	store := newMockStateStore()
	store.seed("#alice/balance", "100")

	log := NewWriteLog()
	overlay := NewOverlayView(store, log)
	ctx := context.Background()

	key := mustKey(t, "#alice/balance")

	// 未写入前读到已提交值
	value, err := overlay.Read(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, []byte("100"), value)

	// 写入后读到日志值
	require.NoError(t, log.Write(key, []byte("50")))
	value, err = overlay.Read(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, []byte("50"), value, "客体应该读到自己刚写入的值")
}

// TestOverlayView_DeleteShadow 测试删除遮蔽存储值
func TestOverlayView_DeleteShadow(t *testing.T) {
	store := newMockStateStore()
	store.seed("#alice/note", "hello")

	log := NewWriteLog()
	overlay := NewOverlayView(store, log)
	ctx := context.Background()

	key := mustKey(t, "#alice/note")
	require.NoError(t, log.Delete(key))

	value, err := overlay.Read(ctx, key)
	require.NoError(t, err)
	assert.Nil(t, value, "删除后读取应该返回不存在")

	exists, err := overlay.Has(ctx, key)
	require.NoError(t, err)
	assert.False(t, exists)
}

// TestViews_PrePostIsolation 测试pre/post视图隔离
func TestViews_PrePostIsolation(t *testing.T) {
	store := newMockStateStore()
	store.seed("#alice/balance", "100")

	log := NewWriteLog()
	pre := NewCommittedView(store)
	post := NewOverlayView(store, log)
	ctx := context.Background()

	key := mustKey(t, "#alice/balance")
	require.NoError(t, log.Write(key, []byte("50")))

	preVal, err := pre.Read(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, []byte("100"), preVal, "pre视图应该看到交易前状态")

	postVal, err := post.Read(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, []byte("50"), postVal, "post视图应该看到交易后状态")
}

// TestOverlayView_IteratePrefix_Merge 测试前缀归并遍历
func TestOverlayView_IteratePrefix_Merge(t *testing.T) {
	store := newMockStateStore()
	store.seed("#dex/orders/1", "s1")
	store.seed("#dex/orders/3", "s3")
	store.seed("#dex/orders/5", "s5")
	store.seed("#dex/ordersx/9", "false-hit") // 字节前缀假命中

	log := NewWriteLog()
	require.NoError(t, log.Write(mustKey(t, "#dex/orders/2"), []byte("l2")))
	require.NoError(t, log.Write(mustKey(t, "#dex/orders/3"), []byte("l3"))) // 遮蔽存储
	require.NoError(t, log.Delete(mustKey(t, "#dex/orders/5")))              // 删除存储键
	require.NoError(t, log.Write(mustKey(t, "#other/key"), []byte("x")))     // 前缀外

	overlay := NewOverlayView(store, log)
	it, err := overlay.IteratePrefix(context.Background(), mustKey(t, "#dex/orders"))
	require.NoError(t, err)
	defer it.Close()

	var gotKeys []string
	var gotVals []string
	for it.Next() {
		gotKeys = append(gotKeys, string(it.Key()))
		gotVals = append(gotVals, string(it.Value()))
	}
	require.NoError(t, it.Error())

	assert.Equal(t, []string{"#dex/orders/1", "#dex/orders/2", "#dex/orders/3"}, gotKeys,
		"归并结果应该有序、去重、跳过删除键并过滤假命中")
	assert.Equal(t, []string{"s1", "l2", "l3"}, gotVals, "同键时日志值应该遮蔽存储值")
}

// TestCommittedView_IteratePrefix_SegmentFilter 测试段前缀过滤
func TestCommittedView_IteratePrefix_SegmentFilter(t *testing.T) {
	store := newMockStateStore()
	store.seed("#a/accounts", "exact")
	store.seed("#a/accounts/1", "v1")
	store.seed("#a/accountsx/9", "false-hit")

	pre := NewCommittedView(store)
	it, err := pre.IteratePrefix(context.Background(), mustKey(t, "#a/accounts"))
	require.NoError(t, err)
	defer it.Close()

	var gotKeys []string
	for it.Next() {
		gotKeys = append(gotKeys, string(it.Key()))
	}
	require.NoError(t, it.Error())
	assert.Equal(t, []string{"#a/accounts", "#a/accounts/1"}, gotKeys,
		"段前缀应该包含前缀本身并排除字节级假命中")
}

// TestOverlayView_IteratePrefix_LogOnly 测试纯日志前缀遍历
func TestOverlayView_IteratePrefix_LogOnly(t *testing.T) {
	store := newMockStateStore()
	log := NewWriteLog()
	require.NoError(t, log.Write(mustKey(t, "#q/b"), []byte("2")))
	require.NoError(t, log.Write(mustKey(t, "#q/a"), []byte("1")))

	overlay := NewOverlayView(store, log)
	it, err := overlay.IteratePrefix(context.Background(), mustKey(t, "#q"))
	require.NoError(t, err)
	defer it.Close()

	var gotKeys []string
	for it.Next() {
		gotKeys = append(gotKeys, string(it.Key()))
	}
	require.NoError(t, it.Error())
	assert.Equal(t, []string{"#q/a", "#q/b"}, gotKeys, "纯日志遍历应该按键序产出")
}

// TestWriteBatch_CommitVisibility 测试折叠提交后的可见性
func TestWriteBatch_CommitVisibility(t *testing.T) {
	store := newMockStateStore()
	store.seed("#alice/balance", "100")
	store.seed("#alice/note", "bye")

	log := NewWriteLog()
	require.NoError(t, log.Write(mustKey(t, "#alice/balance"), []byte("90")))
	require.NoError(t, log.Write(mustKey(t, "#bob/balance"), []byte("10")))
	require.NoError(t, log.Delete(mustKey(t, "#alice/note")))

	ctx := context.Background()
	require.NoError(t, store.WriteBatch(ctx, log.Mutations()))

	pre := NewCommittedView(store)
	value, err := pre.Read(ctx, mustKey(t, "#alice/balance"))
	require.NoError(t, err)
	assert.Equal(t, []byte("90"), value)

	value, err = pre.Read(ctx, mustKey(t, "#bob/balance"))
	require.NoError(t, err)
	assert.Equal(t, []byte("10"), value)

	exists, err := pre.Has(ctx, mustKey(t, "#alice/note"))
	require.NoError(t, err)
	assert.False(t, exists, "提交的删除应该移除存储键")
}
