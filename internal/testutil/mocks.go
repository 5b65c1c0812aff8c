// Package testutil 提供执行核心各模块测试共用的Mock对象
//
// 🧪 **统一Mock实现**
//
// ⚠️ **注意**：本包只包含不依赖具体组件实现的Mock对象，避免循环依赖。
// 具体组件的专用Mock应该在各自的测试文件中定义。
package testutil

import (
	"context"
	"errors"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/veridium/ves/pkg/interfaces/infrastructure/log"
	storageIface "github.com/veridium/ves/pkg/interfaces/infrastructure/storage"
	"github.com/veridium/ves/pkg/types"
)

// ErrInjectedWriteFailure 故障注入的写入错误
var ErrInjectedWriteFailure = errors.New("injected write failure")

// ==================== MockLogger ====================

// MockLogger 统一的日志Mock实现
//
// ✅ **设计原则**：最小实现，所有方法返回空值，不记录日志
type MockLogger struct{}

func (m *MockLogger) Debug(msg string)                          {}
func (m *MockLogger) Debugf(format string, args ...interface{}) {}
func (m *MockLogger) Info(msg string)                           {}
func (m *MockLogger) Infof(format string, args ...interface{})  {}
func (m *MockLogger) Warn(msg string)                           {}
func (m *MockLogger) Warnf(format string, args ...interface{})  {}
func (m *MockLogger) Error(msg string)                          {}
func (m *MockLogger) Errorf(format string, args ...interface{}) {}
func (m *MockLogger) Fatal(msg string)                          {}
func (m *MockLogger) Fatalf(format string, args ...interface{}) {}
func (m *MockLogger) With(args ...interface{}) log.Logger       { return m }
func (m *MockLogger) Sync() error                               { return nil }
func (m *MockLogger) GetZapLogger() *zap.Logger                 { return zap.NewNop() }

// ==================== MemStateStore ====================

// MemStateStore 内存版StateStore实现
//
// 模拟BadgerDB语义：字节前缀扫描、键不存在返回nil、批量写入原子生效。
type MemStateStore struct {
	mu   sync.RWMutex
	data map[string][]byte

	// FailWrites 为true时WriteBatch返回错误（故障注入）
	FailWrites bool
}

// NewMemStateStore 创建内存状态存储
func NewMemStateStore() *MemStateStore {
	return &MemStateStore{data: make(map[string][]byte)}
}

// Seed 直接写入一条已提交记录（测试预置）
func (s *MemStateStore) Seed(key string, value []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := make([]byte, len(value))
	copy(v, value)
	s.data[key] = v
}

// Len 返回记录数
func (s *MemStateStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// Snapshot 返回全部已提交记录的拷贝
func (s *MemStateStore) Snapshot() map[string][]byte {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string][]byte, len(s.data))
	for k, v := range s.data {
		c := make([]byte, len(v))
		copy(c, v)
		out[k] = c
	}
	return out
}

func (s *MemStateStore) Get(_ context.Context, key []byte) ([]byte, error) {
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

func (s *MemStateStore) Has(_ context.Context, key []byte) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.data[string(key)]
	return ok, nil
}

func (s *MemStateStore) IteratePrefix(_ context.Context, prefix []byte) (storageIface.StateIterator, error) {
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
	return &memIterator{items: items, idx: -1}, nil
}

func (s *MemStateStore) WriteBatch(_ context.Context, mutations []types.Mutation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWrites {
		return ErrInjectedWriteFailure
	}
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

func (s *MemStateStore) Close() error { return nil }

type memIterator struct {
	items [][2][]byte
	idx   int
}

func (it *memIterator) Next() bool {
	it.idx++
	return it.idx < len(it.items)
}
func (it *memIterator) Key() []byte   { return it.items[it.idx][0] }
func (it *memIterator) Value() []byte { return it.items[it.idx][1] }
func (it *memIterator) Error() error  { return nil }
func (it *memIterator) Close() error  { return nil }

// ==================== GuestMemory ====================

// GuestMemory 线性内存的测试实现
//
// 满足 api.Memory 接口，供宿主函数单元测试在
// 不启动真实WASM实例的情况下模拟客体内存。
type GuestMemory struct {
	// 嵌入接口以满足wazero内部的wazeroOnly标记方法；
	// 所有公开方法均由下方显式实现覆盖。
	api.Memory

	buf      []byte
	maxPages uint32
}

// NewGuestMemory 创建指定页数的测试内存
func NewGuestMemory(pages, maxPages uint32) *GuestMemory {
	return &GuestMemory{buf: make([]byte, pages*65536), maxPages: maxPages}
}

// Place 将数据写入指定偏移（测试预置）
func (g *GuestMemory) Place(offset uint32, data []byte) {
	copy(g.buf[offset:], data)
}

// Bytes 返回偏移处的内存切片（测试断言）
func (g *GuestMemory) Bytes(offset, count uint32) []byte {
	return g.buf[offset : offset+count]
}

func (g *GuestMemory) Definition() api.MemoryDefinition { return nil }

func (g *GuestMemory) Size() uint32 { return uint32(len(g.buf)) }

func (g *GuestMemory) Grow(deltaPages uint32) (uint32, bool) {
	prevPages := uint32(len(g.buf)) / 65536
	if prevPages+deltaPages > g.maxPages {
		return 0, false
	}
	g.buf = append(g.buf, make([]byte, deltaPages*65536)...)
	return prevPages, true
}

func (g *GuestMemory) Read(offset, byteCount uint32) ([]byte, bool) {
	if !g.inBounds(offset, byteCount) {
		return nil, false
	}
	return g.buf[offset : offset+byteCount], true
}

func (g *GuestMemory) Write(offset uint32, v []byte) bool {
	if !g.inBounds(offset, uint32(len(v))) {
		return false
	}
	copy(g.buf[offset:], v)
	return true
}

func (g *GuestMemory) WriteString(offset uint32, v string) bool {
	return g.Write(offset, []byte(v))
}

func (g *GuestMemory) ReadByte(offset uint32) (byte, bool) {
	if !g.inBounds(offset, 1) {
		return 0, false
	}
	return g.buf[offset], true
}

func (g *GuestMemory) WriteByte(offset uint32, v byte) bool {
	if !g.inBounds(offset, 1) {
		return false
	}
	g.buf[offset] = v
	return true
}

func (g *GuestMemory) ReadUint16Le(offset uint32) (uint16, bool) {
	data, ok := g.Read(offset, 2)
	if !ok {
		return 0, false
	}
	return uint16(data[0]) | uint16(data[1])<<8, true
}

func (g *GuestMemory) WriteUint16Le(offset uint32, v uint16) bool {
	return g.Write(offset, []byte{byte(v), byte(v >> 8)})
}

func (g *GuestMemory) ReadUint32Le(offset uint32) (uint32, bool) {
	data, ok := g.Read(offset, 4)
	if !ok {
		return 0, false
	}
	return uint32(data[0]) | uint32(data[1])<<8 | uint32(data[2])<<16 | uint32(data[3])<<24, true
}

func (g *GuestMemory) WriteUint32Le(offset uint32, v uint32) bool {
	return g.Write(offset, []byte{byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24)})
}

func (g *GuestMemory) ReadUint64Le(offset uint32) (uint64, bool) {
	lo, ok := g.ReadUint32Le(offset)
	if !ok {
		return 0, false
	}
	hi, ok := g.ReadUint32Le(offset + 4)
	if !ok {
		return 0, false
	}
	return uint64(lo) | uint64(hi)<<32, true
}

func (g *GuestMemory) WriteUint64Le(offset uint32, v uint64) bool {
	return g.WriteUint32Le(offset, uint32(v)) && g.WriteUint32Le(offset+4, uint32(v>>32))
}

func (g *GuestMemory) ReadFloat32Le(offset uint32) (float32, bool) {
	v, ok := g.ReadUint32Le(offset)
	if !ok {
		return 0, false
	}
	return math.Float32frombits(v), true
}

func (g *GuestMemory) WriteFloat32Le(offset uint32, v float32) bool {
	return g.WriteUint32Le(offset, math.Float32bits(v))
}

func (g *GuestMemory) ReadFloat64Le(offset uint32) (float64, bool) {
	v, ok := g.ReadUint64Le(offset)
	if !ok {
		return 0, false
	}
	return math.Float64frombits(v), true
}

func (g *GuestMemory) WriteFloat64Le(offset uint32, v float64) bool {
	return g.WriteUint64Le(offset, math.Float64bits(v))
}

func (g *GuestMemory) inBounds(offset, count uint32) bool {
	return uint64(offset)+uint64(count) <= uint64(len(g.buf))
}
