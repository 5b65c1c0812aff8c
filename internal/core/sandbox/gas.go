package sandbox

import "github.com/veridium/ves/pkg/types"

// GasMeter 燃料计量器
//
// 计费发生在宿主函数边界：客体每次跨出沙箱都按
// 基础费+字节费扣减预算，预算耗尽即产生资源故障。
//
// 并发约定：一个计量器归属一条同步调用链
// （交易执行，或VP及其嵌套求值），不做内部加锁。
type GasMeter struct {
	limit    uint64
	consumed uint64
}

// NewGasMeter 创建计量器
func NewGasMeter(limit uint64) *GasMeter {
	return &GasMeter{limit: limit}
}

// Charge 扣减燃料
// 预算不足时消耗量饱和到上限并返回资源故障
func (m *GasMeter) Charge(cost uint64) error {
	if cost > m.limit-m.consumed {
		m.consumed = m.limit
		return Faultf(types.ErrKindResourceExceeded, "gas budget exhausted (limit %d)", m.limit)
	}
	m.consumed += cost
	return nil
}

// Consumed 返回已消耗燃料
func (m *GasMeter) Consumed() uint64 {
	return m.consumed
}

// Limit 返回燃料预算
func (m *GasMeter) Limit() uint64 {
	return m.limit
}

// Remaining 返回剩余燃料
func (m *GasMeter) Remaining() uint64 {
	return m.limit - m.consumed
}

// Exhausted 判断预算是否已耗尽
func (m *GasMeter) Exhausted() bool {
	return m.consumed >= m.limit
}
