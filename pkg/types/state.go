package types

import "fmt"

// Mutation 提交阶段的单键变更
//
// 写日志折叠后的最终形态：每个键至多产生一条变更，
// 由存储层原子批量落盘。
type Mutation struct {
	// Key 目标键
	Key Key

	// Value 写入值（Delete为true时忽略）
	Value []byte

	// Delete 删除标记
	Delete bool
}

// String 返回变更的可读形式
func (m Mutation) String() string {
	if m.Delete {
		return fmt.Sprintf("delete %s", m.Key.String())
	}
	return fmt.Sprintf("write %s (%d bytes)", m.Key.String(), len(m.Value))
}
