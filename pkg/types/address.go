// Package types provides VES ledger core type definitions.
package types

import (
	"fmt"
	"sort"
	"strings"
)

// Address 账户地址
//
// VES中的地址是不透明的字符串标识，由外部账户体系（密钥派生、多签、
// 内部模块账户等）负责生成。执行核心只要求地址满足存储键段的编码约束，
// 不解释其内部结构。
type Address string

// 地址编码约束
const (
	// MaxAddressLen 地址最大长度（字节）
	MaxAddressLen = 80

	// AddressSegmentSigil 存储键段中的地址标记前缀
	// 键段 "#alice" 表示该键属于地址 alice 的存储子空间
	AddressSegmentSigil = "#"
)

// ParseAddress 解析并校验地址字符串
//
// 校验规则：
// - 非空且不超过 MaxAddressLen
// - 不包含键分隔符'/'、地址标记'#'、元数据标记'?'和NUL字符
func ParseAddress(s string) (Address, error) {
	if s == "" {
		return "", fmt.Errorf("地址不能为空")
	}
	if len(s) > MaxAddressLen {
		return "", fmt.Errorf("地址超过最大长度 %d: %d", MaxAddressLen, len(s))
	}
	if strings.ContainsAny(s, "/#?\x00") {
		return "", fmt.Errorf("地址包含非法字符: %q", s)
	}
	return Address(s), nil
}

// String 返回地址的字符串形式
func (a Address) String() string {
	return string(a)
}

// Segment 返回地址在存储键中的段形式（带#标记）
func (a Address) Segment() string {
	return AddressSegmentSigil + string(a)
}

// addressFromSegment 从键段还原地址；非地址段返回false
func addressFromSegment(seg string) (Address, bool) {
	if !strings.HasPrefix(seg, AddressSegmentSigil) {
		return "", false
	}
	addr, err := ParseAddress(strings.TrimPrefix(seg, AddressSegmentSigil))
	if err != nil {
		return "", false
	}
	return addr, true
}

// VerifierSet 验证者集合
//
// 记录一笔交易执行期间通过 insert_verifier 主动登记的地址。
// 这些地址的VP必须与存储被触碰的地址一起参与验证。
// 插入去重；快照输出按字典序排序，保证验证顺序确定性。
type VerifierSet struct {
	members map[Address]struct{}
}

// NewVerifierSet 创建空验证者集合
func NewVerifierSet() *VerifierSet {
	return &VerifierSet{members: make(map[Address]struct{})}
}

// Insert 登记一个验证者地址；重复插入幂等
func (s *VerifierSet) Insert(addr Address) {
	s.members[addr] = struct{}{}
}

// Contains 判断地址是否已登记
func (s *VerifierSet) Contains(addr Address) bool {
	_, ok := s.members[addr]
	return ok
}

// Len 返回集合大小
func (s *VerifierSet) Len() int {
	return len(s.members)
}

// Snapshot 返回按字典序排序的地址快照
func (s *VerifierSet) Snapshot() []Address {
	out := make([]Address, 0, len(s.members))
	for addr := range s.members {
		out = append(out, addr)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
