package types

import (
	"fmt"
	"strings"
)

// Key 存储键
//
// 🎯 **核心数据模型**：有序路径段组成的存储键
//
// 键的规范字符串形式为'/'连接的段序列（如 "#alice/balance"），
// 全序由规范形式的字典序给出。键一经构造不可变；
// 既作为精确查找键，也作为前缀范围查询的前缀使用。
//
// 段编码约束：
// - 段非空，不含'/'和NUL
// - 以'#'开头的段是地址段，标记该键所属的账户存储子空间
// - 以'?'开头的段是账户元数据段（保留空间，如 ?vp 存放账户的验证谓词）
type Key struct {
	segments []string
}

// 键编码约束
const (
	// KeySegmentSeparator 键段分隔符
	KeySegmentSeparator = "/"

	// MaxKeyLen 键规范形式最大长度（字节）
	MaxKeyLen = 1024

	// VpMetaSegment 账户验证谓词的元数据段
	VpMetaSegment = "?vp"
)

// ParseKey 从规范字符串形式解析存储键
func ParseKey(raw string) (Key, error) {
	if raw == "" {
		return Key{}, fmt.Errorf("存储键不能为空")
	}
	if len(raw) > MaxKeyLen {
		return Key{}, fmt.Errorf("存储键超过最大长度 %d: %d", MaxKeyLen, len(raw))
	}
	segs := strings.Split(raw, KeySegmentSeparator)
	return KeyFromSegments(segs)
}

// KeyFromSegments 从段序列构造存储键
func KeyFromSegments(segs []string) (Key, error) {
	if len(segs) == 0 {
		return Key{}, fmt.Errorf("存储键至少包含一个段")
	}
	for i, seg := range segs {
		if err := validateSegment(seg); err != nil {
			return Key{}, fmt.Errorf("第%d段非法: %w", i, err)
		}
	}
	copied := make([]string, len(segs))
	copy(copied, segs)
	return Key{segments: copied}, nil
}

// AccountKey 构造地址子空间下的存储键，如 AccountKey(alice, "balance") -> "#alice/balance"
func AccountKey(addr Address, segs ...string) (Key, error) {
	all := append([]string{addr.Segment()}, segs...)
	return KeyFromSegments(all)
}

// VpKey 返回地址的验证谓词存储键（"#addr/?vp"）
func VpKey(addr Address) Key {
	return Key{segments: []string{addr.Segment(), VpMetaSegment}}
}

func validateSegment(seg string) error {
	if seg == "" {
		return fmt.Errorf("键段不能为空")
	}
	if strings.ContainsAny(seg, KeySegmentSeparator+"\x00") {
		return fmt.Errorf("键段包含非法字符: %q", seg)
	}
	return nil
}

// String 返回键的规范字符串形式
func (k Key) String() string {
	return strings.Join(k.segments, KeySegmentSeparator)
}

// Raw 返回键规范形式的字节序列（存储后端使用的物理键）
func (k Key) Raw() []byte {
	return []byte(k.String())
}

// Segments 返回键段的拷贝
func (k Key) Segments() []string {
	out := make([]string, len(k.segments))
	copy(out, k.segments)
	return out
}

// Len 返回段数
func (k Key) Len() int {
	return len(k.segments)
}

// IsZero 判断是否为零值键（未初始化）
func (k Key) IsZero() bool {
	return len(k.segments) == 0
}

// Push 返回追加一段后的新键；原键不变
func (k Key) Push(seg string) (Key, error) {
	if err := validateSegment(seg); err != nil {
		return Key{}, err
	}
	segs := make([]string, 0, len(k.segments)+1)
	segs = append(segs, k.segments...)
	segs = append(segs, seg)
	return Key{segments: segs}, nil
}

// Equal 判断两个键是否相等
func (k Key) Equal(other Key) bool {
	if len(k.segments) != len(other.segments) {
		return false
	}
	for i := range k.segments {
		if k.segments[i] != other.segments[i] {
			return false
		}
	}
	return true
}

// Compare 按规范形式字典序比较：-1/0/1
func (k Key) Compare(other Key) int {
	return strings.Compare(k.String(), other.String())
}

// HasPrefix 判断键是否以prefix为段前缀
//
// 段前缀语义："a/b" 是 "a/b/c" 的前缀，但不是 "a/bc" 的前缀。
func (k Key) HasPrefix(prefix Key) bool {
	if len(prefix.segments) > len(k.segments) {
		return false
	}
	for i := range prefix.segments {
		if k.segments[i] != prefix.segments[i] {
			return false
		}
	}
	return true
}

// Addresses 返回键中出现的全部地址段
//
// 一个键可以属于多个账户的存储子空间（如跨账户索引键），
// 写入该键会触发所有相关账户的VP验证。
func (k Key) Addresses() []Address {
	var out []Address
	for _, seg := range k.segments {
		if addr, ok := addressFromSegment(seg); ok {
			out = append(out, addr)
		}
	}
	return out
}

// VpOwner 如果键是某地址的验证谓词键（"#addr/?vp"），返回该地址
func (k Key) VpOwner() (Address, bool) {
	if len(k.segments) != 2 || k.segments[1] != VpMetaSegment {
		return "", false
	}
	return addressFromSegment(k.segments[0])
}
