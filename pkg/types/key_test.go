package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestParseKey 测试键解析
func TestParseKey(t *testing.T) {
	key, err := ParseKey("#alice/balance")
	require.NoError(t, err, "应该成功解析合法键")
	assert.Equal(t, "#alice/balance", key.String())
	assert.Equal(t, 2, key.Len())

	// 往返一致
	again, err := ParseKey(key.String())
	require.NoError(t, err)
	assert.True(t, key.Equal(again), "解析应该往返一致")
}

// TestParseKey_Invalid 测试非法键
func TestParseKey_Invalid(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"空键", ""},
		{"空段", "a//b"},
		{"前导分隔符", "/a"},
		{"尾随分隔符", "a/"},
		{"NUL字节", "a/b\x00c"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseKey(tc.raw)
			assert.Error(t, err, "应该拒绝非法键: %q", tc.raw)
		})
	}

	// 超长键
	long := make([]byte, MaxKeyLen+1)
	for i := range long {
		long[i] = 'x'
	}
	_, err := ParseKey(string(long))
	assert.Error(t, err, "应该拒绝超长键")
}

// TestKey_HasPrefix 测试段级前缀语义
func TestKey_HasPrefix(t *testing.T) {
	base := mustKey(t, "#alice/balance")
	child := mustKey(t, "#alice/balance/sub")
	sibling := mustKey(t, "#alice/balances")

	assert.True(t, child.HasPrefix(base), "子键应该匹配段前缀")
	assert.True(t, base.HasPrefix(base), "键应该是自身的前缀")
	assert.False(t, sibling.HasPrefix(base), "段前缀不应该做字符串前缀匹配")
	assert.False(t, base.HasPrefix(child), "短键不应该匹配长前缀")
}

// TestKey_Addresses 测试地址段提取
func TestKey_Addresses(t *testing.T) {
	key := mustKey(t, "#alice/balance")
	addrs := key.Addresses()
	require.Len(t, addrs, 1)
	assert.Equal(t, Address("alice"), addrs[0])

	// 多地址键（如转账记录）
	multi := mustKey(t, "#alice/sent/#bob")
	addrs = multi.Addresses()
	require.Len(t, addrs, 2)
	assert.Equal(t, Address("alice"), addrs[0])
	assert.Equal(t, Address("bob"), addrs[1])

	// 无地址段
	plain := mustKey(t, "params/epoch")
	assert.Empty(t, plain.Addresses(), "无地址段的键不应该产生地址")
}

// TestVpKey 测试VP元数据键
func TestVpKey(t *testing.T) {
	vpKey := VpKey("alice")
	assert.Equal(t, "#alice/?vp", vpKey.String())

	owner, ok := vpKey.VpOwner()
	require.True(t, ok, "应该识别VP键")
	assert.Equal(t, Address("alice"), owner)

	// 普通键不是VP键
	_, ok = mustKey(t, "#alice/balance").VpOwner()
	assert.False(t, ok)
	_, ok = mustKey(t, "#alice/?vp/extra").VpOwner()
	assert.False(t, ok, "多余尾段的键不应该被识别为VP键")
}

// TestKey_Compare 测试规范序
func TestKey_Compare(t *testing.T) {
	a := mustKey(t, "#alice/balance")
	b := mustKey(t, "#bob/balance")
	assert.Negative(t, a.Compare(b))
	assert.Positive(t, b.Compare(a))
	assert.Zero(t, a.Compare(a))
}

// TestAccountKey 测试账户键构造
func TestAccountKey(t *testing.T) {
	key, err := AccountKey("alice", "balance")
	require.NoError(t, err)
	assert.Equal(t, "#alice/balance", key.String())

	_, err = AccountKey("alice", "bad/segment")
	assert.Error(t, err, "段内分隔符应该被拒绝")
}

// TestParseAddress 测试地址解析
func TestParseAddress(t *testing.T) {
	addr, err := ParseAddress("alice")
	require.NoError(t, err)
	assert.Equal(t, "#alice", addr.Segment())

	_, err = ParseAddress("")
	assert.Error(t, err, "应该拒绝空地址")
	_, err = ParseAddress("has/slash")
	assert.Error(t, err, "应该拒绝含分隔符的地址")
	_, err = ParseAddress("has#sigil")
	assert.Error(t, err, "应该拒绝含地址标记的地址")
}

// TestVerifierSet 测试必需地址集
func TestVerifierSet(t *testing.T) {
	set := NewVerifierSet()
	assert.Zero(t, set.Len())

	set.Insert("bob")
	set.Insert("alice")
	set.Insert("bob") // 重复插入
	assert.Equal(t, 2, set.Len(), "重复插入不应该增长集合")
	assert.True(t, set.Contains("alice"))
	assert.False(t, set.Contains("carol"))

	snap := set.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, Address("alice"), snap[0], "快照应该按地址有序")
	assert.Equal(t, Address("bob"), snap[1])
}

func mustKey(t *testing.T, raw string) Key {
	t.Helper()
	key, err := ParseKey(raw)
	require.NoError(t, err)
	return key
}
