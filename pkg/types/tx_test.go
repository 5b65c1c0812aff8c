package types

import (
	"testing"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestTxEnvelope_Validate 测试封装完整性校验
func TestTxEnvelope_Validate(t *testing.T) {
	// 内联代码：合法
	env := &TxEnvelope{Code: []byte{0x00, 0x61, 0x73, 0x6d}, Data: []byte("payload")}
	assert.NoError(t, env.Validate(), "内联代码的封装应该合法")

	// 哈希引用：合法
	h := HashBytes([]byte("module"))
	env = &TxEnvelope{CodeHash: h[:]}
	assert.NoError(t, env.Validate(), "哈希引用的封装应该合法")

	// 两者皆无
	env = &TxEnvelope{Data: []byte("payload")}
	assert.Error(t, env.Validate(), "缺少代码与引用的封装应该非法")

	// 两者皆有
	env = &TxEnvelope{Code: []byte{0x00}, CodeHash: h[:]}
	assert.Error(t, env.Validate(), "同时携带代码与引用的封装应该非法")

	// 引用长度非法
	env = &TxEnvelope{CodeHash: []byte{0x01, 0x02}}
	assert.Error(t, env.Validate(), "截断的哈希引用应该非法")

	// 燃料上限低于下限
	env = &TxEnvelope{Code: []byte{0x00}, GasLimit: MinGasLimit - 1}
	assert.Error(t, env.Validate(), "低于下限的燃料声明应该非法")

	// 支付方地址非法
	env = &TxEnvelope{Code: []byte{0x00}, GasPayer: "has/slash"}
	assert.Error(t, env.Validate(), "非法支付方地址应该被拒绝")
}

// TestTxEnvelope_Roundtrip 测试RLP编解码
func TestTxEnvelope_Roundtrip(t *testing.T) {
	env := &TxEnvelope{
		Code:     []byte{0x00, 0x61, 0x73, 0x6d},
		Data:     []byte("transfer"),
		Memo:     []byte("note"),
		GasPayer: "alice",
		GasLimit: 5000,
	}
	raw, err := env.Encode()
	require.NoError(t, err)

	decoded, err := DecodeTxEnvelope(raw)
	require.NoError(t, err, "应该成功解码")
	assert.Equal(t, env.Code, decoded.Code)
	assert.Equal(t, env.Data, decoded.Data)
	assert.Equal(t, env.Memo, decoded.Memo)
	assert.Equal(t, Address("alice"), decoded.GasPayer)
	assert.Equal(t, uint64(5000), decoded.GasLimit)
}

// TestDecodeTxEnvelope_OptionalTail 测试可选尾部字段缺省
func TestDecodeTxEnvelope_OptionalTail(t *testing.T) {
	// 旧版编码：仅前三个字段
	legacy := struct {
		Code     []byte
		CodeHash []byte
		Data     []byte
	}{Code: []byte{0x01}, Data: []byte("d")}
	raw, err := rlp.EncodeToBytes(&legacy)
	require.NoError(t, err)

	decoded, err := DecodeTxEnvelope(raw)
	require.NoError(t, err, "缺省尾部字段的编码应该可解码")
	assert.Empty(t, decoded.Memo)
	assert.Equal(t, Address(""), decoded.GasPayer)
	assert.Zero(t, decoded.GasLimit)
}

// TestDecodeTxEnvelope_Garbage 测试非法字节
func TestDecodeTxEnvelope_Garbage(t *testing.T) {
	_, err := DecodeTxEnvelope(nil)
	assert.Error(t, err, "空字节应该解码失败")

	_, err = DecodeTxEnvelope([]byte{0xff, 0xfe, 0xfd})
	assert.Error(t, err, "垃圾字节应该解码失败")
}

// TestHash 测试哈希表示
func TestHash(t *testing.T) {
	h := HashBytes([]byte("tx"))
	assert.Len(t, h.Hex(), 64)
	assert.False(t, h.IsZero())
	assert.True(t, (Hash{}).IsZero())

	// 同输入同哈希
	assert.Equal(t, h, HashBytes([]byte("tx")))
	assert.NotEqual(t, h, HashBytes([]byte("tx2")))
}

// TestEvent_Validate 测试事件校验
func TestEvent_Validate(t *testing.T) {
	ev := NewEvent("transfer",
		EventAttribute{Key: "to", Value: "bob"},
		EventAttribute{Key: "amount", Value: "10"},
	)
	require.NoError(t, ev.Validate())

	// 属性应该按Key排序
	assert.Equal(t, "amount", ev.Attributes[0].Key, "属性应该按键排序")
	assert.Equal(t, "to", ev.Attributes[1].Key)

	val, ok := ev.Get("amount")
	require.True(t, ok)
	assert.Equal(t, "10", val)
	_, ok = ev.Get("missing")
	assert.False(t, ok)

	// 空类型非法
	bad := Event{Type: ""}
	assert.Error(t, bad.Validate(), "空事件类型应该非法")

	// 空属性键非法
	bad = Event{Type: "t", Attributes: []EventAttribute{{Key: ""}}}
	assert.Error(t, bad.Validate(), "空属性键应该非法")
}

// TestExecLimits_Validate 测试限额校验
func TestExecLimits_Validate(t *testing.T) {
	assert.NoError(t, DefaultExecLimits().Validate())

	assert.Error(t, ExecLimits{MaxGas: 0, MaxMemoryPages: 1}.Validate(), "零燃料预算应该非法")
	assert.Error(t, ExecLimits{MaxGas: 1, MaxMemoryPages: 0}.Validate(), "零内存页上限应该非法")
	assert.Error(t, ExecLimits{MaxGas: 1, MaxMemoryPages: HardMaxMemoryPages + 1}.Validate(), "超过硬上限应该非法")
}

// TestVerdict_String 测试裁决表示
func TestVerdict_String(t *testing.T) {
	assert.True(t, Accept().IsAccept())
	assert.False(t, Reject("alice", "balance underflow").IsAccept())
	assert.False(t, VerdictErr("bob", ErrKindTrap, "unreachable").IsAccept())

	assert.Contains(t, Reject("alice", "balance underflow").String(), "alice")
	assert.Contains(t, VerdictErr("bob", ErrKindTrap, "unreachable").String(), "trap")
}
