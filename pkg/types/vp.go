package types

import (
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"
)

// VpInput 验证谓词的一次调用输入
//
// 📋 字段约定：
// - Owner: 被验证的地址（VP以该地址的视角裁决）
// - TxData: 触发验证的交易数据负载
// - ChangedKeys: 本笔交易触达的键（规范字符串形式、规范序）
// - Verifiers: 本笔交易的全部必需地址（有序）
//
// 编码采用RLP，在宿主侧序列化后写入客体内存。
type VpInput struct {
	Owner       Address
	TxData      []byte
	ChangedKeys []string
	Verifiers   []Address
}

// NewVpInput 构造VP输入
//
// 键与地址集在此转换为规范形式，保证同一交易下
// 各VP观察到逐字节一致的输入（除Owner外）。
func NewVpInput(owner Address, txData []byte, changed []Key, verifiers *VerifierSet) VpInput {
	keys := make([]string, len(changed))
	for i, k := range changed {
		keys[i] = k.String()
	}
	return VpInput{
		Owner:       owner,
		TxData:      txData,
		ChangedKeys: keys,
		Verifiers:   verifiers.Snapshot(),
	}
}

// Encode 编码为RLP字节
func (in *VpInput) Encode() ([]byte, error) {
	data, err := rlp.EncodeToBytes(in)
	if err != nil {
		return nil, fmt.Errorf("VP输入编码失败: %w", err)
	}
	return data, nil
}

// DecodeVpInput 从RLP字节解码VP输入
func DecodeVpInput(raw []byte) (*VpInput, error) {
	var in VpInput
	if err := rlp.DecodeBytes(raw, &in); err != nil {
		return nil, fmt.Errorf("VP输入解码失败: %w", err)
	}
	return &in, nil
}
