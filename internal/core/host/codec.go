package host

import (
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"
)

// EncodeKVPair RLP编码迭代器产出的键值对
func EncodeKVPair(p *KVPair) ([]byte, error) {
	return rlp.EncodeToBytes(p)
}

// DecodeKVPair 解码结果缓冲中的键值对
func DecodeKVPair(raw []byte) (*KVPair, error) {
	var p KVPair
	if err := rlp.DecodeBytes(raw, &p); err != nil {
		return nil, fmt.Errorf("解码键值对失败: %w", err)
	}
	return &p, nil
}
