package types

import "errors"

// MaxChainIDLen 链标识最大长度
const MaxChainIDLen = 64

// BlockContext 当前区块的只读环境信息
//
// 对交易代码与VP统一可见，经宿主函数查询；
// 同一区块内所有执行观察到一致的快照。
type BlockContext struct {
	// ChainID 链标识
	ChainID string

	// Height 区块高度
	Height uint64

	// TimeUnix 区块时间（Unix秒）
	TimeUnix int64
}

// Validate 校验区块环境
func (b BlockContext) Validate() error {
	if b.ChainID == "" {
		return errors.New("chain id must not be empty")
	}
	if len(b.ChainID) > MaxChainIDLen {
		return errors.New("chain id too long")
	}
	return nil
}
