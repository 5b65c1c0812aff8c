package testutil

import (
	"github.com/tetratelabs/wazero/api"

	"github.com/veridium/ves/pkg/interfaces/infrastructure/log"
	storageIface "github.com/veridium/ves/pkg/interfaces/infrastructure/storage"
	"github.com/veridium/ves/pkg/types"
)

// 接口实现断言
var (
	_ log.Logger                 = (*MockLogger)(nil)
	_ storageIface.StateStore    = (*MemStateStore)(nil)
	_ storageIface.StateIterator = (*memIterator)(nil)
	_ api.Memory                 = (*GuestMemory)(nil)
)

// NewTestLogger 创建测试用的静默Logger
func NewTestLogger() log.Logger {
	return &MockLogger{}
}

// MustKey 解析存储键，解析失败直接panic（仅测试使用）
func MustKey(raw string) types.Key {
	key, err := types.ParseKey(raw)
	if err != nil {
		panic(err)
	}
	return key
}

// MustAddr 解析地址，解析失败直接panic（仅测试使用）
func MustAddr(raw string) types.Address {
	addr, err := types.ParseAddress(raw)
	if err != nil {
		panic(err)
	}
	return addr
}
