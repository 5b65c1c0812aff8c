package sandbox

import (
	"github.com/tetratelabs/wazero/api"

	"github.com/veridium/ves/pkg/types"
)

// wasmPageSize WASM线性内存页大小（字节）
const wasmPageSize = 65536

// ReadGuestMemory 从客体线性内存读取字节
//
// 所有客体传入的 (ptr, len) 都经过此处的边界检查；
// 越界访问折叠为结构化故障而不是宿主panic。
// 返回的切片是拷贝，后续客体内存变化不影响宿主持有的数据。
func ReadGuestMemory(mem api.Memory, ptr, length uint32) ([]byte, error) {
	if length == 0 {
		return nil, nil
	}
	data, ok := mem.Read(ptr, length)
	if !ok {
		return nil, Faultf(types.ErrKindInvalidMemory,
			"guest read out of bounds: ptr=%d len=%d memory=%d", ptr, length, mem.Size())
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// WriteGuestMemory 向客体线性内存写入字节
func WriteGuestMemory(mem api.Memory, ptr uint32, data []byte) error {
	if len(data) == 0 {
		return nil
	}
	if !mem.Write(ptr, data) {
		return Faultf(types.ErrKindInvalidMemory,
			"guest write out of bounds: ptr=%d len=%d memory=%d", ptr, len(data), mem.Size())
	}
	return nil
}

// PushGuestInput 将调用输入注入客体内存
//
// 在现有内存末尾增长所需页数并写入数据，返回 (ptr, len)。
// 增长受运行时页数限额约束，放不下输入即视为资源故障。
func PushGuestInput(mem api.Memory, input []byte) (uint32, uint32, error) {
	if len(input) == 0 {
		return 0, 0, nil
	}

	needed := (uint32(len(input)) + wasmPageSize - 1) / wasmPageSize
	prevPages, ok := mem.Grow(needed)
	if !ok {
		return 0, 0, Faultf(types.ErrKindResourceExceeded,
			"cannot grow guest memory by %d pages for input (%d bytes)", needed, len(input))
	}

	ptr := prevPages * wasmPageSize
	if err := WriteGuestMemory(mem, ptr, input); err != nil {
		return 0, 0, err
	}
	return ptr, uint32(len(input)), nil
}
