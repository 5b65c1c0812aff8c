package sandbox

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tetratelabs/wazero/api"

	sandboxcfg "github.com/veridium/ves/internal/config/sandbox"
	"github.com/veridium/ves/internal/testutil"
	"github.com/veridium/ves/pkg/types"
)

// ==================== 最小WASM模块组装 ====================
//
// 测试直接手工组装WASM二进制：不引入任何客体语言工具链，
// 也让每个用例精确控制模块的导入、导出与函数体。

func uleb128(v uint32) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		out = append(out, b)
		if v == 0 {
			return out
		}
	}
}

func sleb128(v int32) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if (v == 0 && b&0x40 == 0) || (v == -1 && b&0x40 != 0) {
			return append(out, b)
		}
		out = append(out, b|0x80)
	}
}

func wasmSection(id byte, content []byte) []byte {
	out := []byte{id}
	out = append(out, uleb128(uint32(len(content)))...)
	return append(out, content...)
}

func wasmVec(items ...[]byte) []byte {
	out := uleb128(uint32(len(items)))
	for _, it := range items {
		out = append(out, it...)
	}
	return out
}

func wasmName(s string) []byte {
	return append(uleb128(uint32(len(s))), s...)
}

// funcBody 组装无局部变量的函数体（自动补end）
func funcBody(instrs ...byte) []byte {
	content := append([]byte{0x00}, instrs...)
	content = append(content, 0x0b)
	return append(uleb128(uint32(len(content))), content...)
}

// 入口签名 (i32, i32) -> i32
var entrySigType = []byte{0x60, 0x02, 0x7f, 0x7f, 0x01, 0x7f}

func wasmHeader() []byte {
	return []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}
}

func exportFunc(name string, funcIdx byte) []byte {
	return append(wasmName(name), 0x00, funcIdx)
}

func exportMemory() []byte {
	return append(wasmName("memory"), 0x02, 0x00)
}

// buildReturnModule 组装入口返回常量的模块
func buildReturnModule(entry string, ret int32) []byte {
	out := wasmHeader()
	out = append(out, wasmSection(1, wasmVec(entrySigType))...)
	out = append(out, wasmSection(3, wasmVec([]byte{0x00}))...)
	out = append(out, wasmSection(5, wasmVec([]byte{0x00, 0x01}))...)
	out = append(out, wasmSection(7, wasmVec(exportMemory(), exportFunc(entry, 0x00)))...)
	body := funcBody(append([]byte{0x41}, sleb128(ret)...)...)
	out = append(out, wasmSection(10, wasmVec(body))...)
	return out
}

// buildTrapModule 组装入口立即触发unreachable的模块
func buildTrapModule(entry string) []byte {
	out := wasmHeader()
	out = append(out, wasmSection(1, wasmVec(entrySigType))...)
	out = append(out, wasmSection(3, wasmVec([]byte{0x00}))...)
	out = append(out, wasmSection(5, wasmVec([]byte{0x00, 0x01}))...)
	out = append(out, wasmSection(7, wasmVec(exportMemory(), exportFunc(entry, 0x00)))...)
	body := funcBody(0x00) // unreachable
	out = append(out, wasmSection(10, wasmVec(body))...)
	return out
}

// buildLenCheckModule 组装入口比较输入长度的模块：len == want 时返回1
func buildLenCheckModule(entry string, want int32) []byte {
	out := wasmHeader()
	out = append(out, wasmSection(1, wasmVec(entrySigType))...)
	out = append(out, wasmSection(3, wasmVec([]byte{0x00}))...)
	out = append(out, wasmSection(5, wasmVec([]byte{0x00, 0x01}))...)
	out = append(out, wasmSection(7, wasmVec(exportMemory(), exportFunc(entry, 0x00)))...)
	instrs := []byte{0x20, 0x01} // local.get 1
	instrs = append(instrs, 0x41)
	instrs = append(instrs, sleb128(want)...) // i32.const want
	instrs = append(instrs, 0x46)             // i32.eq
	out = append(out, wasmSection(10, wasmVec(funcBody(instrs...)))...)
	return out
}

// buildHostCallModule 组装入口调用宿主函数 env.<hostFn>(i32)->i32 的模块
// 导入函数占据索引0，入口为索引1
func buildHostCallModule(entry, hostFn string) []byte {
	probeSigType := []byte{0x60, 0x01, 0x7f, 0x01, 0x7f}

	out := wasmHeader()
	out = append(out, wasmSection(1, wasmVec(entrySigType, probeSigType))...)
	imp := append(wasmName("env"), wasmName(hostFn)...)
	imp = append(imp, 0x00, 0x01) // func, type 1
	out = append(out, wasmSection(2, wasmVec(imp))...)
	out = append(out, wasmSection(3, wasmVec([]byte{0x00}))...)
	out = append(out, wasmSection(5, wasmVec([]byte{0x00, 0x01}))...)
	out = append(out, wasmSection(7, wasmVec(exportMemory(), exportFunc(entry, 0x01)))...)
	body := funcBody(
		0x20, 0x00, // local.get 0
		0x10, 0x00, // call 0 (宿主函数)
	)
	out = append(out, wasmSection(10, wasmVec(body))...)
	return out
}

// buildWrongSigModule 组装入口签名为 ()->i32 的模块
func buildWrongSigModule(entry string) []byte {
	nullarySigType := []byte{0x60, 0x00, 0x01, 0x7f}

	out := wasmHeader()
	out = append(out, wasmSection(1, wasmVec(nullarySigType))...)
	out = append(out, wasmSection(3, wasmVec([]byte{0x00}))...)
	out = append(out, wasmSection(5, wasmVec([]byte{0x00, 0x01}))...)
	out = append(out, wasmSection(7, wasmVec(exportMemory(), exportFunc(entry, 0x00)))...)
	body := funcBody(0x41, 0x01) // i32.const 1
	out = append(out, wasmSection(10, wasmVec(body))...)
	return out
}

// buildLoopModule 组装入口死循环的模块
func buildLoopModule(entry string) []byte {
	out := wasmHeader()
	out = append(out, wasmSection(1, wasmVec(entrySigType))...)
	out = append(out, wasmSection(3, wasmVec([]byte{0x00}))...)
	out = append(out, wasmSection(5, wasmVec([]byte{0x00, 0x01}))...)
	out = append(out, wasmSection(7, wasmVec(exportMemory(), exportFunc(entry, 0x00)))...)
	body := funcBody(
		0x03, 0x40, // loop (void)
		0x0c, 0x00, // br 0
		0x0b, // end loop
		0x41, 0x01, // i32.const 1（不可达，满足类型检查）
	)
	out = append(out, wasmSection(10, wasmVec(body))...)
	return out
}

// buildBigMemoryModule 组装声明超大初始内存的模块
func buildBigMemoryModule(entry string, minPages byte) []byte {
	out := wasmHeader()
	out = append(out, wasmSection(1, wasmVec(entrySigType))...)
	out = append(out, wasmSection(3, wasmVec([]byte{0x00}))...)
	out = append(out, wasmSection(5, wasmVec([]byte{0x00, minPages}))...)
	out = append(out, wasmSection(7, wasmVec(exportMemory(), exportFunc(entry, 0x00)))...)
	body := funcBody(0x41, 0x01)
	out = append(out, wasmSection(10, wasmVec(body))...)
	return out
}

// ==================== 引擎测试 ====================

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	engine, err := NewEngine(testutil.NewTestLogger(), sandboxcfg.New(nil))
	require.NoError(t, err)
	t.Cleanup(func() { _ = engine.Close() })
	return engine
}

func testLimits() types.ExecLimits {
	return types.ExecLimits{MaxGas: 1_000_000, MaxMemoryPages: 16}
}

// TestEngine_AcceptAndReject 测试入口返回值语义
func TestEngine_AcceptAndReject(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()

	accepted, err := engine.Execute(ctx, &Invocation{
		Module: buildReturnModule(EntryValidateTx, 1),
		Entry:  EntryValidateTx,
		Limits: testLimits(),
	})
	require.NoError(t, err)
	assert.True(t, accepted, "入口返回1应该是接受")

	accepted, err = engine.Execute(ctx, &Invocation{
		Module: buildReturnModule(EntryValidateTx, 0),
		Entry:  EntryValidateTx,
		Limits: testLimits(),
	})
	require.NoError(t, err)
	assert.False(t, accepted, "入口返回0应该是拒绝")
}

// TestEngine_InvalidReturnValue 测试非法返回值
func TestEngine_InvalidReturnValue(t *testing.T) {
	engine := newTestEngine(t)

	_, err := engine.Execute(context.Background(), &Invocation{
		Module: buildReturnModule(EntryValidateTx, 2),
		Entry:  EntryValidateTx,
		Limits: testLimits(),
	})
	fault, ok := AsFault(err)
	require.True(t, ok, "非0/1返回值应该产生故障")
	assert.Equal(t, types.ErrKindInvalidReturn, fault.Kind)
}

// TestEngine_DecodeFault 测试字节码解码失败
func TestEngine_DecodeFault(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()

	// 垃圾字节
	_, err := engine.Execute(ctx, &Invocation{
		Module: []byte{0xde, 0xad, 0xbe, 0xef},
		Entry:  EntryApplyTx,
		Limits: testLimits(),
	})
	fault, ok := AsFault(err)
	require.True(t, ok)
	assert.Equal(t, types.ErrKindDecode, fault.Kind)

	// 空模块
	_, err = engine.Execute(ctx, &Invocation{
		Module: nil,
		Entry:  EntryApplyTx,
		Limits: testLimits(),
	})
	fault, ok = AsFault(err)
	require.True(t, ok)
	assert.Equal(t, types.ErrKindDecode, fault.Kind)

	// 缺少入口导出
	_, err = engine.Execute(ctx, &Invocation{
		Module: buildReturnModule("other_entry", 1),
		Entry:  EntryApplyTx,
		Limits: testLimits(),
	})
	fault, ok = AsFault(err)
	require.True(t, ok)
	assert.Equal(t, types.ErrKindDecode, fault.Kind)
}

// TestEngine_WrongEntrySignature 测试入口签名不匹配
func TestEngine_WrongEntrySignature(t *testing.T) {
	engine := newTestEngine(t)

	_, err := engine.Execute(context.Background(), &Invocation{
		Module: buildWrongSigModule(EntryValidateTx),
		Entry:  EntryValidateTx,
		Limits: testLimits(),
	})
	fault, ok := AsFault(err)
	require.True(t, ok)
	assert.Equal(t, types.ErrKindInvalidReturn, fault.Kind)
}

// TestEngine_Trap 测试客体陷阱
func TestEngine_Trap(t *testing.T) {
	engine := newTestEngine(t)

	_, err := engine.Execute(context.Background(), &Invocation{
		Module: buildTrapModule(EntryApplyTx),
		Entry:  EntryApplyTx,
		Limits: testLimits(),
	})
	fault, ok := AsFault(err)
	require.True(t, ok, "unreachable应该产生故障")
	assert.Equal(t, types.ErrKindTrap, fault.Kind)
}

// TestEngine_MissingLimits 测试缺失限额拒绝执行
func TestEngine_MissingLimits(t *testing.T) {
	engine := newTestEngine(t)

	_, err := engine.Execute(context.Background(), &Invocation{
		Module: buildReturnModule(EntryApplyTx, 1),
		Entry:  EntryApplyTx,
		Limits: types.ExecLimits{}, // 未设置限额
	})
	require.Error(t, err, "缺失限额必须拒绝执行")
	_, ok := AsFault(err)
	assert.False(t, ok, "限额缺失是调用方错误而不是客体故障")
}

// TestEngine_InputInjection 测试输入注入
func TestEngine_InputInjection(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()
	module := buildLenCheckModule(EntryApplyTx, 3)

	accepted, err := engine.Execute(ctx, &Invocation{
		Module: module,
		Entry:  EntryApplyTx,
		Input:  []byte{0x09, 0x09, 0x09},
		Limits: testLimits(),
	})
	require.NoError(t, err)
	assert.True(t, accepted, "客体应该收到正确长度的输入")

	accepted, err = engine.Execute(ctx, &Invocation{
		Module: module,
		Entry:  EntryApplyTx,
		Input:  nil,
		Limits: testLimits(),
	})
	require.NoError(t, err)
	assert.False(t, accepted, "空输入时长度应该为0")
}

// TestEngine_HostFunctionRoundtrip 测试宿主函数装配
func TestEngine_HostFunctionRoundtrip(t *testing.T) {
	engine := newTestEngine(t)

	called := false
	hostFns := map[string]interface{}{
		"probe": func(_ context.Context, _ api.Module, x uint32) uint32 {
			called = true
			return x + 1
		},
	}

	// 空输入时 ptr=0，probe(0)返回1 -> 接受
	accepted, err := engine.Execute(context.Background(), &Invocation{
		Module:  buildHostCallModule(EntryValidateTx, "probe"),
		Entry:   EntryValidateTx,
		Limits:  testLimits(),
		HostFns: hostFns,
	})
	require.NoError(t, err)
	assert.True(t, accepted)
	assert.True(t, called, "宿主函数应该被客体调用")
}

// TestEngine_MissingHostFunction 测试缺失宿主函数
func TestEngine_MissingHostFunction(t *testing.T) {
	engine := newTestEngine(t)

	_, err := engine.Execute(context.Background(), &Invocation{
		Module: buildHostCallModule(EntryValidateTx, "probe"),
		Entry:  EntryValidateTx,
		Limits: testLimits(),
		HostFns: map[string]interface{}{
			"unrelated": func(_ context.Context, _ api.Module, x uint32) uint32 { return x },
		},
	})
	fault, ok := AsFault(err)
	require.True(t, ok, "导入缺失应该产生故障")
	assert.Equal(t, types.ErrKindDecode, fault.Kind)
}

// mockFaultSinkForEngine 记录宿主故障的测试环境
type mockFaultSinkForEngine struct {
	fault *Fault
}

func (s *mockFaultSinkForEngine) RecordedFault() *Fault { return s.fault }

// TestEngine_HostFaultPropagation 测试宿主故障优先于wazero文本错误
func TestEngine_HostFaultPropagation(t *testing.T) {
	engine := newTestEngine(t)

	sink := &mockFaultSinkForEngine{}
	hostFns := map[string]interface{}{
		"probe": func(_ context.Context, _ api.Module, _ uint32) uint32 {
			sink.fault = NewFault(types.ErrKindResourceExceeded, "gas budget exhausted (limit 77)")
			panic(sink.fault)
		},
	}

	_, err := engine.Execute(context.Background(), &Invocation{
		Module:  buildHostCallModule(EntryValidateTx, "probe"),
		Entry:   EntryValidateTx,
		Limits:  testLimits(),
		HostFns: hostFns,
		Sink:    sink,
	})
	fault, ok := AsFault(err)
	require.True(t, ok)
	assert.Equal(t, types.ErrKindResourceExceeded, fault.Kind, "环境记录的故障应该原样返回")
	assert.Contains(t, fault.Detail, "limit 77")
}

// TestEngine_MemoryDeclarationOverLimit 测试内存声明超限
func TestEngine_MemoryDeclarationOverLimit(t *testing.T) {
	engine := newTestEngine(t)

	_, err := engine.Execute(context.Background(), &Invocation{
		Module: buildBigMemoryModule(EntryApplyTx, 64),
		Entry:  EntryApplyTx,
		Limits: types.ExecLimits{MaxGas: 1000, MaxMemoryPages: 2},
	})
	fault, ok := AsFault(err)
	require.True(t, ok, "超限的内存声明应该产生故障")
	assert.Equal(t, types.ErrKindResourceExceeded, fault.Kind)
}

// TestEngine_InputOverIOLimit 测试输入超过IO上限
func TestEngine_InputOverIOLimit(t *testing.T) {
	maxIO := uint32(8)
	cfg := sandboxcfg.New(&types.UserSandboxConfig{MaxGuestIOBytes: &maxIO})
	engine, err := NewEngine(testutil.NewTestLogger(), cfg)
	require.NoError(t, err)
	defer engine.Close()

	_, err = engine.Execute(context.Background(), &Invocation{
		Module: buildReturnModule(EntryApplyTx, 1),
		Entry:  EntryApplyTx,
		Input:  []byte("123456789"),
		Limits: testLimits(),
	})
	fault, ok := AsFault(err)
	require.True(t, ok)
	assert.Equal(t, types.ErrKindResourceExceeded, fault.Kind)
}

// TestEngine_WallClockWatchdog 测试墙钟安全上限
func TestEngine_WallClockWatchdog(t *testing.T) {
	if testing.Short() {
		t.Skip("跳过耗时的墙钟测试")
	}

	timeout := 1
	cfg := sandboxcfg.New(&types.UserSandboxConfig{ExecutionTimeoutSeconds: &timeout})
	engine, err := NewEngine(testutil.NewTestLogger(), cfg)
	require.NoError(t, err)
	defer engine.Close()

	_, err = engine.Execute(context.Background(), &Invocation{
		Module: buildLoopModule(EntryApplyTx),
		Entry:  EntryApplyTx,
		Limits: testLimits(),
	})
	fault, ok := AsFault(err)
	require.True(t, ok, "死循环应该被墙钟上限中止")
	assert.Equal(t, types.ErrKindResourceExceeded, fault.Kind)
}
