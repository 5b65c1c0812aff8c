package sandbox

import (
	"context"
	"errors"
	"fmt"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	sandboxcfg "github.com/veridium/ves/internal/config/sandbox"
	"github.com/veridium/ves/pkg/interfaces/infrastructure/log"
	"github.com/veridium/ves/pkg/types"
)

// HostModuleName 宿主函数模块名，客体以 (env, name) 导入宿主函数
const HostModuleName = "env"

// 客体入口导出名
const (
	// EntryApplyTx 交易代码入口
	EntryApplyTx = "apply_tx"

	// EntryValidateTx 验证谓词入口
	EntryValidateTx = "validate_tx"
)

// FaultSink 执行环境的故障记录出口
//
// 宿主函数在中止客体前先把结构化故障记入环境，
// 引擎在调用失败后优先采用记录的故障而不是wazero文本错误。
type FaultSink interface {
	// RecordedFault 返回本次调用记录的宿主侧故障，无故障时为nil
	RecordedFault() *Fault
}

// Invocation 一次沙箱调用的完整描述
type Invocation struct {
	// Module WASM模块字节码
	Module []byte

	// Entry 入口导出名（EntryApplyTx / EntryValidateTx）
	Entry string

	// Input 写入客体内存的输入负载
	Input []byte

	// Limits 强制资源限额
	Limits types.ExecLimits

	// HostFns 导出给客体的宿主函数表（导出名 -> Go函数）
	HostFns map[string]interface{}

	// Sink 故障记录出口（可为nil）
	Sink FaultSink
}

// Engine 沙箱执行引擎
//
// 🎯 **核心职责**：在受控环境中运行不可信WASM字节码
//
// 基于 github.com/tetratelabs/wazero 实现。每次调用创建独立的
// wazero运行时实例：内存页限额是实例级属性，隔离后任何客体都
// 无法观察到其他调用的状态。编译产物经进程级编译缓存复用，
// 重复执行同一模块只付一次编译成本。
//
// 📋 **执行协议**：
// - 入口签名固定为 (i32 ptr, i32 len) -> i32
// - 输入由宿主增长客体内存后写入，指针与长度作为入口参数
// - 返回值恰好一个：1为接受，0为拒绝，其他值为非法返回
type Engine struct {
	logger log.Logger
	config *sandboxcfg.Config

	// cache 进程级编译缓存，跨调用共享
	cache wazero.CompilationCache
}

// NewEngine 创建沙箱执行引擎
func NewEngine(logger log.Logger, config *sandboxcfg.Config) (*Engine, error) {
	if logger == nil {
		return nil, errors.New("logger 不能为 nil")
	}
	if config == nil {
		return nil, errors.New("sandbox config 不能为 nil")
	}
	return &Engine{
		logger: logger,
		config: config,
		cache:  wazero.NewCompilationCache(),
	}, nil
}

// Execute 执行一次沙箱调用
//
// 返回值语义：
//   - (true, nil)：客体接受（入口返回1）
//   - (false, nil)：客体拒绝（入口返回0）
//   - (false, *Fault)：客体或宿主函数引发的结构化故障
//   - (false, 其他error)：宿主内部错误
func (e *Engine) Execute(ctx context.Context, inv *Invocation) (bool, error) {
	if inv == nil {
		return false, errors.New("invocation 不能为 nil")
	}
	if inv.Entry == "" {
		return false, errors.New("entry 不能为空")
	}
	if err := inv.Limits.Validate(); err != nil {
		return false, fmt.Errorf("执行限额非法: %w", err)
	}
	if len(inv.Module) == 0 {
		return false, NewFault(types.ErrKindDecode, "empty module bytes")
	}
	if maxIO := e.config.GetMaxGuestIOBytes(); maxIO > 0 && uint64(len(inv.Input)) > uint64(maxIO) {
		return false, Faultf(types.ErrKindResourceExceeded,
			"input exceeds guest io limit: %d > %d", len(inv.Input), maxIO)
	}

	// 1. 创建按调用隔离的运行时（内存页限额是实例级属性）
	var runtimeCfg wazero.RuntimeConfig
	if e.config.UseCompiler() {
		runtimeCfg = wazero.NewRuntimeConfig()
	} else {
		runtimeCfg = wazero.NewRuntimeConfigInterpreter()
	}
	runtimeCfg = runtimeCfg.
		WithCompilationCache(e.cache).
		WithMemoryLimitPages(inv.Limits.MaxMemoryPages).
		WithCloseOnContextDone(true)

	runtime := wazero.NewRuntimeWithConfig(ctx, runtimeCfg)
	defer runtime.Close(context.Background())

	// 2. 装配宿主函数模块
	if len(inv.HostFns) > 0 {
		builder := runtime.NewHostModuleBuilder(HostModuleName)
		for name, fn := range inv.HostFns {
			builder.NewFunctionBuilder().WithFunc(fn).Export(name)
		}
		if _, err := builder.Instantiate(ctx); err != nil {
			return false, fmt.Errorf("宿主模块实例化失败: %w", err)
		}
	}

	// 3. 编译模块（命中共享编译缓存时近乎零开销）
	compiled, err := runtime.CompileModule(ctx, inv.Module)
	if err != nil {
		return false, classifyCompileError(err)
	}

	// 4. 入口形状校验
	if fault := checkEntrySignature(compiled, inv.Entry); fault != nil {
		return false, fault
	}

	// 5. 墙钟安全上限（确定性预算由燃料承担，这里只是宿主自保护）
	execCtx := ctx
	if timeout := e.config.GetExecutionTimeout(); timeout > 0 {
		var cancel context.CancelFunc
		execCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	// 6. 实例化客体模块（不执行任何启动函数，入口只能显式调用）
	moduleCfg := wazero.NewModuleConfig().
		WithName(guestModuleName(inv.Module)).
		WithStartFunctions()
	mod, err := runtime.InstantiateModule(execCtx, compiled, moduleCfg)
	if err != nil {
		return false, e.resolveFault(inv, err)
	}
	defer mod.Close(context.Background())

	mem := mod.Memory()
	if mem == nil {
		return false, NewFault(types.ErrKindDecode, "module exports no linear memory")
	}

	// 7. 注入输入
	ptr, length, err := PushGuestInput(mem, inv.Input)
	if err != nil {
		return false, e.resolveFault(inv, err)
	}

	// 8. 调用入口
	entryFn := mod.ExportedFunction(inv.Entry)
	if entryFn == nil {
		return false, Faultf(types.ErrKindDecode, "entry %q not exported", inv.Entry)
	}
	results, err := entryFn.Call(execCtx, uint64(ptr), uint64(length))
	if err != nil {
		return false, e.resolveFault(inv, err)
	}

	// 9. 结果裁剪：恰好一个i32，且必须是0或1
	if len(results) != 1 {
		return false, Faultf(types.ErrKindInvalidReturn, "entry returned %d values, want 1", len(results))
	}
	switch uint32(results[0]) {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, Faultf(types.ErrKindInvalidReturn,
			"entry returned %d, want 0 or 1", uint32(results[0]))
	}
}

// Close 关闭引擎并释放编译缓存
func (e *Engine) Close() error {
	if e.cache != nil {
		return e.cache.Close(context.Background())
	}
	return nil
}

// resolveFault 折叠执行错误
// 环境中记录的宿主故障优先于wazero的文本化错误
func (e *Engine) resolveFault(inv *Invocation, err error) error {
	if inv.Sink != nil {
		if fault := inv.Sink.RecordedFault(); fault != nil {
			return fault
		}
	}
	return classifyGuestError(err)
}

// checkEntrySignature 校验入口导出及其签名 (i32, i32) -> i32
func checkEntrySignature(compiled wazero.CompiledModule, entry string) *Fault {
	def, ok := compiled.ExportedFunctions()[entry]
	if !ok {
		return Faultf(types.ErrKindDecode, "entry %q not exported", entry)
	}
	params := def.ParamTypes()
	results := def.ResultTypes()
	if len(params) != 2 || params[0] != api.ValueTypeI32 || params[1] != api.ValueTypeI32 {
		return Faultf(types.ErrKindInvalidReturn, "entry %q has invalid parameters", entry)
	}
	if len(results) != 1 || results[0] != api.ValueTypeI32 {
		return Faultf(types.ErrKindInvalidReturn, "entry %q has invalid results", entry)
	}
	return nil
}

// guestModuleName 按模块内容生成稳定的实例名
func guestModuleName(module []byte) string {
	sum := types.HashBytes(module)
	return "guest_" + sum.Hex()[:16]
}
