package ledger

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	ledgercfg "github.com/veridium/ves/internal/config/ledger"
	"github.com/veridium/ves/internal/core/host"
	"github.com/veridium/ves/internal/core/sandbox"
	"github.com/veridium/ves/internal/core/state"
	"github.com/veridium/ves/pkg/interfaces/infrastructure/log"
	"github.com/veridium/ves/pkg/types"
)

// invoker 沙箱调用抽象
//
// 生产实现为 sandbox.Engine；测试中以脚本化实现替换，
// 使账本编排逻辑无需真实WASM模块即可验证。
type invoker interface {
	Execute(ctx context.Context, inv *sandbox.Invocation) (bool, error)
}

// validationRequest 一笔交易的VP验证输入
//
// pre/post 视图与write-log由运行器构造后原样传入，
// 同一请求下所有VP观察到完全一致的状态快照。
type validationRequest struct {
	execID    string
	pre       state.View
	post      state.View
	log       *state.WriteLog
	changed   []types.Key
	verifiers *types.VerifierSet
	txData    []byte
	block     types.BlockContext
	limits    types.ExecLimits
	ioLimit   uint32
}

// validationOutcome VP验证的聚合结果
type validationOutcome struct {
	// verdict 交易级聚合裁决（所有必需地址裁决的逻辑与）
	verdict types.Verdict

	// verdicts 实际完成评估的各地址裁决（按地址有序）
	verdicts []types.Verdict

	// maxGas 并行VP中的最大燃料消耗
	// 各VP持有独立等额预算，交易计费取其最大值
	maxGas uint64
}

// vpRun 单个VP的一次运行记录
type vpRun struct {
	addr    types.Address
	verdict types.Verdict
	gas     uint64
	err     error

	// skipped 因短路取消而未运行
	skipped bool

	// tainted 运行期间被短路取消波及，故障不参与裁决归因
	tainted bool
}

// Evaluator 验证谓词聚合评估器
//
// 🎯 **核心职责**：对一笔交易触达的全部必需地址并行运行VP，
// 并把各裁决聚合为交易级接受或拒绝。
//
// 📋 **评估协议**：
// - 必需地址 = write-log触达地址 ∪ 显式验证者 − 本笔交易初始化的账户
//   （新初始化账户的VP在交易前不存在，无从对本笔交易表态）
// - 各VP持有独立等额燃料预算，互不挤占；交易计费取最大消耗
// - 任一 Reject/Error 即短路取消其余评估；聚合裁决与完成顺序无关
// - 嵌套 eval 与调用方VP共享燃气表，深度由宿主显式计数
type Evaluator struct {
	logger log.Logger
	engine invoker
	loader VpLoader
	config *ledgercfg.Config
}

// NewEvaluator 创建VP评估器
func NewEvaluator(logger log.Logger, engine invoker, loader VpLoader, config *ledgercfg.Config) (*Evaluator, error) {
	if logger == nil {
		return nil, errors.New("logger 不能为 nil")
	}
	if engine == nil {
		return nil, errors.New("engine 不能为 nil")
	}
	if loader == nil {
		return nil, errors.New("vp loader 不能为 nil")
	}
	if config == nil {
		return nil, errors.New("ledger config 不能为 nil")
	}
	return &Evaluator{
		logger: logger,
		engine: engine,
		loader: loader,
		config: config,
	}, nil
}

// Validate 对请求中的全部必需地址运行VP并聚合裁决
//
// 返回错误仅代表宿主自身故障（存储不可用等）；
// VP的拒绝与客体故障都折叠进聚合裁决。
func (ev *Evaluator) Validate(ctx context.Context, req *validationRequest) (*validationOutcome, error) {
	required := requiredAddresses(req.log, req.verifiers)
	if len(required) == 0 {
		return &validationOutcome{verdict: types.Accept()}, nil
	}

	evalCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	workers := ev.config.GetVpWorkers()
	sem := make(chan struct{}, workers)
	runs := make([]vpRun, len(required))

	var wg sync.WaitGroup
	for i, addr := range required {
		wg.Add(1)
		go func(slot int, addr types.Address) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
			case <-evalCtx.Done():
				runs[slot] = vpRun{addr: addr, skipped: true}
				return
			}
			defer func() { <-sem }()

			run := ev.runVp(evalCtx, addr, req)
			if evalCtx.Err() != nil && ctx.Err() == nil && run.verdict.Code == types.VerdictError {
				// 短路取消期间产生的故障无法与真实故障区分，保守排除
				run.tainted = true
			}
			runs[slot] = run

			if !run.verdict.IsAccept() {
				cancel()
			}
		}(i, addr)
	}
	wg.Wait()

	// 外部取消优先于一切裁决
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return ev.aggregate(runs)
}

// aggregate 按地址序把各运行记录折叠为交易级结果
func (ev *Evaluator) aggregate(runs []vpRun) (*validationOutcome, error) {
	out := &validationOutcome{verdict: types.Accept()}

	var firstNonAccept *types.Verdict
	for i := range runs {
		run := &runs[i]
		if run.gas > out.maxGas {
			out.maxGas = run.gas
		}
		if run.skipped || run.tainted {
			continue
		}
		if run.err != nil {
			return nil, run.err
		}
		out.verdicts = append(out.verdicts, run.verdict)
		if !run.verdict.IsAccept() && firstNonAccept == nil {
			v := run.verdict
			firstNonAccept = &v
		}
	}

	if firstNonAccept == nil {
		// 存在短路取消但触发者被标记污染的罕见时序：
		// 回退到全部记录中按地址序最早的非接受裁决
		for i := range runs {
			run := &runs[i]
			if run.skipped || run.verdict.IsAccept() {
				continue
			}
			v := run.verdict
			firstNonAccept = &v
			break
		}
	}
	if firstNonAccept != nil {
		out.verdict = *firstNonAccept
	}
	return out, nil
}

// runVp 对单个地址完整运行一次VP
func (ev *Evaluator) runVp(ctx context.Context, addr types.Address, req *validationRequest) vpRun {
	started := time.Now()
	run := vpRun{addr: addr}

	code, err := ev.loader.Load(ctx, addr)
	if err != nil {
		run.verdict = types.VerdictErr(addr, types.ErrKindInternal, err.Error())
		run.err = err
		return run
	}
	if code == nil {
		// 必需地址没有VP属于配置性硬故障：无裁决者即无授权
		run.verdict = types.VerdictErr(addr, types.ErrKindMissingVpModule,
			"地址缺少验证谓词模块")
		observeVpRun(run.verdict, time.Since(started))
		return run
	}

	input := types.NewVpInput(addr, req.txData, req.changed, req.verifiers)
	rawInput, err := input.Encode()
	if err != nil {
		run.verdict = types.VerdictErr(addr, types.ErrKindInternal, err.Error())
		run.err = err
		return run
	}

	meter := sandbox.NewGasMeter(req.limits.MaxGas)
	env := host.NewVpEnv(host.Params{
		ExecID:  req.execID,
		Logger:  ev.logger,
		Meter:   meter,
		Block:   req.block,
		IOLimit: req.ioLimit,
	}, addr, req.pre, req.post, 0, ev.config.GetMaxEvalDepth(), ev.nestedEvalFn(req))
	defer env.Close()

	accept, execErr := ev.engine.Execute(ctx, &sandbox.Invocation{
		Module:  code,
		Entry:   sandbox.EntryValidateTx,
		Input:   rawInput,
		Limits:  req.limits,
		HostFns: env.HostFunctions(),
		Sink:    env,
	})
	run.gas = meter.Consumed()
	run.verdict = classifyVpOutcome(addr, accept, execErr)
	if execErr != nil {
		// 宿主内部故障升级为交易级错误；客体侧故障折叠进裁决即可
		if f, ok := sandbox.AsFault(execErr); ok {
			if f.Kind == types.ErrKindInternal {
				run.err = f
			}
		} else {
			run.err = execErr
		}
	}

	observeVpRun(run.verdict, time.Since(started))
	return run
}

// classifyVpOutcome 把一次沙箱调用结果转成VP裁决
func classifyVpOutcome(addr types.Address, accept bool, execErr error) types.Verdict {
	if execErr == nil {
		if accept {
			v := types.Accept()
			v.Address = addr
			return v
		}
		return types.Reject(addr, "验证谓词否决本次状态变更")
	}
	if f, ok := sandbox.AsFault(execErr); ok {
		return types.VerdictErr(addr, f.Kind, f.Detail)
	}
	return types.VerdictErr(addr, types.ErrKindInternal, execErr.Error())
}

// nestedEvalFn 构造嵌套评估回调
//
// 被评估VP经 eval 触发的下级VP与上级共享燃气表、共享状态快照，
// 深度与回调一起逐级传递。
func (ev *Evaluator) nestedEvalFn(req *validationRequest) host.EvalFn {
	return func(ctx context.Context, addr types.Address, input []byte, depth uint32, meter *sandbox.GasMeter) (bool, error) {
		code, err := ev.loader.Load(ctx, addr)
		if err != nil {
			return false, sandbox.WrapFault(types.ErrKindInternal, "装载嵌套VP失败", err)
		}
		if code == nil {
			return false, sandbox.Faultf(types.ErrKindMissingVpModule,
				"地址 %s 缺少验证谓词模块", addr)
		}

		env := host.NewVpEnv(host.Params{
			ExecID:  req.execID,
			Logger:  ev.logger,
			Meter:   meter,
			Block:   req.block,
			IOLimit: req.ioLimit,
		}, addr, req.pre, req.post, depth, ev.config.GetMaxEvalDepth(), ev.nestedEvalFn(req))
		defer env.Close()

		return ev.engine.Execute(ctx, &sandbox.Invocation{
			Module:  code,
			Entry:   sandbox.EntryValidateTx,
			Input:   input,
			Limits:  req.limits,
			HostFns: env.HostFunctions(),
			Sink:    env,
		})
	}
}

// requiredAddresses 计算需要评估VP的地址集合
//
// 触达地址与显式验证者取并集；本笔交易初始化的账户除外，
// 其VP在交易前不存在，无从对本笔交易表态。
func requiredAddresses(wlog *state.WriteLog, verifiers *types.VerifierSet) []types.Address {
	seen := make(map[types.Address]struct{})
	for _, addr := range wlog.TouchedAddresses() {
		seen[addr] = struct{}{}
	}
	for _, addr := range verifiers.Snapshot() {
		seen[addr] = struct{}{}
	}
	for _, addr := range wlog.InitializedAccounts() {
		delete(seen, addr)
	}

	required := make([]types.Address, 0, len(seen))
	for addr := range seen {
		required = append(required, addr)
	}
	sort.Slice(required, func(i, j int) bool { return required[i] < required[j] })
	return required
}
