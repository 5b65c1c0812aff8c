// Package ledger 实现账本执行核心
//
// 🎯 **核心职责**：交易的完整生命周期编排
//
// 一笔交易沿固定管线流动：
//
//	解码 -> 沙箱执行交易代码（副作用进write-log） ->
//	并行VP验证（pre/post双态视图） -> 原子提交或整体丢弃
//
// 🏗️ **架构定位**：
// - 上接 pkg/interfaces/ledger 的 Runner 抽象，供共识/RPC层调用
// - 下铺 internal/core/{sandbox,host,state}，不直接触碰WASM细节
// - 同一运行器上的交易严格串行；VP评估在交易内部并行
//
// 🔒 **不变量**：
// - 已提交存储只在交易被接受后经单次WriteBatch变更
// - 拒绝的交易不留下任何可观察的状态痕迹
// - VP装载总是读交易前的已提交状态（旧VP裁决换VP的交易）
package ledger

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	ledgercfg "github.com/veridium/ves/internal/config/ledger"
	"github.com/veridium/ves/internal/core/host"
	"github.com/veridium/ves/internal/core/sandbox"
	"github.com/veridium/ves/internal/core/state"
	eventIface "github.com/veridium/ves/pkg/interfaces/infrastructure/event"
	"github.com/veridium/ves/pkg/interfaces/infrastructure/log"
	storageIface "github.com/veridium/ves/pkg/interfaces/infrastructure/storage"
	ledgerIface "github.com/veridium/ves/pkg/interfaces/ledger"
	"github.com/veridium/ves/pkg/types"
)

// Runner 交易运行器
type Runner struct {
	logger    log.Logger
	store     storageIface.StateStore
	engine    invoker
	evaluator *Evaluator
	loader    VpLoader
	resolver  ledgerIface.ModuleResolver
	bus       eventIface.Bus
	config    *ledgercfg.Config

	// mu 串行化落盘执行：账本状态一次只被一笔交易推进
	mu sync.Mutex
}

var _ ledgerIface.Runner = (*Runner)(nil)

// NewRunner 创建交易运行器
//
// resolver 为 nil 时哈希引用交易按解码故障拒绝；
// bus 为 nil 时不发布生命周期事件。
func NewRunner(
	logger log.Logger,
	store storageIface.StateStore,
	engine invoker,
	evaluator *Evaluator,
	loader VpLoader,
	resolver ledgerIface.ModuleResolver,
	bus eventIface.Bus,
	config *ledgercfg.Config,
) (*Runner, error) {
	if logger == nil {
		return nil, errors.New("logger 不能为 nil")
	}
	if store == nil {
		return nil, errors.New("state store 不能为 nil")
	}
	if engine == nil {
		return nil, errors.New("engine 不能为 nil")
	}
	if evaluator == nil {
		return nil, errors.New("evaluator 不能为 nil")
	}
	if loader == nil {
		return nil, errors.New("vp loader 不能为 nil")
	}
	if config == nil {
		return nil, errors.New("ledger config 不能为 nil")
	}
	return &Runner{
		logger:    logger,
		store:     store,
		engine:    engine,
		evaluator: evaluator,
		loader:    loader,
		resolver:  resolver,
		bus:       bus,
		config:    config,
	}, nil
}

// ExecuteTx 执行一笔交易并落盘（或拒绝）
func (r *Runner) ExecuteTx(ctx context.Context, rawTx []byte, blockCtx types.BlockContext) (*types.TxResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	started := time.Now()
	result, err := r.execute(ctx, rawTx, blockCtx, true)
	if err != nil {
		return nil, err
	}

	observeTxResult(result, time.Since(started))
	r.publish(result)
	return result, nil
}

// DryRunTx 以只读方式执行一笔交易
//
// 不取运行器互斥锁：dry-run只读已提交状态，
// 与正在落盘的交易之间由存储后端保证读一致性。
func (r *Runner) DryRunTx(ctx context.Context, rawTx []byte, blockCtx types.BlockContext) (*types.TxResult, error) {
	return r.execute(ctx, rawTx, blockCtx, false)
}

// execute 走完解码、沙箱执行、VP验证与（可选的）原子提交
func (r *Runner) execute(ctx context.Context, rawTx []byte, blockCtx types.BlockContext, commit bool) (*types.TxResult, error) {
	if err := blockCtx.Validate(); err != nil {
		return nil, fmt.Errorf("区块上下文非法: %w", err)
	}

	txHash := types.HashBytes(rawTx)
	execID := uuid.NewString()
	logger := r.logger.With("exec_id", execID, "tx", txHash.String())

	// ==================== 解码阶段 ====================

	envelope, err := types.DecodeTxEnvelope(rawTx)
	if err != nil {
		logger.Debugf("交易解码失败: %v", err)
		return rejectedResult(txHash, types.ErrKindDecode, err.Error(), 0), nil
	}

	code, codeReason, err := r.resolveCode(ctx, envelope)
	if err != nil {
		return nil, err
	}
	if codeReason != nil {
		logger.Debugf("字节码引用解析失败: %s", codeReason.Detail)
		return &types.TxResult{TxHash: txHash, Status: types.TxRejected, Reason: codeReason}, nil
	}

	limits := r.resolveLimits(envelope)
	ioLimit := guestIOLimit(limits)

	// ==================== 执行阶段 ====================

	wlog := state.NewWriteLog()
	overlay := state.NewOverlayView(r.store, wlog)
	verifiers := types.NewVerifierSet()
	meter := sandbox.NewGasMeter(limits.MaxGas)

	txEnv := host.NewTxEnv(host.Params{
		ExecID:  execID,
		Logger:  r.logger,
		Meter:   meter,
		Block:   blockCtx,
		IOLimit: ioLimit,
	}, overlay, verifiers)
	defer txEnv.Close()

	accepted, execErr := r.engine.Execute(ctx, &sandbox.Invocation{
		Module:  code,
		Entry:   sandbox.EntryApplyTx,
		Input:   envelope.Data,
		Limits:  limits,
		HostFns: txEnv.HostFunctions(),
		Sink:    txEnv,
	})
	if execErr != nil {
		if f, isFault := sandbox.AsFault(execErr); isFault && f.Kind != types.ErrKindInternal {
			logger.Debugf("交易代码故障: kind=%s, detail=%s", f.Kind, f.Detail)
			return rejectedResult(txHash, f.Kind, f.Detail, meter.Consumed()), nil
		}
		return nil, fmt.Errorf("交易沙箱执行失败: %w", execErr)
	}
	if !accepted {
		logger.Debugf("交易代码拒绝了本次执行")
		return &types.TxResult{
			TxHash:  txHash,
			Status:  types.TxRejected,
			Reason:  &types.RejectReason{Detail: "交易代码拒绝了本次执行"},
			GasUsed: meter.Consumed(),
		}, nil
	}

	// ==================== 验证阶段 ====================

	changed := wlog.ChangedKeys()
	outcome, err := r.evaluator.Validate(ctx, &validationRequest{
		execID:    execID,
		pre:       state.NewCommittedView(r.store),
		post:      overlay,
		log:       wlog,
		changed:   changed,
		verifiers: verifiers,
		txData:    envelope.Data,
		block:     blockCtx,
		limits:    limits,
		ioLimit:   ioLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("VP验证失败: %w", err)
	}

	// 交易执行与VP验证分别计费：VP并行互不挤占，计最大消耗
	gasUsed := meter.Consumed() + outcome.maxGas

	if !outcome.verdict.IsAccept() {
		v := outcome.verdict
		logger.Debugf("VP验证未通过: %s", v)
		return &types.TxResult{
			TxHash:      txHash,
			Status:      types.TxRejected,
			Reason:      &types.RejectReason{Kind: v.Kind, Address: v.Address, Detail: v.Detail},
			Verdicts:    outcome.verdicts,
			ChangedKeys: changed,
			GasUsed:     gasUsed,
		}, nil
	}

	// ==================== 提交阶段 ====================

	if commit {
		if err := r.store.WriteBatch(ctx, wlog.Mutations()); err != nil {
			return nil, fmt.Errorf("原子提交失败: %w", err)
		}
		r.invalidateVps(changed)
		logger.Debugf("交易已提交: keys=%d, events=%d, gas=%d",
			len(changed), len(txEnv.Events()), gasUsed)
	}

	return &types.TxResult{
		TxHash:              txHash,
		Status:              types.TxCommitted,
		Verdicts:            outcome.verdicts,
		Events:              txEnv.Events(),
		ChangedKeys:         changed,
		InitializedAccounts: wlog.InitializedAccounts(),
		GasUsed:             gasUsed,
	}, nil
}

// resolveCode 取回交易要执行的模块字节码
//
// 返回的三元组恰好一个非零：代码、拒绝原因、或宿主错误。
func (r *Runner) resolveCode(ctx context.Context, envelope *types.TxEnvelope) ([]byte, *types.RejectReason, error) {
	if len(envelope.Code) > 0 {
		return envelope.Code, nil, nil
	}

	var codeHash types.Hash
	copy(codeHash[:], envelope.CodeHash)

	if r.resolver == nil {
		return nil, &types.RejectReason{
			Kind:   types.ErrKindDecode,
			Detail: fmt.Sprintf("未配置字节码解析器，无法解析引用 %s", codeHash),
		}, nil
	}
	code, err := r.resolver.ResolveModule(ctx, codeHash)
	if err != nil {
		return nil, nil, fmt.Errorf("解析字节码引用失败: %w", err)
	}
	if code == nil {
		return nil, &types.RejectReason{
			Kind:   types.ErrKindDecode,
			Detail: fmt.Sprintf("代码哈希引用无法解析: %s", codeHash),
		}, nil
	}
	return code, nil, nil
}

// resolveLimits 合成本次执行的资源限额
//
// 交易可声明更小的燃料预算，但永远不能超过链级上限。
func (r *Runner) resolveLimits(envelope *types.TxEnvelope) types.ExecLimits {
	maxGas := r.config.GetMaxGas()
	if envelope.GasLimit != 0 && envelope.GasLimit < maxGas {
		maxGas = envelope.GasLimit
	}
	return types.ExecLimits{
		MaxGas:         maxGas,
		MaxMemoryPages: r.config.GetMaxMemoryPages(),
	}
}

// invalidateVps 对提交中触达VP存储键的地址做缓存失效并广播
func (r *Runner) invalidateVps(changed []types.Key) {
	for _, key := range changed {
		owner, ok := key.VpOwner()
		if !ok {
			continue
		}
		r.loader.Invalidate(owner)
		if r.bus != nil {
			r.bus.Publish(eventIface.TopicVpUpdated, owner)
		}
	}
}

// publish 发布交易终态事件
func (r *Runner) publish(result *types.TxResult) {
	if r.bus == nil {
		return
	}
	if result.IsCommitted() {
		r.bus.Publish(eventIface.TopicTxCommitted, result)
	} else {
		r.bus.Publish(eventIface.TopicTxRejected, result)
	}
}

// rejectedResult 构造带故障类别的拒绝结果
func rejectedResult(txHash types.Hash, kind types.ErrKind, detail string, gas uint64) *types.TxResult {
	return &types.TxResult{
		TxHash:  txHash,
		Status:  types.TxRejected,
		Reason:  &types.RejectReason{Kind: kind, Detail: detail},
		GasUsed: gas,
	}
}

// guestIOLimit 单次宿主内存搬运上限，与线性内存体量对齐
func guestIOLimit(limits types.ExecLimits) uint32 {
	const pageSize = 64 * 1024
	total := uint64(limits.MaxMemoryPages) * pageSize
	if total > math.MaxUint32 {
		return math.MaxUint32
	}
	return uint32(total)
}
