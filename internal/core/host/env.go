// Package host 实现客体代码可见的宿主函数面
//
// 🎯 **设计目的**：
// 为沙箱内的交易模块与VP模块提供受控的宿主能力：
// 状态读写（经write-log覆盖层）、前缀迭代、验证者登记、
// 事件发射、链上元数据查询、嵌套VP评估。
//
// 🏗️ **实现策略**：
// - 每次执行创建独立 Env（TxEnv / VpEnv），无跨执行共享状态
// - 宿主函数为闭包，捕获本次执行的 Env，由引擎注册到 env 模块
// - 变长宿主→客体数据走结果缓冲协议：调用暂存并返回长度，
//   客体按长度分配后用 result_fetch 一次取走
// - 故障通过 abort（记录+panic）传播，引擎边界 recover 并归类
//
// 🔒 **并发安全**：
// - 单个 Env 只被一条同步调用链使用（客体为单线程）
// - 并行VP各持独立 Env 与独立燃气表，互不可见
package host

import (
	"fmt"

	"github.com/tetratelabs/wazero/api"

	"github.com/veridium/ves/internal/core/sandbox"
	"github.com/veridium/ves/pkg/interfaces/infrastructure/log"
	storageIface "github.com/veridium/ves/pkg/interfaces/infrastructure/storage"
	"github.com/veridium/ves/pkg/types"
)

// KVPair iter_next 经结果缓冲返回的键值对（RLP编码）
type KVPair struct {
	Key   string
	Value []byte
}

// Params 创建执行环境的公共参数
type Params struct {
	// ExecID 本次执行的标识（日志用）
	ExecID string

	// Logger 日志服务
	Logger log.Logger

	// Meter 本次执行的燃气表
	Meter *sandbox.GasMeter

	// Block 确定性区块视图快照
	Block types.BlockContext

	// IOLimit 单次客体↔宿主数据搬运的字节上限（0 表示不限制）
	IOLimit uint32
}

// Env 宿主函数面的公共基座
//
// 持有结果缓冲、迭代器登记表与故障记录。
// TxEnv / VpEnv 在其上挂接各自上下文专属的函数。
type Env struct {
	execID  string
	logger  log.Logger
	meter   *sandbox.GasMeter
	block   types.BlockContext
	ioLimit uint32

	resultBuf []byte

	iters    map[uint32]storageIface.StateIterator
	nextIter uint32

	fault *sandbox.Fault
}

// 编译时检查：Env 满足引擎的故障槽接口
var _ sandbox.FaultSink = (*Env)(nil)

func newEnv(p Params) *Env {
	return &Env{
		execID:  p.ExecID,
		logger:  p.Logger,
		meter:   p.Meter,
		block:   p.Block,
		ioLimit: p.IOLimit,
		iters:   make(map[uint32]storageIface.StateIterator),
		// 句柄从1开始，0 保留为无效句柄
		nextIter: 1,
	}
}

// RecordedFault 返回本次执行记录的宿主故障（无则为 nil）
func (e *Env) RecordedFault() *sandbox.Fault {
	return e.fault
}

// GasConsumed 返回本次执行已消耗的燃气
func (e *Env) GasConsumed() uint64 {
	return e.meter.Consumed()
}

// Meter 返回本次执行使用的燃气表
func (e *Env) Meter() *sandbox.GasMeter {
	return e.meter
}

// Close 释放登记的迭代器
func (e *Env) Close() error {
	var firstErr error
	for handle, it := range e.iters {
		if err := it.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("关闭迭代器 %d 失败: %w", handle, err)
		}
	}
	e.iters = make(map[uint32]storageIface.StateIterator)
	return firstErr
}

// ==================== 故障传播 ====================

// abort 记录故障并中止客体执行
//
// panic 由 wazero 转为 Call 错误，引擎在边界处优先取回这里记录的故障。
func (e *Env) abort(f *sandbox.Fault) {
	e.fault = f
	panic(f)
}

// abortErr 将非故障错误作为内部故障中止
//
// internal 类故障表示宿主侧异常（如存储后端错误），
// 上层将其与客体引发的拒绝区分处理。
func (e *Env) abortErr(context string, err error) {
	if f, ok := sandbox.AsFault(err); ok {
		e.abort(f)
	}
	e.abort(sandbox.WrapFault(types.ErrKindInternal, context, err))
}

// charge 扣减燃气，超限时中止
func (e *Env) charge(cost uint64) {
	if err := e.meter.Charge(cost); err != nil {
		e.abortErr("燃气扣减失败", err)
	}
}

// ==================== 客体内存访问 ====================

// readGuest 从客体内存拷出数据，越界/超限时中止
func (e *Env) readGuest(mem api.Memory, ptr, length uint32) []byte {
	if e.ioLimit > 0 && length > e.ioLimit {
		e.abort(sandbox.Faultf(types.ErrKindResourceExceeded,
			"客体数据搬运超限: %d 字节 > 上限 %d", length, e.ioLimit))
	}
	data, err := sandbox.ReadGuestMemory(mem, ptr, length)
	if err != nil {
		e.abortErr("读取客体内存失败", err)
	}
	return data
}

// readGuestKey 从客体内存解析存储键，非法编码视为客体故障
func (e *Env) readGuestKey(mem api.Memory, ptr, length uint32) types.Key {
	raw := e.readGuest(mem, ptr, length)
	key, err := types.ParseKey(string(raw))
	if err != nil {
		e.abort(sandbox.Faultf(types.ErrKindTrap, "非法存储键 %q: %v", string(raw), err))
	}
	return key
}

// readGuestAddress 从客体内存解析账户地址
func (e *Env) readGuestAddress(mem api.Memory, ptr, length uint32) types.Address {
	raw := e.readGuest(mem, ptr, length)
	addr, err := types.ParseAddress(string(raw))
	if err != nil {
		e.abort(sandbox.Faultf(types.ErrKindTrap, "非法账户地址 %q: %v", string(raw), err))
	}
	return addr
}

// ==================== 结果缓冲协议 ====================

// stageResult 暂存一段宿主→客体数据，返回其长度
func (e *Env) stageResult(data []byte) uint32 {
	e.resultBuf = data
	return uint32(len(data))
}

// hostResultLen 返回当前暂存数据的长度
func (e *Env) hostResultLen() uint32 {
	return uint32(len(e.resultBuf))
}

// hostResultFetch 将暂存数据写入客体缓冲并清空暂存
//
// 客体缓冲容量不足按内存越界处理：协议要求客体先按返回长度分配。
func (e *Env) hostResultFetch(mem api.Memory, dstPtr, dstCap uint32) uint32 {
	staged := e.resultBuf
	if dstCap < uint32(len(staged)) {
		e.abort(sandbox.Faultf(types.ErrKindInvalidMemory,
			"结果缓冲容量不足: 需要 %d 字节, 客体提供 %d", len(staged), dstCap))
	}
	if err := sandbox.WriteGuestMemory(mem, dstPtr, staged); err != nil {
		e.abortErr("写入客体内存失败", err)
	}
	e.resultBuf = nil
	return uint32(len(staged))
}

// ==================== 迭代器登记 ====================

// registerIter 登记迭代器并分配句柄
func (e *Env) registerIter(it storageIface.StateIterator) uint32 {
	handle := e.nextIter
	e.nextIter++
	e.iters[handle] = it
	return handle
}

// hostIterNext 推进句柄对应的迭代器
//
// 返回暂存键值对（RLP KVPair）的长度；序列耗尽返回 -1 并注销句柄。
func (e *Env) hostIterNext(handle uint32) int64 {
	e.charge(costBase)

	it, ok := e.iters[handle]
	if !ok {
		e.abort(sandbox.Faultf(types.ErrKindTrap, "无效迭代器句柄: %d", handle))
	}

	if !it.Next() {
		if err := it.Error(); err != nil {
			e.abortErr("前缀迭代失败", err)
		}
		delete(e.iters, handle)
		if err := it.Close(); err != nil {
			e.abortErr("关闭迭代器失败", err)
		}
		return -1
	}

	pair := KVPair{Key: string(it.Key()), Value: it.Value()}
	e.charge(uint64(len(pair.Key)+len(pair.Value)) * costIterPerByte)

	encoded, err := EncodeKVPair(&pair)
	if err != nil {
		e.abortErr("编码键值对失败", err)
	}
	return int64(e.stageResult(encoded))
}

// ==================== 公共宿主函数 ====================

// hostChainID 暂存链标识并返回其长度
func (e *Env) hostChainID() uint32 {
	e.charge(costBase)
	return e.stageResult([]byte(e.block.ChainID))
}

// hostBlockHeight 返回当前区块高度
func (e *Env) hostBlockHeight() uint64 {
	e.charge(costBase)
	return e.block.Height
}

// hostBlockTime 返回当前区块时间（Unix秒）
func (e *Env) hostBlockTime() int64 {
	e.charge(costBase)
	return e.block.TimeUnix
}

// hostLogString 转发客体调试日志（不落账）
func (e *Env) hostLogString(mem api.Memory, ptr, length uint32) {
	e.charge(costBase + uint64(length)*costLogPerByte)
	msg := e.readGuest(mem, ptr, length)
	if e.logger != nil {
		e.logger.Debugf("[guest %s] %s", e.execID, string(msg))
	}
}

// forbidden 构造语境禁用调用的故障中止
//
// 对外按 Trap 归类：客体调用了当前语境不允许的宿主函数，
// 等同于客体自身故障，拒绝本次调用。
func (e *Env) forbidden(name, context string) {
	e.abort(sandbox.Faultf(types.ErrKindTrap, "宿主函数 %s 在%s语境中不可用", name, context))
}
