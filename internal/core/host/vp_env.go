package host

import (
	"context"

	"github.com/tetratelabs/wazero/api"

	"github.com/veridium/ves/internal/core/sandbox"
	"github.com/veridium/ves/internal/core/state"
	"github.com/veridium/ves/pkg/types"
)

// EvalFn 嵌套VP评估回调
//
// 由账本层注入：对同一write-log快照评估目标地址的VP。
// depth 为被调VP的递归深度；meter 与调用方VP共享（限定总工作量）。
type EvalFn func(ctx context.Context, addr types.Address, input []byte, depth uint32, meter *sandbox.GasMeter) (bool, error)

// VpEnv 验证谓词语境的宿主函数面
//
// 只读双态视图：pre 为交易前已提交状态，post 为write-log应用后的状态。
// 普通 read/has_key/iter_prefix 在VP语境下等同 post 变体。
type VpEnv struct {
	*Env

	owner types.Address
	pre   state.View
	post  state.View

	depth    uint32
	maxDepth uint32
	evalFn   EvalFn
}

// NewVpEnv 创建VP执行环境
//
// depth 为本VP的递归深度（顶层为0）；evalFn 为 nil 时 eval 按语境禁用处理。
func NewVpEnv(p Params, owner types.Address, pre, post state.View, depth, maxDepth uint32, evalFn EvalFn) *VpEnv {
	return &VpEnv{
		Env:      newEnv(p),
		owner:    owner,
		pre:      pre,
		post:     post,
		depth:    depth,
		maxDepth: maxDepth,
		evalFn:   evalFn,
	}
}

// Owner 返回本VP绑定的账户地址
func (e *VpEnv) Owner() types.Address {
	return e.owner
}

// Depth 返回本VP的递归深度
func (e *VpEnv) Depth() uint32 {
	return e.depth
}

// Pre 返回交易前视图
func (e *VpEnv) Pre() state.View {
	return e.pre
}

// Post 返回交易后视图
func (e *VpEnv) Post() state.View {
	return e.post
}

// ==================== 双态读取 ====================

// hostReadFrom 从指定视图读取，返回暂存长度或 -1
func (e *VpEnv) hostReadFrom(ctx context.Context, view state.View, mem api.Memory, keyPtr, keyLen uint32) int64 {
	e.charge(costBase)
	key := e.readGuestKey(mem, keyPtr, keyLen)

	value, err := view.Read(ctx, key)
	if err != nil {
		e.abortErr("读取状态失败", err)
	}
	if value == nil {
		return -1
	}
	e.charge(uint64(len(value)) * costReadPerByte)
	return int64(e.stageResult(value))
}

// hostHasKeyFrom 对指定视图做存在性检查
func (e *VpEnv) hostHasKeyFrom(ctx context.Context, view state.View, mem api.Memory, keyPtr, keyLen uint32) uint32 {
	e.charge(costBase)
	key := e.readGuestKey(mem, keyPtr, keyLen)

	exists, err := view.Has(ctx, key)
	if err != nil {
		e.abortErr("查询状态失败", err)
	}
	if exists {
		return 1
	}
	return 0
}

// hostIterPrefixFrom 在指定视图上创建前缀迭代器
func (e *VpEnv) hostIterPrefixFrom(ctx context.Context, view state.View, mem api.Memory, prefixPtr, prefixLen uint32) uint32 {
	e.charge(costBase)
	prefix := e.readGuestKey(mem, prefixPtr, prefixLen)

	it, err := view.IteratePrefix(ctx, prefix)
	if err != nil {
		e.abortErr("创建前缀迭代器失败", err)
	}
	return e.registerIter(it)
}

// ==================== 嵌套评估 ====================

// hostEval 对目标地址的VP做嵌套评估
//
// 深度计数在宿主侧显式维护，超限为一等故障而非栈耗尽。
// 嵌套评估与本VP共享燃气表；资源类故障向上传播终止整条调用链，
// 其余嵌套故障按保守语义折算为拒绝。
func (e *VpEnv) hostEval(ctx context.Context, mem api.Memory, addrPtr, addrLen, inputPtr, inputLen uint32) uint32 {
	e.charge(costEvalBase)
	nextDepth := e.evalGuard()

	addr := e.readGuestAddress(mem, addrPtr, addrLen)
	input := e.readGuest(mem, inputPtr, inputLen)
	return e.evalDecoded(ctx, addr, input, nextDepth)
}

// Eval 以宿主原生参数执行嵌套评估
//
// 与客体经由线性内存调用 eval 语义一致，供宿主侧直接复用。
func (e *VpEnv) Eval(ctx context.Context, addr types.Address, input []byte) uint32 {
	e.charge(costEvalBase)
	nextDepth := e.evalGuard()
	return e.evalDecoded(ctx, addr, input, nextDepth)
}

// evalGuard 校验嵌套评估的可用性与深度预算
func (e *VpEnv) evalGuard() uint32 {
	if e.evalFn == nil {
		e.forbidden("eval", "当前")
	}
	nextDepth := e.depth + 1
	if nextDepth > e.maxDepth {
		e.abort(sandbox.Faultf(types.ErrKindRecursionLimit,
			"嵌套VP评估深度超限: %d > 上限 %d", nextDepth, e.maxDepth))
	}
	return nextDepth
}

// evalDecoded 在地址与输入都已解出后执行嵌套评估
func (e *VpEnv) evalDecoded(ctx context.Context, addr types.Address, input []byte, nextDepth uint32) uint32 {
	accept, err := e.evalFn(ctx, addr, input, nextDepth, e.meter)
	if err != nil {
		if f, ok := sandbox.AsFault(err); ok {
			switch f.Kind {
			case types.ErrKindResourceExceeded, types.ErrKindRecursionLimit, types.ErrKindInternal:
				e.abort(f)
			default:
				// 嵌套VP自身的故障（trap、缺失模块等）折算为拒绝
				if e.logger != nil {
					e.logger.Debugf("嵌套VP评估 %s 故障按拒绝处理: %v", addr, f)
				}
				return 0
			}
		}
		e.abortErr("嵌套VP评估失败", err)
	}
	if accept {
		return 1
	}
	return 0
}

// ==================== 函数注册表 ====================

// HostFunctions 返回VP语境的 env 模块函数映射
//
// 写类函数注册为禁用桩：VP是纯判定者，不产生副作用。
func (e *VpEnv) HostFunctions() map[string]interface{} {
	return map[string]interface{}{
		// 双态状态访问（普通形式等同 post 变体）
		"read": func(ctx context.Context, m api.Module, keyPtr, keyLen uint32) int64 {
			return e.hostReadFrom(ctx, e.post, m.Memory(), keyPtr, keyLen)
		},
		"read_pre": func(ctx context.Context, m api.Module, keyPtr, keyLen uint32) int64 {
			return e.hostReadFrom(ctx, e.pre, m.Memory(), keyPtr, keyLen)
		},
		"read_post": func(ctx context.Context, m api.Module, keyPtr, keyLen uint32) int64 {
			return e.hostReadFrom(ctx, e.post, m.Memory(), keyPtr, keyLen)
		},
		"has_key": func(ctx context.Context, m api.Module, keyPtr, keyLen uint32) uint32 {
			return e.hostHasKeyFrom(ctx, e.post, m.Memory(), keyPtr, keyLen)
		},
		"has_key_pre": func(ctx context.Context, m api.Module, keyPtr, keyLen uint32) uint32 {
			return e.hostHasKeyFrom(ctx, e.pre, m.Memory(), keyPtr, keyLen)
		},
		"has_key_post": func(ctx context.Context, m api.Module, keyPtr, keyLen uint32) uint32 {
			return e.hostHasKeyFrom(ctx, e.post, m.Memory(), keyPtr, keyLen)
		},
		"iter_prefix": func(ctx context.Context, m api.Module, prefixPtr, prefixLen uint32) uint32 {
			return e.hostIterPrefixFrom(ctx, e.post, m.Memory(), prefixPtr, prefixLen)
		},
		"iter_prefix_pre": func(ctx context.Context, m api.Module, prefixPtr, prefixLen uint32) uint32 {
			return e.hostIterPrefixFrom(ctx, e.pre, m.Memory(), prefixPtr, prefixLen)
		},
		"iter_prefix_post": func(ctx context.Context, m api.Module, prefixPtr, prefixLen uint32) uint32 {
			return e.hostIterPrefixFrom(ctx, e.post, m.Memory(), prefixPtr, prefixLen)
		},
		"iter_next": func(ctx context.Context, m api.Module, handle uint32) int64 {
			return e.hostIterNext(handle)
		},

		// 嵌套评估
		"eval": func(ctx context.Context, m api.Module, addrPtr, addrLen, inputPtr, inputLen uint32) uint32 {
			return e.hostEval(ctx, m.Memory(), addrPtr, addrLen, inputPtr, inputLen)
		},

		// 链上元数据
		"get_chain_id": func(ctx context.Context, m api.Module) uint32 {
			return e.hostChainID()
		},
		"get_block_height": func(ctx context.Context, m api.Module) uint64 {
			return e.hostBlockHeight()
		},
		"get_block_time": func(ctx context.Context, m api.Module) int64 {
			return e.hostBlockTime()
		},

		// 结果缓冲协议
		"result_len": func(ctx context.Context, m api.Module) uint32 {
			return e.hostResultLen()
		},
		"result_fetch": func(ctx context.Context, m api.Module, dstPtr, dstCap uint32) uint32 {
			return e.hostResultFetch(m.Memory(), dstPtr, dstCap)
		},

		// 调试日志
		"log_string": func(ctx context.Context, m api.Module, ptr, length uint32) {
			e.hostLogString(m.Memory(), ptr, length)
		},

		// 交易专属函数在VP语境注册为禁用桩
		"write": func(ctx context.Context, m api.Module, keyPtr, keyLen, valPtr, valLen uint32) {
			e.forbidden("write", "验证谓词")
		},
		"delete": func(ctx context.Context, m api.Module, keyPtr, keyLen uint32) {
			e.forbidden("delete", "验证谓词")
		},
		"insert_verifier": func(ctx context.Context, m api.Module, addrPtr, addrLen uint32) {
			e.forbidden("insert_verifier", "验证谓词")
		},
		"init_account": func(ctx context.Context, m api.Module, addrPtr, addrLen, codePtr, codeLen uint32) {
			e.forbidden("init_account", "验证谓词")
		},
		"emit_event": func(ctx context.Context, m api.Module, evPtr, evLen uint32) {
			e.forbidden("emit_event", "验证谓词")
		},
	}
}
