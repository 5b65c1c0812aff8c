package host

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veridium/ves/internal/core/sandbox"
	"github.com/veridium/ves/internal/core/state"
	"github.com/veridium/ves/internal/testutil"
	"github.com/veridium/ves/pkg/types"
)

// ============================================================================
// VpEnv 验证谓词语境宿主函数测试
// ============================================================================

// newVpTestEnv 构造双态视图的VP执行环境
func newVpTestEnv(t *testing.T, store *testutil.MemStateStore, log *state.WriteLog, depth, maxDepth uint32, evalFn EvalFn) (*VpEnv, *sandbox.GasMeter) {
	t.Helper()
	meter := sandbox.NewGasMeter(testGasBudget)
	env := NewVpEnv(Params{
		ExecID:  "test-vp-exec",
		Logger:  testutil.NewTestLogger(),
		Meter:   meter,
		Block:   newTestBlock(),
		IOLimit: 1 << 20,
	}, testutil.MustAddr("alice"), state.NewCommittedView(store), state.NewOverlayView(store, log), depth, maxDepth, evalFn)
	t.Cleanup(func() { _ = env.Close() })
	return env, meter
}

func TestVpEnv_PrePostIsolation(t *testing.T) {
	store := testutil.NewMemStateStore()
	store.Seed("#alice/balance", []byte("100"))
	log := state.NewWriteLog()
	require.NoError(t, log.Write(testutil.MustKey("#alice/balance"), []byte("90")))

	env, _ := newVpTestEnv(t, store, log, 0, 4, nil)
	mem := testutil.NewGuestMemory(1, 4)
	mem.Place(0, []byte("#alice/balance"))

	n := env.hostReadFrom(context.Background(), env.pre, mem, 0, 14)
	require.Equal(t, int64(3), n)
	env.hostResultFetch(mem, 256, 3)
	assert.Equal(t, []byte("100"), mem.Bytes(256, 3), "pre视图应该看到交易前的值")

	n = env.hostReadFrom(context.Background(), env.post, mem, 0, 14)
	require.Equal(t, int64(2), n)
	env.hostResultFetch(mem, 256, 2)
	assert.Equal(t, []byte("90"), mem.Bytes(256, 2), "post视图应该看到write-log应用后的值")
}

func TestVpEnv_HasKeyPrePost(t *testing.T) {
	store := testutil.NewMemStateStore()
	store.Seed("#alice/nonce", []byte("7"))
	log := state.NewWriteLog()
	require.NoError(t, log.Delete(testutil.MustKey("#alice/nonce")))

	env, _ := newVpTestEnv(t, store, log, 0, 4, nil)
	mem := testutil.NewGuestMemory(1, 4)
	mem.Place(0, []byte("#alice/nonce"))

	assert.Equal(t, uint32(1), env.hostHasKeyFrom(context.Background(), env.pre, mem, 0, 12),
		"pre视图中键存在")
	assert.Equal(t, uint32(0), env.hostHasKeyFrom(context.Background(), env.post, mem, 0, 12),
		"post视图中键已删除")
}

func TestVpEnv_IterPrefixPrePost(t *testing.T) {
	store := testutil.NewMemStateStore()
	store.Seed("#alice/orders/1", []byte("a"))
	log := state.NewWriteLog()
	require.NoError(t, log.Write(testutil.MustKey("#alice/orders/2"), []byte("b")))

	env, _ := newVpTestEnv(t, store, log, 0, 4, nil)
	mem := testutil.NewGuestMemory(1, 4)
	prefix := []byte("#alice/orders")
	mem.Place(0, prefix)

	collect := func(view state.View) []string {
		handle := env.hostIterPrefixFrom(context.Background(), view, mem, 0, uint32(len(prefix)))
		var keys []string
		for {
			n := env.hostIterNext(handle)
			if n < 0 {
				break
			}
			copied := env.hostResultFetch(mem, 512, uint32(n))
			pair, err := DecodeKVPair(mem.Bytes(512, copied))
			require.NoError(t, err)
			keys = append(keys, pair.Key)
		}
		return keys
	}

	assert.Equal(t, []string{"#alice/orders/1"}, collect(env.pre), "pre迭代只见已提交键")
	assert.Equal(t, []string{"#alice/orders/1", "#alice/orders/2"}, collect(env.post),
		"post迭代并入覆盖层键")
}

func TestVpEnv_EvalAcceptReject(t *testing.T) {
	var gotAddr types.Address
	var gotInput []byte
	var gotDepth uint32
	evalFn := func(ctx context.Context, addr types.Address, input []byte, depth uint32, meter *sandbox.GasMeter) (bool, error) {
		gotAddr, gotInput, gotDepth = addr, input, depth
		return string(input) == "yes", nil
	}

	env, _ := newVpTestEnv(t, testutil.NewMemStateStore(), state.NewWriteLog(), 0, 4, evalFn)
	mem := testutil.NewGuestMemory(1, 4)
	mem.Place(0, []byte("bob"))
	mem.Place(64, []byte("yes"))

	result := env.hostEval(context.Background(), mem, 0, 3, 64, 3)
	assert.Equal(t, uint32(1), result, "嵌套VP接受应该返回1")
	assert.Equal(t, testutil.MustAddr("bob"), gotAddr)
	assert.Equal(t, []byte("yes"), gotInput)
	assert.Equal(t, uint32(1), gotDepth, "被调VP深度应该是调用方深度+1")

	mem.Place(64, []byte("no!"))
	result = env.hostEval(context.Background(), mem, 0, 3, 64, 3)
	assert.Equal(t, uint32(0), result, "嵌套VP拒绝应该返回0")
}

func TestVpEnv_EvalDepthLimit(t *testing.T) {
	evalFn := func(ctx context.Context, addr types.Address, input []byte, depth uint32, meter *sandbox.GasMeter) (bool, error) {
		t.Fatal("超限时不应该进入嵌套评估")
		return false, nil
	}

	env, _ := newVpTestEnv(t, testutil.NewMemStateStore(), state.NewWriteLog(), 4, 4, evalFn)
	mem := testutil.NewGuestMemory(1, 4)
	mem.Place(0, []byte("bob"))

	fault := captureFault(t, func() {
		env.hostEval(context.Background(), mem, 0, 3, 64, 0)
	})
	assert.Equal(t, types.ErrKindRecursionLimit, fault.Kind, "深度超限应该产生递归上限故障")
}

func TestVpEnv_EvalSharedMeter(t *testing.T) {
	const nestedCost = 12_345
	evalFn := func(ctx context.Context, addr types.Address, input []byte, depth uint32, meter *sandbox.GasMeter) (bool, error) {
		return true, meter.Charge(nestedCost)
	}

	env, meter := newVpTestEnv(t, testutil.NewMemStateStore(), state.NewWriteLog(), 0, 4, evalFn)
	mem := testutil.NewGuestMemory(1, 4)
	mem.Place(0, []byte("bob"))

	env.hostEval(context.Background(), mem, 0, 3, 64, 0)
	assert.Equal(t, costEvalBase+nestedCost, meter.Consumed(),
		"嵌套评估应该与调用方共用同一燃气表")
}

func TestVpEnv_EvalNestedTrapMeansReject(t *testing.T) {
	evalFn := func(ctx context.Context, addr types.Address, input []byte, depth uint32, meter *sandbox.GasMeter) (bool, error) {
		return false, sandbox.NewFault(types.ErrKindTrap, "nested vp trapped")
	}

	env, _ := newVpTestEnv(t, testutil.NewMemStateStore(), state.NewWriteLog(), 0, 4, evalFn)
	mem := testutil.NewGuestMemory(1, 4)
	mem.Place(0, []byte("bob"))

	result := env.hostEval(context.Background(), mem, 0, 3, 64, 0)
	assert.Equal(t, uint32(0), result, "嵌套VP的trap应该折算为拒绝")
	assert.Nil(t, env.RecordedFault(), "保守折算不应该记录故障")
}

func TestVpEnv_EvalResourceFaultPropagates(t *testing.T) {
	evalFn := func(ctx context.Context, addr types.Address, input []byte, depth uint32, meter *sandbox.GasMeter) (bool, error) {
		return false, sandbox.NewFault(types.ErrKindResourceExceeded, "gas budget exhausted")
	}

	env, _ := newVpTestEnv(t, testutil.NewMemStateStore(), state.NewWriteLog(), 0, 4, evalFn)
	mem := testutil.NewGuestMemory(1, 4)
	mem.Place(0, []byte("bob"))

	fault := captureFault(t, func() {
		env.hostEval(context.Background(), mem, 0, 3, 64, 0)
	})
	assert.Equal(t, types.ErrKindResourceExceeded, fault.Kind,
		"嵌套评估的资源故障应该终止整条调用链")
}

func TestVpEnv_EvalInternalErrorAborts(t *testing.T) {
	evalFn := func(ctx context.Context, addr types.Address, input []byte, depth uint32, meter *sandbox.GasMeter) (bool, error) {
		return false, errors.New("storage backend unreachable")
	}

	env, _ := newVpTestEnv(t, testutil.NewMemStateStore(), state.NewWriteLog(), 0, 4, evalFn)
	mem := testutil.NewGuestMemory(1, 4)
	mem.Place(0, []byte("bob"))

	fault := captureFault(t, func() {
		env.hostEval(context.Background(), mem, 0, 3, 64, 0)
	})
	assert.Equal(t, types.ErrKindInternal, fault.Kind, "非故障错误应该按内部故障处理")
}

func TestVpEnv_WriteForbidden(t *testing.T) {
	env, _ := newVpTestEnv(t, testutil.NewMemStateStore(), state.NewWriteLog(), 0, 4, nil)

	for _, name := range []string{"write", "delete", "insert_verifier", "emit_event", "init_account"} {
		fault := captureFault(t, func() {
			env.forbidden(name, "验证谓词")
		})
		assert.Equal(t, types.ErrKindTrap, fault.Kind, "VP语境的写操作应该按Trap处理: %s", name)
		assert.Contains(t, fault.Detail, "验证谓词语境中不可用")
	}
}

func TestVpEnv_Accessors(t *testing.T) {
	env, _ := newVpTestEnv(t, testutil.NewMemStateStore(), state.NewWriteLog(), 2, 4, nil)
	assert.Equal(t, testutil.MustAddr("alice"), env.Owner())
	assert.Equal(t, uint32(2), env.Depth())
}
