package host

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veridium/ves/internal/core/state"
	"github.com/veridium/ves/internal/testutil"
	"github.com/veridium/ves/pkg/types"
)

// ============================================================================
// TxEnv 交易语境宿主函数测试
// ============================================================================

func TestTxEnv_ReadAbsent(t *testing.T) {
	env, _ := newTxTestEnv(t, testutil.NewMemStateStore())
	mem := testutil.NewGuestMemory(1, 4)

	mem.Place(0, []byte("#alice/balance"))
	n := env.hostRead(context.Background(), mem, 0, 14)
	assert.Equal(t, int64(-1), n, "不存在的键应该返回 -1")
}

func TestTxEnv_ReadYourWrites(t *testing.T) {
	store := testutil.NewMemStateStore()
	store.Seed("#alice/balance", []byte("100"))
	env, _ := newTxTestEnv(t, store)
	mem := testutil.NewGuestMemory(1, 4)

	key := []byte("#alice/balance")
	mem.Place(0, key)
	mem.Place(64, []byte("90"))

	// 写入前读到已提交值
	n := env.hostRead(context.Background(), mem, 0, uint32(len(key)))
	require.Equal(t, int64(3), n)
	env.hostResultFetch(mem, 128, 3)
	assert.Equal(t, []byte("100"), mem.Bytes(128, 3))

	// 写入后读到write-log中的新值
	env.hostWrite(mem, 0, uint32(len(key)), 64, 2)
	n = env.hostRead(context.Background(), mem, 0, uint32(len(key)))
	require.Equal(t, int64(2), n, "写入后应该读到覆盖层的值")
	env.hostResultFetch(mem, 128, 2)
	assert.Equal(t, []byte("90"), mem.Bytes(128, 2))

	// 删除后读不到
	env.hostDelete(mem, 0, uint32(len(key)))
	n = env.hostRead(context.Background(), mem, 0, uint32(len(key)))
	assert.Equal(t, int64(-1), n, "删除后应该返回 -1")
}

func TestTxEnv_HasKey(t *testing.T) {
	store := testutil.NewMemStateStore()
	store.Seed("#alice/balance", []byte("100"))
	env, _ := newTxTestEnv(t, store)
	mem := testutil.NewGuestMemory(1, 4)

	mem.Place(0, []byte("#alice/balance"))
	assert.Equal(t, uint32(1), env.hostHasKey(context.Background(), mem, 0, 14))

	mem.Place(64, []byte("#alice/nonce"))
	assert.Equal(t, uint32(0), env.hostHasKey(context.Background(), mem, 64, 12))
}

func TestTxEnv_DeleteVpKeyForbidden(t *testing.T) {
	env, _ := newTxTestEnv(t, testutil.NewMemStateStore())
	mem := testutil.NewGuestMemory(1, 4)

	vpKey := []byte("#alice/?vp")
	mem.Place(0, vpKey)
	fault := captureFault(t, func() {
		env.hostDelete(mem, 0, uint32(len(vpKey)))
	})
	assert.Equal(t, types.ErrKindTrap, fault.Kind)
	assert.Contains(t, fault.Detail, "验证谓词")
}

func TestTxEnv_IterPrefixMerged(t *testing.T) {
	store := testutil.NewMemStateStore()
	store.Seed("#dex/orders/1", []byte("committed-1"))
	store.Seed("#dex/orders/3", []byte("committed-3"))
	env, _ := newTxTestEnv(t, store)
	mem := testutil.NewGuestMemory(1, 4)

	// 覆盖层写入 orders/2，删除 orders/3
	require.NoError(t, env.view.Log().Write(testutil.MustKey("#dex/orders/2"), []byte("pending-2")))
	require.NoError(t, env.view.Log().Delete(testutil.MustKey("#dex/orders/3")))

	prefix := []byte("#dex/orders")
	mem.Place(0, prefix)
	handle := env.hostIterPrefix(context.Background(), mem, 0, uint32(len(prefix)))
	require.NotZero(t, handle, "句柄应该从1开始分配")

	var got []KVPair
	for {
		n := env.hostIterNext(handle)
		if n < 0 {
			break
		}
		copied := env.hostResultFetch(mem, 512, uint32(n))
		pair, err := DecodeKVPair(mem.Bytes(512, copied))
		require.NoError(t, err)
		got = append(got, *pair)
	}

	require.Len(t, got, 2, "合并迭代应该产出2个键值对")
	assert.Equal(t, "#dex/orders/1", got[0].Key)
	assert.Equal(t, []byte("committed-1"), got[0].Value)
	assert.Equal(t, "#dex/orders/2", got[1].Key, "覆盖层新增的键应该并入序列")
	assert.Equal(t, []byte("pending-2"), got[1].Value)
}

func TestTxEnv_InsertVerifier(t *testing.T) {
	store := testutil.NewMemStateStore()
	verifiers := types.NewVerifierSet()
	env := NewTxEnv(Params{
		ExecID: "test-exec",
		Logger: testutil.NewTestLogger(),
		Meter:  newTestMeter(),
		Block:  newTestBlock(),
	}, state.NewOverlayView(store, state.NewWriteLog()), verifiers)
	mem := testutil.NewGuestMemory(1, 4)

	mem.Place(0, []byte("charlie"))
	env.hostInsertVerifier(mem, 0, 7)

	assert.True(t, verifiers.Contains(testutil.MustAddr("charlie")), "地址应该进入验证者集合")
}

func TestTxEnv_InitAccount(t *testing.T) {
	env, _ := newTxTestEnv(t, testutil.NewMemStateStore())
	mem := testutil.NewGuestMemory(1, 4)

	mem.Place(0, []byte("newacct"))
	mem.Place(64, []byte{0x00, 0x61, 0x73, 0x6d})
	env.hostInitAccount(mem, 0, 7, 64, 4)

	log := env.view.Log()
	assert.True(t, log.IsInitialized(testutil.MustAddr("newacct")))
	value, _, present := log.Lookup(types.VpKey(testutil.MustAddr("newacct")))
	require.True(t, present, "VP元数据键应该进入write-log")
	assert.Equal(t, []byte{0x00, 0x61, 0x73, 0x6d}, value)

	// 同一交易内重复初始化视为客体故障
	fault := captureFault(t, func() {
		env.hostInitAccount(mem, 0, 7, 64, 4)
	})
	assert.Equal(t, types.ErrKindTrap, fault.Kind)
}

func TestTxEnv_EmitEvent(t *testing.T) {
	env, meter := newTxTestEnv(t, testutil.NewMemStateStore())
	mem := testutil.NewGuestMemory(1, 4)

	event := types.NewEvent("transfer",
		types.EventAttribute{Key: "from", Value: "alice"},
		types.EventAttribute{Key: "to", Value: "bob"},
	)
	raw, err := event.Encode()
	require.NoError(t, err)

	mem.Place(0, raw)
	before := meter.Consumed()
	env.hostEmitEvent(mem, 0, uint32(len(raw)))

	events := env.Events()
	require.Len(t, events, 1)
	assert.Equal(t, "transfer", events[0].Type)
	from, ok := events[0].Get("from")
	require.True(t, ok)
	assert.Equal(t, "alice", from)
	assert.Equal(t, before+costBase+uint64(len(raw))*costEventPerByte, meter.Consumed(),
		"事件应该按编码长度计费")
}

func TestTxEnv_EmitEventInvalidEncoding(t *testing.T) {
	env, _ := newTxTestEnv(t, testutil.NewMemStateStore())
	mem := testutil.NewGuestMemory(1, 4)

	mem.Place(0, []byte{0xff, 0xfe, 0xfd})
	fault := captureFault(t, func() {
		env.hostEmitEvent(mem, 0, 3)
	})
	assert.Equal(t, types.ErrKindTrap, fault.Kind)
	assert.Contains(t, fault.Detail, "事件")
}

func TestTxEnv_EmitEventCap(t *testing.T) {
	store := testutil.NewMemStateStore()
	env := NewTxEnv(Params{
		ExecID: "test-exec",
		Logger: testutil.NewTestLogger(),
		Meter:  newTestMeterWithBudget(1 << 30),
		Block:  newTestBlock(),
	}, state.NewOverlayView(store, state.NewWriteLog()), types.NewVerifierSet())
	mem := testutil.NewGuestMemory(1, 4)

	event := types.NewEvent("tick")
	raw, err := event.Encode()
	require.NoError(t, err)
	mem.Place(0, raw)

	for i := 0; i < MaxEventsPerTx; i++ {
		env.hostEmitEvent(mem, 0, uint32(len(raw)))
	}
	fault := captureFault(t, func() {
		env.hostEmitEvent(mem, 0, uint32(len(raw)))
	})
	assert.Equal(t, types.ErrKindResourceExceeded, fault.Kind, "超过事件上限应该产生资源超限故障")
	assert.Len(t, env.Events(), MaxEventsPerTx)
}

func TestTxEnv_VpOnlyFunctionsForbidden(t *testing.T) {
	env, _ := newTxTestEnv(t, testutil.NewMemStateStore())

	for _, name := range []string{"eval", "read_pre", "read_post"} {
		fault := captureFault(t, func() {
			env.forbidden(name, "交易")
		})
		assert.Equal(t, types.ErrKindTrap, fault.Kind, "语境禁用调用应该按Trap处理: %s", name)
		assert.Contains(t, fault.Detail, fmt.Sprintf("宿主函数 %s", name))
	}
}
