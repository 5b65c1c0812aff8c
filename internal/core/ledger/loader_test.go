package ledger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ledgercfg "github.com/veridium/ves/internal/config/ledger"
	"github.com/veridium/ves/internal/testutil"
	"github.com/veridium/ves/pkg/types"
)

func newTestLoader(t *testing.T) (*CachedVpLoader, *testutil.MemStateStore) {
	t.Helper()
	store := testutil.NewMemStateStore()
	loader, err := NewCachedVpLoader(testutil.NewTestLogger(), store, ledgercfg.New(nil))
	require.NoError(t, err)
	t.Cleanup(func() { _ = loader.Close() })
	return loader, store
}

func TestCachedVpLoader_ServesFromCacheUntilInvalidated(t *testing.T) {
	loader, store := newTestLoader(t)
	alice := testutil.MustAddr("alice")
	store.Seed(types.VpKey(alice).String(), []byte("vp-v1"))

	code, err := loader.Load(context.Background(), alice)
	require.NoError(t, err)
	assert.Equal(t, []byte("vp-v1"), code)

	// 底层替换后若无失效通知，继续回吐缓存副本
	store.Seed(types.VpKey(alice).String(), []byte("vp-v2"))
	code, err = loader.Load(context.Background(), alice)
	require.NoError(t, err)
	assert.Equal(t, []byte("vp-v1"), code, "未失效前读到缓存的旧字节码")

	loader.Invalidate(alice)
	code, err = loader.Load(context.Background(), alice)
	require.NoError(t, err)
	assert.Equal(t, []byte("vp-v2"), code, "失效后读到新字节码")
}

func TestCachedVpLoader_MissingNotCached(t *testing.T) {
	loader, store := newTestLoader(t)
	bob := testutil.MustAddr("bob")

	code, err := loader.Load(context.Background(), bob)
	require.NoError(t, err)
	assert.Nil(t, code, "缺失VP返回nil而非错误")

	// 缺失不做负缓存：随后出现的VP立即可见
	store.Seed(types.VpKey(bob).String(), []byte("vp-bob"))
	code, err = loader.Load(context.Background(), bob)
	require.NoError(t, err)
	assert.Equal(t, []byte("vp-bob"), code)
}

func TestCachedVpLoader_InvalidateUnknownAddress(t *testing.T) {
	loader, _ := newTestLoader(t)
	assert.NotPanics(t, func() {
		loader.Invalidate(testutil.MustAddr("stranger"))
	})
}

// ============================================================================
// 字节码解析器
// ============================================================================

func TestStorageModuleResolver_RoundTrip(t *testing.T) {
	store := testutil.NewMemStateStore()
	resolver, err := NewStorageModuleResolver(store)
	require.NoError(t, err)

	module := []byte("stored-wasm-module")
	hash := types.HashBytes(module)
	store.Seed(CodeKey(hash).String(), module)

	code, err := resolver.ResolveModule(context.Background(), hash)
	require.NoError(t, err)
	assert.Equal(t, module, code)

	missing, err := resolver.ResolveModule(context.Background(), types.HashBytes([]byte("other")))
	require.NoError(t, err)
	assert.Nil(t, missing, "未存储的哈希返回nil而非错误")
}

func TestCodeKey(t *testing.T) {
	hash := types.HashBytes([]byte("module"))
	key := CodeKey(hash)
	assert.Equal(t, "code/"+hash.Hex(), key.String())
}
