package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veridium/ves/pkg/types"
)

// testAppConfig 返回内存存储的最小可启动配置
func testAppConfig() *types.AppConfig {
	return &types.AppConfig{
		Chain: &types.UserChainConfig{
			ChainID: types.StringPtr("ves-test-1"),
		},
		Storage: &types.UserStorageConfig{
			InMemory: types.BoolPtr(true),
		},
		Log: &types.UserLogConfig{
			Level: types.StringPtr("error"),
		},
	}
}

// TestStartAndStop 测试完整装配与优雅停止
func TestStartAndStop(t *testing.T) {
	application, err := Start(WithAppConfig(testAppConfig()))
	require.NoError(t, err, "内存模式下应用应能完整启动")

	assert.NotNil(t, application.Runner(), "运行器应已装配")
	assert.NotNil(t, application.Resolver(), "解析器应已装配")
	assert.NotNil(t, application.Store(), "存储应已装配")
	assert.NotNil(t, application.Logger(), "日志记录器应已装配")
	assert.NotNil(t, application.Provider(), "配置提供者应已装配")

	assert.Equal(t, "ves-test-1", application.Provider().GetChainID())

	require.NoError(t, application.Stop(), "停止应释放所有资源")
}

// TestStartRejectsMissingChainID 测试缺少链标识时的快速失败
func TestStartRejectsMissingChainID(t *testing.T) {
	_, err := Start()
	require.Error(t, err, "缺少链标识应拒绝启动")
	assert.Contains(t, err.Error(), "chain.chain_id")
}

// TestStartRejectsInvalidConfig 测试非法配置值的快速失败
func TestStartRejectsInvalidConfig(t *testing.T) {
	cfg := testAppConfig()
	cfg.Ledger = &types.UserLedgerConfig{VpWorkers: types.IntPtr(0)}

	_, err := Start(WithAppConfig(cfg))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ledger.vp_workers")
}

// TestExecuteTxThroughFullStack 测试经完整装配栈执行交易
func TestExecuteTxThroughFullStack(t *testing.T) {
	application, err := Start(WithAppConfig(testAppConfig()))
	require.NoError(t, err)
	defer func() {
		require.NoError(t, application.Stop())
	}()

	blockCtx := types.BlockContext{
		ChainID:  "ves-test-1",
		Height:   1,
		TimeUnix: time.Now().Unix(),
	}

	// 无法解码的字节应折叠为decode类拒绝，而不是宿主错误
	result, err := application.Runner().ExecuteTx(context.Background(), []byte{0x01, 0x02, 0x03}, blockCtx)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, types.TxRejected, result.Status)
	require.NotNil(t, result.Reason)
	assert.Equal(t, types.ErrKindDecode, result.Reason.Kind)
}

// TestStartWithConfigFile 测试配置文件加载与命令行覆盖的优先级
func TestStartWithConfigFile(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	content := "chain:\n" +
		"  chain_id: ves-file-1\n" +
		"storage:\n" +
		"  in_memory: true\n" +
		"log:\n" +
		"  level: error\n"
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0o600))

	application, err := Start(
		WithConfigFile(configPath),
		WithChainID("ves-override-1"),
	)
	require.NoError(t, err)
	defer func() {
		require.NoError(t, application.Stop())
	}()

	assert.Equal(t, "ves-override-1", application.Provider().GetChainID(),
		"命令行覆盖应优先于配置文件")
	assert.True(t, application.Provider().GetBadger().InMemory,
		"配置文件中的存储设置应保留")
}

// TestLoadAppConfig 测试YAML配置文件解析
func TestLoadAppConfig(t *testing.T) {
	t.Run("完整配置解析", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.yaml")
		content := "app_name: ves-node\n" +
			"data_dir: /var/lib/ves\n" +
			"environment: test\n" +
			"chain:\n" +
			"  chain_id: ves-main-1\n" +
			"ledger:\n" +
			"  max_gas: 200000\n" +
			"  vp_workers: 2\n" +
			"sandbox:\n" +
			"  compilation_mode: interpreter\n"
		require.NoError(t, os.WriteFile(configPath, []byte(content), 0o600))

		cfg, err := LoadAppConfig(configPath)
		require.NoError(t, err)

		require.NotNil(t, cfg.AppName)
		assert.Equal(t, "ves-node", *cfg.AppName)
		require.NotNil(t, cfg.DataDir)
		assert.Equal(t, "/var/lib/ves", *cfg.DataDir)
		require.NotNil(t, cfg.Chain)
		require.NotNil(t, cfg.Chain.ChainID)
		assert.Equal(t, "ves-main-1", *cfg.Chain.ChainID)
		require.NotNil(t, cfg.Ledger)
		require.NotNil(t, cfg.Ledger.MaxGas)
		assert.Equal(t, uint64(200000), *cfg.Ledger.MaxGas)
		require.NotNil(t, cfg.Ledger.VpWorkers)
		assert.Equal(t, 2, *cfg.Ledger.VpWorkers)
		require.NotNil(t, cfg.Sandbox)
		require.NotNil(t, cfg.Sandbox.CompilationMode)
		assert.Equal(t, "interpreter", *cfg.Sandbox.CompilationMode)

		assert.Nil(t, cfg.Storage, "未出现的部分应保持nil以便采用默认值")
	})

	t.Run("文件不存在报错", func(t *testing.T) {
		_, err := LoadAppConfig(filepath.Join(t.TempDir(), "missing.yaml"))
		require.Error(t, err)
	})

	t.Run("空路径报错", func(t *testing.T) {
		_, err := LoadAppConfig("")
		require.Error(t, err)
	})

	t.Run("非法YAML报错", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "bad.yaml")
		require.NoError(t, os.WriteFile(configPath, []byte("chain: [unclosed"), 0o600))

		_, err := LoadAppConfig(configPath)
		require.Error(t, err)
	})
}

// TestOverlayAppConfig 测试配置叠加规则
func TestOverlayAppConfig(t *testing.T) {
	base := &types.AppConfig{
		DataDir: types.StringPtr("/base"),
		Chain: &types.UserChainConfig{
			ChainID: types.StringPtr("base-chain"),
		},
	}
	overlay := &types.AppConfig{
		DataDir: types.StringPtr("/override"),
	}

	merged := overlayAppConfig(base, overlay)

	require.NotNil(t, merged.DataDir)
	assert.Equal(t, "/override", *merged.DataDir, "覆盖配置的非nil字段应生效")
	require.NotNil(t, merged.Chain)
	assert.Equal(t, "base-chain", *merged.Chain.ChainID, "未覆盖的字段应保留基础值")

	assert.Same(t, base.Chain, overlayAppConfig(base, nil).Chain, "无覆盖时应返回基础配置内容")
}
