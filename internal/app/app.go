package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/fx"

	configmodule "github.com/veridium/ves/internal/config"
	eventmodule "github.com/veridium/ves/internal/core/infrastructure/event"
	logmodule "github.com/veridium/ves/internal/core/infrastructure/log"
	badgermodule "github.com/veridium/ves/internal/core/infrastructure/storage/badger"
	ledgermodule "github.com/veridium/ves/internal/core/ledger"
	"github.com/veridium/ves/pkg/interfaces/config"
	logIface "github.com/veridium/ves/pkg/interfaces/infrastructure/log"
	storageIface "github.com/veridium/ves/pkg/interfaces/infrastructure/storage"
	ledgerIface "github.com/veridium/ves/pkg/interfaces/ledger"
	"github.com/veridium/ves/pkg/types"
)

// 启动与停止的超时上限
// 停止给足60秒，确保BadgerDB完成同步与关闭
const (
	startTimeout = 30 * time.Second
	stopTimeout  = 60 * time.Second
)

// App 是执行核心应用的对外句柄
//
// 装配完成后各组件已就绪，调用方通过访问器取用；
// 用完必须调用Stop释放存储与引擎资源。
type App interface {
	// Runner 交易运行器
	Runner() ledgerIface.Runner

	// Resolver 字节码引用解析器
	Resolver() ledgerIface.ModuleResolver

	// Store 已提交状态存储
	Store() storageIface.StateStore

	// Logger 日志记录器
	Logger() logIface.Logger

	// Provider 配置提供者
	Provider() config.Provider

	// Stop 停止应用并释放资源
	Stop() error
}

// internalApp 应用的内部实现
type internalApp struct {
	fxApp    *fx.App
	runner   ledgerIface.Runner
	resolver ledgerIface.ModuleResolver
	store    storageIface.StateStore
	logger   logIface.Logger
	provider config.Provider
}

func (a *internalApp) Runner() ledgerIface.Runner           { return a.runner }
func (a *internalApp) Resolver() ledgerIface.ModuleResolver { return a.resolver }
func (a *internalApp) Store() storageIface.StateStore       { return a.store }
func (a *internalApp) Logger() logIface.Logger              { return a.logger }
func (a *internalApp) Provider() config.Provider            { return a.provider }

// Stop 停止应用（包括所有生命周期钩子）
func (a *internalApp) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()

	if err := a.fxApp.Stop(ctx); err != nil {
		return fmt.Errorf("停止应用失败: %w", err)
	}
	return nil
}

// Start 装配并启动执行核心应用
//
// 配置按 文件 < 命令行覆盖 的优先级合成，
// 装配前执行强制配置校验，失败立即返回而不启动任何组件。
func Start(appOptions ...Option) (App, error) {
	opts := newOptions(appOptions...)

	// 1. 合成最终用户配置
	appConfig := &types.AppConfig{}
	if opts.configFilePath != "" {
		fileConfig, err := LoadAppConfig(opts.configFilePath)
		if err != nil {
			return nil, err
		}
		appConfig = fileConfig
	}
	opts.appConfig = overlayAppConfig(appConfig, opts.overrides)

	// 2. 强制配置校验（链标识等缺失时快速失败）
	if err := configmodule.ValidateMandatoryConfig(opts.appConfig); err != nil {
		return nil, err
	}

	// 3. 装配fx应用并抽取对外组件
	app := &internalApp{}

	app.fxApp = fx.New(
		fx.NopLogger,

		// 应用配置选项，供config模块使用
		fx.Provide(func() config.AppOptions { return opts }),

		// 基础设施层
		configmodule.Module(),
		logmodule.Module(),

		// 数据层
		eventmodule.Module(),
		badgermodule.Module(),

		// 执行核心
		ledgermodule.Module(),

		fx.Populate(&app.runner, &app.resolver, &app.store, &app.logger, &app.provider),
	)

	startCtx, cancel := context.WithTimeout(context.Background(), startTimeout)
	defer cancel()

	if err := app.fxApp.Start(startCtx); err != nil {
		return nil, fmt.Errorf("启动应用失败: %w", err)
	}

	return app, nil
}
