package ledger

import (
	"context"
	"fmt"

	"go.uber.org/fx"

	ledgercfg "github.com/veridium/ves/internal/config/ledger"
	sandboxcfg "github.com/veridium/ves/internal/config/sandbox"
	"github.com/veridium/ves/internal/core/sandbox"
	configIface "github.com/veridium/ves/pkg/interfaces/config"
	eventIface "github.com/veridium/ves/pkg/interfaces/infrastructure/event"
	"github.com/veridium/ves/pkg/interfaces/infrastructure/log"
	storageIface "github.com/veridium/ves/pkg/interfaces/infrastructure/storage"
	ledgerIface "github.com/veridium/ves/pkg/interfaces/ledger"
)

// ModuleInput 定义账本模块的输入依赖
type ModuleInput struct {
	fx.In

	Provider  configIface.Provider
	Logger    log.Logger
	Store     storageIface.StateStore
	Bus       eventIface.Bus `optional:"true"` // 事件总线（可选）
	Lifecycle fx.Lifecycle
}

// ModuleOutput 定义账本模块的输出服务
type ModuleOutput struct {
	fx.Out

	Runner   ledgerIface.Runner
	Resolver ledgerIface.ModuleResolver
}

// ProvideServices 组装账本执行核心
//
// 沙箱引擎与VP装载器是模块私有件，只有运行器接口对外暴露。
func ProvideServices(input ModuleInput) (ModuleOutput, error) {
	ledgerConfig := ledgercfg.NewFromProvider(input.Provider)
	sandboxConfig := sandboxcfg.NewFromProvider(input.Provider)

	engine, err := sandbox.NewEngine(input.Logger, sandboxConfig)
	if err != nil {
		return ModuleOutput{}, fmt.Errorf("创建沙箱引擎失败: %w", err)
	}

	loader, err := NewCachedVpLoader(input.Logger, input.Store, ledgerConfig)
	if err != nil {
		return ModuleOutput{}, fmt.Errorf("创建VP装载器失败: %w", err)
	}

	resolver, err := NewStorageModuleResolver(input.Store)
	if err != nil {
		return ModuleOutput{}, fmt.Errorf("创建字节码解析器失败: %w", err)
	}

	evaluator, err := NewEvaluator(input.Logger, engine, loader, ledgerConfig)
	if err != nil {
		return ModuleOutput{}, fmt.Errorf("创建VP评估器失败: %w", err)
	}

	runner, err := NewRunner(input.Logger, input.Store, engine, evaluator,
		loader, resolver, input.Bus, ledgerConfig)
	if err != nil {
		return ModuleOutput{}, fmt.Errorf("创建交易运行器失败: %w", err)
	}

	input.Lifecycle.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			if err := engine.Close(); err != nil {
				input.Logger.Warnf("关闭沙箱引擎失败: %v", err)
			}
			return loader.Close()
		},
	})

	return ModuleOutput{
		Runner:   runner,
		Resolver: resolver,
	}, nil
}

// Module 返回账本模块
func Module() fx.Option {
	return fx.Module("ledger",
		fx.Provide(ProvideServices),
	)
}
