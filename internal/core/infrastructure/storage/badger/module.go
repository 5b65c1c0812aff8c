package badger

import (
	"context"

	"go.uber.org/fx"

	badgerconfig "github.com/veridium/ves/internal/config/storage/badger"
	configIface "github.com/veridium/ves/pkg/interfaces/config"
	"github.com/veridium/ves/pkg/interfaces/infrastructure/log"
	storageIface "github.com/veridium/ves/pkg/interfaces/infrastructure/storage"
)

// ModuleParams 定义存储模块的依赖参数
type ModuleParams struct {
	fx.In

	Provider  configIface.Provider
	Logger    log.Logger
	Lifecycle fx.Lifecycle
}

// ModuleOutput 定义存储模块的输出结构
type ModuleOutput struct {
	fx.Out

	Store storageIface.StateStore
}

// ProvideServices 创建状态存储服务
//
// 应用停止时通过生命周期钩子关闭数据库，确保已提交状态完整落盘。
func ProvideServices(params ModuleParams) (ModuleOutput, error) {
	config := badgerconfig.NewFromProvider(params.Provider)

	store, err := New(config, params.Logger)
	if err != nil {
		return ModuleOutput{}, err
	}

	params.Lifecycle.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			params.Logger.Info("正在关闭状态存储...")
			return store.Close()
		},
	})

	return ModuleOutput{Store: store}, nil
}

// Module 返回存储模块
func Module() fx.Option {
	return fx.Module("storage",
		fx.Provide(ProvideServices),
	)
}
