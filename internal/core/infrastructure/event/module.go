// Package event 提供事件管理功能
package event

import (
	"context"

	"go.uber.org/fx"

	eventconfig "github.com/veridium/ves/internal/config/event"
	configIface "github.com/veridium/ves/pkg/interfaces/config"
	eventIface "github.com/veridium/ves/pkg/interfaces/infrastructure/event"
	"github.com/veridium/ves/pkg/interfaces/infrastructure/log"
)

// ModuleInput 事件模块输入依赖
type ModuleInput struct {
	fx.In

	Provider  configIface.Provider
	Logger    log.Logger `optional:"true"` // 日志记录器（可选）
	Lifecycle fx.Lifecycle
}

// ModuleOutput 事件模块输出服务
type ModuleOutput struct {
	fx.Out

	Bus eventIface.Bus
}

// ProvideServices 创建事件总线服务
//
// 应用停止时等待异步订阅者处理完毕，已发布的事件不会被关闭吞掉。
func ProvideServices(input ModuleInput) (ModuleOutput, error) {
	config := eventconfig.NewFromProvider(input.Provider)
	bus := New(config)

	input.Lifecycle.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			if input.Logger != nil {
				input.Logger.Info("等待事件总线异步处理完成...")
			}
			bus.WaitAsync()
			return nil
		},
	})

	return ModuleOutput{Bus: bus}, nil
}

// Module 返回事件模块
func Module() fx.Option {
	return fx.Module("event",
		fx.Provide(ProvideServices),
	)
}
