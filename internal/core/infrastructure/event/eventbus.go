// 基于asaskevich/EventBus的进程内事件总线实现
package event

import (
	"fmt"
	"sync/atomic"

	evbus "github.com/asaskevich/EventBus"

	eventconfig "github.com/veridium/ves/internal/config/event"
	eventIface "github.com/veridium/ves/pkg/interfaces/infrastructure/event"
)

// EventBus 基于asaskevich/EventBus实现Bus接口
//
// 在底层总线之上补充两点：
// - 配置开关：事件系统关闭时订阅与发布静默成为空操作
// - 订阅上限：按已登记订阅近似计数，防止订阅泄漏拖垮事件分发
//   （一次性订阅触发后自动移除，计数不追踪其消亡，上限因此是软性的）
type EventBus struct {
	bus    evbus.Bus
	config *eventconfig.Config

	subscribers atomic.Int64
}

var _ eventIface.Bus = (*EventBus)(nil)

// New 创建事件总线实例
// 所有事件总线实例必须通过此函数创建，确保配置被正确应用
func New(config *eventconfig.Config) *EventBus {
	return &EventBus{
		bus:    evbus.New(),
		config: config,
	}
}

// admitSubscriber 检查并登记一个新订阅
func (eb *EventBus) admitSubscriber() error {
	max := eb.config.GetMaxSubscribers()
	if max > 0 && eb.subscribers.Load() >= int64(max) {
		return fmt.Errorf("订阅者数量已达上限 %d", max)
	}
	eb.subscribers.Add(1)
	return nil
}

// Subscribe 订阅主题（同步处理）
func (eb *EventBus) Subscribe(topic string, handler interface{}) error {
	if !eb.config.IsEnabled() {
		return nil // 事件系统未启用时静默成功
	}
	if err := eb.admitSubscriber(); err != nil {
		return err
	}
	return eb.bus.Subscribe(topic, handler)
}

// SubscribeAsync 异步订阅主题
// transactional 为true时同一订阅者的处理串行化
func (eb *EventBus) SubscribeAsync(topic string, handler interface{}, transactional bool) error {
	if !eb.config.IsEnabled() {
		return nil
	}
	if err := eb.admitSubscriber(); err != nil {
		return err
	}
	return eb.bus.SubscribeAsync(topic, handler, transactional)
}

// SubscribeOnce 一次性订阅主题
func (eb *EventBus) SubscribeOnce(topic string, handler interface{}) error {
	if !eb.config.IsEnabled() {
		return nil
	}
	if err := eb.admitSubscriber(); err != nil {
		return err
	}
	return eb.bus.SubscribeOnce(topic, handler)
}

// Publish 发布事件到主题
func (eb *EventBus) Publish(topic string, args ...interface{}) {
	if !eb.config.IsEnabled() {
		return
	}
	eb.bus.Publish(topic, args...)
}

// Unsubscribe 取消订阅
func (eb *EventBus) Unsubscribe(topic string, handler interface{}) error {
	if !eb.config.IsEnabled() {
		return nil
	}
	if err := eb.bus.Unsubscribe(topic, handler); err != nil {
		return err
	}
	eb.subscribers.Add(-1)
	return nil
}

// HasCallback 检查主题是否有订阅者
func (eb *EventBus) HasCallback(topic string) bool {
	if !eb.config.IsEnabled() {
		return false
	}
	return eb.bus.HasCallback(topic)
}

// WaitAsync 等待所有异步处理完成
func (eb *EventBus) WaitAsync() {
	if !eb.config.IsEnabled() {
		return
	}
	eb.bus.WaitAsync()
}
