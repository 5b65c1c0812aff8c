// Package event 提供VES系统的事件总线接口定义
//
// 🎯 **事件总线系统 (Event Bus System)**
//
// 本文件定义了VES系统的进程内事件总线接口，支持：
// - 交易终态事件的订阅和发布
// - 同步与异步事件处理
// - 等待异步处理完成的屏障
package event

// 交易生命周期主题
const (
	// TopicTxCommitted 交易提交主题，载荷为 *types.TxResult
	TopicTxCommitted = "ledger:tx_committed"

	// TopicTxRejected 交易拒绝主题，载荷为 *types.TxResult
	TopicTxRejected = "ledger:tx_rejected"

	// TopicVpUpdated VP字节码变更主题，载荷为 types.Address
	TopicVpUpdated = "ledger:vp_updated"
)

// Bus 事件总线接口
//
// 事件总线专注于高效可靠的事件传递与订阅者管理；
// 生命周期由DI容器自动管理。
type Bus interface {
	// Subscribe 订阅主题（同步处理）
	Subscribe(topic string, handler interface{}) error

	// SubscribeAsync 异步订阅主题
	// transactional 为true时同一订阅者的处理串行化
	SubscribeAsync(topic string, handler interface{}, transactional bool) error

	// SubscribeOnce 一次性订阅主题
	SubscribeOnce(topic string, handler interface{}) error

	// Publish 发布事件到主题
	Publish(topic string, args ...interface{})

	// Unsubscribe 取消订阅
	Unsubscribe(topic string, handler interface{}) error

	// HasCallback 检查主题是否有订阅者
	HasCallback(topic string) bool

	// WaitAsync 等待所有异步处理完成
	WaitAsync()
}
