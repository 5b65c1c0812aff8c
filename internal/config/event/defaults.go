package event

// 事件系统默认配置值
const (
	// defaultEnabled 默认启用事件系统
	// 原因：交易终态与VP变更通知是执行层对外的主要信号，
	// 默认启用保证订阅方（索引、监控）正常工作
	defaultEnabled = true

	// defaultMaxSubscribers 默认最大订阅者数量设为1000
	// 原因：限制订阅者数量避免事件分发成为性能瓶颈；
	// 1000足以覆盖进程内各模块的订阅需求
	defaultMaxSubscribers = 1000
)
