package sandbox

// 沙箱引擎配置默认值
const (
	// defaultCompilationMode 默认使用编译器模式
	// 原因：编译器模式的执行性能远高于解释器，主流平台均受支持
	// 不支持的平台可通过配置回退到解释器模式
	defaultCompilationMode = "compiler"

	// defaultExecutionTimeoutSeconds 单次客体调用墙钟上限设为10秒
	// 原因：确定性预算由燃料计费承担，墙钟超时只是宿主对
	// 病态字节码（如纯计算死循环）的最后一道自保护
	defaultExecutionTimeoutSeconds = 10

	// defaultMaxGuestIOBytes 单次客体IO上限设为16MB
	// 原因：限制客体单次向宿主传入/取回的数据量，
	// 防止恶意模块通过超大参数耗尽宿主内存
	defaultMaxGuestIOBytes = 16 * 1024 * 1024
)
