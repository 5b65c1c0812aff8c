package ledger

// 账本执行配置默认值
const (
	// defaultMaxGas 单笔交易默认燃气上限
	// 原因：封装未携带限额时的兜底值；携带限额的交易取
	// min(请求值, 本上限)，保证单笔工作量有界
	defaultMaxGas = 10_000_000

	// defaultMaxMemoryPages 客体线性内存默认上限设为256页（16MB）
	// 原因：状态机类模块的工作集远小于此值，超配只会
	// 放大恶意模块的内存勒索空间
	defaultMaxMemoryPages = 256

	// defaultMaxEvalDepth 嵌套VP评估深度默认上限设为8
	// 原因：正常业务的委托谓词链很短，8层足以覆盖；
	// 深度上限防止循环eval在燃气耗尽前堆积宿主调用栈
	defaultMaxEvalDepth = 8

	// defaultVpWorkers 并行VP评估默认4个工作协程
	// 原因：VP相互只读隔离可安全并行，聚合语义与顺序无关；
	// 并行度过高对小交易只增加调度开销
	defaultVpWorkers = 4

	// defaultVpCacheMB VP字节码缓存默认64MB
	// 原因：热点账户的谓词反复执行，缓存省去每笔交易的
	// 存储读取；提交时按变更键精确失效
	defaultVpCacheMB = 64
)
