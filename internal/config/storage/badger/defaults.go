package badger

// BadgerDB存储默认配置值
// 这些默认值基于BadgerDB的最佳实践和账本状态存储的访问模式

const (
	// === 基础配置 ===

	// defaultPath 默认数据库路径
	// 原因：统一的数据目录便于管理和备份；相对路径在应用启动时解析
	defaultPath = "./data/badger"

	// defaultInMemory 默认使用磁盘模式
	// 原因：已提交状态必须持久化；内存模式仅供测试显式开启
	defaultInMemory = false

	// defaultSyncWrites 默认启用同步写入
	// 原因：账本提交需要强一致性，同步写入确保宣告提交的状态重启后仍在
	// 虽然性能略有损失，但数据完整性更重要
	defaultSyncWrites = true

	// === 性能配置 ===

	// defaultMemTableSize 默认内存表大小为64MB
	// 原因：64MB提供良好的读写性能，适合账本键值的访问模式
	// 平衡内存使用和I/O性能
	defaultMemTableSize = 64 << 20 // 64MB

	// defaultBlockCacheMB 默认块缓存64MB
	// 原因：VP字节码与账户状态的热点读走缓存，64MB在查询性能
	// 和常驻内存之间取得平衡
	defaultBlockCacheMB = 64

	// defaultIndexCacheMB 默认索引缓存64MB
	// 原因：前缀迭代（账户遍历、VP扫描）依赖索引，与块缓存对等配置
	defaultIndexCacheMB = 64
)
