// Package types provides configuration type definitions.
package types

// AppConfig 应用程序根配置
// 只包含JSON配置文件解析所需的结构，不包含任何内部字段
// 默认值和完整配置结构在 internal/config/*/defaults.go 和 internal/config/*/config.go 中定义
type AppConfig struct {
	// 应用程序基本信息
	AppName *string `json:"app_name,omitempty" yaml:"app_name"` // 应用名称
	DataDir *string `json:"data_dir,omitempty" yaml:"data_dir"` // 数据目录路径

	// Environment 运行环境：dev | test | prod
	// 只影响日志级别、默认路径等运维属性，不影响执行语义
	Environment *string `json:"environment,omitempty" yaml:"environment"`

	// 链环境配置 - 对应配置文件中的 chain 字段
	Chain *UserChainConfig `json:"chain,omitempty" yaml:"chain"`

	// 状态存储配置
	Storage *UserStorageConfig `json:"storage,omitempty" yaml:"storage"`

	// 日志配置
	Log *UserLogConfig `json:"log,omitempty" yaml:"log"`

	// 沙箱引擎配置
	Sandbox *UserSandboxConfig `json:"sandbox,omitempty" yaml:"sandbox"`

	// 账本执行配置
	Ledger *UserLedgerConfig `json:"ledger,omitempty" yaml:"ledger"`
}

// UserChainConfig 用户链环境配置
type UserChainConfig struct {
	ChainID *string `json:"chain_id,omitempty" yaml:"chain_id"` // 链标识
}

// UserStorageConfig 用户状态存储配置
type UserStorageConfig struct {
	Path       *string `json:"path,omitempty" yaml:"path"`               // 数据库目录
	InMemory   *bool   `json:"in_memory,omitempty" yaml:"in_memory"`     // 纯内存模式（测试用）
	SyncWrites *bool   `json:"sync_writes,omitempty" yaml:"sync_writes"` // 每次提交同步刷盘
}

// UserLogConfig 用户日志配置
type UserLogConfig struct {
	Level    *string `json:"level,omitempty" yaml:"level"`         // 日志级别 (debug, info, warn, error, fatal)
	FilePath *string `json:"file_path,omitempty" yaml:"file_path"` // 日志文件路径
}

// UserSandboxConfig 用户沙箱引擎配置
type UserSandboxConfig struct {
	// CompilationMode 编译模式：compiler | interpreter
	CompilationMode *string `json:"compilation_mode,omitempty" yaml:"compilation_mode"`

	// ExecutionTimeoutSeconds 单次客体调用的墙钟安全上限（秒）
	// 确定性预算由燃料控制，超时仅作为宿主自保护
	ExecutionTimeoutSeconds *int `json:"execution_timeout_seconds,omitempty" yaml:"execution_timeout_seconds"`

	// MaxGuestIOBytes 单次客体读写宿主数据的字节上限
	MaxGuestIOBytes *uint32 `json:"max_guest_io_bytes,omitempty" yaml:"max_guest_io_bytes"`
}

// UserLedgerConfig 用户账本执行配置
type UserLedgerConfig struct {
	MaxGas         *uint64 `json:"max_gas,omitempty" yaml:"max_gas"`                   // 默认燃料预算
	MaxMemoryPages *uint32 `json:"max_memory_pages,omitempty" yaml:"max_memory_pages"` // 客体内存页上限
	MaxEvalDepth   *uint32 `json:"max_eval_depth,omitempty" yaml:"max_eval_depth"`     // 嵌套求值深度上限
	VpWorkers      *int    `json:"vp_workers,omitempty" yaml:"vp_workers"`             // VP并行验证工作协程数
	VpCacheMB      *int    `json:"vp_cache_mb,omitempty" yaml:"vp_cache_mb"`           // VP字节码缓存大小(MB)
}

// 配置辅助函数
// 这些函数帮助创建指针类型的配置值，区分"未设置"和"设置为零值"

// BoolPtr 创建bool指针，用于明确表示用户设置了该值
func BoolPtr(v bool) *bool {
	return &v
}

// IntPtr 创建int指针，用于明确表示用户设置了该值
func IntPtr(v int) *int {
	return &v
}

// StringPtr 创建string指针，用于明确表示用户设置了该值
func StringPtr(v string) *string {
	return &v
}

// UInt64Ptr 创建uint64指针，用于明确表示用户设置了该值
func UInt64Ptr(v uint64) *uint64 {
	return &v
}

// UInt32Ptr 创建uint32指针，用于明确表示用户设置了该值
func UInt32Ptr(v uint32) *uint32 {
	return &v
}
