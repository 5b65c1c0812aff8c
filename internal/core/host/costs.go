package host

// 宿主函数燃气定价
//
// 每次宿主调用收取固定基础费，数据搬运按字节计费。
// result_len/result_fetch 不单独计费：暂存数据的调用已经按字节付费。
const (
	// costBase 每次宿主函数调用的固定成本
	costBase uint64 = 100

	// costReadPerByte 读取已提交/覆盖层取值的每字节成本
	costReadPerByte uint64 = 2

	// costWritePerByte 写入write-log的每字节成本（键+值）
	costWritePerByte uint64 = 5

	// costIterPerByte 迭代产出键值对的每字节成本
	costIterPerByte uint64 = 2

	// costEventPerByte 事件落账的每字节成本
	costEventPerByte uint64 = 5

	// costLogPerByte 客体调试日志的每字节成本
	costLogPerByte uint64 = 1

	// costEvalBase 嵌套VP评估的启动成本（模块编译/实例化远贵于普通调用）
	costEvalBase uint64 = 1000
)
