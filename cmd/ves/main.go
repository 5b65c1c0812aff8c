// VES 账本执行核心的命令行入口
//
// 针对本地状态目录直接执行交易与运维操作，
// 所有写入走与生产一致的原子提交路径。
package main

func main() {
	Execute()
}
