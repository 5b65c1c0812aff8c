package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/veridium/ves/internal/app"
)

// GlobalFlags 全局标志
type GlobalFlags struct {
	ConfigPath string // 配置文件路径
	DataDir    string // 数据目录
	ChainID    string // 链标识
	Verbose    bool   // 详细模式
}

var globalFlags GlobalFlags

// rootCmd 根命令
var rootCmd = &cobra.Command{
	Use:   "ves",
	Short: "VES 账本执行核心命令行工具",
	Long: `VES CLI - 账本执行核心的运维工具

针对本地BadgerDB状态目录直接执行交易与引导操作:
- 执行RLP编码的交易文件（含只读试执行）
- 为账户安装验证谓词（VP）模块
- 安装哈希引用的交易字节码

所有写入走与生产一致的原子提交路径。`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// CLI模式下静默控制台日志，避免污染命令输出
		if !globalFlags.Verbose {
			os.Setenv("VES_CLI_MODE", "true")
		}
		return nil
	},
}

// Execute 执行根命令
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	// 全局标志
	rootCmd.PersistentFlags().StringVarP(&globalFlags.ConfigPath, "config", "c", "", "配置文件路径 (YAML)")
	rootCmd.PersistentFlags().StringVar(&globalFlags.DataDir, "data-dir", "", "数据目录 (默认: ./data)")
	rootCmd.PersistentFlags().StringVar(&globalFlags.ChainID, "chain-id", "", "链标识 (覆盖配置文件)")
	rootCmd.PersistentFlags().BoolVarP(&globalFlags.Verbose, "verbose", "v", false, "详细输出 (放行控制台日志)")

	// 添加子命令
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(vpCmd)
	rootCmd.AddCommand(codeCmd)
	rootCmd.AddCommand(versionCmd)
}

// startApp 按全局标志装配应用
func startApp() (app.App, error) {
	var opts []app.Option
	if globalFlags.ConfigPath != "" {
		opts = append(opts, app.WithConfigFile(globalFlags.ConfigPath))
	}
	if globalFlags.DataDir != "" {
		opts = append(opts, app.WithDataDir(globalFlags.DataDir))
	}
	if globalFlags.ChainID != "" {
		opts = append(opts, app.WithChainID(globalFlags.ChainID))
	}
	return app.Start(opts...)
}

// stopApp 停止应用，清理失败只告警不改变命令结果
func stopApp(application app.App) {
	if err := application.Stop(); err != nil {
		fmt.Fprintf(os.Stderr, "警告: 停止应用失败: %v\n", err)
	}
}

// printJSON 以缩进JSON输出结果
func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("序列化输出失败: %w", err)
	}
	fmt.Println(string(data))
	return nil
}
