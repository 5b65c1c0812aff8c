package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/veridium/ves/internal/core/ledger"
	"github.com/veridium/ves/pkg/types"
)

// codeCmd 交易字节码相关命令
var codeCmd = &cobra.Command{
	Use:   "code",
	Short: "交易字节码管理",
	Long:  "安装哈希引用的交易字节码模块",
}

// codePutView code put 的输出形式
type codePutView struct {
	CodeHash string `json:"code_hash"`
	Key      string `json:"key"`
	CodeSize int    `json:"code_size"`
}

// codePutCmd 安装哈希引用的字节码
var codePutCmd = &cobra.Command{
	Use:   "put <wasm-file>",
	Short: "安装哈希引用的交易字节码",
	Long: `将WASM模块写入链全局字节码键,
此后交易封装通过CodeHash引用该模块,无需内联字节码。`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		code, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("读取字节码文件失败: %w", err)
		}
		if len(code) == 0 {
			return fmt.Errorf("字节码文件为空: %s", args[0])
		}

		application, err := startApp()
		if err != nil {
			return err
		}
		defer stopApp(application)

		codeHash := types.HashBytes(code)
		codeKey := ledger.CodeKey(codeHash)
		mutations := []types.Mutation{{Key: codeKey, Value: code}}
		if err := application.Store().WriteBatch(context.Background(), mutations); err != nil {
			return fmt.Errorf("写入字节码失败: %w", err)
		}

		return printJSON(&codePutView{
			CodeHash: codeHash.Hex(),
			Key:      codeKey.String(),
			CodeSize: len(code),
		})
	},
}

func init() {
	codeCmd.AddCommand(codePutCmd)
}
