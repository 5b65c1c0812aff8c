package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/veridium/ves/pkg/types"
)

// vpCmd 验证谓词相关命令
var vpCmd = &cobra.Command{
	Use:   "vp",
	Short: "验证谓词管理",
	Long:  "安装账户的验证谓词(VP)模块",
}

// vpSetView vp set 的输出形式
type vpSetView struct {
	Address  string `json:"address"`
	Key      string `json:"key"`
	CodeHash string `json:"code_hash"`
	CodeSize int    `json:"code_size"`
}

// vpSetCmd 为账户安装VP模块
var vpSetCmd = &cobra.Command{
	Use:   "set <address> <wasm-file>",
	Short: "为账户安装VP模块",
	Long: `将WASM字节码直接写入账户的VP元数据键。

引导命令:绕过VP验证直接落盘,用于创世账户引导与本地调试;
运行中账本的VP更新应通过交易并经账户现有VP认可完成。`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, err := types.ParseAddress(args[0])
		if err != nil {
			return fmt.Errorf("解析地址失败: %w", err)
		}

		code, err := os.ReadFile(args[1])
		if err != nil {
			return fmt.Errorf("读取VP模块文件失败: %w", err)
		}
		if len(code) == 0 {
			return fmt.Errorf("VP模块文件为空: %s", args[1])
		}

		application, err := startApp()
		if err != nil {
			return err
		}
		defer stopApp(application)

		vpKey := types.VpKey(addr)
		mutations := []types.Mutation{{Key: vpKey, Value: code}}
		if err := application.Store().WriteBatch(context.Background(), mutations); err != nil {
			return fmt.Errorf("写入VP模块失败: %w", err)
		}

		return printJSON(&vpSetView{
			Address:  addr.String(),
			Key:      vpKey.String(),
			CodeHash: types.HashBytes(code).Hex(),
			CodeSize: len(code),
		})
	},
}

func init() {
	vpCmd.AddCommand(vpSetCmd)
}
