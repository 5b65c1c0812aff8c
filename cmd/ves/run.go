package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/veridium/ves/pkg/types"
)

var (
	// run 标志
	runHeight uint64
	runTime   int64
	runDryRun bool
)

// runCmd 执行交易文件
var runCmd = &cobra.Command{
	Use:   "run <tx-file>",
	Short: "执行RLP编码的交易文件",
	Long: `读取RLP编码的交易封装并走完整执行生命周期:
解码 -> 沙箱执行 -> VP验证 -> 原子提交或整体丢弃。

交易被拒绝属于正常业务结果,命令仍以0退出并输出结构化原因;
只有宿主自身故障(存储不可用等)才作为命令错误返回。`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rawTx, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("读取交易文件失败: %w", err)
		}

		application, err := startApp()
		if err != nil {
			return err
		}
		defer stopApp(application)

		blockTime := runTime
		if blockTime == 0 {
			blockTime = time.Now().Unix()
		}
		blockCtx := types.BlockContext{
			ChainID:  application.Provider().GetChainID(),
			Height:   runHeight,
			TimeUnix: blockTime,
		}

		ctx := context.Background()
		var result *types.TxResult
		if runDryRun {
			result, err = application.Runner().DryRunTx(ctx, rawTx, blockCtx)
		} else {
			result, err = application.Runner().ExecuteTx(ctx, rawTx, blockCtx)
		}
		if err != nil {
			return fmt.Errorf("执行交易失败: %w", err)
		}

		return printJSON(newTxResultView(result, runDryRun))
	},
}

func init() {
	runCmd.Flags().Uint64Var(&runHeight, "height", 1, "区块高度")
	runCmd.Flags().Int64Var(&runTime, "time", 0, "区块时间 (Unix秒, 默认当前时间)")
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "只读试执行, 不落盘")
}

// txResultView 交易结果的命令行输出形式
type txResultView struct {
	TxHash              string        `json:"tx_hash"`
	Status              string        `json:"status"`
	DryRun              bool          `json:"dry_run,omitempty"`
	GasUsed             uint64        `json:"gas_used"`
	Reason              *reasonView   `json:"reason,omitempty"`
	Verdicts            []verdictView `json:"verdicts,omitempty"`
	Events              []eventView   `json:"events,omitempty"`
	ChangedKeys         []string      `json:"changed_keys,omitempty"`
	InitializedAccounts []string      `json:"initialized_accounts,omitempty"`
}

type reasonView struct {
	Kind    string `json:"kind,omitempty"`
	Address string `json:"address,omitempty"`
	Detail  string `json:"detail,omitempty"`
}

type verdictView struct {
	Address string `json:"address"`
	Code    string `json:"code"`
	Kind    string `json:"kind,omitempty"`
	Detail  string `json:"detail,omitempty"`
}

type eventView struct {
	Type       string          `json:"type"`
	Attributes []eventAttrView `json:"attributes,omitempty"`
}

type eventAttrView struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// newTxResultView 将交易结果转为输出形式
func newTxResultView(result *types.TxResult, dryRun bool) *txResultView {
	view := &txResultView{
		TxHash:  result.TxHash.Hex(),
		Status:  result.Status.String(),
		DryRun:  dryRun,
		GasUsed: result.GasUsed,
	}

	if result.Reason != nil {
		view.Reason = &reasonView{
			Kind:    string(result.Reason.Kind),
			Address: result.Reason.Address.String(),
			Detail:  result.Reason.Detail,
		}
	}

	for _, verdict := range result.Verdicts {
		view.Verdicts = append(view.Verdicts, verdictView{
			Address: verdict.Address.String(),
			Code:    verdict.Code.String(),
			Kind:    string(verdict.Kind),
			Detail:  verdict.Detail,
		})
	}

	for _, event := range result.Events {
		ev := eventView{Type: event.Type}
		for _, attr := range event.Attributes {
			ev.Attributes = append(ev.Attributes, eventAttrView{Key: attr.Key, Value: attr.Value})
		}
		view.Events = append(view.Events, ev)
	}

	for _, key := range result.ChangedKeys {
		view.ChangedKeys = append(view.ChangedKeys, key.String())
	}

	for _, addr := range result.InitializedAccounts {
		view.InitializedAccounts = append(view.InitializedAccounts, addr.String())
	}

	return view
}
