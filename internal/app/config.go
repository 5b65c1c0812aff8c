package app

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/veridium/ves/pkg/types"
)

// LoadAppConfig 从YAML配置文件加载用户配置
//
// 零值陷阱处理：配置结构全部使用指针字段，
// nil表示"用户未设置、采用系统默认值"，&v表示"用户明确设置了该值"，
// 即使设置为零值（0、false、""）也会被采用。
func LoadAppConfig(path string) (*types.AppConfig, error) {
	if path == "" {
		return nil, fmt.Errorf("配置文件路径不能为空")
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("打开配置文件失败: %w", err)
	}
	defer file.Close()

	var appConfig types.AppConfig
	decoder := yaml.NewDecoder(file)
	if err := decoder.Decode(&appConfig); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	return &appConfig, nil
}

// overlayAppConfig 将覆盖配置叠加到基础配置上
//
// 按顶层字段整体覆盖：overlay中非nil的部分取代base中的同名部分。
// 命令行标志构造的覆盖配置只会设置它关心的顶层字段。
func overlayAppConfig(base, overlay *types.AppConfig) *types.AppConfig {
	if base == nil {
		base = &types.AppConfig{}
	}
	if overlay == nil {
		return base
	}

	merged := *base
	if overlay.AppName != nil {
		merged.AppName = overlay.AppName
	}
	if overlay.DataDir != nil {
		merged.DataDir = overlay.DataDir
	}
	if overlay.Environment != nil {
		merged.Environment = overlay.Environment
	}
	if overlay.Chain != nil {
		merged.Chain = overlay.Chain
	}
	if overlay.Storage != nil {
		merged.Storage = overlay.Storage
	}
	if overlay.Log != nil {
		merged.Log = overlay.Log
	}
	if overlay.Sandbox != nil {
		merged.Sandbox = overlay.Sandbox
	}
	if overlay.Ledger != nil {
		merged.Ledger = overlay.Ledger
	}

	return &merged
}
