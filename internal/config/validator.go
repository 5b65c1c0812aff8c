package config

import (
	"fmt"
	"strings"

	logIface "github.com/veridium/ves/pkg/interfaces/infrastructure/log"
	"github.com/veridium/ves/pkg/types"
)

// ValidationError 配置验证错误
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("配置验证失败 [%s]: %s", e.Field, e.Message)
}

// ValidationErrors 多个验证错误
type ValidationErrors struct {
	Errors []error
}

func (e *ValidationErrors) Error() string {
	msg := "配置验证失败，发现以下问题：\n"
	for i, err := range e.Errors {
		msg += fmt.Sprintf("  %d. %s\n", i+1, err.Error())
	}
	return msg
}

// ValidateMandatoryConfig 验证必填与格式敏感的配置项
//
// 在启动时fail-fast，避免带着写错的配置静默回退默认值运行：
// - chain.chain_id: 链标识（必需，区块上下文构造依赖它）
// - environment: 仅允许 dev | test | prod
// - log.level: 必须是可解析的日志级别
// - sandbox / ledger: 数值参数的下界检查
func ValidateMandatoryConfig(appConfig *types.AppConfig) error {
	var errors []error

	// 1. 链标识（必需）
	if appConfig == nil || appConfig.Chain == nil || appConfig.Chain.ChainID == nil ||
		strings.TrimSpace(*appConfig.Chain.ChainID) == "" {
		errors = append(errors, &ValidationError{
			Field:   "chain.chain_id",
			Message: "链标识不能为空，必须配置有效的chain_id",
		})
	}

	if appConfig == nil {
		return &ValidationErrors{Errors: errors}
	}

	// 2. 运行环境
	if appConfig.Environment != nil {
		env := strings.ToLower(strings.TrimSpace(*appConfig.Environment))
		switch env {
		case "dev", "test", "prod":
		default:
			errors = append(errors, &ValidationError{
				Field:   "environment",
				Message: fmt.Sprintf("运行环境无效: %q（期望 dev | test | prod）", env),
			})
		}
	}

	// 3. 日志级别
	if appConfig.Log != nil && appConfig.Log.Level != nil {
		if _, err := logIface.ParseLevel(*appConfig.Log.Level); err != nil {
			errors = append(errors, &ValidationError{
				Field:   "log.level",
				Message: fmt.Sprintf("日志级别无效: %q", *appConfig.Log.Level),
			})
		}
	}

	// 4. 沙箱引擎参数
	if appConfig.Sandbox != nil {
		if appConfig.Sandbox.CompilationMode != nil {
			mode := strings.ToLower(strings.TrimSpace(*appConfig.Sandbox.CompilationMode))
			if mode != "compiler" && mode != "interpreter" {
				errors = append(errors, &ValidationError{
					Field:   "sandbox.compilation_mode",
					Message: fmt.Sprintf("编译模式无效: %q（期望 compiler | interpreter）", mode),
				})
			}
		}
		if appConfig.Sandbox.ExecutionTimeoutSeconds != nil && *appConfig.Sandbox.ExecutionTimeoutSeconds <= 0 {
			errors = append(errors, &ValidationError{
				Field:   "sandbox.execution_timeout_seconds",
				Message: "execution_timeout_seconds 必须 > 0",
			})
		}
		if appConfig.Sandbox.MaxGuestIOBytes != nil && *appConfig.Sandbox.MaxGuestIOBytes == 0 {
			errors = append(errors, &ValidationError{
				Field:   "sandbox.max_guest_io_bytes",
				Message: "max_guest_io_bytes 必须 > 0",
			})
		}
	}

	// 5. 账本执行参数
	if appConfig.Ledger != nil {
		if appConfig.Ledger.MaxGas != nil && *appConfig.Ledger.MaxGas < types.MinGasLimit {
			errors = append(errors, &ValidationError{
				Field:   "ledger.max_gas",
				Message: fmt.Sprintf("max_gas 必须 >= %d", types.MinGasLimit),
			})
		}
		if appConfig.Ledger.MaxMemoryPages != nil && *appConfig.Ledger.MaxMemoryPages == 0 {
			errors = append(errors, &ValidationError{
				Field:   "ledger.max_memory_pages",
				Message: "max_memory_pages 必须 > 0",
			})
		}
		if appConfig.Ledger.MaxEvalDepth != nil && *appConfig.Ledger.MaxEvalDepth == 0 {
			errors = append(errors, &ValidationError{
				Field:   "ledger.max_eval_depth",
				Message: "max_eval_depth 必须 > 0",
			})
		}
		if appConfig.Ledger.VpWorkers != nil && *appConfig.Ledger.VpWorkers < 1 {
			errors = append(errors, &ValidationError{
				Field:   "ledger.vp_workers",
				Message: "vp_workers 必须 >= 1",
			})
		}
		if appConfig.Ledger.VpCacheMB != nil && *appConfig.Ledger.VpCacheMB <= 0 {
			errors = append(errors, &ValidationError{
				Field:   "ledger.vp_cache_mb",
				Message: "vp_cache_mb 必须 > 0",
			})
		}
	}

	// 6. 存储参数
	if appConfig.Storage != nil && appConfig.Storage.Path != nil &&
		strings.TrimSpace(*appConfig.Storage.Path) == "" {
		errors = append(errors, &ValidationError{
			Field:   "storage.path",
			Message: "storage.path 不能是空串（省略该字段以使用默认路径）",
		})
	}

	if len(errors) > 0 {
		return &ValidationErrors{Errors: errors}
	}

	return nil
}
