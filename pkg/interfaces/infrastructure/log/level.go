// Package log 提供VES系统的日志级别接口定义
//
// 📊 **日志级别管理 (Log Level Management)**
//
// 本文件定义了VES系统的日志级别，专注于：
// - 统一的日志级别定义
// - 级别名称与枚举值的相互转换
// - 合理的默认级别设置
package log

import (
	"fmt"
	"strings"
)

// Level 日志级别
type Level int8

const (
	// DebugLevel 调试级别
	DebugLevel Level = iota - 1

	// InfoLevel 信息级别（默认）
	InfoLevel

	// WarnLevel 警告级别
	WarnLevel

	// ErrorLevel 错误级别
	ErrorLevel

	// FatalLevel 致命级别
	FatalLevel
)

// String 返回级别名称
func (l Level) String() string {
	switch l {
	case DebugLevel:
		return "debug"
	case InfoLevel:
		return "info"
	case WarnLevel:
		return "warn"
	case ErrorLevel:
		return "error"
	case FatalLevel:
		return "fatal"
	default:
		return fmt.Sprintf("level(%d)", int8(l))
	}
}

// ParseLevel 从名称解析日志级别
func ParseLevel(name string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return DebugLevel, nil
	case "info", "":
		return InfoLevel, nil
	case "warn", "warning":
		return WarnLevel, nil
	case "error":
		return ErrorLevel, nil
	case "fatal":
		return FatalLevel, nil
	default:
		return InfoLevel, fmt.Errorf("未知日志级别: %q", name)
	}
}
