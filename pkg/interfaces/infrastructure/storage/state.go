// Package storage 提供VES系统的账本状态存储接口定义
//
// 💾 **账本状态存储服务 (Ledger State Storage Service)**
//
// 本文件定义了VES系统的已提交状态存储接口，专注于：
// - 键值读取：单键读取与存在性检查
// - 有序遍历：按字节序的前缀迭代
// - 原子提交：一批变更要么全部落盘要么全部不落盘
//
// 🎯 **核心功能**
// - StateStore：已提交账本状态的存储接口
// - StateIterator：前缀遍历的游标接口
//
// 🔗 **组件关系**
// - StateStore：被写日志、VP加载器、交易运行器使用
// - 与WriteLog：提交阶段接收折叠后的变更批次
// - 与BadgerDB：由internal/core/infrastructure/storage/badger实现
package storage

import (
	"context"

	"github.com/veridium/ves/pkg/types"
)

//=============================================================================
// StateStore 接口定义
//=============================================================================

// StateStore 定义了已提交账本状态的存储接口
//
// 实现必须保证：
// - Get 在键不存在时返回nil值和nil错误
// - IteratePrefix 按键的字节序升序产出
// - WriteBatch 原子生效：部分写入永不对后续读可见
type StateStore interface {
	//-------------------------------------------------------------------------
	// 基本读取
	//-------------------------------------------------------------------------

	// Get 获取指定键的已提交值
	// 如果键不存在，返回nil值和nil错误
	Get(ctx context.Context, key []byte) ([]byte, error)

	// Has 检查键是否存在
	Has(ctx context.Context, key []byte) (bool, error)

	//-------------------------------------------------------------------------
	// 有序遍历
	//-------------------------------------------------------------------------

	// IteratePrefix 按前缀遍历已提交状态
	// 返回的迭代器按键字节序升序产出，使用完毕必须Close
	IteratePrefix(ctx context.Context, prefix []byte) (StateIterator, error)

	//-------------------------------------------------------------------------
	// 原子提交
	//-------------------------------------------------------------------------

	// WriteBatch 原子应用一批变更
	// 批内所有变更在同一事务中生效；任一失败则整体回滚
	WriteBatch(ctx context.Context, mutations []types.Mutation) error

	//-------------------------------------------------------------------------
	// 生命周期管理
	//-------------------------------------------------------------------------

	// Close 关闭存储后端
	// 确保所有待处理的写入落盘；应用关闭时必须调用
	Close() error
}

//=============================================================================
// StateIterator 接口定义
//=============================================================================

// StateIterator 定义了前缀遍历的游标接口
//
// 使用模式：
//
//	for it.Next() {
//	    k, v := it.Key(), it.Value()
//	    ...
//	}
//	if err := it.Error(); err != nil { ... }
//	it.Close()
type StateIterator interface {
	// Next 推进游标到下一条记录
	// 返回false表示遍历结束或发生错误（由Error区分）
	Next() bool

	// Key 返回当前记录的键
	// 返回的切片仅在下次Next调用前有效
	Key() []byte

	// Value 返回当前记录的值
	// 返回的切片仅在下次Next调用前有效
	Value() []byte

	// Error 返回遍历过程中发生的错误
	Error() error

	// Close 释放游标资源
	Close() error
}
