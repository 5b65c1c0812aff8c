package ledger

import (
	"context"
	"errors"
	"fmt"

	storageIface "github.com/veridium/ves/pkg/interfaces/infrastructure/storage"
	ledgerIface "github.com/veridium/ves/pkg/interfaces/ledger"
	"github.com/veridium/ves/pkg/types"
)

// CodeSegment 已存储字节码区的首段名
//
// 交易封装以哈希引用字节码时，模块内容存放在
// `code/<hex哈希>` 键下，由部署工具或治理流程写入。
const CodeSegment = "code"

// CodeKey 返回字节码哈希对应的存储键
func CodeKey(codeHash types.Hash) types.Key {
	key, err := types.KeyFromSegments([]string{CodeSegment, codeHash.Hex()})
	if err != nil {
		// 段内容是固定前缀加十六进制哈希，构造失败意味着程序缺陷
		panic(fmt.Sprintf("构造字节码存储键失败: %v", err))
	}
	return key
}

// StorageModuleResolver 基于已提交存储的字节码解析器
//
// 按 CodeKey 约定从状态库取回模块内容；
// 引用缺失返回nil与nil错误，由运行器转化为解码故障。
type StorageModuleResolver struct {
	store storageIface.StateStore
}

var _ ledgerIface.ModuleResolver = (*StorageModuleResolver)(nil)

// NewStorageModuleResolver 创建字节码解析器
func NewStorageModuleResolver(store storageIface.StateStore) (*StorageModuleResolver, error) {
	if store == nil {
		return nil, errors.New("state store 不能为 nil")
	}
	return &StorageModuleResolver{store: store}, nil
}

// ResolveModule 按哈希取回字节码
func (r *StorageModuleResolver) ResolveModule(ctx context.Context, codeHash types.Hash) ([]byte, error) {
	code, err := r.store.Get(ctx, CodeKey(codeHash).Raw())
	if err != nil {
		return nil, fmt.Errorf("读取已存储字节码失败: hash=%s: %w", codeHash, err)
	}
	return code, nil
}
