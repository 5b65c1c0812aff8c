package state

import "errors"

var (
	// ErrVpDeleteForbidden 禁止删除VP元数据键
	ErrVpDeleteForbidden = errors.New("validity predicate key cannot be deleted")

	// ErrEmptyVpCode 账户初始化必须携带非空VP字节码
	ErrEmptyVpCode = errors.New("account initialization requires vp code")

	// ErrAccountAlreadyInitialized 同一交易内重复初始化同一账户
	ErrAccountAlreadyInitialized = errors.New("account already initialized in this transaction")
)
