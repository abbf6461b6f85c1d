package errors

import (
	"errors"
	"fmt"
)

// Kind 错误类别，决定HTTP状态码
type Kind int

const (
	KindValidation     Kind = iota // 参数不合法
	KindAuthentication             // 凭证缺失或无效
	KindAuthorization              // 身份有效但权限不足
	KindNotFound                   // 实体不存在
	KindConflict                   // 唯一性冲突、重复提交、终态锁定
	KindStorage                    // 存储层故障
)

// AppError 业务错误，Message是可以直接返回给调用方的安全文案
type AppError struct {
	Kind    Kind
	Message string
	cause   error
}

func (e *AppError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.cause
}

// ========== 构造方法 ==========

func NewValidation(message string) *AppError {
	return &AppError{Kind: KindValidation, Message: message}
}

func NewAuthentication(message string) *AppError {
	return &AppError{Kind: KindAuthentication, Message: message}
}

func NewAuthorization(message string) *AppError {
	return &AppError{Kind: KindAuthorization, Message: message}
}

func NewNotFound(message string) *AppError {
	return &AppError{Kind: KindNotFound, Message: message}
}

func NewConflict(message string) *AppError {
	return &AppError{Kind: KindConflict, Message: message}
}

// NewStorage 包装存储层错误；原始错误只进日志，不进响应体
func NewStorage(cause error) *AppError {
	return &AppError{Kind: KindStorage, Message: "Server error", cause: cause}
}

// NewStorageMessage 存储层/配置类错误，带自定义安全文案
func NewStorageMessage(message string) *AppError {
	return &AppError{Kind: KindStorage, Message: message}
}

// ========== 判定方法 ==========

// As 提取AppError；未分类的error一律按存储层故障处理
func As(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return NewStorage(err)
}

// IsKind 判断错误是否属于指定类别
func IsKind(err error, kind Kind) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind == kind
	}
	return false
}
