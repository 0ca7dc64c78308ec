package domain

import (
	"errors"
	"fmt"
)

// 错误类别（用 errors.Is 判断）
var (
	// ErrValidation 结构性约束被破坏（类型/绑定错误、人工修改 PILOT 预算内容等）
	ErrValidation = errors.New("validation error")
	// ErrConflict 预算已锁定
	ErrConflict = errors.New("conflict error")
	// ErrForbidden 操作者 function 与内容行的需求 function 无交集
	ErrForbidden = errors.New("authorization error")
	// ErrNotFound 预算/内容/需求/源任务不存在
	ErrNotFound = errors.New("not found")
)

// Error 业务错误，Kind 为上面的类别之一
type Error struct {
	Kind    error
	Entity  string
	Message string
}

func (e *Error) Error() string {
	if e.Entity == "" {
		return e.Message
	}
	return e.Entity + ": " + e.Message
}

func (e *Error) Unwrap() error { return e.Kind }

func newError(kind error, entity, format string, args ...any) error {
	return &Error{Kind: kind, Entity: entity, Message: fmt.Sprintf(format, args...)}
}

// NewValidationError 创建 ValidationError
func NewValidationError(entity, format string, args ...any) error {
	return newError(ErrValidation, entity, format, args...)
}

// NewConflictError 创建 ConflictError
func NewConflictError(entity, format string, args ...any) error {
	return newError(ErrConflict, entity, format, args...)
}

// NewForbiddenError 创建 AuthorizationError
func NewForbiddenError(entity, format string, args ...any) error {
	return newError(ErrForbidden, entity, format, args...)
}

// NewNotFoundError 创建 NotFoundError
func NewNotFoundError(entity, format string, args ...any) error {
	return newError(ErrNotFound, entity, format, args...)
}

// IsValidation / IsConflict / IsForbidden / IsNotFound 便捷判断
func IsValidation(err error) bool { return errors.Is(err, ErrValidation) }
func IsConflict(err error) bool   { return errors.Is(err, ErrConflict) }
func IsForbidden(err error) bool  { return errors.Is(err, ErrForbidden) }
func IsNotFound(err error) bool   { return errors.Is(err, ErrNotFound) }
