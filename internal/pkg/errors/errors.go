package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrorType 错误类型
type ErrorType string

const (
	ErrorTypeInvalidRequest  ErrorType = "invalid_request"
	ErrorTypeClassifierError ErrorType = "classifier_error"
	ErrorTypeInternal        ErrorType = "internal_error"
	ErrorTypeNotFound        ErrorType = "not_found"
	ErrorTypeConflict        ErrorType = "conflict"
)

// ErrorCode 错误码
type ErrorCode string

const (
	// 请求错误
	CodeInvalidRequest ErrorCode = "invalid_request"
	CodeRequiredField  ErrorCode = "required_field"
	CodeInvalidType    ErrorCode = "invalid_type"
	CodeNotFound       ErrorCode = "not_found"

	// 存储错误
	CodeDatabaseError ErrorCode = "database_error"
	CodeDuplicateKey  ErrorCode = "duplicate_key"
	CodeRedisError    ErrorCode = "redis_error"

	// 内部错误
	CodeInternalError ErrorCode = "internal_error"
)

// AppError 应用错误
type AppError struct {
	Type       ErrorType              `json:"type"`
	Message    string                 `json:"message"`
	Code       ErrorCode              `json:"code"`
	Details    map[string]interface{} `json:"details,omitempty"`
	HTTPStatus int                    `json:"-"`
	Err        error                  `json:"-"`
}

// Error 实现 error 接口
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap 实现 errors.Unwrap
func (e *AppError) Unwrap() error {
	return e.Err
}

// WithDetails 添加详情
func (e *AppError) WithDetails(details map[string]interface{}) *AppError {
	e.Details = details
	return e
}

// WithError 包装原始错误
func (e *AppError) WithError(err error) *AppError {
	e.Err = err
	return e
}

// NewInvalidRequest 创建无效请求错误
func NewInvalidRequest(message string) *AppError {
	return &AppError{
		Type:       ErrorTypeInvalidRequest,
		Message:    message,
		Code:       CodeInvalidRequest,
		HTTPStatus: http.StatusBadRequest,
	}
}

// NewValidationError 创建字段校验错误
func NewValidationError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeInvalidRequest,
		Message:    message,
		Code:       code,
		HTTPStatus: http.StatusBadRequest,
	}
}

// NewInternalError 创建内部错误
func NewInternalError(message string) *AppError {
	return &AppError{
		Type:       ErrorTypeInternal,
		Message:    message,
		Code:       CodeInternalError,
		HTTPStatus: http.StatusInternalServerError,
	}
}

// NewNotFoundError 创建资源不存在错误
func NewNotFoundError(resource string) *AppError {
	return &AppError{
		Type:       ErrorTypeNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		Code:       CodeNotFound,
		HTTPStatus: http.StatusNotFound,
	}
}

// NewDatabaseError 创建数据库错误
func NewDatabaseError(err error) *AppError {
	return &AppError{
		Type:       ErrorTypeInternal,
		Message:    "Database error",
		Code:       CodeDatabaseError,
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// NewDuplicateKeyError 创建唯一键冲突错误
// 创建路径上的冲突仍按 500 返回给客户端
func NewDuplicateKeyError(key string, err error) *AppError {
	return &AppError{
		Type:       ErrorTypeConflict,
		Message:    fmt.Sprintf("duplicate key: %s", key),
		Code:       CodeDuplicateKey,
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// NewRedisError 创建 Redis 错误
func NewRedisError(err error) *AppError {
	return &AppError{
		Type:       ErrorTypeInternal,
		Message:    "Redis error",
		Code:       CodeRedisError,
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// Is 检查错误类型（支持包装链）
func Is(err error, target ErrorType) bool {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Type == target
	}
	return false
}

// IsCode 检查错误码（支持包装链）
func IsCode(err error, code ErrorCode) bool {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// ============================================================================
// 远程分类器错误
// ============================================================================

// ClassifierErrorKind 分类器错误种类
type ClassifierErrorKind string

const (
	ClassifierRateLimit         ClassifierErrorKind = "rate_limit"
	ClassifierAuthentication    ClassifierErrorKind = "authentication"
	ClassifierMalformedResponse ClassifierErrorKind = "malformed_response"
	ClassifierTransport         ClassifierErrorKind = "transport"
	ClassifierTimeout           ClassifierErrorKind = "timeout"
	ClassifierUnavailable       ClassifierErrorKind = "unavailable"
	ClassifierUpstream          ClassifierErrorKind = "upstream"
)

// ClassifierError 远程分类器错误 - 携带上游状态码与错误详情
type ClassifierError struct {
	Kind       ClassifierErrorKind `json:"kind"`
	StatusCode int                 `json:"status_code,omitempty"`
	Message    string              `json:"message"`
	Err        error               `json:"-"`
}

// Error 实现 error 接口
func (e *ClassifierError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s (status %d): %s", e.Kind, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap 实现 errors.Unwrap
func (e *ClassifierError) Unwrap() error {
	return e.Err
}

// NewClassifierError 创建分类器错误
func NewClassifierError(kind ClassifierErrorKind, statusCode int, message string, err error) *ClassifierError {
	return &ClassifierError{
		Kind:       kind,
		StatusCode: statusCode,
		Message:    message,
		Err:        err,
	}
}

// ClassifierKindForStatus 根据上游 HTTP 状态码判断错误种类
func ClassifierKindForStatus(status int) ClassifierErrorKind {
	switch {
	case status == http.StatusTooManyRequests:
		return ClassifierRateLimit
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return ClassifierAuthentication
	default:
		return ClassifierUpstream
	}
}

// NewClassifierTransportError 将传输层错误转换为分类器错误
// 超时与取消归为 timeout，其余为 transport
func NewClassifierTransportError(err error) *ClassifierError {
	if IsTimeoutError(err) {
		return NewClassifierError(ClassifierTimeout, 0, "request timed out", err)
	}
	return NewClassifierError(ClassifierTransport, 0, err.Error(), err)
}

// IsClassifierError 类型守卫：检查是否为 ClassifierError
func IsClassifierError(err error) bool {
	_, ok := AsClassifierError(err)
	return ok
}

// AsClassifierError 类型转换：将 error 转换为 ClassifierError
func AsClassifierError(err error) (*ClassifierError, bool) {
	var e *ClassifierError
	ok := stderrors.As(err, &e)
	return e, ok
}

// IsTimeoutError 检测是否为超时错误
func IsTimeoutError(err error) bool {
	if err == nil {
		return false
	}
	if stderrors.Is(err, context.DeadlineExceeded) {
		return true
	}

	errMsg := strings.ToLower(err.Error())
	for _, msg := range []string{
		"context deadline exceeded",
		"client.timeout exceeded",
		"i/o timeout",
	} {
		if strings.Contains(errMsg, msg) {
			return true
		}
	}
	return false
}
