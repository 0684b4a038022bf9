package apierr

import "fmt"

// AuthenticationError 认证失败（密码错误、未接受条款、登录被限流）
// 需要用户介入修复账号或凭据，重试没有意义
type AuthenticationError struct {
	Message string
}

func (e *AuthenticationError) Error() string {
	return e.Message
}

// NewAuthenticationError 创建认证错误
func NewAuthenticationError(format string, a ...interface{}) *AuthenticationError {
	return &AuthenticationError{Message: fmt.Sprintf(format, a...)}
}

// TemporaryAuthenticationError 令牌端点临时故障，稍后可重试
type TemporaryAuthenticationError struct {
	Message string
}

func (e *TemporaryAuthenticationError) Error() string {
	return e.Message
}

// NewTemporaryAuthenticationError 创建临时认证错误
func NewTemporaryAuthenticationError(format string, a ...interface{}) *TemporaryAuthenticationError {
	return &TemporaryAuthenticationError{Message: fmt.Sprintf(format, a...)}
}

// CompatibilityError 服务端返回了预期之外的页面或响应结构
// 说明上游 API 发生了变化，重试无法解决
type CompatibilityError struct {
	Message string
}

func (e *CompatibilityError) Error() string {
	return e.Message
}

// NewCompatibilityError 创建 API 兼容性错误
func NewCompatibilityError(format string, a ...interface{}) *CompatibilityError {
	return &CompatibilityError{Message: fmt.Sprintf(format, a...)}
}

// RetrievalError 获取数据时的 HTTP/网络故障，下个轮询周期重试
type RetrievalError struct {
	Message string
	Err     error
}

func (e *RetrievalError) Error() string {
	if e.Err != nil {
		if e.Message != "" {
			return e.Message + ": " + e.Err.Error()
		}
		return e.Err.Error()
	}
	return e.Message
}

func (e *RetrievalError) Unwrap() error {
	return e.Err
}

// NewRetrievalError 创建数据获取错误
func NewRetrievalError(format string, a ...interface{}) *RetrievalError {
	return &RetrievalError{Message: fmt.Sprintf(format, a...)}
}

// WrapRetrievalError 把底层传输错误包装成数据获取错误
func WrapRetrievalError(message string, err error) *RetrievalError {
	return &RetrievalError{Message: message, Err: err}
}

// TooManyRequestsError 账号被限流，需要较长的冷却时间
type TooManyRequestsError struct {
	Message string
}

func (e *TooManyRequestsError) Error() string {
	return e.Message
}

// NewTooManyRequestsError 创建限流错误
func NewTooManyRequestsError(format string, a ...interface{}) *TooManyRequestsError {
	return &TooManyRequestsError{Message: fmt.Sprintf(format, a...)}
}

// APIError 领域数据不完整（缺少 VIN 或时间戳等），本轮获取失败
type APIError struct {
	Message string
}

func (e *APIError) Error() string {
	return e.Message
}

// NewAPIError 创建 API 数据错误
func NewAPIError(format string, a ...interface{}) *APIError {
	return &APIError{Message: fmt.Sprintf(format, a...)}
}

// CommandError 用户发起的指令被 API 拒绝或未通过前置条件检查
type CommandError struct {
	Message    string
	StatusCode int
	Body       string
}

func (e *CommandError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: status=%d body=%s", e.Message, e.StatusCode, e.Body)
	}
	return e.Message
}

// NewCommandError 创建指令错误
func NewCommandError(format string, a ...interface{}) *CommandError {
	return &CommandError{Message: fmt.Sprintf(format, a...)}
}

// NewCommandStatusError 创建携带响应状态的指令错误
func NewCommandStatusError(message string, status int, body string) *CommandError {
	return &CommandError{Message: message, StatusCode: status, Body: body}
}

// SetterError 指令参数不合法
type SetterError struct {
	Message string
}

func (e *SetterError) Error() string {
	return e.Message
}

// NewSetterError 创建参数错误
func NewSetterError(format string, a ...interface{}) *SetterError {
	return &SetterError{Message: fmt.Sprintf(format, a...)}
}
