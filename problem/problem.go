// Package problem 定义标识符预留子系统的错误分类
//
// 调用方通过 Is / CodeOf 区分"未配置标识符服务"与"标识符服务出错"，
// 而不依赖错误文本。
package problem

import (
	"errors"
	"fmt"
)

// Code 错误码
type Code string

const (
	// CodeConfiguration URL、凭据或超时等构造参数无效
	CodeConfiguration Code = "CONFIGURATION_ERROR"
	// CodeAuthentication 登录被拒绝
	CodeAuthentication Code = "AUTHENTICATION_ERROR"
	// CodeClientIntegration 一次远程调用失败或返回了不可用的响应体
	CodeClientIntegration Code = "CLIENT_INTEGRATION_ERROR"
	// CodeServiceUnavailable 未配置远程标识符服务
	CodeServiceUnavailable Code = "SERVICE_UNAVAILABLE"
	// CodePoolExhausted 缓冲池为空且补充后仍无可用标识符
	CodePoolExhausted Code = "POOL_EXHAUSTED"
	// CodeInvalidRequest 调用参数无效
	CodeInvalidRequest Code = "INVALID_REQUEST"
)

// Error 子系统错误类型
type Error struct {
	Code      Code   `json:"code"`
	Operation string `json:"operation,omitempty"`
	Message   string `json:"message"`
	Cause     error  `json:"-"`
}

// Error 实现 error 接口
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap 支持 errors.Is / errors.As
func (e *Error) Unwrap() error {
	return e.Cause
}

// New 创建错误
func New(code Code, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// Newf 以格式化消息创建错误
func Newf(code Code, format string, args ...any) *Error {
	return New(code, fmt.Sprintf(format, args...), nil)
}

// ClientIntegration 创建命名了失败操作的集成错误，消息形如 "failed to reserve identifiers"
func ClientIntegration(operation string, cause error) *Error {
	return &Error{
		Code:      CodeClientIntegration,
		Operation: operation,
		Message:   fmt.Sprintf("failed to %s identifiers", operation),
		Cause:     cause,
	}
}

// CodeOf 返回错误链中第一个 *Error 的错误码，没有时返回空串
func CodeOf(err error) Code {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Code
	}
	return ""
}

// Is 判断错误链中是否存在指定错误码的 *Error
func Is(err error, code Code) bool {
	for err != nil {
		var pe *Error
		if !errors.As(err, &pe) {
			return false
		}
		if pe.Code == code {
			return true
		}
		err = pe.Cause
	}
	return false
}

// OperationOf 返回错误链中第一个带操作名的集成错误的操作名
func OperationOf(err error) string {
	for err != nil {
		var pe *Error
		if !errors.As(err, &pe) {
			return ""
		}
		if pe.Operation != "" {
			return pe.Operation
		}
		err = pe.Cause
	}
	return ""
}
