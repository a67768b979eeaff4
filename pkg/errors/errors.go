// Package errors 提供统一错误辅助与协调流程的错误分类，不依赖 internal
package errors

import (
	"errors"
	"fmt"
)

// 常用哨兵错误（可按需扩展错误码）
var (
	ErrNotFound   = errors.New("not found")
	ErrInvalidArg = errors.New("invalid argument")
)

// Wrap 包装错误并附加消息
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// Wrapf 带格式的 Wrap
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// ConfigurationError 本机配置缺失或无效：不可重试，进程应以非零码退出。
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "configuration: " + e.Reason
}

// NewConfiguration 创建配置错误
func NewConfiguration(format string, args ...interface{}) *ConfigurationError {
	return &ConfigurationError{Reason: fmt.Sprintf(format, args...)}
}

// NetworkError 远端在重试耗尽后仍不可达，携带最后一次原始错误。
type NetworkError struct {
	Endpoint string
	Attempts int
	Err      error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network: %s failed after %d attempts: %v", e.Endpoint, e.Attempts, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// SessionNotFoundError 远端不认识该会话：不重试，提示操作者重新 sod。
type SessionNotFoundError struct {
	SessionID string
}

func (e *SessionNotFoundError) Error() string {
	if e.SessionID == "" {
		return "session not found"
	}
	return fmt.Sprintf("session %s not found", e.SessionID)
}

// SessionNotActiveError 会话已结束或被放弃：不重试。
type SessionNotActiveError struct {
	SessionID string
}

func (e *SessionNotActiveError) Error() string {
	if e.SessionID == "" {
		return "session not active"
	}
	return fmt.Sprintf("session %s not active", e.SessionID)
}

// IsConfiguration 判断是否为配置错误
func IsConfiguration(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}

// IsNetwork 判断是否为网络错误
func IsNetwork(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne)
}

// IsSessionNotFound 判断是否为会话缺失（含未激活）
func IsSessionNotFound(err error) bool {
	var nf *SessionNotFoundError
	var na *SessionNotActiveError
	return errors.As(err, &nf) || errors.As(err, &na)
}
