package core

import (
	"errors"
	"fmt"
)

// DomainError 是领域层的统一错误类型。
//
// 设计原则：
//   - 所有领域层错误都使用此类型
//   - 提供错误代码（Code）、模块（Module）和消息（Message）
//   - 支持 errors.Is（按 Module + Code 匹配）和 errors.Unwrap
//
// 使用场景：
//   - Model 错误：MODEL_INTEGRITY（子节点 id 无法解析、树存在环）
//   - Scorer 错误：CONFIG（未提供特征索引、未知 slot）、INVALID_INPUT
//   - Store 错误：NOT_FOUND, NOT_SUPPORTED
type DomainError struct {
	Code    string // 错误代码（如 "MODEL_INTEGRITY", "CONFIG"）
	Message string // 错误消息
	Module  string // 模块名称（如 "model", "scorer", "store"）
	Err     error  // 底层错误（可选）
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *DomainError) Unwrap() error { return e.Err }

// Is 让 errors.Is(err, ErrXxx) 按 Module + Code 匹配，而不是按指针匹配。
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Module == t.Module && e.Code == t.Code
}

// IsDomainError 检查错误是否为 DomainError 类型
func IsDomainError(err error) bool {
	return GetDomainError(err) != nil
}

// GetDomainError 沿错误链查找 DomainError，找不到返回 nil
func GetDomainError(err error) *DomainError {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	return nil
}

// NewDomainError 创建新的领域错误
func NewDomainError(module, code, message string) *DomainError {
	return &DomainError{
		Module:  module,
		Code:    code,
		Message: message,
	}
}

// Errorf 按格式化消息创建领域错误
func Errorf(module, code, format string, args ...any) *DomainError {
	return &DomainError{Module: module, Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap 创建携带底层错误的领域错误，Error() 输出 "message: cause"
func Wrap(module, code string, err error, format string, args ...any) *DomainError {
	return &DomainError{Module: module, Code: code, Message: fmt.Sprintf(format, args...), Err: err}
}

// 错误代码常量
const (
	ErrorCodeNotFound       = "NOT_FOUND"       // 资源不存在
	ErrorCodeNotSupported   = "NOT_SUPPORTED"   // 操作不支持
	ErrorCodeUnavailable    = "UNAVAILABLE"     // 服务不可用
	ErrorCodeInvalidInput   = "INVALID_INPUT"   // 输入无效
	ErrorCodeConfig         = "CONFIG"          // 配置错误（缺少特征索引、未知 slot）
	ErrorCodeModelIntegrity = "MODEL_INTEGRITY" // 模型结构损坏
	ErrorCodeInternalError  = "INTERNAL_ERROR"  // 内部错误
)

// 模块名称常量
const (
	ModuleModel   = "model"   // 树模型
	ModuleFeature = "feature" // 特征索引、特征来源
	ModuleScorer  = "scorer"  // 打分器
	ModuleStore   = "store"   // 存储模块
	ModuleLoader  = "loader"  // 模型/索引加载
	ModuleService = "service" // 服务模块
)

func hasCode(err error, code string) bool {
	if domainErr := GetDomainError(err); domainErr != nil {
		return domainErr.Code == code
	}
	return false
}

// IsNotFound 检查错误是否为 NOT_FOUND
func IsNotFound(err error) bool { return hasCode(err, ErrorCodeNotFound) }

// IsNotSupported 检查错误是否为 NOT_SUPPORTED
func IsNotSupported(err error) bool { return hasCode(err, ErrorCodeNotSupported) }

// IsUnavailable 检查错误是否为 UNAVAILABLE
func IsUnavailable(err error) bool { return hasCode(err, ErrorCodeUnavailable) }

// IsInvalidInput 检查错误是否为 INVALID_INPUT
func IsInvalidInput(err error) bool { return hasCode(err, ErrorCodeInvalidInput) }

// IsConfig 检查错误是否为 CONFIG
func IsConfig(err error) bool { return hasCode(err, ErrorCodeConfig) }

// IsModelIntegrity 检查错误是否为 MODEL_INTEGRITY
func IsModelIntegrity(err error) bool { return hasCode(err, ErrorCodeModelIntegrity) }
