package common

import (
	"errors"
	"fmt"
)

// 定义常见错误类型
var (
	ErrInvalidParameter     = errors.New("invalid parameter")
	ErrResourceNotFound     = errors.New("resource not found")
	ErrInvalidConfiguration = errors.New("invalid configuration")
	ErrGenerationFailed     = errors.New("generation failed")
)

// ValidationError 验证错误
type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value,omitempty"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for field '%s': %s", e.Field, e.Message)
}

// Unwrap 验证错误均属于配置错误
func (e *ValidationError) Unwrap() error {
	return ErrInvalidConfiguration
}

// NewValidationError 创建验证错误
func NewValidationError(field, message string, value interface{}) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Value:   value,
	}
}

// InsufficientResourceError 资源不足错误
type InsufficientResourceError struct {
	Requested Resource
	Available Resource
}

func (e *InsufficientResourceError) Error() string {
	return fmt.Sprintf("insufficient resources: requested %s, available %s",
		e.Requested.String(), e.Available.String())
}

// ValidateResource 验证资源容量，三个维度都必须为正
func ValidateResource(field string, resource Resource) error {
	if resource.CPU <= 0 {
		return NewValidationError(field+".cpu", "must be greater than 0", resource.CPU)
	}
	if resource.Memory <= 0 {
		return NewValidationError(field+".memory", "must be greater than 0", resource.Memory)
	}
	if resource.Disk <= 0 {
		return NewValidationError(field+".disk", "must be greater than 0", resource.Disk)
	}
	return nil
}
