package utils

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// FormatBindingError 将gin绑定/验证错误格式化为可读消息
// 返回的消息直接展示给客户端，保持字段级别的具体性
func FormatBindingError(err error) string {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return err.Error()
	}

	msgs := make([]string, 0, len(validationErrors))
	for _, fieldErr := range validationErrors {
		msgs = append(msgs, fieldErrorMessage(fieldErr))
	}
	return strings.Join(msgs, "; ")
}

// fieldErrorMessage 生成单个字段的错误信息
func fieldErrorMessage(err validator.FieldError) string {
	field := err.Field()
	switch err.Tag() {
	case "required":
		return fmt.Sprintf("%s 为必填项", field)
	case "gt":
		return fmt.Sprintf("%s 必须大于 %s", field, err.Param())
	case "gte":
		return fmt.Sprintf("%s 必须大于等于 %s", field, err.Param())
	case "max":
		return fmt.Sprintf("%s 长度不能超过 %s", field, err.Param())
	case "min":
		return fmt.Sprintf("%s 不能小于 %s", field, err.Param())
	case "oneof":
		return fmt.Sprintf("%s 必须是以下值之一: %s", field, err.Param())
	case "email":
		return fmt.Sprintf("%s 不是合法的邮箱地址", field)
	default:
		return fmt.Sprintf("%s 验证失败(%s)", field, err.Tag())
	}
}
