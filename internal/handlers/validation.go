package handlers

import (
	"errors"
	"fmt"
	"strings"

	"gcrp/internal/models"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// RegisterValidators 注册自定义校验规则。
// permcode: 权限代码必须在权限目录中。
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return errors.New("unexpected validator engine")
	}
	return v.RegisterValidation("permcode", func(fl validator.FieldLevel) bool {
		return models.ValidPermissionCode(fl.Field().String())
	})
}

// bindingErrors 把绑定错误翻译成字段级错误列表
func bindingErrors(err error) []string {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return []string{"Invalid request body"}
	}

	msgs := make([]string, 0, len(validationErrs))
	for _, fieldErr := range validationErrs {
		field := strings.ToLower(fieldErr.Field())
		switch fieldErr.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("%s is required", field))
		case "email":
			msgs = append(msgs, fmt.Sprintf("%s must be a valid email address", field))
		case "min":
			msgs = append(msgs, fmt.Sprintf("%s must be at least %s characters", field, fieldErr.Param()))
		case "max":
			msgs = append(msgs, fmt.Sprintf("%s must be at most %s characters", field, fieldErr.Param()))
		case "alphanum":
			msgs = append(msgs, fmt.Sprintf("%s must contain only letters and digits", field))
		case "numeric":
			msgs = append(msgs, fmt.Sprintf("%s must be numeric", field))
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%s must be one of: %s", field, fieldErr.Param()))
		case "permcode":
			msgs = append(msgs, fmt.Sprintf("%s contains an unknown permission code", field))
		case "hexcolor":
			msgs = append(msgs, fmt.Sprintf("%s must be a hex color", field))
		default:
			msgs = append(msgs, fmt.Sprintf("%s is invalid", field))
		}
	}
	return msgs
}
