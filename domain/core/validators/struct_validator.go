// Package validators checks request structs against their validate tags.
package validators

import (
	"errors"
	"strings"
	"sync"

	pkgerrors "coredetect/pkg/errors"

	"github.com/go-playground/validator/v10"
)

var (
	once     sync.Once
	instance *validator.Validate
)

func get() *validator.Validate {
	once.Do(func() {
		instance = validator.New(validator.WithRequiredStructEnabled())
		_ = instance.RegisterValidation("userid", func(fl validator.FieldLevel) bool {
			s := fl.Field().String()
			if s == "" {
				return true
			}
			for _, r := range s {
				if r < '0' || r > '9' {
					return false
				}
			}
			return true
		})
	})
	return instance
}

// Struct validates s and returns a VALIDATION AppError listing every failed field
func Struct(s interface{}) error {
	err := get().Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return pkgerrors.NewValidationError(err.Error())
	}

	fields := make([]string, 0, len(fieldErrs))
	appErr := pkgerrors.NewValidationError("invalid request")
	for _, fe := range fieldErrs {
		name := strings.ToLower(fe.Field())
		fields = append(fields, name)
		appErr = appErr.WithDetail(name, fe.Tag())
	}
	appErr.Message = "invalid request: " + strings.Join(fields, ", ")
	return appErr
}
