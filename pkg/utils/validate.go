package utils

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the validate tags on a struct value.
func Validate(value any) error {
	if err := validate.Struct(value); err != nil {
		return ValidationError(err)
	}
	return nil
}

// ValidateValue checks a single value against a tag such as "gt=0".
func ValidateValue(value any, tag string) error {
	if err := validate.Var(value, tag); err != nil {
		return ValidationError(err)
	}
	return nil
}

// ValidationError flattens validator field errors into one readable message.
func ValidationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := fe.Field()
		if field == "" {
			field = "value"
		}
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s failed '%s=%s' (got '%v')", field, fe.Tag(), fe.Param(), fe.Value()))
			continue
		}
		msgs = append(msgs, fmt.Sprintf("%s failed '%s' (got '%v')", field, fe.Tag(), fe.Value()))
	}
	return errors.New(strings.Join(msgs, "; "))
}
