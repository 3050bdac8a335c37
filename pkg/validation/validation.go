package validation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var Validate *validator.Validate

func init() {
	Validate = validator.New()
}

type FieldError struct {
	Field string `json:"field"`
	Tag   string `json:"tag"`
	Msg   string `json:"message"`
}

// ValidateStruct возвращает понятные сообщения по каждому полю
func ValidateStruct(s interface{}) []*FieldError {
	var fieldErrors []*FieldError

	err := Validate.Struct(s)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return []*FieldError{{Msg: err.Error()}}
	}

	for _, fe := range validationErrors {
		element := &FieldError{Field: fe.Field(), Tag: fe.Tag()}

		switch fe.Tag() {
		case "required":
			element.Msg = fmt.Sprintf("field '%s' is required.", element.Field)
		case "max":
			element.Msg = fmt.Sprintf("field '%s' must be at most %s characters.", element.Field, fe.Param())
		case "email":
			element.Msg = "invalid email format."
		case "oneof":
			element.Msg = fmt.Sprintf("field '%s' must be one of: %s.", element.Field, fe.Param())
		case "datetime":
			element.Msg = fmt.Sprintf("field '%s' must be a date in %s format.", element.Field, fe.Param())
		default:
			element.Msg = fmt.Sprintf("field '%s' failed the '%s' check.", element.Field, element.Tag)
		}
		fieldErrors = append(fieldErrors, element)
	}

	return fieldErrors
}

// Join склеивает сообщения в одну строку
func Join(fieldErrors []*FieldError) string {
	msgs := make([]string, 0, len(fieldErrors))
	for _, fe := range fieldErrors {
		msgs = append(msgs, fe.Msg)
	}
	return strings.Join(msgs, " ")
}
