package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// New returns a validator that reads `binding` tags, the same tags gin
// uses, and reports fields by their JSON name.
func New() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.SetTagName("binding")
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	return v
}

// Messages turns a validation error into one message per failed field.
func Messages(err error) []string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []string{"invalid request body"}
	}

	out := make([]string, 0, len(verrs))
	for _, e := range verrs {
		out = append(out, FieldMessage(e))
	}
	return out
}

// FieldMessage prefers a field-specific message and falls back to a
// generic one for the tag.
func FieldMessage(e validator.FieldError) string {
	if msgs := customMessages[e.Field()]; msgs != nil {
		if msg, ok := msgs[e.Tag()]; ok {
			return msg
		}
	}
	return DefaultMessage(e.Field(), e.Tag(), e.Param())
}

var customMessages = map[string]map[string]string{
	"email": {
		"required": "email is required",
		"email":    "email must be a valid email address",
	},
	"password": {
		"required": "password is required",
		"min":      "password must be at least 6 characters",
		"max":      "password must be at most 72 characters",
	},
	"current_password": {
		"required": "current password is required",
	},
	"new_password": {
		"required": "new password is required",
		"min":      "new password must be at least 6 characters",
		"max":      "new password must be at most 72 characters",
		"nefield":  "new password must differ from the current password",
	},
}

func DefaultMessage(field, tag, param string) string {
	field = strings.ReplaceAll(strings.ToLower(field), "_", " ")

	switch tag {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "email":
		return fmt.Sprintf("%s must be a valid email address", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, param)
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, param)
	case "len":
		return fmt.Sprintf("%s must be exactly %s characters", field, param)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, param)
	case "eqfield":
		return fmt.Sprintf("%s must match %s", field, strings.ToLower(param))
	case "nefield":
		return fmt.Sprintf("%s must differ from %s", field, strings.ToLower(param))
	case "hexadecimal":
		return fmt.Sprintf("%s must be hexadecimal", field)
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}
