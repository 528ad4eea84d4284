package validator

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// UseJSONFieldNames makes v report fields by their json name.
func UseJSONFieldNames(v *validator.Validate) {
	v.RegisterTagNameFunc(jsonName)
}

func jsonName(f reflect.StructField) string {
	name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
	switch name {
	case "-":
		return ""
	case "":
		return f.Name
	}
	return name
}

// FieldErrors maps each failed field to the rule it broke. Anything that is
// not a validation failure, e.g. malformed JSON, is reported under "body".
func FieldErrors(err error) map[string]string {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return map[string]string{"body": err.Error()}
	}
	out := make(map[string]string, len(ve))
	for _, fe := range ve {
		out[fe.Field()] = fe.Tag()
	}
	return out
}
