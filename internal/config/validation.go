package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

// newValidator reports fields by their koanf keys, so a message names the
// same path a YAML file or QF_ variable would use.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("koanf"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate fails fast on an unusable configuration. Every broken field is
// reported, one per line.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}

	lines := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		lines = append(lines, describe(fe))
	}
	return fmt.Errorf("config validation failed:\n  %s", strings.Join(lines, "\n  "))
}

// describe renders one failure as "<key> <problem> (<env var>)".
func describe(fe validator.FieldError) string {
	key := keyPath(fe.Namespace())

	var problem string
	switch fe.Tag() {
	case "required":
		problem = "is required"
	case "required_if":
		field, value, _ := strings.Cut(fe.Param(), " ")
		problem = fmt.Sprintf("is required when %s is %s", snake(field), value)
	case "required_with":
		problem = fmt.Sprintf("is required when %s is set", snake(fe.Param()))
	case "min":
		problem = "must be at least " + fe.Param()
	case "max":
		problem = "must be at most " + fe.Param()
	case "oneof":
		problem = "must be one of: " + fe.Param()
	case "url":
		problem = "must be a valid URL"
	default:
		problem = "failed " + fe.Tag()
	}
	return fmt.Sprintf("%s %s (%s)", key, problem, envName(key))
}

// keyPath drops the root struct from a namespace: "Config.auth.jwt_secret"
// becomes "auth.jwt_secret".
func keyPath(namespace string) string {
	if _, rest, ok := strings.Cut(namespace, "."); ok {
		return rest
	}
	return namespace
}

// envName is the variable that overrides key, see Load.
func envName(key string) string {
	return envPrefix + strings.ToUpper(strings.ReplaceAll(key, ".", "__"))
}

// snake converts a Go field name used in a validate tag parameter
// ("ClientID") into its koanf spelling ("client_id").
func snake(name string) string {
	runes := []rune(name)
	var b strings.Builder
	for i, r := range runes {
		if i > 0 && unicode.IsUpper(r) {
			prevLower := unicode.IsLower(runes[i-1])
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if prevLower || (nextLower && unicode.IsUpper(runes[i-1])) {
				b.WriteByte('_')
			}
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}
