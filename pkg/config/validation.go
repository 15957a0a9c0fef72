package config

import (
	"reflect"

	iderr "github.com/whatsub/identity-core/pkg/errors"
)

// Validator is an optional interface for configuration structs that need
// cross-field checks beyond the `required` tag. When the struct passed to
// [Loader.Load] implements Validator, Validate runs after tag-based
// validation succeeds.
//
// Errors that are already [*iderr.Error] pass through unchanged; other
// errors are wrapped with [iderr.CodeValidation].
type Validator interface {
	Validate() error
}

// validate runs required-tag validation followed by the optional Validator
// hook. cfg is the original pointer (for the interface assertion); rv is
// the dereferenced struct value.
func validate(cfg any, rv reflect.Value) error {
	if err := validateRequired(rv, ""); err != nil {
		return err
	}

	if v, ok := cfg.(Validator); ok {
		if err := v.Validate(); err != nil {
			if _, isStructured := iderr.AsError(err); isStructured {
				return err
			}
			return iderr.Wrap(err, iderr.CodeValidation,
				"config: custom validation failed")
		}
	}

	return nil
}

// validateRequired recursively checks `required:"true"` fields for
// non-zero values. path carries the dotted field path for error messages.
func validateRequired(rv reflect.Value, path string) error {
	rt := rv.Type()

	for i := 0; i < rt.NumField(); i++ {
		field := rv.Field(i)
		sf := rt.Field(i)

		if !field.CanSet() {
			continue
		}

		fieldPath := sf.Name
		if path != "" {
			fieldPath = path + "." + sf.Name
		}

		if field.Kind() == reflect.Struct && sf.Type != durationType {
			if err := validateRequired(field, fieldPath); err != nil {
				return err
			}
			continue
		}

		if sf.Tag.Get("required") != "true" {
			continue
		}

		if field.IsZero() {
			return iderr.Newf(iderr.CodeValidationRequired,
				"config: required field %q is empty", fieldPath)
		}
	}

	return nil
}
