package utils

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/vitwit/pinetwork/keypair"
	"github.com/vitwit/pinetwork/types"
)

var validate *validator.Validate

func init() {
	validate = validator.New(validator.WithRequiredStructEnabled())

	// Report fields by their json or mapstructure name.
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		for _, key := range []string{"json", "mapstructure"} {
			name := strings.SplitN(f.Tag.Get(key), ",", 2)[0]
			if name != "" && name != "-" {
				return name
			}
		}
		return f.Name
	})

	_ = validate.RegisterValidation("pi_network", validateNetworkTag)
	_ = validate.RegisterValidation("pi_seed", validateSeedTag)
}

// ValidateStruct validates v against its struct tags. Failures are returned
// as a validation_error listing every offending field.
func ValidateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return &types.PiError{Code: types.CodeValidation, Message: err.Error(), Err: err}
	}

	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, describe(fe))
	}
	return &types.PiError{
		Code:    types.CodeValidation,
		Message: strings.Join(msgs, "; "),
		Err:     err,
	}
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", fe.Field(), fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", fe.Field(), fe.Param())
	case "pi_seed":
		return fmt.Sprintf("%s must be a 56 character secret seed starting with 'S'", fe.Field())
	case "pi_network":
		return fmt.Sprintf("%s is not a supported network", fe.Field())
	default:
		return fmt.Sprintf("%s failed on the '%s' rule", fe.Field(), fe.Tag())
	}
}

func validateNetworkTag(fl validator.FieldLevel) bool {
	return ValidateNetwork(fl.Field().String()) == nil
}

func validateSeedTag(fl validator.FieldLevel) bool {
	return keypair.ValidateSeedFormat(fl.Field().String()) == nil
}
