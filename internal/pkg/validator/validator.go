package validator

import (
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Validator instance
var validate *validator.Validate

var msisdnPattern = regexp.MustCompile(`^0[2-9][0-9]{8}$`)

func init() {
	validate = validator.New()

	// Use JSON tag names in error messages
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	registerCustomValidations()
}

func registerCustomValidations() {
	// Role validation
	validate.RegisterValidation("role", func(fl validator.FieldLevel) bool {
		role := fl.Field().String()
		validRoles := []string{"user", "agent", "dealer", "admin", "wallet_admin", "editor"}
		for _, r := range validRoles {
			if role == r {
				return true
			}
		}
		return false
	})

	// Ghana MSISDN: 10 digits, leading 0
	validate.RegisterValidation("msisdn", func(fl validator.FieldLevel) bool {
		return msisdnPattern.MatchString(fl.Field().String())
	})

	// Bundle network type
	validate.RegisterValidation("bundle_type", func(fl validator.FieldLevel) bool {
		t := fl.Field().String()
		validTypes := []string{"mtn", "at-ishare", "at-bigtime", "telecel", ""}
		for _, v := range validTypes {
			if t == v {
				return true
			}
		}
		return false
	})
}

// Validate validates a struct and returns a map of field errors
func Validate(s interface{}) map[string]string {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	errors := make(map[string]string)
	for _, err := range err.(validator.ValidationErrors) {
		field := err.Field()
		switch err.Tag() {
		case "required":
			errors[field] = "This field is required"
		case "email":
			errors[field] = "Invalid email format"
		case "min":
			errors[field] = "Value is too short (min: " + err.Param() + ")"
		case "max":
			errors[field] = "Value is too long (max: " + err.Param() + ")"
		case "gte":
			errors[field] = "Value must be at least " + err.Param()
		case "lte":
			errors[field] = "Value must be at most " + err.Param()
		case "role":
			errors[field] = "Invalid role. Must be: user, agent, dealer, editor, wallet_admin, or admin"
		case "msisdn":
			errors[field] = "Invalid phone number. Expected a 10-digit number starting with 0"
		case "bundle_type":
			errors[field] = "Invalid bundle type. Must be: mtn, at-ishare, at-bigtime, or telecel"
		default:
			errors[field] = "Invalid value"
		}
	}

	return errors
}

// ValidateVar validates a single variable
func ValidateVar(field interface{}, tag string) error {
	return validate.Var(field, tag)
}
