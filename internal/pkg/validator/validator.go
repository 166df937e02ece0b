package validator

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Validator instance
var validate *validator.Validate

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

	// Register custom validations
	registerCustomValidations()
}

func registerCustomValidations() {
	// Commission event type validation
	validate.RegisterValidation("event_type", func(fl validator.FieldLevel) bool {
		eventType := fl.Field().String()
		validTypes := []string{"PACKAGE_PURCHASE", "CREDIT_TOPUP"}
		for _, t := range validTypes {
			if eventType == t {
				return true
			}
		}
		return false
	})

	// Ledger action validation
	validate.RegisterValidation("ledger_action", func(fl validator.FieldLevel) bool {
		action := fl.Field().String()
		validActions := []string{"approve", "mark_paid", "reverse"}
		for _, a := range validActions {
			if action == a {
				return true
			}
		}
		return false
	})

	// Payout action validation
	validate.RegisterValidation("payout_action", func(fl validator.FieldLevel) bool {
		action := fl.Field().String()
		validActions := []string{"approve", "mark_paid", "reject"}
		for _, a := range validActions {
			if action == a {
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
		case "url":
			errors[field] = "Invalid URL format"
		case "uuid":
			errors[field] = "Invalid UUID format"
		case "event_type":
			errors[field] = "Invalid event type. Must be: PACKAGE_PURCHASE or CREDIT_TOPUP"
		case "ledger_action":
			errors[field] = "Invalid action. Must be: approve, mark_paid, or reverse"
		case "payout_action":
			errors[field] = "Invalid action. Must be: approve, mark_paid, or reject"
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
