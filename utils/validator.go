package utils

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

type ValidationService struct {
	validator *validator.Validate
}

type ValidationError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Value   string `json:"value,omitempty"`
	Message string `json:"message"`
}

func NewValidationService() *ValidationService {
	return &ValidationService{
		validator: validator.New(),
	}
}

// ValidateStruct validates a struct and returns per-field errors.
func (vs *ValidationService) ValidateStruct(s interface{}) []ValidationError {
	var errs []ValidationError

	err := vs.validator.Struct(s)
	if err == nil {
		return nil
	}

	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return []ValidationError{{Message: err.Error()}}
	}

	for _, fieldErr := range validationErrors {
		errs = append(errs, ValidationError{
			Field:   strings.ToLower(fieldErr.Field()[:1]) + fieldErr.Field()[1:],
			Tag:     fieldErr.Tag(),
			Value:   fmt.Sprintf("%v", fieldErr.Value()),
			Message: messageForTag(fieldErr),
		})
	}

	return errs
}

func messageForTag(fieldErr validator.FieldError) string {
	switch fieldErr.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fieldErr.Field())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", fieldErr.Field(), fieldErr.Param())
	case "min":
		return fmt.Sprintf("%s must be at least %s", fieldErr.Field(), fieldErr.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", fieldErr.Field(), fieldErr.Param())
	default:
		return fmt.Sprintf("%s failed validation: %s", fieldErr.Field(), fieldErr.Tag())
	}
}
