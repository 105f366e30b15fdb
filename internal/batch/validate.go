package batch

import (
	"path/filepath"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"batch-transcriber/internal/domain"
)

var (
	validate *validator.Validate
	once     sync.Once
)

// getValidator returns the singleton validator with the modeltier tag registered.
func getValidator() *validator.Validate {
	once.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return fld.Name
			}
			return name
		})
		_ = validate.RegisterValidation("modeltier", validModelTier)
	})
	return validate
}

// validModelTier accepts a catalog tier id or a direct ggml model file.
func validModelTier(fl validator.FieldLevel) bool {
	value := strings.TrimSpace(fl.Field().String())
	if _, ok := domain.ModelTierByID(value); ok {
		return true
	}
	switch strings.ToLower(filepath.Ext(value)) {
	case ".bin", ".gguf":
		return true
	default:
		return false
	}
}

// validateRequest checks struct tags and returns a validation *domain.Error.
func validateRequest(req Request) error {
	err := getValidator().Struct(req)
	if err == nil {
		return nil
	}

	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return &domain.Error{Kind: domain.KindValidation, Message: "validation failed", Err: err}
	}

	messages := make([]string, 0, len(validationErrors))
	for _, e := range validationErrors {
		messages = append(messages, e.Field()+": "+formatValidationError(e))
	}
	return &domain.Error{
		Kind:    domain.KindValidation,
		Message: strings.Join(messages, "; "),
	}
}

// formatValidationError creates a human-readable error message.
func formatValidationError(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "is required"
	case "min":
		return "must contain at least " + e.Param() + " item(s)"
	case "modeltier":
		return "must be one of " + strings.Join(domain.ModelTierIDs(), ", ") + " or a .bin/.gguf model file"
	default:
		return "failed " + e.Tag() + " validation"
	}
}
