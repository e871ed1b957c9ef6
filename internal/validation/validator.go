// Package validation provides struct validation for imported catalog data
// using the validator/v10 library.
package validation

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"github.com/go-playground/validator/v10"

	"github.com/numisapp/numis-server/internal/domain"
	domainerrors "github.com/numisapp/numis-server/internal/errors"
)

// Validator wraps go-playground/validator with domain error conversion.
// It carries the struct-level rules for catalog types, so every import
// path applies the same contract.
type Validator struct {
	v *validator.Validate
}

// New creates a validator configured for our domain.
func New() *Validator {
	v := validator.New()

	// Use JSON tag names in error messages
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := fld.Tag.Get("json")
		if name == "" {
			return fld.Name
		}
		// Remove options like omitempty, -
		for i := range len(name) {
			if name[i] == ',' {
				return name[:i]
			}
		}
		return name
	})

	v.RegisterStructValidation(coinStructLevel, domain.Coin{})
	v.RegisterStructValidation(tagStructLevel, domain.TagDefinition{})

	return &Validator{v: v}
}

// coinStructLevel enforces the import contract: an ID and both sequence
// fields present, matching what every other component assumes.
func coinStructLevel(sl validator.StructLevel) {
	coin := sl.Current().Interface().(domain.Coin)
	if coin.ID == "" {
		sl.ReportError(coin.ID, "id", "ID", "required", "")
	}
	if coin.Images == nil {
		sl.ReportError(coin.Images, "images", "Images", "required", "")
	}
	if coin.Tags == nil {
		sl.ReportError(coin.Tags, "tags", "Tags", "required", "")
	}
}

func tagStructLevel(sl validator.StructLevel) {
	tag := sl.Current().Interface().(domain.TagDefinition)
	if tag.Category == "" {
		sl.ReportError(tag.Category, "category", "Category", "required", "")
	}
	if tag.Value == "" {
		sl.ReportError(tag.Value, "value", "Value", "required", "")
	}
}

// Validate validates a struct and returns a domain error.
func (v *Validator) Validate(s any) error {
	if err := v.v.Struct(s); err != nil {
		return v.formatError(err)
	}
	return nil
}

// ValidateCtx is Validate with context propagation.
func (v *Validator) ValidateCtx(ctx context.Context, s any) error {
	if err := v.v.StructCtx(ctx, s); err != nil {
		return v.formatError(err)
	}
	return nil
}

// formatError converts validator errors to domain errors.
func (v *Validator) formatError(err error) error {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return err
	}

	// Collect all field errors
	fieldErrors := make(map[string]string)
	for _, e := range validationErrs {
		fieldErrors[e.Field()] = friendlyMessage(e)
	}

	// Return domain validation error with details
	return domainerrors.ValidationWithDetails("validation failed", fieldErrors)
}

func friendlyMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s characters", e.Param())
	case "max":
		return fmt.Sprintf("must not exceed %s characters", e.Param())
	case "gte":
		return "must be greater than or equal to " + e.Param()
	case "lte":
		return "must be less than or equal to " + e.Param()
	case "oneof":
		return "must be one of: " + e.Param()
	default:
		return "is invalid"
	}
}
