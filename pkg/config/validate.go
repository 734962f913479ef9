package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"saxsdensity/internal/models"
)

// newValidator returns a validator that reports fields by their YAML names
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks field ranges and cross-field constraints. The first
// violation is returned as a *models.ConfigurationError.
func (c *Config) Validate() error {
	if err := newValidator().Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return &models.ConfigurationError{
				Code:    models.ErrCodeInvalidValue,
				Field:   strings.TrimPrefix(fe.Namespace(), "Config."),
				Message: fmt.Sprintf("value %v violates %q", fe.Value(), constraintText(fe)),
			}
		}
		return fmt.Errorf("validating config: %w", err)
	}

	sw := c.ShrinkWrap
	if sw.SigmaEnd > sw.SigmaStart {
		return &models.ConfigurationError{
			Code:    models.ErrCodeInvalidValue,
			Field:   "shrinkWrap.sigmaEnd",
			Message: fmt.Sprintf("sigmaEnd %g exceeds sigmaStart %g", sw.SigmaEnd, sw.SigmaStart),
		}
	}
	if sw.Schedule == "annealed" && sw.ThresholdFractionEnd < sw.ThresholdFraction {
		return &models.ConfigurationError{
			Code:    models.ErrCodeInvalidValue,
			Field:   "shrinkWrap.thresholdFractionEnd",
			Message: "annealed threshold must not decrease",
		}
	}
	return nil
}

func constraintText(fe validator.FieldError) string {
	if fe.Param() == "" {
		return fe.Tag()
	}
	return fe.Tag() + "=" + fe.Param()
}
