package tool

import (
	"fmt"

	"qtick-agent/internal/domain"
)

// RequireField returns an error if the string value is empty.
func RequireField(name, value string) error {
	if value == "" {
		return fmt.Errorf("%w: '%s' is required", domain.ErrInvalidInput, name)
	}
	return nil
}

// ValidatePositive checks that value is > 0.
func ValidatePositive(name string, value int) error {
	if value <= 0 {
		return fmt.Errorf("%w: '%s' is required and must be > 0", domain.ErrInvalidInput, name)
	}
	return nil
}

// ValidateAll returns the first non-nil error from the given list:
//
//	if err := ValidateAll(ValidatePositive("business_id", id), RequireField("name", name)); err != nil { ... }
func ValidateAll(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
