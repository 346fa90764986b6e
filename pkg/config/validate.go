package config

import (
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// ValidatableConfig ...
type ValidatableConfig interface {
	Validate() []error
}

// Validate collects the errors of all given configs.
func Validate(cfgs ...ValidatableConfig) []error {
	var out []error

	for _, cfg := range cfgs {
		out = append(out, cfg.Validate()...)
	}

	return out
}

func validatePort(port int) error {
	err := validation.Validate(port, validation.Required, validation.Min(1), validation.Max(65535))
	if err != nil {
		return fmt.Errorf("%d not in [1, 65535]", port)
	}

	return nil
}
