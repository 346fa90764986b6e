package config

import (
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// DefaultReadTimeout outlasts the server's backend timeout, so the client
// sees the relay's own timeout message rather than giving up first.
const DefaultReadTimeout = DefaultBackendTimeout + 5*time.Second

// Client configures the one-shot request client.
type Client struct {
	InputFile   string
	ReadTimeout time.Duration
}

// Validate ...
func (c *Client) Validate() []error {
	var errs []error

	if err := validation.Validate(c.InputFile, validation.Required); err != nil {
		errs = append(errs, fmt.Errorf("input file %s", err))
	}

	if err := validation.Validate(c.ReadTimeout, validation.Required, validation.Min(time.Millisecond)); err != nil {
		errs = append(errs, fmt.Errorf("'--read-timeout' %s", err))
	}

	return errs
}
