package config

import (
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// DefaultMaxLineBytes is the largest request line the relay accepts.
const DefaultMaxLineBytes = 1024

const maxLineBytesCeiling = 1 << 20

// Server configures the listener and the connection handlers.
type Server struct {
	// MaxConns caps concurrently handled connections, 0 means unbounded.
	MaxConns     int
	MaxLineBytes int
	LogFile      string
}

// Validate ...
func (c *Server) Validate() []error {
	var errs []error

	if err := validation.Validate(c.MaxConns, validation.Min(0)); err != nil {
		errs = append(errs, fmt.Errorf("'--max-conns' %s", err))
	}

	if err := validation.Validate(c.MaxLineBytes, validation.Required, validation.Min(1), validation.Max(maxLineBytesCeiling)); err != nil {
		errs = append(errs, fmt.Errorf("'--max-line' %s", err))
	}

	return errs
}
