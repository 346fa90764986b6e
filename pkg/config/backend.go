package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// PayloadPlaceholder marks the argument that is replaced by the request payload.
const PayloadPlaceholder = "{payload}"

// DefaultBackendTimeout is the wall-clock budget of one backend invocation.
const DefaultBackendTimeout = 30 * time.Second

// DefaultBackendProgram and DefaultBackendArgs reach the FPGA host over ssh.
// The payload travels on stdin, the remote pipeline never sees it as shell text.
var (
	DefaultBackendProgram = "ssh"
	DefaultBackendArgs    = []string{
		"-o", "BatchMode=yes",
		"raju",
		"cd ~/core_tile/fpga/meep_shell && ./process_data.sh",
	}
)

// Backend describes the external command that processes one payload.
type Backend struct {
	Program string
	Args    []string
	Dir     string
	Env     []string
	Timeout time.Duration
}

// DefaultBackend returns a Backend with the ssh template and default timeout.
func DefaultBackend() *Backend {
	return &Backend{
		Program: DefaultBackendProgram,
		Args:    append([]string(nil), DefaultBackendArgs...),
		Timeout: DefaultBackendTimeout,
	}
}

// Validate ...
func (c *Backend) Validate() []error {
	var errs []error

	if err := validation.Validate(c.Program, validation.Required); err != nil {
		errs = append(errs, fmt.Errorf("backend program %s", err))
	}

	if err := validation.Validate(c.Args, validation.By(validatePlaceholder)); err != nil {
		errs = append(errs, fmt.Errorf("backend args: %s", err))
	}

	if filepath.Base(c.Program) == "ssh" && hasPlaceholder(c.Args) {
		errs = append(errs, fmt.Errorf("backend args: ssh joins its arguments into a remote shell command, leave out %s to pass the payload on stdin", PayloadPlaceholder))
	}

	if err := validation.Validate(c.Env, validation.Each(validation.By(validateEnvEntry))); err != nil {
		errs = append(errs, fmt.Errorf("backend env: %s", err))
	}

	if err := validation.Validate(c.Timeout, validation.Required, validation.Min(time.Millisecond)); err != nil {
		errs = append(errs, fmt.Errorf("'--backend-timeout' %s", err))
	}

	return errs
}

// validatePlaceholder allows the placeholder only as one complete argument.
// Embedding it inside a larger argument would let the payload become part
// of text that a remote shell parses.
func validatePlaceholder(value interface{}) error {
	args, _ := value.([]string)

	count := 0
	for _, a := range args {
		if a == PayloadPlaceholder {
			count++
			continue
		}
		if strings.Contains(a, PayloadPlaceholder) {
			return fmt.Errorf("%q: %s must be a whole argument", a, PayloadPlaceholder)
		}
	}

	if count > 1 {
		return fmt.Errorf("%s may appear at most once", PayloadPlaceholder)
	}

	return nil
}

func hasPlaceholder(args []string) bool {
	for _, a := range args {
		if a == PayloadPlaceholder {
			return true
		}
	}
	return false
}

func validateEnvEntry(value interface{}) error {
	entry, _ := value.(string)
	if k, _, ok := strings.Cut(entry, "="); !ok || k == "" {
		return errors.New("must be KEY=VALUE")
	}
	return nil
}
