// Package config holds the relay's configuration structs and their validation.
package config

import (
	"fmt"
	"time"

	"meep/fpgarelay/pkg/log"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

// Protocol selects the transport a relay listens on or a client dials.
type Protocol int

const (
	// ProtoTCP is a plain TCP stream, the default wire protocol.
	ProtoTCP Protocol = iota + 1
	// ProtoWS carries the same protocol inside a WebSocket session.
	ProtoWS
	// ProtoUDP carries the same protocol over KCP reliable streams on UDP.
	ProtoUDP
)

func (p Protocol) String() string {
	switch p {
	case ProtoTCP:
		return "tcp"
	case ProtoWS:
		return "ws"
	case ProtoUDP:
		return "udp"
	default:
		return "unknown"
	}
}

// DefaultPort is the relay's well-known port.
const DefaultPort = 9999

// DefaultTimeout bounds dialing and waiting for a request line.
const DefaultTimeout = 10 * time.Second

// Shared is the configuration common to the server and the client.
type Shared struct {
	Protocol Protocol
	Host     string
	Port     int
	Timeout  time.Duration
	Verbose  bool

	Logger *log.Logger
	Deps   *Dependencies
}

// Validate checks the transport and timeout settings. An empty host or "*"
// means all interfaces.
func (c *Shared) Validate() []error {
	var errs []error

	if err := validation.Validate(c.Protocol, validation.Required, validation.In(ProtoTCP, ProtoWS, ProtoUDP)); err != nil {
		errs = append(errs, fmt.Errorf("protocol: %s", err))
	}

	if c.Host != "" && c.Host != "*" {
		if err := validation.Validate(c.Host, is.Host); err != nil {
			errs = append(errs, fmt.Errorf("'--transport' host %q: %s", c.Host, err))
		}
	}

	if err := validatePort(c.Port); err != nil {
		errs = append(errs, fmt.Errorf("'--transport' port %s", err))
	}

	if err := validation.Validate(c.Timeout, validation.Required, validation.Min(time.Millisecond)); err != nil {
		errs = append(errs, fmt.Errorf("'--timeout' %s", err))
	}

	return errs
}
