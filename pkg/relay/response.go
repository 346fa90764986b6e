package relay

import (
	"fmt"

	"meep/fpgarelay/pkg/backend"
)

// Response prefixes and literals seen by clients.
const (
	ErrorPrefix       = "Error: "
	SSHErrorPrefix    = "SSH Error: "
	ServerErrorPrefix = "Server Error: "
	TimeoutResponse   = "Timeout: FPGA processing took too long"
)

// Response maps an outcome to the line written back to the client.
func Response(o backend.Outcome) string {
	switch o.Kind {
	case backend.KindOK:
		return o.Output
	case backend.KindNonZeroExit:
		return ErrorPrefix + o.Stderr
	case backend.KindTimeout:
		return TimeoutResponse
	case backend.KindInvocationError:
		return SSHErrorPrefix + o.Message
	default:
		return ServerError(fmt.Errorf("unknown outcome %s", o.Kind))
	}
}

// ServerError is the response for failures that are not backend outcomes.
func ServerError(err error) string {
	return ServerErrorPrefix + err.Error()
}
