package backend

import (
	"fmt"
	"time"
)

// Kind classifies one backend invocation.
type Kind int

const (
	// KindOK means the command exited 0.
	KindOK Kind = iota + 1
	// KindNonZeroExit means the command ran and exited with a failure status.
	KindNonZeroExit
	// KindTimeout means the wall-clock budget ran out and the process group was killed.
	KindTimeout
	// KindInvocationError means the command could not be run at all.
	KindInvocationError
)

func (k Kind) String() string {
	switch k {
	case KindOK:
		return "ok"
	case KindNonZeroExit:
		return "nonzero-exit"
	case KindTimeout:
		return "timeout"
	case KindInvocationError:
		return "invocation-error"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Outcome is the classified result of one invocation. Which fields are set
// depends on Kind: Output for KindOK, Stderr and ExitCode for
// KindNonZeroExit, Message for KindInvocationError.
type Outcome struct {
	Kind     Kind
	Output   string
	Stderr   string
	ExitCode int
	Message  string
	Duration time.Duration
}

// OK ...
func OK(output string) Outcome {
	return Outcome{Kind: KindOK, Output: output}
}

// NonZeroExit ...
func NonZeroExit(stderr string, code int) Outcome {
	return Outcome{Kind: KindNonZeroExit, Stderr: stderr, ExitCode: code}
}

// Timeout ...
func Timeout() Outcome {
	return Outcome{Kind: KindTimeout}
}

// InvocationError ...
func InvocationError(message string) Outcome {
	return Outcome{Kind: KindInvocationError, Message: message}
}

func (o Outcome) String() string {
	switch o.Kind {
	case KindOK:
		return fmt.Sprintf("ok(%q) in %v", o.Output, o.Duration)
	case KindNonZeroExit:
		return fmt.Sprintf("exit %d (%q) in %v", o.ExitCode, o.Stderr, o.Duration)
	case KindTimeout:
		return fmt.Sprintf("timeout after %v", o.Duration)
	case KindInvocationError:
		return fmt.Sprintf("invocation error (%s)", o.Message)
	default:
		return o.Kind.String()
	}
}
