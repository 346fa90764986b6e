// Package mocks provides mock implementations for testing.
package mocks

import (
	"context"
	"strconv"
	"sync"
	"time"

	"meep/fpgarelay/pkg/backend"
)

// MockBackend is a scripted stand-in for the FPGA backend. It implements
// relay.Invoker and records every payload it receives.
type MockBackend struct {
	mu    sync.Mutex
	calls []string

	// Respond produces the outcome for a payload. Defaults to Doubler.
	Respond func(ctx context.Context, payload string) backend.Outcome
}

// NewMockBackend returns a backend that doubles integer payloads.
func NewMockBackend() *MockBackend {
	return &MockBackend{Respond: Doubler}
}

// NewFixedBackend returns a backend that always yields o.
func NewFixedBackend(o backend.Outcome) *MockBackend {
	return &MockBackend{Respond: func(context.Context, string) backend.Outcome { return o }}
}

// Invoke records payload and returns the scripted outcome.
func (m *MockBackend) Invoke(ctx context.Context, payload string) backend.Outcome {
	m.mu.Lock()
	m.calls = append(m.calls, payload)
	respond := m.Respond
	m.mu.Unlock()

	if respond == nil {
		respond = Doubler
	}
	return respond(ctx, payload)
}

// Calls returns the payloads received so far.
func (m *MockBackend) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

// Doubler behaves like process_data.sh: integers come back doubled,
// anything else exits nonzero.
func Doubler(_ context.Context, payload string) backend.Outcome {
	v, err := strconv.ParseInt(payload, 10, 64)
	if err != nil {
		return backend.NonZeroExit("bad input", 1)
	}
	return backend.OK(strconv.FormatInt(v*2, 10))
}

// Slow wraps respond with a delay that honours ctx, reporting a timeout
// once budget is exceeded.
func Slow(delay, budget time.Duration, respond func(context.Context, string) backend.Outcome) func(context.Context, string) backend.Outcome {
	return func(ctx context.Context, payload string) backend.Outcome {
		wait := delay
		if budget < wait {
			wait = budget
		}

		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return backend.InvocationError("cancelled: " + ctx.Err().Error())
		}

		if delay > budget {
			return backend.Timeout()
		}
		return respond(ctx, payload)
	}
}
