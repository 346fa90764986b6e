// Package helpers provides common utilities for integration and end-to-end tests.
package helpers

import (
	"context"
	"io"
	"testing"
	"time"

	mocktcp "meep/fpgarelay/mocks/tcp"
	"meep/fpgarelay/pkg/config"
	"meep/fpgarelay/pkg/entrypoint"
	"meep/fpgarelay/pkg/log"
)

// RelayHost and RelayPort are where the relay listens on the mock network.
const (
	RelayHost = "127.0.0.1"
	RelayPort = 9999
)

// SetupMockDependencies creates a mocked network and dependencies that use it.
func SetupMockDependencies() (*mocktcp.MockTCPNetwork, *config.Dependencies) {
	mockNet := mocktcp.NewMockTCPNetwork()

	deps := &config.Dependencies{
		TCPDialer:   mockNet.Dial,
		TCPListener: mockNet.Listen,
	}

	return mockNet, deps
}

// SharedConfig returns a config for the relay address on the mocked network.
func SharedConfig(deps *config.Dependencies) *config.Shared {
	return &config.Shared{
		Protocol: config.ProtoTCP,
		Host:     RelayHost,
		Port:     RelayPort,
		Timeout:  2 * time.Second,
		Logger:   log.New(io.Discard, false),
		Deps:     deps,
	}
}

// ShellBackend returns a backend running script with sh. The payload arrives
// on stdin.
func ShellBackend(script string, timeout time.Duration) *config.Backend {
	return &config.Backend{
		Program: "sh",
		Args:    []string{"-c", script},
		Timeout: timeout,
	}
}

// StartRelay runs the relay on the mocked network until the test ends and
// blocks until it accepts connections.
func StartRelay(t *testing.T, mockNet *mocktcp.MockTCPNetwork, cfg *config.Shared, srvCfg *config.Server, bCfg *config.Backend) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- entrypoint.Serve(ctx, cfg, srvCfg, bCfg) }()

	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("relay stopped with error: %v", err)
			}
		case <-time.After(10 * time.Second):
			t.Error("relay did not stop")
		}
	})

	if err := mockNet.WaitForListener(RelayHost, RelayPort, 2*time.Second); err != nil {
		t.Fatalf("relay failed to start listening: %v", err)
	}
}

// Send sends payload to the relay and returns its answer.
func Send(ctx context.Context, cfg *config.Shared, payload string) (string, error) {
	return entrypoint.Send(ctx, cfg, &config.Client{InputFile: "-", ReadTimeout: 10 * time.Second}, payload)
}
