// Package net dispatches listening and dialing to the configured transport.
package net

import (
	"context"
	"fmt"
	"net"
	"time"

	"meep/fpgarelay/pkg/config"
	"meep/fpgarelay/pkg/format"
	"meep/fpgarelay/pkg/transport/tcp"
	"meep/fpgarelay/pkg/transport/udp"
	"meep/fpgarelay/pkg/transport/ws"
)

type dialFunc func(ctx context.Context, addr string, timeout time.Duration) (net.Conn, error)

// dialDependencies holds injectable dial functions for testing.
type dialDependencies struct {
	dialTCP dialFunc
	dialWS  dialFunc
	dialUDP dialFunc
}

var realDialDependencies = &dialDependencies{
	dialTCP: tcp.Dial,
	dialWS:  ws.Dial,
	dialUDP: udp.Dial,
}

// Dial connects to cfg's host and port over cfg's protocol. cfg.Timeout
// bounds connection setup.
func Dial(ctx context.Context, cfg *config.Shared) (net.Conn, error) {
	return dial(ctx, cfg, dialDependenciesFor(cfg))
}

// dialDependenciesFor swaps in cfg.Deps.TCPDialer when one is set.
func dialDependenciesFor(cfg *config.Shared) *dialDependencies {
	if cfg.Deps == nil || cfg.Deps.TCPDialer == nil {
		return realDialDependencies
	}

	deps := *realDialDependencies
	deps.dialTCP = dialFunc(cfg.Deps.TCPDialer)
	return &deps
}

func dial(ctx context.Context, cfg *config.Shared, deps *dialDependencies) (net.Conn, error) {
	addr := format.Addr(cfg.Host, cfg.Port)
	cfg.Logger.VerboseMsg("Dialing %s using protocol %s", addr, cfg.Protocol)

	var fn dialFunc
	switch cfg.Protocol {
	case config.ProtoWS:
		fn = deps.dialWS
	case config.ProtoUDP:
		fn = deps.dialUDP
	case config.ProtoTCP:
		fn = deps.dialTCP
	default:
		return nil, fmt.Errorf("unsupported protocol %s", cfg.Protocol)
	}

	conn, err := fn(ctx, addr, cfg.Timeout)
	if err != nil {
		cfg.Logger.VerboseMsg("Connection failed: %v", err)
		return nil, fmt.Errorf("dial %s: %w", format.URL(cfg.Protocol, cfg.Host, cfg.Port), err)
	}

	cfg.Logger.VerboseMsg("Connection established")
	return conn, nil
}
