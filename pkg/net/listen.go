package net

import (
	"context"
	"fmt"
	"net"

	"meep/fpgarelay/pkg/config"
	"meep/fpgarelay/pkg/format"
	"meep/fpgarelay/pkg/log"
	"meep/fpgarelay/pkg/transport/tcp"
	"meep/fpgarelay/pkg/transport/udp"
	"meep/fpgarelay/pkg/transport/ws"
)

// listenDependencies holds injectable listener constructors for testing.
type listenDependencies struct {
	listenTCP func(ctx context.Context, addr string) (net.Listener, error)
	listenWS  func(ctx context.Context, addr string, logger *log.Logger) (net.Listener, error)
	listenUDP func(ctx context.Context, addr string) (net.Listener, error)
}

var realListenDependencies = &listenDependencies{
	listenTCP: tcp.NewListener,
	listenWS: func(ctx context.Context, addr string, logger *log.Logger) (net.Listener, error) {
		return ws.NewListener(ctx, addr, logger)
	},
	listenUDP: func(ctx context.Context, addr string) (net.Listener, error) {
		return udp.NewListener(ctx, addr)
	},
}

// Listen binds a listener for cfg's protocol on cfg's host and port.
// A bind failure is returned as is; the caller treats it as fatal.
func Listen(ctx context.Context, cfg *config.Shared) (net.Listener, error) {
	return listen(ctx, cfg, listenDependenciesFor(cfg))
}

// listenDependenciesFor swaps in cfg.Deps.TCPListener when one is set.
func listenDependenciesFor(cfg *config.Shared) *listenDependencies {
	if cfg.Deps == nil || cfg.Deps.TCPListener == nil {
		return realListenDependencies
	}

	deps := *realListenDependencies
	deps.listenTCP = cfg.Deps.TCPListener
	return &deps
}

func listen(ctx context.Context, cfg *config.Shared, deps *listenDependencies) (net.Listener, error) {
	addr := format.ListenAddr(cfg.Host, cfg.Port)
	cfg.Logger.VerboseMsg("Creating listener for protocol %s at %s", cfg.Protocol, addr)

	var (
		nl  net.Listener
		err error
	)

	switch cfg.Protocol {
	case config.ProtoWS:
		nl, err = deps.listenWS(ctx, addr, cfg.Logger)
	case config.ProtoUDP:
		nl, err = deps.listenUDP(ctx, addr)
	case config.ProtoTCP:
		nl, err = deps.listenTCP(ctx, addr)
	default:
		return nil, fmt.Errorf("unsupported protocol %s", cfg.Protocol)
	}
	if err != nil {
		return nil, fmt.Errorf("create %s listener: %w", cfg.Protocol, err)
	}

	return nl, nil
}
