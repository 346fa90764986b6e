package entrypoint

import (
	"context"

	"meep/fpgarelay/pkg/backend"
	"meep/fpgarelay/pkg/client"
	"meep/fpgarelay/pkg/config"
	"meep/fpgarelay/pkg/relay"
	"meep/fpgarelay/pkg/server"
	"meep/fpgarelay/pkg/transport"
)

// serverInterface defines the interface for a server that can serve, be
// closed and be drained.
type serverInterface interface {
	Serve() error
	Close() error
	Wait()
}

// serverFactory is a function type for creating servers.
type serverFactory func(ctx context.Context, cfg *config.Shared, srvCfg *config.Server, handle transport.Handler) (serverInterface, error)

// realServerFactory returns the actual server factory used in production.
func realServerFactory() serverFactory {
	return func(ctx context.Context, cfg *config.Shared, srvCfg *config.Server, handle transport.Handler) (serverInterface, error) {
		return server.New(ctx, cfg, srvCfg, handle)
	}
}

// invokerFactory is a function type for creating backend invokers.
type invokerFactory func(bCfg *config.Backend, cfg *config.Shared) relay.Invoker

// realInvokerFactory returns the actual invoker factory used in production.
func realInvokerFactory() invokerFactory {
	return func(bCfg *config.Backend, cfg *config.Shared) relay.Invoker {
		return backend.New(bCfg, cfg.Logger)
	}
}

// senderInterface defines the interface for a client that sends one payload.
type senderInterface interface {
	Send(ctx context.Context, payload string) (string, error)
}

// senderFactory is a function type for creating clients.
type senderFactory func(cfg *config.Shared, cCfg *config.Client) senderInterface

// realSenderFactory returns the actual client factory used in production.
func realSenderFactory() senderFactory {
	return func(cfg *config.Shared, cCfg *config.Client) senderInterface {
		return client.New(cfg, cCfg)
	}
}
