// Package entrypoint provides the entry functions behind fpgarelay's
// subcommands, separating them from CLI argument parsing.
package entrypoint

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"meep/fpgarelay/pkg/config"
	"meep/fpgarelay/pkg/relay"
)

// uses interfaces/factories from internal.go (DI for testing)

// Serve runs the relay until ctx is cancelled, then waits for in-flight
// connections. Failing to bind is returned as an error.
func Serve(ctx context.Context, cfg *config.Shared, srvCfg *config.Server, bCfg *config.Backend) error {
	return serve(ctx, cfg, srvCfg, bCfg, realServerFactory(), realInvokerFactory())
}

func serve(
	parent context.Context,
	cfg *config.Shared,
	srvCfg *config.Server,
	bCfg *config.Backend,
	newServer serverFactory,
	newInvoker invokerFactory,
) error {
	// child ctx we will cancel on return
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	h := relay.NewHandler(cfg, srvCfg, newInvoker(bCfg, cfg))

	s, err := newServer(ctx, cfg, srvCfg, h.Handle)
	if err != nil {
		return fmt.Errorf("starting relay: %w", err)
	}
	var closeOnce sync.Once
	closeServer := func() { closeOnce.Do(func() { _ = s.Close() }) }
	defer closeServer()

	cfg.Logger.VerboseMsg("Backend: %s %q (timeout %v)", bCfg.Program, bCfg.Args, bCfg.Timeout)

	errCh := make(chan error, 1)
	go func() { errCh <- s.Serve() }()

	select {
	case <-ctx.Done():
		closeServer()
		err = <-errCh
	case err = <-errCh:
		closeServer()
	}

	s.Wait()
	cfg.Logger.InfoMsg("Relay stopped")

	if err == nil || isServerClosed(err) || errors.Is(err, context.Canceled) {
		return nil
	}
	return fmt.Errorf("serving: %w", err)
}

func isServerClosed(err error) bool {
	return errors.Is(err, net.ErrClosed)
}
