// Package server implements the relay's listener: it accepts connections on
// the configured transport and hands each to its own goroutine.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"meep/fpgarelay/pkg/config"
	"meep/fpgarelay/pkg/log"
	pkgnet "meep/fpgarelay/pkg/net"
	"meep/fpgarelay/pkg/semaphore"
	"meep/fpgarelay/pkg/transport"
)

const (
	minBackoff = 5 * time.Millisecond
	maxBackoff = time.Second
)

// Server accepts connections and runs a transport.Handler on each.
type Server struct {
	ctx    context.Context
	cfg    *config.Shared
	nl     net.Listener
	handle transport.Handler
	sem    *semaphore.ConnSemaphore
	logger *log.Logger

	wg        sync.WaitGroup
	active    atomic.Int64
	closeOnce sync.Once
}

// New binds the listener described by cfg. A bind error is returned and
// should be treated as fatal.
func New(ctx context.Context, cfg *config.Shared, srvCfg *config.Server, handle transport.Handler) (*Server, error) {
	nl, err := pkgnet.Listen(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return NewWithListener(ctx, cfg, srvCfg, nl, handle), nil
}

// NewWithListener serves on an existing listener.
func NewWithListener(ctx context.Context, cfg *config.Shared, srvCfg *config.Server, nl net.Listener, handle transport.Handler) *Server {
	return &Server{
		ctx:    ctx,
		cfg:    cfg,
		nl:     nl,
		handle: handle,
		sem:    semaphore.New(srvCfg.MaxConns, cfg.Timeout),
		logger: cfg.Logger,
	}
}

// Serve runs the accept loop until ctx is done or Close is called, then
// returns nil. Accept failures are logged and retried with backoff; they
// never end the loop. Serve does not wait for running handlers, see Wait.
func (s *Server) Serve() error {
	stop := context.AfterFunc(s.ctx, func() { _ = s.Close() })
	defer stop()

	s.logger.InfoMsg("Listening on %s://%s", s.cfg.Protocol, s.nl.Addr())

	var backoff time.Duration
	for {
		conn, err := s.nl.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) || s.ctx.Err() != nil {
				s.logger.VerboseMsg("Listener on %s closed", s.nl.Addr())
				return nil
			}

			backoff = nextBackoff(backoff)
			s.logger.ErrorMsg("Accept(): %s (retrying in %v)", err, backoff)

			select {
			case <-time.After(backoff):
			case <-s.ctx.Done():
				return nil
			}
			continue
		}
		backoff = 0

		s.wg.Add(1)
		go s.serveConn(conn)
	}
}

func (s *Server) serveConn(conn net.Conn) {
	defer s.wg.Done()

	remote := conn.RemoteAddr()

	if !s.sem.TryAcquire() {
		s.logger.VerboseMsg("Connection limit reached, %s waits for a slot", remote)
		if err := s.sem.Acquire(s.ctx); err != nil {
			s.logger.ErrorMsg("Dropping %s: %s", remote, err)
			_ = conn.Close()
			return
		}
	}
	defer s.sem.Release()

	n := s.active.Add(1)
	defer s.active.Add(-1)
	s.logger.InfoMsg("New %s connection from %s (%d active)", s.cfg.Protocol, remote, n)

	defer func() {
		if r := recover(); r != nil {
			s.logger.ErrorMsg("Handler panic for %s: %v", remote, r)
			_ = conn.Close()
		}
	}()

	if err := s.handle(s.ctx, conn); err != nil {
		s.logger.ErrorMsg("Handling %s: %s", remote, err)
	}
	s.logger.VerboseMsg("Connection from %s done", remote)
}

// Addr returns the bound address.
func (s *Server) Addr() net.Addr {
	return s.nl.Addr()
}

// Active reports how many connections are being handled right now.
func (s *Server) Active() int {
	return int(s.active.Load())
}

// Close stops accepting. Running handlers are not interrupted.
func (s *Server) Close() error {
	var err error
	s.closeOnce.Do(func() {
		if cerr := s.nl.Close(); cerr != nil && !errors.Is(cerr, net.ErrClosed) {
			err = fmt.Errorf("closing listener: %w", cerr)
		}
	})
	return err
}

// Wait blocks until every handler started so far has returned.
func (s *Server) Wait() {
	s.wg.Wait()
}

func nextBackoff(d time.Duration) time.Duration {
	if d == 0 {
		return minBackoff
	}
	if d *= 2; d > maxBackoff {
		return maxBackoff
	}
	return d
}
