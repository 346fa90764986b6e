package ws

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"meep/fpgarelay/pkg/log"
	"meep/fpgarelay/pkg/transport/tcp"
)

// subprotocol is negotiated on every upgrade.
const subprotocol = "bin"

// Listener accepts WebSocket sessions over plain HTTP and hands each one out
// as a net.Conn. Any request path is accepted.
type Listener struct {
	ctx    context.Context
	nl     net.Listener
	srv    *http.Server
	logger *log.Logger

	conns chan net.Conn
	done  chan struct{}

	closeOnce sync.Once
	mu        sync.Mutex
	err       error
}

// NewListener binds addr and starts serving upgrades. Sessions live until
// they are closed or ctx is done.
func NewListener(ctx context.Context, addr string, logger *log.Logger) (*Listener, error) {
	nl, err := tcp.NewListener(ctx, addr)
	if err != nil {
		return nil, err
	}

	l := &Listener{
		ctx:    ctx,
		nl:     nl,
		logger: logger,
		conns:  make(chan net.Conn),
		done:   make(chan struct{}),
	}
	l.srv = &http.Server{
		Handler:           http.HandlerFunc(l.upgrade),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		err := l.srv.Serve(nl)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.shutdown(fmt.Errorf("http.Server.Serve(): %w", err))
		}
	}()

	return l, nil
}

func (l *Listener) upgrade(w http.ResponseWriter, r *http.Request) {
	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		Subprotocols: []string{subprotocol},
	})
	if err != nil {
		l.logger.VerboseMsg("websocket.Accept(%s): %s", r.RemoteAddr, err)
		return
	}

	ctx, cancel := context.WithCancel(l.ctx)
	conn := &wsConn{
		Conn:   websocket.NetConn(ctx, c, websocket.MessageBinary),
		remote: remoteAddr(r.RemoteAddr),
		cancel: cancel,
	}

	select {
	case l.conns <- conn:
	case <-l.done:
		conn.Close()
	}
}

// Accept waits for the next upgraded session.
func (l *Listener) Accept() (net.Conn, error) {
	select {
	case conn := <-l.conns:
		return conn, nil
	case <-l.done:
		l.mu.Lock()
		defer l.mu.Unlock()
		return nil, l.err
	}
}

// Close stops accepting. Sessions already handed out stay open.
func (l *Listener) Close() error {
	l.shutdown(net.ErrClosed)
	return nil
}

// Addr returns the bound address.
func (l *Listener) Addr() net.Addr {
	return l.nl.Addr()
}

func (l *Listener) shutdown(reason error) {
	l.closeOnce.Do(func() {
		l.mu.Lock()
		l.err = reason
		l.mu.Unlock()

		close(l.done)
		_ = l.srv.Close()
	})
}

// wsConn reports the HTTP peer as its remote address and releases its
// context on close.
type wsConn struct {
	net.Conn
	remote net.Addr
	cancel context.CancelFunc
}

func (c *wsConn) RemoteAddr() net.Addr {
	if c.remote != nil {
		return c.remote
	}
	return c.Conn.RemoteAddr()
}

func (c *wsConn) Close() error {
	defer c.cancel()
	return c.Conn.Close()
}

func remoteAddr(s string) net.Addr {
	addr, err := net.ResolveTCPAddr("tcp", s)
	if err != nil {
		return nil
	}
	return addr
}
