// Package relay implements the per-connection protocol: one request line in,
// one response line out, then the connection is closed.
package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"meep/fpgarelay/pkg/backend"
	"meep/fpgarelay/pkg/config"
	"meep/fpgarelay/pkg/log"
)

// Invoker processes one payload. *backend.Invoker implements it.
type Invoker interface {
	Invoke(ctx context.Context, payload string) backend.Outcome
}

// Handler serves single connections. It holds no per-connection state and
// may serve any number of connections concurrently.
type Handler struct {
	inv     Invoker
	maxLine int
	timeout time.Duration
	logFile string
	logger  *log.Logger
}

// NewHandler returns a Handler that answers with inv. cfg.Timeout bounds the
// wait for the request line and the response write.
func NewHandler(cfg *config.Shared, srvCfg *config.Server, inv Invoker) *Handler {
	maxLine := srvCfg.MaxLineBytes
	if maxLine <= 0 {
		maxLine = config.DefaultMaxLineBytes
	}

	return &Handler{
		inv:     inv,
		maxLine: maxLine,
		timeout: cfg.Timeout,
		logFile: srvCfg.LogFile,
		logger:  cfg.Logger,
	}
}

// Handle reads one request from conn, invokes the backend and writes the
// response. conn is closed exactly once before Handle returns, on every path.
// The returned error is for logging only; the client has already been
// answered (or deliberately not answered) by then.
func (h *Handler) Handle(ctx context.Context, conn net.Conn) error {
	if h.logFile != "" {
		lc, err := log.NewLoggedConn(conn, h.logFile)
		if err != nil {
			conn.Close()
			return fmt.Errorf("log.NewLoggedConn(%s): %w", h.logFile, err)
		}
		conn = lc
	}

	oc := &onceConn{Conn: conn}
	defer oc.Close()

	return h.serve(ctx, oc)
}

func (h *Handler) serve(ctx context.Context, conn net.Conn) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
			if werr := h.write(conn, ServerError(err)); werr != nil {
				h.logger.VerboseMsg("Writing server error to %s: %s", conn.RemoteAddr(), werr)
			}
		}
	}()

	if h.timeout > 0 {
		_ = conn.SetReadDeadline(time.Now().Add(h.timeout))
	}

	req, err := ReadRequest(conn, h.maxLine)
	switch {
	case errors.Is(err, ErrEmptyRequest):
		h.logger.VerboseMsg("No request from %s", conn.RemoteAddr())
		return nil
	case errors.Is(err, ErrLineTooLong):
		return fmt.Errorf("protocol violation: %w (max %d bytes)", err, h.maxLine)
	case errors.Is(err, ErrInvalidEncoding):
		if werr := h.write(conn, ServerError(err)); werr != nil {
			h.logger.VerboseMsg("Writing server error to %s: %s", conn.RemoteAddr(), werr)
		}
		return fmt.Errorf("reading request: %w", err)
	case err != nil:
		// transport failures (deadline, reset) get no response
		return fmt.Errorf("reading request: %w", err)
	}

	if h.timeout > 0 {
		_ = conn.SetReadDeadline(time.Time{})
	}

	h.logger.InfoMsg("Received from %s: %s", conn.RemoteAddr(), req)

	o := h.inv.Invoke(ctx, req)
	resp := Response(o)

	if o.Kind == backend.KindOK {
		h.logger.InfoMsg("FPGA returned: %s", resp)
	} else {
		h.logger.ErrorMsg("Backend for %s: %s", conn.RemoteAddr(), o)
	}

	if err := h.write(conn, resp); err != nil {
		return fmt.Errorf("writing response: %w", err)
	}
	return nil
}

func (h *Handler) write(conn net.Conn, resp string) error {
	if h.timeout > 0 {
		_ = conn.SetWriteDeadline(time.Now().Add(h.timeout))
	}
	_, err := io.WriteString(conn, resp)
	return err
}

// onceConn makes Close idempotent, so deferred and explicit closes on the
// same connection never close it twice.
type onceConn struct {
	net.Conn

	once sync.Once
	err  error
}

func (c *onceConn) Close() error {
	c.once.Do(func() {
		c.err = c.Conn.Close()
	})
	return c.err
}
