// Package client sends one request to a relay and returns its answer.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"time"

	"meep/fpgarelay/pkg/config"
	pkgnet "meep/fpgarelay/pkg/net"
	"meep/fpgarelay/pkg/transport"
)

// ErrNoResponse means the relay closed the connection without answering.
var ErrNoResponse = errors.New("no response from relay")

// maxResponse bounds how much of a response is read.
const maxResponse = 64 << 10

// udpIdle ends a UDP read once the response has started and the peer goes
// quiet; KCP sessions have no end-of-stream marker.
const udpIdle = 500 * time.Millisecond

// Client performs one-shot requests. Each Send uses a fresh connection.
type Client struct {
	cfg         *config.Shared
	readTimeout time.Duration

	dial func(ctx context.Context, cfg *config.Shared) (net.Conn, error)
}

// New ...
func New(cfg *config.Shared, cCfg *config.Client) *Client {
	readTimeout := cCfg.ReadTimeout
	if readTimeout <= 0 {
		readTimeout = config.DefaultReadTimeout
	}

	return &Client{
		cfg:         cfg,
		readTimeout: readTimeout,
		dial:        pkgnet.Dial,
	}
}

// Send writes payload as one line and returns the relay's trimmed response.
// It waits up to the read timeout for the relay to answer and close.
func (c *Client) Send(ctx context.Context, payload string) (string, error) {
	if strings.ContainsAny(payload, "\r\n") {
		return "", fmt.Errorf("payload must be a single line")
	}

	conn, err := c.dial(ctx, c.cfg)
	if err != nil {
		return "", err
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	if c.cfg.Timeout > 0 {
		_ = conn.SetWriteDeadline(time.Now().Add(c.cfg.Timeout))
	}
	if _, err := io.WriteString(conn, payload+"\n"); err != nil {
		return "", fmt.Errorf("sending request: %w", ctxErr(ctx, err))
	}
	if hc, ok := conn.(transport.HalfCloser); ok {
		_ = hc.CloseWrite()
	}

	resp, err := c.readResponse(conn)
	if err != nil {
		return "", fmt.Errorf("reading response: %w", ctxErr(ctx, err))
	}

	resp = strings.TrimSpace(resp)
	if resp == "" {
		return "", ErrNoResponse
	}

	c.cfg.Logger.VerboseMsg("Received %d bytes from %s", len(resp), conn.RemoteAddr())
	return resp, nil
}

func (c *Client) readResponse(conn net.Conn) (string, error) {
	_ = conn.SetReadDeadline(time.Now().Add(c.readTimeout))

	var (
		sb  strings.Builder
		buf = make([]byte, 4096)
	)
	for sb.Len() < maxResponse {
		n, err := conn.Read(buf)
		sb.Write(buf[:n])

		if n > 0 && c.cfg.Protocol == config.ProtoUDP {
			_ = conn.SetReadDeadline(time.Now().Add(udpIdle))
		}

		switch {
		case err == nil:
			continue
		case errors.Is(err, io.EOF):
			return sb.String(), nil
		case isTimeout(err) && sb.Len() > 0 && c.cfg.Protocol == config.ProtoUDP:
			return sb.String(), nil
		default:
			return "", err
		}
	}

	return sb.String(), nil
}

func isTimeout(err error) bool {
	var ne net.Error
	if errors.Is(err, os.ErrDeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
		return true
	}
	// kcp-go reports deadlines with a plain "timeout" error
	return strings.Contains(err.Error(), "timeout")
}

func ctxErr(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}
