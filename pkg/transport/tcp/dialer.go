// Package tcp provides the plain TCP transport.
package tcp

import (
	"context"
	"fmt"
	"net"
	"time"
)

// Dial connects to addr. timeout bounds the connection setup; zero means
// no limit beyond ctx.
func Dial(ctx context.Context, addr string, timeout time.Duration) (net.Conn, error) {
	d := net.Dialer{
		Timeout:   timeout,
		KeepAlive: 15 * time.Second,
	}

	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("net.Dial(tcp, %s): %w", addr, err)
	}

	return conn, nil
}
