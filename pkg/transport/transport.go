// Package transport provides the stream transports a relay listens and dials
// on. Each transport (tcp, ws, udp) implements two pieces:
//
// Listeners:
//   - NewListener binds the address and returns a net.Listener
//   - Accept yields one net.Conn per client, net.ErrClosed after Close
//   - the accept loop itself lives in pkg/server and is shared by all transports
//
// Dial Functions:
//   - Dial(ctx, addr, timeout) establishes an outbound connection
//   - timeout bounds connection setup only; it is not left on the conn
//
// Example usage:
//
//	nl, err := tcp.NewListener(ctx, "0.0.0.0:9999")
//	conn, err := ws.Dial(ctx, "relay.example:9999", 10*time.Second)
package transport

import (
	"context"
	"net"
)

// Handler processes one accepted connection. It owns conn and must close it
// before returning.
type Handler func(ctx context.Context, conn net.Conn) error

// HalfCloser is implemented by connections that can signal the end of their
// outgoing stream while still reading, like *net.TCPConn.
type HalfCloser interface {
	CloseWrite() error
}
