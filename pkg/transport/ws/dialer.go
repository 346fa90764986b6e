// Package ws provides a WebSocket transport, for relays that must sit
// behind HTTP-only proxies.
package ws

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/coder/websocket"
)

// Dial opens a WebSocket session to ws://addr and returns it as a net.Conn.
// timeout bounds the HTTP handshake; the session itself lives until closed
// or ctx is done.
func Dial(ctx context.Context, addr string, timeout time.Duration) (net.Conn, error) {
	url := "ws://" + addr

	dialCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	c, _, err := websocket.Dial(dialCtx, url, &websocket.DialOptions{
		Subprotocols: []string{subprotocol},
	})
	if err != nil {
		return nil, fmt.Errorf("websocket.Dial(%s): %w", url, err)
	}

	return websocket.NetConn(ctx, c, websocket.MessageBinary), nil
}
