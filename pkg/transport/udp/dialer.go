// Package udp provides a UDP transport with KCP for reliable, ordered
// delivery.
package udp

import (
	"context"
	"fmt"
	"net"
	"time"

	kcp "github.com/xtaci/kcp-go/v5"
)

// Dial opens a KCP session to addr. KCP has no handshake, so the session is
// usable immediately; the first read reports whether the peer is there.
// timeout bounds socket setup.
func Dial(ctx context.Context, addr string, timeout time.Duration) (net.Conn, error) {
	raddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("net.ResolveUDPAddr(udp, %s): %w", addr, err)
	}

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	var lc net.ListenConfig
	pc, err := lc.ListenPacket(ctx, "udp", ":0")
	if err != nil {
		return nil, fmt.Errorf("net.ListenPacket(udp, :0): %w", err)
	}

	sess, err := kcp.NewConn(raddr.String(), nil, 0, 0, pc)
	if err != nil {
		pc.Close()
		return nil, fmt.Errorf("kcp.NewConn(%s): %w", raddr, err)
	}
	configure(sess)

	return &ownedConn{UDPSession: sess, pc: pc}, nil
}

// ownedConn closes the packet socket along with the session, since
// kcp.NewConn does not take ownership of it.
type ownedConn struct {
	*kcp.UDPSession
	pc net.PacketConn
}

func (c *ownedConn) Close() error {
	err := c.UDPSession.Close()
	c.pc.Close()
	return err
}
