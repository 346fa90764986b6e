package udp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"

	kcp "github.com/xtaci/kcp-go/v5"

	"meep/fpgarelay/pkg/transport/tcp"
)

// Listener accepts KCP sessions over a UDP socket.
type Listener struct {
	pc net.PacketConn
	kl *kcp.Listener
}

// NewListener binds a UDP socket on addr and serves KCP on it.
func NewListener(ctx context.Context, addr string) (*Listener, error) {
	if _, err := net.ResolveUDPAddr("udp", addr); err != nil {
		return nil, fmt.Errorf("net.ResolveUDPAddr(udp, %s): %w", addr, err)
	}

	lc := net.ListenConfig{Control: tcp.Control}
	pc, err := lc.ListenPacket(ctx, "udp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen(udp, %s): %w", addr, err)
	}

	// no block cipher, no FEC
	kl, err := kcp.ServeConn(nil, 0, 0, pc)
	if err != nil {
		pc.Close()
		return nil, fmt.Errorf("kcp.ServeConn(): %w", err)
	}

	return &Listener{pc: pc, kl: kl}, nil
}

// Accept waits for the next KCP session.
func (l *Listener) Accept() (net.Conn, error) {
	sess, err := l.kl.AcceptKCP()
	if err != nil {
		if isClosed(err) {
			return nil, net.ErrClosed
		}
		return nil, fmt.Errorf("AcceptKCP(): %w", err)
	}

	configure(sess)
	return sess, nil
}

// Close stops the listener and releases the socket.
func (l *Listener) Close() error {
	err := l.kl.Close()
	if perr := l.pc.Close(); err == nil && !isClosed(perr) {
		err = perr
	}
	return err
}

// Addr returns the bound UDP address.
func (l *Listener) Addr() net.Addr {
	return l.pc.LocalAddr()
}

func configure(sess *kcp.UDPSession) {
	sess.SetNoDelay(1, 10, 2, 1)
	sess.SetStreamMode(true)
	sess.SetWindowSize(1024, 1024)
}

func isClosed(err error) bool {
	return err != nil && (errors.Is(err, net.ErrClosed) ||
		errors.Is(err, io.ErrClosedPipe) ||
		strings.Contains(err.Error(), "use of closed network connection"))
}
