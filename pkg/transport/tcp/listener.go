package tcp

import (
	"context"
	"fmt"
	"net"
	"syscall"
)

// NewListener binds a TCP listener on addr with SO_REUSEADDR set, so a
// restarted relay can rebind while old connections linger in TIME_WAIT.
func NewListener(ctx context.Context, addr string) (net.Listener, error) {
	lc := net.ListenConfig{Control: Control}

	nl, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen(tcp, %s): %w", addr, err)
	}

	return nl, nil
}

// Control applies the socket options used by all relay listeners. It fits
// net.ListenConfig.Control.
func Control(_, _ string, c syscall.RawConn) error {
	var serr error
	if err := c.Control(func(fd uintptr) {
		serr = setReuseAddr(fd)
	}); err != nil {
		return err
	}
	if serr != nil {
		return fmt.Errorf("setsockopt(SO_REUSEADDR): %w", serr)
	}
	return nil
}
