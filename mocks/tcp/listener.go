package tcp

import (
	"net"
	"sync"
)

// MockTCPListener hands out the server side of dialed pipes. Accept errors
// can be injected to simulate transient failures.
type MockTCPListener struct {
	addr    *net.TCPAddr
	connCh  chan net.Conn
	closeCh chan struct{}
	network *MockTCPNetwork

	mu       sync.Mutex
	closed   bool
	failures []error
	accepts  int
}

// FailNext makes the next len(errs) calls to Accept return errs in order.
func (l *MockTCPListener) FailNext(errs ...error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failures = append(l.failures, errs...)
}

// Accepts reports how many calls to Accept returned, successful or not.
func (l *MockTCPListener) Accepts() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.accepts
}

// Accept waits for the next connection.
func (l *MockTCPListener) Accept() (net.Conn, error) {
	l.mu.Lock()
	if len(l.failures) > 0 {
		err := l.failures[0]
		l.failures = l.failures[1:]
		l.accepts++
		l.mu.Unlock()
		return nil, err
	}
	l.mu.Unlock()

	select {
	case conn := <-l.connCh:
		l.mu.Lock()
		l.accepts++
		l.mu.Unlock()
		return conn, nil
	case <-l.closeCh:
		return nil, net.ErrClosed
	}
}

// Close removes the listener from its network.
func (l *MockTCPListener) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}
	l.closed = true
	close(l.closeCh)
	l.network.remove(l.addr.String())
	return nil
}

// Addr returns the listener's address.
func (l *MockTCPListener) Addr() net.Addr {
	return l.addr
}

var _ net.Listener = (*MockTCPListener)(nil)
