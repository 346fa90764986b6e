// Package tcp provides an in-memory TCP network for testing the relay
// without real sockets.
package tcp

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

// MockTCPNetwork connects dialers to listeners through in-memory pipes.
type MockTCPNetwork struct {
	mu        sync.Mutex
	listeners map[string]*MockTCPListener
	nextPort  atomic.Int32
}

// NewMockTCPNetwork creates an empty network.
func NewMockTCPNetwork() *MockTCPNetwork {
	m := &MockTCPNetwork{listeners: make(map[string]*MockTCPListener)}
	m.nextPort.Store(50000)
	return m
}

// Listen creates a listener on addr. It has the signature of
// tcp.NewListener so it can stand in for it.
func (m *MockTCPNetwork) Listen(_ context.Context, addr string) (net.Listener, error) {
	laddr, err := net.ResolveTCPAddr("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("net.ResolveTCPAddr(tcp, %s): %w", addr, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.listeners[laddr.String()]; exists {
		return nil, fmt.Errorf("address already in use: %s", laddr)
	}

	l := &MockTCPListener{
		addr:    laddr,
		connCh:  make(chan net.Conn, 64),
		closeCh: make(chan struct{}),
		network: m,
	}
	m.listeners[laddr.String()] = l
	return l, nil
}

// Dial connects to the listener on addr. It has the signature of tcp.Dial.
func (m *MockTCPNetwork) Dial(ctx context.Context, addr string, timeout time.Duration) (net.Conn, error) {
	raddr, err := net.ResolveTCPAddr("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("net.ResolveTCPAddr(tcp, %s): %w", addr, err)
	}

	m.mu.Lock()
	l, exists := m.listeners[raddr.String()]
	m.mu.Unlock()
	if !exists {
		return nil, fmt.Errorf("connection refused: no listener on %s", raddr)
	}

	laddr := &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: int(m.nextPort.Add(1))}
	clientConn, serverConn := net.Pipe()
	client := &MockTCPConn{Conn: clientConn, localAddr: laddr, remoteAddr: raddr}
	server := &MockTCPConn{Conn: serverConn, localAddr: raddr, remoteAddr: laddr}

	if timeout <= 0 {
		timeout = time.Second
	}

	select {
	case l.connCh <- server:
		return client, nil
	case <-l.closeCh:
		err = fmt.Errorf("connection refused: listener closed")
	case <-ctx.Done():
		err = ctx.Err()
	case <-time.After(timeout):
		err = fmt.Errorf("connection timeout")
	}

	clientConn.Close()
	serverConn.Close()
	return nil, err
}

func (m *MockTCPNetwork) remove(addr string) {
	m.mu.Lock()
	delete(m.listeners, addr)
	m.mu.Unlock()
}

// WaitForListener polls until something listens on host:port.
func (m *MockTCPNetwork) WaitForListener(host string, port int, timeout time.Duration) error {
	addr := net.JoinHostPort(host, strconv.Itoa(port))
	deadline := time.Now().Add(timeout)

	for {
		m.mu.Lock()
		_, ok := m.listeners[addr]
		m.mu.Unlock()
		if ok {
			return nil
		}

		if time.Now().After(deadline) {
			return fmt.Errorf("no listener on %s after %v", addr, timeout)
		}
		time.Sleep(5 * time.Millisecond)
	}
}
