package log

import (
	"fmt"
	"net"
	"os"
	"sync"
	"time"
)

// loggedConn wraps a net.Conn and appends every read and write to a transcript file.
type loggedConn struct {
	net.Conn
	logFile *os.File

	closeOnce sync.Once
	closeErr  error
}

func (lc *loggedConn) Read(b []byte) (int, error) {
	n, err := lc.Conn.Read(b)
	if n > 0 {
		if werr := lc.record("<", b[:n]); werr != nil {
			return n, fmt.Errorf("reading: %s", werr)
		}
	}
	return n, err
}

func (lc *loggedConn) Write(b []byte) (int, error) {
	n, err := lc.Conn.Write(b)
	if n > 0 {
		if werr := lc.record(">", b[:n]); werr != nil {
			return n, fmt.Errorf("writing: %s", werr)
		}
	}
	return n, err
}

// Close closes both the connection and the transcript file.
func (lc *loggedConn) Close() error {
	lc.closeOnce.Do(func() {
		lc.closeErr = lc.Conn.Close()
		if err := lc.logFile.Close(); err != nil && lc.closeErr == nil {
			lc.closeErr = err
		}
	})
	return lc.closeErr
}

// record writes one transcript line. A single Write call per line keeps
// lines from concurrent connections intact in an O_APPEND file.
func (lc *loggedConn) record(dir string, b []byte) error {
	line := fmt.Sprintf("%s %s %s %q\n", time.Now().UTC().Format(time.RFC3339Nano), lc.Conn.RemoteAddr(), dir, b)
	_, err := lc.logFile.WriteString(line)
	return err
}

// NewLoggedConn wraps a network connection to record all data read from and written to it.
// The transcript file is created or appended to at the specified path.
func NewLoggedConn(conn net.Conn, logFilePath string) (net.Conn, error) {
	logFile, err := os.OpenFile(logFilePath, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}

	return &loggedConn{Conn: conn, logFile: logFile}, nil
}
