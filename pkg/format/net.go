// Package format renders addresses for logs and socket calls.
package format

import (
	"fmt"
	"strings"
)

// Addr joins host and port, bracketing IPv6 hosts.
func Addr(host string, port int) string {
	if strings.Contains(host, ":") {
		return fmt.Sprintf("[%s]:%d", host, port)
	}
	return fmt.Sprintf("%s:%d", host, port)
}

// ListenAddr is Addr for binding: "*" and "" both mean all interfaces.
func ListenAddr(host string, port int) string {
	if host == "*" {
		host = ""
	}
	return Addr(host, port)
}

// URL renders a transport address the way the --transport flag takes it.
func URL(proto fmt.Stringer, host string, port int) string {
	return proto.String() + "://" + Addr(host, port)
}
