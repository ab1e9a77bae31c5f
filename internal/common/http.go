package common

import (
	"net"
	"net/http"
	"strings"
)

// ClientIP returns the peer address of the request without its port.
// Forwarding headers are honoured only through chi's RealIP middleware, which
// the server installs when proxy headers are trusted.
func ClientIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	addr := strings.TrimSpace(r.RemoteAddr)
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}
