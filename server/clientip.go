package server

import (
	"net"
	"net/http"
	"strings"
)

// UnknownClient identifies requests that carry no usable address.
// All of them share a single quota.
const UnknownClient = "unknown"

// ClientIdentifier resolves the identifier requests are counted under: the
// first hop of X-Forwarded-For, then X-Real-IP, then optionally the socket
// address.
func ClientIdentifier(r *http.Request, trustRemoteAddr bool) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIP != "" {
		return realIP
	}
	if trustRemoteAddr && r.RemoteAddr != "" {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			return r.RemoteAddr
		}
		return host
	}
	return UnknownClient
}
