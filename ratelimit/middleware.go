package ratelimit

import (
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"
)

// Middleware enforces the limiter per (client address, request path) and
// answers over-limit requests with 429 and a machine-readable retry hint.
func (l *Limiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ok, retryAfter := l.Allow(ClientAddr(r), r.URL.Path)
		if !ok {
			writeRejection(w, retryAfter)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeRejection(w http.ResponseWriter, retryAfter time.Duration) {
	ms := retryAfter.Milliseconds()
	if ms < 0 {
		ms = 0
	}
	secs := (ms + 999) / 1000
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Retry-After", fmt.Sprintf("%d", secs))
	w.WriteHeader(http.StatusTooManyRequests)
	fmt.Fprintf(w, `{"error":"rate_limited","retryAfterMs":%d}`, ms)
}

// ClientAddr extracts the client address: the first entry of
// X-Forwarded-For when present, otherwise the connection's remote host.
func ClientAddr(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first := strings.TrimSpace(strings.Split(fwd, ",")[0])
		if first != "" {
			return first
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
