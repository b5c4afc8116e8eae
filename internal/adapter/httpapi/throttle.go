package httpapi

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Per-client request budget. The coordinator already paces upstream traffic;
// this protects the service itself from a single chatty client.
const (
	clientRatePerSecond = 5
	clientBurst         = 10

	maxTrackedClients = 4096
	clientIdleExpiry  = 5 * time.Minute
)

type clientLimiter struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

type throttle struct {
	mu      sync.Mutex
	clients map[string]*clientLimiter
}

func newThrottle() *throttle {
	return &throttle{clients: make(map[string]*clientLimiter)}
}

// allow reports whether a request from addr fits its rate budget.
func (t *throttle) allow(addr string) bool {
	now := time.Now()
	t.mu.Lock()
	defer t.mu.Unlock()

	c, ok := t.clients[addr]
	if !ok {
		if len(t.clients) >= maxTrackedClients {
			t.prune(now)
		}
		c = &clientLimiter{lim: rate.NewLimiter(clientRatePerSecond, clientBurst)}
		t.clients[addr] = c
	}
	c.lastSeen = now
	return c.lim.Allow()
}

// prune drops limiters idle long enough that their buckets refilled anyway.
func (t *throttle) prune(now time.Time) {
	for addr, c := range t.clients {
		if now.Sub(c.lastSeen) > clientIdleExpiry {
			delete(t.clients, addr)
		}
	}
}

// withThrottle rejects clients that exceed the per-IP rate budget with 429.
// Probe and scrape routes stay exempt.
func (s *Server) withThrottle(next http.Handler) http.Handler {
	t := newThrottle()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/healthz", "/readyz", "/metrics":
			next.ServeHTTP(w, r)
			return
		}
		if !t.allow(clientIP(r)) {
			s.metrics.ThrottledRequests.Inc()
			writeJSON(w, http.StatusTooManyRequests, map[string]string{
				"error":  "rate limit exceeded",
				"source": "request",
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientIP prefers the first X-Forwarded-For hop, falling back to the
// connection's remote address.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
