package http

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// apiKeyAuth rejects requests that do not carry the configured X-API-Key.
func apiKeyAuth(apiKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("X-API-Key") != apiKey {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Invalid API key"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientIdleTimeout is how long an address may stay silent before its
// limiter is reclaimed.
const clientIdleTimeout = 10 * time.Minute

// clientLimiter hands out one token-bucket limiter per client address.
// Idle entries are swept when a new address arrives, so the map stays
// bounded by the set of recently active clients.
type clientLimiter struct {
	mu       sync.Mutex
	limiters map[string]*clientEntry
	limit    rate.Limit
	burst    int
}

type clientEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newClientLimiter(perSecond float64, burst int) *clientLimiter {
	return &clientLimiter{
		limiters: make(map[string]*clientEntry),
		limit:    rate.Limit(perSecond),
		burst:    burst,
	}
}

func (c *clientLimiter) get(addr string) *rate.Limiter {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now()
	if e, ok := c.limiters[addr]; ok {
		e.lastSeen = now
		return e.limiter
	}
	for a, e := range c.limiters {
		if now.Sub(e.lastSeen) > clientIdleTimeout {
			delete(c.limiters, a)
		}
	}
	e := &clientEntry{limiter: rate.NewLimiter(c.limit, c.burst), lastSeen: now}
	c.limiters[addr] = e
	return e.limiter
}

// rateLimit throttles requests per client IP.
func rateLimit(perSecond float64, burst int) func(http.Handler) http.Handler {
	limiter := newClientLimiter(perSecond, burst)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			host, _, err := net.SplitHostPort(r.RemoteAddr)
			if err != nil {
				host = r.RemoteAddr
			}
			if !limiter.get(host).Allow() {
				writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "Too many requests, please try again later"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
