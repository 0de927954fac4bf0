package middleware

import (
	"net/http"
	"sync"
	"time"
)

// Report submissions fan out into PHI scanning and model-backed risk
// scoring, so a single client hammering /v1/reports can consume the whole
// LLM budget. SubmissionLimiter throttles per client with a token bucket.
type SubmissionLimiter struct {
	mu        sync.Mutex
	now       func() time.Time
	perSecond float64
	burst     float64
	clients   map[string]*clientBucket
}

type clientBucket struct {
	tokens float64
	seen   time.Time
}

// Clients idle this long are forgotten. Eviction happens inline during
// Admit once the map grows past maxTrackedClients, so no background
// goroutine is needed.
const (
	staleClientAfter  = 10 * time.Minute
	maxTrackedClients = 1024
)

// NewSubmissionLimiter allows perSecond sustained submissions per client
// with the given burst headroom.
func NewSubmissionLimiter(perSecond float64, burst int) *SubmissionLimiter {
	if burst < 1 {
		burst = 1
	}
	return &SubmissionLimiter{
		now:       time.Now,
		perSecond: perSecond,
		burst:     float64(burst),
		clients:   make(map[string]*clientBucket),
	}
}

// Admit reports whether the client may submit now, consuming a token if so.
func (l *SubmissionLimiter) Admit(client string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if len(l.clients) > maxTrackedClients {
		l.evictStale(now)
	}

	b, ok := l.clients[client]
	if !ok {
		b = &clientBucket{tokens: l.burst}
		l.clients[client] = b
	} else {
		b.tokens += now.Sub(b.seen).Seconds() * l.perSecond
		if b.tokens > l.burst {
			b.tokens = l.burst
		}
	}
	b.seen = now

	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

func (l *SubmissionLimiter) evictStale(now time.Time) {
	cutoff := now.Add(-staleClientAfter)
	for client, b := range l.clients {
		if b.seen.Before(cutoff) {
			delete(l.clients, client)
		}
	}
}

// RateLimit wraps a handler with per-client submission throttling,
// answering 429 with a Retry-After hint when the bucket is empty.
func RateLimit(perSecond float64, burst int) func(http.Handler) http.Handler {
	limiter := NewSubmissionLimiter(perSecond, burst)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Admit(clientKey(r)) {
				w.Header().Set("Retry-After", "1")
				http.Error(w, "submission rate limit exceeded", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientKey prefers the X-Real-Ip header populated by the router's RealIP
// middleware, falling back to the raw peer address.
func clientKey(r *http.Request) string {
	if xri := r.Header.Get("X-Real-Ip"); xri != "" {
		return xri
	}
	return r.RemoteAddr
}
