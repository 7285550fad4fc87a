// Package ratelimit keeps per-client token buckets keyed by client IP
// and endpoint name.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/pdfacil/pdfacil-backend/pkg/config"
)

const idleEviction = 10 * time.Minute

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Limiter hands out at most N requests per minute per (ip, endpoint)
// pair, with N taken from the per-endpoint configuration.
type Limiter struct {
	cfg config.RateLimitConfig

	mu      sync.Mutex
	buckets map[string]*bucket
	lastGC  time.Time
}

func New(cfg config.RateLimitConfig) *Limiter {
	return &Limiter{
		cfg:     cfg,
		buckets: make(map[string]*bucket),
		lastGC:  time.Now(),
	}
}

// Allow reports whether the client may run the endpoint now and, when
// denied, how long until the next token.
func (l *Limiter) Allow(ip, endpoint string) (bool, time.Duration) {
	perMinute := l.cfg.Limit(endpoint)
	if perMinute <= 0 {
		return true, 0
	}

	key := ip + "|" + endpoint

	l.mu.Lock()
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), perMinute)}
		l.buckets[key] = b
	}
	b.lastSeen = time.Now()
	l.maybeGC()
	l.mu.Unlock()

	if b.limiter.Allow() {
		return true, 0
	}
	res := b.limiter.Reserve()
	delay := res.Delay()
	res.Cancel()
	return false, delay
}

// maybeGC drops buckets idle longer than the eviction window. Callers
// hold l.mu.
func (l *Limiter) maybeGC() {
	now := time.Now()
	if now.Sub(l.lastGC) < idleEviction {
		return
	}
	l.lastGC = now
	for key, b := range l.buckets {
		if now.Sub(b.lastSeen) > idleEviction {
			delete(l.buckets, key)
		}
	}
}
