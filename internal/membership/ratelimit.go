package membership

import (
	"sync"

	"golang.org/x/time/rate"
)

// limiters hands out one token bucket per national ID, so a flood of
// attempts against one account does not lock out everyone else.
type limiters struct {
	mu      sync.Mutex
	limit   rate.Limit
	burst   int
	buckets map[string]*rate.Limiter
}

func newLimiters(limit rate.Limit, burst int) *limiters {
	return &limiters{limit: limit, burst: burst, buckets: make(map[string]*rate.Limiter)}
}

func (l *limiters) allow(key string) bool {
	l.mu.Lock()
	b, ok := l.buckets[key]
	if !ok {
		b = rate.NewLimiter(l.limit, l.burst)
		l.buckets[key] = b
	}
	l.mu.Unlock()
	return b.Allow()
}
