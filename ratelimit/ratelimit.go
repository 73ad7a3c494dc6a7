// Package ratelimit keeps one token bucket per key.
//
// Callers key on something the client cannot choose freely, such as the
// authenticated user ID.
package ratelimit

import (
	"errors"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

var ErrLimited = errors.New("too many attempts; slow down")

// Buckets idle for longer than this are forgotten once the table is full.
const (
	idleTimeout    = time.Hour
	maxTrackedKeys = 10000
)

type entry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Limiter is safe for concurrent use.  A nil *Limiter allows everything.
type Limiter struct {
	limit rate.Limit
	burst int
	now   func() time.Time

	lock sync.Mutex
	keys map[string]*entry
}

// New returns a Limiter refilling perMinute tokens per minute up to burst.
// A non-positive perMinute disables limiting.
func New(perMinute float64, burst int) *Limiter {
	limit := rate.Inf
	if perMinute > 0 {
		limit = rate.Limit(perMinute / 60)
	}
	if burst <= 0 {
		burst = 1
	}
	return &Limiter{
		limit: limit,
		burst: burst,
		now:   time.Now,
		keys:  map[string]*entry{},
	}
}

// Allow takes a token from key's bucket, reporting false if it is empty.
func (l *Limiter) Allow(key string) bool {
	if l == nil {
		return true
	}

	l.lock.Lock()
	defer l.lock.Unlock()

	now := l.now()
	e, ok := l.keys[key]
	if !ok {
		if len(l.keys) >= maxTrackedKeys {
			l.pruneLocked(now)
		}
		e = &entry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.keys[key] = e
	}
	e.lastSeen = now
	return e.limiter.AllowN(now, 1)
}

func (l *Limiter) pruneLocked(now time.Time) {
	for k, e := range l.keys {
		if now.Sub(e.lastSeen) > idleTimeout {
			delete(l.keys, k)
		}
	}
}
