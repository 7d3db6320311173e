package api

import (
	"sync"

	"golang.org/x/time/rate"
)

// maxTrackedUsers bounds the limiter map; it is reset when exceeded.
const maxTrackedUsers = 10000

// userLimiter holds one token bucket per user id.
type userLimiter struct {
	limiters map[int64]*rate.Limiter
	limit    rate.Limit
	burst    int
	mu       sync.Mutex
}

func newUserLimiter(perSecond float64, burst int) *userLimiter {
	limit := rate.Limit(perSecond)
	if perSecond <= 0 {
		limit = rate.Inf
	}
	if burst <= 0 {
		burst = 1
	}
	return &userLimiter{
		limiters: make(map[int64]*rate.Limiter),
		limit:    limit,
		burst:    burst,
	}
}

func (l *userLimiter) allow(userID int64) bool {
	l.mu.Lock()
	limiter, ok := l.limiters[userID]
	if !ok {
		if len(l.limiters) >= maxTrackedUsers {
			l.limiters = make(map[int64]*rate.Limiter)
		}
		limiter = rate.NewLimiter(l.limit, l.burst)
		l.limiters[userID] = limiter
	}
	l.mu.Unlock()
	return limiter.Allow()
}
