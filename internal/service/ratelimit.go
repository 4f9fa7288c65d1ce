package service

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type userLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter allows one chat message per user every cooldown.
type RateLimiter struct {
	mu       sync.Mutex
	cooldown time.Duration
	limiters map[int64]*userLimiter
	now      func() time.Time
}

func NewRateLimiter(cooldown time.Duration) *RateLimiter {
	return &RateLimiter{
		cooldown: cooldown,
		limiters: make(map[int64]*userLimiter),
		now:      time.Now,
	}
}

// Allow consumes the user's token if one is available. Otherwise it reports
// how long the user has to wait; a rejected call does not extend the wait.
func (r *RateLimiter) Allow(userID int64) (bool, time.Duration) {
	if r.cooldown <= 0 {
		return true, 0
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	entry, ok := r.limiters[userID]
	if !ok {
		entry = &userLimiter{limiter: rate.NewLimiter(rate.Every(r.cooldown), 1)}
		r.limiters[userID] = entry
	}
	entry.lastSeen = now

	reservation := entry.limiter.ReserveN(now, 1)
	if delay := reservation.DelayFrom(now); delay > 0 {
		reservation.CancelAt(now)
		return false, delay
	}
	return true, 0
}

func (r *RateLimiter) Reset(userID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.limiters, userID)
}

// Prune forgets users idle for longer than the cooldown. Their limiters are
// full again, so dropping them changes nothing observable.
func (r *RateLimiter) Prune() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	removed := 0
	for userID, entry := range r.limiters {
		if now.Sub(entry.lastSeen) > r.cooldown {
			delete(r.limiters, userID)
			removed++
		}
	}
	return removed
}

func (r *RateLimiter) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.limiters)
}
