package services

import (
	"sync"

	"golang.org/x/time/rate"
)

// RunLimiter throttles manual detection triggers per user. A user slamming
// the "run now" button gets the engine's dedupe anyway; this just keeps the
// Mongo snapshot queries off the hot path.
type RunLimiter struct {
	perUserLimiters *sync.Map // map[string]*rate.Limiter
	runsPerMinute   float64
}

// NewRunLimiter creates a run limiter allowing runsPerMinute manual triggers
// per user with a burst of one extra.
func NewRunLimiter(runsPerMinute int) *RunLimiter {
	if runsPerMinute <= 0 {
		runsPerMinute = 2
	}
	return &RunLimiter{
		perUserLimiters: &sync.Map{},
		runsPerMinute:   float64(runsPerMinute),
	}
}

// Allow reports whether the user may trigger a run right now.
func (rl *RunLimiter) Allow(userID string) bool {
	return rl.getOrCreateUserLimiter(userID).Allow()
}

func (rl *RunLimiter) getOrCreateUserLimiter(userID string) *rate.Limiter {
	if limiter, ok := rl.perUserLimiters.Load(userID); ok {
		return limiter.(*rate.Limiter)
	}

	newLimiter := rate.NewLimiter(rate.Limit(rl.runsPerMinute/60.0), int(rl.runsPerMinute))

	// Try to store, but use existing if another goroutine created it first
	actual, _ := rl.perUserLimiters.LoadOrStore(userID, newLimiter)
	return actual.(*rate.Limiter)
}
