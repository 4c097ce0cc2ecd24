package ratelimit

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Sleep pauses for d, returning early with the context error when ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return context.Cause(ctx)
	case <-t.C:
		return nil
	}
}

// NewItemLimiter returns the limiter gating per-item work across all jobs.
// Zero perSecond disables limiting.
func NewItemLimiter(perSecond float64) *rate.Limiter {
	if perSecond <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}

	return rate.NewLimiter(rate.Limit(perSecond), 1)
}
