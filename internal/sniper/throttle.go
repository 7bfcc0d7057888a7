package sniper

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Throttle spaces calls to the place search oracle by a fixed interval. One
// Throttle may be shared by several sweeps so the interval holds across them.
type Throttle struct {
	limiter *rate.Limiter
}

// NewThrottle allows one call per interval. A non-positive interval disables
// throttling.
func NewThrottle(interval time.Duration) *Throttle {
	if interval <= 0 {
		return &Throttle{limiter: rate.NewLimiter(rate.Inf, 1)}
	}
	return &Throttle{limiter: rate.NewLimiter(rate.Every(interval), 1)}
}

// Wait blocks until the next call may proceed or ctx is done.
func (t *Throttle) Wait(ctx context.Context) error {
	return t.limiter.Wait(ctx)
}
