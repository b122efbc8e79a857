package ratelimit

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Limiter defines the interface for rate limiting
type Limiter interface {
	// Wait blocks until an event is allowed or ctx is done
	Wait(ctx context.Context) error
}

// Interval spaces events at least every apart, allowing burst events at once.
type Interval struct {
	limiter *rate.Limiter
}

// NewInterval creates an Interval limiter. A non-positive every disables
// limiting.
func NewInterval(every time.Duration, burst int) *Interval {
	if burst < 1 {
		burst = 1
	}
	if every <= 0 {
		return &Interval{limiter: rate.NewLimiter(rate.Inf, burst)}
	}
	return &Interval{limiter: rate.NewLimiter(rate.Every(every), burst)}
}

func (iv *Interval) Wait(ctx context.Context) error {
	return iv.limiter.Wait(ctx)
}

// Unlimited never blocks.
func Unlimited() Limiter {
	return NewInterval(0, 1)
}
