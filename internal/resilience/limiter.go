package resilience

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

// Limiter enforces a minimum gap between calls to one external service. It
// is a token bucket with burst 1, shared by every worker that talks to the
// service, and it sleeps through a Clock so tests never wait on real time.
type Limiter struct {
	lim   *rate.Limiter
	clock Clock
	gap   time.Duration
}

// NewLimiter allows one call per minGap. A zero or negative gap disables
// limiting. A nil clock means RealClock.
func NewLimiter(minGap time.Duration, clock Clock) *Limiter {
	if clock == nil {
		clock = RealClock
	}
	limit := rate.Inf
	if minGap > 0 {
		limit = rate.Every(minGap)
	}
	return &Limiter{
		lim:   rate.NewLimiter(limit, 1),
		clock: clock,
		gap:   minGap,
	}
}

// FromDelayMs builds a Limiter from a millisecond setting such as
// geocode.min_delay_ms.
func FromDelayMs(ms int, clock Clock) *Limiter {
	return NewLimiter(time.Duration(ms)*time.Millisecond, clock)
}

// Gap returns the configured minimum spacing.
func (l *Limiter) Gap() time.Duration {
	if l == nil {
		return 0
	}
	return l.gap
}

// Wait blocks until the caller may issue its call. A nil Limiter never blocks.
func (l *Limiter) Wait(ctx context.Context) error {
	if l == nil {
		return ctx.Err()
	}

	now := l.clock.Now()
	r := l.lim.ReserveN(now, 1)
	if !r.OK() {
		return eris.New("resilience: limiter reservation refused")
	}

	delay := r.DelayFrom(now)
	if delay <= 0 {
		return ctx.Err()
	}
	if err := l.clock.Sleep(ctx, delay); err != nil {
		r.CancelAt(l.clock.Now())
		return eris.Wrap(err, "resilience: limiter wait")
	}
	return nil
}
