package collect

import (
	"context"

	"golang.org/x/time/rate"
)

// Limiter guards one exchange's request budget: a token-bucket rate
// limit plus a bound on simultaneously in-flight requests. Each
// exchange owns exactly one Limiter; two exchanges never contend.
type Limiter struct {
	rl    *rate.Limiter
	slots chan struct{}
}

func NewLimiter(perSecond float64, burst, maxInFlight int) *Limiter {
	if perSecond <= 0 {
		perSecond = 1
	}
	if burst < 1 {
		burst = 1
	}
	if maxInFlight < 1 {
		maxInFlight = 1
	}
	return &Limiter{
		rl:    rate.NewLimiter(rate.Limit(perSecond), burst),
		slots: make(chan struct{}, maxInFlight),
	}
}

// Acquire blocks until a request may start. Callers must Release once
// the request finishes, whatever the outcome.
func (l *Limiter) Acquire(ctx context.Context) error {
	select {
	case l.slots <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := l.rl.Wait(ctx); err != nil {
		<-l.slots
		return err
	}
	return nil
}

func (l *Limiter) Release() {
	<-l.slots
}
