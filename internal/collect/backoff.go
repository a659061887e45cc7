package collect

import (
	"math"
	"math/rand"
	"time"
)

// BackoffPolicy computes retry delays: Base * Multiplier^(attempt-1),
// capped at Max, with +/- Jitter fraction of random spread.
type BackoffPolicy struct {
	Base       time.Duration
	Max        time.Duration
	Multiplier float64
	Jitter     float64
}

func DefaultBackoff() BackoffPolicy {
	return BackoffPolicy{
		Base:       time.Second,
		Max:        30 * time.Second,
		Multiplier: 2.0,
		Jitter:     0.1,
	}
}

// Delay returns the wait before retry number attempt (1-based). The
// result never drops below Base, so successive attempts wait strictly
// longer until the cap is reached.
func (p BackoffPolicy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := float64(p.Base) * math.Pow(p.Multiplier, float64(attempt-1))
	if d > float64(p.Max) {
		d = float64(p.Max)
	}
	if p.Jitter > 0 {
		spread := rand.Float64()*2 - 1
		d += spread * p.Jitter * d
	}
	if d < float64(p.Base) {
		d = float64(p.Base)
	}
	return time.Duration(d)
}
