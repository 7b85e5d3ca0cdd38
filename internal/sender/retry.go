package sender

import (
	"math"
	"math/rand"
	"time"

	"github.com/speedwagon-io/homechecks/internal/config"
)

const backoffJitter = 0.1

// Backoff spaces out redelivery attempts of one batch: Base, 2*Base,
// 4*Base... capped at Max, each spread by +/-10% so that several checks
// failing together do not retry in lockstep.
type Backoff struct {
	Base time.Duration
	Max  time.Duration

	// jitter returns a value in [0, 1).
	jitter func() float64
}

func NewBackoff(cfg config.RetryConfig) *Backoff {
	b := &Backoff{
		Base:   cfg.InitialDelay,
		Max:    cfg.MaxDelay,
		jitter: rand.Float64,
	}
	if b.Max < b.Base {
		b.Max = b.Base
	}
	return b
}

// Delay is the wait before retry n (0 for the first retry). It never
// exceeds Max.
func (b *Backoff) Delay(n int) time.Duration {
	if n < 0 {
		n = 0
	}

	d := math.Min(math.Ldexp(float64(b.Base), n), float64(b.Max))
	d += d * backoffJitter * (2*b.jitter() - 1)

	return time.Duration(math.Min(d, float64(b.Max)))
}
