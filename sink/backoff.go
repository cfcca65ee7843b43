package sink

import (
	rand "math/rand/v2"
	"sync"
	"time"
)

// backoff computes decorrelated jitter delays between publish retries.
//
// Each delay is drawn from [base, prev*multiplier) and capped:
//
//	next = min(cap, base + rand(prev*multiplier - base))
//
// See https://aws.amazon.com/blogs/architecture/exponential-backoff-and-jitter/
type backoff struct {
	base       time.Duration
	multiplier float64
	cap        time.Duration

	mu  sync.Mutex
	rng *rand.Rand // nil uses the package-level source
}

func newBackoff(cfg Config) *backoff {
	b := &backoff{
		base:       cfg.RetryBackoff,
		multiplier: cfg.RetryMultiplier,
		cap:        cfg.RetryBackoffMax,
	}
	if cfg.RetrySeed != 0 {
		s1 := uint64(cfg.RetrySeed) //nolint:gosec // seed bits only
		b.rng = rand.New(rand.NewPCG(s1, s1^0x9e3779b97f4a7c15)) //nolint:gosec // non-crypto jitter
	}

	return b
}

// next returns the delay following prev; prev <= 0 starts at base.
func (b *backoff) next(prev time.Duration) time.Duration {
	if b.cap < b.base {
		return b.cap
	}
	if prev <= 0 {
		return b.base
	}

	span := time.Duration(float64(prev)*b.multiplier) - b.base
	if span <= 0 {
		span = b.base
	}

	next := b.base + time.Duration(b.int64N(int64(span)))
	if next > b.cap {
		return b.cap
	}

	return next
}

func (b *backoff) int64N(n int64) int64 {
	if b.rng == nil {
		return rand.Int64N(n) //nolint:gosec // non-crypto jitter
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	return b.rng.Int64N(n)
}
