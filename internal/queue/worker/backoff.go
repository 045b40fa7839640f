package worker

import (
	"math"
	"math/rand/v2"
	"time"
)

// Backoff grows the retry delay exponentially from Base up to Cap and adds
// up to Jitter of random delay so retries from one outage spread out.
type Backoff struct {
	Base   time.Duration
	Cap    time.Duration
	Jitter time.Duration
}

var DefaultBackoff = Backoff{
	Base:   2 * time.Second,
	Cap:    5 * time.Minute,
	Jitter: 250 * time.Millisecond,
}

// Delay returns the wait before retry number attempt (0-based):
// 2s, 4s, 8s, ... capped, plus jitter.
func (b Backoff) Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}

	delay := b.Cap
	if raw := float64(b.Base) * math.Pow(2, float64(attempt)); raw < float64(b.Cap) {
		delay = time.Duration(raw)
	}

	if b.Jitter > 0 {
		delay += time.Duration(rand.Int64N(int64(b.Jitter)))
	}

	return delay
}
