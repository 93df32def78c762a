package monitor

import (
	"math/rand"
	"time"
)

// Backoff counts consecutive failed connections to a node and spaces the
// reconnect attempts exponentially. A connection that delivered at least one
// message resets the count.
type Backoff struct {
	initial    time.Duration
	max        time.Duration
	multiplier float64
	jitter     float64
	maxRetries int

	failures int
}

// NewBackoff returns a Backoff starting at initial and capped at max.
// maxRetries of zero never gives up.
func NewBackoff(initial, max time.Duration, maxRetries int) *Backoff {
	if max < initial {
		max = initial
	}
	return &Backoff{
		initial:    initial,
		max:        max,
		multiplier: 2.0,
		jitter:     0.1,
		maxRetries: maxRetries,
	}
}

// Failed records a lost connection and returns the delay before the next
// attempt. ok is false once maxRetries consecutive failures were already
// retried.
func (b *Backoff) Failed() (delay time.Duration, ok bool) {
	if b.maxRetries > 0 && b.failures >= b.maxRetries {
		return 0, false
	}
	delay = b.delay(b.failures)
	b.failures++
	return delay, true
}

// Delivered is called when a connection produced a message.
func (b *Backoff) Delivered() {
	b.failures = 0
}

func (b *Backoff) Failures() int {
	return b.failures
}

func (b *Backoff) delay(n int) time.Duration {
	if n <= 0 {
		return b.initial
	}

	d := float64(b.initial)
	for i := 0; i < n && d < float64(b.max); i++ {
		d *= b.multiplier
	}
	if d > float64(b.max) {
		d = float64(b.max)
	}

	d += d * b.jitter * (2*rand.Float64() - 1)
	if d > float64(b.max) {
		d = float64(b.max)
	}
	return time.Duration(d)
}
