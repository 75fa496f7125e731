package feed

import (
	"math/rand"
	"time"
)

// backoff produces exponentially growing reconnect waits with jitter so a
// burst of dropped subscriptions does not redial in lockstep.
type backoff struct {
	base time.Duration
	max  time.Duration
	next time.Duration
}

func newBackoff(base, max time.Duration) *backoff {
	if base <= 0 {
		base = 2 * time.Second
	}
	if max < base {
		max = base
	}
	return &backoff{base: base, max: max, next: base}
}

// Next returns the wait to apply now and doubles the subsequent one, capped
// at max. Up to 20% jitter is added on top.
func (b *backoff) Next() time.Duration {
	d := b.next
	b.next *= 2
	if b.next > b.max {
		b.next = b.max
	}
	return d + time.Duration(rand.Int63n(int64(d/5+1)))
}

// Reset restores the initial wait after a healthy connection.
func (b *backoff) Reset() {
	b.next = b.base
}
