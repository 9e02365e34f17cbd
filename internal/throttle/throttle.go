// Package throttle implements the randomized inter-request delays that
// keep the crawler's outbound rate below detection thresholds.
package throttle

import (
	"context"
	"fmt"
	"math/rand"
	"time"
)

// Jitter sleeps a uniformly random duration within [Min, Max] on every
// call. The delay exists purely for politeness, not correctness.
type Jitter struct {
	min time.Duration
	max time.Duration
	rng *rand.Rand
}

// NewJitter constructs a Jitter sleeper. Min and max are clamped to a
// sane ordering.
func NewJitter(min, max time.Duration) *Jitter {
	if min < 0 {
		min = 0
	}
	if max < min {
		max = min
	}
	return &Jitter{
		min: min,
		max: max,
		rng: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Sleep blocks for the randomized interval or until ctx is done.
func (j *Jitter) Sleep(ctx context.Context) error {
	delay := j.min
	if span := j.max - j.min; span > 0 {
		delay += time.Duration(j.rng.Int63n(int64(span) + 1))
	}
	if delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("throttle interrupted: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}

// None returns a zero-delay sleeper for tests and dry runs.
func None() *Jitter {
	return NewJitter(0, 0)
}
