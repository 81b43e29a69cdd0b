package limiter

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/rohmanhakim/cached-fetcher/pkg/timeutil"
)

// Throttle
// Spaces consecutive outbound requests of a single fetcher instance.
// Responsibilities:
// - Bookkeep the time the last request was admitted
// - Compute the wait from the fixed step, the current backoff delay and jitter
// - Admit callers one at a time, in order
//
// Waiting happens while holding the admission lock, so concurrent callers
// observe a single ordered stream of admissions no tighter than the step.
type Throttle struct {
	mu           sync.Mutex
	rngMu        sync.Mutex
	step         time.Duration
	jitter       time.Duration
	rng          *rand.Rand
	backoff      DelaySource
	lastIssuedAt time.Time
}

// NewThrottle creates a throttle with the given minimum step. A zero or
// negative step disables the fixed spacing; backoff delay still applies.
// backoff may be nil.
func NewThrottle(step time.Duration, backoff DelaySource) *Throttle {
	return &Throttle{
		step:    step,
		backoff: backoff,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (t *Throttle) SetJitter(jitter time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.jitter = jitter
}

func (t *Throttle) SetRandomSeed(randomSeed int64) {
	t.rngMu.Lock()
	defer t.rngMu.Unlock()

	t.rng = rand.New(rand.NewSource(randomSeed))
}

// Acquire blocks until at least step + backoff delay (+ jitter) has elapsed
// since the previous Acquire returned, then records the admission time.
// It fails fast with the context error if ctx is done while waiting.
func (t *Throttle) Acquire(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := timeutil.Sleep(ctx, t.remainingLocked(time.Now())); err != nil {
		return err
	}

	now := time.Now()
	if now.Before(t.lastIssuedAt) {
		now = t.lastIssuedAt
	}
	t.lastIssuedAt = now
	return nil
}

// ResolveDelay returns how long an Acquire issued now would wait.
func (t *Throttle) ResolveDelay() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.remainingLocked(time.Now())
}

func (t *Throttle) LastIssuedAt() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.lastIssuedAt
}

// remainingLocked computes the wait; caller must hold t.mu
func (t *Throttle) remainingLocked(now time.Time) time.Duration {
	if t.lastIssuedAt.IsZero() {
		return 0
	}

	var spacing time.Duration
	if t.step > 0 {
		spacing = t.step
	}
	if t.backoff != nil {
		spacing += t.backoff.CurrentDelay()
	}
	spacing += t.computeJitter(t.jitter)

	elapsed := now.Sub(t.lastIssuedAt)
	if elapsed < spacing {
		return spacing - elapsed
	}
	return 0
}

// Returns a pseudo-random duration in [0, max)
func (t *Throttle) computeJitter(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}

	t.rngMu.Lock()
	defer t.rngMu.Unlock()

	return time.Duration(t.rng.Int63n(int64(max)))
}
