package limiter

import (
	"sync"
	"time"

	"github.com/rohmanhakim/cached-fetcher/pkg/timeutil"
)

// FibonacciBackoff tracks consecutive upstream failures for one fetcher
// instance and turns them into an increasing delay: 0, 1, 1, 2, 3, 5, ... units,
// clamped to the configured maximum. A success resets the sequence.
//
// State is in-memory only and never survives a restart.
type FibonacciBackoff struct {
	mu    sync.Mutex
	param timeutil.BackoffParam
	state backoffState
}

func NewFibonacciBackoff(param timeutil.BackoffParam) *FibonacciBackoff {
	return &FibonacciBackoff{
		param: param,
		state: initialBackoffState(param),
	}
}

func initialBackoffState(param timeutil.BackoffParam) backoffState {
	return backoffState{
		delay: 0,
		step:  param.Unit(),
	}
}

// CurrentDelay returns the delay to impose before the next outbound attempt.
func (b *FibonacciBackoff) CurrentDelay() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.state.delay
}

// OnFailure advances the sequence by one step and returns the new delay.
func (b *FibonacciBackoff) OnFailure() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.state.delay, b.state.step = timeutil.NextFibonacciDelay(
		b.state.delay,
		b.state.step,
		b.param.MaxDuration(),
	)
	b.state.failures++
	return b.state.delay
}

// OnSuccess resets delay and step to their initial values.
func (b *FibonacciBackoff) OnSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.state = initialBackoffState(b.param)
}

// Failures returns the number of failures since the last reset.
func (b *FibonacciBackoff) Failures() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.state.failures
}
