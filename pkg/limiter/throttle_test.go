package limiter_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rohmanhakim/cached-fetcher/pkg/limiter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedDelay time.Duration

func (f fixedDelay) CurrentDelay() time.Duration {
	return time.Duration(f)
}

func TestThrottle_FirstAcquireDoesNotWait(t *testing.T) {
	th := limiter.NewThrottle(time.Second, nil)

	start := time.Now()
	require.NoError(t, th.Acquire(context.Background()))
	assert.Less(t, time.Since(start), 100*time.Millisecond)
	assert.False(t, th.LastIssuedAt().IsZero())
}

func TestThrottle_Spacing(t *testing.T) {
	th := limiter.NewThrottle(200*time.Millisecond, nil)

	require.NoError(t, th.Acquire(context.Background()))
	first := th.LastIssuedAt()
	require.NoError(t, th.Acquire(context.Background()))
	second := th.LastIssuedAt()

	assert.GreaterOrEqual(t, second.Sub(first), 200*time.Millisecond)
}

func TestThrottle_BackoffAddsToStep(t *testing.T) {
	th := limiter.NewThrottle(50*time.Millisecond, fixedDelay(100*time.Millisecond))

	require.NoError(t, th.Acquire(context.Background()))
	first := th.LastIssuedAt()
	require.NoError(t, th.Acquire(context.Background()))

	assert.GreaterOrEqual(t, th.LastIssuedAt().Sub(first), 150*time.Millisecond)
}

func TestThrottle_NonPositiveStepStillAppliesBackoff(t *testing.T) {
	tests := []struct {
		name string
		step time.Duration
	}{
		{name: "zero step", step: 0},
		{name: "negative step", step: -time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			th := limiter.NewThrottle(tt.step, fixedDelay(80*time.Millisecond))

			require.NoError(t, th.Acquire(context.Background()))
			first := th.LastIssuedAt()
			require.NoError(t, th.Acquire(context.Background()))

			assert.GreaterOrEqual(t, th.LastIssuedAt().Sub(first), 80*time.Millisecond)
		})
	}
}

func TestThrottle_ZeroStepNoBackoffDoesNotWait(t *testing.T) {
	th := limiter.NewThrottle(0, nil)

	start := time.Now()
	for i := 0; i < 5; i++ {
		require.NoError(t, th.Acquire(context.Background()))
	}
	assert.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestThrottle_ResolveDelay(t *testing.T) {
	th := limiter.NewThrottle(time.Minute, nil)
	assert.Equal(t, time.Duration(0), th.ResolveDelay())

	require.NoError(t, th.Acquire(context.Background()))
	remaining := th.ResolveDelay()
	assert.Greater(t, remaining, 59*time.Second)
	assert.LessOrEqual(t, remaining, time.Minute)
}

func TestThrottle_CancelledWhileWaiting(t *testing.T) {
	th := limiter.NewThrottle(time.Minute, nil)
	require.NoError(t, th.Acquire(context.Background()))
	issued := th.LastIssuedAt()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := th.Acquire(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
	// a failed acquire does not move the admission time
	assert.Equal(t, issued, th.LastIssuedAt())
}

func TestThrottle_JitterIsBounded(t *testing.T) {
	th := limiter.NewThrottle(10*time.Millisecond, nil)
	th.SetJitter(20 * time.Millisecond)
	th.SetRandomSeed(42)

	require.NoError(t, th.Acquire(context.Background()))
	for i := 0; i < 20; i++ {
		d := th.ResolveDelay()
		assert.LessOrEqual(t, d, 30*time.Millisecond)
	}
}

// Concurrent callers are admitted one at a time and never closer than the step.
func TestThrottle_ConcurrentAdmissionsAreSerialized(t *testing.T) {
	step := 30 * time.Millisecond
	th := limiter.NewThrottle(step, nil)

	var wg sync.WaitGroup
	start := time.Now()
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := th.Acquire(context.Background()); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	// the first admission is immediate, the remaining four wait one step each
	assert.GreaterOrEqual(t, time.Since(start), 4*step)
	assert.GreaterOrEqual(t, th.LastIssuedAt().Sub(start), 4*step)
}
