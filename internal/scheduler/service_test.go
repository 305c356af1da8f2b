package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/resolvehub/complaint-engine/pkg/util/errorutil"
)

type recordingTicker struct {
	mu    sync.Mutex
	calls []time.Time
	ctxs  []context.Context
	err   error
}

func (r *recordingTicker) Tick(ctx context.Context, now time.Time) (SweepReport, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, now)
	r.ctxs = append(r.ctxs, ctx)
	return SweepReport{StartedAt: now}, r.err
}

func (r *recordingTicker) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func TestServiceRunOnceUsesInjectedClock(t *testing.T) {
	ticker := &recordingTicker{}
	svc := NewService(ticker, WithClock(func() time.Time { return t0 }), WithTimeout(time.Minute))

	svc.RunOnce()

	require.Len(t, ticker.calls, 1)
	assert.Equal(t, t0, ticker.calls[0])
	deadline, ok := ticker.ctxs[0].Deadline()
	assert.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(time.Minute), deadline, 5*time.Second)
}

func TestServiceRunOnceSwallowsTickErrors(t *testing.T) {
	ticker := &recordingTicker{err: apperrors.ErrSweepInProgress}
	svc := NewService(ticker)

	assert.NotPanics(t, svc.RunOnce)
	assert.Equal(t, 1, ticker.count())
}

func TestServiceRunSchedulesUntilCancelled(t *testing.T) {
	ticker := &recordingTicker{}
	svc := NewService(ticker, WithInterval(time.Second))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()

	require.Eventually(t, func() bool { return ticker.count() >= 1 }, 5*time.Second, 50*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not stop")
	}
	assert.NotPanics(t, svc.Stop)
}

func TestServiceRunRejectsInvalidInterval(t *testing.T) {
	svc := NewService(&recordingTicker{}, WithInterval(0))
	err := svc.Run(context.Background())
	require.Error(t, err)
}
