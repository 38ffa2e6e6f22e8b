package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/PiperEve/BlueGhost/internal/expiry"
	"github.com/PiperEve/BlueGhost/internal/rewind"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeLifecycle struct {
	ticks  atomic.Int32
	resets atomic.Int32
	err    error
}

func (f *fakeLifecycle) Tick(context.Context) (expiry.Report, error) {
	f.ticks.Add(1)
	return expiry.Report{Changed: true, ExpiredPosts: []string{"p"}}, f.err
}

func (f *fakeLifecycle) MonthlyReset(context.Context) (rewind.ResetResult, error) {
	f.resets.Add(1)
	return rewind.ResetResult{MonthKey: "2025-08"}, f.err
}

func TestAddJob_InvalidSpec(t *testing.T) {
	s := New(nil, 0, quiet())
	err := s.AddJob("bad", "every now and then", func(context.Context) error { return nil })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "schedule job bad")
	assert.Empty(t, s.Jobs())
}

func TestRegisterLifecycle(t *testing.T) {
	s := New(time.UTC, time.Second, quiet())
	lc := &fakeLifecycle{}
	require.NoError(t, RegisterLifecycle(s, lc, "@every 5m", "0 0 1 * *"))

	jobs := s.Jobs()
	require.Len(t, jobs, 2)
	assert.Equal(t, JobMonthlyReset, jobs[0].Name)
	assert.Equal(t, JobReconcile, jobs[1].Name)

	s.RemoveJob(JobReconcile)
	s.RemoveJob("unknown")
	assert.Len(t, s.Jobs(), 1)
}

func TestAddJob_ReplacesByName(t *testing.T) {
	s := New(nil, 0, quiet())
	noop := func(context.Context) error { return nil }
	require.NoError(t, s.AddJob("x", "@every 1h", noop))
	require.NoError(t, s.AddJob("x", "@every 2h", noop))
	assert.Len(t, s.Jobs(), 1)
}

func TestRunNow_AppliesTimeout(t *testing.T) {
	s := New(nil, 10*time.Millisecond, quiet())
	err := s.RunNow("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRunNow_PropagatesError(t *testing.T) {
	s := New(nil, 0, quiet())
	boom := errors.New("boom")
	assert.ErrorIs(t, s.RunNow("x", func(context.Context) error { return boom }), boom)
}

func TestStartStop_RunsJobs(t *testing.T) {
	s := New(time.UTC, time.Second, quiet())
	lc := &fakeLifecycle{}
	require.NoError(t, RegisterLifecycle(s, lc, "@every 1s", "@every 1s"))

	s.Start()
	assert.Eventually(t, func() bool {
		return lc.ticks.Load() > 0 && lc.resets.Load() > 0
	}, 5*time.Second, 50*time.Millisecond)

	ctx := s.Stop()
	select {
	case <-ctx.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}

func TestStartStop_FailingJobKeepsRunning(t *testing.T) {
	s := New(time.UTC, time.Second, quiet())
	lc := &fakeLifecycle{err: errors.New("backend down")}
	require.NoError(t, RegisterLifecycle(s, lc, "@every 1s", "0 0 1 * *"))

	s.Start()
	assert.Eventually(t, func() bool { return lc.ticks.Load() >= 2 }, 5*time.Second, 50*time.Millisecond)
	<-s.Stop().Done()
}
