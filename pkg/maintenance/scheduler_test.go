package maintenance

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counter(n *atomic.Int32) func(context.Context) error {
	return func(context.Context) error {
		n.Add(1)
		return nil
	}
}

func TestSchedulerRunsJobsOnTheirInterval(t *testing.T) {
	mock := clock.NewMock()
	s := NewScheduler(mock)

	var optimize, idle atomic.Int32
	require.NoError(t, s.Add(Job{Name: "optimize", Interval: time.Hour, Run: counter(&optimize)}))
	require.NoError(t, s.Add(Job{Name: "manual", Run: counter(&idle)}))

	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()
	assert.True(t, s.IsRunning())

	mock.Add(time.Hour)
	require.Eventually(t, func() bool { return optimize.Load() == 1 }, time.Second, 5*time.Millisecond)

	mock.Add(time.Hour)
	require.Eventually(t, func() bool { return optimize.Load() == 2 }, time.Second, 5*time.Millisecond)
	assert.Zero(t, idle.Load(), "jobs without an interval only run on demand")
}

func TestSchedulerAddWhileRunning(t *testing.T) {
	mock := clock.NewMock()
	s := NewScheduler(mock)

	var first, late atomic.Int32
	require.NoError(t, s.Add(Job{Name: "first", Interval: time.Hour, Run: counter(&first)}))
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	require.NoError(t, s.Add(Job{Name: "late", Interval: time.Minute, Run: counter(&late)}))
	mock.Add(time.Minute)
	require.Eventually(t, func() bool { return late.Load() == 1 }, time.Second, 5*time.Millisecond)
	assert.Zero(t, first.Load())
	assert.Equal(t, []string{"first", "late"}, s.Jobs())
}

func TestSchedulerRejectsBadJobs(t *testing.T) {
	s := NewScheduler(clock.NewMock())
	noop := func(context.Context) error { return nil }

	assert.Error(t, s.Add(Job{Run: noop}))
	assert.Error(t, s.Add(Job{Name: "nil"}))
	assert.Error(t, s.Add(Job{Name: "neg", Interval: -time.Second, Run: noop}))
	require.NoError(t, s.Add(Job{Name: "dup", Run: noop}))
	assert.Error(t, s.Add(Job{Name: "dup", Run: noop}))
}

func TestSchedulerStartStop(t *testing.T) {
	s := NewScheduler(clock.NewMock())
	err := s.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no jobs")

	require.NoError(t, s.Add(Job{Name: "job", Interval: time.Hour, Run: func(context.Context) error { return nil }}))
	require.NoError(t, s.Start(context.Background()))
	assert.Error(t, s.Start(context.Background()), "second start")

	s.Stop()
	assert.False(t, s.IsRunning())
	s.Stop()

	require.NoError(t, s.Start(context.Background()), "restart after stop")
	s.Stop()
}

func TestSchedulerRunOnce(t *testing.T) {
	s := NewScheduler(clock.NewMock())
	var ran atomic.Int32
	boom := errors.New("disk full")

	require.NoError(t, s.Add(Job{Name: "ok", Interval: time.Hour, Run: counter(&ran)}))
	require.NoError(t, s.Add(Job{Name: "broken", Run: func(context.Context) error { return boom }}))
	require.NoError(t, s.Add(Job{Name: "after", Run: counter(&ran)}))

	err := s.RunOnce(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "broken")
	assert.Equal(t, int32(2), ran.Load(), "a failing job does not stop the others")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, s.RunOnce(ctx), context.Canceled)
	assert.Equal(t, int32(2), ran.Load())
}
