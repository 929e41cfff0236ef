package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dmitrijs2005/gophtour/internal/logging"
	"github.com/stretchr/testify/require"
)

func TestEvery_RejectsNonPositiveInterval(t *testing.T) {
	s := New(logging.NewNopLogger())
	require.Error(t, s.Every("sweep", 0, func(context.Context) error { return nil }))
}

func TestRun_ExecutesJobsUntilCancelled(t *testing.T) {
	s := New(logging.NewNopLogger())

	var runs atomic.Int32
	require.NoError(t, s.Every("sweep", time.Second, func(ctx context.Context) error {
		runs.Add(1)
		return errors.New("logged, not fatal")
	}))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool { return runs.Load() >= 1 }, 5*time.Second, 50*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}

func TestJobContextIsCancelledOnStop(t *testing.T) {
	s := New(logging.NewNopLogger())

	started := make(chan struct{})
	var sawCancel atomic.Bool
	require.NoError(t, s.Every("slow", time.Second, func(ctx context.Context) error {
		select {
		case started <- struct{}{}:
		default:
		}
		<-ctx.Done()
		sawCancel.Store(true)
		return ctx.Err()
	}))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("job never started")
	}
	cancel()
	<-done
	require.True(t, sawCancel.Load())
}
