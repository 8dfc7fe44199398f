package poller

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTickRunsRefreshWhenVisible(t *testing.T) {
	var calls int32
	c := New("worker-check", time.Hour, func(ctx context.Context) error {
		atomic.AddInt32(&calls, 1)
		return nil
	}, nil)

	c.Tick(context.Background())
	c.Tick(context.Background())
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestTickSuppressedWhileHidden(t *testing.T) {
	var calls int32
	c := New("worker-check", time.Hour, func(ctx context.Context) error {
		atomic.AddInt32(&calls, 1)
		return nil
	}, nil)

	c.SetVisible(false)
	c.Tick(context.Background())
	assert.EqualValues(t, 0, atomic.LoadInt32(&calls))

	c.SetVisible(true)
	c.Tick(context.Background())
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestFailuresAreSwallowed(t *testing.T) {
	c := New("dashboard", time.Hour, func(ctx context.Context) error {
		return errors.New("upstream down")
	}, nil)

	// must not panic or change visibility
	c.Tick(context.Background())
	assert.True(t, c.Visible())
}

func TestVisibleTransitionTriggersImmediateRefresh(t *testing.T) {
	var calls int32
	c := New("worker-check", time.Hour, func(ctx context.Context) error {
		atomic.AddInt32(&calls, 1)
		return nil
	}, nil)
	c.SetVisible(false)

	c.Start(context.Background())
	defer c.Stop()

	// hidden: the long interval guarantees no ticks fire on their own
	time.Sleep(20 * time.Millisecond)
	assert.EqualValues(t, 0, atomic.LoadInt32(&calls))

	c.SetVisible(true)
	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&calls) == 1
	}, time.Second, 5*time.Millisecond)
}

func TestRepeatedVisibleCallsDoNotRekick(t *testing.T) {
	var calls int32
	c := New("worker-check", time.Hour, func(ctx context.Context) error {
		atomic.AddInt32(&calls, 1)
		return nil
	}, nil)

	c.Start(context.Background())
	defer c.Stop()

	// already visible, so these transitions are no-ops
	c.SetVisible(true)
	c.SetVisible(true)
	time.Sleep(20 * time.Millisecond)
	assert.EqualValues(t, 0, atomic.LoadInt32(&calls))
}

func TestIntervalTicks(t *testing.T) {
	var calls int32
	c := New("worker-check", 10*time.Millisecond, func(ctx context.Context) error {
		atomic.AddInt32(&calls, 1)
		return nil
	}, nil)

	c.Start(context.Background())
	defer c.Stop()

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&calls) >= 2
	}, time.Second, 5*time.Millisecond)
}

func TestStopHaltsLoop(t *testing.T) {
	var calls int32
	c := New("worker-check", 5*time.Millisecond, func(ctx context.Context) error {
		atomic.AddInt32(&calls, 1)
		return nil
	}, nil)

	c.Start(context.Background())
	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&calls) >= 1
	}, time.Second, time.Millisecond)

	c.Stop()
	settled := atomic.LoadInt32(&calls)
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, settled, atomic.LoadInt32(&calls))
}
