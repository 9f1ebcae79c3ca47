package sweep

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/whisper/board/internal/entry"
	"github.com/whisper/board/internal/presence"
	"github.com/whisper/board/internal/testutil"
)

type mockTarget struct {
	calls int32
}

func (m *mockTarget) Sweep(time.Time) int {
	return int(atomic.AddInt32(&m.calls, 1))
}

func TestSweeper_RunOnce_CallsEveryTarget(t *testing.T) {
	a, b := &mockTarget{}, &mockTarget{}
	s := New(time.Second, map[string]Target{"a": a, "b": b})

	s.runOnce()

	assert.Equal(t, int32(1), atomic.LoadInt32(&a.calls))
	assert.Equal(t, int32(1), atomic.LoadInt32(&b.calls))
}

func TestSweeper_Start_RunsPeriodically(t *testing.T) {
	target := &mockTarget{}
	s := New(5*time.Millisecond, map[string]Target{"mock": target})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go s.Start(ctx)

	assert.Eventually(t, func() bool {
		return atomic.LoadInt32(&target.calls) >= 2
	}, time.Second, 5*time.Millisecond)
}

func TestSweeper_Start_StopsOnContextCancel(t *testing.T) {
	target := &mockTarget{}
	s := New(5*time.Millisecond, map[string]Target{"mock": target})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Start(ctx)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop after cancel")
	}
}

func TestSweeper_DisabledInterval(t *testing.T) {
	target := &mockTarget{}
	s := New(0, map[string]Target{"mock": target})

	assert.NotPanics(t, func() {
		s.Start(context.Background()) // returns immediately
	})
	assert.Equal(t, int32(0), atomic.LoadInt32(&target.calls))
}

func TestSweeper_WithRealStores(t *testing.T) {
	clk := testutil.NewClock(time.Unix(1_700_000_000, 0))
	entries := entry.NewStore(entry.WithClock(clk.Now))
	tracker := presence.NewTracker(presence.DefaultConfig(), clk.Now)

	_, _, err := entries.Add("s1", "m1", "short", 5, "")
	require.NoError(t, err)
	require.NoError(t, tracker.Track("s1", "m1"))

	s := New(time.Second, map[string]Target{"entries": entries, "presence": tracker})
	s.now = clk.Now

	clk.Advance(time.Hour)
	s.runOnce()

	assert.Equal(t, 0, entries.Count("s1"))
	_, ok := tracker.LastSeen("s1", "m1")
	assert.False(t, ok)
}
