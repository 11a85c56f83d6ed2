package engine

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nomad06/brain-defender/internal/guard/common/log"
)

func TestTicker_InvokesRebuild(t *testing.T) {
	var calls atomic.Int32
	ticker := NewTicker(5*time.Millisecond, func(context.Context) error {
		calls.Add(1)
		return nil
	}, log.NewNoopLogger())

	ticker.Start(context.Background())
	require.Eventually(t, func() bool { return calls.Load() >= 2 },
		time.Second, time.Millisecond)
	ticker.Stop()

	after := calls.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, after, calls.Load(), "no rebuilds after Stop")
}

func TestTicker_StopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	ticker := NewTicker(time.Millisecond, func(context.Context) error { return nil }, log.NewNoopLogger())
	ticker.Start(ctx)
	cancel()

	select {
	case <-ticker.doneChan:
	case <-time.After(time.Second):
		t.Fatal("ticker did not drain after context cancel")
	}
}
