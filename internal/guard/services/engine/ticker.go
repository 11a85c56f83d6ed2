package engine

import (
	"context"
	"time"

	"github.com/Nomad06/brain-defender/internal/guard/common/log"
)

// Ticker drives the periodic recompute trigger so schedule boundaries and
// whitelist expiries take effect without any other event.
type Ticker struct {
	interval time.Duration
	rebuild  func(context.Context) error
	logger   log.Logger
	stopChan chan struct{}
	doneChan chan struct{}
}

// NewTicker returns a Ticker invoking rebuild every interval.
func NewTicker(interval time.Duration, rebuild func(context.Context) error, logger log.Logger) *Ticker {
	return &Ticker{
		interval: interval,
		rebuild:  rebuild,
		logger:   logger,
		stopChan: make(chan struct{}),
		doneChan: make(chan struct{}),
	}
}

// Start begins the ticker loop.
func (t *Ticker) Start(ctx context.Context) {
	ticker := time.NewTicker(t.interval)
	go func() {
		defer close(t.doneChan)
		for {
			select {
			case <-ticker.C:
				if err := t.rebuild(ctx); err != nil {
					t.logger.Warn(map[string]any{"error": err}, "Periodic rebuild failed")
				}
			case <-t.stopChan:
				ticker.Stop()
				return
			case <-ctx.Done():
				ticker.Stop()
				return
			}
		}
	}()
	t.logger.Info(map[string]any{"interval": t.interval.String()}, "Recompute ticker started")
}

// Stop stops the ticker loop and waits for it to drain.
func (t *Ticker) Stop() {
	close(t.stopChan)
	<-t.doneChan
	t.logger.Info(nil, "Recompute ticker stopped")
}
