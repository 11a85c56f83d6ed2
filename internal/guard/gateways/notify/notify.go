// Package notify emits the block-notification side effect, rate-limited to
// the first block per tab within a short window.
package notify

import (
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/Nomad06/brain-defender/internal/guard/common/log"
)

// Notifier rate-limits block notifications per tab. The per-tab last-notified
// times live in a bounded LRU so an unbounded tab population cannot grow the
// window state.
type Notifier struct {
	recent *lru.Cache[string, time.Time]
	window time.Duration
	logger log.Logger
}

// New returns a Notifier with the given rate-limit window. size bounds how
// many tabs are tracked at once.
func New(size int, window time.Duration, logger log.Logger) (*Notifier, error) {
	cache, err := lru.New[string, time.Time](size)
	if err != nil {
		return nil, err
	}
	return &Notifier{recent: cache, window: window, logger: logger}, nil
}

// NotifyBlocked emits a notification for a blocked navigation unless the tab
// was already notified within the window. Returns whether a notification was
// emitted.
func (n *Notifier) NotifyBlocked(tabID, host string, now time.Time) bool {
	if last, ok := n.recent.Get(tabID); ok && now.Sub(last) < n.window {
		return false
	}
	n.recent.Add(tabID, now)
	n.logger.Info(map[string]any{
		"tab":  tabID,
		"host": host,
	}, "Blocked navigation")
	return true
}
