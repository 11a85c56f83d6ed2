package notify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nomad06/brain-defender/internal/guard/common/log"
)

func TestNotifyBlocked_WindowPerTab(t *testing.T) {
	n, err := New(8, 30*time.Second, log.NewNoopLogger())
	require.NoError(t, err)

	now := time.Date(2026, 8, 3, 12, 0, 0, 0, time.UTC)

	assert.True(t, n.NotifyBlocked("tab-1", "example.com", now))
	assert.False(t, n.NotifyBlocked("tab-1", "example.com", now.Add(10*time.Second)))
	// A different host on the same tab is still suppressed.
	assert.False(t, n.NotifyBlocked("tab-1", "news.example", now.Add(20*time.Second)))
	// Another tab has its own window.
	assert.True(t, n.NotifyBlocked("tab-2", "example.com", now.Add(20*time.Second)))
	// Window elapsed, tab-1 fires again.
	assert.True(t, n.NotifyBlocked("tab-1", "example.com", now.Add(31*time.Second)))
}

func TestNotifyBlocked_EvictionReopensWindow(t *testing.T) {
	n, err := New(2, time.Hour, log.NewNoopLogger())
	require.NoError(t, err)

	now := time.Date(2026, 8, 3, 12, 0, 0, 0, time.UTC)

	assert.True(t, n.NotifyBlocked("tab-1", "example.com", now))
	assert.True(t, n.NotifyBlocked("tab-2", "example.com", now))
	// tab-3 evicts tab-1 from the bounded cache.
	assert.True(t, n.NotifyBlocked("tab-3", "example.com", now))
	assert.True(t, n.NotifyBlocked("tab-1", "example.com", now.Add(time.Second)))
}

func TestNew_RejectsNonPositiveSize(t *testing.T) {
	_, err := New(0, time.Second, log.NewNoopLogger())
	assert.Error(t, err)
}
