package engine

import (
	"time"

	"github.com/Nomad06/brain-defender/internal/guard/domain"
)

// SiteRepo provides read access to the persisted site list.
type SiteRepo interface {
	ListSites() ([]domain.Site, error)
}

// StatsRepo provides per-host usage counters. Writes are append-only; the
// engine decides separately whether a write warrants a rebuild.
type StatsRepo interface {
	GetStats(host string) (domain.SiteStats, error)
	RecordVisit(host string, now time.Time) (domain.SiteStats, error)
	AddTime(host string, now time.Time, minutes int) (domain.SiteStats, error)
}

// OverlayRepo provides the two dynamic overlays: the temp whitelist and the
// persisted focus-session record.
type OverlayRepo interface {
	ListWhitelist() ([]domain.TempWhitelistEntry, error)
	GetSession() (*domain.FocusSession, error)
	PutSession(session domain.FocusSession) error
	ClearSession() error
}

// DiagRepo persists rebuild diagnostics.
type DiagRepo interface {
	LastRebuildError() (*domain.RebuildError, error)
	SetLastRebuildError(rec domain.RebuildError) error
	ClearLastRebuildError() error
}

// RuleEngine is the host platform's declarative filter-rule engine contract.
// Installed rules carry unique IDs and the total count never exceeds
// MaxRules.
type RuleEngine interface {
	InstallBatch(rules []domain.ProjectedRule) error
	RemoveByID(id uint64) error
	ListInstalled() ([]domain.ProjectedRule, error)
	MaxRules() int
}

// BlockNotifier emits the rate-limited first-block-per-tab side effect.
type BlockNotifier interface {
	NotifyBlocked(tabID, host string, now time.Time) bool
}
