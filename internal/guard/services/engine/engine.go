// Package engine is the guard core: it compiles the declarative site list
// plus the temp-whitelist and focus-session overlays into the active
// blocked-host set, projects it into bounded redirect rules, and keeps the
// installed filter state converged through a single-flight rebuild
// coordinator.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Nomad06/brain-defender/internal/guard/common/clock"
	"github.com/Nomad06/brain-defender/internal/guard/common/log"
	"github.com/Nomad06/brain-defender/internal/guard/common/utils"
	"github.com/Nomad06/brain-defender/internal/guard/domain"
)

// Engine is the facade the trigger sources talk to: navigation events,
// session RPCs, the recompute ticker, and boot reconciliation all end up
// here.
type Engine struct {
	mu       sync.RWMutex
	compiled *Compiled

	coordinator *Coordinator
	projector   *Projector
	stats       StatsRepo
	overlay     OverlayRepo
	diag        DiagRepo
	ruleEngine  RuleEngine
	notifier    BlockNotifier
	clock       clock.Clock
	logger      log.Logger
}

// Options configures an Engine.
type Options struct {
	Sites      SiteRepo
	Stats      StatsRepo
	Overlay    OverlayRepo
	Diag       DiagRepo
	RuleEngine RuleEngine
	Notifier   BlockNotifier
	Clock      clock.Clock
	Logger     log.Logger
	LandingURL string
}

// New wires the projector and coordinator and returns the engine. No rules
// are applied until Reconcile or Rebuild runs.
func New(opts Options) *Engine {
	e := &Engine{
		projector:  NewProjector(opts.RuleEngine.MaxRules(), opts.LandingURL),
		stats:      opts.Stats,
		overlay:    opts.Overlay,
		diag:       opts.Diag,
		ruleEngine: opts.RuleEngine,
		notifier:   opts.Notifier,
		clock:      opts.Clock,
		logger:     opts.Logger,
		compiled:   &Compiled{Active: NewActiveSet(nil), Sites: map[string]domain.Site{}},
	}
	e.coordinator = NewCoordinator(CoordinatorOptions{
		Sites:     opts.Sites,
		Stats:     opts.Stats,
		Overlay:   opts.Overlay,
		Diag:      opts.Diag,
		Engine:    opts.RuleEngine,
		Projector: e.projector,
		Clock:     opts.Clock,
		Logger:    opts.Logger,
		OnApplied: e.setCompiled,
	})
	return e
}

func (e *Engine) setCompiled(c *Compiled) {
	e.mu.Lock()
	e.compiled = c
	e.mu.Unlock()
	e.logger.Info(map[string]any{"badge": c.Active.Len()}, "Badge count updated")
}

func (e *Engine) snapshot() *Compiled {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.compiled
}

// Rebuild triggers the coordinator; safe to call from any trigger source.
func (e *Engine) Rebuild(ctx context.Context) error {
	return e.coordinator.Rebuild(ctx)
}

// Reconcile restores boot-time state: the in-memory session overlay is
// re-derived from its persisted record (an expired record is dropped), the
// projector watermark is advanced past every installed rule ID, and one full
// rebuild runs before the engine serves traffic.
func (e *Engine) Reconcile(ctx context.Context) error {
	now := e.clock.Now()
	session, err := e.overlay.GetSession()
	if err != nil {
		return fmt.Errorf("reconcile session: %w", err)
	}
	if session != nil && !session.ActiveAt(now) {
		e.logger.Info(map[string]any{"ended": session.EndsAt}, "Dropping expired focus session")
		if err := e.overlay.ClearSession(); err != nil {
			return fmt.Errorf("clear expired session: %w", err)
		}
	}

	installed, err := e.ruleEngine.ListInstalled()
	if err != nil {
		return fmt.Errorf("reconcile installed rules: %w", err)
	}
	var highest uint64
	for _, rule := range installed {
		if rule.ID > highest {
			highest = rule.ID
		}
	}
	e.projector.SetWatermark(highest)

	return e.Rebuild(ctx)
}

// NavigationResult is the engine's answer to one navigation event.
type NavigationResult struct {
	Host     string `json:"host"`
	Blocked  bool   `json:"blocked"`
	Redirect string `json:"redirect,omitempty"`
	Notified bool   `json:"notified"`
}

// CheckNavigation handles a navigation trigger: it resolves the host against
// the compiled set, records the visit for any configured site, fires the
// rate-limited notifier on a block, and, only when some site carries
// conditional rules, schedules a rebuild so counters take effect within one
// cycle.
func (e *Engine) CheckNavigation(ctx context.Context, rawURL, tabID string) (NavigationResult, error) {
	now := e.clock.Now()
	host, err := utils.HostFromURL(rawURL)
	if err != nil {
		return NavigationResult{}, err
	}
	snap := e.snapshot()

	result := NavigationResult{Host: host, Blocked: snap.Active.Contains(host)}
	if result.Blocked {
		result.Redirect = e.projector.RedirectFor(rawURL)
		result.Notified = e.notifier.NotifyBlocked(tabID, host, now)
	}

	if siteHost, ok := snap.MatchSite(host); ok {
		if _, err := e.stats.RecordVisit(siteHost, now); err != nil {
			return result, fmt.Errorf("record visit for %q: %w", siteHost, err)
		}
		if snap.AnyConditional {
			if err := e.Rebuild(ctx); err != nil {
				e.logger.Warn(map[string]any{"error": err}, "Rebuild after visit failed")
			}
		}
	}
	return result, nil
}

// RecordTime adds spent minutes against a site and, when conditional rules
// are configured anywhere, schedules a rebuild.
func (e *Engine) RecordTime(ctx context.Context, host string, minutes int) error {
	now := e.clock.Now()
	normalized, err := utils.NormalizeHost(host)
	if err != nil {
		return err
	}
	snap := e.snapshot()
	siteHost, ok := snap.MatchSite(normalized)
	if !ok {
		return fmt.Errorf("site %q: %w", normalized, domain.ErrNotFound)
	}
	if _, err := e.stats.AddTime(siteHost, now, minutes); err != nil {
		return err
	}
	if snap.AnyConditional {
		if err := e.Rebuild(ctx); err != nil {
			e.logger.Warn(map[string]any{"error": err}, "Rebuild after time record failed")
		}
	}
	return nil
}

// StartSession begins a focus session over the given hosts for the given
// duration, persists it as the source of truth, and rebuilds synchronously
// so the caller observes the applied overlay.
func (e *Engine) StartSession(ctx context.Context, hosts []string, duration time.Duration) (domain.FocusSession, error) {
	if len(hosts) == 0 {
		return domain.FocusSession{}, fmt.Errorf("session needs at least one host")
	}
	if duration <= 0 {
		return domain.FocusSession{}, fmt.Errorf("session duration must be positive")
	}
	now := e.clock.Now()
	normalized := make([]string, 0, len(hosts))
	seen := map[string]bool{}
	for _, raw := range hosts {
		host, err := utils.NormalizeHost(raw)
		if err != nil {
			return domain.FocusSession{}, err
		}
		if !seen[host] {
			seen[host] = true
			normalized = append(normalized, host)
		}
	}
	session := domain.FocusSession{Hosts: normalized, StartedAt: now, EndsAt: now.Add(duration)}
	if err := e.overlay.PutSession(session); err != nil {
		return domain.FocusSession{}, err
	}
	if err := e.Rebuild(ctx); err != nil {
		return session, err
	}
	return session, nil
}

// StopSession clears the persisted session record and rebuilds.
func (e *Engine) StopSession(ctx context.Context) error {
	if err := e.overlay.ClearSession(); err != nil {
		return err
	}
	return e.Rebuild(ctx)
}

// Status summarizes the engine for the control API.
type Status struct {
	Badge     int                  `json:"badge"`
	Session   *domain.FocusSession `json:"session,omitempty"`
	LastError *domain.RebuildError `json:"last_error,omitempty"`
}

// Status reports the badge count, the persisted session record, and the last
// rebuild error.
func (e *Engine) Status() (Status, error) {
	snap := e.snapshot()
	session, err := e.overlay.GetSession()
	if err != nil {
		return Status{}, err
	}
	lastErr, err := e.diag.LastRebuildError()
	if err != nil {
		return Status{}, err
	}
	return Status{Badge: snap.Active.Len(), Session: session, LastError: lastErr}, nil
}
