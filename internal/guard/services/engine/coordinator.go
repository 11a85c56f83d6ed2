package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/Nomad06/brain-defender/internal/guard/common/clock"
	"github.com/Nomad06/brain-defender/internal/guard/common/log"
	"github.com/Nomad06/brain-defender/internal/guard/domain"
)

// Incremental-vs-full heuristic thresholds. Both branches currently perform
// the same remove-all/add-all work; the distinction only feeds diagnostics.
// Kept on purpose: true incremental diffing would be a redesign, not a port.
const (
	incrementalMaxDelta    = 0.30
	incrementalMinExisting = 10
)

// Coordinator is the sole writer of the installed filter-rule state. It
// wraps compile → project → apply behind a single-flight gate with one
// trailing rerun, so concurrent triggers collapse into at most one extra run
// and the final applied state always reflects the latest inputs.
type Coordinator struct {
	mu      sync.Mutex
	running bool
	queued  bool
	waiters []chan error

	sites     SiteRepo
	stats     StatsRepo
	overlay   OverlayRepo
	diag      DiagRepo
	engine    RuleEngine
	projector *Projector
	clock     clock.Clock
	logger    log.Logger

	// onApplied receives the compilation snapshot after a successful apply.
	onApplied func(*Compiled)
}

// CoordinatorOptions configures a Coordinator.
type CoordinatorOptions struct {
	Sites     SiteRepo
	Stats     StatsRepo
	Overlay   OverlayRepo
	Diag      DiagRepo
	Engine    RuleEngine
	Projector *Projector
	Clock     clock.Clock
	Logger    log.Logger
	OnApplied func(*Compiled)
}

// NewCoordinator constructs a Coordinator.
func NewCoordinator(opts CoordinatorOptions) *Coordinator {
	return &Coordinator{
		sites:     opts.Sites,
		stats:     opts.Stats,
		overlay:   opts.Overlay,
		diag:      opts.Diag,
		engine:    opts.Engine,
		projector: opts.Projector,
		clock:     opts.Clock,
		logger:    opts.Logger,
		onApplied: opts.OnApplied,
	}
}

// Rebuild recompiles and reapplies the rule state. While a run is in flight,
// callers enqueue a single trailing rerun instead of starting a second pass;
// they block until the run covering their inputs completes or ctx ends. The
// run itself is never cancelled mid-flight; staleness is corrected by the
// queued rerun, not cancellation.
func (c *Coordinator) Rebuild(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.queued = true
		ch := make(chan error, 1)
		c.waiters = append(c.waiters, ch)
		c.mu.Unlock()
		select {
		case err := <-ch:
			return err
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	c.running = true
	c.mu.Unlock()

	var pending []chan error
	var err error
	for {
		err = c.runOnce(ctx)
		for _, w := range pending {
			w <- err
		}
		pending = nil

		c.mu.Lock()
		if c.queued {
			// Drain exactly one queued rerun; its waiters get the result
			// of the run that actually covers their inputs.
			c.queued = false
			pending = c.waiters
			c.waiters = nil
			c.mu.Unlock()
			continue
		}
		c.running = false
		c.mu.Unlock()
		return err
	}
}

// runOnce executes one full rebuild pass. Compile and project errors abort
// before any mutation; apply errors are recovered via the per-rule fallback.
func (c *Coordinator) runOnce(ctx context.Context) error {
	now := c.clock.Now()

	sites, err := c.sites.ListSites()
	if err != nil {
		return c.fail("load", err)
	}
	whitelist, err := c.overlay.ListWhitelist()
	if err != nil {
		return c.fail("load", err)
	}
	session, err := c.overlay.GetSession()
	if err != nil {
		return c.fail("load", err)
	}

	compiled, err := Compile(sites, c.stats, whitelist, session, now)
	if err != nil {
		return c.fail("compute", err)
	}

	rules, skipped, err := c.projector.Project(compiled.Active.Hosts())
	if err != nil {
		// Capacity overrun: nothing is applied, prior state is retained.
		return c.fail("project", err)
	}
	if len(skipped) > 0 {
		c.logger.Warn(map[string]any{"hosts": skipped}, "Skipped hosts with unbuildable patterns")
	}

	installed, err := c.engine.ListInstalled()
	if err != nil {
		return c.fail("read_installed", err)
	}

	mode := applyMode(len(installed), len(rules))
	result, err := c.apply(installed, rules)
	if err != nil {
		return c.fail("apply", err)
	}

	// Verify by re-reading the installed count; a mismatch is logged, never
	// escalated, and the next rebuild converges.
	if after, err := c.engine.ListInstalled(); err == nil && len(after) != len(rules) {
		c.logger.Warn(map[string]any{
			"expected": len(rules),
			"actual":   len(after),
		}, "Installed rule count mismatch after apply")
	}

	if c.onApplied != nil {
		c.onApplied(compiled)
	}
	if err := c.diag.ClearLastRebuildError(); err != nil {
		c.logger.Warn(map[string]any{"error": err}, "Failed to clear last rebuild error")
	}

	c.logger.Info(map[string]any{
		"mode":      mode,
		"blocked":   compiled.Active.Len(),
		"removed":   result.removed,
		"installed": result.installed,
		"failed":    result.failed,
		"fallback":  result.fallback,
	}, "Rebuild applied")
	return nil
}

// applyResult aggregates the outcome of the two-tier apply strategy.
type applyResult struct {
	removed   int
	installed int
	failed    int
	fallback  bool
}

// apply replaces the installed rule set: remove everything, then install the
// new batch. A failed batch install falls back to one-at-a-time installs,
// tolerating partial success; it escalates only when not a single rule could
// be installed.
func (c *Coordinator) apply(installed, rules []domain.ProjectedRule) (applyResult, error) {
	var res applyResult
	for _, rule := range installed {
		if err := c.engine.RemoveByID(rule.ID); err != nil {
			return res, fmt.Errorf("remove rule %d: %w", rule.ID, err)
		}
		res.removed++
	}

	if err := c.engine.InstallBatch(rules); err == nil {
		res.installed = len(rules)
		return res, nil
	} else {
		c.logger.Warn(map[string]any{"error": err, "rules": len(rules)}, "Batch install failed, falling back to sequential apply")
	}

	res.fallback = true
	for _, rule := range rules {
		if err := c.engine.InstallBatch([]domain.ProjectedRule{rule}); err != nil {
			res.failed++
			c.logger.Warn(map[string]any{"rule": rule.ID, "error": err}, "Sequential install failed")
			continue
		}
		res.installed++
	}
	if res.installed == 0 && len(rules) > 0 {
		return res, fmt.Errorf("sequential fallback installed 0 of %d rules", len(rules))
	}
	return res, nil
}

// applyMode picks the diagnostics label for this run. Small deltas against a
// settled rule set are labeled incremental even though both modes do
// identical remove-all/add-all work.
func applyMode(existing, incoming int) string {
	if existing > incrementalMinExisting {
		delta := incoming - existing
		if delta < 0 {
			delta = -delta
		}
		if float64(delta)/float64(existing) <= incrementalMaxDelta {
			return "incremental"
		}
	}
	return "full"
}

// fail persists the stage-tagged diagnostics record and returns the wrapped
// error.
func (c *Coordinator) fail(stage string, err error) error {
	wrapped := fmt.Errorf("rebuild %s: %w", stage, err)
	c.logger.Error(map[string]any{"stage": stage, "error": err}, "Rebuild failed")
	if perr := c.diag.SetLastRebuildError(domain.RebuildError{
		At:      c.clock.Now(),
		Stage:   stage,
		Message: wrapped.Error(),
	}); perr != nil {
		c.logger.Warn(map[string]any{"error": perr}, "Failed to persist rebuild error")
	}
	return wrapped
}
