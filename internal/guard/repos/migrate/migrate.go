// Package migrate upgrades the persisted site-list schema through strictly
// ordered, idempotent steps, guarded by a storage-backed lock with a TTL so a
// crashed holder never wedges the upgrade.
package migrate

import (
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/Nomad06/brain-defender/internal/guard/common/clock"
	"github.com/Nomad06/brain-defender/internal/guard/common/log"
	"github.com/Nomad06/brain-defender/internal/guard/common/utils"
	"github.com/Nomad06/brain-defender/internal/guard/domain"
	"github.com/Nomad06/brain-defender/internal/guard/repos/store"
)

// TargetVersion is the schema version this build expects.
const TargetVersion = 3

// DefaultLockTTL bounds how long a holder may keep the migration lock before
// other contexts treat it as crashed.
const DefaultLockTTL = 2 * time.Minute

// Runner executes pending schema migrations against a store.
type Runner struct {
	store   *store.Store
	clock   clock.Clock
	logger  log.Logger
	holder  string
	lockTTL time.Duration
}

// Options configures a Runner.
type Options struct {
	Store   *store.Store
	Clock   clock.Clock
	Logger  log.Logger
	Holder  string        // lock holder identity; defaults to hostname/pid
	LockTTL time.Duration // defaults to DefaultLockTTL
}

// New constructs a Runner.
func New(opts Options) *Runner {
	holder := opts.Holder
	if holder == "" {
		name, _ := os.Hostname()
		holder = fmt.Sprintf("%s/%d", name, os.Getpid())
	}
	ttl := opts.LockTTL
	if ttl <= 0 {
		ttl = DefaultLockTTL
	}
	return &Runner{
		store:   opts.Store,
		clock:   opts.Clock,
		logger:  opts.Logger,
		holder:  holder,
		lockTTL: ttl,
	}
}

// step is one versioned schema upgrade. Steps are applied in order and each
// must be idempotent against its own outcome.
type step struct {
	version int
	name    string
	apply   func(r *Runner) error
}

var steps = []step{
	{1, "import legacy blocklist", (*Runner).importLegacyBlocklist},
	{2, "normalize and merge hosts", (*Runner).normalizeHosts},
	{3, "default conditional rules", (*Runner).defaultRuleLists},
}

// Run acquires the migration lock, applies every step above the current
// version up to TargetVersion, writes the new version, and releases the lock.
// A caller that loses the lock race gets domain.ErrAlreadyRunning rather than
// blocking. A database already at or past TargetVersion is a no-op.
func (r *Runner) Run() error {
	now := r.clock.Now()
	acquired, err := r.store.AcquireMigrationLock(r.holder, now, r.lockTTL)
	if err != nil {
		return fmt.Errorf("acquire migration lock: %w", err)
	}
	if !acquired {
		r.logger.Info(map[string]any{"holder": r.holder}, "Migration lock held elsewhere, deferring")
		return domain.ErrAlreadyRunning
	}
	defer func() {
		if err := r.store.ReleaseMigrationLock(r.holder); err != nil {
			r.logger.Warn(map[string]any{"error": err}, "Failed to release migration lock")
		}
	}()

	current, err := r.store.SchemaVersion()
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if current >= TargetVersion {
		r.logger.Debug(map[string]any{"version": current}, "Schema already current")
		return nil
	}

	for _, st := range steps {
		if st.version <= current || st.version > TargetVersion {
			continue
		}
		r.logger.Info(map[string]any{"version": st.version, "step": st.name}, "Applying migration step")
		if err := st.apply(r); err != nil {
			wrapped := fmt.Errorf("migration step %d (%s): %w", st.version, st.name, err)
			if perr := r.store.SetLastRebuildError(domain.RebuildError{
				At:      r.clock.Now(),
				Stage:   "migration",
				Message: wrapped.Error(),
			}); perr != nil {
				r.logger.Warn(map[string]any{"error": perr}, "Failed to persist migration error")
			}
			return wrapped
		}
		if err := r.store.SetSchemaVersion(st.version); err != nil {
			return fmt.Errorf("write schema version %d: %w", st.version, err)
		}
	}
	r.logger.Info(map[string]any{"version": TargetVersion}, "Schema migration complete")
	return nil
}

// importLegacyBlocklist (v1) converts the plain string-array blocklist into
// site records. Entries that cannot be normalized are skipped and reported.
func (r *Runner) importLegacyBlocklist() error {
	hosts, found, err := r.store.LegacyBlocklist()
	if err != nil {
		return err
	}
	if !found {
		return nil
	}
	now := r.clock.Now()
	var sites []domain.Site
	seen := map[string]bool{}
	for _, raw := range hosts {
		host, err := utils.NormalizeHost(raw)
		if err != nil {
			r.logger.Warn(map[string]any{"entry": raw, "error": err}, "Skipping unparseable legacy entry")
			continue
		}
		if seen[host] {
			continue
		}
		seen[host] = true
		site, err := domain.NewSite(host, "", now)
		if err != nil {
			r.logger.Warn(map[string]any{"host": host, "error": err}, "Skipping invalid legacy entry")
			continue
		}
		sites = append(sites, site)
	}
	if len(sites) > 0 {
		if err := r.store.PutSites(sites); err != nil {
			return err
		}
	}
	return r.store.DeleteLegacyBlocklist()
}

// normalizeHosts (v2) sweeps stored records into canonical host form and
// merges duplicates, keeping the earliest AddedAt.
func (r *Runner) normalizeHosts() error {
	sites, err := r.store.ListSites()
	if err != nil {
		return err
	}
	merged := map[string]domain.Site{}
	changed := map[string]bool{}
	var stale []string
	for _, site := range sites {
		host, err := utils.NormalizeHost(site.Host)
		if err != nil {
			r.logger.Warn(map[string]any{"host": site.Host, "error": err}, "Dropping unnormalizable site record")
			stale = append(stale, site.Host)
			continue
		}
		if host != site.Host {
			stale = append(stale, site.Host)
			site.Host = host
			changed[host] = true
		}
		if prev, ok := merged[host]; ok {
			if prev.AddedAt.Before(site.AddedAt) {
				site = prev
			}
			changed[host] = true
		}
		merged[host] = site
	}
	hosts := make([]string, 0, len(changed))
	for h := range changed {
		hosts = append(hosts, h)
	}
	sort.Strings(hosts)
	now := r.clock.Now()
	normalized := make([]domain.Site, 0, len(hosts))
	for _, h := range hosts {
		site := merged[h]
		// Rewritten records must pass validation; the v3 step backfills
		// everything that stays untouched here.
		if site.AddedAt.IsZero() {
			site.AddedAt = now
		}
		if site.ConditionalRules == nil {
			site.ConditionalRules = []domain.ConditionalRule{}
		}
		normalized = append(normalized, site)
	}
	for _, h := range stale {
		if err := r.store.DeleteSite(h); err != nil {
			return err
		}
	}
	if len(normalized) > 0 {
		return r.store.PutSites(normalized)
	}
	return nil
}

// defaultRuleLists (v3) upgrades records to the validated object schema:
// nil rule lists become empty lists and a missing AddedAt is backfilled.
func (r *Runner) defaultRuleLists() error {
	sites, err := r.store.ListSites()
	if err != nil {
		return err
	}
	now := r.clock.Now()
	var upgraded []domain.Site
	for _, site := range sites {
		changed := false
		if site.ConditionalRules == nil {
			site.ConditionalRules = []domain.ConditionalRule{}
			changed = true
		}
		if site.AddedAt.IsZero() {
			site.AddedAt = now
			changed = true
		}
		if changed {
			upgraded = append(upgraded, site)
		}
	}
	if len(upgraded) > 0 {
		return r.store.PutSites(upgraded)
	}
	return nil
}
