package engine

import (
	"sync"
	"time"

	"github.com/Nomad06/brain-defender/internal/guard/domain"
)

// fakeSites serves a fixed site list and can block inside ListSites so tests
// can hold a rebuild in flight deterministically.
type fakeSites struct {
	mu    sync.Mutex
	sites []domain.Site
	calls int

	// gate, when set, is received from on every ListSites call before
	// returning, letting the test decide when a run proceeds.
	gate chan struct{}

	err error
}

func (f *fakeSites) ListSites() ([]domain.Site, error) {
	f.mu.Lock()
	f.calls++
	gate := f.gate
	sites := append([]domain.Site(nil), f.sites...)
	err := f.err
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	return sites, err
}

func (f *fakeSites) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeSites) setSites(sites []domain.Site) {
	f.mu.Lock()
	f.sites = sites
	f.mu.Unlock()
}

// fakeStats is an in-memory StatsRepo.
type fakeStats struct {
	mu    sync.Mutex
	stats map[string]domain.SiteStats
}

func newFakeStats() *fakeStats {
	return &fakeStats{stats: map[string]domain.SiteStats{}}
}

func (f *fakeStats) GetStats(host string) (domain.SiteStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	st, ok := f.stats[host]
	if !ok {
		return domain.SiteStats{Host: host}, nil
	}
	return st, nil
}

func (f *fakeStats) RecordVisit(host string, now time.Time) (domain.SiteStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	st, ok := f.stats[host]
	if !ok {
		st = domain.SiteStats{Host: host}
	}
	st.RecordVisit(now)
	f.stats[host] = st
	return st, nil
}

func (f *fakeStats) AddTime(host string, now time.Time, minutes int) (domain.SiteStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	st, ok := f.stats[host]
	if !ok {
		st = domain.SiteStats{Host: host}
	}
	st.AddMinutes(now, minutes)
	f.stats[host] = st
	return st, nil
}

// fakeOverlay is an in-memory OverlayRepo.
type fakeOverlay struct {
	mu        sync.Mutex
	whitelist []domain.TempWhitelistEntry
	session   *domain.FocusSession
}

func (f *fakeOverlay) ListWhitelist() ([]domain.TempWhitelistEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.TempWhitelistEntry(nil), f.whitelist...), nil
}

func (f *fakeOverlay) GetSession() (*domain.FocusSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.session == nil {
		return nil, nil
	}
	s := *f.session
	return &s, nil
}

func (f *fakeOverlay) PutSession(session domain.FocusSession) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.session = &session
	return nil
}

func (f *fakeOverlay) ClearSession() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.session = nil
	return nil
}

// fakeDiag is an in-memory DiagRepo.
type fakeDiag struct {
	mu   sync.Mutex
	last *domain.RebuildError
}

func (f *fakeDiag) LastRebuildError() (*domain.RebuildError, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.last == nil {
		return nil, nil
	}
	rec := *f.last
	return &rec, nil
}

func (f *fakeDiag) SetLastRebuildError(rec domain.RebuildError) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.last = &rec
	return nil
}

func (f *fakeDiag) ClearLastRebuildError() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.last = nil
	return nil
}

// fakeNotifier records notifications without rate limiting.
type fakeNotifier struct {
	mu    sync.Mutex
	calls []string
}

func (f *fakeNotifier) NotifyBlocked(tabID, host string, now time.Time) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, tabID+":"+host)
	return true
}
