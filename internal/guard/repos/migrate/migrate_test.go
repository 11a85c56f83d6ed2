package migrate

import (
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	bbolt "go.etcd.io/bbolt"

	"github.com/Nomad06/brain-defender/internal/guard/common/clock"
	"github.com/Nomad06/brain-defender/internal/guard/common/log"
	"github.com/Nomad06/brain-defender/internal/guard/domain"
	"github.com/Nomad06/brain-defender/internal/guard/repos/store"
)

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "guard.db"), 64*1024)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newTestRunner(s *store.Store, holder string, now time.Time) *Runner {
	return New(Options{
		Store:  s,
		Clock:  &clock.MockClock{CurrentTime: now},
		Logger: log.NewNoopLogger(),
		Holder: holder,
	})
}

// seedRawSite writes a site record straight into the sites bucket, bypassing
// validation, the way a pre-upgrade build would have left it.
func seedRawSite(t *testing.T, s *store.Store, host string, site map[string]any) {
	t.Helper()
	v, err := json.Marshal(site)
	require.NoError(t, err)
	err = s.DB().Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte("sites")).Put([]byte(host), v)
	})
	require.NoError(t, err)
}

func TestRun_LegacyBlocklistUpgrade(t *testing.T) {
	s := openTestStore(t)
	now := time.Date(2026, 8, 3, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.PutLegacyBlocklist([]string{
		"Example.com",
		"www.news.example",
		"example.com", // duplicate after normalization
		"bad host!",   // unparseable, skipped
	}))

	require.NoError(t, newTestRunner(s, "test", now).Run())

	v, err := s.SchemaVersion()
	require.NoError(t, err)
	assert.Equal(t, TargetVersion, v)

	sites, err := s.ListSites()
	require.NoError(t, err)
	require.Len(t, sites, 2)
	assert.Equal(t, "example.com", sites[0].Host)
	assert.Equal(t, "news.example", sites[1].Host)
	for _, site := range sites {
		assert.NotNil(t, site.ConditionalRules)
		assert.False(t, site.AddedAt.IsZero())
	}

	_, found, err := s.LegacyBlocklist()
	require.NoError(t, err)
	assert.False(t, found, "legacy array must be removed after import")
}

func TestRun_NormalizesAndMergesStoredRecords(t *testing.T) {
	s := openTestStore(t)
	now := time.Date(2026, 8, 3, 12, 0, 0, 0, time.UTC)

	earlier := now.Add(-48 * time.Hour)
	seedRawSite(t, s, "WWW.Example.com", map[string]any{
		"host":     "WWW.Example.com",
		"added_at": earlier.Format(time.RFC3339),
	})
	seedRawSite(t, s, "example.com", map[string]any{
		"host":     "example.com",
		"added_at": now.Format(time.RFC3339),
	})
	seedRawSite(t, s, "other.example", map[string]any{
		"host": "other.example",
	})

	require.NoError(t, newTestRunner(s, "test", now).Run())

	sites, err := s.ListSites()
	require.NoError(t, err)
	require.Len(t, sites, 2)

	assert.Equal(t, "example.com", sites[0].Host)
	assert.True(t, sites[0].AddedAt.Equal(earlier), "merge keeps the earliest AddedAt")

	// The record without an AddedAt gets one backfilled at v3.
	assert.Equal(t, "other.example", sites[1].Host)
	assert.True(t, sites[1].AddedAt.Equal(now))
	assert.NotNil(t, sites[1].ConditionalRules)
}

func TestRun_Idempotent(t *testing.T) {
	s := openTestStore(t)
	now := time.Date(2026, 8, 3, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.PutLegacyBlocklist([]string{"example.com"}))
	require.NoError(t, newTestRunner(s, "test", now).Run())

	first, err := s.ListSites()
	require.NoError(t, err)

	require.NoError(t, newTestRunner(s, "test", now.Add(time.Hour)).Run())
	second, err := s.ListSites()
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestRun_LockContention(t *testing.T) {
	s := openTestStore(t)
	now := time.Date(2026, 8, 3, 12, 0, 0, 0, time.UTC)

	ok, err := s.AcquireMigrationLock("other-process", now, DefaultLockTTL)
	require.NoError(t, err)
	require.True(t, ok)

	err = newTestRunner(s, "this-process", now.Add(time.Second)).Run()
	assert.ErrorIs(t, err, domain.ErrAlreadyRunning)
}

func TestRun_StaleLockIsReclaimed(t *testing.T) {
	s := openTestStore(t)
	now := time.Date(2026, 8, 3, 12, 0, 0, 0, time.UTC)

	ok, err := s.AcquireMigrationLock("crashed-process", now.Add(-time.Hour), DefaultLockTTL)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, newTestRunner(s, "this-process", now).Run())

	v, err := s.SchemaVersion()
	require.NoError(t, err)
	assert.Equal(t, TargetVersion, v)
}

func TestRun_ReleasesLock(t *testing.T) {
	s := openTestStore(t)
	now := time.Date(2026, 8, 3, 12, 0, 0, 0, time.UTC)

	require.NoError(t, newTestRunner(s, "first", now).Run())

	// A second holder can acquire immediately, no TTL wait.
	ok, err := s.AcquireMigrationLock("second", now.Add(time.Second), DefaultLockTTL)
	require.NoError(t, err)
	assert.True(t, ok)
}
