package store

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	bbolt "go.etcd.io/bbolt"

	"github.com/Nomad06/brain-defender/internal/guard/domain"
)

var (
	keySchemaVersion   = []byte("schema_version")
	keyMigrationLock   = []byte("migration_lock")
	keyLegacyBlocklist = []byte("legacy_blocklist")
	keyLastError       = []byte("last_rebuild_error")
)

// SchemaVersion returns the persisted site-list schema version; zero when the
// database has never been migrated.
func (s *Store) SchemaVersion() (int, error) {
	var version int
	err := s.db.View(func(tx *bbolt.Tx) error {
		if v := tx.Bucket(bucketMeta).Get(keySchemaVersion); len(v) == 8 {
			version = int(binary.BigEndian.Uint64(v))
		}
		return nil
	})
	return version, err
}

// SetSchemaVersion persists the schema version.
func (s *Store) SetSchemaVersion(version int) error {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(version))
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketMeta).Put(keySchemaVersion, buf)
	})
}

// lockRecord is the storage-backed migration mutex. A record whose ExpiresAt
// has passed is treated as released, tolerating a holder that crashed without
// cleanup.
type lockRecord struct {
	Holder     string    `json:"holder"`
	AcquiredAt time.Time `json:"acquired_at"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// AcquireMigrationLock attempts to take the migration lock for holder with
// the given TTL. It returns false without blocking when a live lock is held
// by someone else.
func (s *Store) AcquireMigrationLock(holder string, now time.Time, ttl time.Duration) (bool, error) {
	acquired := false
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketMeta)
		if v := b.Get(keyMigrationLock); v != nil {
			var rec lockRecord
			if err := json.Unmarshal(v, &rec); err == nil {
				if rec.ExpiresAt.After(now) && rec.Holder != holder {
					return nil // live lock, someone else holds it
				}
			}
			// stale or our own: fall through and overwrite
		}
		rec := lockRecord{Holder: holder, AcquiredAt: now, ExpiresAt: now.Add(ttl)}
		v, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		if err := b.Put(keyMigrationLock, v); err != nil {
			return err
		}
		acquired = true
		return nil
	})
	return acquired, err
}

// ReleaseMigrationLock drops the lock if holder still owns it.
func (s *Store) ReleaseMigrationLock(holder string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketMeta)
		v := b.Get(keyMigrationLock)
		if v == nil {
			return nil
		}
		var rec lockRecord
		if err := json.Unmarshal(v, &rec); err != nil || rec.Holder == holder {
			return b.Delete(keyMigrationLock)
		}
		return nil
	})
}

// LegacyBlocklist returns the pre-schema (v0) plain string-array blocklist
// when present.
func (s *Store) LegacyBlocklist() ([]string, bool, error) {
	var hosts []string
	found := false
	err := s.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(bucketMeta).Get(keyLegacyBlocklist)
		if v == nil {
			return nil
		}
		found = true
		return json.Unmarshal(v, &hosts)
	})
	if err != nil {
		return nil, false, fmt.Errorf("decode legacy blocklist: %w", err)
	}
	return hosts, found, nil
}

// PutLegacyBlocklist stores a v0 plain string-array blocklist. Only migration
// tests and imports of pre-schema data use this.
func (s *Store) PutLegacyBlocklist(hosts []string) error {
	v, err := json.Marshal(hosts)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketMeta).Put(keyLegacyBlocklist, v)
	})
}

// DeleteLegacyBlocklist removes the v0 record once migrated.
func (s *Store) DeleteLegacyBlocklist() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketMeta).Delete(keyLegacyBlocklist)
	})
}

// LastRebuildError returns the persisted diagnostics record of the most
// recent failed rebuild, or nil when the last rebuild succeeded.
func (s *Store) LastRebuildError() (*domain.RebuildError, error) {
	var rec *domain.RebuildError
	err := s.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(bucketState).Get(keyLastError)
		if v == nil {
			return nil
		}
		rec = &domain.RebuildError{}
		return json.Unmarshal(v, rec)
	})
	if err != nil {
		return nil, fmt.Errorf("decode last rebuild error: %w", err)
	}
	return rec, err
}

// SetLastRebuildError persists the diagnostics record. Writes to state never
// fire the change callback.
func (s *Store) SetLastRebuildError(rec domain.RebuildError) error {
	v, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketState).Put(keyLastError, v)
	})
}

// ClearLastRebuildError removes the diagnostics record after a clean rebuild.
func (s *Store) ClearLastRebuildError() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketState).Delete(keyLastError)
	})
}
