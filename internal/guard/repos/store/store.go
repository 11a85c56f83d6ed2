// Package store is the persistence collaborator for the guard engine: the
// site list, per-host stats, the temp whitelist, the focus-session record,
// and the meta bucket (schema version, migration lock, last rebuild error)
// all live in one bbolt database.
package store

import (
	"time"

	bbolt "go.etcd.io/bbolt"
)

var (
	bucketSites     = []byte("sites")
	bucketStats     = []byte("stats")
	bucketWhitelist = []byte("whitelist")
	bucketState     = []byte("state")
	bucketMeta      = []byte("meta")
)

// Store wraps a bbolt database holding all persisted guard state.
type Store struct {
	db           *bbolt.DB
	maxListBytes int
	onChange     func()
}

// Open opens (or creates) the database at path and ensures buckets exist.
// maxListBytes is the serialized-site-list ceiling enforced on writes.
func Open(path string, maxListBytes int) (*Store, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, err
	}
	if err := db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketSites, bucketStats, bucketWhitelist, bucketState, bucketMeta} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db, maxListBytes: maxListBytes}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// DB exposes the underlying database for collaborators sharing the file
// (the filter-engine gateway keeps its installed-rules bucket alongside).
func (s *Store) DB() *bbolt.DB { return s.db }

// SetOnChange registers a callback fired after every successful mutation of
// the site list, whitelist, or session record. Must be set before writes
// begin; meta/state writes never fire it, so the rebuild path cannot recurse.
func (s *Store) SetOnChange(fn func()) { s.onChange = fn }

func (s *Store) notifyChange() {
	if s.onChange != nil {
		s.onChange()
	}
}
