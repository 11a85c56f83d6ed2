package store

import (
	"encoding/json"
	"fmt"

	bbolt "go.etcd.io/bbolt"

	"github.com/Nomad06/brain-defender/internal/guard/domain"
)

var keySession = []byte("focus_session")

// ListWhitelist returns every stored temp-whitelist entry, expired ones
// included; expiry is the reader's concern.
func (s *Store) ListWhitelist() ([]domain.TempWhitelistEntry, error) {
	var entries []domain.TempWhitelistEntry
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketWhitelist).ForEach(func(k, v []byte) error {
			var e domain.TempWhitelistEntry
			if err := json.Unmarshal(v, &e); err != nil {
				return fmt.Errorf("decode whitelist entry %q: %w", k, err)
			}
			entries = append(entries, e)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// PutWhitelistEntry upserts one temp-whitelist entry keyed by host.
func (s *Store) PutWhitelistEntry(e domain.TempWhitelistEntry) error {
	if e.Host == "" {
		return fmt.Errorf("whitelist entry host must not be empty")
	}
	v, err := json.Marshal(e)
	if err != nil {
		return err
	}
	err = s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketWhitelist).Put([]byte(e.Host), v)
	})
	if err != nil {
		return err
	}
	s.notifyChange()
	return nil
}

// GetSession returns the persisted focus-session record, or nil when none is
// stored.
func (s *Store) GetSession() (*domain.FocusSession, error) {
	var session *domain.FocusSession
	err := s.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(bucketState).Get(keySession)
		if v == nil {
			return nil
		}
		session = &domain.FocusSession{}
		return json.Unmarshal(v, session)
	})
	if err != nil {
		return nil, fmt.Errorf("decode focus session: %w", err)
	}
	return session, nil
}

// PutSession persists the focus-session record. The persisted record is the
// source of truth the in-memory overlay is rebuilt from at boot.
func (s *Store) PutSession(session domain.FocusSession) error {
	v, err := json.Marshal(session)
	if err != nil {
		return err
	}
	err = s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketState).Put(keySession, v)
	})
	if err != nil {
		return err
	}
	s.notifyChange()
	return nil
}

// ClearSession removes the persisted focus-session record.
func (s *Store) ClearSession() error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketState).Delete(keySession)
	})
	if err != nil {
		return err
	}
	s.notifyChange()
	return nil
}
