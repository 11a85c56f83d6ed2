package store

import (
	"encoding/json"
	"fmt"
	"time"

	bbolt "go.etcd.io/bbolt"

	"github.com/Nomad06/brain-defender/internal/guard/domain"
)

// GetStats returns the stats record for host. An absent record yields a zero
// value, not an error.
func (s *Store) GetStats(host string) (domain.SiteStats, error) {
	stats := domain.SiteStats{Host: host}
	err := s.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(bucketStats).Get([]byte(host))
		if v == nil {
			return nil
		}
		return json.Unmarshal(v, &stats)
	})
	if err != nil {
		return domain.SiteStats{}, fmt.Errorf("decode stats %q: %w", host, err)
	}
	return stats, nil
}

// RecordVisit increments today's visit counter for host in one transaction
// and returns the updated record. Stats writes are append-only and do not
// fire the change callback; the caller decides whether a rebuild is needed.
func (s *Store) RecordVisit(host string, now time.Time) (domain.SiteStats, error) {
	return s.mutateStats(host, func(st *domain.SiteStats) {
		st.RecordVisit(now)
	})
}

// AddTime adds spent minutes to today's counter for host.
func (s *Store) AddTime(host string, now time.Time, minutes int) (domain.SiteStats, error) {
	return s.mutateStats(host, func(st *domain.SiteStats) {
		st.AddMinutes(now, minutes)
	})
}

func (s *Store) mutateStats(host string, mutate func(*domain.SiteStats)) (domain.SiteStats, error) {
	stats := domain.SiteStats{Host: host}
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketStats)
		if v := b.Get([]byte(host)); v != nil {
			if err := json.Unmarshal(v, &stats); err != nil {
				return fmt.Errorf("decode stats %q: %w", host, err)
			}
		}
		mutate(&stats)
		v, err := json.Marshal(stats)
		if err != nil {
			return err
		}
		return b.Put([]byte(host), v)
	})
	if err != nil {
		return domain.SiteStats{}, err
	}
	return stats, nil
}
