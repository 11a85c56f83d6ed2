package store

import (
	"encoding/json"
	"fmt"
	"sort"

	bbolt "go.etcd.io/bbolt"

	"github.com/Nomad06/brain-defender/internal/guard/domain"
)

// ListSites returns every stored site ordered by host.
func (s *Store) ListSites() ([]domain.Site, error) {
	var sites []domain.Site
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketSites).ForEach(func(k, v []byte) error {
			var site domain.Site
			if err := json.Unmarshal(v, &site); err != nil {
				return fmt.Errorf("decode site %q: %w", k, err)
			}
			sites = append(sites, site)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(sites, func(i, j int) bool { return sites[i].Host < sites[j].Host })
	return sites, nil
}

// GetSite returns the site stored under host, or domain.ErrNotFound.
func (s *Store) GetSite(host string) (domain.Site, error) {
	var site domain.Site
	err := s.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(bucketSites).Get([]byte(host))
		if v == nil {
			return fmt.Errorf("site %q: %w", host, domain.ErrNotFound)
		}
		return json.Unmarshal(v, &site)
	})
	if err != nil {
		return domain.Site{}, err
	}
	return site, nil
}

// PutSite validates and upserts one site, enforcing the list byte ceiling.
func (s *Store) PutSite(site domain.Site) error {
	return s.PutSites([]domain.Site{site})
}

// PutSites validates and upserts sites in one transaction. If the resulting
// serialized list would exceed the configured ceiling, the whole write is
// rejected with domain.ErrOversizedList and nothing is truncated.
func (s *Store) PutSites(sites []domain.Site) error {
	encoded := make(map[string][]byte, len(sites))
	for _, site := range sites {
		if err := site.Validate(); err != nil {
			return err
		}
		v, err := json.Marshal(site)
		if err != nil {
			return fmt.Errorf("encode site %q: %w", site.Host, err)
		}
		encoded[site.Host] = v
	}
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketSites)
		total := 0
		// Size of entries not being replaced, plus the incoming ones.
		if err := b.ForEach(func(k, v []byte) error {
			if _, replaced := encoded[string(k)]; !replaced {
				total += len(k) + len(v)
			}
			return nil
		}); err != nil {
			return err
		}
		for host, v := range encoded {
			total += len(host) + len(v)
		}
		if total > s.maxListBytes {
			return fmt.Errorf("%d bytes over %d: %w", total, s.maxListBytes, domain.ErrOversizedList)
		}
		for host, v := range encoded {
			if err := b.Put([]byte(host), v); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.notifyChange()
	return nil
}

// DeleteSite removes a site and its stats record. Deleting an absent host is
// a no-op.
func (s *Store) DeleteSite(host string) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.Bucket(bucketSites).Delete([]byte(host)); err != nil {
			return err
		}
		return tx.Bucket(bucketStats).Delete([]byte(host))
	})
	if err != nil {
		return err
	}
	s.notifyChange()
	return nil
}
