// Package filterengine provides implementations of the host platform's
// declarative filter-rule engine contract: install a batch of match/redirect
// rules, remove by ID, list what is installed, all under a hard maximum rule
// count and a unique-ID requirement among installed rules.
package filterengine

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	bbolt "go.etcd.io/bbolt"

	"github.com/Nomad06/brain-defender/internal/guard/domain"
)

var bucketRules = []byte("rules")

// BoltEngine keeps the installed-rules table in a bbolt bucket, typically
// sharing the database file with the guard store.
type BoltEngine struct {
	db       *bbolt.DB
	maxRules int
}

// NewBolt ensures the rules bucket exists and returns the engine.
func NewBolt(db *bbolt.DB, maxRules int) (*BoltEngine, error) {
	if maxRules < 1 {
		return nil, fmt.Errorf("maxRules must be positive, got %d", maxRules)
	}
	if err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketRules)
		return err
	}); err != nil {
		return nil, err
	}
	return &BoltEngine{db: db, maxRules: maxRules}, nil
}

// MaxRules returns the hard maximum of concurrently installed rules.
func (e *BoltEngine) MaxRules() int { return e.maxRules }

// InstallBatch installs rules atomically. It fails without installing
// anything when a rule is invalid, an ID is already installed, or the batch
// would push the installed count past the maximum.
func (e *BoltEngine) InstallBatch(rules []domain.ProjectedRule) error {
	return e.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketRules)
		if b.Stats().KeyN+len(rules) > e.maxRules {
			return fmt.Errorf("%d installed + %d new over %d: %w",
				b.Stats().KeyN, len(rules), e.maxRules, domain.ErrCapacity)
		}
		for _, rule := range rules {
			if err := rule.Validate(); err != nil {
				return err
			}
			key := ruleKey(rule.ID)
			if b.Get(key) != nil {
				return fmt.Errorf("rule id %d already installed", rule.ID)
			}
			v, err := json.Marshal(rule)
			if err != nil {
				return err
			}
			if err := b.Put(key, v); err != nil {
				return err
			}
		}
		return nil
	})
}

// RemoveByID uninstalls one rule. Removing an absent ID is a no-op.
func (e *BoltEngine) RemoveByID(id uint64) error {
	return e.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketRules).Delete(ruleKey(id))
	})
}

// ListInstalled returns every installed rule in ID order.
func (e *BoltEngine) ListInstalled() ([]domain.ProjectedRule, error) {
	var rules []domain.ProjectedRule
	err := e.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketRules).ForEach(func(k, v []byte) error {
			var rule domain.ProjectedRule
			if err := json.Unmarshal(v, &rule); err != nil {
				return fmt.Errorf("decode rule %d: %w", binary.BigEndian.Uint64(k), err)
			}
			rules = append(rules, rule)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return rules, nil
}

// ruleKey encodes an ID big-endian so bucket iteration yields ID order.
func ruleKey(id uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, id)
	return key
}
