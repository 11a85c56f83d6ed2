package filterengine

import (
	"fmt"
	"sort"
	"sync"

	"github.com/Nomad06/brain-defender/internal/guard/domain"
)

// MemoryEngine is an in-memory implementation of the filter-rule engine
// contract. It backs tests and dry-run mode, and exposes failure hooks so
// the apply fallback paths can be exercised deterministically.
type MemoryEngine struct {
	mu       sync.Mutex
	rules    map[uint64]domain.ProjectedRule
	maxRules int

	// FailBatches makes every multi-rule InstallBatch fail, forcing callers
	// onto their per-rule fallback.
	FailBatches bool
	// FailIDs makes single-rule installs of the listed IDs fail.
	FailIDs map[uint64]bool
}

// NewMemory returns an empty in-memory engine with the given rule cap.
func NewMemory(maxRules int) *MemoryEngine {
	return &MemoryEngine{
		rules:    map[uint64]domain.ProjectedRule{},
		maxRules: maxRules,
	}
}

// MaxRules returns the hard maximum of concurrently installed rules.
func (e *MemoryEngine) MaxRules() int { return e.maxRules }

// InstallBatch installs rules atomically under the same contract as the
// platform engine: duplicate IDs and capacity overruns fail the whole batch.
func (e *MemoryEngine) InstallBatch(rules []domain.ProjectedRule) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.FailBatches && len(rules) > 1 {
		return fmt.Errorf("batch install rejected")
	}
	if len(e.rules)+len(rules) > e.maxRules {
		return fmt.Errorf("%d installed + %d new over %d: %w",
			len(e.rules), len(rules), e.maxRules, domain.ErrCapacity)
	}
	for _, rule := range rules {
		if err := rule.Validate(); err != nil {
			return err
		}
		if _, exists := e.rules[rule.ID]; exists {
			return fmt.Errorf("rule id %d already installed", rule.ID)
		}
		if e.FailIDs[rule.ID] {
			return fmt.Errorf("install of rule %d rejected", rule.ID)
		}
	}
	for _, rule := range rules {
		e.rules[rule.ID] = rule
	}
	return nil
}

// RemoveByID uninstalls one rule. Removing an absent ID is a no-op.
func (e *MemoryEngine) RemoveByID(id uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.rules, id)
	return nil
}

// ListInstalled returns every installed rule in ID order.
func (e *MemoryEngine) ListInstalled() ([]domain.ProjectedRule, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	rules := make([]domain.ProjectedRule, 0, len(e.rules))
	for _, rule := range e.rules {
		rules = append(rules, rule)
	}
	sort.Slice(rules, func(i, j int) bool { return rules[i].ID < rules[j].ID })
	return rules, nil
}
