package domain

import (
	"fmt"
	"strings"
	"time"
)

// Site is one entry of the declarative blocklist.
//
// Notes:
// - Host is expected to be canonical (lowercase, no "www." prefix, no
//   trailing dot); normalization is handled by callers before construction.
// - A nil Schedule blocks at every instant.
// - ConditionalRules are evaluated in stored order (first enabled rule wins).
type Site struct {
	Host             string            `json:"host"`
	AddedAt          time.Time         `json:"added_at"`
	Category         string            `json:"category,omitempty"`
	Schedule         *Schedule         `json:"schedule,omitempty"`
	ConditionalRules []ConditionalRule `json:"conditional_rules"`
}

// NewSite constructs a Site with an empty rule list and validates it.
func NewSite(host, category string, addedAt time.Time) (Site, error) {
	s := Site{
		Host:             strings.TrimSpace(host),
		AddedAt:          addedAt,
		Category:         strings.TrimSpace(category),
		ConditionalRules: []ConditionalRule{},
	}
	if err := s.Validate(); err != nil {
		return Site{}, err
	}
	return s, nil
}

// Validate checks the Site for required fields and canonical host form.
func (s Site) Validate() error {
	if s.Host == "" {
		return fmt.Errorf("site host must not be empty")
	}
	if s.Host != strings.ToLower(s.Host) {
		return fmt.Errorf("site host %q must be lowercase", s.Host)
	}
	if strings.HasPrefix(s.Host, "www.") {
		return fmt.Errorf("site host %q must not carry a www. prefix", s.Host)
	}
	if strings.HasSuffix(s.Host, ".") || strings.ContainsAny(s.Host, " /\\@:?#") {
		return fmt.Errorf("site host %q is not canonical", s.Host)
	}
	if s.AddedAt.IsZero() {
		return fmt.Errorf("site addedAt must be set")
	}
	for i, r := range s.ConditionalRules {
		if err := r.Validate(); err != nil {
			return fmt.Errorf("conditional rule %d: %w", i, err)
		}
	}
	return nil
}

// HasConditionalRules reports whether the site carries a non-empty rule list.
func (s Site) HasConditionalRules() bool {
	return len(s.ConditionalRules) > 0
}
