package domain

import (
	"fmt"
	"time"
)

// ProjectedRule is the declarative match/redirect record derived from one
// blocked host. IDs are unique among installed rules and advance from a
// watermark so a replaced batch never collides with its predecessor.
type ProjectedRule struct {
	ID             uint64 `json:"id"`
	MatchPattern   string `json:"match_pattern"`
	RedirectTarget string `json:"redirect_target"`
}

// Validate checks the rule for required fields.
func (r ProjectedRule) Validate() error {
	if r.ID == 0 {
		return fmt.Errorf("projected rule id must not be zero")
	}
	if r.MatchPattern == "" {
		return fmt.Errorf("projected rule match pattern must not be empty")
	}
	if r.RedirectTarget == "" {
		return fmt.Errorf("projected rule redirect target must not be empty")
	}
	return nil
}

// RebuildError is the persisted diagnostics record of the most recent failed
// rebuild or migration.
type RebuildError struct {
	At      time.Time `json:"at"`
	Stage   string    `json:"stage"`
	Message string    `json:"message"`
}
