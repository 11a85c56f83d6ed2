package domain

import (
	"fmt"
	"strings"
	"time"
)

// RuleKind identifies a conditional blocking rule variant.
type RuleKind uint8

const (
	// RuleVisitsPerDay blocks once today's visit count reaches a maximum.
	RuleVisitsPerDay RuleKind = iota
	// RuleTimeAfter blocks from a clock time until midnight.
	RuleTimeAfter
	// RuleDaysOfWeek blocks on the listed weekdays.
	RuleDaysOfWeek
	// RuleTimeLimit blocks once today's time spent reaches a maximum.
	RuleTimeLimit
)

// String returns a stable string representation of the rule kind.
func (k RuleKind) String() string {
	switch k {
	case RuleVisitsPerDay:
		return "visits_per_day"
	case RuleTimeAfter:
		return "time_after"
	case RuleDaysOfWeek:
		return "days_of_week"
	case RuleTimeLimit:
		return "time_limit"
	default:
		return fmt.Sprintf("RuleKind(%d)", k)
	}
}

// ParseRuleKind converts a string into a RuleKind (case-insensitive).
func ParseRuleKind(s string) (RuleKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "visits_per_day":
		return RuleVisitsPerDay, nil
	case "time_after":
		return RuleTimeAfter, nil
	case "days_of_week":
		return RuleDaysOfWeek, nil
	case "time_limit":
		return RuleTimeLimit, nil
	default:
		return 0, fmt.Errorf("unsupported RuleKind: %q", s)
	}
}

// ConditionalRule is one entry in a site's ordered rule list. Only the fields
// relevant to Kind are consulted.
type ConditionalRule struct {
	Kind       RuleKind       `json:"kind"`
	Enabled    bool           `json:"enabled"`
	MaxVisits  int            `json:"max_visits,omitempty"`
	After      string         `json:"after,omitempty"` // "HH:MM"
	Days       []time.Weekday `json:"days,omitempty"`
	MaxMinutes int            `json:"max_minutes,omitempty"`
}

// Validate checks the rule for supported values.
func (r ConditionalRule) Validate() error {
	switch r.Kind {
	case RuleVisitsPerDay:
		if r.MaxVisits < 0 {
			return fmt.Errorf("max_visits must not be negative")
		}
	case RuleTimeLimit:
		if r.MaxMinutes < 0 {
			return fmt.Errorf("max_minutes must not be negative")
		}
	case RuleTimeAfter, RuleDaysOfWeek:
		// no bounds beyond the kind itself
	default:
		return fmt.Errorf("unsupported RuleKind: %d", r.Kind)
	}
	return nil
}

// verdict computes the blocking decision for a single rule.
func (r ConditionalRule) verdict(stats SiteStats, now time.Time) bool {
	switch r.Kind {
	case RuleVisitsPerDay:
		return stats.VisitsOn(DateKey(now)) >= r.MaxVisits
	case RuleTimeAfter:
		return MinutesOfDay(now) >= ParseHHMM(r.After)
	case RuleDaysOfWeek:
		return containsDay(r.Days, now.Weekday())
	case RuleTimeLimit:
		return stats.MinutesOn(DateKey(now)) >= r.MaxMinutes
	default:
		return false
	}
}

// EvaluateRules computes the conditional blocking verdict for a site.
//
// An empty rule list blocks (fail-safe, mirroring the nil-schedule case).
// Otherwise rules are walked in stored order, disabled rules are skipped, and
// the first enabled rule's verdict is returned immediately; later rules are
// never consulted. If every rule is disabled the verdict is false, asymmetric
// with the empty-list case on purpose.
func EvaluateRules(rules []ConditionalRule, stats SiteStats, now time.Time) bool {
	if len(rules) == 0 {
		return true
	}
	for _, r := range rules {
		if !r.Enabled {
			continue
		}
		return r.verdict(stats, now)
	}
	return false
}
