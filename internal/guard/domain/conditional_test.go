package domain

import (
	"testing"
	"time"
)

func statsWith(now time.Time, visits, minutes int) SiteStats {
	return SiteStats{
		Host:          "example.com",
		VisitsByDate:  map[string]int{DateKey(now): visits},
		MinutesByDate: map[string]int{DateKey(now): minutes},
	}
}

func TestEvaluateRules_EmptyListBlocks(t *testing.T) {
	now := at(t, time.Monday, "12:00")
	if !EvaluateRules(nil, SiteStats{}, now) {
		t.Error("nil rule list must block (fail-safe)")
	}
	if !EvaluateRules([]ConditionalRule{}, SiteStats{}, now) {
		t.Error("empty rule list must block (fail-safe)")
	}
}

func TestEvaluateRules_AllDisabledDoesNotBlock(t *testing.T) {
	now := at(t, time.Monday, "12:00")
	rules := []ConditionalRule{
		{Kind: RuleVisitsPerDay, Enabled: false, MaxVisits: 0},
		{Kind: RuleTimeAfter, Enabled: false, After: "00:00"},
	}
	// Asymmetric with the empty-list case on purpose.
	if EvaluateRules(rules, statsWith(now, 100, 100), now) {
		t.Error("a list with only disabled rules must not block")
	}
}

func TestEvaluateRules_FirstEnabledRuleWins(t *testing.T) {
	now := at(t, time.Monday, "12:00")
	stats := statsWith(now, 10, 0)

	blockFirst := []ConditionalRule{
		{Kind: RuleVisitsPerDay, Enabled: true, MaxVisits: 5},   // verdict: block
		{Kind: RuleTimeLimit, Enabled: true, MaxMinutes: 1000},  // verdict: allow
	}
	allowFirst := []ConditionalRule{
		{Kind: RuleTimeLimit, Enabled: true, MaxMinutes: 1000},  // verdict: allow
		{Kind: RuleVisitsPerDay, Enabled: true, MaxVisits: 5},   // verdict: block
	}
	if !EvaluateRules(blockFirst, stats, now) {
		t.Error("first enabled rule (block) must win")
	}
	if EvaluateRules(allowFirst, stats, now) {
		t.Error("first enabled rule (allow) must win; later rules are never consulted")
	}
}

func TestEvaluateRules_DisabledRulesAreSkipped(t *testing.T) {
	now := at(t, time.Monday, "12:00")
	rules := []ConditionalRule{
		{Kind: RuleTimeLimit, Enabled: false, MaxMinutes: 0}, // would block, but disabled
		{Kind: RuleVisitsPerDay, Enabled: true, MaxVisits: 5},
	}
	if EvaluateRules(rules, statsWith(now, 4, 0), now) {
		t.Error("disabled rule must be skipped; enabled VisitsPerDay under max must allow")
	}
}

func TestEvaluateRules_VisitsPerDay(t *testing.T) {
	now := at(t, time.Monday, "12:00")
	rules := []ConditionalRule{{Kind: RuleVisitsPerDay, Enabled: true, MaxVisits: 5}}

	if EvaluateRules(rules, statsWith(now, 4, 0), now) {
		t.Error("4 of 5 visits must not block")
	}
	if !EvaluateRules(rules, statsWith(now, 5, 0), now) {
		t.Error("5th visit must block")
	}
	// Yesterday's visits never count against today.
	yesterday := now.AddDate(0, 0, -1)
	stale := SiteStats{VisitsByDate: map[string]int{DateKey(yesterday): 50}}
	if EvaluateRules(rules, stale, now) {
		t.Error("visits on another date must not block today")
	}
}

func TestEvaluateRules_TimeAfter(t *testing.T) {
	rules := []ConditionalRule{{Kind: RuleTimeAfter, Enabled: true, After: "18:00"}}
	if EvaluateRules(rules, SiteStats{}, at(t, time.Monday, "17:59")) {
		t.Error("before the cutoff must not block")
	}
	if !EvaluateRules(rules, SiteStats{}, at(t, time.Monday, "18:00")) {
		t.Error("at the cutoff must block")
	}
	// Malformed cutoff parses to 0: blocks all day.
	broken := []ConditionalRule{{Kind: RuleTimeAfter, Enabled: true, After: "junk"}}
	if !EvaluateRules(broken, SiteStats{}, at(t, time.Monday, "00:00")) {
		t.Error("malformed cutoff parses to midnight")
	}
}

func TestEvaluateRules_DaysOfWeek(t *testing.T) {
	rules := []ConditionalRule{{
		Kind: RuleDaysOfWeek, Enabled: true,
		Days: []time.Weekday{time.Saturday, time.Sunday},
	}}
	if !EvaluateRules(rules, SiteStats{}, at(t, time.Saturday, "12:00")) {
		t.Error("listed day must block")
	}
	if EvaluateRules(rules, SiteStats{}, at(t, time.Wednesday, "12:00")) {
		t.Error("unlisted day must not block")
	}
}

func TestEvaluateRules_TimeLimit(t *testing.T) {
	now := at(t, time.Monday, "12:00")
	rules := []ConditionalRule{{Kind: RuleTimeLimit, Enabled: true, MaxMinutes: 30}}
	if EvaluateRules(rules, statsWith(now, 0, 29), now) {
		t.Error("under the limit must not block")
	}
	if !EvaluateRules(rules, statsWith(now, 0, 30), now) {
		t.Error("at the limit must block")
	}
}

func TestParseRuleKind(t *testing.T) {
	cases := []struct {
		in      string
		want    RuleKind
		wantErr bool
	}{
		{"visits_per_day", RuleVisitsPerDay, false},
		{"TIME_AFTER", RuleTimeAfter, false},
		{" days_of_week ", RuleDaysOfWeek, false},
		{"time_limit", RuleTimeLimit, false},
		{"", 0, true},
		{"visits", 0, true},
	}
	for _, tc := range cases {
		got, err := ParseRuleKind(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("ParseRuleKind(%q) expected error", tc.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseRuleKind(%q) unexpected error: %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseRuleKind(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}
