package domain

import "time"

// DateKey formats a time as the per-day bucket key used by SiteStats.
func DateKey(t time.Time) string {
	return t.Format("2006-01-02")
}

// SiteStats tracks per-host usage counters. It is mutated by visit and time
// recording and read-only to the rule evaluator.
type SiteStats struct {
	Host          string         `json:"host"`
	VisitsByDate  map[string]int `json:"visits_by_date,omitempty"`
	MinutesByDate map[string]int `json:"minutes_by_date,omitempty"`
}

// VisitsOn returns the visit count recorded for the given date key.
func (s SiteStats) VisitsOn(date string) int {
	return s.VisitsByDate[date]
}

// MinutesOn returns the minutes spent recorded for the given date key.
func (s SiteStats) MinutesOn(date string) int {
	return s.MinutesByDate[date]
}

// RecordVisit increments today's visit counter.
func (s *SiteStats) RecordVisit(now time.Time) {
	if s.VisitsByDate == nil {
		s.VisitsByDate = map[string]int{}
	}
	s.VisitsByDate[DateKey(now)]++
}

// AddMinutes adds spent minutes to today's counter.
func (s *SiteStats) AddMinutes(now time.Time, minutes int) {
	if s.MinutesByDate == nil {
		s.MinutesByDate = map[string]int{}
	}
	s.MinutesByDate[DateKey(now)] += minutes
}
