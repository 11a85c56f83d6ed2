package domain

import (
	"testing"
	"time"
)

func TestSiteStatsCounters(t *testing.T) {
	now := time.Date(2026, 8, 3, 12, 0, 0, 0, time.UTC)
	var s SiteStats

	if s.VisitsOn(DateKey(now)) != 0 || s.MinutesOn(DateKey(now)) != 0 {
		t.Fatal("zero-value stats must read as zero")
	}

	s.RecordVisit(now)
	s.RecordVisit(now)
	s.AddMinutes(now, 15)
	if got := s.VisitsOn(DateKey(now)); got != 2 {
		t.Errorf("VisitsOn = %d, want 2", got)
	}
	if got := s.MinutesOn(DateKey(now)); got != 15 {
		t.Errorf("MinutesOn = %d, want 15", got)
	}

	tomorrow := now.AddDate(0, 0, 1)
	s.RecordVisit(tomorrow)
	if got := s.VisitsOn(DateKey(now)); got != 2 {
		t.Errorf("visits must bucket per date, got %d for today", got)
	}
	if got := s.VisitsOn(DateKey(tomorrow)); got != 1 {
		t.Errorf("VisitsOn tomorrow = %d, want 1", got)
	}
}
