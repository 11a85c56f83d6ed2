package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ScheduleMode selects how a site's blocking schedule is interpreted.
type ScheduleMode uint8

const (
	// ScheduleAlways blocks at every instant. A site without a schedule is
	// semantically ScheduleAlways: absence means maximum strictness.
	ScheduleAlways ScheduleMode = iota
	// ScheduleVacation suspends blocking unconditionally.
	ScheduleVacation
	// ScheduleWorkHours blocks Monday through Friday within [Start, End).
	ScheduleWorkHours
	// ScheduleWeekends blocks on Saturday and Sunday.
	ScheduleWeekends
	// ScheduleCustom blocks on the listed days within [Start, End).
	ScheduleCustom
	// SchedulePerDay dispatches to a per-weekday sub-schedule.
	SchedulePerDay
)

// String returns a stable string representation of the mode.
func (m ScheduleMode) String() string {
	switch m {
	case ScheduleAlways:
		return "always"
	case ScheduleVacation:
		return "vacation"
	case ScheduleWorkHours:
		return "work_hours"
	case ScheduleWeekends:
		return "weekends"
	case ScheduleCustom:
		return "custom"
	case SchedulePerDay:
		return "per_day"
	default:
		return fmt.Sprintf("ScheduleMode(%d)", m)
	}
}

// ParseScheduleMode converts a string into a ScheduleMode (case-insensitive).
func ParseScheduleMode(s string) (ScheduleMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "always", "":
		return ScheduleAlways, nil
	case "vacation":
		return ScheduleVacation, nil
	case "work_hours":
		return ScheduleWorkHours, nil
	case "weekends":
		return ScheduleWeekends, nil
	case "custom":
		return ScheduleCustom, nil
	case "per_day":
		return SchedulePerDay, nil
	default:
		return 0, fmt.Errorf("unsupported ScheduleMode: %q", s)
	}
}

// DaySchedule is the per-weekday range used by SchedulePerDay.
// A day that is present blocks within [Start, End); a day that is absent
// from the map blocks all day.
type DaySchedule struct {
	Start string `json:"start"` // "HH:MM"
	End   string `json:"end"`   // "HH:MM"
}

// Schedule is a tagged variant describing when a site is blocked.
// Only the fields relevant to Mode are consulted.
type Schedule struct {
	Mode   ScheduleMode                 `json:"mode"`
	Start  string                       `json:"start,omitempty"` // "HH:MM"
	End    string                       `json:"end,omitempty"`   // "HH:MM"
	Days   []time.Weekday               `json:"days,omitempty"`
	PerDay map[time.Weekday]DaySchedule `json:"per_day,omitempty"`
}

// IsScheduleActive reports whether blocking applies at now. A nil schedule is
// active at every instant.
func IsScheduleActive(s *Schedule, now time.Time) bool {
	if s == nil {
		return true
	}
	switch s.Mode {
	case ScheduleAlways:
		return true
	case ScheduleVacation:
		return false
	case ScheduleWorkHours:
		wd := now.Weekday()
		if wd == time.Saturday || wd == time.Sunday {
			return false
		}
		return inRange(s.Start, s.End, now)
	case ScheduleWeekends:
		wd := now.Weekday()
		return wd == time.Saturday || wd == time.Sunday
	case ScheduleCustom:
		if len(s.Days) > 0 && !containsDay(s.Days, now.Weekday()) {
			return false
		}
		return inRange(s.Start, s.End, now)
	case SchedulePerDay:
		day, ok := s.PerDay[now.Weekday()]
		if !ok {
			return true
		}
		return inRange(day.Start, day.End, now)
	default:
		return true
	}
}

// inRange reports whether now falls within the half-open interval
// [start, end), both expressed as "HH:MM" clock strings.
func inRange(start, end string, now time.Time) bool {
	m := MinutesOfDay(now)
	return m >= ParseHHMM(start) && m < ParseHHMM(end)
}

// MinutesOfDay returns minutes since midnight for t.
func MinutesOfDay(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}

// ParseHHMM parses a "HH:MM" clock string into minutes since midnight.
// Malformed input parses to 0; it never fails.
func ParseHHMM(s string) int {
	h, m, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0
	}
	hours, err := strconv.Atoi(h)
	if err != nil || hours < 0 || hours > 23 {
		return 0
	}
	minutes, err := strconv.Atoi(m)
	if err != nil || minutes < 0 || minutes > 59 {
		return 0
	}
	return hours*60 + minutes
}

func containsDay(days []time.Weekday, d time.Weekday) bool {
	for _, day := range days {
		if day == d {
			return true
		}
	}
	return false
}
