package domain

import "time"

// TempWhitelistEntry is a time-boxed exception overriding blocking for one
// host. Entries are expired lazily: an entry with Until <= now is simply
// ignored, never eagerly deleted from storage.
type TempWhitelistEntry struct {
	Host   string    `json:"host"`
	Until  time.Time `json:"until"`
	Reason string    `json:"reason,omitempty"`
}

// ActiveAt reports whether the exception still applies at now.
func (e TempWhitelistEntry) ActiveAt(now time.Time) bool {
	return e.Until.After(now)
}

// FocusSession is a voluntary, time-boxed addition to the blocked set. The
// in-memory overlay is process-lifetime only and is re-derived from this
// persisted record during boot reconciliation.
type FocusSession struct {
	Hosts     []string  `json:"hosts"`
	StartedAt time.Time `json:"started_at"`
	EndsAt    time.Time `json:"ends_at"`
}

// ActiveAt reports whether the session overlay applies at now.
func (s FocusSession) ActiveAt(now time.Time) bool {
	return len(s.Hosts) > 0 && now.Before(s.EndsAt)
}
