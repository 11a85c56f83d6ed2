package domain

import "errors"

// Error taxonomy shared across the engine. Wrapped with %w at call sites so
// callers can classify with errors.Is.
var (
	// ErrCapacity means the projected rule count exceeds the platform's
	// maximum. Fatal for the run; previously installed rules are retained.
	ErrCapacity = errors.New("projected rules exceed platform capacity")

	// ErrAlreadyRunning means a lock-guarded operation is in flight in
	// another context. Not a failure; the caller gets a deferred result.
	ErrAlreadyRunning = errors.New("already running")

	// ErrOversizedList means the serialized site list exceeds the storage
	// ceiling. The write is rejected; nothing is silently truncated.
	ErrOversizedList = errors.New("site list exceeds storage ceiling")

	// ErrNotFound means the requested record does not exist.
	ErrNotFound = errors.New("not found")
)
