package clock

import (
	"testing"
	"time"
)

func TestRealClock_Now(t *testing.T) {
	clock := &RealClock{}

	before := time.Now()
	now := clock.Now()
	after := time.Now()

	if now.Before(before) {
		t.Errorf("Clock time %v is before measurement time %v", now, before)
	}
	if now.After(after) {
		t.Errorf("Clock time %v is after measurement time %v", now, after)
	}
}

func TestMockClock_NowAndAdvance(t *testing.T) {
	fixed := time.Date(2026, 8, 3, 12, 0, 0, 0, time.UTC)
	clock := &MockClock{CurrentTime: fixed}

	if !clock.Now().Equal(fixed) {
		t.Errorf("Now() = %v, want %v", clock.Now(), fixed)
	}

	clock.Advance(90 * time.Minute)
	want := fixed.Add(90 * time.Minute)
	if !clock.Now().Equal(want) {
		t.Errorf("after Advance, Now() = %v, want %v", clock.Now(), want)
	}
}
