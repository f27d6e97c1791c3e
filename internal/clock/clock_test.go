package clock

import (
	"testing"
	"time"
)

func TestManualFiresInDeadlineOrder(t *testing.T) {
	m := NewManual(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	var fired []string
	m.AfterFunc(5*time.Second, func() { fired = append(fired, "b") })
	m.AfterFunc(3*time.Second, func() { fired = append(fired, "a") })
	stopped := m.AfterFunc(4*time.Second, func() { fired = append(fired, "x") })
	if !stopped.Stop() {
		t.Fatalf("expected stop to succeed")
	}
	m.Advance(4 * time.Second)
	if len(fired) != 1 || fired[0] != "a" {
		t.Fatalf("after 4s expected [a], got %v", fired)
	}
	m.Advance(time.Second)
	if len(fired) != 2 || fired[1] != "b" {
		t.Fatalf("after 5s expected [a b], got %v", fired)
	}
	if m.Pending() != 0 {
		t.Fatalf("expected no pending timers, got %d", m.Pending())
	}
	if stopped.Stop() {
		t.Fatalf("second stop must report false")
	}
}

func TestManualTimerScheduledFromCallback(t *testing.T) {
	m := NewManual(time.Unix(0, 0))
	count := 0
	m.AfterFunc(time.Second, func() {
		count++
		m.AfterFunc(time.Second, func() { count++ })
	})
	m.Advance(2 * time.Second)
	if count != 2 {
		t.Fatalf("expected chained timer to fire, count=%d", count)
	}
}
