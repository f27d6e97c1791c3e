package workflow

import (
	"context"
	"fmt"
	"testing"
	"time"

	"shiftdesk/internal/clock"
	"shiftdesk/internal/domain"
	"shiftdesk/internal/feedback"
	"shiftdesk/internal/transport"
)

func TestFailureChoosesText(t *testing.T) {
	ch := feedback.New(feedback.Options{Clock: clock.NewManual(time.Unix(0, 0))})
	Failure(ch, nil, "fallback", "generic")
	Failure(ch, fmt.Errorf("submit: %w", &domain.RejectedError{Message: "tanggal wajib"}), "fallback", "generic")
	Failure(ch, &domain.RejectedError{}, "fallback", "generic")
	Failure(ch, &transport.Error{Method: "POST", Endpoint: "/x/", Err: fmt.Errorf("refused")}, "fallback", "generic")
	var got []string
	for _, n := range ch.Visible() {
		got = append(got, n.Text)
	}
	want := []string{"tanggal wajib", "fallback", "generic"}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestSchedulerRunsOncePerSchedule(t *testing.T) {
	clk := clock.NewManual(time.Unix(0, 0))
	runs := 0
	s := NewScheduler(clk, time.Second, func(ctx context.Context) error {
		runs++
		return nil
	}, nil)
	s.Schedule()
	s.Schedule()
	clk.Advance(time.Second)
	if runs != 2 {
		t.Fatalf("expected two runs, got %d", runs)
	}
	s.Schedule()
	s.Stop()
	clk.Advance(time.Second)
	if runs != 2 {
		t.Fatalf("stopped refresh ran")
	}
}

func TestSchedulerForgetsFiredTimers(t *testing.T) {
	clk := clock.NewManual(time.Unix(0, 0))
	s := NewScheduler(clk, time.Second, func(ctx context.Context) error { return nil }, nil)
	for i := 0; i < 50; i++ {
		s.Schedule()
		if s.Pending() != 1 {
			t.Fatalf("round %d: expected one armed refresh, got %d", i, s.Pending())
		}
		clk.Advance(time.Second)
		if s.Pending() != 0 {
			t.Fatalf("round %d: fired timer still held", i)
		}
	}
	s.Schedule()
	s.Schedule()
	s.Stop()
	if s.Pending() != 0 || clk.Pending() != 0 {
		t.Fatalf("stop must cancel and forget: scheduler %d clock %d", s.Pending(), clk.Pending())
	}
}
