package poker

import (
	"testing"
	"time"
)

func testNow() time.Time {
	return time.Unix(1_700_000_000, 0)
}

func TestTimerRemaining(t *testing.T) {
	start := testNow()
	timer := StartTimer(300, start)

	if got := timer.Remaining(start); got != 300*time.Second {
		t.Errorf("Expected 300s remaining at start, got %v", got)
	}
	if got := timer.Remaining(start.Add(100 * time.Second)); got != 200*time.Second {
		t.Errorf("Expected 200s remaining, got %v", got)
	}
	if got := timer.Remaining(start.Add(300 * time.Second)); got != 0 {
		t.Errorf("Expected exactly 0 at the deadline, got %v", got)
	}
	if got := timer.Remaining(start.Add(10 * time.Hour)); got != 0 {
		t.Errorf("Remaining must never go negative, got %v", got)
	}
}

func TestTimerRemaining_Idempotent(t *testing.T) {
	start := testNow()
	timer := StartTimer(120, start)
	now := start.Add(37 * time.Second)

	first := timer.Remaining(now)
	second := timer.Remaining(now)
	if first != second {
		t.Errorf("Expected identical results for the same now, got %v then %v", first, second)
	}
}

func TestTimerRemaining_InactiveIsZero(t *testing.T) {
	timer := StopTimer(300)
	if got := timer.Remaining(testNow()); got != 0 {
		t.Errorf("Expected 0 for a stopped timer, got %v", got)
	}

	var nilTimer *Timer
	if got := nilTimer.Remaining(testNow()); got != 0 {
		t.Errorf("Expected 0 for a nil timer, got %v", got)
	}
}

func TestTimerLowTime(t *testing.T) {
	start := testNow()
	timer := StartTimer(120, start)

	if timer.LowTime(start) {
		t.Error("120s remaining should not be low time")
	}
	if !timer.LowTime(start.Add(95 * time.Second)) {
		t.Error("25s remaining should be low time")
	}
	if !timer.LowTime(start.Add(90 * time.Second)) {
		t.Error("Exactly 30s remaining should be low time")
	}
	if timer.LowTime(start.Add(120 * time.Second)) {
		t.Error("An elapsed timer should not be low time")
	}
}

func TestTimerDeadline(t *testing.T) {
	start := testNow()
	timer := StartTimer(60, start)

	deadline, ok := timer.Deadline()
	if !ok {
		t.Fatal("Expected a deadline for an active timer")
	}
	if want := start.Add(60 * time.Second); !deadline.Equal(want) {
		t.Errorf("Expected deadline %v, got %v", want, deadline)
	}

	stopped := StopTimer(60)
	if _, ok := stopped.Deadline(); ok {
		t.Error("Expected no deadline for a stopped timer")
	}
}

func TestStopTimer_ClearsStartedAt(t *testing.T) {
	timer := StopTimer(300)
	if timer.Active {
		t.Error("Expected Active=false after stop")
	}
	if timer.StartedAt != 0 {
		t.Errorf("Expected StartedAt cleared, got %d", timer.StartedAt)
	}
}
