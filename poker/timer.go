package poker

import "time"

// LowTimeThreshold marks the remaining-time band that gets a distinct
// visual state.
const LowTimeThreshold = 30 * time.Second

// StartTimer returns the timer value a start writes.
func StartTimer(durationSeconds int64, now time.Time) Timer {
	return Timer{Active: true, Duration: durationSeconds, StartedAt: now.UnixMilli()}
}

// StopTimer returns the timer value a stop writes. Stopping an already
// stopped timer writes the same value again, which makes duplicate stops
// from racing subscribers harmless.
func StopTimer(duration int64) Timer {
	return Timer{Active: false, Duration: duration}
}

// Remaining derives the countdown from the absolute start timestamp. It is
// recomputed, never decremented, so a subscriber joining mid-countdown sees
// the correct value immediately and repeated calls with the same now are
// identical. Never negative; exactly zero at StartedAt+Duration.
func (t *Timer) Remaining(now time.Time) time.Duration {
	if t == nil || !t.Active || t.StartedAt == 0 {
		return 0
	}
	elapsed := now.UnixMilli() - t.StartedAt
	remaining := t.Duration*1000 - elapsed
	if remaining <= 0 {
		return 0
	}
	return time.Duration(remaining) * time.Millisecond
}

// LowTime reports whether the countdown is in its final stretch. Cosmetic,
// but exposed as a derived boolean so it can be tested.
func (t *Timer) LowTime(now time.Time) bool {
	r := t.Remaining(now)
	return r > 0 && r <= LowTimeThreshold
}

// Deadline returns the absolute instant the countdown reaches zero.
func (t *Timer) Deadline() (time.Time, bool) {
	if t == nil || !t.Active || t.StartedAt == 0 {
		return time.Time{}, false
	}
	return time.UnixMilli(t.StartedAt + t.Duration*1000), true
}
