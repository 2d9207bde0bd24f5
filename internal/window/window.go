// Package window implements the time-limited mutation rule for
// submissions: after a record is created the owner may delete or
// revise it only while the respective window is still open. The
// evaluator is pure; callers supply the reference time. This package
// is the single authority for the rule — handlers, services and the
// SSE stream all consume the same Snapshot.
package window

import (
	"fmt"
	"time"
)

// Default window durations applied when configuration leaves them unset.
const (
	DefaultDeleteWindow = 300 * time.Second
	DefaultReviseWindow = 300 * time.Second
)

// Config holds the two window durations. They are configured
// independently even though deployments currently keep them equal.
type Config struct {
	DeleteWindow time.Duration
	ReviseWindow time.Duration
}

// withDefaults fills unset or non-positive durations.
func (c Config) withDefaults() Config {
	if c.DeleteWindow <= 0 {
		c.DeleteWindow = DefaultDeleteWindow
	}
	if c.ReviseWindow <= 0 {
		c.ReviseWindow = DefaultReviseWindow
	}
	return c
}

// Snapshot captures the remaining time for both actions at a single
// evaluation instant. A zero remaining value means the action has
// expired; once both are zero the record is locked for good (creation
// time never changes, so the windows only shrink).
type Snapshot struct {
	DeleteRemaining time.Duration
	ReviseRemaining time.Duration
	EvaluatedAt     time.Time
}

// Evaluate computes the remaining time for both windows given the
// record creation time and a reference instant. Remaining time is
// max(0, window - elapsed). A zero createdAt (the fail-safe produced
// by ParseCreatedAt for malformed input) yields zero for both.
func (c Config) Evaluate(createdAt, now time.Time) Snapshot {
	cfg := c.withDefaults()
	elapsed := now.Sub(createdAt)
	return Snapshot{
		DeleteRemaining: remaining(cfg.DeleteWindow, elapsed),
		ReviseRemaining: remaining(cfg.ReviseWindow, elapsed),
		EvaluatedAt:     now,
	}
}

func remaining(window, elapsed time.Duration) time.Duration {
	if left := window - elapsed; left > 0 {
		return left
	}
	return 0
}

// CanDelete reports whether the delete window is still open.
func (s Snapshot) CanDelete() bool { return s.DeleteRemaining > 0 }

// CanRevise reports whether the revise window is still open.
func (s Snapshot) CanRevise() bool { return s.ReviseRemaining > 0 }

// CanModify reports whether at least one action is still available.
func (s Snapshot) CanModify() bool { return s.CanDelete() || s.CanRevise() }

// Locked reports the terminal state: both windows expired.
func (s Snapshot) Locked() bool { return !s.CanModify() }

// Delete invokes fn only while the delete window is open and reports
// whether it ran. A stale invocation after expiry is a silent no-op:
// the affordance was already disabled, so there is nothing to report.
func (s Snapshot) Delete(fn func()) bool {
	if !s.CanDelete() {
		return false
	}
	fn()
	return true
}

// Revise invokes fn only while the revise window is open and reports
// whether it ran.
func (s Snapshot) Revise(fn func()) bool {
	if !s.CanRevise() {
		return false
	}
	fn()
	return true
}

// createdAtLayouts lists accepted timestamp encodings, most common first.
var createdAtLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
}

// ParseCreatedAt parses an ISO-8601 creation timestamp. Malformed or
// empty input returns the zero time, which evaluates as long expired:
// an unparseable date must never grant edit rights.
func ParseCreatedAt(raw string) time.Time {
	for _, layout := range createdAtLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts
		}
	}
	return time.Time{}
}

// Format renders a remaining duration as M:SS (minutes unpadded,
// seconds zero-padded). Negative input clamps to "0:00".
func Format(d time.Duration) string {
	secs := int(d.Seconds())
	if secs < 0 {
		secs = 0
	}
	return fmt.Sprintf("%d:%02d", secs/60, secs%60)
}
