package window

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)

func TestEvaluateFreshRecord(t *testing.T) {
	snap := Config{}.Evaluate(testNow, testNow)

	assert.Equal(t, 300*time.Second, snap.DeleteRemaining)
	assert.Equal(t, 300*time.Second, snap.ReviseRemaining)
	assert.True(t, snap.CanDelete())
	assert.True(t, snap.CanRevise())
	assert.True(t, snap.CanModify())
	assert.False(t, snap.Locked())
}

func TestEvaluateInsideWindow(t *testing.T) {
	createdAt := testNow.Add(-299 * time.Second)
	snap := Config{}.Evaluate(createdAt, testNow)

	assert.Equal(t, time.Second, snap.DeleteRemaining)
	assert.Equal(t, time.Second, snap.ReviseRemaining)
	assert.True(t, snap.CanModify())
}

func TestEvaluateBoundaryIsExpired(t *testing.T) {
	createdAt := testNow.Add(-300 * time.Second)
	snap := Config{}.Evaluate(createdAt, testNow)

	assert.Equal(t, time.Duration(0), snap.DeleteRemaining)
	assert.Equal(t, time.Duration(0), snap.ReviseRemaining)
	assert.False(t, snap.CanDelete())
	assert.False(t, snap.CanRevise())
	assert.True(t, snap.Locked())
}

func TestEvaluateIndependentWindows(t *testing.T) {
	cfg := Config{DeleteWindow: 60 * time.Second, ReviseWindow: 600 * time.Second}
	createdAt := testNow.Add(-120 * time.Second)
	snap := cfg.Evaluate(createdAt, testNow)

	assert.False(t, snap.CanDelete())
	assert.True(t, snap.CanRevise())
	assert.True(t, snap.CanModify())
	assert.False(t, snap.Locked())
	assert.Equal(t, 480*time.Second, snap.ReviseRemaining)
}

func TestEvaluateIdempotent(t *testing.T) {
	createdAt := testNow.Add(-42 * time.Second)
	first := Config{}.Evaluate(createdAt, testNow)
	second := Config{}.Evaluate(createdAt, testNow)

	assert.Equal(t, first, second)
}

func TestEvaluateMonotonic(t *testing.T) {
	createdAt := testNow
	prev := Config{}.Evaluate(createdAt, testNow)
	for _, advance := range []time.Duration{1, 30, 299, 300, 301, 3600} {
		snap := Config{}.Evaluate(createdAt, testNow.Add(advance*time.Second))
		assert.LessOrEqual(t, snap.DeleteRemaining, prev.DeleteRemaining)
		assert.LessOrEqual(t, snap.ReviseRemaining, prev.ReviseRemaining)
		prev = snap
	}
}

func TestEvaluateZeroCreatedAtIsLocked(t *testing.T) {
	snap := Config{}.Evaluate(time.Time{}, testNow)

	assert.Equal(t, time.Duration(0), snap.DeleteRemaining)
	assert.Equal(t, time.Duration(0), snap.ReviseRemaining)
	assert.True(t, snap.Locked())
}

func TestParseCreatedAt(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want time.Time
	}{
		{"rfc3339", "2025-03-14T09:26:53Z", testNow},
		{"rfc3339 nano", "2025-03-14T09:26:53.000000000Z", testNow},
		{"sql text", "2025-03-14 09:26:53", testNow},
		{"empty", "", time.Time{}},
		{"garbage", "not-a-date", time.Time{}},
		{"partial", "2025-03-14", time.Time{}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.True(t, ParseCreatedAt(tc.raw).Equal(tc.want))
		})
	}
}

func TestMalformedCreatedAtFailsClosed(t *testing.T) {
	snap := Config{}.Evaluate(ParseCreatedAt(""), testNow)
	require.True(t, snap.Locked())
	assert.Equal(t, "0:00", Format(snap.DeleteRemaining))
}

func TestFormat(t *testing.T) {
	tests := []struct {
		seconds int
		want    string
	}{
		{0, "0:00"},
		{5, "0:05"},
		{59, "0:59"},
		{60, "1:00"},
		{125, "2:05"},
		{300, "5:00"},
		{301, "5:01"},
		{-7, "0:00"},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, Format(time.Duration(tc.seconds)*time.Second), "format %d", tc.seconds)
	}
}

func TestGateSkipsExpiredDelete(t *testing.T) {
	createdAt := testNow.Add(-400 * time.Second)
	snap := Config{}.Evaluate(createdAt, testNow)

	invoked := false
	ran := snap.Delete(func() { invoked = true })

	assert.False(t, ran)
	assert.False(t, invoked)
}

func TestGateRunsOpenActions(t *testing.T) {
	snap := Config{}.Evaluate(testNow.Add(-10*time.Second), testNow)

	var deletes, revisions int
	assert.True(t, snap.Delete(func() { deletes++ }))
	assert.True(t, snap.Revise(func() { revisions++ }))
	assert.Equal(t, 1, deletes)
	assert.Equal(t, 1, revisions)
}

func TestGateIndependentActions(t *testing.T) {
	cfg := Config{DeleteWindow: 30 * time.Second, ReviseWindow: 300 * time.Second}
	snap := cfg.Evaluate(testNow.Add(-60*time.Second), testNow)

	invoked := false
	assert.False(t, snap.Delete(func() { invoked = true }))
	assert.False(t, invoked)
	assert.True(t, snap.Revise(func() { invoked = true }))
	assert.True(t, invoked)
}
