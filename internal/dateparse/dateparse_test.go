package dateparse

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Fixed clock so relative keywords resolve deterministically.
var now = time.Date(2025, 6, 15, 14, 30, 0, 0, time.UTC)

func day(offset int) time.Time {
	return time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC).AddDate(0, 0, offset)
}

func TestClassifyRelativeKeywords(t *testing.T) {
	testCases := []struct {
		name   string
		phrase string
		want   time.Time
	}{
		{"today", "today", day(0)},
		{"tomorrow", "tomorrow", day(1)},
		{"tomorrow uppercase", "TOMORROW", day(1)},
		{"tomorrow embedded", "finish the report by tomorrow evening", day(1)},
		{"tmrw shorthand", "tmrw", day(1)},
		{"common misspelling", "tommorow", day(1)},
		{"next week", "next week", day(7)},
		{"in a week", "in a week", day(7)},
		{"next month", "next month", day(30)},
		{"in a month", "in a month", day(30)},
		{"in 2 days", "in 2 days", day(2)},
		{"in two days", "in two days", day(2)},
		{"in 3 days", "in 3 days", day(3)},
		{"in three days", "in three days", day(3)},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			res := Classify(tc.phrase, now)
			require.Equal(t, Resolved, res.Kind)
			assert.Equal(t, tc.want, res.Date)
		})
	}
}

func TestClassifyRecurrence(t *testing.T) {
	phrases := []string{
		"every day",
		"everyday",
		"daily",
		"each day",
		"recurring",
		"every morning",
		"every night",
		"every evening",
		"DAILY at 6pm",
	}

	for _, phrase := range phrases {
		t.Run(phrase, func(t *testing.T) {
			res := Classify(phrase, now)
			assert.Equal(t, Recurring, res.Kind)
		})
	}
}

// Relative keywords outrank the recurrence set: "daily at 6pm tomorrow"
// resolves to tomorrow at this layer, and the store-level re-scan of the
// description is what ultimately forces the daily flag.
func TestClassifyRelativeOutranksRecurrence(t *testing.T) {
	res := Classify("daily at 6pm tomorrow", now)
	require.Equal(t, Resolved, res.Kind)
	assert.Equal(t, day(1), res.Date)
}

func TestClassifyISODate(t *testing.T) {
	res := Classify("2025-09-01", now)
	require.Equal(t, Resolved, res.Kind)
	assert.Equal(t, time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC), res.Date)

	// Trailing time component is ignored; only the first 10 chars parse.
	res = Classify("2026-01-04T09:00:00Z", now)
	require.Equal(t, Resolved, res.Kind)
	assert.Equal(t, time.Date(2026, 1, 4, 0, 0, 0, 0, time.UTC), res.Date)
}

func TestClassifyYearSanity(t *testing.T) {
	// A hallucinated far-future year substitutes tomorrow, never errors.
	res := Classify("2030-01-01", now)
	require.Equal(t, Resolved, res.Kind)
	assert.Equal(t, day(1), res.Date)

	res = Classify("2019-05-05", now)
	require.Equal(t, Resolved, res.Kind)
	assert.Equal(t, day(1), res.Date)

	// Next year is within the window.
	res = Classify("2026-03-10", now)
	require.Equal(t, Resolved, res.Kind)
	assert.Equal(t, time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC), res.Date)
}

func TestClassifyUnresolved(t *testing.T) {
	for _, phrase := range []string{"", "   ", "whenever", "soonish", "12/25/2025", "2025-13"} {
		t.Run(phrase, func(t *testing.T) {
			assert.Equal(t, Unresolved, Classify(phrase, now).Kind)
		})
	}
}

func TestClassifyDeterministic(t *testing.T) {
	first := Classify("tomorrow", now)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, Classify("tomorrow", now))
	}
}

func TestHasRecurrenceKeyword(t *testing.T) {
	assert.True(t, HasRecurrenceKeyword("stretch every day"))
	assert.True(t, HasRecurrenceKeyword("Daily standup"))
	assert.False(t, HasRecurrenceKeyword("buy groceries tomorrow"))
	assert.False(t, HasRecurrenceKeyword(""))
}
