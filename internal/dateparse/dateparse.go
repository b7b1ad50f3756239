// Package dateparse maps free-form due-date phrases to calendar dates or a
// recurrence flag. Callers pass the exact natural language the user typed;
// classification is deterministic given a fixed "now" and never errors.
package dateparse

import (
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// Kind is the classification outcome for a phrase.
type Kind int

const (
	// Unresolved means the phrase produced no date; the caller leaves the
	// due date unset.
	Unresolved Kind = iota
	// Resolved means the phrase mapped to a concrete calendar date.
	Resolved
	// Recurring means the phrase marks a daily task with no due date.
	Recurring
)

// Result is the outcome of classifying a due-date phrase.
type Result struct {
	Kind Kind
	Date time.Time // UTC midnight, valid only when Kind == Resolved
}

// relativeKeyword maps a literal phrase fragment to an offset in days.
// Checked in order; first match wins.
var relativeKeywords = []struct {
	phrase string
	days   int
}{
	{"today", 0},
	{"tomorrow", 1},
	{"tmrw", 1},
	{"tommorow", 1}, // common misspelling
	{"next week", 7},
	{"in a week", 7},
	{"next month", 30},
	{"in a month", 30},
	{"in 2 days", 2},
	{"in two days", 2},
	{"in 3 days", 3},
	{"in three days", 3},
}

// recurrenceKeywords mark a phrase as describing a daily task. This is the
// single shared keyword set: the dispatcher and the task service both call
// HasRecurrenceKeyword rather than carrying their own copies.
var recurrenceKeywords = []string{
	"every day",
	"everyday",
	"daily",
	"each day",
	"recurring",
	"every morning",
	"every night",
	"every evening",
}

// HasRecurrenceKeyword reports whether s contains any recurrence keyword.
// Matching is case-insensitive substring containment.
func HasRecurrenceKeyword(s string) bool {
	lower := strings.ToLower(s)
	for _, kw := range recurrenceKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// Classify maps a due-date phrase to a Result. Relative keywords are checked
// first, then the recurrence set, then a strict ISO date parse of the first
// ten characters. Years outside [current, current+1] are treated as an
// upstream misparse and substituted with tomorrow rather than rejected.
func Classify(phrase string, now time.Time) Result {
	phrase = strings.TrimSpace(phrase)
	if phrase == "" {
		return Result{Kind: Unresolved}
	}

	lower := strings.ToLower(phrase)
	today := midnightUTC(now)

	for _, kw := range relativeKeywords {
		if strings.Contains(lower, kw.phrase) {
			return Result{Kind: Resolved, Date: today.AddDate(0, 0, kw.days)}
		}
	}

	if HasRecurrenceKeyword(lower) {
		return Result{Kind: Recurring}
	}

	if len(phrase) >= 10 {
		if parsed, err := time.ParseInLocation("2006-01-02", phrase[:10], time.UTC); err == nil {
			year := parsed.Year()
			if year < now.Year() || year > now.Year()+1 {
				// Implausible years come from model misparses, not users.
				log.Warn().
					Str("phrase", phrase).
					Int("year", year).
					Msg("due date outside sanity window, substituting tomorrow")
				return Result{Kind: Resolved, Date: today.AddDate(0, 0, 1)}
			}
			return Result{Kind: Resolved, Date: parsed}
		}
	}

	return Result{Kind: Unresolved}
}

// midnightUTC truncates t to a UTC calendar date.
func midnightUTC(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
