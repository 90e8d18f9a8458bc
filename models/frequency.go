package models

import (
	"strings"
	"time"
)

// Frequency is how often a KPI's measured value may be reported.
type Frequency string

const (
	FrequencyDaily     Frequency = "Daily"
	FrequencyWeekly    Frequency = "Weekly"
	FrequencyMonthly   Frequency = "Monthly"
	FrequencyQuarterly Frequency = "Quarterly"
	FrequencyYearly    Frequency = "Yearly"
)

func (f Frequency) Valid() bool {
	switch f {
	case FrequencyDaily, FrequencyWeekly, FrequencyMonthly, FrequencyQuarterly, FrequencyYearly:
		return true
	}
	return false
}

// Period is the lower-case form used in user facing messages ("weekly").
func (f Frequency) Period() string {
	return strings.ToLower(string(f))
}

// IsUpdateAllowed reports whether now falls in a different reporting period
// than the most recent snapshot in history. The first update is always
// allowed, and so is any update of a KPI with an unknown frequency.
func IsUpdateAllowed(history []Snapshot, frequency Frequency, now time.Time) bool {
	if len(history) == 0 {
		return true
	}
	last := history[len(history)-1].Date.In(now.Location())

	switch frequency {
	case FrequencyDaily:
		ly, lm, ld := last.Date()
		ny, nm, nd := now.Date()
		return ly != ny || lm != nm || ld != nd
	case FrequencyWeekly:
		return weekNumber(last) != weekNumber(now) || last.Year() != now.Year()
	case FrequencyMonthly:
		return last.Month() != now.Month() || last.Year() != now.Year()
	case FrequencyQuarterly:
		return quarter(last) != quarter(now) || last.Year() != now.Year()
	case FrequencyYearly:
		return last.Year() != now.Year()
	default:
		return true
	}
}

// weekNumber counts Sunday-started weeks from January 1st; the partial week
// containing January 1st is week 1.
func weekNumber(t time.Time) int {
	jan1 := time.Date(t.Year(), time.January, 1, 0, 0, 0, 0, t.Location())
	return (t.YearDay() + int(jan1.Weekday()) + 6) / 7
}

// quarter is zero based: January to March is 0.
func quarter(t time.Time) int {
	return (int(t.Month()) - 1) / 3
}
