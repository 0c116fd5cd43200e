// Package streak implements the consecutive-day activity counter. A day is a
// UTC calendar date everywhere in the system; mixing local-time days across
// callers would silently corrupt streaks, so all date math lives here.
package streak

import "time"

// DayOf returns the UTC calendar date of t in YYYY-MM-DD form.
func DayOf(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// Advance applies one activity observation to the streak counters and returns
// the updated (current, longest, lastDate) triple.
//
// Same day as lastDate: no change, the streak was already credited today.
// lastDate is exactly yesterday: the streak extends by one.
// Anything else, including first-ever activity: the streak resets to 1.
//
// Advance is never called on undo. Undoing a completion must not shrink a
// streak that other activity the same day may have already extended.
func Advance(current, longest int, lastDate string, at time.Time) (int, int, string) {
	today := DayOf(at)
	yesterday := DayOf(at.UTC().AddDate(0, 0, -1))

	switch lastDate {
	case today:
	case yesterday:
		current++
	default:
		current = 1
	}
	if current > longest {
		longest = current
	}
	return current, longest, today
}
