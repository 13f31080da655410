package domain

import "time"

// ContentType classifies what a focus session was spent on.
type ContentType string

const (
	ContentDocument ContentType = "document"
	ContentLesson   ContentType = "lesson"
)

// Valid reports whether t is one of the known content types.
func (t ContentType) Valid() bool {
	return t == ContentDocument || t == ContentLesson
}

// FocusSession is a bounded interval of recorded engagement. Duration is
// frozen when the session stops and is never recomputed from the timestamps.
type FocusSession struct {
	ID           string
	StartTime    time.Time
	EndTime      time.Time
	Duration     int64 // seconds
	ContentTitle string
	ContentType  ContentType
}

// DayFocus aggregates one account's sessions for one UTC calendar day.
// Sessions are ordered by commit, which can differ from wall-clock start
// order when stops race.
type DayFocus struct {
	TotalTime int64 // seconds
	Sessions  []FocusSession
}

// DayKey returns the canonical calendar-day key for t. Days are bucketed in
// UTC for everyone; a per-user zone would split one session's accrual across
// devices disagreeing about "today".
func DayKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
