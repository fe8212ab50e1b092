package domain

import (
	"fmt"
	"time"
	_ "time/tzdata"
)

// TimeContext carries the location and clock used for every time-of-day
// decision (rule windows, mute windows, formatting).
type TimeContext struct {
	Location *time.Location
	Clock    func() time.Time
}

// NewTimeContext resolves tz (IANA name, empty means UTC) and uses the system clock.
func NewTimeContext(tz string) (TimeContext, error) {
	loc := time.UTC
	if tz != "" {
		l, err := time.LoadLocation(tz)
		if err != nil {
			return TimeContext{}, fmt.Errorf("load timezone %q: %w", tz, err)
		}
		loc = l
	}
	return TimeContext{Location: loc, Clock: time.Now}, nil
}

// Now returns the current instant in the context's location.
func (tc TimeContext) Now() time.Time {
	clock := tc.Clock
	if clock == nil {
		clock = time.Now
	}
	return tc.In(clock())
}

// In converts t to the context's location.
func (tc TimeContext) In(t time.Time) time.Time {
	if tc.Location == nil {
		return t.UTC()
	}
	return t.In(tc.Location)
}

// Format renders t in the context's location.
func (tc TimeContext) Format(t time.Time) string {
	return tc.In(t).Format("2006-01-02 15:04 MST")
}

// SameDay reports whether a and b fall on the same calendar day in the context.
func (tc TimeContext) SameDay(a, b time.Time) bool {
	ay, am, ad := tc.In(a).Date()
	by, bm, bd := tc.In(b).Date()
	return ay == by && am == bm && ad == bd
}
