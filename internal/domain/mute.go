package domain

import (
	"fmt"
	"regexp"
	"time"
)

const dateLayout = "2006-01-02"

// MuteWindow silences notifications for matching identifiers without
// affecting failure tracking.
type MuteWindow struct {
	Match string     `json:"match,omitempty" yaml:"match" toml:"match"`
	Time  string     `json:"time" yaml:"time" toml:"time"`
	Days  StringList `json:"days,omitempty" yaml:"days" toml:"days"`
	Date  string     `json:"date,omitempty" yaml:"date" toml:"date"`

	rng   TimeRange
	days  []time.Weekday
	date  time.Time
	match *regexp.Regexp
}

// Normalize parses the window's filters. An empty Time mutes the whole day.
func (w *MuteWindow) Normalize() error {
	spec := w.Time
	if spec == "" {
		spec = "00:00-24:00"
	}
	rng, err := ParseTimeRange(spec)
	if err != nil {
		return fmt.Errorf("mute window: %w", err)
	}
	w.rng = rng

	days, err := parseWeekdays(w.Days)
	if err != nil {
		return fmt.Errorf("mute window: %w", err)
	}
	w.days = days

	w.date = time.Time{}
	if w.Date != "" {
		d, err := time.Parse(dateLayout, w.Date)
		if err != nil {
			return fmt.Errorf("mute window: date %q: %w", w.Date, err)
		}
		w.date = d
	}

	w.match = nil
	if w.Match != "" {
		re, err := regexp.Compile(w.Match)
		if err != nil {
			return fmt.Errorf("mute window: match %q: %w", w.Match, err)
		}
		w.match = re
	}
	return nil
}

// IsMuted reports whether identifier is silenced at t.
func (w MuteWindow) IsMuted(identifier string, t time.Time, tc TimeContext) bool {
	return w.IsMatchForIdentifier(identifier) && w.IsMutedAt(t, tc)
}

func (w MuteWindow) IsMatchForIdentifier(identifier string) bool {
	if w.Match == "" {
		return true
	}
	if w.match == nil {
		return false
	}
	return w.match.MatchString(identifier)
}

// IsMutedAt applies the date, weekday and time-of-day filters.
func (w MuteWindow) IsMutedAt(t time.Time, tc TimeContext) bool {
	local := tc.In(t)
	if !w.date.IsZero() {
		y, m, d := local.Date()
		wy, wm, wd := w.date.Date()
		if y != wy || m != wm || d != wd {
			return false
		}
	}
	if len(w.days) > 0 && !containsWeekday(w.days, local.Weekday()) {
		return false
	}
	return w.rng.Contains(local)
}

// DynamicMuteWindow is a persisted mute between two absolute instants.
type DynamicMuteWindow struct {
	ID        string    `json:"id"`
	Match     string    `json:"match,omitempty"`
	From      time.Time `json:"from"`
	To        time.Time `json:"to"`
	Reason    string    `json:"reason,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Validate checks the regex and the interval ordering.
func (d DynamicMuteWindow) Validate() error {
	if !d.To.After(d.From) {
		return fmt.Errorf("mute window: to %s must be after from %s", d.To.Format(time.RFC3339), d.From.Format(time.RFC3339))
	}
	if d.Match != "" {
		if _, err := regexp.Compile(d.Match); err != nil {
			return fmt.Errorf("mute window: match %q: %w", d.Match, err)
		}
	}
	return nil
}

// Windows splits the interval into one same-day window per calendar day.
func (d DynamicMuteWindow) Windows(tc TimeContext) ([]MuteWindow, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	from, to := tc.In(d.From), tc.In(d.To)

	var out []MuteWindow
	for day := truncateDay(from); !day.After(to); day = day.AddDate(0, 0, 1) {
		start, end := "00:00", "24:00"
		if tc.SameDay(day, from) {
			start = from.Format("15:04")
		}
		if tc.SameDay(day, to) {
			end = to.Format("15:04")
		}
		if start == end && !(start == "00:00" && end == "24:00") {
			// zero-length tail, e.g. an interval ending exactly at midnight
			continue
		}
		w := MuteWindow{Match: d.Match, Time: start + "-" + end, Date: day.Format(dateLayout)}
		if err := w.Normalize(); err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, nil
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// ActiveMuteWindows merges static windows with the decomposed dynamic ones.
// Dynamic windows that fail validation are skipped.
func ActiveMuteWindows(static []MuteWindow, dynamic []DynamicMuteWindow, tc TimeContext) []MuteWindow {
	out := make([]MuteWindow, 0, len(static)+len(dynamic))
	out = append(out, static...)
	for _, d := range dynamic {
		ws, err := d.Windows(tc)
		if err != nil {
			continue
		}
		out = append(out, ws...)
	}
	return out
}

// IsMutedBy reports whether any window silences identifier at t.
func IsMutedBy(windows []MuteWindow, identifier string, t time.Time, tc TimeContext) bool {
	for _, w := range windows {
		if w.IsMuted(identifier, t, tc) {
			return true
		}
	}
	return false
}
