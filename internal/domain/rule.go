package domain

import (
	"errors"
	"fmt"
	"regexp"
	"time"
)

// RuleType selects how failure logs are counted.
type RuleType int

const (
	// RuleConsecutiveCount fires after Count consecutive failures.
	RuleConsecutiveCount RuleType = iota + 1
	// RuleAnyInWindow fires after Any failures within the trailing Window.
	RuleAnyInWindow
)

func (t RuleType) String() string {
	switch t {
	case RuleConsecutiveCount:
		return "consecutive_count"
	case RuleAnyInWindow:
		return "any_in_window"
	default:
		return fmt.Sprintf("rule_type(%d)", int(t))
	}
}

// DefaultWindow applies to any-in-window rules without an explicit window.
const DefaultWindow = 5 * time.Minute

// AlertRule is one threshold definition of an alert configuration.
type AlertRule struct {
	Count  int        `json:"count,omitempty" yaml:"count" toml:"count"`
	Any    int        `json:"any,omitempty" yaml:"any" toml:"any"`
	Window string     `json:"window,omitempty" yaml:"window" toml:"window"`
	Days   StringList `json:"days,omitempty" yaml:"days" toml:"days"`
	Time   StringList `json:"time,omitempty" yaml:"time" toml:"time"`
	Match  string     `json:"match,omitempty" yaml:"match" toml:"match"`

	IsDefault bool `json:"-" yaml:"-" toml:"-"`

	window time.Duration
	days   []time.Weekday
	ranges []TimeRange
	match  *regexp.Regexp
}

// DefaultRule is used when a configuration has no rules.
func DefaultRule() AlertRule {
	return AlertRule{Count: 1, IsDefault: true}
}

// Normalize applies defaults and compiles the rule's filters.
func (r *AlertRule) Normalize() error {
	if r.Count < 0 || r.Any < 0 {
		return errors.New("rule: count and any must not be negative")
	}
	if r.Count > 0 && r.Any > 0 {
		return errors.New("rule: count and any are mutually exclusive")
	}
	if r.Count == 0 && r.Any == 0 {
		r.Count = 1
	}
	if r.Any > 0 {
		r.window = DefaultWindow
		if r.Window != "" {
			d, err := time.ParseDuration(r.Window)
			if err != nil {
				return fmt.Errorf("rule: window %q: %w", r.Window, err)
			}
			if d < 0 {
				d = -d
			}
			r.window = d
		}
	}

	days, err := parseWeekdays(r.Days)
	if err != nil {
		return fmt.Errorf("rule: %w", err)
	}
	r.days = days

	r.ranges = nil
	for _, s := range r.Time {
		tr, err := ParseTimeRange(s)
		if err != nil {
			return fmt.Errorf("rule: %w", err)
		}
		r.ranges = append(r.ranges, tr)
	}

	r.match = nil
	if r.Match != "" {
		re, err := regexp.Compile(r.Match)
		if err != nil {
			return fmt.Errorf("rule: match %q: %w", r.Match, err)
		}
		r.match = re
	}
	return nil
}

func (r AlertRule) Type() RuleType {
	if r.Count > 0 {
		return RuleConsecutiveCount
	}
	return RuleAnyInWindow
}

// WindowDuration is the trailing window of an any-in-window rule.
func (r AlertRule) WindowDuration() time.Duration {
	if r.window == 0 {
		return DefaultWindow
	}
	return r.window
}

// FromDate is the start of the rule's trailing window relative to now.
func (r AlertRule) FromDate(now time.Time) time.Time {
	return now.Add(-r.WindowDuration())
}

// HasMatch reports whether the rule is restricted to matching keys.
func (r AlertRule) HasMatch() bool {
	return r.Match != ""
}

// MatchesKey reports whether the rule's match regex matches the key string.
func (r AlertRule) MatchesKey(key UniqueKey) bool {
	if r.match == nil {
		return false
	}
	return r.match.MatchString(key.String())
}

// IsValidNow reports whether the rule's day and time filters admit t.
func (r AlertRule) IsValidNow(t time.Time, tc TimeContext) bool {
	local := tc.In(t)
	if len(r.days) > 0 && !containsWeekday(r.days, local.Weekday()) {
		return false
	}
	if len(r.ranges) == 0 {
		return true
	}
	for _, tr := range r.ranges {
		if tr.Contains(local) {
			return true
		}
	}
	return false
}
