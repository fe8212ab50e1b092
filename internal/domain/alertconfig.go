package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// WebChannel is always present; it feeds the read-only dashboard.
const WebChannel = "web"

// Link is an operator-facing reference attached to alerts.
type Link struct {
	Label string `json:"label" yaml:"label" toml:"label"`
	URL   string `json:"url" yaml:"url" toml:"url"`
}

// AlertConfiguration is the per-check alert block.
type AlertConfiguration struct {
	Channels        []string    `json:"channels" yaml:"channels" toml:"channels"`
	Rules           []AlertRule `json:"rules,omitempty" yaml:"rules" toml:"rules"`
	Links           []Link      `json:"links,omitempty" yaml:"links" toml:"links"`
	ExceptionPolicy string      `json:"exception-policy,omitempty" yaml:"exception-policy" toml:"exception-policy"`
}

// Normalize appends the web channel, drops incomplete links and compiles rules.
func (c *AlertConfiguration) Normalize() error {
	if !c.HasChannel(WebChannel) {
		c.Channels = append(c.Channels, WebChannel)
	}
	links := c.Links[:0]
	for _, l := range c.Links {
		if l.Label != "" && l.URL != "" {
			links = append(links, l)
		}
	}
	c.Links = links
	for i := range c.Rules {
		if err := c.Rules[i].Normalize(); err != nil {
			return fmt.Errorf("rules[%d]: %w", i, err)
		}
	}
	return nil
}

// HasChannels is nil-safe; a nil configuration has no channels.
func (c *AlertConfiguration) HasChannels() bool {
	return c != nil && len(c.Channels) > 0
}

func (c *AlertConfiguration) HasChannel(name string) bool {
	if c == nil {
		return false
	}
	for _, ch := range c.Channels {
		if ch == name {
			return true
		}
	}
	return false
}

// WebOnly returns a copy restricted to the dashboard channel.
func (c *AlertConfiguration) WebOnly() *AlertConfiguration {
	out := &AlertConfiguration{Channels: []string{WebChannel}}
	if c != nil {
		out.Links = c.Links
		out.ExceptionPolicy = c.ExceptionPolicy
	}
	return out
}

// FindFirstValidRule picks the rule that governs key at t.
//
// Rules whose match regex matches the key take precedence. When any exist,
// only they are considered; a nil return suppresses alerting for this cycle
// instead of falling back to unmatched rules.
func (c *AlertConfiguration) FindFirstValidRule(key UniqueKey, t time.Time, tc TimeContext) *AlertRule {
	if c == nil || len(c.Rules) == 0 {
		r := DefaultRule()
		return &r
	}

	var direct, unmatched []*AlertRule
	for i := range c.Rules {
		r := &c.Rules[i]
		switch {
		case r.MatchesKey(key):
			direct = append(direct, r)
		case !r.HasMatch():
			unmatched = append(unmatched, r)
		}
	}

	candidates := unmatched
	if len(direct) > 0 {
		candidates = direct
	}
	for _, r := range candidates {
		if r.IsValidNow(t, tc) {
			return r
		}
	}
	return nil
}

// DecodeAlertConfiguration parses a persisted configuration and normalizes it.
// Empty input yields nil.
func DecodeAlertConfiguration(data []byte) (*AlertConfiguration, error) {
	if len(data) == 0 || string(data) == "null" {
		return nil, nil
	}
	var c AlertConfiguration
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decode alert config: %w", err)
	}
	if err := c.Normalize(); err != nil {
		return nil, fmt.Errorf("decode alert config: %w", err)
	}
	return &c, nil
}

// EncodeAlertConfiguration is the inverse of DecodeAlertConfiguration.
func EncodeAlertConfiguration(c *AlertConfiguration) ([]byte, error) {
	if c == nil {
		return nil, nil
	}
	return json.Marshal(c)
}
