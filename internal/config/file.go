package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/hamed0406/watchdog/internal/domain"
)

const (
	DefaultChannelInterval = time.Hour
	// ConfigErrorPolicy is the alert policy used for configuration problems.
	ConfigErrorPolicy = "config-error"
)

// Channel types understood by the notify package.
const (
	ChannelConsole  = "console"
	ChannelSlack    = "slack"
	ChannelTelegram = "telegram"
	ChannelNATS     = "nats"
	ChannelKafka    = "kafka"
	ChannelWeb      = "web"
)

// Check types understood by the probe package.
const (
	CheckWeb = "web"
	CheckSQL = "sql"
	CheckDNS = "dns"
)

// File is the watchdog configuration file.
type File struct {
	Digest Digest  `yaml:"digest" toml:"digest"`
	Checks []Check `yaml:"checks" toml:"checks"`
}

type Digest struct {
	Title         string                                `yaml:"title" toml:"title"`
	Timezone      string                                `yaml:"timezone" toml:"timezone"`
	Channels      map[string]Channel                    `yaml:"channels" toml:"channels"`
	MuteWindows   []domain.MuteWindow                   `yaml:"mute-windows" toml:"mute-windows"`
	AlertPolicies map[string]*domain.AlertConfiguration `yaml:"alert-policies" toml:"alert-policies"`
}

type Template struct {
	Prefix  string `yaml:"prefix" toml:"prefix"`
	Postfix string `yaml:"postfix" toml:"postfix"`
	// Summary is a text/template rendered with the alert kind, title and count.
	Summary string `yaml:"summary" toml:"summary"`
}

// Channel holds the settings of one notification channel. Only the fields of
// its Type are used.
type Channel struct {
	Type     string   `yaml:"type" toml:"type"`
	Interval Duration `yaml:"interval" toml:"interval"`
	Template Template `yaml:"template" toml:"template"`

	// telegram
	BotToken string `yaml:"bot_token" toml:"bot_token"`
	ChatID   string `yaml:"chat_id" toml:"chat_id"`
	APIBase  string `yaml:"api_base" toml:"api_base"`
	// slack
	Webhook string `yaml:"webhook" toml:"webhook"`
	// nats
	URL     string `yaml:"url" toml:"url"`
	Subject string `yaml:"subject" toml:"subject"`
	// kafka
	Brokers []string `yaml:"brokers" toml:"brokers"`
	Topic   string   `yaml:"topic" toml:"topic"`
}

type Check struct {
	Type       string   `yaml:"type" toml:"type"`
	Label      string   `yaml:"label" toml:"label"`
	Identifier string   `yaml:"identifier" toml:"identifier"`
	Every      int      `yaml:"every" toml:"every"`
	Timeout    Duration `yaml:"timeout" toml:"timeout"`

	// web: also classify DNS resolution of the host
	DNS bool `yaml:"dns" toml:"dns"`
	// sql
	Driver string `yaml:"driver" toml:"driver"`
	DSN    string `yaml:"dsn" toml:"dsn"`
	Query  string `yaml:"query" toml:"query"`
	Expect string `yaml:"expect" toml:"expect"`

	Alert *domain.AlertConfiguration `yaml:"alert" toml:"alert"`
}

func (c Check) Key() domain.UniqueKey {
	return domain.UniqueKey{Type: c.Type, Label: c.Label, Identifier: c.Identifier}
}

// Load reads path (TOML when the extension is .toml, YAML otherwise),
// applies defaults and validates the result.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read file: %w", err)
	}

	f := &File{}
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if err := toml.NewDecoder(bytes.NewReader(data)).Decode(f); err != nil {
			return nil, fmt.Errorf("config: parse toml: %w", err)
		}
	} else {
		if err := yaml.Unmarshal(data, f); err != nil {
			return nil, fmt.Errorf("config: parse yaml: %w", err)
		}
	}

	if err := f.normalize(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return f, nil
}

func (f *File) normalize() error {
	if _, err := domain.NewTimeContext(f.Digest.Timezone); err != nil {
		return fmt.Errorf("digest.timezone: %w", err)
	}

	for name, ch := range f.Digest.Channels {
		if err := ch.validate(); err != nil {
			return fmt.Errorf("digest.channels.%s: %w", name, err)
		}
		if ch.Interval <= 0 {
			ch.Interval = Duration(DefaultChannelInterval)
		}
		f.Digest.Channels[name] = ch
	}

	for i := range f.Digest.MuteWindows {
		if err := f.Digest.MuteWindows[i].Normalize(); err != nil {
			return fmt.Errorf("digest.mute-windows[%d]: %w", i, err)
		}
	}

	for name, p := range f.Digest.AlertPolicies {
		if p == nil {
			return fmt.Errorf("digest.alert-policies.%s: empty policy", name)
		}
		if err := p.Normalize(); err != nil {
			return fmt.Errorf("digest.alert-policies.%s: %w", name, err)
		}
	}

	seen := make(map[string]struct{}, len(f.Checks))
	for i := range f.Checks {
		c := &f.Checks[i]
		if err := c.normalize(); err != nil {
			return fmt.Errorf("checks[%d] %s: %w", i, c.Identifier, err)
		}
		k := c.Key().String()
		if _, dup := seen[k]; dup {
			return fmt.Errorf("checks[%d]: duplicate check %s", i, k)
		}
		seen[k] = struct{}{}
	}
	return nil
}

func (ch Channel) validate() error {
	switch ch.Type {
	case ChannelConsole, ChannelWeb:
	case ChannelSlack:
		if ch.Webhook == "" {
			return fmt.Errorf("slack channel needs webhook")
		}
	case ChannelTelegram:
		if ch.BotToken == "" || ch.ChatID == "" {
			return fmt.Errorf("telegram channel needs bot_token and chat_id")
		}
	case ChannelNATS:
		if ch.URL == "" || ch.Subject == "" {
			return fmt.Errorf("nats channel needs url and subject")
		}
	case ChannelKafka:
		if len(ch.Brokers) == 0 || ch.Topic == "" {
			return fmt.Errorf("kafka channel needs brokers and topic")
		}
	default:
		return fmt.Errorf("unknown channel type %q", ch.Type)
	}
	if ch.Interval < 0 {
		return fmt.Errorf("negative interval %s", ch.Interval)
	}
	return nil
}

func (c *Check) normalize() error {
	switch c.Type {
	case CheckWeb, CheckDNS:
	case CheckSQL:
		if c.Driver == "" || c.DSN == "" {
			return fmt.Errorf("sql check needs driver and dsn")
		}
	default:
		return fmt.Errorf("unknown check type %q", c.Type)
	}
	if c.Identifier == "" {
		return fmt.Errorf("identifier is required")
	}
	if c.Label == "" {
		c.Label = c.Type
	}
	if c.Every < 0 {
		return fmt.Errorf("every must not be negative")
	}
	if c.Every == 0 {
		c.Every = 1
	}
	if c.Timeout < 0 {
		return fmt.Errorf("negative timeout %s", c.Timeout)
	}
	if c.Alert != nil {
		if err := c.Alert.Normalize(); err != nil {
			return fmt.Errorf("alert: %w", err)
		}
	}
	return nil
}

// TimeContext returns the digest time context. Load already validated it.
func (f *File) TimeContext() domain.TimeContext {
	tc, err := domain.NewTimeContext(f.Digest.Timezone)
	if err != nil {
		return domain.TimeContext{Clock: time.Now}
	}
	return tc
}

// UnknownChannels lists channel names referenced by checks or policies that
// have no channel configuration. The web channel is always known.
func (f *File) UnknownChannels() []string {
	missing := make(map[string]struct{})
	collect := func(a *domain.AlertConfiguration) {
		if a == nil {
			return
		}
		for _, name := range a.Channels {
			if name == domain.WebChannel {
				continue
			}
			if _, ok := f.Digest.Channels[name]; !ok {
				missing[name] = struct{}{}
			}
		}
	}
	for _, c := range f.Checks {
		collect(c.Alert)
	}
	for _, p := range f.Digest.AlertPolicies {
		collect(p)
	}
	out := make([]string, 0, len(missing))
	for name := range missing {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
