package notify

import (
	"fmt"
	"io"
	"os"
	"sort"

	"go.uber.org/multierr"

	"github.com/hamed0406/watchdog/internal/config"
	"github.com/hamed0406/watchdog/internal/domain"
)

// Registry resolves channel names to configured channels. The web channel
// is always present.
type Registry struct {
	channels []Channel
}

func NewRegistry(channels ...Channel) *Registry {
	return &Registry{channels: channels}
}

// Lookup returns the first channel claiming name.
func (r *Registry) Lookup(name string) (Channel, bool) {
	for _, c := range r.channels {
		if c.IsMatchFor(name) {
			return c, true
		}
	}
	return nil, false
}

func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.channels))
	for _, c := range r.channels {
		out = append(out, c.Name())
	}
	return out
}

// Close releases transports that hold connections.
func (r *Registry) Close() error {
	var err error
	for _, c := range r.channels {
		if cl, ok := c.(io.Closer); ok {
			err = multierr.Append(err, cl.Close())
		}
	}
	return err
}

// Build creates every channel of the digest configuration.
func Build(d config.Digest, tc domain.TimeContext) (*Registry, error) {
	names := make([]string, 0, len(d.Channels))
	for name := range d.Channels {
		names = append(names, name)
	}
	sort.Strings(names)

	reg := &Registry{}
	hasWeb := false
	for _, name := range names {
		ch, err := buildChannel(name, d.Title, d.Channels[name], tc)
		if err != nil {
			_ = reg.Close()
			return nil, fmt.Errorf("channel %s: %w", name, err)
		}
		if name == domain.WebChannel {
			hasWeb = true
		}
		reg.channels = append(reg.channels, ch)
	}
	if !hasWeb {
		r, err := NewRenderer(d.Title, config.Template{}, tc)
		if err != nil {
			return nil, err
		}
		reg.channels = append(reg.channels, NewWeb(NewBase(domain.WebChannel, 0, r)))
	}
	return reg, nil
}

func buildChannel(name, title string, cfg config.Channel, tc domain.TimeContext) (Channel, error) {
	r, err := NewRenderer(title, cfg.Template, tc)
	if err != nil {
		return nil, err
	}
	base := NewBase(name, cfg.Interval.Std(), r)

	switch cfg.Type {
	case config.ChannelConsole:
		return NewTextChannel(base, NewConsole(os.Stdout)), nil
	case config.ChannelSlack:
		return NewTextChannel(base, NewSlack(cfg.Webhook)), nil
	case config.ChannelTelegram:
		return NewTelegram(base, cfg.BotToken, cfg.ChatID, cfg.APIBase)
	case config.ChannelNATS:
		pub, err := NewNATSPublisher(cfg.URL, cfg.Subject)
		if err != nil {
			return nil, err
		}
		return NewBusChannel(base, pub), nil
	case config.ChannelKafka:
		return NewBusChannel(base, NewKafkaPublisher(cfg.Brokers, cfg.Topic)), nil
	case config.ChannelWeb:
		return NewWeb(base), nil
	default:
		return nil, fmt.Errorf("unknown channel type %q", cfg.Type)
	}
}
