package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hamed0406/watchdog/internal/domain"
)

// Publisher sends one keyed payload to a message bus.
type Publisher interface {
	Publish(ctx context.Context, key string, payload []byte) error
	Close() error
}

// Event is the JSON document bus channels publish.
type Event struct {
	OutageID  string            `json:"outage_id"`
	Channel   string            `json:"channel"`
	Kind      Kind              `json:"kind"`
	Summary   string            `json:"summary"`
	Text      string            `json:"text"`
	StartDate time.Time         `json:"start_date"`
	SentAt    time.Time         `json:"sent_at"`
	Snapshots []domain.Snapshot `json:"snapshots,omitempty"`
	Affected  *domain.Affected  `json:"affected,omitempty"`
}

// BusChannel publishes alert events keyed by outage id so consumers can
// correlate the whole lifecycle.
type BusChannel struct {
	Base
	pub Publisher
}

var _ Channel = (*BusChannel)(nil)

func NewBusChannel(base Base, pub Publisher) *BusChannel {
	return &BusChannel{Base: base, pub: pub}
}

func (c *BusChannel) Close() error { return c.pub.Close() }

func (c *BusChannel) outageID(state *domain.AlertState) string {
	if state.State.Kind != domain.CorrelationBus || state.State.Key == "" {
		state.State = domain.BusCorrelation(uuid.NewString())
	}
	return state.State.Key
}

func (c *BusChannel) publish(ctx context.Context, m Message, snapshots []domain.Snapshot, state *domain.AlertState) error {
	ev := Event{
		OutageID:  c.outageID(state),
		Channel:   c.Name(),
		Kind:      m.Kind,
		Summary:   m.Summary,
		Text:      m.Plain(),
		StartDate: state.StartDate,
		SentAt:    c.Renderer().Now(),
		Snapshots: snapshots,
		Affected:  state.Affected,
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("%s: encode event: %w", c.Name(), err)
	}
	if err := c.pub.Publish(ctx, ev.OutageID, payload); err != nil {
		return fmt.Errorf("%s: publish %s: %w", c.Name(), m.Kind, err)
	}
	return nil
}

func (c *BusChannel) SendNewAlert(ctx context.Context, snapshots []domain.Snapshot, state *domain.AlertState) error {
	return c.publish(ctx, c.Renderer().New(snapshots, state), snapshots, state)
}

func (c *BusChannel) SendOngoingAlert(ctx context.Context, snapshots []domain.Snapshot, state *domain.AlertState) error {
	return c.publish(ctx, c.Renderer().Ongoing(snapshots, state), snapshots, state)
}

func (c *BusChannel) SendResolvedAlert(ctx context.Context, state *domain.AlertState) error {
	return c.publish(ctx, c.Renderer().Resolved(state), nil, state)
}

func (c *BusChannel) SendMutedAlert(ctx context.Context, state *domain.AlertState) error {
	return c.publish(ctx, c.Renderer().Muted(state), nil, state)
}

func (c *BusChannel) PingAboutOngoingAlert(ctx context.Context, snapshots []domain.Snapshot, state *domain.AlertState) error {
	return c.publish(ctx, c.Renderer().Ping(snapshots, state), nil, state)
}
