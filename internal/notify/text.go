package notify

import (
	"context"
	"fmt"

	"github.com/hamed0406/watchdog/internal/domain"
)

// TextChannel sends every notification as a titled plain-text message.
type TextChannel struct {
	Base
	notifier Notifier
}

var _ Channel = (*TextChannel)(nil)

func NewTextChannel(base Base, n Notifier) *TextChannel {
	return &TextChannel{Base: base, notifier: n}
}

func (c *TextChannel) send(ctx context.Context, m Message) error {
	if err := c.notifier.Send(ctx, m.Headline(), m.Body()); err != nil {
		return fmt.Errorf("%s: send %s alert: %w", c.Name(), m.Kind, err)
	}
	return nil
}

func (c *TextChannel) SendNewAlert(ctx context.Context, snapshots []domain.Snapshot, state *domain.AlertState) error {
	return c.send(ctx, c.Renderer().New(snapshots, state))
}

func (c *TextChannel) SendOngoingAlert(ctx context.Context, snapshots []domain.Snapshot, state *domain.AlertState) error {
	return c.send(ctx, c.Renderer().Ongoing(snapshots, state))
}

func (c *TextChannel) SendResolvedAlert(ctx context.Context, state *domain.AlertState) error {
	return c.send(ctx, c.Renderer().Resolved(state))
}

// SendMutedAlert repeats every cycle while a window lasts; it is sent as a
// one-line notice.
func (c *TextChannel) SendMutedAlert(ctx context.Context, state *domain.AlertState) error {
	return c.send(ctx, c.Renderer().Muted(state).HeadlineOnly())
}

func (c *TextChannel) PingAboutOngoingAlert(ctx context.Context, snapshots []domain.Snapshot, state *domain.AlertState) error {
	return c.send(ctx, c.Renderer().Ping(snapshots, state))
}
