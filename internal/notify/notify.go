package notify

import (
	"context"
	"time"

	"github.com/hamed0406/watchdog/internal/config"
	"github.com/hamed0406/watchdog/internal/domain"
)

// Notifier delivers a titled text message. Text channels (slack, console)
// are built on top of it.
type Notifier interface {
	Send(ctx context.Context, title, text string) error
}

// Channel is one configured notification destination. Implementations may
// store correlation data in state.State; the alerter persists it untouched.
type Channel interface {
	Name() string
	IsMatchFor(name string) bool
	CanSendAlert(state *domain.AlertState, now time.Time) bool

	SendNewAlert(ctx context.Context, snapshots []domain.Snapshot, state *domain.AlertState) error
	SendOngoingAlert(ctx context.Context, snapshots []domain.Snapshot, state *domain.AlertState) error
	SendResolvedAlert(ctx context.Context, state *domain.AlertState) error
	SendMutedAlert(ctx context.Context, state *domain.AlertState) error
	// PingAboutOngoingAlert is the light heartbeat sent while throttled.
	PingAboutOngoingAlert(ctx context.Context, snapshots []domain.Snapshot, state *domain.AlertState) error
}

// Base carries what every channel shares: its name, throttle interval and
// message template.
type Base struct {
	name     string
	interval time.Duration
	renderer *Renderer
}

func NewBase(name string, interval time.Duration, r *Renderer) Base {
	if interval <= 0 {
		interval = config.DefaultChannelInterval
	}
	return Base{name: name, interval: interval, renderer: r}
}

func (b Base) Name() string { return b.name }

func (b Base) IsMatchFor(name string) bool { return b.name == name }

func (b Base) Interval() time.Duration { return b.interval }

func (b Base) Renderer() *Renderer { return b.renderer }

// CanSendAlert allows a full alert when none was sent yet or the last one is
// older than the interval.
func (b Base) CanSendAlert(state *domain.AlertState, now time.Time) bool {
	if state.LastAlertDate == nil {
		return true
	}
	return state.LastAlertDate.Add(b.interval).Before(now)
}
