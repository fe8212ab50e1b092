package notify

import (
	"context"

	"github.com/hamed0406/watchdog/internal/domain"
)

// Web backs the dashboard. It sends nothing; the dashboard reads the
// persisted alert state and snapshots directly.
type Web struct {
	Base
}

var _ Channel = (*Web)(nil)

func NewWeb(base Base) *Web { return &Web{Base: base} }

func (w *Web) SendNewAlert(ctx context.Context, snapshots []domain.Snapshot, state *domain.AlertState) error {
	return nil
}

func (w *Web) SendOngoingAlert(ctx context.Context, snapshots []domain.Snapshot, state *domain.AlertState) error {
	return nil
}

func (w *Web) SendResolvedAlert(ctx context.Context, state *domain.AlertState) error { return nil }

func (w *Web) SendMutedAlert(ctx context.Context, state *domain.AlertState) error { return nil }

func (w *Web) PingAboutOngoingAlert(ctx context.Context, snapshots []domain.Snapshot, state *domain.AlertState) error {
	return nil
}
