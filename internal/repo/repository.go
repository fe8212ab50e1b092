package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hamed0406/watchdog/internal/domain"
)

var (
	// ErrNotFound is returned when a record addressed by id does not exist.
	ErrNotFound = errors.New("not found")
	// ErrDuplicateSnapshot is returned when two snapshots share a unique key.
	ErrDuplicateSnapshot = errors.New("duplicate snapshot key")
)

// Ports (interfaces): the digest engine and alerter only see these.

// LogStore keeps one row per failure occurrence.
type LogStore interface {
	// Logs returns every retained log ordered by id ascending.
	Logs(ctx context.Context) ([]domain.MonitorLog, error)
	// PersistResults appends a log row for every failing, non-skipped result.
	PersistResults(ctx context.Context, results []domain.Result) error
}

type SnapshotStore interface {
	Snapshots(ctx context.Context) ([]domain.Snapshot, error)
	// MutateAndPersistSnapshotState atomically deletes the given log ids and
	// replaces the whole snapshot table.
	MutateAndPersistSnapshotState(ctx context.Context, snapshots []domain.Snapshot, logIDs []int64) error
}

type AlertStore interface {
	Alerts(ctx context.Context) ([]*domain.AlertState, error)
	// PersistAlerts atomically replaces the alert table, keeping only states
	// that report ShouldPersist.
	PersistAlerts(ctx context.Context, alerts []*domain.AlertState) error
}

type MuteWindowStore interface {
	MuteWindows(ctx context.Context) ([]domain.DynamicMuteWindow, error)
	// AddMuteWindow assigns ID and CreatedAt when they are empty.
	AddMuteWindow(ctx context.Context, w *domain.DynamicMuteWindow) error
	// DeleteMuteWindow returns ErrNotFound when id is unknown.
	DeleteMuteWindow(ctx context.Context, id string) error
}

// Store is the full persistence contract.
type Store interface {
	LogStore
	SnapshotStore
	AlertStore
	MuteWindowStore
	Close() error
}

// FailingLogs returns the log rows PersistResults must append.
func FailingLogs(results []domain.Result) []domain.MonitorLog {
	out := make([]domain.MonitorLog, 0, len(results))
	for _, r := range results {
		if r.Success || r.Skipped {
			continue
		}
		out = append(out, domain.LogFromResult(r))
	}
	return out
}

// Persistable filters alert states down to those that survive the cycle.
func Persistable(alerts []*domain.AlertState) []*domain.AlertState {
	out := make([]*domain.AlertState, 0, len(alerts))
	for _, a := range alerts {
		if a != nil && a.ShouldPersist() {
			out = append(out, a)
		}
	}
	return out
}

// CheckUniqueSnapshots enforces one snapshot per unique key.
func CheckUniqueSnapshots(snapshots []domain.Snapshot) error {
	seen := make(map[string]struct{}, len(snapshots))
	for _, s := range snapshots {
		k := s.Key().String()
		if _, ok := seen[k]; ok {
			return fmt.Errorf("%w: %s", ErrDuplicateSnapshot, k)
		}
		seen[k] = struct{}{}
	}
	return nil
}

// PrepareMuteWindow fills the id and creation time adapters assign on insert.
func PrepareMuteWindow(w *domain.DynamicMuteWindow) {
	if w.ID == "" {
		w.ID = uuid.NewString()
	}
	if w.CreatedAt.IsZero() {
		w.CreatedAt = time.Now().UTC()
	}
}
