package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/hamed0406/watchdog/internal/domain"
	"github.com/hamed0406/watchdog/internal/repo"
)

var _ repo.Store = (*Store)(nil)

// Store keeps everything in process memory. State does not survive a
// restart, so it is meant for tests and single-shot runs.
type Store struct {
	mu        sync.RWMutex
	nextID    int64
	logs      []domain.MonitorLog
	snapshots []domain.Snapshot
	alerts    []*domain.AlertState
	mutes     map[string]domain.DynamicMuteWindow
}

func New() *Store {
	return &Store{
		logs:  make([]domain.MonitorLog, 0, 128),
		mutes: make(map[string]domain.DynamicMuteWindow),
	}
}

// ---- LogStore ----

func (m *Store) Logs(ctx context.Context) ([]domain.MonitorLog, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.MonitorLog, len(m.logs))
	copy(out, m.logs)
	return out, nil
}

func (m *Store) PersistResults(ctx context.Context, results []domain.Result) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range repo.FailingLogs(results) {
		m.nextID++
		l.ID = m.nextID
		m.logs = append(m.logs, l)
	}
	return nil
}

// ---- SnapshotStore ----

func (m *Store) Snapshots(ctx context.Context) ([]domain.Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Snapshot, len(m.snapshots))
	copy(out, m.snapshots)
	return out, nil
}

func (m *Store) MutateAndPersistSnapshotState(ctx context.Context, snapshots []domain.Snapshot, logIDs []int64) error {
	if err := repo.CheckUniqueSnapshots(snapshots); err != nil {
		return err
	}
	drop := make(map[int64]struct{}, len(logIDs))
	for _, id := range logIDs {
		drop[id] = struct{}{}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.logs[:0]
	for _, l := range m.logs {
		if _, ok := drop[l.ID]; !ok {
			kept = append(kept, l)
		}
	}
	m.logs = kept
	m.snapshots = append([]domain.Snapshot(nil), snapshots...)
	return nil
}

// ---- AlertStore ----

// Alerts returns deep copies so callers can mutate freely before persisting.
func (m *Store) Alerts(ctx context.Context) ([]*domain.AlertState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*domain.AlertState, 0, len(m.alerts))
	for _, a := range m.alerts {
		out = append(out, cloneAlert(a))
	}
	return out, nil
}

func (m *Store) PersistAlerts(ctx context.Context, alerts []*domain.AlertState) error {
	keep := repo.Persistable(alerts)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.alerts = m.alerts[:0]
	for _, a := range keep {
		m.alerts = append(m.alerts, cloneAlert(a))
	}
	return nil
}

func cloneAlert(a *domain.AlertState) *domain.AlertState {
	c := *a
	if a.LastAlertDate != nil {
		t := *a.LastAlertDate
		c.LastAlertDate = &t
	}
	c.Affected = domain.NewAffected()
	for _, k := range a.Affected.Keys() {
		e, _ := a.Affected.Get(k)
		c.Affected.Set(k, e)
	}
	return &c
}

// ---- MuteWindowStore ----

func (m *Store) MuteWindows(ctx context.Context) ([]domain.DynamicMuteWindow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.DynamicMuteWindow, 0, len(m.mutes))
	for _, w := range m.mutes {
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *Store) AddMuteWindow(ctx context.Context, w *domain.DynamicMuteWindow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	repo.PrepareMuteWindow(w)
	m.mutes[w.ID] = *w
	return nil
}

func (m *Store) DeleteMuteWindow(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.mutes[id]; !ok {
		return repo.ErrNotFound
	}
	delete(m.mutes, id)
	return nil
}

func (m *Store) Close() error { return nil }
