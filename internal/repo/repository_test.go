package repo_test

import (
	"errors"
	"testing"
	"time"

	"github.com/hamed0406/watchdog/internal/domain"
	"github.com/hamed0406/watchdog/internal/repo"
	"github.com/hamed0406/watchdog/internal/repo/memory"
	pg "github.com/hamed0406/watchdog/internal/repo/postgres"
	"github.com/hamed0406/watchdog/internal/repo/sqlite"
)

// Compile-time interface satisfaction checks.
// Using external test package avoids import cycle.
func TestInterfaceSatisfaction(t *testing.T) {
	var _ repo.Store = memory.New()
	var _ repo.Store = (*pg.Store)(nil)
	var _ repo.Store = (*sqlite.Store)(nil)
}

func TestFailingLogs(t *testing.T) {
	now := time.Now()
	logs := repo.FailingLogs([]domain.Result{
		{Date: now, Type: "web", Identifier: "a"},
		{Date: now, Type: "web", Identifier: "b", Success: true},
		domain.NewSkippedResult(domain.UniqueKey{Type: "web", Identifier: "c"}, now, nil),
	})
	if len(logs) != 1 || logs[0].Identifier != "a" {
		t.Fatalf("unexpected logs %+v", logs)
	}
}

func TestCheckUniqueSnapshots(t *testing.T) {
	a := domain.Snapshot{Type: "web", Label: "h", Identifier: "a"}
	b := domain.Snapshot{Type: "web", Label: "h", Identifier: "b"}
	if err := repo.CheckUniqueSnapshots([]domain.Snapshot{a, b}); err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if err := repo.CheckUniqueSnapshots([]domain.Snapshot{a, b, a}); !errors.Is(err, repo.ErrDuplicateSnapshot) {
		t.Fatalf("expected ErrDuplicateSnapshot, got %v", err)
	}
}

func TestPrepareMuteWindowKeepsExisting(t *testing.T) {
	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	w := &domain.DynamicMuteWindow{ID: "fixed", CreatedAt: created}
	repo.PrepareMuteWindow(w)
	if w.ID != "fixed" || !w.CreatedAt.Equal(created) {
		t.Fatalf("existing values overwritten: %+v", w)
	}
	fresh := &domain.DynamicMuteWindow{}
	repo.PrepareMuteWindow(fresh)
	if fresh.ID == "" || fresh.CreatedAt.IsZero() {
		t.Fatalf("expected generated values: %+v", fresh)
	}
}
