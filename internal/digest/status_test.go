package digest

import (
	"testing"
	"time"

	"github.com/hamed0406/watchdog/internal/domain"
)

func TestBuildStatus_PartitionsMutedAndResolved(t *testing.T) {
	tc := domain.TimeContext{Location: time.UTC, Clock: func() time.Time { return t0 }}
	web := &domain.AlertConfiguration{Channels: []string{domain.WebChannel}}

	snaps := []domain.Snapshot{
		{Type: "web", Label: "h", Identifier: "a", Alert: web},
		{Type: "db", Label: "orders", Identifier: "primary", Alert: web},
		{Type: "web", Label: "h", Identifier: "quiet"},
	}
	mute := domain.MuteWindow{Match: `^db\|`}
	if err := mute.Normalize(); err != nil {
		t.Fatalf("normalize: %v", err)
	}

	a := domain.NewAlertState(domain.WebChannel)
	a.Record(snaps[0])
	a.Record(domain.Snapshot{Type: "web", Label: "h", Identifier: "gone"})
	e, _ := a.Affected.Get("web|h|gone")
	resolved := t0.Add(-time.Minute)
	e.ResolvedDate = &resolved
	a.Affected.Set("web|h|gone", e)

	st := BuildStatus("prod", []*domain.AlertState{a}, snaps, []domain.MuteWindow{mute}, tc)
	if st.Title != "prod" || !st.Generated.Equal(t0) {
		t.Fatalf("header wrong: %+v", st)
	}
	if len(st.Active) != 1 || st.Active[0].Identifier != "a" {
		t.Fatalf("active=%+v", st.Active)
	}
	if len(st.Muted) != 1 || st.Muted[0].Identifier != "primary" {
		t.Fatalf("muted=%+v", st.Muted)
	}
	if len(st.Resolved) != 1 || st.Resolved[0].Key != "web|h|gone" {
		t.Fatalf("resolved=%+v", st.Resolved)
	}
}

func TestBuildStatus_EmptyListsAreNotNil(t *testing.T) {
	st := BuildStatus("", nil, nil, nil, domain.TimeContext{})
	if st.Alerts == nil || st.Active == nil || st.Muted == nil || st.Resolved == nil {
		t.Fatalf("lists must encode as [] not null: %+v", st)
	}
}
