package digest

import (
	"sort"
	"time"

	"github.com/hamed0406/watchdog/internal/domain"
)

// ResolvedEntry is an affected key that recovered inside a still-open alert.
type ResolvedEntry struct {
	Key          string    `json:"key"`
	Channel      string    `json:"channel"`
	Date         time.Time `json:"date"`
	ResolvedDate time.Time `json:"resolved_date"`
	Result       string    `json:"result"`
}

// Status is the read-only dashboard view.
type Status struct {
	Title     string               `json:"title"`
	Generated time.Time            `json:"generated"`
	Alerts    []*domain.AlertState `json:"alerts"`
	Active    []domain.Snapshot    `json:"active"`
	Muted     []domain.Snapshot    `json:"muted"`
	Resolved  []ResolvedEntry      `json:"resolved"`
}

// BuildStatus partitions the web-alertable snapshots into active and muted
// and lists recovered keys of open alerts.
func BuildStatus(title string, alerts []*domain.AlertState, snapshots []domain.Snapshot, mutes []domain.MuteWindow, tc domain.TimeContext) Status {
	now := tc.Now()
	st := Status{
		Title:     title,
		Generated: now,
		Alerts:    alerts,
		Active:    []domain.Snapshot{},
		Muted:     []domain.Snapshot{},
		Resolved:  []ResolvedEntry{},
	}
	if st.Alerts == nil {
		st.Alerts = []*domain.AlertState{}
	}

	for _, s := range snapshots {
		if !s.AlertsOn(domain.WebChannel) {
			continue
		}
		if domain.IsMutedBy(mutes, s.Key().String(), now, tc) {
			st.Muted = append(st.Muted, s)
		} else {
			st.Active = append(st.Active, s)
		}
	}

	seen := make(map[string]struct{})
	for _, a := range alerts {
		for _, k := range a.Affected.Keys() {
			e, _ := a.Affected.Get(k)
			if e.ResolvedDate == nil {
				continue
			}
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
			st.Resolved = append(st.Resolved, ResolvedEntry{
				Key:          k,
				Channel:      a.Channel,
				Date:         e.Date,
				ResolvedDate: *e.ResolvedDate,
				Result:       e.Result,
			})
		}
	}
	sort.Slice(st.Resolved, func(i, j int) bool {
		return st.Resolved[i].ResolvedDate.After(st.Resolved[j].ResolvedDate)
	})
	return st
}
