package domain

import "time"

// MonitorLog records one failure occurrence. Logs accumulate across cycles
// until a rule consumes them.
type MonitorLog struct {
	ID         int64     `json:"id"`
	Date       time.Time `json:"date"`
	Type       string    `json:"type"`
	Label      string    `json:"label"`
	Identifier string    `json:"identifier"`
	Success    bool      `json:"success"`
	ResultMsg  string    `json:"result_msg"`
}

func (l MonitorLog) Key() UniqueKey {
	return UniqueKey{Type: l.Type, Label: l.Label, Identifier: l.Identifier}
}

// LogFromResult converts a result into the log row a store appends.
func LogFromResult(r Result) MonitorLog {
	return MonitorLog{
		Date:       r.Date,
		Type:       r.Type,
		Label:      r.Label,
		Identifier: r.Identifier,
		Success:    r.Success,
		ResultMsg:  r.ResultMsg,
	}
}

// Snapshot is the current digest state for one unique key.
//
// Date is the earliest relevant failure time, not the time the snapshot was
// written, so an outage keeps its true start across cycles.
type Snapshot struct {
	Type       string              `json:"type"`
	Label      string              `json:"label"`
	Identifier string              `json:"identifier"`
	LastResult string              `json:"last_result"`
	Success    bool                `json:"success"`
	Date       time.Time           `json:"date"`
	Alert      *AlertConfiguration `json:"alert_config,omitempty"`
}

func (s Snapshot) Key() UniqueKey {
	return UniqueKey{Type: s.Type, Label: s.Label, Identifier: s.Identifier}
}

func (s Snapshot) IsDigestable() bool {
	return s.Alert.HasChannels()
}

// AlertsOn reports whether the snapshot is digestable towards channel.
func (s Snapshot) AlertsOn(channel string) bool {
	return s.Alert.HasChannel(channel)
}

// CountDigestable returns how many snapshots can raise an alert.
func CountDigestable(snapshots []Snapshot) int {
	n := 0
	for _, s := range snapshots {
		if s.IsDigestable() {
			n++
		}
	}
	return n
}
