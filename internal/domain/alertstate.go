package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// AffectedEntry is one unique key tracked by an alert.
type AffectedEntry struct {
	Date         time.Time           `json:"date"`
	Result       string              `json:"result"`
	Alert        *AlertConfiguration `json:"alert,omitempty"`
	ResolvedDate *time.Time          `json:"resolved_date,omitempty"`
}

// Affected is an insertion-ordered map of unique key string to entry. Order
// matters: the first entry is the earliest affected key.
type Affected struct {
	keys    []string
	entries map[string]AffectedEntry
}

func NewAffected() *Affected {
	return &Affected{entries: make(map[string]AffectedEntry)}
}

func (a *Affected) Len() int {
	if a == nil {
		return 0
	}
	return len(a.keys)
}

// Keys returns the keys in insertion order.
func (a *Affected) Keys() []string {
	if a == nil {
		return nil
	}
	out := make([]string, len(a.keys))
	copy(out, a.keys)
	return out
}

func (a *Affected) Get(key string) (AffectedEntry, bool) {
	if a == nil {
		return AffectedEntry{}, false
	}
	e, ok := a.entries[key]
	return e, ok
}

// Set inserts or replaces an entry. Replacing keeps the original position.
func (a *Affected) Set(key string, e AffectedEntry) {
	if a.entries == nil {
		a.entries = make(map[string]AffectedEntry)
	}
	if _, ok := a.entries[key]; !ok {
		a.keys = append(a.keys, key)
	}
	a.entries[key] = e
}

func (a *Affected) Delete(key string) {
	if a == nil {
		return
	}
	if _, ok := a.entries[key]; !ok {
		return
	}
	delete(a.entries, key)
	for i, k := range a.keys {
		if k == key {
			a.keys = append(a.keys[:i], a.keys[i+1:]...)
			break
		}
	}
}

type affectedPair struct {
	Key   string        `json:"key"`
	Entry AffectedEntry `json:"entry"`
}

// MarshalJSON encodes the map as an ordered array of pairs.
func (a *Affected) MarshalJSON() ([]byte, error) {
	pairs := make([]affectedPair, 0, a.Len())
	if a != nil {
		for _, k := range a.keys {
			pairs = append(pairs, affectedPair{Key: k, Entry: a.entries[k]})
		}
	}
	return json.Marshal(pairs)
}

func (a *Affected) UnmarshalJSON(data []byte) error {
	var pairs []affectedPair
	if err := json.Unmarshal(data, &pairs); err != nil {
		return fmt.Errorf("decode affected: %w", err)
	}
	a.keys = nil
	a.entries = make(map[string]AffectedEntry, len(pairs))
	for _, p := range pairs {
		if p.Entry.Alert != nil {
			if err := p.Entry.Alert.Normalize(); err != nil {
				return fmt.Errorf("decode affected %q: %w", p.Key, err)
			}
		}
		a.Set(p.Key, p.Entry)
	}
	return nil
}

// CorrelationKind tags the channel-specific payload kept on an AlertState.
type CorrelationKind string

const (
	CorrelationNone CorrelationKind = ""
	CorrelationChat CorrelationKind = "chat"
	CorrelationBus  CorrelationKind = "bus"
)

// Correlation is channel-owned data round-tripped through persistence, such
// as the chat message an outage thread hangs off.
type Correlation struct {
	Kind      CorrelationKind `json:"kind,omitempty"`
	ChatID    string          `json:"chat_id,omitempty"`
	MessageID int             `json:"message_id,omitempty"`
	Key       string          `json:"key,omitempty"`
}

func ChatCorrelation(chatID string, messageID int) Correlation {
	return Correlation{Kind: CorrelationChat, ChatID: chatID, MessageID: messageID}
}

func BusCorrelation(key string) Correlation {
	return Correlation{Kind: CorrelationBus, Key: key}
}

// AlertState is the per-channel outage bookkeeping spanning many cycles.
type AlertState struct {
	Channel       string      `json:"channel"`
	StartDate     time.Time   `json:"start_date"`
	LastAlertDate *time.Time  `json:"last_alert_date,omitempty"`
	Affected      *Affected   `json:"affected"`
	State         Correlation `json:"state"`
	Resolved      bool        `json:"resolved"`
	Muted         bool        `json:"muted"`
}

func NewAlertState(channel string) *AlertState {
	return &AlertState{Channel: channel, Affected: NewAffected()}
}

// ShouldPersist reports whether the state survives to the next cycle.
func (a *AlertState) ShouldPersist() bool {
	return a.Affected.Len() > 0 && !a.Muted
}

// Record stores or refreshes the entry for snapshot s.
func (a *AlertState) Record(s Snapshot) {
	if a.Affected == nil {
		a.Affected = NewAffected()
	}
	a.Affected.Set(s.Key().String(), AffectedEntry{Date: s.Date, Result: s.LastResult, Alert: s.Alert})
}

// MarkSent stamps the throttle marker.
func (a *AlertState) MarkSent(now time.Time) {
	a.LastAlertDate = &now
}

// Resolve stamps every open entry as resolved at now.
func (a *AlertState) Resolve(now time.Time) {
	a.Resolved = true
	for _, k := range a.Affected.Keys() {
		e, _ := a.Affected.Get(k)
		if e.ResolvedDate == nil {
			e.ResolvedDate = &now
			a.Affected.Set(k, e)
		}
	}
}

// EarliestDate returns the earliest entry date, falling back to StartDate.
func (a *AlertState) EarliestDate() time.Time {
	earliest := a.StartDate
	for _, k := range a.Affected.Keys() {
		e, _ := a.Affected.Get(k)
		if earliest.IsZero() || e.Date.Before(earliest) {
			earliest = e.Date
		}
	}
	return earliest
}
