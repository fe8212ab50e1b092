package digest

import "github.com/hamed0406/watchdog/internal/domain"

// State is the outage state of a whole cycle.
type State int

const (
	StateOK State = iota
	StateOutageTriggered
	StateOutageOngoing
	StateOutageResolved
)

func (s State) String() string {
	switch s {
	case StateOK:
		return "ok"
	case StateOutageTriggered:
		return "outage_triggered"
	case StateOutageOngoing:
		return "outage_ongoing"
	case StateOutageResolved:
		return "outage_resolved"
	default:
		return "unknown"
	}
}

// ComputeState derives the cycle state from digestable snapshot counts
// before and after evaluation.
func ComputeState(before, after int) State {
	switch {
	case before == 0 && after == 0:
		return StateOK
	case before == 0:
		return StateOutageTriggered
	case after == 0:
		return StateOutageResolved
	default:
		return StateOutageOngoing
	}
}

// Digest is the outcome of one cycle.
type Digest struct {
	State     State
	Previous  []domain.Snapshot
	Snapshots []domain.Snapshot
}
