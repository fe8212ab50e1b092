package digest

import (
	"sort"
	"sync"
	"time"

	"github.com/hamed0406/watchdog/internal/domain"
)

// Context is the mutable state shared by all evaluations of one cycle.
type Context struct {
	mu        sync.Mutex
	now       time.Time
	prior     []domain.Snapshot
	logsByKey map[string][]domain.MonitorLog
	snapshots []domain.Snapshot
	deleted   map[int64]struct{}
}

func newContext(now time.Time, prior []domain.Snapshot, logs []domain.MonitorLog) *Context {
	byKey := make(map[string][]domain.MonitorLog)
	for _, l := range logs {
		k := l.Key().String()
		byKey[k] = append(byKey[k], l)
	}
	return &Context{
		now:       now,
		prior:     prior,
		logsByKey: byKey,
		deleted:   make(map[int64]struct{}),
	}
}

// PriorFor returns the previous snapshot matching key.
func (c *Context) PriorFor(key domain.UniqueKey) (domain.Snapshot, bool) {
	return domain.FindMatchingKeyFor(key, c.prior)
}

// RetainedLogs returns the logs of key not yet marked for deletion, oldest first.
func (c *Context) RetainedLogs(key domain.UniqueKey) []domain.MonitorLog {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []domain.MonitorLog
	for _, l := range c.logsByKey[key.String()] {
		if _, gone := c.deleted[l.ID]; !gone {
			out = append(out, l)
		}
	}
	return out
}

func (c *Context) DeleteLogs(logs []domain.MonitorLog) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, l := range logs {
		c.deleted[l.ID] = struct{}{}
	}
}

func (c *Context) AddSnapshot(s domain.Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snapshots = append(c.snapshots, s)
}

// Snapshots returns the new snapshot set ordered by key.
func (c *Context) Snapshots() []domain.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := append([]domain.Snapshot(nil), c.snapshots...)
	sort.Slice(out, func(i, j int) bool { return out[i].Key().String() < out[j].Key().String() })
	return out
}

// DeletedLogIDs returns the ids marked for deletion in ascending order.
func (c *Context) DeletedLogIDs() []int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]int64, 0, len(c.deleted))
	for id := range c.deleted {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
