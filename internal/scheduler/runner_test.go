package scheduler

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/watchdog/internal/config"
	"github.com/hamed0406/watchdog/internal/digest"
	"github.com/hamed0406/watchdog/internal/domain"
	"github.com/hamed0406/watchdog/internal/probe"
	"github.com/hamed0406/watchdog/internal/repo/memory"
)

// diskFullStore fails every log write and delegates the rest.
type diskFullStore struct {
	*memory.Store
}

func (diskFullStore) PersistResults(ctx context.Context, results []domain.Result) error {
	return errors.New("disk full")
}

type scriptedChecker struct {
	mu    sync.Mutex
	up    bool
	calls int
}

func (s *scriptedChecker) Set(up bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.up = up
}

func (s *scriptedChecker) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *scriptedChecker) Check(ctx context.Context, target string) probe.CheckResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.up {
		return probe.CheckResult{Name: "HTTP", Success: true, StatusCode: 200, Message: "200 OK"}
	}
	return probe.CheckResult{Name: "HTTP", Success: false, StatusCode: 503, Message: "503 Service Unavailable"}
}

type panicChecker struct{}

func (panicChecker) Check(ctx context.Context, target string) probe.CheckResult {
	panic("boom")
}

func loadConfig(t *testing.T, yaml string) *config.File {
	t.Helper()
	path := filepath.Join(t.TempDir(), "watchdog.yaml")
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}
	f, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return f
}

const oneCheck = `
digest:
  title: test
  channels:
    chat: {type: console}
checks:
  - type: web
    label: health
    identifier: https://a.com
    every: %EVERY%
    alert:
      channels: [chat]
      rules:
        - count: 1
`

type harness struct {
	runner  *Runner
	store   *memory.Store
	clock   *fakeClock
	chat    *fakeChannel
	web     *fakeChannel
	checker probe.Checker
}

func newHarness(t *testing.T, cfg string, checker probe.Checker) *harness {
	t.Helper()
	h := &harness{
		store:   memory.New(),
		clock:   &fakeClock{now: t0},
		chat:    newFakeChannel("chat", time.Hour),
		web:     newFakeChannel("web", time.Hour),
		checker: checker,
	}
	r := NewRunner(zap.NewNop(), h.store, time.Minute, 2, probe.Options{HTTPTimeout: time.Second})
	r.Clock = h.clock.Now
	r.NewChecker = func(config.Check, probe.Options) (probe.Checker, error) { return h.checker, nil }
	r.NewChannels = func(config.Digest, domain.TimeContext) (ChannelSet, error) {
		return fakeChannels{"chat": h.chat, "web": h.web}, nil
	}
	if err := r.Apply(loadConfig(t, cfg)); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	h.runner = r
	return h
}

func (h *harness) counts(t *testing.T) (snapshots, logs int) {
	t.Helper()
	s, err := h.store.Snapshots(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	l, err := h.store.Logs(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	return len(s), len(l)
}

func TestRunner_RequiresConfiguration(t *testing.T) {
	r := NewRunner(zap.NewNop(), memory.New(), time.Minute, 1, probe.Options{})
	if _, err := r.RunOnce(context.Background()); err == nil {
		t.Fatalf("RunOnce without configuration must fail")
	}
}

func TestRunner_OutageLifecycle(t *testing.T) {
	ctx := context.Background()
	chk := &scriptedChecker{}
	h := newHarness(t, strings.Replace(oneCheck, "%EVERY%", "1", 1), chk)

	d, err := h.runner.RunOnce(ctx)
	if err != nil {
		t.Fatalf("cycle 1: %v", err)
	}
	if d.State != digest.StateOutageTriggered {
		t.Fatalf("cycle 1 state=%s", d.State)
	}
	if s, l := h.counts(t); s != 1 || l != 1 {
		t.Fatalf("cycle 1 want 1 snapshot/1 log, got %d/%d", s, l)
	}
	if got := h.chat.Calls(); len(got) != 1 || got[0] != "new" {
		t.Fatalf("cycle 1 chat calls=%v", got)
	}

	h.clock.Advance(time.Minute)
	d, err = h.runner.RunOnce(ctx)
	if err != nil {
		t.Fatalf("cycle 2: %v", err)
	}
	if d.State != digest.StateOutageOngoing {
		t.Fatalf("cycle 2 state=%s", d.State)
	}
	if got := h.chat.Calls(); len(got) != 2 || got[1] != "ping" {
		t.Fatalf("cycle 2 should ping inside the interval, calls=%v", got)
	}

	chk.Set(true)
	h.clock.Advance(time.Minute)
	d, err = h.runner.RunOnce(ctx)
	if err != nil {
		t.Fatalf("cycle 3: %v", err)
	}
	if d.State != digest.StateOutageResolved {
		t.Fatalf("cycle 3 state=%s", d.State)
	}
	if s, l := h.counts(t); s != 0 || l != 0 {
		t.Fatalf("cycle 3 want 0 snapshots/0 logs, got %d/%d", s, l)
	}
	if got := h.chat.Calls(); len(got) != 3 || got[2] != "resolved" {
		t.Fatalf("cycle 3 chat calls=%v", got)
	}
	if states, _ := h.store.Alerts(ctx); len(states) != 0 {
		t.Fatalf("alert states should be cleared: %+v", states)
	}

	h.clock.Advance(time.Minute)
	if d, _ = h.runner.RunOnce(ctx); d.State != digest.StateOK {
		t.Fatalf("cycle 4 state=%s", d.State)
	}
}

func TestRunner_EverySkipsOffCycles(t *testing.T) {
	ctx := context.Background()
	chk := &scriptedChecker{}
	h := newHarness(t, strings.Replace(oneCheck, "%EVERY%", "2", 1), chk)

	// t0 is an even minute since the epoch, so the check is due.
	if _, err := h.runner.RunOnce(ctx); err != nil {
		t.Fatal(err)
	}
	h.clock.Advance(time.Minute)
	d, err := h.runner.RunOnce(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if chk.Calls() != 1 {
		t.Fatalf("check should run every second cycle, ran %d times", chk.Calls())
	}
	if d.State != digest.StateOutageOngoing || len(d.Snapshots) != 1 {
		t.Fatalf("a skipped check must carry its snapshot forward: %s %+v", d.State, d.Snapshots)
	}

	h.clock.Advance(time.Minute)
	if _, err := h.runner.RunOnce(ctx); err != nil {
		t.Fatal(err)
	}
	if chk.Calls() != 2 {
		t.Fatalf("check should be due again, ran %d times", chk.Calls())
	}
}

func TestRunner_ProbePanicBecomesMonitorFailure(t *testing.T) {
	h := newHarness(t, strings.Replace(oneCheck, "%EVERY%", "1", 1), panicChecker{})
	d, err := h.runner.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if len(d.Snapshots) != 1 || !strings.Contains(d.Snapshots[0].LastResult, "probe crashed") {
		t.Fatalf("want crash snapshot, got %+v", d.Snapshots)
	}
}

func TestRunner_UnknownChannelRaisesConfigError(t *testing.T) {
	cfg := `
digest:
  channels:
    chat: {type: console}
checks:
  - type: web
    identifier: https://a.com
    alert:
      channels: [pager]
`
	chk := &scriptedChecker{up: true}
	h := newHarness(t, cfg, chk)

	d, err := h.runner.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if d.State != digest.StateOutageTriggered || len(d.Snapshots) != 1 {
		t.Fatalf("want one config error outage, got %s %+v", d.State, d.Snapshots)
	}
	s := d.Snapshots[0]
	if s.Type != "watchdog" || s.Label != "config" || s.Identifier != "channel:pager" {
		t.Fatalf("unexpected snapshot %+v", s)
	}
	if !s.AlertsOn(domain.WebChannel) || s.AlertsOn("pager") {
		t.Fatalf("config errors go to the dashboard only: %+v", s.Alert)
	}
	if got := h.web.Calls(); len(got) != 1 || got[0] != "new" {
		t.Fatalf("web calls=%v", got)
	}
}

func TestRunner_ApplySwapsConfiguration(t *testing.T) {
	chk := &scriptedChecker{up: true}
	h := newHarness(t, strings.Replace(oneCheck, "%EVERY%", "1", 1), chk)

	empty := loadConfig(t, "digest:\n  title: empty\n")
	if err := h.runner.Apply(empty); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if _, err := h.runner.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if chk.Calls() != 0 {
		t.Fatalf("removed checks must not run")
	}
	if err := h.runner.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestRunner_PersistenceFailureStillAlerts(t *testing.T) {
	cfg := strings.Replace(strings.Replace(oneCheck, "%EVERY%", "1", 1), "checks:", `  alert-policies:
    config-error:
      channels: [chat]
      rules:
        - count: 1
checks:`, 1)
	h := newHarness(t, cfg, &scriptedChecker{})
	h.runner.Store = diskFullStore{h.store}
	if err := h.runner.Apply(loadConfig(t, cfg)); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	d, err := h.runner.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if d.State != digest.StateOutageTriggered {
		t.Fatalf("state=%s, snapshots=%+v", d.State, d.Snapshots)
	}
	got := map[string]bool{}
	for _, s := range d.Snapshots {
		got[s.Key().String()] = s.AlertsOn("chat")
	}
	if !got["watchdog|config|persistence"] || !got["web|health|https://a.com"] {
		t.Fatalf("both the failing check and the persistence error should alert: %v", got)
	}
	if calls := h.chat.Calls(); len(calls) != 1 || calls[0] != "new" {
		t.Fatalf("chat calls=%v", calls)
	}
}

func TestRunner_DueToleratesTickJitter(t *testing.T) {
	r := NewRunner(zap.NewNop(), memory.New(), time.Minute, 1, probe.Options{})
	// t0 is an even minute: a tick slightly early still lands on that slot,
	// and the next tick slightly late lands on the odd one.
	if !r.due(2, t0.Add(-100*time.Millisecond)) {
		t.Fatalf("early tick should count as the even slot")
	}
	if r.due(2, t0.Add(time.Minute+100*time.Millisecond)) {
		t.Fatalf("late tick should count as the odd slot")
	}
	if !r.due(2, t0.Add(2*time.Minute-100*time.Millisecond)) {
		t.Fatalf("third tick should be due again")
	}
}
