package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/hamed0406/watchdog/internal/digest"
	"github.com/hamed0406/watchdog/internal/domain"
	"github.com/hamed0406/watchdog/internal/notify"
	"github.com/hamed0406/watchdog/internal/repo"
)

// Channels resolves configured channel names.
type Channels interface {
	Lookup(name string) (notify.Channel, bool)
}

// Alerter turns a digest into per-channel outage notifications and keeps one
// AlertState per channel across cycles.
type Alerter struct {
	Logger      *zap.Logger
	Alerts      repo.AlertStore
	Mutes       repo.MuteWindowStore // optional dynamic windows
	Static      []domain.MuteWindow
	Channels    Channels
	Time        domain.TimeContext
	Concurrency int
}

func NewAlerter(
	logger *zap.Logger,
	alerts repo.AlertStore,
	mutes repo.MuteWindowStore,
	static []domain.MuteWindow,
	channels Channels,
	tc domain.TimeContext,
) *Alerter {
	return &Alerter{
		Logger:      logger,
		Alerts:      alerts,
		Mutes:       mutes,
		Static:      static,
		Channels:    channels,
		Time:        tc,
		Concurrency: 4,
	}
}

type dispatchKind int

const (
	dispatchNew dispatchKind = iota
	dispatchExisting
	dispatchResolved
)

func (k dispatchKind) String() string {
	switch k {
	case dispatchNew:
		return "new"
	case dispatchExisting:
		return "existing"
	default:
		return "resolved"
	}
}

type dispatch struct {
	kind    dispatchKind
	channel notify.Channel
	state   *domain.AlertState
	// persist is decided by the dispatch itself.
	persist bool
}

// Dispatch reconciles the stored alert states with the digest, notifies
// every affected channel and persists the surviving states. Send failures
// are returned together but never stop other channels or persistence.
func (a *Alerter) Dispatch(ctx context.Context, d digest.Digest) error {
	if d.State == digest.StateOK {
		return nil
	}

	states, err := a.Alerts.Alerts(ctx)
	if err != nil {
		return fmt.Errorf("load alert states: %w", err)
	}
	now := a.Time.Now()
	windows := a.muteWindows(ctx)

	existing := make(map[string]*domain.AlertState, len(states))
	for _, s := range states {
		refreshAffected(s, d.Snapshots, now)
		existing[s.Channel] = s
	}
	affected := channelsAffected(d.Snapshots)

	var jobs []*dispatch
	add := func(kind dispatchKind, name string, state *domain.AlertState) {
		ch, ok := a.Channels.Lookup(name)
		if !ok {
			a.Logger.Warn("alerter_unknown_channel",
				zap.String("channel", name),
				zap.String("kind", kind.String()),
			)
			return
		}
		jobs = append(jobs, &dispatch{kind: kind, channel: ch, state: state})
	}
	for _, name := range affected {
		if s, ok := existing[name]; ok {
			add(dispatchExisting, name, s)
		} else {
			add(dispatchNew, name, domain.NewAlertState(name))
		}
	}
	inAffected := make(map[string]struct{}, len(affected))
	for _, name := range affected {
		inAffected[name] = struct{}{}
	}
	for _, s := range states {
		if _, ok := inAffected[s.Channel]; !ok {
			add(dispatchResolved, s.Channel, s)
		}
	}

	concurrency := a.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}
	sem := make(chan struct{}, concurrency)
	var (
		wg      sync.WaitGroup
		errMu   sync.Mutex
		sendErr error
	)
	for _, job := range jobs {
		j := job
		sem <- struct{}{}
		wg.Add(1)
		go func() {
			defer func() { <-sem }()
			defer wg.Done()
			if err := a.run(ctx, j, d.Snapshots, windows, now); err != nil {
				a.Logger.Warn("alerter_send_failed",
					zap.String("channel", j.channel.Name()),
					zap.String("kind", j.kind.String()),
					zap.Error(err),
				)
				errMu.Lock()
				sendErr = multierr.Append(sendErr, err)
				errMu.Unlock()
			}
		}()
	}
	wg.Wait()

	var keep []*domain.AlertState
	for _, j := range jobs {
		if j.persist {
			keep = append(keep, j.state)
		}
	}
	if err := a.Alerts.PersistAlerts(ctx, keep); err != nil {
		return multierr.Append(sendErr, fmt.Errorf("persist alert states: %w", err))
	}

	a.Logger.Info("alerter_dispatched",
		zap.String("state", d.State.String()),
		zap.Int("channels", len(jobs)),
		zap.Int("persisted", len(keep)),
		zap.Bool("send_errors", sendErr != nil),
	)
	return sendErr
}

func (a *Alerter) run(ctx context.Context, j *dispatch, snapshots []domain.Snapshot, windows []domain.MuteWindow, now time.Time) error {
	ch, state := j.channel, j.state
	switch j.kind {
	case dispatchNew:
		applicable := a.unmutedFor(ch.Name(), snapshots, windows, now)
		if len(applicable) == 0 {
			state.Muted = true
			return ch.SendMutedAlert(ctx, state)
		}
		state.StartDate = earliest(applicable)
		for _, s := range applicable {
			state.Record(s)
		}
		if err := ch.SendNewAlert(ctx, applicable, state); err != nil {
			// not persisted: the outage is announced as new next cycle
			return err
		}
		state.MarkSent(now)
		j.persist = true
		return nil

	case dispatchExisting:
		j.persist = true
		applicable := a.unmutedFor(ch.Name(), snapshots, windows, now)
		if len(applicable) == 0 {
			state.Muted = true
			return ch.SendMutedAlert(ctx, state)
		}
		for _, s := range applicable {
			state.Record(s)
		}
		if ch.CanSendAlert(state, now) {
			if err := ch.SendOngoingAlert(ctx, applicable, state); err != nil {
				return err
			}
			state.MarkSent(now)
			return nil
		}
		return ch.PingAboutOngoingAlert(ctx, applicable, state)

	default:
		for _, key := range state.Affected.Keys() {
			if domain.IsMutedBy(windows, key, now, a.Time) {
				state.Affected.Delete(key)
			}
		}
		if state.Affected.Len() == 0 {
			state.Muted = true
			return ch.SendMutedAlert(ctx, state)
		}
		state.Resolve(now)
		return ch.SendResolvedAlert(ctx, state)
	}
}

func (a *Alerter) muteWindows(ctx context.Context) []domain.MuteWindow {
	if a.Mutes == nil {
		return a.Static
	}
	dynamic, err := a.Mutes.MuteWindows(ctx)
	if err != nil {
		a.Logger.Warn("alerter_mute_windows_error", zap.Error(err))
		return a.Static
	}
	return domain.ActiveMuteWindows(a.Static, dynamic, a.Time)
}

// unmutedFor returns the digestable snapshots routed to channel that no
// mute window currently silences.
func (a *Alerter) unmutedFor(channel string, snapshots []domain.Snapshot, windows []domain.MuteWindow, now time.Time) []domain.Snapshot {
	var out []domain.Snapshot
	for _, s := range snapshots {
		if !s.IsDigestable() || !s.AlertsOn(channel) {
			continue
		}
		if domain.IsMutedBy(windows, s.Key().String(), now, a.Time) {
			continue
		}
		out = append(out, s)
	}
	return out
}

// refreshAffected re-resolves every affected key against the current
// snapshots so durations use the true first-failure time. Keys that no
// longer have a snapshot are stamped resolved.
func refreshAffected(state *domain.AlertState, snapshots []domain.Snapshot, now time.Time) {
	for _, key := range state.Affected.Keys() {
		e, _ := state.Affected.Get(key)
		if snap, ok := domain.FindMatchingKeyFor(domain.ExplodeUniqueKey(key), snapshots); ok && snap.IsDigestable() {
			e.Date = snap.Date
			e.ResolvedDate = nil
		} else if e.ResolvedDate == nil {
			resolved := now
			e.ResolvedDate = &resolved
		}
		state.Affected.Set(key, e)
	}
}

func channelsAffected(snapshots []domain.Snapshot) []string {
	seen := make(map[string]struct{})
	for _, s := range snapshots {
		if !s.IsDigestable() {
			continue
		}
		for _, ch := range s.Alert.Channels {
			seen[ch] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for ch := range seen {
		out = append(out, ch)
	}
	sort.Strings(out)
	return out
}

func earliest(snapshots []domain.Snapshot) time.Time {
	var t time.Time
	for _, s := range snapshots {
		if t.IsZero() || s.Date.Before(t) {
			t = s.Date
		}
	}
	return t
}
