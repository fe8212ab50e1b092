package digest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/watchdog/internal/domain"
	"github.com/hamed0406/watchdog/internal/repo"
)

// ErrUnknownRuleType aborts a cycle when a rule has no evaluation branch.
var ErrUnknownRuleType = errors.New("unknown alert rule type")

// Store is the persistence the engine needs.
type Store interface {
	repo.LogStore
	repo.SnapshotStore
}

type Engine struct {
	Logger      *zap.Logger
	Store       Store
	Time        domain.TimeContext
	Policies    map[string]*domain.AlertConfiguration // digest-level, by exception-policy name
	Concurrency int
}

func NewEngine(logger *zap.Logger, store Store, tc domain.TimeContext, policies map[string]*domain.AlertConfiguration, concurrency int) *Engine {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Engine{
		Logger:      logger,
		Store:       store,
		Time:        tc,
		Policies:    policies,
		Concurrency: concurrency,
	}
}

// GenerateDigest reconciles results against the stored snapshots and logs,
// persists the new snapshot set together with the consumed log deletions,
// and reports the resulting outage state.
func (e *Engine) GenerateDigest(ctx context.Context, results []domain.Result) (Digest, error) {
	prior, err := e.Store.Snapshots(ctx)
	if err != nil {
		return Digest{}, fmt.Errorf("load snapshots: %w", err)
	}
	logs, err := e.Store.Logs(ctx)
	if err != nil {
		return Digest{}, fmt.Errorf("load logs: %w", err)
	}

	now := e.Time.Now()
	dctx := newContext(now, prior, logs)
	toEvaluate := e.resultsToEvaluate(results, prior, now)

	sem := make(chan struct{}, e.Concurrency)
	var (
		wg       sync.WaitGroup
		errMu    sync.Mutex
		firstErr error
	)
	for _, res := range toEvaluate {
		r := res
		sem <- struct{}{}
		wg.Add(1)
		go func() {
			defer func() { <-sem }()
			defer wg.Done()
			if err := e.evaluate(dctx, r); err != nil {
				errMu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				errMu.Unlock()
			}
		}()
	}
	wg.Wait()
	if firstErr != nil {
		return Digest{}, firstErr
	}

	snapshots := dctx.Snapshots()
	logIDs := dctx.DeletedLogIDs()
	if err := e.Store.MutateAndPersistSnapshotState(ctx, snapshots, logIDs); err != nil {
		return Digest{}, fmt.Errorf("persist snapshots: %w", err)
	}

	d := Digest{
		State:     ComputeState(domain.CountDigestable(prior), domain.CountDigestable(snapshots)),
		Previous:  prior,
		Snapshots: snapshots,
	}
	e.Logger.Info("digest_generated",
		zap.String("state", d.State.String()),
		zap.Int("results", len(toEvaluate)),
		zap.Int("snapshots", len(snapshots)),
		zap.Int("logs_deleted", len(logIDs)),
	)
	return d, nil
}

// resultsToEvaluate adds an inferred OK result for every prior snapshot that
// no result reported on. A skipped result counts as a report.
func (e *Engine) resultsToEvaluate(results []domain.Result, prior []domain.Snapshot, now time.Time) []domain.Result {
	out := append([]domain.Result(nil), results...)
	for _, snap := range prior {
		if _, ok := domain.FindMatchingKeyFor(snap.Key(), results); ok {
			continue
		}
		inferred := domain.Result{
			Date:       now,
			Type:       snap.Type,
			Label:      snap.Label,
			Identifier: snap.Identifier,
			Success:    true,
			ResultMsg:  "no result reported, assuming ok",
			Alert:      snap.Alert,
		}
		e.Logger.Info("digest_inferred_ok", zap.String("key", snap.Key().String()))
		out = append(out, inferred)
	}
	return out
}

// effectiveAlert resolves the exception policy and the rule gating r.
func (e *Engine) effectiveAlert(r domain.Result, now time.Time) (*domain.AlertConfiguration, *domain.AlertRule) {
	alert := r.Alert
	if r.MonitorFailure && alert != nil && alert.ExceptionPolicy != "" {
		if p, ok := e.Policies[alert.ExceptionPolicy]; ok {
			alert = p
		} else {
			e.Logger.Warn("digest_unknown_exception_policy",
				zap.String("key", r.Key().String()),
				zap.String("policy", alert.ExceptionPolicy),
			)
		}
	}
	if alert == nil {
		return nil, nil
	}
	rule := alert.FindFirstValidRule(r.Key(), now, e.Time)
	switch {
	case rule == nil:
		return nil, nil
	case rule.IsDefault:
		return alert.WebOnly(), rule
	default:
		return alert, rule
	}
}

func (e *Engine) evaluate(c *Context, r domain.Result) error {
	key := r.Key()
	prior, hasPrior := c.PriorFor(key)

	if r.Skipped {
		if hasPrior {
			c.AddSnapshot(prior)
		}
		return nil
	}

	alert, rule := e.effectiveAlert(r, c.now)
	if rule == nil {
		d := domain.DefaultRule()
		rule = &d
	}

	logs := c.RetainedLogs(key)
	// occurrences counts the current failure even when its log row is missing.
	occurrences := func(retained []domain.MonitorLog) int {
		if r.Unlogged && !r.Success {
			return len(retained) + 1
		}
		return len(retained)
	}
	switch rule.Type() {
	case domain.RuleConsecutiveCount:
		if r.Success {
			c.DeleteLogs(logs)
			return nil
		}
		if occurrences(logs) < rule.Count {
			alert = nil
		}
		if excess := min(occurrences(logs)-rule.Count, len(logs)); excess > 0 {
			c.DeleteLogs(logs[:excess])
			logs = logs[excess:]
		}
		c.AddSnapshot(buildSnapshot(r, alert, prior, hasPrior, logs))
		return nil

	case domain.RuleAnyInWindow:
		from := rule.FromDate(c.now)
		var stale, inWindow []domain.MonitorLog
		for _, l := range logs {
			if l.Date.Before(from) {
				stale = append(stale, l)
			} else {
				inWindow = append(inWindow, l)
			}
		}
		c.DeleteLogs(stale)
		if r.Success {
			if len(inWindow) >= rule.Any {
				c.AddSnapshot(buildSnapshot(r, alert, prior, hasPrior, inWindow))
			}
			return nil
		}
		if occurrences(inWindow) < rule.Any {
			alert = nil
		}
		c.AddSnapshot(buildSnapshot(r, alert, prior, hasPrior, inWindow))
		return nil

	default:
		return fmt.Errorf("%w: %v for %s", ErrUnknownRuleType, rule.Type(), key)
	}
}

// buildSnapshot never moves the outage start forward: the prior date wins,
// then the earliest retained log, then the result itself.
func buildSnapshot(r domain.Result, alert *domain.AlertConfiguration, prior domain.Snapshot, hasPrior bool, logs []domain.MonitorLog) domain.Snapshot {
	s := domain.Snapshot{
		Type:       r.Type,
		Label:      r.Label,
		Identifier: r.Identifier,
		LastResult: r.ResultMsg,
		Success:    r.Success,
		Date:       r.Date,
		Alert:      alert,
	}
	switch {
	case hasPrior && r.Success:
		s.LastResult = prior.LastResult
		s.Success = prior.Success
		s.Date = prior.Date
	case hasPrior:
		s.Date = prior.Date
	case len(logs) > 0:
		s.Date = earliest(logs)
	}
	return s
}

func earliest(logs []domain.MonitorLog) time.Time {
	t := logs[0].Date
	for _, l := range logs[1:] {
		if l.Date.Before(t) {
			t = l.Date
		}
	}
	return t
}
