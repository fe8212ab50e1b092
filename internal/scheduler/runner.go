package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/hamed0406/watchdog/internal/config"
	"github.com/hamed0406/watchdog/internal/digest"
	"github.com/hamed0406/watchdog/internal/domain"
	"github.com/hamed0406/watchdog/internal/notify"
	"github.com/hamed0406/watchdog/internal/probe"
	"github.com/hamed0406/watchdog/internal/repo"
)

// ChannelSet is a closable set of notification channels.
type ChannelSet interface {
	Channels
	Close() error
}

// BuildChannels creates the channels of a digest configuration.
func BuildChannels(d config.Digest, tc domain.TimeContext) (ChannelSet, error) {
	reg, err := notify.Build(d, tc)
	if err != nil {
		return nil, err
	}
	return reg, nil
}

// cycle is everything derived from one configuration file.
type cycle struct {
	file      *config.File
	tc        domain.TimeContext
	engine    *digest.Engine
	alerter   *Alerter
	channels  ChannelSet
	checkers  map[string]probe.Checker
	checkErrs map[string]error
}

// Runner executes evaluation cycles: probes, results, digest, alerts.
type Runner struct {
	Logger      *zap.Logger
	Store       repo.Store
	Interval    time.Duration
	Concurrency int
	Probes      probe.Options

	// Overridable for tests.
	Clock       func() time.Time
	NewChecker  func(config.Check, probe.Options) (probe.Checker, error)
	NewChannels func(config.Digest, domain.TimeContext) (ChannelSet, error)

	mu  sync.Mutex // one cycle at a time; guards cur
	cur *cycle
}

func NewRunner(
	logger *zap.Logger,
	store repo.Store,
	interval time.Duration,
	concurrency int,
	opts probe.Options,
) *Runner {
	if concurrency < 1 {
		concurrency = 1
	}
	if interval <= 0 {
		interval = time.Minute
	}
	return &Runner{
		Logger:      logger,
		Store:       store,
		Interval:    interval,
		Concurrency: concurrency,
		Probes:      opts,
		NewChecker:  probe.ForCheck,
		NewChannels: BuildChannels,
	}
}

// Apply swaps in a new configuration. It waits for a running cycle to
// finish and releases the resources of the previous configuration.
func (r *Runner) Apply(f *config.File) error {
	tc := f.TimeContext()
	if r.Clock != nil {
		tc.Clock = r.Clock
	}
	channels, err := r.NewChannels(f.Digest, tc)
	if err != nil {
		return fmt.Errorf("build channels: %w", err)
	}

	next := &cycle{
		file:      f,
		tc:        tc,
		engine:    digest.NewEngine(r.Logger, r.Store, tc, f.Digest.AlertPolicies, r.Concurrency),
		alerter:   NewAlerter(r.Logger, r.Store, r.Store, f.Digest.MuteWindows, channels, tc),
		channels:  channels,
		checkers:  make(map[string]probe.Checker, len(f.Checks)),
		checkErrs: make(map[string]error),
	}
	for _, c := range f.Checks {
		key := c.Key().String()
		chk, err := r.NewChecker(c, r.Probes)
		if err != nil {
			r.Logger.Warn("runner_checker_error", zap.String("key", key), zap.Error(err))
			next.checkErrs[key] = err
			continue
		}
		next.checkers[key] = chk
	}

	r.mu.Lock()
	old := r.cur
	r.cur = next
	r.mu.Unlock()

	if old != nil {
		if err := multierr.Combine(old.channels.Close(), probe.CloseAll(old.checkers)); err != nil {
			r.Logger.Warn("runner_release_error", zap.Error(err))
		}
	}
	r.Logger.Info("runner_config_applied",
		zap.Int("checks", len(f.Checks)),
		zap.Int("channels", len(f.Digest.Channels)),
	)
	return nil
}

// Close releases channels and checkers of the current configuration.
func (r *Runner) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cur == nil {
		return nil
	}
	err := multierr.Combine(r.cur.channels.Close(), probe.CloseAll(r.cur.checkers))
	r.cur = nil
	return err
}

// Run starts the loop. It does an immediate pass, then runs each tick.
// Stops when ctx is cancelled.
func (r *Runner) Run(ctx context.Context) {
	t := time.NewTicker(r.Interval)
	defer t.Stop()

	r.runLogged(ctx)

	for {
		select {
		case <-ctx.Done():
			r.Logger.Info("runner_stopped")
			return
		case <-t.C:
			r.runLogged(ctx)
		}
	}
}

func (r *Runner) runLogged(ctx context.Context) {
	if _, err := r.RunOnce(ctx); err != nil {
		r.Logger.Error("runner_cycle_failed", zap.Error(err))
	}
}

// RunOnce executes a single cycle.
func (r *Runner) RunOnce(ctx context.Context) (digest.Digest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur := r.cur
	if cur == nil {
		return digest.Digest{}, errors.New("runner: no configuration applied")
	}

	now := cur.tc.Now()
	results := r.probeAll(ctx, cur, now)
	results = append(results, r.configErrors(cur, now)...)

	if err := r.Store.PersistResults(ctx, results); err != nil {
		r.Logger.Error("runner_persist_results_failed", zap.Error(err))
		if !allConfigErrors(results) {
			results = append(results, domain.NewConfigErrorResult(
				"persistence",
				"persist results: "+err.Error(),
				now,
				configErrorAlert(cur.file),
			))
		}
		domain.MarkUnlogged(results)
	}

	d, err := cur.engine.GenerateDigest(ctx, results)
	if err != nil {
		return digest.Digest{}, fmt.Errorf("generate digest: %w", err)
	}
	if d.State == digest.StateOK {
		return d, nil
	}
	if err := cur.alerter.Dispatch(ctx, d); err != nil {
		return d, fmt.Errorf("dispatch alerts: %w", err)
	}
	return d, nil
}

// due reports whether a check with the given every runs this cycle. The
// decision depends only on the wall clock so restarts keep the cadence.
// now is rounded to the nearest interval so ticks landing slightly early or
// late still count as the same slot.
func (r *Runner) due(every int, now time.Time) bool {
	if every <= 1 {
		return true
	}
	step := int64(r.Interval)
	n := (now.UnixNano() + step/2) / step
	return n%int64(every) == 0
}

func (r *Runner) probeAll(ctx context.Context, cur *cycle, now time.Time) []domain.Result {
	checks := cur.file.Checks
	results := make([]domain.Result, len(checks))

	sem := make(chan struct{}, r.Concurrency)
	var wg sync.WaitGroup

	for i, chk := range checks {
		i, c := i, chk // avoid loop var capture
		key := c.Key()
		if !r.due(c.Every, now) {
			results[i] = domain.NewSkippedResult(key, now, c.Alert)
			continue
		}
		checker, ok := cur.checkers[key.String()]
		if !ok {
			results[i] = monitorFailure(c, now, fmt.Sprintf("probe unavailable: %v", cur.checkErrs[key.String()]))
			continue
		}

		sem <- struct{}{}
		wg.Add(1)
		go func() {
			defer func() { <-sem }()
			defer wg.Done()
			results[i] = r.probeOne(ctx, c, checker, now)
		}()
	}

	wg.Wait()
	return results
}

func (r *Runner) probeOne(ctx context.Context, c config.Check, checker probe.Checker, now time.Time) (res domain.Result) {
	key := c.Key().String()
	defer func() {
		if p := recover(); p != nil {
			r.Logger.Error("runner_probe_panic", zap.String("key", key), zap.Any("panic", p))
			res = monitorFailure(c, now, fmt.Sprintf("probe crashed: %v", p))
		}
	}()

	cctx, cancel := context.WithTimeout(ctx, r.budget(c))
	defer cancel()

	start := time.Now()
	out := checker.Check(cctx, c.Identifier)
	took := time.Since(start)

	if !out.Success && errors.Is(cctx.Err(), context.DeadlineExceeded) {
		r.Logger.Warn("runner_probe_timeout", zap.String("key", key), zap.Duration("took", took))
		return monitorFailure(c, now, "probe timed out: "+out.Message)
	}

	r.Logger.Debug("runner_checked",
		zap.String("key", key),
		zap.Int("status", out.StatusCode),
		zap.Bool("up", out.Success),
		zap.Float64("latency_ms", out.LatencyMS),
		zap.String("reason", out.Message),
	)
	return domain.Result{
		Date:       now,
		Type:       c.Type,
		Label:      c.Label,
		Identifier: c.Identifier,
		Success:    out.Success,
		ResultMsg:  out.Message,
		Payload:    out,
		TimeTaken:  took,
		Alert:      c.Alert,
	}
}

// budget bounds one probe including its retries.
func (r *Runner) budget(c config.Check) time.Duration {
	timeout := r.Probes.HTTPTimeout
	if c.Timeout > 0 {
		timeout = c.Timeout.Std()
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	attempts := r.Probes.RetryAttempts
	if attempts < 1 {
		attempts = 1
	}
	return time.Duration(attempts)*(timeout+r.Probes.RetryBackoff) + time.Second
}

func (r *Runner) configErrors(cur *cycle, now time.Time) []domain.Result {
	var out []domain.Result
	alert := configErrorAlert(cur.file)
	for _, name := range cur.file.UnknownChannels() {
		out = append(out, domain.NewConfigErrorResult(
			"channel:"+name,
			fmt.Sprintf("channel %q is referenced but not configured", name),
			now,
			alert,
		))
	}
	return out
}

// configErrorAlert routes configuration problems through the config-error
// policy when one is defined, otherwise only to the dashboard.
func configErrorAlert(f *config.File) *domain.AlertConfiguration {
	if p, ok := f.Digest.AlertPolicies[config.ConfigErrorPolicy]; ok && p != nil {
		return p
	}
	return (*domain.AlertConfiguration)(nil).WebOnly()
}

func allConfigErrors(results []domain.Result) bool {
	for _, r := range results {
		if !r.ConfigError {
			return false
		}
	}
	return true
}

func monitorFailure(c config.Check, now time.Time, msg string) domain.Result {
	return domain.Result{
		Date:           now,
		Type:           c.Type,
		Label:          c.Label,
		Identifier:     c.Identifier,
		Success:        false,
		ResultMsg:      msg,
		Alert:          c.Alert,
		MonitorFailure: true,
	}
}
