package runner

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/nholik/probe-sentinel/internal/check"
	"github.com/nholik/probe-sentinel/internal/healthcheck"
	"github.com/nholik/probe-sentinel/internal/metrics"
	"github.com/nholik/probe-sentinel/internal/notify"
	"github.com/nholik/probe-sentinel/internal/state"
	"github.com/nholik/probe-sentinel/internal/transition"
	"github.com/nholik/probe-sentinel/internal/verdict"
	"github.com/rs/zerolog"
)

// Ticker is the minimal interface needed for driving the runner loop.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type timeTicker struct {
	ticker *time.Ticker
}

func (t timeTicker) C() <-chan time.Time {
	return t.ticker.C
}

func (t timeTicker) Stop() {
	t.ticker.Stop()
}

// Runner evaluates a suite on a fixed interval and reports verdict transitions.
type Runner struct {
	logger        zerolog.Logger
	pollInterval  time.Duration
	tickerFactory func(time.Duration) Ticker
	runOnce       func(context.Context) error

	suiteName   string
	suiteMu     sync.RWMutex
	suite       *check.Suite
	fingerprint string

	stateStore   state.Store
	stateMu      *sync.Mutex
	lastSnapshot *state.SuiteSnapshot

	notifier notify.Notifier
	metrics  *metrics.Metrics
	tracker  *healthcheck.Tracker
}

// Option customizes runner behavior.
type Option func(*Runner)

// WithTickerFactory overrides how tickers are created.
func WithTickerFactory(factory func(time.Duration) Ticker) Option {
	return func(r *Runner) {
		r.tickerFactory = factory
	}
}

// WithRunOnce overrides the single-cycle execution step.
func WithRunOnce(runOnce func(context.Context) error) Option {
	return func(r *Runner) {
		r.runOnce = runOnce
	}
}

// WithSuite sets the suite evaluated by the default RunOnce.
func WithSuite(name string, suite *check.Suite, fingerprint string) Option {
	return func(r *Runner) {
		r.suiteName = name
		r.suite = suite
		r.fingerprint = fingerprint
	}
}

// WithStateStore enables state persistence for transitions.
func WithStateStore(store state.Store, lock *sync.Mutex) Option {
	return func(r *Runner) {
		r.stateStore = store
		r.stateMu = lock
	}
}

// WithNotifier sets where transitions are delivered.
func WithNotifier(notifier notify.Notifier) Option {
	return func(r *Runner) {
		r.notifier = notifier
	}
}

// WithMetrics records cycle and check metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Runner) {
		r.metrics = m
	}
}

// WithTracker records cycle completion for the health endpoints.
func WithTracker(tracker *healthcheck.Tracker) Option {
	return func(r *Runner) {
		r.tracker = tracker
	}
}

// New constructs a Runner with the given logger and poll interval.
func New(logger zerolog.Logger, pollInterval time.Duration, opts ...Option) *Runner {
	r := &Runner{
		logger:       logger,
		pollInterval: pollInterval,
		suiteName:    "default",
		tickerFactory: func(d time.Duration) Ticker {
			return timeTicker{ticker: time.NewTicker(d)}
		},
	}
	r.runOnce = r.defaultRunOnce

	for _, opt := range opts {
		opt(r)
	}
	if r.stateStore != nil && r.stateMu == nil {
		r.stateMu = &sync.Mutex{}
	}
	if r.notifier == nil {
		r.notifier = notify.NewNoop(logger, "")
	}

	return r
}

// SetSuite swaps the suite used by subsequent cycles.
func (r *Runner) SetSuite(suite *check.Suite, fingerprint string) {
	r.suiteMu.Lock()
	defer r.suiteMu.Unlock()
	r.suite = suite
	r.fingerprint = fingerprint
}

func (r *Runner) currentSuite() (*check.Suite, string) {
	r.suiteMu.RLock()
	defer r.suiteMu.RUnlock()
	return r.suite, r.fingerprint
}

// Run starts the main loop and blocks until the context is canceled.
func (r *Runner) Run(ctx context.Context) error {
	if r.pollInterval <= 0 {
		return errors.New("poll interval must be greater than zero")
	}

	if err := r.RunOnce(ctx); err != nil {
		r.logger.Error().Err(err).Msg("initial run cycle failed")
	}

	ticker := r.tickerFactory(r.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info().Msg("runner stopped")
			return nil
		case <-ticker.C():
			if err := r.RunOnce(ctx); err != nil {
				r.logger.Error().Err(err).Msg("run cycle failed")
			}
		}
	}
}

// RunOnce executes a single cycle of the runner.
func (r *Runner) RunOnce(ctx context.Context) error {
	return r.runOnce(ctx)
}

func (r *Runner) defaultRunOnce(ctx context.Context) error {
	suite, fingerprint := r.currentSuite()
	if suite == nil {
		return errors.New("no suite configured")
	}

	report := suite.Run(ctx)
	if err := ctx.Err(); err != nil {
		return wrapRuntime(OpRunSuite, err)
	}

	r.record(report)

	if err := r.evaluateAndPersist(ctx, report, fingerprint); err != nil {
		return err
	}

	r.metrics.SetLastSuccessfulCycleTimestamp(time.Now())
	return nil
}

func (r *Runner) record(report check.Report) {
	for _, result := range report.Results {
		r.metrics.ObserveCheck(result.Name, string(result.Verdict.Status), result.Duration)
	}
	r.metrics.SetChecksTotal(r.suiteName, string(verdict.StatusPass), report.Passed)
	r.metrics.SetChecksTotal(r.suiteName, string(verdict.StatusFail), report.Failed)
	r.metrics.SetChecksTotal(r.suiteName, string(verdict.StatusSkip), report.Skipped)
	r.metrics.ObserveCycleDuration(report.Duration)

	r.tracker.RecordCycle(report.Duration, healthcheck.Counts{
		Passed:  report.Passed,
		Failed:  report.Failed,
		Skipped: report.Skipped,
	})

	r.logger.Info().
		Str("suite", r.suiteName).
		Str("summary", report.Summary()).
		Dur("duration", report.Duration).
		Msg("cycle complete")
}

func (r *Runner) evaluateAndPersist(ctx context.Context, report check.Report, fingerprint string) error {
	prev, err := r.previousSnapshot(ctx)
	if err != nil {
		return wrapRuntime(OpLoadState, err)
	}
	if prev != nil && prev.Fingerprint != "" && prev.Fingerprint != fingerprint {
		r.logger.Info().
			Str("suite", r.suiteName).
			Str("previous_fingerprint", prev.Fingerprint).
			Str("fingerprint", fingerprint).
			Msg("suite definition changed")
	}

	transitions := transition.Detect(prev, report)
	r.logTransitions(transitions)

	var notifyErr error
	var undelivered []transition.CheckTransition
	if len(transitions) > 0 {
		if err := r.notifier.Notify(ctx, r.suiteName, transitions); err != nil {
			r.metrics.IncNotificationErrors()
			notifyErr = wrapRuntime(OpNotify, err)
			undelivered = transitions
		}
	}

	snapshot := transition.Snapshot(fingerprint, report, undelivered, prev)
	if err := r.saveSnapshot(ctx, snapshot); err != nil {
		return errors.Join(notifyErr, wrapRuntime(OpSaveState, err))
	}
	return notifyErr
}

func (r *Runner) previousSnapshot(ctx context.Context) (*state.SuiteSnapshot, error) {
	if r.stateStore == nil {
		return r.lastSnapshot, nil
	}

	var snapshot *state.SuiteSnapshot
	err := r.withStateLock(func() error {
		loaded, err := r.stateStore.Load(ctx)
		if err != nil {
			return err
		}
		if existing, ok := loaded.Suites[r.suiteName]; ok {
			snapshot = &existing
		}
		return nil
	})
	return snapshot, err
}

func (r *Runner) saveSnapshot(ctx context.Context, snapshot state.SuiteSnapshot) error {
	r.lastSnapshot = &snapshot
	if r.stateStore == nil {
		return nil
	}

	return r.withStateLock(func() error {
		loaded, err := r.stateStore.Load(ctx)
		if err != nil {
			return err
		}
		if loaded.Suites == nil {
			loaded.Suites = map[string]state.SuiteSnapshot{}
		}
		loaded.Suites[r.suiteName] = snapshot
		return r.stateStore.Save(ctx, loaded)
	})
}

func (r *Runner) logTransitions(transitions []transition.CheckTransition) {
	for _, change := range transitions {
		event := r.logger.Info()
		switch change.CurrentStatus {
		case verdict.StatusFail:
			event = r.logger.Error()
		case verdict.StatusSkip:
			event = r.logger.Warn()
		}
		event.
			Str("suite", r.suiteName).
			Str("check", change.Name).
			Str("previous_status", string(change.PreviousStatus)).
			Str("current_status", string(change.CurrentStatus)).
			Str("message", change.Message).
			Msg("check transition detected")
	}
}

func (r *Runner) withStateLock(fn func() error) error {
	if r.stateMu == nil {
		return fn()
	}
	r.stateMu.Lock()
	defer r.stateMu.Unlock()
	return fn()
}
