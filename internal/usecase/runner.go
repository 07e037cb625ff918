package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"ArticlesRewriter/internal/ports"
)

const alertTimeout = 10 * time.Second

// ErrRunInProgress rejects a trigger that overlaps an active run.
var ErrRunInProgress = errors.New("a run is already in progress")

// Reason says what started a run.
type Reason string

const (
	ReasonStartup   Reason = "startup"
	ReasonScheduled Reason = "scheduled"
	ReasonManual    Reason = "manual"
)

// BreakerPolicy decides what a run does while the breaker is open.
type BreakerPolicy string

const (
	// PolicyDecline skips the run entirely.
	PolicyDecline BreakerPolicy = "decline"
	// PolicyScrapeOnly scrapes and stores originals without rewriting.
	PolicyScrapeOnly BreakerPolicy = "scrape-only"
)

// Run modes recorded in RunReport.Mode.
const (
	ModeFull       = "full"
	ModeScrapeOnly = "scrape-only"
	ModeDeclined   = "declined"
)

// TriggerRequest asks for one run.
type TriggerRequest struct {
	Reason          Reason
	MaxItems        int
	Keywords        []string
	MetaDescription string
}

// RunReport is the outcome of one run attempt.
type RunReport struct {
	Reason          Reason    `json:"reason"`
	Mode            string    `json:"mode"`
	MaxItems        int       `json:"maxItems"`
	StartedAt       time.Time `json:"startedAt"`
	FinishedAt      time.Time `json:"finishedAt"`
	DurationSeconds float64   `json:"durationSeconds"`
	RunResult
	Error string `json:"error,omitempty"`
}

// Status is the externally visible run state.
type Status struct {
	IsRunning        bool          `json:"isRunning"`
	LastRun          *RunReport    `json:"lastRun"`
	Schedule         string        `json:"schedule"`
	DefaultItemCount int           `json:"defaultItemCount"`
	StartupItemCount int           `json:"startupItemCount"`
	CircuitOpen      bool          `json:"circuitOpen"`
	CircuitReason    string        `json:"circuitReason,omitempty"`
	CircuitOpenedAt  *time.Time    `json:"circuitOpenedAt,omitempty"`
	BreakerPolicy    BreakerPolicy `json:"breakerPolicy"`
}

// PipelineRunner is the single pass the runner guards.
type PipelineRunner interface {
	Run(ctx context.Context, opts RunOptions) (RunResult, error)
}

// RunnerConfig holds the runner's static settings.
type RunnerConfig struct {
	Schedule          string
	StartupMaxItems   int
	ScheduledMaxItems int
	Policy            BreakerPolicy
}

// RunnerDeps wires the runner.
type RunnerDeps struct {
	Pipeline  PipelineRunner
	Settings  *SettingsService
	Rewriters ports.RewriterFactory
	Breaker   *Breaker
	Metrics   ports.Metrics
	// Notifier, when set, is told about failed runs and runs that opened the breaker.
	Notifier  ports.Notifier
	Logger    *slog.Logger
	Clock     func() time.Time
	Config    RunnerConfig
}

// JobRunner lets at most one pipeline run execute at a time and keeps the
// report of the last one.
type JobRunner struct {
	pipeline  PipelineRunner
	settings  *SettingsService
	rewriters ports.RewriterFactory
	breaker   *Breaker
	metrics   ports.Metrics
	notifier  ports.Notifier
	logger    *slog.Logger
	now       func() time.Time
	cfg       RunnerConfig

	running   atomic.Bool
	mu        sync.RWMutex
	lastRun   *RunReport
	drain     chan struct{}
	drainOnce sync.Once
}

// NewJobRunner builds a runner.
func NewJobRunner(deps RunnerDeps) *JobRunner {
	r := &JobRunner{
		pipeline:  deps.Pipeline,
		settings:  deps.Settings,
		rewriters: deps.Rewriters,
		breaker:   deps.Breaker,
		metrics:   deps.Metrics,
		notifier:  deps.Notifier,
		logger:    deps.Logger,
		now:       deps.Clock,
		cfg:       deps.Config,
		drain:     make(chan struct{}),
	}
	if r.breaker == nil {
		r.breaker = NewBreaker(nil)
	}
	if r.metrics == nil {
		r.metrics = nopMetrics{}
	}
	if r.logger == nil {
		r.logger = slog.New(slog.DiscardHandler)
	}
	if r.now == nil {
		r.now = time.Now
	}
	if r.cfg.Policy == "" {
		r.cfg.Policy = PolicyDecline
	}
	return r
}

// Trigger runs the pipeline synchronously. It returns ErrRunInProgress without
// running when another run is active, and ErrCircuitOpen with a declined report
// when the breaker is open under PolicyDecline. Pipeline errors and panics are
// recorded in the report, not returned.
func (r *JobRunner) Trigger(ctx context.Context, req TriggerRequest) (RunReport, error) {
	if !r.running.CompareAndSwap(false, true) {
		r.logger.Info("run rejected, another run is active", "reason", req.Reason)
		return RunReport{Reason: req.Reason}, ErrRunInProgress
	}
	defer r.running.Store(false)
	r.metrics.SetRunning(true)
	defer r.metrics.SetRunning(false)

	if req.Reason == "" {
		req.Reason = ReasonManual
	}
	report := RunReport{
		Reason:    req.Reason,
		MaxItems:  r.itemBudget(req),
		StartedAt: r.now().UTC(),
	}
	r.logger.Info("run starting", "reason", report.Reason, "max_items", report.MaxItems)

	runErr := r.execute(ctx, req, &report)

	report.FinishedAt = r.now().UTC()
	report.DurationSeconds = report.FinishedAt.Sub(report.StartedAt).Seconds()
	if runErr != nil && !errors.Is(runErr, ErrCircuitOpen) {
		report.Error = runErr.Error()
		r.logger.Error("run failed", "reason", report.Reason, "error", runErr)
	}

	result := "ok"
	switch {
	case report.Mode == ModeDeclined:
		result = "declined"
	case report.Error != "":
		result = "error"
	}
	r.metrics.RunFinished(string(report.Reason), result, report.FinishedAt.Sub(report.StartedAt))

	stored := report
	r.mu.Lock()
	r.lastRun = &stored
	r.mu.Unlock()

	r.alert(ctx, report)

	if report.Mode == ModeDeclined {
		return report, ErrCircuitOpen
	}
	return report, nil
}

func (r *JobRunner) execute(ctx context.Context, req TriggerRequest, report *RunReport) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("pipeline panic: %v", rec)
		}
	}()

	opts := RunOptions{
		MaxItems:        report.MaxItems,
		Keywords:        req.Keywords,
		MetaDescription: req.MetaDescription,
		Drain:           r.drain,
	}

	if r.breaker.IsOpen() {
		_, reason, _ := r.breaker.Snapshot()
		if r.cfg.Policy == PolicyDecline {
			report.Mode = ModeDeclined
			report.Error = "circuit open: " + reason
			r.logger.Warn("run declined, circuit open", "reason", report.Reason, "cause", reason)
			return ErrCircuitOpen
		}
		r.logger.Warn("circuit open, running scrape-only", "cause", reason)
	} else {
		rewriter, rerr := r.rewriter(ctx)
		if rerr != nil {
			return rerr
		}
		opts.Rewriter = rewriter
	}

	report.Mode = ModeScrapeOnly
	if opts.Rewriter != nil {
		report.Mode = ModeFull
	}
	if r.pipeline == nil {
		return errors.New("pipeline is not configured")
	}

	// Network calls are not cut off by the caller going away; Drain stops the
	// run between items instead.
	result, err := r.pipeline.Run(context.WithoutCancel(ctx), opts)
	report.RunResult = result
	return err
}

// alert reports failed runs and runs that opened the breaker. Declined runs
// stay quiet so an open breaker does not page on every tick.
func (r *JobRunner) alert(ctx context.Context, report RunReport) {
	if r.notifier == nil || report.Mode == ModeDeclined {
		return
	}
	var text string
	switch {
	case report.Error != "":
		text = fmt.Sprintf("%s run failed: %s", report.Reason, report.Error)
	case report.CircuitOpened:
		_, reason, _ := r.breaker.Snapshot()
		text = fmt.Sprintf("%s run stopped rewriting, circuit open: %s. Update the generative config to resume.", report.Reason, reason)
	default:
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), alertTimeout)
	defer cancel()
	if err := r.notifier.Notify(ctx, text); err != nil {
		r.logger.Warn("alert not delivered", "error", err)
	}
}

func (r *JobRunner) rewriter(ctx context.Context) (ports.Rewriter, error) {
	if r.settings == nil || r.rewriters == nil {
		return nil, nil
	}
	cfg, err := r.settings.Current(ctx)
	if err != nil {
		return nil, err
	}
	if !cfg.HasCredentials() {
		r.logger.Warn("generative credential or model not set, running scrape-only")
		return nil, nil
	}
	rewriter, err := r.rewriters.NewRewriter(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("build rewriter: %w", err)
	}
	return rewriter, nil
}

func (r *JobRunner) itemBudget(req TriggerRequest) int {
	if req.MaxItems > 0 {
		return req.MaxItems
	}
	if req.Reason == ReasonStartup && r.cfg.StartupMaxItems > 0 {
		return r.cfg.StartupMaxItems
	}
	return r.cfg.ScheduledMaxItems
}

// Status reports the run mutex, the last report and the breaker state.
func (r *JobRunner) Status() Status {
	st := Status{
		IsRunning:        r.running.Load(),
		Schedule:         r.cfg.Schedule,
		DefaultItemCount: r.cfg.ScheduledMaxItems,
		StartupItemCount: r.cfg.StartupMaxItems,
		BreakerPolicy:    r.cfg.Policy,
	}

	r.mu.RLock()
	if r.lastRun != nil {
		last := *r.lastRun
		st.LastRun = &last
	}
	r.mu.RUnlock()

	state, reason, openedAt := r.breaker.Snapshot()
	if state == BreakerOpen {
		st.CircuitOpen = true
		st.CircuitReason = reason
		st.CircuitOpenedAt = &openedAt
	}
	return st
}

// Shutdown stops any active run before its next item and waits for it to
// return or for ctx to expire.
func (r *JobRunner) Shutdown(ctx context.Context) error {
	r.drainOnce.Do(func() { close(r.drain) })

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for r.running.Load() {
		select {
		case <-ctx.Done():
			return fmt.Errorf("wait for active run: %w", ctx.Err())
		case <-ticker.C:
		}
	}
	return nil
}
