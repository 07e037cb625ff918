// Package app wires configuration into adapters, use cases and the admin API.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"ArticlesRewriter/internal/api"
	"ArticlesRewriter/internal/config"
	"ArticlesRewriter/internal/domain"
	"ArticlesRewriter/internal/infrastructure/cdn"
	"ArticlesRewriter/internal/infrastructure/detector"
	"ArticlesRewriter/internal/infrastructure/humanizer"
	"ArticlesRewriter/internal/infrastructure/llm"
	"ArticlesRewriter/internal/infrastructure/parser"
	"ArticlesRewriter/internal/infrastructure/scheduler"
	"ArticlesRewriter/internal/infrastructure/storage"
	"ArticlesRewriter/internal/infrastructure/telegram"
	"ArticlesRewriter/internal/logging"
	"ArticlesRewriter/internal/metrics"
	"ArticlesRewriter/internal/ports"
	"ArticlesRewriter/internal/scanner"
	"ArticlesRewriter/internal/usecase"
)

const readHeaderTimeout = 10 * time.Second

// Application owns every long-lived component of the service.
type Application struct {
	cfg       config.Config
	logger    *slog.Logger
	repo      ports.Repository
	metrics   *metrics.Metrics
	runner    *usecase.JobRunner
	scheduler *usecase.Scheduler
	handler   http.Handler
}

// New validates cfg, opens storage and wires the application.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Application, error) {
	if logger == nil {
		logger = logging.New(cfg.Logging.Level, cfg.Logging.Format)
	}
	if err := scheduler.Validate(cfg.Scheduler.CronExpression); err != nil {
		return nil, err
	}
	if err := wordRange(cfg.Pipeline).Validate(); err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	policy, err := breakerPolicy(cfg.Scheduler.BreakerPolicy)
	if err != nil {
		return nil, err
	}

	repo, err := storage.Open(ctx, cfg.Database, logger.With("component", "storage"))
	if err != nil {
		return nil, err
	}
	return build(cfg, logger, repo, policy), nil
}

func build(cfg config.Config, logger *slog.Logger, repo ports.Repository, policy usecase.BreakerPolicy) *Application {
	m := metrics.New()
	breaker := usecase.NewBreaker(func(from, to usecase.BreakerState) {
		m.SetCircuitOpen(to == usecase.BreakerOpen)
		logger.Warn("circuit breaker changed state", "from", from, "to", to)
	})

	registry := scanner.NewRegistry(
		parser.NewTDCategoryScanner(nil),
		parser.NewFeedScanner(nil),
	)
	source := parser.NewStrategySource(registry, cfg.Sites, logger.With("component", "source"))

	pipeline := usecase.NewPipeline(usecase.PipelineDeps{
		Source:    source,
		Content:   parser.NewContentFetcher(contentClient(cfg), logger.With("component", "content")),
		Uploader:  newUploader(cfg.CDN, logger),
		Humanizer: newHumanizer(cfg.Humanizer, logger),
		Detector:  detector.NewZeroGPT(cfg.Detector, logger.With("component", "detector")),
		Store:     repo,
		Breaker:   breaker,
		Metrics:   m,
		Logger:    logger.With("component", "pipeline"),
		Settings: usecase.PipelineSettings{
			ItemDelay:        cfg.Pipeline.ItemDelay,
			RewriteThreshold: cfg.Pipeline.RewriteThreshold,
			WordRange:        wordRange(cfg.Pipeline),
			Keywords:         cfg.Pipeline.Keywords,
			MetaDescription:  cfg.Pipeline.MetaDescription,
		},
	})

	settings := usecase.NewSettingsService(repo, breaker, domain.AppConfig{
		GenerativeAPIKey: cfg.Generative.APIKey,
		GenerativeModel:  cfg.Generative.Model,
	}, logger.With("component", "settings"))

	runner := usecase.NewJobRunner(usecase.RunnerDeps{
		Pipeline:  pipeline,
		Settings:  settings,
		Rewriters: llm.NewFactory(cfg.Generative),
		Breaker:   breaker,
		Metrics:   m,
		Notifier:  newNotifier(cfg.Notify, logger),
		Logger:    logger.With("component", "runner"),
		Config: usecase.RunnerConfig{
			Schedule:          cfg.Scheduler.CronExpression,
			StartupMaxItems:   cfg.Scheduler.StartupMaxItems,
			ScheduledMaxItems: cfg.Scheduler.ScheduledMaxItems,
			Policy:            policy,
		},
	})

	cron := scheduler.NewCronScheduler(cfg.Scheduler.CronExpression, cfg.Scheduler.Location(), logger.With("component", "cron"))

	if !strings.EqualFold(cfg.Logging.Level, "debug") {
		gin.SetMode(gin.ReleaseMode)
	}
	router := api.NewRouter(api.Deps{
		Runner:      runner,
		Settings:    settings,
		Store:       repo,
		Metrics:     m.Handler(),
		CORSOrigins: cfg.HTTP.CORSOrigins,
		Logger:      logger.With("component", "http"),
	})

	return &Application{
		cfg:       cfg,
		logger:    logger,
		repo:      repo,
		metrics:   m,
		runner:    runner,
		scheduler: usecase.NewScheduler(cron, runner, logger.With("component", "scheduler")),
		handler:   router,
	}
}

// Handler exposes the admin API.
func (a *Application) Handler() http.Handler {
	return a.handler
}

// RunOnce triggers a single manual run and closes nothing.
func (a *Application) RunOnce(ctx context.Context, maxItems int) (usecase.RunReport, error) {
	return a.runner.Trigger(ctx, usecase.TriggerRequest{Reason: usecase.ReasonManual, MaxItems: maxItems})
}

// Serve starts the cron schedule, the optional startup run and the HTTP
// listener, then blocks until ctx is cancelled or the listener fails.
func (a *Application) Serve(ctx context.Context) error {
	if err := a.scheduler.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	if a.cfg.Scheduler.StartupRun() {
		go a.startupRun(ctx)
	}

	srv := &http.Server{
		Addr:              a.cfg.HTTP.Addr,
		Handler:           a.handler,
		ReadHeaderTimeout: readHeaderTimeout,
	}
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		a.logger.Info("shutdown requested")
	case err, ok := <-errCh:
		if ok {
			serveErr = fmt.Errorf("http server: %w", err)
		}
	}
	return errors.Join(serveErr, a.shutdown(srv))
}

func (a *Application) startupRun(ctx context.Context) {
	report, err := a.runner.Trigger(ctx, usecase.TriggerRequest{Reason: usecase.ReasonStartup})
	switch {
	case errors.Is(err, usecase.ErrRunInProgress):
		a.logger.Info("startup run skipped, another run is active")
	case errors.Is(err, usecase.ErrCircuitOpen):
		a.logger.Warn("startup run declined", "error", report.Error)
	default:
		a.logger.Info("startup run done", "mode", report.Mode, "inserted", report.Inserted, "rewritten", report.Rewritten, "error", report.Error)
	}
}

// shutdown stops the schedule, lets an active run finish its current item
// and closes the listener and the store within the configured timeout.
func (a *Application) shutdown(srv *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.HTTP.ShutdownTimeout)
	defer cancel()

	var errs []error
	if err := a.scheduler.Stop(ctx); err != nil {
		errs = append(errs, fmt.Errorf("stop scheduler: %w", err))
	}
	if err := a.runner.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := srv.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("http shutdown: %w", err))
	}
	if err := a.repo.Close(ctx); err != nil {
		errs = append(errs, fmt.Errorf("close storage: %w", err))
	}
	a.logger.Info("shutdown complete")
	return errors.Join(errs...)
}

// Close releases storage. Serve does this itself on shutdown.
func (a *Application) Close(ctx context.Context) error {
	return a.repo.Close(ctx)
}

func wordRange(cfg config.PipelineConfig) usecase.WordRange {
	return usecase.WordRange{
		Min:          cfg.MinWords,
		Max:          cfg.MaxWords,
		HardCap:      cfg.HardCap,
		MaxAttempts:  cfg.MaxAttempts,
		AttemptDelay: cfg.AttemptDelay,
	}
}

// contentClient bounds article fetches by pipeline.contentTimeout, falling back
// to the longest site fetch timeout. Nil leaves the parser default in place.
func contentClient(cfg config.Config) *http.Client {
	timeout := cfg.Pipeline.ContentTimeout
	if timeout <= 0 {
		for _, site := range cfg.Sites {
			timeout = max(timeout, site.FetchTimeout)
		}
	}
	if timeout <= 0 {
		return nil
	}
	return &http.Client{Timeout: timeout}
}

func breakerPolicy(raw string) (usecase.BreakerPolicy, error) {
	switch p := usecase.BreakerPolicy(strings.ToLower(strings.TrimSpace(raw))); p {
	case "", usecase.PolicyDecline:
		return usecase.PolicyDecline, nil
	case usecase.PolicyScrapeOnly:
		return p, nil
	default:
		return "", fmt.Errorf("unknown breaker policy %q", raw)
	}
}

func newUploader(cfg config.CDNConfig, logger *slog.Logger) ports.ImageUploader {
	uploader, err := cdn.NewCloudinaryUploader(cfg)
	if err != nil {
		logger.Warn("image uploads disabled", "reason", err)
		return cdn.Disabled{}
	}
	return uploader
}

func newHumanizer(cfg config.HumanizerConfig, logger *slog.Logger) ports.Humanizer {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		logger.Warn("humanizer url not set, humanize stage disabled")
		return nil
	}
	return humanizer.NewClient(cfg, nil, logger.With("component", "humanizer"))
}

func newNotifier(cfg config.NotifyConfig, logger *slog.Logger) ports.Notifier {
	if !cfg.Enabled() {
		logger.Debug("telegram alerts disabled")
		return nil
	}
	return telegram.NewNotifier(cfg)
}
