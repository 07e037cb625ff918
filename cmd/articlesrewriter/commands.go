package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"ArticlesRewriter/internal/app"
	"ArticlesRewriter/internal/config"
	"ArticlesRewriter/internal/logging"
	"ArticlesRewriter/internal/usecase"
)

var errRunFailed = errors.New("run finished with errors")

func newRootCommand() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "articlesrewriter",
		Short:         "Scrape movie news, rewrite it and keep the results",
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), configPath)
		},
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to the YAML config file")

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the scheduler and the admin API until interrupted",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return serve(cmd.Context(), configPath)
			},
		},
		newRunCommand(&configPath),
	)
	return root
}

func newRunCommand(configPath *string) *cobra.Command {
	var maxItems int
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute one pipeline run and print its report",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if maxItems < 0 {
				return fmt.Errorf("--max-items must not be negative")
			}
			return runOnce(cmd.Context(), *configPath, maxItems)
		},
	}
	cmd.Flags().IntVarP(&maxItems, "max-items", "n", 0, "items to process (0 uses the scheduled default)")
	return cmd
}

func serve(parent context.Context, configPath string) error {
	ctx, stop := signal.NotifyContext(contextOrBackground(parent), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.Load(configPath)
	logger := logging.New(cfg.Logging.Level, cfg.Logging.Format)

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("startup failed", "error", err)
		return err
	}
	if err := application.Serve(ctx); err != nil {
		logger.Error("application stopped", "error", err)
		return err
	}
	return nil
}

func runOnce(parent context.Context, configPath string, maxItems int) error {
	ctx, stop := signal.NotifyContext(contextOrBackground(parent), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.Load(configPath)
	logger := logging.New(cfg.Logging.Level, cfg.Logging.Format)

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := application.Close(context.Background()); err != nil {
			logger.Warn("close storage", "error", err)
		}
	}()

	report, err := application.RunOnce(ctx, maxItems)
	renderReport(report)
	if err != nil {
		return err
	}
	if report.Error != "" {
		return errRunFailed
	}
	return nil
}

func renderReport(report usecase.RunReport) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Reason", "Mode", "Max", "Inserted", "Skipped", "Rewritten", "Humanized", "Failed", "Duration", "Error"})
	t.AppendRow(table.Row{
		report.Reason,
		report.Mode,
		report.MaxItems,
		report.Inserted,
		report.Skipped,
		report.Rewritten,
		report.Humanized,
		report.Failed,
		(time.Duration(report.DurationSeconds * float64(time.Second))).Round(time.Millisecond),
		report.Error,
	})
	t.Render()
}

func contextOrBackground(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}
