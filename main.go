package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/artie-labs/ingest/clients/mssql"
	"github.com/artie-labs/ingest/lib/config"
	"github.com/artie-labs/ingest/lib/db"
	"github.com/artie-labs/ingest/lib/logger"
	"github.com/artie-labs/ingest/lib/tabular"
	"github.com/artie-labs/ingest/lib/telemetry/metrics"
	"github.com/artie-labs/ingest/lib/telemetry/metrics/base"
	"github.com/artie-labs/ingest/processes/sweeper"
	"github.com/artie-labs/ingest/processes/upload"
)

func main() {
	settings, err := config.LoadSettings(os.Args[1:], true)
	if err != nil {
		logger.Fatal("Failed to load settings", slog.Any("err", err))
	}

	log, loggingToSentry := logger.NewLogger(settings)
	slog.SetDefault(log)
	if loggingToSentry {
		defer sentry.Flush(2 * time.Second)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metricsClient := metrics.LoadExporter(settings.Config)
	defer metricsClient.Close()

	store, err := mssql.LoadStore(ctx, settings.Config, metricsClient)
	if err != nil {
		logger.Fatal("Failed to connect to SQL Server", slog.Any("err", err))
	}
	defer store.Close()

	slog.Info("Config is loaded",
		slog.String("command", string(settings.Command)),
		slog.Int("datasets", len(settings.Config.Datasets)),
		slog.Int("pool_size", settings.Config.Pool.Size),
		slog.Int("chunk_size", settings.Config.Staging.ChunkSize),
	)

	switch settings.Command {
	case config.UploadCommand:
		runUpload(ctx, store, settings, metricsClient)
	case config.HealthCommand:
		report := store.Health(ctx)
		slog.Info("Health check finished",
			slog.String("status", string(report.Status)),
			slog.Duration("response_time", report.ResponseTime),
			slog.Int("in_use", report.Pool.InUse),
			slog.Int("max_open", report.Pool.MaxOpen),
			slog.String("message", report.Message),
		)
		if report.Status == db.Unhealthy {
			os.Exit(1)
		}
	case config.SweepCommand:
		dropped, err := sweeper.New(store, slog.Default()).RunOnce(ctx)
		if err != nil {
			logger.Fatal("Failed to sweep staging tables", slog.Any("err", err))
		}
		slog.Info("Sweep finished", slog.Int("dropped", dropped))
	case config.ServeCommand:
		if err = sweeper.New(store, slog.Default()).Start(ctx, settings.Config.Staging.SweepSchedule); err != nil {
			logger.Fatal("Failed to start the staging sweeper", slog.Any("err", err))
		}
	default:
		logger.Fatal("Unsupported command", slog.String("command", string(settings.Command)))
	}
}

func runUpload(ctx context.Context, store *mssql.Store, settings *config.Settings, metricsClient base.Client) {
	frame, err := tabular.ReadCSVFile(settings.Upload.File, tabular.CSVOptions{NormalizeHeaders: true})
	if err != nil {
		logger.Fatal("Failed to read upload file", slog.Any("err", err))
	}

	uploader := upload.NewUploader(store, settings.Config, upload.WithMetrics(metricsClient))
	result, err := uploader.Upload(ctx, upload.Request{
		Dataset:    settings.Upload.Dataset,
		DatasetKey: settings.Upload.DatasetKey,
		Frame:      frame,
	})
	if err != nil {
		logger.Fatal("Upload failed", slog.String("run_id", result.RunID), slog.Any("err", err))
	}

	if !result.Success {
		for _, issue := range result.Verdict.AllIssues() {
			slog.Warn(issue.String(), slog.Any("examples", issue.Examples))
		}
		logger.Fatal("Upload was blocked by validation", slog.String("run_id", result.RunID), slog.String("summary", result.Message))
	}

	for _, warning := range result.Verdict.Warnings {
		slog.Warn(warning.String(), slog.Any("examples", warning.Examples))
	}
	slog.Info(result.Message, slog.String("run_id", result.RunID))
}
