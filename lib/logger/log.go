package logger

import (
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	slogmulti "github.com/samber/slog-multi"
	slogsentry "github.com/samber/slog-sentry/v2"

	"github.com/artie-labs/ingest/lib/config"
)

func newConsoleHandler(w io.Writer, verbose bool) slog.Handler {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}

	noColor := true
	if f, ok := w.(*os.File); ok {
		noColor = !isatty.IsTerminal(f.Fd())
	}

	return tint.NewHandler(w, &tint.Options{Level: level, TimeFormat: time.DateTime, NoColor: noColor})
}

// NewLogger writes to stderr and, when a Sentry DSN is configured, sends errors to Sentry as well.
// The returned bool reports whether Sentry is in use so the caller can flush it before exiting.
func NewLogger(settings *config.Settings) (*slog.Logger, bool) {
	verbose := settings != nil && settings.VerboseLogging
	handler := newConsoleHandler(os.Stderr, verbose)
	if settings == nil || settings.Config.Reporting.Sentry == nil || settings.Config.Reporting.Sentry.DSN == "" {
		return slog.New(handler), false
	}

	sentryCfg := settings.Config.Reporting.Sentry
	err := sentry.Init(sentry.ClientOptions{
		Dsn:         sentryCfg.DSN,
		Environment: sentryCfg.Environment,
	})
	if err != nil {
		slog.New(handler).Warn("Failed to enable Sentry output", slog.Any("err", err))
		return slog.New(handler), false
	}

	return slog.New(slogmulti.Fanout(handler, slogsentry.Option{Level: slog.LevelError}.NewSentryHandler())), true
}

func Fatal(msg string, args ...any) {
	slog.Error(msg, args...)
	os.Exit(1)
}
