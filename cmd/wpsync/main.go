package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"github.com/spf13/viper"

	"github.com/wpsync/wpsync/internal/config"
	"github.com/wpsync/wpsync/internal/sync"
	"github.com/wpsync/wpsync/internal/utils"
)

func main() {
	closeLog := setupLogging()
	defer closeLog()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "%s %s\n", red.Render("error:"), err)
		os.Exit(exitCode(err))
	}
}

// setupLogging fans slog out to the terminal and to a debug log file.
// The terminal side stays on stderr so command output remains pipeable.
func setupLogging() func() {
	logFile := filepath.Join(config.DefaultLogDir, "wpsync.log")
	if err := os.MkdirAll(filepath.Dir(logFile), 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "failed to create log directory: %v\n", err)
		os.Exit(1)
	}

	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open log file: %v\n", err)
		os.Exit(1)
	}

	termLevel := &slog.LevelVar{}
	termLevel.Set(slog.LevelWarn)
	logLevel = termLevel

	termHandler := tint.NewHandler(os.Stderr, &tint.Options{
		Level:      termLevel,
		TimeFormat: "15:04:05",
		NoColor:    !isatty.IsTerminal(os.Stderr.Fd()),
	})

	interceptor := utils.NewLogInterceptor(file)
	fileHandler := slog.NewTextHandler(interceptor, &slog.HandlerOptions{
		Level: slog.LevelDebug,
		// The interceptor stamps each line; drop slog's own time.
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey && len(groups) == 0 {
				return slog.Attr{}
			}
			return a
		},
	})

	slog.SetDefault(slog.New(utils.NewMultiLogHandler(termHandler, fileHandler)))
	return func() { file.Close() }
}

// logLevel is the terminal log level, raised to debug by --verbose.
var logLevel *slog.LevelVar

func applyVerbosity() {
	if logLevel != nil && viper.GetBool("verbose") {
		logLevel.Set(slog.LevelDebug)
	}
}

// exitCode maps error categories onto distinct exit codes so scripts
// can branch without parsing messages.
func exitCode(err error) int {
	switch {
	case errors.Is(err, sync.ErrConfiguration):
		return 2
	case errors.Is(err, sync.ErrConnection):
		return 3
	case errors.Is(err, sync.ErrPlanning):
		return 4
	case errors.Is(err, sync.ErrSiteBusy):
		return 5
	case errors.Is(err, context.Canceled):
		return 130
	default:
		return 1
	}
}
