package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/dgnsrekt/lcap/internal/browser"
	"github.com/dgnsrekt/lcap/internal/config"
	"github.com/dgnsrekt/lcap/internal/partition"
	"github.com/dgnsrekt/lcap/internal/redirect"
	"github.com/dgnsrekt/lcap/internal/result"
	"github.com/dgnsrekt/lcap/internal/reveal"
	"github.com/dgnsrekt/lcap/internal/session"
	"gopkg.in/natefinch/lumberjack.v2"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("lcap", flag.ContinueOnError)
	cfg, err := config.Load(fs, args)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return session.ExitSuccess
		}
		slog.Error("failed to load lcap config", "error", err)
		return session.ExitUsage
	}

	if err := setupLogger(cfg.LogLevel, cfg.LogFile); err != nil {
		slog.Warn("log file unavailable, logging to stderr only", "log_file", cfg.LogFile, "error", err)
	}

	slog.Info("lcap config loaded", cfg.LogAttrs()...)

	observer, err := redirect.NewMatcher(cfg.RedirectURL, cfg.CodeParam, cfg.ErrorParam)
	if err != nil {
		slog.Error("invalid redirect configuration", "redirect_url", cfg.RedirectURL, "error", err)
		return session.ExitCodeFor(err)
	}

	part, err := partition.NewResolver(cfg.DataDir).Resolve(cfg.Profile)
	if err != nil {
		slog.Error("failed to resolve profile partition", "profile", cfg.Profile, "error", err)
		return session.ExitCodeFor(err)
	}
	slog.Info("profile partition resolved", "profile_key", part.Key, "dir", part.Dir, "regenerated", part.Regenerated)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	surface, err := browser.Launch(ctx, browser.Config{
		BrowserPath: cfg.BrowserPath,
		ProfileDir:  part.Dir,
		Title:       cfg.Title,
		RedirectURL: cfg.RedirectURL,
	})
	if err != nil {
		slog.Error("failed to launch browser", "error", err)
		return session.ExitCodeFor(err)
	}

	ctrl := session.NewController(
		surface,
		observer,
		reveal.NewScheduler(cfg.RevealTimeout()),
		result.New(cfg.OutputFile),
		session.Options{
			StartURL:       cfg.StartURL,
			SessionTimeout: cfg.SessionTimeout(),
		},
	)
	report := ctrl.Run(ctx)

	slog.Info("lcap session finished",
		"kind", report.Outcome.Kind,
		"delivered", report.Delivered,
		"revealed", report.Revealed,
		"exit_code", report.ExitCode,
	)
	return report.ExitCode
}

// setupLogger writes to stderr and a rotating file. Stdout carries the
// result line and is never used for logs. When the log directory cannot be
// created the default logger still writes to stderr and the error is
// returned.
func setupLogger(level, filename string) error {
	var w io.Writer = os.Stderr
	err := os.MkdirAll(filepath.Dir(filename), 0o755)
	if err == nil {
		w = io.MultiWriter(os.Stderr, &lumberjack.Logger{
			Filename:   filename,
			MaxSize:    25,
			MaxBackups: 10,
			MaxAge:     14,
			Compress:   true,
		})
	}

	h := slog.NewTextHandler(w, &slog.HandlerOptions{Level: parseLevel(level)})
	slog.SetDefault(slog.New(h))
	return err
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
