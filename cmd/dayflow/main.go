package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"dayflow/internal/config"
	"dayflow/internal/notify"
	"dayflow/internal/repository"
	"dayflow/internal/service"
)

func main() {
	root := &cobra.Command{
		Use:           "dayflow",
		Short:         "Expand task templates into a scheduled day",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newRunCmd(), newServeCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "dayflow:", err)
		os.Exit(1)
	}
}

// app bundles everything a command needs after wiring.
type app struct {
	cfg      config.Config
	log      *slog.Logger
	db       *gorm.DB
	pipeline *service.Pipeline
}

func newApp() (*app, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("config: %w", err)
	}

	log := newLogger(cfg.LogLevel)

	db, err := repository.NewDB(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("db: %w", err)
	}
	cleanup := func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}

	templateRepo := repository.NewTemplateRepository(db, log)
	instanceRepo := repository.NewInstanceRepository(db)

	var notifier service.Notifier
	if cfg.NotifyEnabled() {
		tn, err := notify.NewTelegramNotifier(cfg.TelegramToken, cfg.TelegramChatID)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("notify: %w", err)
		}
		notifier = tn
	}

	materializer := service.NewMaterializer(templateRepo, instanceRepo, cfg.Location, log)
	scheduler := service.NewDayScheduler(log)
	pipeline := service.NewPipeline(
		materializer, scheduler, templateRepo, instanceRepo,
		cfg.DayStart, cfg.DayEnd, cfg.Location, notifier, log,
	)

	return &app{cfg: cfg, log: log, db: db, pipeline: pipeline}, cleanup, nil
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

// resolveDate turns the --date flag into a calendar date. "today" and ""
// mean today in the configured zone.
func resolveDate(raw string, loc *time.Location) (time.Time, error) {
	raw = strings.TrimSpace(strings.ToLower(raw))
	if raw == "" || raw == "today" {
		now := time.Now().In(loc)
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC), nil
	}
	d, err := time.ParseInLocation("2006-01-02", raw, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --date %q, expected YYYY-MM-DD: %w", raw, err)
	}
	return d, nil
}
