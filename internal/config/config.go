package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"dayflow/internal/model"
)

// Config keeps runtime settings for the scheduler.
type Config struct {
	DatabaseURL string

	// Timezone is the IANA zone in which "today", the day window and the
	// run gate are interpreted.
	Timezone string
	Location *time.Location

	// DayStart / DayEnd bound the schedulable window of a day.
	DayStart model.Clock
	DayEnd   model.Clock

	// RunGate is the earliest local time a non-forced run may start.
	RunGate model.Clock

	// ScheduleTime is when the serve-mode cron triggers the daily pass.
	ScheduleTime string

	// Listen is the health endpoint address for serve mode.
	Listen string

	// TelegramToken / TelegramChatID enable the daily summary message
	// when both are set.
	TelegramToken  string
	TelegramChatID int64

	LogLevel string
}

// Load reads configuration from environment variables with sane defaults.
func Load() (Config, error) {
	cfg := Config{
		DatabaseURL:   strings.TrimSpace(os.Getenv("DATABASE_URL")),
		Timezone:      strings.TrimSpace(os.Getenv("TIMEZONE")),
		ScheduleTime:  strings.TrimSpace(os.Getenv("SCHEDULE_TIME")),
		Listen:        strings.TrimSpace(os.Getenv("LISTEN")),
		TelegramToken: strings.TrimSpace(os.Getenv("TELEGRAM_TOKEN")),
		LogLevel:      strings.TrimSpace(os.Getenv("LOG_LEVEL")),
	}

	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = "dayflow.db"
	}
	if cfg.Timezone == "" {
		cfg.Timezone = "Europe/London"
	}
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return cfg, fmt.Errorf("invalid TIMEZONE %q: %w", cfg.Timezone, err)
	}
	cfg.Location = loc

	cfg.DayStart, err = clockEnv("DAY_START", "07:00")
	if err != nil {
		return cfg, err
	}
	cfg.DayEnd, err = clockEnv("DAY_END", "22:00")
	if err != nil {
		return cfg, err
	}
	if !before(cfg.DayStart, cfg.DayEnd) {
		return cfg, fmt.Errorf("DAY_START %s must be before DAY_END %s", cfg.DayStart, cfg.DayEnd)
	}
	cfg.RunGate, err = clockEnv("RUN_GATE", "07:00")
	if err != nil {
		return cfg, err
	}

	if cfg.ScheduleTime == "" {
		cfg.ScheduleTime = "07:00"
	}
	if _, err := model.ParseClock(cfg.ScheduleTime); err != nil {
		return cfg, fmt.Errorf("invalid SCHEDULE_TIME: %w", err)
	}
	if cfg.Listen == "" {
		cfg.Listen = ":8080"
	}

	if raw := strings.TrimSpace(os.Getenv("TELEGRAM_CHAT_ID")); raw != "" {
		if _, err := fmt.Sscanf(raw, "%d", &cfg.TelegramChatID); err != nil {
			return cfg, fmt.Errorf("invalid TELEGRAM_CHAT_ID %q: %w", raw, err)
		}
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	return cfg, nil
}

// DayWindow resolves the configured day bounds for a calendar date into
// absolute instants in the configured zone.
func (c Config) DayWindow(date time.Time) (time.Time, time.Time) {
	return c.DayStart.On(date, c.Location), c.DayEnd.On(date, c.Location)
}

// NotifyEnabled reports whether a summary message target is configured.
func (c Config) NotifyEnabled() bool {
	return c.TelegramToken != "" && c.TelegramChatID != 0
}

func clockEnv(name, fallback string) (model.Clock, error) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		raw = fallback
	}
	clock, err := model.ParseClock(raw)
	if err != nil {
		return model.Clock{}, fmt.Errorf("invalid %s: %w", name, err)
	}
	return clock, nil
}

func before(a, b model.Clock) bool {
	return a.Hour*60+a.Minute < b.Hour*60+b.Minute
}
