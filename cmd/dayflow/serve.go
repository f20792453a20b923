package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"dayflow/internal/service"
	"dayflow/internal/web"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the health endpoint and the daily cron trigger",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, cleanup, err := newApp()
			if err != nil {
				return err
			}
			defer cleanup()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			runner := service.NewCronRunner(app.cfg.Location)
			if _, err := runner.ScheduleDaily(app.cfg.ScheduleTime, func() {
				jobCtx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
				defer cancel()
				now := time.Now().In(app.cfg.Location)
				runDate := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
				if _, err := app.pipeline.RunAll(jobCtx, runDate, service.RunOptions{}); err != nil {
					app.log.Error("daily pass failed", "err", err)
				}
			}); err != nil {
				return err
			}
			runner.Start()
			defer runner.Stop()

			srv := web.NewHealthServer(app.cfg.Listen, time.Now())
			errCh := make(chan error, 1)
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
			}()
			app.log.Info("dayflow scheduler started",
				"listen", app.cfg.Listen, "schedule", app.cfg.ScheduleTime, "tz", app.cfg.Timezone)

			select {
			case <-ctx.Done():
			case err := <-errCh:
				return err
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return err
			}
			app.log.Info("shutdown complete")
			return nil
		},
	}
}
