package main

import (
	"time"

	"github.com/spf13/cobra"

	"dayflow/internal/service"
)

func newRunCmd() *cobra.Command {
	var (
		dateFlag  string
		userFlag  string
		templates []string
		dryRun    bool
		force     bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute one scheduling pass",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, cleanup, err := newApp()
			if err != nil {
				return err
			}
			defer cleanup()

			targetDate, err := resolveDate(dateFlag, app.cfg.Location)
			if err != nil {
				return err
			}

			// The daily gate only guards automatic same-day runs; an
			// explicit past or future date is always deliberate.
			now := time.Now().In(app.cfg.Location)
			if !force && isToday(targetDate, now) && beforeGate(now, app.cfg.RunGate.Hour, app.cfg.RunGate.Minute) {
				app.log.Info("before run gate, exiting; use --force to bypass",
					"gate", app.cfg.RunGate.String())
				return nil
			}

			opts := service.RunOptions{DryRun: dryRun}
			if len(templates) > 0 {
				opts.Allowlist = make(map[string]bool, len(templates))
				for _, id := range templates {
					opts.Allowlist[id] = true
				}
			}

			ctx := cmd.Context()
			if userFlag != "" {
				summary, err := app.pipeline.RunDay(ctx, userFlag, targetDate, opts)
				if err != nil {
					return err
				}
				printSummary(cmd, summary)
				return nil
			}
			summaries, err := app.pipeline.RunAll(ctx, targetDate, opts)
			if err != nil {
				return err
			}
			for _, s := range summaries {
				printSummary(cmd, s)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&dateFlag, "date", "today", "run date (YYYY-MM-DD or 'today')")
	cmd.Flags().StringVar(&userFlag, "user", "", "limit the pass to one user id")
	cmd.Flags().StringSliceVar(&templates, "template", nil, "template id allow-list (repeatable)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "compute but do not write")
	cmd.Flags().BoolVar(&force, "force", false, "bypass the morning run gate")
	return cmd
}

func printSummary(cmd *cobra.Command, s service.RunSummary) {
	mode := ""
	if s.DryRun {
		mode = " (dry run)"
	}
	cmd.Printf("%s %s%s: placed %d, unplaced %d, skipped %d\n",
		s.UserID, s.LocalDate, mode,
		len(s.Plan.Placed), len(s.Plan.Unplaced), len(s.Skips))
	for _, u := range s.Plan.Unplaced {
		cmd.Printf("  ! %s: %s\n", u.Instance.Title, u.Reason)
	}
}

func isToday(date, now time.Time) bool {
	return date.Format("2006-01-02") == now.Format("2006-01-02")
}

func beforeGate(now time.Time, hour, minute int) bool {
	return now.Hour()*60+now.Minute() < hour*60+minute
}
