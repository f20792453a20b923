package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"dayflow/internal/model"
	"dayflow/internal/repository"
)

// Notifier delivers the finished day plan to the user. Delivery failures
// never fail the run.
type Notifier interface {
	SendDayPlan(ctx context.Context, date time.Time, plan DayPlan) error
}

// RunOptions scope a single batch pass.
type RunOptions struct {
	// Allowlist restricts materialization to these template ids.
	Allowlist map[string]bool
	// DryRun computes the full plan but writes nothing.
	DryRun bool
}

// RunSummary reports what one (user, date) pass did.
type RunSummary struct {
	UserID    string
	LocalDate string
	Plan      DayPlan
	Skips     []TemplateSkip
	Deleted   int
	Upserted  int
	DryRun    bool
}

// Pipeline wires the materializer, the day scheduler and the store into
// the single synchronous batch pass: candidates are fully generated
// before placement starts, and the writer supersedes only the rows it
// replaces.
type Pipeline struct {
	materializer *Materializer
	scheduler    *DayScheduler
	templates    *repository.TemplateRepository
	instances    *repository.InstanceRepository
	dayStart     model.Clock
	dayEnd       model.Clock
	loc          *time.Location
	notifier     Notifier
	log          *slog.Logger
}

func NewPipeline(
	materializer *Materializer,
	scheduler *DayScheduler,
	templates *repository.TemplateRepository,
	instances *repository.InstanceRepository,
	dayStart, dayEnd model.Clock,
	loc *time.Location,
	notifier Notifier,
	log *slog.Logger,
) *Pipeline {
	return &Pipeline{
		materializer: materializer,
		scheduler:    scheduler,
		templates:    templates,
		instances:    instances,
		dayStart:     dayStart,
		dayEnd:       dayEnd,
		loc:          loc,
		notifier:     notifier,
		log:          log,
	}
}

// RunDay executes the full pass for one user and date.
func (p *Pipeline) RunDay(ctx context.Context, userID string, targetDate time.Time, opts RunOptions) (RunSummary, error) {
	localDate := model.FormatDate(targetDate)
	summary := RunSummary{UserID: userID, LocalDate: localDate, DryRun: opts.DryRun}

	res, err := p.materializer.Materialize(ctx, userID, targetDate, opts.Allowlist)
	if err != nil {
		return summary, fmt.Errorf("run %s for user %s: %w", localDate, userID, err)
	}
	summary.Skips = res.Skips

	dayStart := p.dayStart.On(targetDate, p.loc)
	dayEnd := p.dayEnd.On(targetDate, p.loc)
	summary.Plan = p.scheduler.ScheduleDay(res.Candidates, res.Protected, dayStart, dayEnd)

	if opts.DryRun {
		p.log.Info("dry run, skipping writes",
			"user_id", userID, "local_date", localDate,
			"placed", len(summary.Plan.Placed), "unplaced", len(summary.Plan.Unplaced))
		return summary, nil
	}

	if err := p.write(ctx, userID, localDate, &summary); err != nil {
		return summary, err
	}

	if p.notifier != nil {
		if err := p.notifier.SendDayPlan(ctx, targetDate, summary.Plan); err != nil {
			p.log.Warn("day plan notification failed", "user_id", userID, "err", err)
		}
	}
	return summary, nil
}

// write persists the plan in one transaction: the active rows being
// superseded are deleted (never completed or skipped ones), then every
// row is written through a guarded natural-key upsert. Either the whole
// new placement commits or none of it does.
func (p *Pipeline) write(ctx context.Context, userID, localDate string, summary *RunSummary) error {
	rows := make([]model.Instance, 0, len(summary.Plan.Placed)+len(summary.Plan.Unplaced))
	keep := make([]string, 0, cap(rows))
	for _, inst := range summary.Plan.Placed {
		rows = append(rows, inst)
		keep = append(keep, inst.ID)
	}
	for _, u := range summary.Plan.Unplaced {
		inst := u.Instance
		inst.Description = "Could not schedule: " + u.Reason
		rows = append(rows, inst)
		keep = append(keep, inst.ID)
	}

	deleted, upserted, err := p.instances.ReplaceDay(ctx, userID, localDate, keep, rows)
	if err != nil {
		return fmt.Errorf("write %s for user %s: %w", localDate, userID, err)
	}
	summary.Deleted = deleted
	summary.Upserted = upserted

	p.log.Info("day plan written",
		"user_id", userID, "local_date", localDate,
		"placed", len(summary.Plan.Placed), "unplaced", len(summary.Plan.Unplaced),
		"deleted_stale", deleted, "upserted", upserted)
	return nil
}

// RunAll executes RunDay for every user owning live templates. A failed
// user aborts the pass; per-user isolation is the caller's call to make.
func (p *Pipeline) RunAll(ctx context.Context, targetDate time.Time, opts RunOptions) ([]RunSummary, error) {
	userIDs, err := p.templates.DistinctUserIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("run all: %w", err)
	}
	summaries := make([]RunSummary, 0, len(userIDs))
	for _, userID := range userIDs {
		summary, err := p.RunDay(ctx, userID, targetDate, opts)
		if err != nil {
			return summaries, err
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}
