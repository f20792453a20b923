package service

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"dayflow/internal/model"
)

// CronRunner wraps the cron scheduler that triggers the daily batch pass
// in serve mode.
type CronRunner struct {
	cron *cron.Cron
}

func NewCronRunner(loc *time.Location) *CronRunner {
	return &CronRunner{cron: cron.New(cron.WithLocation(loc))}
}

// ScheduleDaily registers a daily job at the given HH:MM local time.
func (r *CronRunner) ScheduleDaily(timeStr string, job func()) (cron.EntryID, error) {
	clock, err := model.ParseClock(timeStr)
	if err != nil {
		return 0, fmt.Errorf("daily schedule: %w", err)
	}
	// cron format: minute hour dom month dow
	spec := fmt.Sprintf("%d %d * * *", clock.Minute, clock.Hour)
	return r.cron.AddFunc(spec, job)
}

func (r *CronRunner) Start() {
	r.cron.Start()
}

// Stop halts the scheduler and waits for a running job to finish.
func (r *CronRunner) Stop() {
	ctx := r.cron.Stop()
	<-ctx.Done()
}
