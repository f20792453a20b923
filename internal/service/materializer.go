package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"dayflow/internal/model"
	"dayflow/internal/recur"
	"dayflow/internal/repository"
)

// MaterializeResult is the candidate set for one (user, date) pair plus
// the bookkeeping the writer needs.
type MaterializeResult struct {
	// Candidates is the de-duplicated instance set to be scheduled.
	Candidates []model.Instance
	// Protected holds today's completed or explicitly skipped rows;
	// they are never rewritten. Completed rows with times still block
	// their slot, skipped ones free it.
	Protected []model.Instance
	// Skips records every template that produced no candidate and why.
	Skips []TemplateSkip
}

// TemplateSkip explains why a template or carried row was passed over.
type TemplateSkip struct {
	TemplateID string
	Title      string
	Reason     string
}

// Materializer turns templates into the day's candidate instances:
// fresh instantiations, carried-forward incomplete floaters, and
// backfill for days the job never ran.
type Materializer struct {
	templates *repository.TemplateRepository
	instances *repository.InstanceRepository
	loc       *time.Location
	log       *slog.Logger
}

func NewMaterializer(templates *repository.TemplateRepository, instances *repository.InstanceRepository, loc *time.Location, log *slog.Logger) *Materializer {
	return &Materializer{templates: templates, instances: instances, loc: loc, log: log}
}

// Materialize builds the candidate set for one user and target date.
// allowlist, when non-empty, restricts instantiation to those template
// ids. Calling it twice with unchanged store state yields the same set.
func (m *Materializer) Materialize(ctx context.Context, userID string, targetDate time.Time, allowlist map[string]bool) (MaterializeResult, error) {
	var res MaterializeResult

	targetDay := dateOnly(targetDate)
	localDate := model.FormatDate(targetDay)

	templates, err := m.templates.ListLive(ctx, userID)
	if err != nil {
		return res, fmt.Errorf("materialize %s: %w", localDate, err)
	}
	today, err := m.instances.ListByDate(ctx, userID, localDate)
	if err != nil {
		return res, fmt.Errorf("materialize %s: %w", localDate, err)
	}

	lastRun, err := m.instances.LastRunDate(ctx, userID, localDate)
	if err != nil {
		return res, fmt.Errorf("materialize %s: %w", localDate, err)
	}

	byTemplate := indexByTemplate(today)

	// 1) Fresh instantiation of every due template.
	fresh := make([]model.Instance, 0, len(templates))
	instantiated := make(map[string]bool)
	for _, tpl := range templates {
		if len(allowlist) > 0 && !allowlist[tpl.ID] {
			continue
		}
		if skip := m.skipReason(tpl, byTemplate, targetDay); skip != "" {
			m.log.Debug("template skipped", "template_id", tpl.ID, "title", tpl.Title, "reason", skip)
			res.Skips = append(res.Skips, TemplateSkip{TemplateID: tpl.ID, Title: tpl.Title, Reason: skip})
			continue
		}
		fresh = append(fresh, m.instantiate(tpl, targetDay))
		instantiated[tpl.ID] = true
	}

	// 2) Existing rows for the date: active ones are re-scheduled,
	// completed/skipped ones are preserved untouched.
	var existing []model.Instance
	for _, inst := range today {
		if inst.Locked() {
			res.Protected = append(res.Protected, inst)
			continue
		}
		existing = append(existing, inst)
	}

	// 3) Carry-forward and missed-day backfill need history back to the
	// last date the job actually ran.
	var carried []model.Instance
	if lastRun != "" && lastRun < localDate {
		carried, err = m.carryForward(ctx, userID, lastRun, targetDay, byTemplate, instantiated, allowlist, &res)
		if err != nil {
			return res, err
		}
		backfilled := m.backfill(templates, lastRun, targetDay, byTemplate, instantiated, allowlist)
		carried = append(carried, backfilled...)
	}

	// 4) Merge, first occurrence wins. Existing rows come first so that
	// a fresh instantiation never clobbers a row that already exists
	// (and may already hold a time).
	merged := make([]model.Instance, 0, len(existing)+len(fresh)+len(carried))
	seen := make(map[string]bool, len(existing)+len(fresh)+len(carried))
	for _, inst := range res.Protected {
		seen[naturalKey(inst)] = true
	}
	for _, inst := range concat(existing, fresh, carried) {
		key := naturalKey(inst)
		if seen[key] {
			m.log.Debug("duplicate natural key dropped",
				"template_id", inst.TemplateID, "title", inst.Title, "local_date", inst.LocalDate)
			continue
		}
		seen[key] = true
		merged = append(merged, inst)
	}
	res.Candidates = merged

	m.log.Info("materialized candidates",
		"user_id", userID, "local_date", localDate,
		"fresh", len(fresh), "existing", len(existing),
		"carried", len(carried), "protected", len(res.Protected),
		"skipped", len(res.Skips))
	return res, nil
}

// skipReason decides whether a template must not instantiate today.
func (m *Materializer) skipReason(tpl model.Template, today map[string][]model.Instance, targetDay time.Time) string {
	for _, inst := range today[tpl.ID] {
		switch {
		case inst.IsCompleted:
			return "already completed today"
		case inst.IsDeleted:
			return "explicitly skipped today"
		default:
			return "already instantiated today"
		}
	}
	due, reason := recur.IsDue(ruleOf(tpl), targetDay)
	if !due {
		return string(reason)
	}
	return ""
}

// instantiate builds a fresh candidate. Floating templates get no time;
// fixed-class ones get the template clock time on the target date.
func (m *Materializer) instantiate(tpl model.Template, targetDay time.Time) model.Instance {
	inst := model.Instance{
		ID:              uuid.NewString(),
		UserID:          tpl.UserID,
		LocalDate:       model.FormatDate(targetDay),
		TemplateID:      tpl.ID,
		Title:           tpl.Title,
		DurationMinutes: tpl.DurationMinutes,
		Priority:        tpl.Priority,
		WindowStart:     tpl.WindowStart,
		WindowEnd:       tpl.WindowEnd,
	}
	kind := model.ParseKind(tpl.Kind)
	inst.SetKind(kind)

	if kind != model.KindFloating {
		clockRaw := tpl.StartTime
		if clockRaw == "" {
			clockRaw = model.DefaultStartTime
		}
		clock, err := model.ParseClock(clockRaw)
		if err != nil {
			// Normalize already defaulted parseable damage; this only
			// trips for templates edited after loading.
			clock, _ = model.ParseClock(model.DefaultStartTime)
		}
		start := clock.On(targetDay, m.loc)
		end := start.Add(time.Duration(tpl.DurationMinutes) * time.Minute)
		inst.StartTime = &start
		inst.EndTime = &end
	}
	return inst
}

// carryForward re-presents incomplete floating instances from the last
// run date against the target date. Policy: carry unless the template
// was re-instantiated today.
func (m *Materializer) carryForward(ctx context.Context, userID, lastRun string, targetDay time.Time, today map[string][]model.Instance, instantiated map[string]bool, allowlist map[string]bool, res *MaterializeResult) ([]model.Instance, error) {
	rows, err := m.instances.ListByDate(ctx, userID, lastRun)
	if err != nil {
		return nil, fmt.Errorf("carry forward from %s: %w", lastRun, err)
	}

	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		if r.TemplateID != "" {
			ids = append(ids, r.TemplateID)
		}
	}
	owners, err := m.templates.ListByIDs(ctx, userID, ids)
	if err != nil {
		return nil, fmt.Errorf("carry forward from %s: %w", lastRun, err)
	}
	ownerByID := make(map[string]model.Template, len(owners))
	for _, t := range owners {
		ownerByID[t.ID] = t
	}

	var carried []model.Instance
	for _, row := range rows {
		if row.TemplateID == "" || row.Locked() {
			continue
		}
		if row.Kind() != model.KindFloating {
			// Routines and fixed items have their own slots every day;
			// only unresolved floating work follows the user forward.
			continue
		}
		if len(allowlist) > 0 && !allowlist[row.TemplateID] {
			continue
		}
		if skip := m.carrySkipReason(row, ownerByID, today, instantiated, targetDay); skip != "" {
			m.log.Debug("carry-forward suppressed",
				"template_id", row.TemplateID, "title", row.Title, "reason", skip)
			res.Skips = append(res.Skips, TemplateSkip{TemplateID: row.TemplateID, Title: row.Title, Reason: skip})
			continue
		}

		copyRow := row
		copyRow.ID = uuid.NewString()
		copyRow.LocalDate = model.FormatDate(targetDay)
		copyRow.StartTime = nil
		copyRow.EndTime = nil
		copyRow.Description = ""
		carried = append(carried, copyRow)
	}
	return carried, nil
}

func (m *Materializer) carrySkipReason(row model.Instance, owners map[string]model.Template, today map[string][]model.Instance, instantiated map[string]bool, targetDay time.Time) string {
	owner, known := owners[row.TemplateID]
	if known && owner.IsDeleted {
		return "template was deleted"
	}
	if instantiated[row.TemplateID] {
		return "re-instantiated today"
	}
	for _, inst := range today[row.TemplateID] {
		switch {
		case inst.IsDeleted:
			return "explicitly skipped today"
		case inst.IsCompleted:
			return "already completed today"
		case inst.HasTimes():
			// Never clobber a same-day instance that already has a
			// placed time.
			return "already placed today"
		default:
			return "already present today"
		}
	}
	if known && recur.ParseUnit(owner.RepeatUnit) == recur.UnitNone {
		if anchor := owner.AnchorDay(); anchor != nil && anchor.After(dateOnly(targetDay)) {
			return "deferred to a later date"
		}
	}
	return ""
}

// backfill materializes at most one instance per template for rules that
// fired on fully-skipped days between the last run and the target date.
// The walk covers the whole gap; the per-template cap alone bounds the
// emitted volume, so a long outage never loses a firing.
func (m *Materializer) backfill(templates []model.Template, lastRun string, targetDay time.Time, today map[string][]model.Instance, instantiated map[string]bool, allowlist map[string]bool) []model.Instance {
	lastRunDay, err := model.ParseDate(lastRun)
	if err != nil {
		m.log.Warn("unparseable last run date, skipping backfill", "last_run", lastRun)
		return nil
	}
	first := lastRunDay.AddDate(0, 0, 1)

	var out []model.Instance
	for _, tpl := range templates {
		if instantiated[tpl.ID] || len(today[tpl.ID]) > 0 {
			continue
		}
		if len(allowlist) > 0 && !allowlist[tpl.ID] {
			continue
		}
		rule := ruleOf(tpl)
		for day := first; day.Before(targetDay); day = day.AddDate(0, 0, 1) {
			due, _ := recur.IsDue(rule, day)
			if !due {
				continue
			}
			inst := m.instantiate(tpl, targetDay)
			m.log.Info("backfilled missed instance",
				"template_id", tpl.ID, "title", tpl.Title,
				"missed_date", model.FormatDate(day))
			out = append(out, inst)
			instantiated[tpl.ID] = true
			break
		}
	}
	return out
}

// ruleOf lifts a template's scheduling columns into a recurrence rule.
func ruleOf(tpl model.Template) recur.Rule {
	return recur.Rule{
		Unit:            recur.ParseUnit(tpl.RepeatUnit),
		Interval:        tpl.RepeatInterval,
		DaysOfWeek:      tpl.RepeatDaySet(),
		LegacyDayOfWeek: tpl.RepeatDayOfWeek,
		DayOfMonth:      tpl.DayOfMonth,
		Anchor:          tpl.AnchorDay(),
	}
}

func indexByTemplate(instances []model.Instance) map[string][]model.Instance {
	out := make(map[string][]model.Instance, len(instances))
	for _, inst := range instances {
		if inst.TemplateID == "" {
			continue
		}
		out[inst.TemplateID] = append(out[inst.TemplateID], inst)
	}
	return out
}

func naturalKey(inst model.Instance) string {
	return inst.UserID + "|" + inst.LocalDate + "|" + inst.TemplateID
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func concat(lists ...[]model.Instance) []model.Instance {
	var out []model.Instance
	for _, l := range lists {
		out = append(out, l...)
	}
	return out
}
