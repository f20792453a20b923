package service

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"dayflow/internal/model"
)

// Unplaced pairs an instance with the reason it could not be scheduled.
type Unplaced struct {
	Instance model.Instance
	Reason   string
}

// DayPlan is the outcome of one scheduling pass: everything that got a
// time, sorted by start, and everything that visibly did not.
type DayPlan struct {
	Placed   []model.Instance
	Unplaced []Unplaced
}

// DayScheduler packs a candidate set into a bounded day window. It is
// deterministic for fixed input: re-running over the same candidates and
// window produces identical placements.
type DayScheduler struct {
	log *slog.Logger
}

func NewDayScheduler(log *slog.Logger) *DayScheduler {
	return &DayScheduler{log: log}
}

// span is a half-open [start, end) interval.
type span struct {
	start time.Time
	end   time.Time
}

func (s span) minutes() int {
	return int(s.end.Sub(s.start) / time.Minute)
}

// ScheduleDay places candidates into [dayStart, dayEnd). busy carries
// rows that are already immutable for the day; completed ones that hold
// a time block placement but are not re-emitted. Explicitly skipped rows
// give their interval back: a user skip frees the slot.
func (s *DayScheduler) ScheduleDay(candidates []model.Instance, busy []model.Instance, dayStart, dayEnd time.Time) DayPlan {
	var plan DayPlan

	occupied := make([]span, 0, len(candidates)+len(busy))
	for _, b := range busy {
		if b.HasTimes() && !b.IsDeleted {
			occupied = insertSpan(occupied, span{*b.StartTime, *b.EndTime})
		}
	}

	// A candidate is fixed-class only if it actually carries a valid
	// interval; declared flags alone do not earn a time slot.
	var fixedClass, floating []model.Instance
	for _, c := range candidates {
		if c.HasTimes() {
			fixedClass = append(fixedClass, c)
		} else {
			floating = append(floating, c)
		}
	}

	sortFixedClass(fixedClass)
	for _, item := range fixedClass {
		placed, reason := s.placeFixed(item, &occupied, dayStart, dayEnd)
		if reason != "" {
			s.log.Info("unplaceable fixed-class item",
				"title", item.Title, "template_id", item.TemplateID, "reason", reason)
			plan.Unplaced = append(plan.Unplaced, Unplaced{Instance: item, Reason: reason})
			continue
		}
		plan.Placed = append(plan.Placed, placed)
	}

	sortFloating(floating)

	gaps := freeGaps(occupied, dayStart, dayEnd)
	var leftovers []model.Instance
	for _, item := range floating {
		if item.DurationMinutes <= 0 {
			s.log.Warn("skipping floating item with non-positive duration",
				"title", item.Title, "template_id", item.TemplateID,
				"duration_minutes", item.DurationMinutes)
			plan.Unplaced = append(plan.Unplaced, Unplaced{Instance: item, Reason: "non-positive duration"})
			continue
		}
		placed, reason, final := s.placeFloating(item, &gaps, &occupied, dayStart, dayEnd)
		if reason != "" {
			if final {
				plan.Unplaced = append(plan.Unplaced, Unplaced{Instance: item, Reason: reason})
			} else {
				leftovers = append(leftovers, item)
			}
			continue
		}
		plan.Placed = append(plan.Placed, placed)
	}

	// Second pass: fixed-class placement may have left room the first
	// gap scan could not see once earlier floats consumed their gaps.
	gaps = freeGaps(occupied, dayStart, dayEnd)
	for _, item := range leftovers {
		placed, reason, _ := s.placeFloating(item, &gaps, &occupied, dayStart, dayEnd)
		if reason != "" {
			s.log.Info("unplaceable floating item",
				"title", item.Title, "template_id", item.TemplateID, "reason", reason)
			plan.Unplaced = append(plan.Unplaced, Unplaced{Instance: item, Reason: reason})
			continue
		}
		plan.Placed = append(plan.Placed, placed)
	}

	sort.SliceStable(plan.Placed, func(i, j int) bool {
		a, b := plan.Placed[i], plan.Placed[j]
		if !a.StartTime.Equal(*b.StartTime) {
			return a.StartTime.Before(*b.StartTime)
		}
		return tieBreaker(a) < tieBreaker(b)
	})
	return plan
}

// placeFixed handles appointments, routines and plain fixed items. An
// empty reason means success.
func (s *DayScheduler) placeFixed(item model.Instance, occupied *[]span, dayStart, dayEnd time.Time) (model.Instance, string) {
	start := *item.StartTime
	end := *item.EndTime

	if item.IsAppointment {
		// Appointments are authoritative: exact time or nothing.
		if start.Before(dayStart) || end.After(dayEnd) {
			return item, "appointment outside day bounds"
		}
		if conflictsWith(*occupied, span{start, end}) {
			return item, "appointment overlaps an earlier placement"
		}
		return commit(item, span{start, end}, occupied), ""
	}

	if !item.IsRoutine && start.Before(dayStart) {
		// A plain fixed item whose time has already passed cannot be
		// moved into the past; it drops out of today's placement.
		return item, "start time already passed"
	}

	proposed := start
	if proposed.Before(dayStart) {
		proposed = dayStart
	}
	slot, ok := firstFreeSlot(*occupied, proposed, item.DurationMinutes, dayEnd)
	if !ok {
		return item, "no room before end of day"
	}
	return commit(item, slot, occupied), ""
}

// placeFloating scans gaps in start order for the first one whose
// intersection with the item's allowed range fits the duration. final
// marks failures that a second pass cannot fix.
func (s *DayScheduler) placeFloating(item model.Instance, gaps *[]span, occupied *[]span, dayStart, dayEnd time.Time) (model.Instance, string, bool) {
	allowed, windowLabel := allowedRange(item, dayStart, dayEnd)
	if !allowed.start.Before(allowed.end) {
		return item, fmt.Sprintf("time window %s has passed", windowLabel), true
	}

	for i, g := range *gaps {
		inter := span{maxTime(g.start, allowed.start), minTime(g.end, allowed.end)}
		if inter.minutes() < item.DurationMinutes {
			continue
		}
		slot := span{inter.start, inter.start.Add(time.Duration(item.DurationMinutes) * time.Minute)}
		*gaps = splitGap(*gaps, i, slot)
		return commit(item, slot, occupied), "", false
	}

	return item, fmt.Sprintf("no free slot of %d min within %s", item.DurationMinutes, windowLabel), false
}

// commit stamps the slot onto a copy of the instance, clears any stale
// unplaceable note and records the interval as occupied.
func commit(item model.Instance, slot span, occupied *[]span) model.Instance {
	start, end := slot.start, slot.end
	item.StartTime = &start
	item.EndTime = &end
	item.Description = ""
	*occupied = insertSpan(*occupied, slot)
	return item
}

// allowedRange intersects the day window with the item's optional clock
// window, resolved on the day of dayStart in its location.
func allowedRange(item model.Instance, dayStart, dayEnd time.Time) (span, string) {
	allowed := span{dayStart, dayEnd}
	loc := dayStart.Location()
	var bounds []string
	if c, err := model.ParseClock(item.WindowStart); err == nil && item.WindowStart != "" {
		allowed.start = maxTime(allowed.start, c.On(dayStart, loc))
		bounds = append(bounds, c.String())
	} else {
		bounds = append(bounds, dayStart.Format("15:04"))
	}
	if c, err := model.ParseClock(item.WindowEnd); err == nil && item.WindowEnd != "" {
		allowed.end = minTime(allowed.end, c.On(dayStart, loc))
		bounds = append(bounds, c.String())
	} else {
		bounds = append(bounds, dayEnd.Format("15:04"))
	}
	return allowed, strings.Join(bounds, "-")
}

// sortFixedClass orders appointments first, then routines, then plain
// fixed items, each by ascending start with a stable id tiebreak.
func sortFixedClass(items []model.Instance) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if a.IsAppointment != b.IsAppointment {
			return a.IsAppointment
		}
		if a.IsRoutine != b.IsRoutine {
			return a.IsRoutine
		}
		if !a.StartTime.Equal(*b.StartTime) {
			return a.StartTime.Before(*b.StartTime)
		}
		return tieBreaker(a) < tieBreaker(b)
	})
}

// sortFloating orders by priority (1 = most important), then longer
// durations first so long tasks are not starved by many short ones, then
// a reproducible tiebreak.
func sortFloating(items []model.Instance) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		pa, pb := clampPriority(a.Priority), clampPriority(b.Priority)
		if pa != pb {
			return pa < pb
		}
		if a.DurationMinutes != b.DurationMinutes {
			return a.DurationMinutes > b.DurationMinutes
		}
		return tieBreaker(a) < tieBreaker(b)
	})
}

func tieBreaker(i model.Instance) string {
	if i.TemplateID != "" {
		return i.TemplateID
	}
	if i.ID != "" {
		return i.ID
	}
	return i.Title
}

func clampPriority(p int) int {
	if p < model.PriorityHighest {
		return model.PriorityHighest
	}
	if p > model.PriorityLowest {
		return model.PriorityLowest
	}
	return p
}

// firstFreeSlot advances the proposed start past every conflicting
// occupied interval; it fails once the slot would end after limit.
func firstFreeSlot(occupied []span, proposed time.Time, durationMinutes int, limit time.Time) (span, bool) {
	duration := time.Duration(durationMinutes) * time.Minute
	for {
		slot := span{proposed, proposed.Add(duration)}
		if slot.end.After(limit) {
			return span{}, false
		}
		conflict, found := firstConflict(occupied, slot)
		if !found {
			return slot, true
		}
		proposed = conflict.end
	}
}

func firstConflict(occupied []span, slot span) (span, bool) {
	for _, o := range occupied {
		if o.start.Before(slot.end) && o.end.After(slot.start) {
			return o, true
		}
	}
	return span{}, false
}

func conflictsWith(occupied []span, slot span) bool {
	_, found := firstConflict(occupied, slot)
	return found
}

// freeGaps computes the complement of the occupied intervals within the
// day window, in start order.
func freeGaps(occupied []span, dayStart, dayEnd time.Time) []span {
	var gaps []span
	cursor := dayStart
	for _, o := range occupied {
		if !o.end.After(cursor) || !o.start.Before(dayEnd) {
			continue
		}
		if o.start.After(cursor) {
			gaps = append(gaps, span{cursor, minTime(o.start, dayEnd)})
		}
		if o.end.After(cursor) {
			cursor = o.end
		}
	}
	if cursor.Before(dayEnd) {
		gaps = append(gaps, span{cursor, dayEnd})
	}
	return gaps
}

// splitGap consumes slot out of gaps[i], leaving up to two remainders.
func splitGap(gaps []span, i int, slot span) []span {
	g := gaps[i]
	out := make([]span, 0, len(gaps)+1)
	out = append(out, gaps[:i]...)
	if g.start.Before(slot.start) {
		out = append(out, span{g.start, slot.start})
	}
	if slot.end.Before(g.end) {
		out = append(out, span{slot.end, g.end})
	}
	return append(out, gaps[i+1:]...)
}

// insertSpan keeps the occupied list sorted by start.
func insertSpan(spans []span, s span) []span {
	idx := sort.Search(len(spans), func(i int) bool {
		return spans[i].start.After(s.start)
	})
	spans = append(spans, span{})
	copy(spans[idx+1:], spans[idx:])
	spans[idx] = s
	return spans
}

func maxTime(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

func minTime(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}
