package model

import "time"

// Instance is one day's materialization of a template, or a standalone
// one-off task. The triple (UserID, LocalDate, TemplateID) is the natural
// key: the materializer de-duplicates on it and the writer upserts by it.
type Instance struct {
	ID         string `gorm:"primaryKey;size:36"`
	UserID     string `gorm:"size:36;uniqueIndex:idx_instance_natural_key"`
	LocalDate  string `gorm:"size:10;uniqueIndex:idx_instance_natural_key"`
	TemplateID string `gorm:"size:36;uniqueIndex:idx_instance_natural_key"`

	Title string

	// StartTime / EndTime are nil until the day scheduler has placed the
	// item. A floating instance must enter scheduling with both nil.
	StartTime *time.Time
	EndTime   *time.Time

	DurationMinutes int
	Priority        int
	WindowStart     string
	WindowEnd       string

	IsAppointment bool `gorm:"default:false"`
	IsRoutine     bool `gorm:"default:false"`
	IsFixed       bool `gorm:"default:false"`

	// IsCompleted and IsDeleted are user actions: done, and explicitly
	// skipped for the day. Either one makes the row immutable to later
	// scheduler runs on the same date.
	IsCompleted bool `gorm:"default:false"`
	IsDeleted   bool `gorm:"default:false"`

	// Description carries the "why this couldn't be scheduled" note for
	// unplaceable items; it is cleared once the item is placed.
	Description string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Kind derives the closed classification from the flag columns. Only the
// materializer calls this when building candidates; downstream code works
// off the carried times.
func (i *Instance) Kind() Kind {
	switch {
	case i.IsAppointment:
		return KindAppointment
	case i.IsRoutine:
		return KindRoutine
	case i.IsFixed:
		return KindFixed
	default:
		return KindFloating
	}
}

// SetKind stamps the flag columns from the enum, keeping them mutually
// consistent.
func (i *Instance) SetKind(k Kind) {
	i.IsAppointment = k == KindAppointment
	i.IsRoutine = k == KindRoutine
	i.IsFixed = k == KindFixed
}

// HasTimes reports whether the instance carries a usable placed interval.
func (i *Instance) HasTimes() bool {
	return i.StartTime != nil && i.EndTime != nil && i.EndTime.After(*i.StartTime)
}

// Locked reports whether the row is immutable to later runs.
func (i *Instance) Locked() bool {
	return i.IsCompleted || i.IsDeleted
}
