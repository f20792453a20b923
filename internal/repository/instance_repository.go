package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"dayflow/internal/model"
)

// InstanceRepository reads and writes scheduled task instances. All
// writes go through the natural key (user_id, local_date, template_id).
type InstanceRepository struct {
	db *gorm.DB
}

func NewInstanceRepository(db *gorm.DB) *InstanceRepository {
	return &InstanceRepository{db: db}
}

// ListByDate returns every instance for one user and local date.
func (r *InstanceRepository) ListByDate(ctx context.Context, userID, localDate string) ([]model.Instance, error) {
	var instances []model.Instance
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND local_date = ?", userID, localDate).
		Order("local_date ASC, template_id ASC").
		Find(&instances).Error; err != nil {
		return nil, fmt.Errorf("list instances for %s: %w", localDate, err)
	}
	return instances, nil
}

// ListByDateRange returns instances with from <= local_date <= to. ISO
// dates sort lexically, so string comparison is a date comparison.
func (r *InstanceRepository) ListByDateRange(ctx context.Context, userID, from, to string) ([]model.Instance, error) {
	var instances []model.Instance
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND local_date >= ? AND local_date <= ?", userID, from, to).
		Order("local_date ASC, template_id ASC").
		Find(&instances).Error; err != nil {
		return nil, fmt.Errorf("list instances %s..%s: %w", from, to, err)
	}
	return instances, nil
}

// LastRunDate finds the most recent local date strictly before the given
// one that has any instance row, i.e. the last day the job actually ran.
// Returns "" when there is no earlier history.
func (r *InstanceRepository) LastRunDate(ctx context.Context, userID, before string) (string, error) {
	var inst model.Instance
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND local_date < ?", userID, before).
		Order("local_date DESC").
		First(&inst).Error
	switch {
	case err == nil:
		return inst.LocalDate, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return "", nil
	default:
		return "", fmt.Errorf("find last run date: %w", err)
	}
}

// ReplaceDay atomically supersedes one user-day of schedule: stale
// active rows not in keep are removed, then every row is written through
// a guarded upsert on the natural key. Rows completed or explicitly
// skipped in the meantime are never touched — the user action wins.
// Everything happens in one transaction, so a failed run commits nothing.
func (r *InstanceRepository) ReplaceDay(ctx context.Context, userID, localDate string, keep []string, rows []model.Instance) (deleted, upserted int, err error) {
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		deleted, err = deleteStale(tx, userID, localDate, keep)
		if err != nil {
			return err
		}
		upserted, err = upsertRows(tx, rows)
		return err
	})
	if err != nil {
		return 0, 0, fmt.Errorf("replace day %s: %w", localDate, err)
	}
	return deleted, upserted, nil
}

// deleteStale removes active rows for one user and date whose ids are
// not in keep. Completed and explicitly skipped rows are never deleted.
func deleteStale(tx *gorm.DB, userID, localDate string, keep []string) (int, error) {
	q := tx.Where("user_id = ? AND local_date = ? AND is_completed = ? AND is_deleted = ?",
		userID, localDate, false, false)
	if len(keep) > 0 {
		q = q.Where("id NOT IN ?", keep)
	}
	res := q.Delete(&model.Instance{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete stale instances: %w", res.Error)
	}
	return int(res.RowsAffected), nil
}

// upsertRows writes each row by natural key: update when an active row
// exists, insert when none does, skip silently when the existing row was
// locked by a user action since materialization read it.
func upsertRows(tx *gorm.DB, rows []model.Instance) (int, error) {
	count := 0
	for i := range rows {
		row := rows[i]
		res := tx.Model(&model.Instance{}).
			Where("user_id = ? AND local_date = ? AND template_id = ?",
				row.UserID, row.LocalDate, row.TemplateID).
			Where("is_completed = ? AND is_deleted = ?", false, false).
			Updates(map[string]interface{}{
				"title":            row.Title,
				"start_time":       row.StartTime,
				"end_time":         row.EndTime,
				"duration_minutes": row.DurationMinutes,
				"priority":         row.Priority,
				"window_start":     row.WindowStart,
				"window_end":       row.WindowEnd,
				"is_appointment":   row.IsAppointment,
				"is_routine":       row.IsRoutine,
				"is_fixed":         row.IsFixed,
				"description":      row.Description,
			})
		if res.Error != nil {
			return count, fmt.Errorf("upsert instance %s/%s: %w", row.LocalDate, row.TemplateID, res.Error)
		}
		if res.RowsAffected > 0 {
			count++
			continue
		}

		var existing int64
		if err := tx.Model(&model.Instance{}).
			Where("user_id = ? AND local_date = ? AND template_id = ?",
				row.UserID, row.LocalDate, row.TemplateID).
			Count(&existing).Error; err != nil {
			return count, fmt.Errorf("check instance %s/%s: %w", row.LocalDate, row.TemplateID, err)
		}
		if existing > 0 {
			// Locked by a concurrent complete/skip; leave it be.
			continue
		}
		if err := tx.Create(&row).Error; err != nil {
			return count, fmt.Errorf("insert instance %s/%s: %w", row.LocalDate, row.TemplateID, err)
		}
		count++
	}
	return count, nil
}
