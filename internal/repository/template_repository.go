package repository

import (
	"context"
	"fmt"
	"log/slog"

	"gorm.io/gorm"

	"dayflow/internal/model"
)

// TemplateRepository reads task templates. Templates are authored by an
// external surface; this side only consumes them.
type TemplateRepository struct {
	db  *gorm.DB
	log *slog.Logger
}

func NewTemplateRepository(db *gorm.DB, log *slog.Logger) *TemplateRepository {
	return &TemplateRepository{db: db, log: log}
}

// ListLive returns all non-deleted templates for a user, with field
// defaults applied. Defaulting happens here and nowhere else.
func (r *TemplateRepository) ListLive(ctx context.Context, userID string) ([]model.Template, error) {
	var templates []model.Template
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND is_deleted = ?", userID, false).
		Order("id ASC").
		Find(&templates).Error; err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	for i := range templates {
		for _, fix := range templates[i].Normalize() {
			r.log.Warn("template field defaulted",
				"template_id", templates[i].ID,
				"title", templates[i].Title,
				"fix", fix)
		}
	}
	return templates, nil
}

// ListByIDs returns templates by id regardless of the deleted flag, so
// carry-forward can see soft-deleted owners.
func (r *TemplateRepository) ListByIDs(ctx context.Context, userID string, ids []string) ([]model.Template, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var templates []model.Template
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND id IN ?", userID, ids).
		Find(&templates).Error; err != nil {
		return nil, fmt.Errorf("list templates by id: %w", err)
	}
	for i := range templates {
		templates[i].Normalize()
	}
	return templates, nil
}

// DistinctUserIDs lists every user that owns at least one live template.
func (r *TemplateRepository) DistinctUserIDs(ctx context.Context) ([]string, error) {
	var ids []string
	if err := r.db.WithContext(ctx).
		Model(&model.Template{}).
		Where("is_deleted = ?", false).
		Distinct("user_id").
		Order("user_id ASC").
		Pluck("user_id", &ids).Error; err != nil {
		return nil, fmt.Errorf("list user ids: %w", err)
	}
	return ids, nil
}
