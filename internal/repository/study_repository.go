package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"study-planner/internal/model"
)

// StudyRepository manages the actual-study log.
type StudyRepository struct {
	db *gorm.DB
}

func NewStudyRepository(db *gorm.DB) *StudyRepository {
	return &StudyRepository{db: db}
}

func (r *StudyRepository) Create(ctx context.Context, entry *model.StudyLogEntry) error {
	if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("create study log entry: %w", err)
	}
	return nil
}

func (r *StudyRepository) ListByProjectAndDate(ctx context.Context, projectID uint, date string) ([]model.StudyLogEntry, error) {
	var entries []model.StudyLogEntry
	if err := r.db.WithContext(ctx).
		Where("project_id = ? AND date = ?", projectID, date).
		Order("id").
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}
