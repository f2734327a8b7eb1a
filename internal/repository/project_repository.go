package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"study-planner/internal/model"
)

// ProjectRepository manages study projects.
type ProjectRepository struct {
	db *gorm.DB
}

func NewProjectRepository(db *gorm.DB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

func (r *ProjectRepository) Create(ctx context.Context, project *model.Project) error {
	if err := r.db.WithContext(ctx).Create(project).Error; err != nil {
		return fmt.Errorf("create project: %w", err)
	}
	return nil
}

func (r *ProjectRepository) ListByUser(ctx context.Context, userID uint) ([]model.Project, error) {
	var projects []model.Project
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("id").Find(&projects).Error; err != nil {
		return nil, err
	}
	return projects, nil
}

func (r *ProjectRepository) FindByID(ctx context.Context, userID, projectID uint) (*model.Project, error) {
	var project model.Project
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND id = ?", userID, projectID).
		First(&project).Error; err != nil {
		return nil, err
	}
	return &project, nil
}

// SetDefault marks one project as the user's working project.
func (r *ProjectRepository) SetDefault(ctx context.Context, userID, projectID uint) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&model.Project{}).
			Where("user_id = ? AND is_default = ?", userID, true).
			Update("is_default", false).Error; err != nil {
			return err
		}
		return tx.Model(&model.Project{}).
			Where("user_id = ? AND id = ?", userID, projectID).
			Update("is_default", true).Error
	})
	if err != nil {
		return fmt.Errorf("set default project: %w", err)
	}
	return nil
}

// GetDefaultOrSole returns the user's working project: the flagged default,
// or the only project when none is flagged, or nil.
func (r *ProjectRepository) GetDefaultOrSole(ctx context.Context, userID uint) (*model.Project, error) {
	var project model.Project
	err := r.db.WithContext(ctx).Where("user_id = ? AND is_default = ?", userID, true).First(&project).Error
	if err == nil {
		return &project, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("find default project: %w", err)
	}

	var projects []model.Project
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Limit(2).Find(&projects).Error; err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	if len(projects) == 1 {
		return &projects[0], nil
	}
	return nil, nil
}
