package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"study-planner/internal/model"
)

// GridRepository manages weekly grids and their time slots.
type GridRepository struct {
	db *gorm.DB
}

func NewGridRepository(db *gorm.DB) *GridRepository {
	return &GridRepository{db: db}
}

// CreateAsDefault inserts a grid and makes it the user's default, clearing
// the flag from any previous one.
func (r *GridRepository) CreateAsDefault(ctx context.Context, grid *model.WeeklyGrid) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&model.WeeklyGrid{}).
			Where("user_id = ? AND is_default = ?", grid.UserID, true).
			Update("is_default", false).Error; err != nil {
			return err
		}
		grid.IsDefault = true
		return tx.Create(grid).Error
	})
	if err != nil {
		return fmt.Errorf("create grid: %w", err)
	}
	return nil
}

func (r *GridRepository) ListByUser(ctx context.Context, userID uint) ([]model.WeeklyGrid, error) {
	var grids []model.WeeklyGrid
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("id").Find(&grids).Error; err != nil {
		return nil, err
	}
	return grids, nil
}

func (r *GridRepository) AddSlot(ctx context.Context, slot *model.GridSlot) error {
	if err := r.db.WithContext(ctx).Create(slot).Error; err != nil {
		return fmt.Errorf("add grid slot: %w", err)
	}
	return nil
}

// ListSlots returns every slot of a grid ordered by weekday then start time.
func (r *GridRepository) ListSlots(ctx context.Context, gridID uint) ([]model.GridSlot, error) {
	var slots []model.GridSlot
	if err := r.db.WithContext(ctx).
		Where("grid_id = ?", gridID).
		Order("weekday, start_time").
		Find(&slots).Error; err != nil {
		return nil, err
	}
	return slots, nil
}
