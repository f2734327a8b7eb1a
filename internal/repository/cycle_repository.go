package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"study-planner/internal/model"
)

// CycleRepository manages study cycles and their ordered items.
type CycleRepository struct {
	db *gorm.DB
}

func NewCycleRepository(db *gorm.DB) *CycleRepository {
	return &CycleRepository{db: db}
}

// CreateAsDefault inserts a cycle and makes it the user's default,
// clearing the flag from any previous one.
func (r *CycleRepository) CreateAsDefault(ctx context.Context, cycle *model.Cycle) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&model.Cycle{}).
			Where("user_id = ? AND is_default = ?", cycle.UserID, true).
			Update("is_default", false).Error; err != nil {
			return err
		}
		cycle.IsDefault = true
		return tx.Create(cycle).Error
	})
	if err != nil {
		return fmt.Errorf("create cycle: %w", err)
	}
	return nil
}

func (r *CycleRepository) ListByUser(ctx context.Context, userID uint) ([]model.Cycle, error) {
	var cycles []model.Cycle
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("id").Find(&cycles).Error; err != nil {
		return nil, err
	}
	return cycles, nil
}

// AppendItem adds a subject block at the end of the cycle's rotation order.
func (r *CycleRepository) AppendItem(ctx context.Context, cycleID, subjectID uint, minutes int) (*model.CycleItem, error) {
	var item model.CycleItem
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var maxIndex int
		if err := tx.Model(&model.CycleItem{}).
			Where("cycle_id = ?", cycleID).
			Select("COALESCE(MAX(item_index), -1)").
			Scan(&maxIndex).Error; err != nil {
			return err
		}
		item = model.CycleItem{
			CycleID:   cycleID,
			Index:     maxIndex + 1,
			SubjectID: subjectID,
			Minutes:   minutes,
		}
		return tx.Create(&item).Error
	})
	if err != nil {
		return nil, fmt.Errorf("append cycle item: %w", err)
	}
	return &item, nil
}
