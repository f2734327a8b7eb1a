package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"study-planner/internal/model"
)

// SettingsRepository manages per-user review settings.
type SettingsRepository struct {
	db *gorm.DB
}

func NewSettingsRepository(db *gorm.DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// GetOrInit returns the user's settings row, creating it with defaults on
// first access.
func (r *SettingsRepository) GetOrInit(ctx context.Context, userID uint) (*model.Settings, error) {
	var settings model.Settings
	db := r.db.WithContext(ctx)
	err := db.Where("user_id = ?", userID).First(&settings).Error
	switch {
	case err == nil:
		return &settings, nil
	case err == gorm.ErrRecordNotFound:
		settings = model.Settings{
			UserID:       userID,
			Rev24Minutes: 15,
			Rev7Minutes:  60,
			Rev30Minutes: 120,
		}
		if err := db.Create(&settings).Error; err != nil {
			return nil, fmt.Errorf("create settings: %w", err)
		}
		return &settings, nil
	default:
		return nil, fmt.Errorf("find settings: %w", err)
	}
}

func (r *SettingsRepository) Update(ctx context.Context, settings *model.Settings) error {
	if err := r.db.WithContext(ctx).Save(settings).Error; err != nil {
		return fmt.Errorf("update settings: %w", err)
	}
	return nil
}
