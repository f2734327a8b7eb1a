package repository

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"study-planner/internal/model"
)

// SubjectRepository manages studiable subjects.
type SubjectRepository struct {
	db *gorm.DB
}

func NewSubjectRepository(db *gorm.DB) *SubjectRepository {
	return &SubjectRepository{db: db}
}

func (r *SubjectRepository) Create(ctx context.Context, subject *model.Subject) error {
	if err := r.db.WithContext(ctx).Create(subject).Error; err != nil {
		return fmt.Errorf("create subject: %w", err)
	}
	return nil
}

func (r *SubjectRepository) ListByUser(ctx context.Context, userID uint) ([]model.Subject, error) {
	var subjects []model.Subject
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("name ASC").Find(&subjects).Error; err != nil {
		return nil, err
	}
	return subjects, nil
}

// FindByName matches a subject by name, case-insensitively.
func (r *SubjectRepository) FindByName(ctx context.Context, userID uint, name string) (*model.Subject, error) {
	var subject model.Subject
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND LOWER(name) = ?", userID, strings.ToLower(strings.TrimSpace(name))).
		First(&subject).Error; err != nil {
		return nil, err
	}
	return &subject, nil
}

// MarkRevision flags one subject as the revision subject and clears the
// flag from every other subject of the user, so at most one carries it.
func (r *SubjectRepository) MarkRevision(ctx context.Context, userID, subjectID uint) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&model.Subject{}).
			Where("user_id = ? AND is_revision = ?", userID, true).
			Update("is_revision", false).Error; err != nil {
			return err
		}
		return tx.Model(&model.Subject{}).
			Where("user_id = ? AND id = ?", userID, subjectID).
			Update("is_revision", true).Error
	})
	if err != nil {
		return fmt.Errorf("mark revision subject: %w", err)
	}
	return nil
}
