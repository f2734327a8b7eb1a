package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"study-planner/internal/model"
)

// ScheduleRepository is the storage adapter behind the schedule generator,
// plus the task queries the bot surfaces need. It satisfies
// service.ScheduleRepository.
type ScheduleRepository struct {
	db *gorm.DB
}

func NewScheduleRepository(db *gorm.DB) *ScheduleRepository {
	return &ScheduleRepository{db: db}
}

func (r *ScheduleRepository) GetProject(ctx context.Context, projectID uint) (*model.Project, error) {
	var project model.Project
	if err := r.db.WithContext(ctx).First(&project, projectID).Error; err != nil {
		return nil, fmt.Errorf("find project %d: %w", projectID, err)
	}
	return &project, nil
}

// GetDefaultOrSoleCycle resolves the cycle the generator should use: the
// one flagged default, or the user's only cycle, or nil.
func (r *ScheduleRepository) GetDefaultOrSoleCycle(ctx context.Context, userID uint) (*model.Cycle, error) {
	var cycle model.Cycle
	err := r.db.WithContext(ctx).Where("user_id = ? AND is_default = ?", userID, true).First(&cycle).Error
	if err == nil {
		return &cycle, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("find default cycle: %w", err)
	}

	var cycles []model.Cycle
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Limit(2).Find(&cycles).Error; err != nil {
		return nil, fmt.Errorf("list cycles: %w", err)
	}
	if len(cycles) == 1 {
		return &cycles[0], nil
	}
	return nil, nil
}

// GetDefaultOrSoleGrid resolves the weekly grid with the same
// default-or-sole rule as cycles.
func (r *ScheduleRepository) GetDefaultOrSoleGrid(ctx context.Context, userID uint) (*model.WeeklyGrid, error) {
	var grid model.WeeklyGrid
	err := r.db.WithContext(ctx).Where("user_id = ? AND is_default = ?", userID, true).First(&grid).Error
	if err == nil {
		return &grid, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("find default grid: %w", err)
	}

	var grids []model.WeeklyGrid
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Limit(2).Find(&grids).Error; err != nil {
		return nil, fmt.Errorf("list grids: %w", err)
	}
	if len(grids) == 1 {
		return &grids[0], nil
	}
	return nil, nil
}

func (r *ScheduleRepository) ListCycleItems(ctx context.Context, cycleID uint) ([]model.CycleItem, error) {
	var items []model.CycleItem
	if err := r.db.WithContext(ctx).Preload("Subject").
		Where("cycle_id = ?", cycleID).
		Order("item_index").
		Find(&items).Error; err != nil {
		return nil, fmt.Errorf("list cycle items: %w", err)
	}
	return items, nil
}

func (r *ScheduleRepository) ListGridSlots(ctx context.Context, gridID uint, weekday int) ([]model.GridSlot, error) {
	var slots []model.GridSlot
	if err := r.db.WithContext(ctx).
		Where("grid_id = ? AND weekday = ?", gridID, weekday).
		Order("start_time").
		Find(&slots).Error; err != nil {
		return nil, fmt.Errorf("list grid slots: %w", err)
	}
	return slots, nil
}

func (r *ScheduleRepository) GetRevisionSubject(ctx context.Context, userID uint) (*model.Subject, error) {
	var subject model.Subject
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND is_revision = ?", userID, true).
		Order("id").
		First(&subject).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find revision subject: %w", err)
	}
	return &subject, nil
}

func (r *ScheduleRepository) MaxDayNumber(ctx context.Context, projectID uint) (int, error) {
	var maxDay int
	if err := r.db.WithContext(ctx).Model(&model.ScheduledTask{}).
		Where("project_id = ?", projectID).
		Select("COALESCE(MAX(day_number), 0)").
		Scan(&maxDay).Error; err != nil {
		return 0, fmt.Errorf("max day number: %w", err)
	}
	return maxDay, nil
}

func (r *ScheduleRepository) HasTasksOnDate(ctx context.Context, projectID uint, date string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&model.ScheduledTask{}).
		Where("project_id = ? AND date = ?", projectID, date).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("count tasks on %s: %w", date, err)
	}
	return count > 0, nil
}

func (r *ScheduleRepository) LastCycleStudyTask(ctx context.Context, projectID uint) (*model.ScheduledTask, error) {
	var task model.ScheduledTask
	err := r.db.WithContext(ctx).
		Where("project_id = ? AND kind = ?", projectID, model.KindCycleStudy).
		Order("date DESC, id DESC").
		First(&task).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find last rotation task: %w", err)
	}
	return &task, nil
}

func (r *ScheduleRepository) DistinctActivityDates(ctx context.Context, projectID uint) ([]string, []string, error) {
	var history []string
	if err := r.db.WithContext(ctx).Model(&model.StudyLogEntry{}).
		Where("project_id = ? AND kind > 0", projectID).
		Distinct().
		Order("date").
		Pluck("date", &history).Error; err != nil {
		return nil, nil, fmt.Errorf("history dates: %w", err)
	}

	var plan []string
	if err := r.db.WithContext(ctx).Model(&model.ScheduledTask{}).
		Where("project_id = ? AND kind > 0", projectID).
		Distinct().
		Order("date").
		Pluck("date", &plan).Error; err != nil {
		return nil, nil, fmt.Errorf("plan dates: %w", err)
	}

	return history, plan, nil
}

// InsertTasks persists a whole generation batch atomically: either every
// date's tasks land or none do.
func (r *ScheduleRepository) InsertTasks(ctx context.Context, projectID uint, tasks []model.ScheduledTask) error {
	if len(tasks) == 0 {
		return nil
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(&tasks).Error
	})
	if err != nil {
		return fmt.Errorf("insert %d tasks for project %d: %w", len(tasks), projectID, err)
	}
	return nil
}

// ListTasksBetween returns a project's tasks in [from, to] ordered for
// display.
func (r *ScheduleRepository) ListTasksBetween(ctx context.Context, projectID uint, from, to string) ([]model.ScheduledTask, error) {
	var tasks []model.ScheduledTask
	if err := r.db.WithContext(ctx).
		Where("project_id = ? AND date >= ? AND date <= ?", projectID, from, to).
		Order("date, start_time, id").
		Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return tasks, nil
}

func (r *ScheduleRepository) FindTask(ctx context.Context, projectID, taskID uint) (*model.ScheduledTask, error) {
	var task model.ScheduledTask
	if err := r.db.WithContext(ctx).
		Where("project_id = ? AND id = ?", projectID, taskID).
		First(&task).Error; err != nil {
		return nil, err
	}
	return &task, nil
}

func (r *ScheduleRepository) UpdateTaskStatus(ctx context.Context, task *model.ScheduledTask, status model.TaskStatus) error {
	task.Status = status
	if err := r.db.WithContext(ctx).Save(task).Error; err != nil {
		return fmt.Errorf("update task status: %w", err)
	}
	return nil
}
