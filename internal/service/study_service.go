package service

import (
	"context"
	"fmt"
	"time"

	"study-planner/internal/model"
	"study-planner/internal/repository"
)

// StudyService records actual study activity: free timer sessions and
// completions of scheduled tasks. The generator only ever reads what this
// service writes.
type StudyService struct {
	studyRepo    *repository.StudyRepository
	scheduleRepo *repository.ScheduleRepository
	clock        Clock
}

func NewStudyService(studyRepo *repository.StudyRepository, scheduleRepo *repository.ScheduleRepository, clock Clock) *StudyService {
	if clock == nil {
		clock = time.Now
	}
	return &StudyService{studyRepo: studyRepo, scheduleRepo: scheduleRepo, clock: clock}
}

// LogSession stores a finished study session for today.
func (s *StudyService) LogSession(ctx context.Context, project *model.Project, subject *model.Subject, minutes int) (*model.StudyLogEntry, error) {
	if minutes <= 0 {
		return nil, fmt.Errorf("session duration must be positive")
	}

	date := s.clock().Format(DateFormat)
	dayNumber, err := s.dayNumberFor(ctx, project.ID, date)
	if err != nil {
		return nil, err
	}

	entry := model.StudyLogEntry{
		ProjectID:   project.ID,
		Date:        date,
		DayNumber:   dayNumber,
		ActualHours: float64(minutes) / 60,
		Kind:        model.KindCycleStudy,
		Description: "Study session",
	}
	if subject != nil {
		id := subject.ID
		entry.SubjectID = &id
		entry.Description = "Study session: " + subject.Name
	}

	if err := s.studyRepo.Create(ctx, &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

// CompleteTask marks a scheduled task done and writes the matching study
// log entry, crediting the planned duration as studied time.
func (s *StudyService) CompleteTask(ctx context.Context, project *model.Project, taskID uint) (*model.ScheduledTask, error) {
	task, err := s.scheduleRepo.FindTask(ctx, project.ID, taskID)
	if err != nil {
		return nil, err
	}
	if task.Status == model.StatusDone {
		return task, nil
	}

	if err := s.scheduleRepo.UpdateTaskStatus(ctx, task, model.StatusDone); err != nil {
		return nil, err
	}

	entry := model.StudyLogEntry{
		ProjectID:   task.ProjectID,
		SubjectID:   task.SubjectID,
		Date:        task.Date,
		DayNumber:   task.DayNumber,
		ActualHours: task.PlannedHours,
		Kind:        task.Kind,
		Description: task.Description,
	}
	if err := s.studyRepo.Create(ctx, &entry); err != nil {
		return nil, err
	}
	return task, nil
}

// dayNumberFor reuses the plan's day number for a date that already has
// tasks, and opens the next number otherwise, keeping log and plan counters
// aligned.
func (s *StudyService) dayNumberFor(ctx context.Context, projectID uint, date string) (int, error) {
	tasks, err := s.scheduleRepo.ListTasksBetween(ctx, projectID, date, date)
	if err != nil {
		return 0, err
	}
	if len(tasks) > 0 {
		return tasks[0].DayNumber, nil
	}
	maxDay, err := s.scheduleRepo.MaxDayNumber(ctx, projectID)
	if err != nil {
		return 0, err
	}
	return maxDay + 1, nil
}
