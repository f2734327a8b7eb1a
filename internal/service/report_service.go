package service

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	"study-planner/internal/model"
	"study-planner/internal/repository"
)

// ReportService builds human-readable agenda texts from the generated plan.
type ReportService struct {
	scheduleRepo *repository.ScheduleRepository
	subjectRepo  *repository.SubjectRepository
}

func NewReportService(scheduleRepo *repository.ScheduleRepository, subjectRepo *repository.SubjectRepository) *ReportService {
	return &ReportService{scheduleRepo: scheduleRepo, subjectRepo: subjectRepo}
}

// DailyAgenda renders one day of the plan for a project.
func (s *ReportService) DailyAgenda(ctx context.Context, user model.User, project model.Project, date time.Time) (string, error) {
	dateStr := date.Format(DateFormat)
	tasks, err := s.scheduleRepo.ListTasksBetween(ctx, project.ID, dateStr, dateStr)
	if err != nil {
		return "", err
	}

	if len(tasks) == 0 {
		return fmt.Sprintf("📅 <b>%s</b>\nNothing planned for today in <b>%s</b>. Use /generate to extend the schedule.", dateStr, html.EscapeString(project.Name)), nil
	}

	subjectNames, err := s.subjectNames(ctx, user.ID)
	if err != nil {
		return "", err
	}

	var builder strings.Builder
	builder.WriteString(fmt.Sprintf("📅 <b>%s — day %d</b> · %s\n\n", dateStr, tasks[0].DayNumber, html.EscapeString(project.Name)))
	for _, task := range tasks {
		builder.WriteString(formatAgendaLine(task, subjectNames))
	}
	builder.WriteString("\nMark blocks done with /done &lt;id&gt;.")
	return builder.String(), nil
}

// Upcoming renders the next days of the plan, grouped by date.
func (s *ReportService) Upcoming(ctx context.Context, user model.User, project model.Project, from time.Time, days int) (string, error) {
	if days < 1 {
		days = 1
	}
	fromStr := from.Format(DateFormat)
	toStr := from.AddDate(0, 0, days-1).Format(DateFormat)
	tasks, err := s.scheduleRepo.ListTasksBetween(ctx, project.ID, fromStr, toStr)
	if err != nil {
		return "", err
	}

	if len(tasks) == 0 {
		return fmt.Sprintf("No tasks planned between %s and %s. Use /generate first.", fromStr, toStr), nil
	}

	subjectNames, err := s.subjectNames(ctx, user.ID)
	if err != nil {
		return "", err
	}

	var builder strings.Builder
	builder.WriteString(fmt.Sprintf("🗓 <b>Plan for %s</b>\n", html.EscapeString(project.Name)))
	lastDate := ""
	for _, task := range tasks {
		if task.Date != lastDate {
			builder.WriteString(fmt.Sprintf("\n<b>%s — day %d</b>\n", task.Date, task.DayNumber))
			lastDate = task.Date
		}
		builder.WriteString(formatAgendaLine(task, subjectNames))
	}
	return builder.String(), nil
}

func (s *ReportService) subjectNames(ctx context.Context, userID uint) (map[uint]string, error) {
	subjects, err := s.subjectRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	names := make(map[uint]string, len(subjects))
	for _, subject := range subjects {
		names[subject.ID] = subject.Name
	}
	return names, nil
}

func formatAgendaLine(task model.ScheduledTask, subjectNames map[uint]string) string {
	icon := "📖"
	if task.Kind.IsRevision() {
		icon = "🔁"
	}

	status := ""
	switch task.Status {
	case model.StatusDone:
		status = " ✅"
	case model.StatusCancelled:
		status = " ❌"
	}

	window := taskWindow(task)
	label := task.Description
	if label == "" {
		if name, ok := subjectName(task.SubjectID, subjectNames); ok {
			label = name
		} else {
			label = task.Kind.String()
		}
	}

	return fmt.Sprintf("%s <b>#%d</b> %s · %s%s\n", icon, task.ID, window, html.EscapeString(label), status)
}

// taskWindow formats "08:00–09:00" from the start time and planned hours.
func taskWindow(task model.ScheduledTask) string {
	start, err := parseClock(task.StartTime)
	if err != nil {
		return fmt.Sprintf("%.1fh", task.PlannedHours)
	}
	end := start + int(task.PlannedHours*60+0.5)
	return fmt.Sprintf("%02d:%02d–%02d:%02d", start/60, start%60, end/60, end%60)
}

func subjectName(id *uint, names map[uint]string) (string, bool) {
	if id == nil {
		return "", false
	}
	name, ok := names[*id]
	return name, ok
}
