package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"study-planner/internal/model"
)

// fakeRepo is an in-memory ScheduleRepository for driving the generator.
type fakeRepo struct {
	project    *model.Project
	cycle      *model.Cycle
	grid       *model.WeeklyGrid
	items      []model.CycleItem
	slots      map[int][]model.GridSlot
	revSubject *model.Subject
	history    []string
	tasks      []model.ScheduledTask

	nextID      uint
	insertCalls int
}

func (f *fakeRepo) GetProject(_ context.Context, projectID uint) (*model.Project, error) {
	if f.project == nil || f.project.ID != projectID {
		return nil, fmt.Errorf("project %d not found", projectID)
	}
	return f.project, nil
}

func (f *fakeRepo) GetDefaultOrSoleCycle(_ context.Context, _ uint) (*model.Cycle, error) {
	return f.cycle, nil
}

func (f *fakeRepo) GetDefaultOrSoleGrid(_ context.Context, _ uint) (*model.WeeklyGrid, error) {
	return f.grid, nil
}

func (f *fakeRepo) ListCycleItems(_ context.Context, _ uint) ([]model.CycleItem, error) {
	return f.items, nil
}

func (f *fakeRepo) ListGridSlots(_ context.Context, _ uint, weekday int) ([]model.GridSlot, error) {
	return f.slots[weekday], nil
}

func (f *fakeRepo) GetRevisionSubject(_ context.Context, _ uint) (*model.Subject, error) {
	return f.revSubject, nil
}

func (f *fakeRepo) MaxDayNumber(_ context.Context, _ uint) (int, error) {
	maxDay := 0
	for _, task := range f.tasks {
		if task.DayNumber > maxDay {
			maxDay = task.DayNumber
		}
	}
	return maxDay, nil
}

func (f *fakeRepo) HasTasksOnDate(_ context.Context, _ uint, date string) (bool, error) {
	for _, task := range f.tasks {
		if task.Date == date {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeRepo) LastCycleStudyTask(_ context.Context, _ uint) (*model.ScheduledTask, error) {
	var last *model.ScheduledTask
	for i := range f.tasks {
		task := &f.tasks[i]
		if task.Kind != model.KindCycleStudy {
			continue
		}
		if last == nil || task.Date > last.Date || (task.Date == last.Date && task.ID > last.ID) {
			last = task
		}
	}
	return last, nil
}

func (f *fakeRepo) DistinctActivityDates(_ context.Context, _ uint) ([]string, []string, error) {
	seen := make(map[string]struct{})
	var plan []string
	for _, task := range f.tasks {
		if task.Kind == model.KindNone {
			continue
		}
		if _, ok := seen[task.Date]; !ok {
			seen[task.Date] = struct{}{}
			plan = append(plan, task.Date)
		}
	}
	sort.Strings(plan)
	return append([]string(nil), f.history...), plan, nil
}

func (f *fakeRepo) InsertTasks(_ context.Context, _ uint, tasks []model.ScheduledTask) error {
	f.insertCalls++
	for _, task := range tasks {
		f.nextID++
		task.ID = f.nextID
		f.tasks = append(f.tasks, task)
	}
	return nil
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		project: &model.Project{ID: 1, UserID: 1, Name: "Exam prep"},
		cycle:   &model.Cycle{ID: 10, UserID: 1, Name: "Main", IsDefault: true},
		grid:    &model.WeeklyGrid{ID: 20, UserID: 1, Name: "Week", IsDefault: true},
		slots:   make(map[int][]model.GridSlot),
	}
}

func newTestService(repo ScheduleRepository) *ScheduleService {
	return NewScheduleService(repo, func() time.Time {
		return time.Date(2025, 12, 7, 12, 0, 0, 0, time.UTC)
	}, zerolog.Nop())
}

func item(id uint, subjectID uint, minutes int, index int, name string) model.CycleItem {
	return model.CycleItem{
		ID:        id,
		CycleID:   10,
		Index:     index,
		SubjectID: subjectID,
		Minutes:   minutes,
		Subject:   &model.Subject{ID: subjectID, UserID: 1, Name: name},
	}
}

func slot(weekday int, start, end string) model.GridSlot {
	return model.GridSlot{GridID: 20, Weekday: weekday, StartTime: start, EndTime: end}
}

// sunday is 2025-12-07.
var sunday = time.Date(2025, 12, 7, 0, 0, 0, 0, time.UTC)

func TestGenerateFirstDayScenario(t *testing.T) {
	repo := newFakeRepo()
	repo.items = []model.CycleItem{
		item(1, 100, 60, 0, "Math"),
		item(2, 101, 60, 1, "English"),
	}
	repo.slots[1] = []model.GridSlot{slot(1, "08:00", "10:00")}

	svc := newTestService(repo)
	result, err := svc.Generate(context.Background(), 1, sunday, 1)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	if result.DaysPlanned != 1 || result.TasksCreated != 2 {
		t.Fatalf("expected 1 day / 2 tasks, got %+v", result)
	}
	if len(repo.tasks) != 2 {
		t.Fatalf("expected 2 persisted tasks, got %d", len(repo.tasks))
	}

	first, second := repo.tasks[0], repo.tasks[1]
	if first.Kind != model.KindCycleStudy || first.StartTime != "08:00:00" || first.PlannedHours != 1.0 {
		t.Fatalf("unexpected first task: %+v", first)
	}
	if first.Description != "Study Math" {
		t.Fatalf("expected Math first, got %q", first.Description)
	}
	if second.StartTime != "09:00:00" || second.Description != "Study English" {
		t.Fatalf("unexpected second task: %+v", second)
	}
	for _, task := range repo.tasks {
		if task.Kind.IsRevision() {
			t.Fatalf("no review expected on the first study day, got %+v", task)
		}
		if task.DayNumber != 1 {
			t.Fatalf("expected day number 1, got %d", task.DayNumber)
		}
	}
}

func TestGenerateIdempotence(t *testing.T) {
	repo := newFakeRepo()
	repo.items = []model.CycleItem{item(1, 100, 60, 0, "Math")}
	repo.slots[1] = []model.GridSlot{slot(1, "08:00", "10:00")}

	svc := newTestService(repo)
	if _, err := svc.Generate(context.Background(), 1, sunday, 1); err != nil {
		t.Fatalf("first generate: %v", err)
	}
	before := len(repo.tasks)

	result, err := svc.Generate(context.Background(), 1, sunday, 1)
	if err != nil {
		t.Fatalf("second generate: %v", err)
	}
	if result.DaysSkipped != 1 || result.DaysPlanned != 0 {
		t.Fatalf("expected pure skip, got %+v", result)
	}
	if len(repo.tasks) != before {
		t.Fatalf("second run added tasks: %d -> %d", before, len(repo.tasks))
	}
}

// Three consecutive days with a 60-minute slot and a [A(30m), B(30m)] cycle:
// day one fills with A and B, day two owes a 24h review and splits B across
// the day boundary, day three finishes B and wraps back to A.
func TestRotationContinuityAndCarry(t *testing.T) {
	repo := newFakeRepo()
	repo.items = []model.CycleItem{
		item(1, 100, 30, 0, "A"),
		item(2, 101, 30, 1, "B"),
	}
	for weekday := 1; weekday <= 7; weekday++ {
		repo.slots[weekday] = []model.GridSlot{slot(weekday, "08:00", "09:00")}
	}

	svc := newTestService(repo)
	if _, err := svc.Generate(context.Background(), 1, sunday, 3); err != nil {
		t.Fatalf("generate: %v", err)
	}

	type expect struct {
		date  string
		start string
		kind  model.TaskKind
		desc  string
		hours float64
	}
	expected := []expect{
		{"2025-12-07", "08:00:00", model.KindCycleStudy, "Study A", 0.5},
		{"2025-12-07", "08:30:00", model.KindCycleStudy, "Study B", 0.5},
		{"2025-12-08", "08:00:00", model.KindRevision24, "24h review", 0.25},
		{"2025-12-08", "08:15:00", model.KindCycleStudy, "Study A", 0.5},
		{"2025-12-08", "08:45:00", model.KindCycleStudy, "Study B", 0.25},
		{"2025-12-09", "08:00:00", model.KindRevision24, "24h review", 0.25},
		{"2025-12-09", "08:15:00", model.KindCycleStudy, "Study B", 0.25},
		{"2025-12-09", "08:30:00", model.KindCycleStudy, "Study A", 0.5},
	}

	if len(repo.tasks) != len(expected) {
		t.Fatalf("expected %d tasks, got %d: %+v", len(expected), len(repo.tasks), repo.tasks)
	}
	for i, want := range expected {
		got := repo.tasks[i]
		if got.Date != want.date || got.StartTime != want.start || got.Kind != want.kind ||
			got.Description != want.desc || got.PlannedHours != want.hours {
			t.Fatalf("task %d: want %+v, got %+v", i, want, got)
		}
	}
}

func TestLongItemCarriesAcrossDays(t *testing.T) {
	repo := newFakeRepo()
	repo.items = []model.CycleItem{
		item(1, 100, 90, 0, "A"),
		item(2, 101, 30, 1, "B"),
	}
	for weekday := 1; weekday <= 7; weekday++ {
		repo.slots[weekday] = []model.GridSlot{slot(weekday, "08:00", "09:00")}
	}

	svc := newTestService(repo)
	if _, err := svc.Generate(context.Background(), 1, sunday, 2); err != nil {
		t.Fatalf("generate: %v", err)
	}

	// Day 1: 60 of A's 90 minutes. Day 2: 24h review, the remaining 30 of
	// A, then 15 of B.
	var day2 []model.ScheduledTask
	for _, task := range repo.tasks {
		if task.Date == "2025-12-08" {
			day2 = append(day2, task)
		}
	}
	if len(repo.tasks) != 4 || len(day2) != 3 {
		t.Fatalf("unexpected task layout: %+v", repo.tasks)
	}
	day1 := repo.tasks[0]
	if day1.Description != "Study A" || day1.PlannedHours != 1.0 {
		t.Fatalf("day 1 should hold 60 minutes of A, got %+v", day1)
	}
	if day2[1].Description != "Study A" || day2[1].PlannedHours != 0.5 {
		t.Fatalf("day 2 should continue A for 30 minutes, got %+v", day2[1])
	}
	if day2[2].Description != "Study B" || day2[2].PlannedHours != 0.25 {
		t.Fatalf("day 2 should then start B, got %+v", day2[2])
	}
}

func TestReviewSuppressionAtIndex30(t *testing.T) {
	repo := newFakeRepo()
	repo.items = []model.CycleItem{item(1, 100, 60, 0, "Math")}
	repo.slots[1] = []model.GridSlot{slot(1, "08:00", "10:00")}
	repo.revSubject = &model.Subject{ID: 99, UserID: 1, Name: "Revision", IsRevision: true}

	// 30 prior study days put the generated Sunday at timeline index 30.
	for day := 1; day <= 30; day++ {
		repo.history = append(repo.history, fmt.Sprintf("2025-11-%02d", day))
	}

	svc := newTestService(repo)
	if _, err := svc.Generate(context.Background(), 1, sunday, 1); err != nil {
		t.Fatalf("generate: %v", err)
	}

	var reviews []model.ScheduledTask
	for _, task := range repo.tasks {
		if task.Kind.IsRevision() {
			reviews = append(reviews, task)
		}
	}
	if len(reviews) != 1 || reviews[0].Kind != model.KindRevision30 {
		t.Fatalf("expected exactly one 30-day review, got %+v", reviews)
	}
	review := reviews[0]
	if review.StartTime != "08:00:00" || review.PlannedHours != 2.0 {
		t.Fatalf("30-day review should fill the slot from its start, got %+v", review)
	}
	if review.SubjectID == nil || *review.SubjectID != 99 {
		t.Fatalf("review should carry the revision subject, got %+v", review.SubjectID)
	}
}

func TestRevisionSubjectExcludedFromRotation(t *testing.T) {
	repo := newFakeRepo()
	repo.revSubject = &model.Subject{ID: 99, UserID: 1, Name: "Revision", IsRevision: true}
	repo.items = []model.CycleItem{
		item(1, 99, 60, 0, "Revision"),
		item(2, 100, 60, 1, "Math"),
	}
	repo.slots[1] = []model.GridSlot{slot(1, "08:00", "10:00")}

	svc := newTestService(repo)
	if _, err := svc.Generate(context.Background(), 1, sunday, 1); err != nil {
		t.Fatalf("generate: %v", err)
	}

	if len(repo.tasks) == 0 {
		t.Fatal("expected rotation tasks")
	}
	for _, task := range repo.tasks {
		if task.SubjectID != nil && *task.SubjectID == 99 && task.Kind == model.KindCycleStudy {
			t.Fatalf("revision subject leaked into the rotation: %+v", task)
		}
	}
	// The wrapping cursor skips the revision block every lap, so the
	// 120-minute slot holds two Math hours.
	if len(repo.tasks) != 2 {
		t.Fatalf("expected two Math blocks, got %+v", repo.tasks)
	}
}

func TestAllRevisionCycleProducesNothing(t *testing.T) {
	repo := newFakeRepo()
	repo.revSubject = &model.Subject{ID: 99, UserID: 1, Name: "Revision", IsRevision: true}
	repo.items = []model.CycleItem{item(1, 99, 60, 0, "Revision")}
	repo.slots[1] = []model.GridSlot{slot(1, "08:00", "10:00")}

	svc := newTestService(repo)
	result, err := svc.Generate(context.Background(), 1, sunday, 1)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(repo.tasks) != 0 || result.DaysPlanned != 0 {
		t.Fatalf("expected no tasks, got %+v / %+v", repo.tasks, result)
	}
}

func TestRestDaysConsumeNothing(t *testing.T) {
	repo := newFakeRepo()
	repo.items = []model.CycleItem{item(1, 100, 60, 0, "Math")}
	// Only Sundays are available.
	repo.slots[1] = []model.GridSlot{slot(1, "08:00", "09:00")}

	svc := newTestService(repo)
	result, err := svc.Generate(context.Background(), 1, sunday, 8) // two Sundays
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	if result.DaysPlanned != 2 || result.RestDays != 6 {
		t.Fatalf("expected 2 planned / 6 rest, got %+v", result)
	}

	// Day numbers stay contiguous across the calendar gap, and the second
	// Sunday sits at timeline index 1 (rest days never enter the timeline),
	// so it owes a 24h review.
	dayNumbers := make(map[string]int)
	sawReview := false
	for _, task := range repo.tasks {
		dayNumbers[task.Date] = task.DayNumber
		if task.Date == "2025-12-14" && task.Kind == model.KindRevision24 {
			sawReview = true
		}
	}
	if dayNumbers["2025-12-07"] != 1 || dayNumbers["2025-12-14"] != 2 {
		t.Fatalf("unexpected day numbers: %+v", dayNumbers)
	}
	if !sawReview {
		t.Fatalf("second study day should owe a 24h review: %+v", repo.tasks)
	}
}

func TestCursorResumesFromPersistedTask(t *testing.T) {
	repo := newFakeRepo()
	repo.items = []model.CycleItem{
		item(1, 100, 60, 0, "A"),
		item(2, 101, 60, 1, "B"),
	}
	repo.slots[1] = []model.GridSlot{slot(1, "08:00", "09:00")}

	// A previous run ended on item A.
	itemID := uint(1)
	subjectID := uint(100)
	repo.tasks = []model.ScheduledTask{{
		ID: 1, ProjectID: 1, CycleItemID: &itemID, SubjectID: &subjectID,
		Date: "2025-11-30", DayNumber: 1, StartTime: "08:00:00",
		PlannedHours: 1.0, Description: "Study A", Kind: model.KindCycleStudy,
		Status: model.StatusPending,
	}}
	repo.nextID = 1

	svc := newTestService(repo)
	if _, err := svc.Generate(context.Background(), 1, sunday, 1); err != nil {
		t.Fatalf("generate: %v", err)
	}

	var generated []model.ScheduledTask
	for _, task := range repo.tasks {
		if task.Date == "2025-12-07" && task.Kind == model.KindCycleStudy {
			generated = append(generated, task)
		}
	}
	if len(generated) != 1 || generated[0].Description != "Study B" {
		t.Fatalf("rotation should resume with B, got %+v", generated)
	}
	if generated[0].DayNumber != 2 {
		t.Fatalf("day counter should continue at 2, got %d", generated[0].DayNumber)
	}
}

func TestRemovedCursorItemRestartsRotation(t *testing.T) {
	repo := newFakeRepo()
	repo.items = []model.CycleItem{
		item(5, 100, 60, 0, "A"),
		item(6, 101, 60, 1, "B"),
	}
	repo.slots[1] = []model.GridSlot{slot(1, "08:00", "09:00")}

	// The last rotation task points at an item no longer in the cycle.
	goneID := uint(42)
	repo.tasks = []model.ScheduledTask{{
		ID: 1, ProjectID: 1, CycleItemID: &goneID, Date: "2025-11-30",
		DayNumber: 1, StartTime: "08:00:00", PlannedHours: 1.0,
		Description: "Study old", Kind: model.KindCycleStudy, Status: model.StatusPending,
	}}
	repo.nextID = 1

	svc := newTestService(repo)
	if _, err := svc.Generate(context.Background(), 1, sunday, 1); err != nil {
		t.Fatalf("generate: %v", err)
	}

	for _, task := range repo.tasks {
		if task.Date == "2025-12-07" && task.Kind == model.KindCycleStudy {
			if task.Description != "Study A" {
				t.Fatalf("rotation should restart at the first item, got %+v", task)
			}
			return
		}
	}
	t.Fatal("no rotation task generated")
}

func TestConfigurationErrors(t *testing.T) {
	t.Run("missing cycle and grid", func(t *testing.T) {
		repo := newFakeRepo()
		repo.cycle = nil
		repo.grid = nil

		svc := newTestService(repo)
		_, err := svc.Generate(context.Background(), 1, sunday, 1)
		if !errors.Is(err, ErrMissingCycle) || !errors.Is(err, ErrMissingGrid) {
			t.Fatalf("expected both config errors, got %v", err)
		}
		if repo.insertCalls != 0 {
			t.Fatal("no writes expected on configuration errors")
		}
	})

	t.Run("empty cycle", func(t *testing.T) {
		repo := newFakeRepo()
		repo.slots[1] = []model.GridSlot{slot(1, "08:00", "09:00")}

		svc := newTestService(repo)
		_, err := svc.Generate(context.Background(), 1, sunday, 1)
		if !errors.Is(err, ErrEmptyCycle) {
			t.Fatalf("expected ErrEmptyCycle, got %v", err)
		}
	})

	t.Run("invalid day count", func(t *testing.T) {
		repo := newFakeRepo()
		svc := newTestService(repo)
		if _, err := svc.Generate(context.Background(), 1, sunday, 0); err == nil {
			t.Fatal("expected error for day count 0")
		}
	})
}

func TestMalformedSlotFallsBackToStoredMinutes(t *testing.T) {
	repo := newFakeRepo()
	repo.items = []model.CycleItem{item(1, 100, 60, 0, "Math")}
	repo.slots[1] = []model.GridSlot{{GridID: 20, Weekday: 1, StartTime: "8h", EndTime: "morning", Minutes: 45}}

	svc := newTestService(repo)
	result, err := svc.Generate(context.Background(), 1, sunday, 1)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if result.TasksCreated != 1 {
		t.Fatalf("expected one task from the fallback budget, got %+v", result)
	}
	task := repo.tasks[0]
	if task.StartTime != "00:00:00" || task.PlannedHours != 0.75 {
		t.Fatalf("fallback slot should start at midnight with 45 minutes, got %+v", task)
	}
}

func TestDefaultStartDateUsesClock(t *testing.T) {
	repo := newFakeRepo()
	repo.items = []model.CycleItem{item(1, 100, 60, 0, "Math")}
	repo.slots[1] = []model.GridSlot{slot(1, "08:00", "09:00")}

	svc := newTestService(repo) // clock pinned to 2025-12-07
	if _, err := svc.Generate(context.Background(), 1, time.Time{}, 1); err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(repo.tasks) == 0 || repo.tasks[0].Date != "2025-12-07" {
		t.Fatalf("expected tasks on the clock's today, got %+v", repo.tasks)
	}
}

func TestBatchInsertedOnce(t *testing.T) {
	repo := newFakeRepo()
	repo.items = []model.CycleItem{item(1, 100, 60, 0, "Math")}
	for weekday := 1; weekday <= 7; weekday++ {
		repo.slots[weekday] = []model.GridSlot{slot(weekday, "08:00", "09:00")}
	}

	svc := newTestService(repo)
	if _, err := svc.Generate(context.Background(), 1, sunday, 5); err != nil {
		t.Fatalf("generate: %v", err)
	}
	if repo.insertCalls != 1 {
		t.Fatalf("expected a single batch insert, got %d", repo.insertCalls)
	}
}
