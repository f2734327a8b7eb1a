package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"study-planner/internal/model"
)

// Configuration errors abort a generation run before any write.
var (
	ErrMissingCycle = errors.New("no default study cycle configured")
	ErrMissingGrid  = errors.New("no default weekly grid configured")
	ErrEmptyCycle   = errors.New("study cycle has no items")
)

// Clock supplies "today" for invocations that omit a start date. Tests
// inject fixed dates.
type Clock func() time.Time

// ScheduleRepository is the storage surface the generator reads from and
// writes to. All reads of one Generate call are expected to see a single
// consistent snapshot, and InsertTasks must commit the whole batch
// atomically.
type ScheduleRepository interface {
	GetProject(ctx context.Context, projectID uint) (*model.Project, error)
	// GetDefaultOrSoleCycle returns the user's default cycle, or the only
	// cycle when none is flagged, or nil when neither exists.
	GetDefaultOrSoleCycle(ctx context.Context, userID uint) (*model.Cycle, error)
	GetDefaultOrSoleGrid(ctx context.Context, userID uint) (*model.WeeklyGrid, error)
	// ListCycleItems returns the cycle's items ordered by rotation index,
	// with subjects preloaded.
	ListCycleItems(ctx context.Context, cycleID uint) ([]model.CycleItem, error)
	// ListGridSlots returns the grid's slots for one weekday (1=Sunday..7=
	// Saturday) ordered by start time.
	ListGridSlots(ctx context.Context, gridID uint, weekday int) ([]model.GridSlot, error)
	// GetRevisionSubject returns the user's revision-flagged subject, or
	// nil when none exists.
	GetRevisionSubject(ctx context.Context, userID uint) (*model.Subject, error)
	MaxDayNumber(ctx context.Context, projectID uint) (int, error)
	HasTasksOnDate(ctx context.Context, projectID uint, date string) (bool, error)
	// LastCycleStudyTask returns the most recent rotation task (by date,
	// then id), or nil when the project has none.
	LastCycleStudyTask(ctx context.Context, projectID uint) (*model.ScheduledTask, error)
	// DistinctActivityDates returns the distinct dates with any study
	// activity, from the study log and from the generated plan.
	DistinctActivityDates(ctx context.Context, projectID uint) (history []string, plan []string, err error)
	InsertTasks(ctx context.Context, projectID uint, tasks []model.ScheduledTask) error
}

// GenerateResult aggregates what one Generate call did.
type GenerateResult struct {
	DaysPlanned  int
	DaysSkipped  int // dates that already had tasks
	RestDays     int // dates without usable slots
	TasksCreated int
}

// Message renders the result for the user.
func (r GenerateResult) Message() string {
	return fmt.Sprintf(
		"Schedule generated: %d day(s) planned with %d task(s), %d already planned, %d rest day(s).",
		r.DaysPlanned, r.TasksCreated, r.DaysSkipped, r.RestDays,
	)
}

// ScheduleService is the schedule generator. It allocates spaced-repetition
// reviews and cycle rotation blocks into the weekly grid, day by day.
type ScheduleService struct {
	repo  ScheduleRepository
	clock Clock
	log   zerolog.Logger

	mu    sync.Mutex
	locks map[uint]*sync.Mutex // one lock per project id
}

func NewScheduleService(repo ScheduleRepository, clock Clock, log zerolog.Logger) *ScheduleService {
	if clock == nil {
		clock = time.Now
	}
	return &ScheduleService{
		repo:  repo,
		clock: clock,
		log:   log,
		locks: make(map[uint]*sync.Mutex),
	}
}

func (s *ScheduleService) projectLock(projectID uint) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[projectID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[projectID] = lock
	}
	return lock
}

// Generate produces tasks for dayCount calendar dates starting at
// startDate (today when zero). Dates that already have tasks are skipped,
// weekdays without slots are rest days, and everything generated is
// inserted as one batch after the loop.
func (s *ScheduleService) Generate(ctx context.Context, projectID uint, startDate time.Time, dayCount int) (GenerateResult, error) {
	var res GenerateResult
	if dayCount < 1 {
		return res, fmt.Errorf("day count must be at least 1, got %d", dayCount)
	}
	if startDate.IsZero() {
		startDate = s.clock()
	}

	// Two runs for the same project must not interleave: both would resume
	// from the same rotation cursor and duplicate the sequence.
	lock := s.projectLock(projectID)
	lock.Lock()
	defer lock.Unlock()

	project, err := s.repo.GetProject(ctx, projectID)
	if err != nil {
		return res, err
	}

	cycle, err := s.repo.GetDefaultOrSoleCycle(ctx, project.UserID)
	if err != nil {
		return res, err
	}
	grid, err := s.repo.GetDefaultOrSoleGrid(ctx, project.UserID)
	if err != nil {
		return res, err
	}
	var missing []error
	if cycle == nil {
		missing = append(missing, ErrMissingCycle)
	}
	if grid == nil {
		missing = append(missing, ErrMissingGrid)
	}
	if len(missing) > 0 {
		return res, errors.Join(missing...)
	}

	items, err := s.repo.ListCycleItems(ctx, cycle.ID)
	if err != nil {
		return res, err
	}
	if len(items) == 0 {
		return res, ErrEmptyCycle
	}

	revSubject, err := s.repo.GetRevisionSubject(ctx, project.UserID)
	if err != nil {
		return res, err
	}

	maxDay, err := s.repo.MaxDayNumber(ctx, projectID)
	if err != nil {
		return res, err
	}

	history, plan, err := s.repo.DistinctActivityDates(ctx, projectID)
	if err != nil {
		return res, err
	}
	timeline := buildTimeline(history, plan)

	rot := newRotation(items, revSubject)
	last, err := s.repo.LastCycleStudyTask(ctx, projectID)
	if err != nil {
		return res, err
	}
	rot.resumeAfter(last)

	day := time.Date(startDate.Year(), startDate.Month(), startDate.Day(), 0, 0, 0, 0, startDate.Location())
	var batch []model.ScheduledTask

	for i := 0; i < dayCount; i++ {
		date := day.AddDate(0, 0, i)
		dateStr := date.Format(DateFormat)

		exists, err := s.repo.HasTasksOnDate(ctx, projectID, dateStr)
		if err != nil {
			return res, err
		}
		if exists {
			res.DaysSkipped++
			continue
		}

		slots, err := s.repo.ListGridSlots(ctx, grid.ID, weekdayNumber(date))
		if err != nil {
			return res, err
		}

		_, onTimeline := timelineIndex(timeline, dateStr)
		if !onTimeline {
			if len(slots) == 0 {
				// Rest day: no possible activity, no day number consumed.
				res.RestDays++
				continue
			}
			timeline = insertDate(timeline, dateStr)
		}
		idx, _ := timelineIndex(timeline, dateStr)
		need24, need7, need30 := reviewNeeds(idx)

		dayTasks := s.allocateDay(dayAlloc{
			projectID: projectID,
			cycleID:   cycle.ID,
			date:      dateStr,
			dayNumber: maxDay + 1,
			slots:     slots,
			need24:    need24,
			need7:     need7,
			need30:    need30,
			rot:       rot,
		})
		if len(dayTasks) == 0 {
			// The tentative insert must not shift future review indices
			// when nothing was actually planned.
			if !onTimeline {
				timeline = removeDate(timeline, dateStr)
			}
			res.RestDays++
			continue
		}

		maxDay++
		batch = append(batch, dayTasks...)
		res.DaysPlanned++
		res.TasksCreated += len(dayTasks)
	}

	if len(batch) > 0 {
		if err := s.repo.InsertTasks(ctx, projectID, batch); err != nil {
			return GenerateResult{}, fmt.Errorf("insert tasks: %w", err)
		}
	}

	s.log.Info().
		Uint("project", projectID).
		Int("planned", res.DaysPlanned).
		Int("skipped", res.DaysSkipped).
		Int("rest", res.RestDays).
		Int("tasks", res.TasksCreated).
		Msg("schedule generated")

	return res, nil
}

type dayAlloc struct {
	projectID uint
	cycleID   uint
	date      string
	dayNumber int
	slots     []model.GridSlot
	need24    int
	need7     int
	need30    int
	rot       *rotation
}

// allocateDay packs the day's due reviews and rotation blocks into the
// weekday's slots, in start-time order. Review needs carry across slots of
// the same day; the rotation carries across days.
func (s *ScheduleService) allocateDay(in dayAlloc) []model.ScheduledTask {
	var tasks []model.ScheduledTask

	for _, slot := range in.slots {
		clock, budget, ok := s.slotWindow(slot)
		if !ok {
			continue
		}

		emit := func(t model.ScheduledTask, minutes int) {
			t.ProjectID = in.projectID
			t.Date = in.date
			t.DayNumber = in.dayNumber
			t.StartTime = formatClock(clock)
			t.PlannedHours = float64(minutes) / 60
			t.Status = model.StatusPending
			tasks = append(tasks, t)
			clock += minutes
			budget -= minutes
		}

		review := func(kind model.TaskKind, need *int, desc string) {
			if *need <= 0 || budget < minReviewMinutes {
				return
			}
			alloc := min(*need, budget)
			cycleID := in.cycleID
			emit(model.ScheduledTask{
				CycleID:     &cycleID,
				SubjectID:   in.rot.revisionSubjectID,
				Description: desc,
				Kind:        kind,
			}, alloc)
			*need -= alloc
		}

		review(model.KindRevision24, &in.need24, "24h review")
		review(model.KindRevision7, &in.need7, "7-day review")
		review(model.KindRevision30, &in.need30, "30-day review")

		skipped := 0
		for budget >= minCycleMinutes {
			item := in.rot.current()
			if in.rot.isRevisionItem(item) {
				// Spaced repetition is expressed only through the review
				// kinds above; the rotation's own revision slot is
				// suppressed, cursor still advances.
				in.rot.advance()
				skipped++
				if skipped >= len(in.rot.items) {
					break
				}
				continue
			}
			skipped = 0

			need := in.rot.remaining
			if need == 0 {
				need = item.Duration()
			}
			alloc := min(need, budget)

			itemID := item.ID
			subjectID := item.SubjectID
			cycleID := in.cycleID
			emit(model.ScheduledTask{
				CycleID:     &cycleID,
				CycleItemID: &itemID,
				SubjectID:   &subjectID,
				Description: studyDescription(item),
				Kind:        model.KindCycleStudy,
			}, alloc)

			if alloc == need {
				in.rot.advance()
			} else {
				// Partially consumed: same item continues in the next
				// slot or day.
				in.rot.remaining = need - alloc
			}
		}
	}

	return tasks
}

// slotWindow resolves a slot's start clock and minute budget. Malformed
// times fall back to the slot's stored duration and never abort the run.
func (s *ScheduleService) slotWindow(slot model.GridSlot) (clock, budget int, ok bool) {
	start, startErr := parseClock(slot.StartTime)
	end, endErr := parseClock(slot.EndTime)
	if startErr == nil && endErr == nil && end > start {
		return start, end - start, true
	}

	s.log.Warn().
		Uint("slot", slot.ID).
		Str("start", slot.StartTime).
		Str("end", slot.EndTime).
		Msg("unparsable slot times, falling back to stored duration")

	if slot.Minutes > 0 {
		return 0, slot.Minutes, true
	}
	return 0, 0, false
}

// rotation is the wrapping cursor over the cycle's ordered items, plus the
// in-run carry of a partially consumed item.
type rotation struct {
	items             []model.CycleItem
	cursor            int
	remaining         int
	revisionSubjectID *uint
}

func newRotation(items []model.CycleItem, revSubject *model.Subject) *rotation {
	rot := &rotation{items: items}
	if revSubject != nil {
		id := revSubject.ID
		rot.revisionSubjectID = &id
	}
	return rot
}

// resumeAfter positions the cursor right after the last persisted rotation
// task. An item that has since been removed from the cycle restarts the
// rotation at index 0.
func (r *rotation) resumeAfter(last *model.ScheduledTask) {
	if last == nil || last.CycleItemID == nil {
		return
	}
	for i, item := range r.items {
		if item.ID == *last.CycleItemID {
			r.cursor = (i + 1) % len(r.items)
			return
		}
	}
}

func (r *rotation) current() model.CycleItem {
	return r.items[r.cursor]
}

func (r *rotation) advance() {
	r.cursor = (r.cursor + 1) % len(r.items)
	r.remaining = 0
}

func (r *rotation) isRevisionItem(item model.CycleItem) bool {
	return r.revisionSubjectID != nil && item.SubjectID == *r.revisionSubjectID
}

func studyDescription(item model.CycleItem) string {
	if item.Subject != nil && item.Subject.Name != "" {
		return "Study " + item.Subject.Name
	}
	return fmt.Sprintf("Study item %d", item.ID)
}
