package model

import "time"

// TaskKind is the closed set of generated task kinds. The numeric values
// are part of the storage format: anything > 0 counts as study activity on
// the virtual timeline.
type TaskKind int

const (
	KindNone       TaskKind = 0
	KindRevision24 TaskKind = 1
	KindRevision7  TaskKind = 2
	KindRevision30 TaskKind = 3
	KindCycleStudy TaskKind = 4
)

// String returns a short human-readable label for the kind.
func (k TaskKind) String() string {
	switch k {
	case KindRevision24:
		return "24h review"
	case KindRevision7:
		return "7-day review"
	case KindRevision30:
		return "30-day review"
	case KindCycleStudy:
		return "cycle study"
	default:
		return "none"
	}
}

// IsRevision reports whether the kind is one of the spaced-repetition kinds.
func (k TaskKind) IsRevision() bool {
	return k == KindRevision24 || k == KindRevision7 || k == KindRevision30
}

// TaskStatus is the lifecycle state of a scheduled task.
type TaskStatus string

const (
	StatusPending   TaskStatus = "PENDING"
	StatusDone      TaskStatus = "DONE"
	StatusCancelled TaskStatus = "CANCELLED"
)

// ScheduledTask is one generated plan entry: a review or a rotation block
// allocated into a grid slot on a concrete date. Rows are written only by
// the schedule generator and by completion actions.
//
// Date is an ISO "2006-01-02" string and DayNumber a project-wide counter
// that grows by one per date that received any task, independent of
// calendar gaps. StartTime is "HH:MM:SS"; PlannedHours is the allocated
// duration in hours.
type ScheduledTask struct {
	ID           uint   `gorm:"primaryKey"`
	ProjectID    uint   `gorm:"index:idx_task_project_date"`
	CycleID      *uint  `gorm:"index"`
	CycleItemID  *uint  `gorm:"index"`
	SubjectID    *uint  `gorm:"index"`
	Date         string `gorm:"index:idx_task_project_date"`
	DayNumber    int
	StartTime    string
	PlannedHours float64
	Description  string
	Kind         TaskKind   `gorm:"index"`
	Status       TaskStatus `gorm:"default:PENDING"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
