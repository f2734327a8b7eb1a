package model

import "time"

// StudyLogEntry records actual study time (the timer surface writes these
// when a session finishes). The generator reads the log only to build the
// virtual activity timeline.
type StudyLogEntry struct {
	ID          uint   `gorm:"primaryKey"`
	ProjectID   uint   `gorm:"index:idx_study_project_date"`
	SubjectID   *uint  `gorm:"index"`
	Date        string `gorm:"index:idx_study_project_date"`
	DayNumber   int
	ActualHours float64
	Description string
	Kind        TaskKind `gorm:"index"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
