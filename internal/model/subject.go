package model

import "time"

// Subject is a studiable discipline. At most one subject per user carries
// IsRevision: it labels spaced-repetition tasks and never appears as a
// regular rotation item in generated schedules.
type Subject struct {
	ID         uint  `gorm:"primaryKey"`
	UserID     uint  `gorm:"index"`
	AreaID     *uint `gorm:"index"`
	Name       string
	IsRevision bool `gorm:"default:false"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
