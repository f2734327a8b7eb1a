package model

import "time"

// Project scopes a study plan: generated tasks, the study log and the day
// counter all live per project. IsDefault marks the project bot commands
// act on.
type Project struct {
	ID        uint `gorm:"primaryKey"`
	UserID    uint `gorm:"index"`
	Name      string
	IsDefault bool `gorm:"default:false"`
	CreatedAt time.Time
	UpdatedAt time.Time
}
