package model

import "time"

// WeeklyGrid is a recurring weekly availability template made of slots.
type WeeklyGrid struct {
	ID        uint `gorm:"primaryKey"`
	UserID    uint `gorm:"index"`
	Name      string
	IsDefault bool `gorm:"default:false"`
	CreatedAt time.Time
	UpdatedAt time.Time
	Slots     []GridSlot `gorm:"foreignKey:GridID"`
}

// GridSlot is one recurring time window. Weekday uses 1=Sunday..7=Saturday.
// StartTime/EndTime are "HH:MM" or "HH:MM:SS" strings; Minutes is a stored
// duration used as fallback when the times cannot be parsed.
type GridSlot struct {
	ID        uint `gorm:"primaryKey"`
	GridID    uint `gorm:"index"`
	Weekday   int  `gorm:"index"`
	StartTime string
	EndTime   string
	Minutes   int
	CreatedAt time.Time
	UpdatedAt time.Time
}
