package model

import "time"

// Settings keeps per-user review durations in minutes. The values are
// editable from the bot, but the generator still runs on its fixed
// 15/60/120 policy and does not read them yet.
type Settings struct {
	ID           uint `gorm:"primaryKey"`
	UserID       uint `gorm:"uniqueIndex"`
	Rev24Minutes int  `gorm:"default:15"`
	Rev7Minutes  int  `gorm:"default:60"`
	Rev30Minutes int  `gorm:"default:120"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
