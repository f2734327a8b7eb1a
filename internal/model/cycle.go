package model

import "time"

// Cycle is an ordered, wrapping sequence of subject-study blocks. The
// generator always works against the user's default cycle (or the sole one
// when no default is flagged).
type Cycle struct {
	ID        uint `gorm:"primaryKey"`
	UserID    uint `gorm:"index"`
	Name      string
	IsDefault bool `gorm:"default:false"`
	CreatedAt time.Time
	UpdatedAt time.Time
	Items     []CycleItem `gorm:"foreignKey:CycleID"`
}

// CycleItem is one block of the rotation. Index defines rotation order and
// is unique within a cycle; Minutes is the planned block duration (60 when
// left at zero).
type CycleItem struct {
	ID        uint `gorm:"primaryKey"`
	CycleID   uint `gorm:"index:idx_cycle_item_order,unique"`
	Index     int  `gorm:"column:item_index;index:idx_cycle_item_order,unique"`
	SubjectID uint `gorm:"index"`
	Minutes   int
	CreatedAt time.Time
	UpdatedAt time.Time
	Subject   *Subject `gorm:"foreignKey:SubjectID"`
}

// Duration returns the planned block length in minutes, applying the
// 60-minute default for items saved without one.
func (i CycleItem) Duration() int {
	if i.Minutes <= 0 {
		return 60
	}
	return i.Minutes
}
