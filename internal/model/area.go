package model

import "time"

// Area groups subjects by field of knowledge (exact sciences, law, etc.).
type Area struct {
	ID        uint   `gorm:"primaryKey"`
	UserID    uint   `gorm:"index:idx_user_area_name,unique"`
	Name      string `gorm:"index:idx_user_area_name,unique"`
	CreatedAt time.Time
	UpdatedAt time.Time
	Subjects  []Subject `gorm:"foreignKey:AreaID"`
}
