package models

import "time"

type Location struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"type:varchar(100);not null" json:"name"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

// Table is identified externally by Number, not by ID.
type Table struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Number     int       `gorm:"not null;uniqueIndex" json:"number"`
	Capacity   int       `gorm:"not null;default:2" json:"capacity"`
	LocationID *uint     `gorm:"index" json:"location_id"`
	Location   *Location `gorm:"foreignKey:LocationID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL" json:"location,omitempty"`
	Host       *Host     `gorm:"foreignKey:TableID;references:ID" json:"host,omitempty"`
	CreatedAt  time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt  time.Time `gorm:"not null" json:"updated_at"`
}

// Host serves at most one table.
type Host struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"type:varchar(100);not null" json:"name"`
	TableID   uint      `gorm:"not null;uniqueIndex" json:"table_id"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}
