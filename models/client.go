package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Client struct {
	ID           uint          `gorm:"primaryKey" json:"id"`
	UID          string        `gorm:"type:varchar(36);not null;uniqueIndex" json:"uid"`
	Name         string        `gorm:"type:varchar(100);not null" json:"name"`
	Email        string        `gorm:"type:varchar(100)" json:"email"`
	Phone        string        `gorm:"type:varchar(30)" json:"phone"`
	Reservations []Reservation `gorm:"foreignKey:ClientID" json:"-"`
	CreatedAt    time.Time     `gorm:"not null" json:"created_at"`
	UpdatedAt    time.Time     `gorm:"not null" json:"updated_at"`
}

func (c *Client) BeforeCreate(tx *gorm.DB) error {
	if c.UID == "" {
		c.UID = uuid.NewString()
	}
	return nil
}
