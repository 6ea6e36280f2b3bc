package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ReservationType string

const (
	ReservationTypeMeeting      ReservationType = "Meeting"
	ReservationTypeBirthday     ReservationType = "Birthday"
	ReservationTypeSpecialEvent ReservationType = "SpecialEvent"
)

var reservationTypes = []ReservationType{
	ReservationTypeMeeting,
	ReservationTypeBirthday,
	ReservationTypeSpecialEvent,
}

// ParseReservationType matches s against the known types, ignoring case.
func ParseReservationType(s string) (ReservationType, bool) {
	s = strings.TrimSpace(s)
	for _, t := range reservationTypes {
		if strings.EqualFold(string(t), s) {
			return t, true
		}
	}
	return "", false
}

// ReservationTypeOrDefault returns Meeting for anything unrecognised.
func ReservationTypeOrDefault(s string) ReservationType {
	if t, ok := ParseReservationType(s); ok {
		return t
	}
	return ReservationTypeMeeting
}

// Reservation books one table for one client over [StartTime, EndTime).
// Times are always stored in UTC.
type Reservation struct {
	ID        uint              `gorm:"primaryKey" json:"id"`
	UID       string            `gorm:"type:varchar(36);not null;uniqueIndex" json:"uid"`
	ClientID  uint              `gorm:"not null;index" json:"client_id"`
	Client    Client            `gorm:"foreignKey:ClientID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT" json:"-"`
	TableID   uint              `gorm:"not null;index:idx_reservation_table_time,priority:1" json:"table_id"`
	Table     Table             `gorm:"foreignKey:TableID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT" json:"-"`
	StartTime time.Time         `gorm:"not null;index:idx_reservation_table_time,priority:2" json:"start_time"`
	EndTime   time.Time         `gorm:"not null" json:"end_time"`
	Detail    ReservationDetail `gorm:"foreignKey:ReservationID;references:ID;constraint:OnDelete:CASCADE" json:"detail"`
	CreatedAt time.Time         `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time         `gorm:"not null" json:"updated_at"`
}

func (r *Reservation) BeforeCreate(tx *gorm.DB) error {
	if r.UID == "" {
		r.UID = uuid.NewString()
	}
	r.StartTime = r.StartTime.UTC()
	r.EndTime = r.EndTime.UTC()
	return nil
}

type ReservationDetail struct {
	ID              uint            `gorm:"primaryKey" json:"id"`
	ReservationID   uint            `gorm:"not null;uniqueIndex" json:"reservation_id"`
	ReservationType ReservationType `gorm:"type:varchar(20);not null;default:'Meeting'" json:"reservation_type"`
	SpecialRequests string          `gorm:"type:text;not null" json:"special_requests"`
}
