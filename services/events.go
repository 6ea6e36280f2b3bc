package services

import (
	"context"
	"errors"
	"time"
)

const (
	EventReservationCreated = "reservation.created"
	EventReservationUpdated = "reservation.updated"
	EventReservationDeleted = "reservation.deleted"
)

type ReservationEvent struct {
	Type          string           `json:"type"`
	ReservationID uint             `json:"reservationId"`
	UID           string           `json:"uid,omitempty"`
	Reservation   *ReservationView `json:"reservation,omitempty"`
	OccurredAt    time.Time        `json:"occurredAt"`
}

// EventPublisher receives reservation changes after they are committed.
type EventPublisher interface {
	Publish(ctx context.Context, ev ReservationEvent) error
}

type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, ReservationEvent) error { return nil }

// MultiPublisher delivers to every publisher and joins their errors.
type MultiPublisher []EventPublisher

func (m MultiPublisher) Publish(ctx context.Context, ev ReservationEvent) error {
	var errs []error
	for _, p := range m {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
