package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/yeremiapane/table-reservations/database"
	"github.com/yeremiapane/table-reservations/models"
	"github.com/yeremiapane/table-reservations/repository"
	"github.com/yeremiapane/table-reservations/utils"
)

// LimitProvider reports the maximum number of reservations one client may
// hold. It is consulted on every create, so the value may change at runtime.
type LimitProvider interface {
	ReservationLimit() int
}

type ReservationRequest struct {
	ClientID        uint   `json:"clientId" binding:"required"`
	TableNumber     int    `json:"tableNumber" binding:"required"`
	StartTime       string `json:"startTime" binding:"required"`
	EndTime         string `json:"endTime" binding:"required"`
	ReservationType string `json:"reservationType"`
	SpecialRequests string `json:"specialRequests"`
}

// ReservationView is the denormalized form returned to callers.
type ReservationView struct {
	ID              uint    `json:"id"`
	UID             string  `json:"uid"`
	ClientID        uint    `json:"clientId"`
	TableNumber     int     `json:"tableNumber"`
	StartTime       string  `json:"startTime"`
	EndTime         string  `json:"endTime"`
	ClientName      string  `json:"clientName"`
	ClientPhone     string  `json:"clientPhone"`
	HostName        *string `json:"hostName,omitempty"`
	ReservationType string  `json:"reservationType"`
	SpecialRequests string  `json:"specialRequests"`
}

type Outcome int

const (
	OutcomeCreated Outcome = iota + 1
	OutcomeUpdated
	OutcomeNotFound
	OutcomeLimitExceeded
	OutcomeRejected
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCreated:
		return "created"
	case OutcomeUpdated:
		return "updated"
	case OutcomeNotFound:
		return "not_found"
	case OutcomeLimitExceeded:
		return "limit_exceeded"
	case OutcomeRejected:
		return "rejected"
	default:
		return "unknown(" + strconv.Itoa(int(o)) + ")"
	}
}

// Result is the outcome of a create or update. Err is set only when
// Outcome is OutcomeRejected; ID and Reservation only on success.
type Result struct {
	Outcome     Outcome
	ID          uint
	Reservation *ReservationView
	Err         *ServerError
}

func rejected(err *ServerError) Result {
	return Result{Outcome: OutcomeRejected, Err: err}
}

type ReservationService struct {
	store  repository.Store
	limits LimitProvider
	locker database.Locker
	events EventPublisher
}

// NewReservationService wires the service. A nil locker falls back to an
// in-process one and nil events to a no-op publisher.
func NewReservationService(store repository.Store, limits LimitProvider, locker database.Locker, events EventPublisher) *ReservationService {
	if locker == nil {
		locker = database.NewLocalLocker()
	}
	if events == nil {
		events = NopPublisher{}
	}
	return &ReservationService{
		store:  store,
		limits: limits,
		locker: locker,
		events: events,
	}
}

func toView(row *repository.ReservationRow) *ReservationView {
	v := &ReservationView{
		ID:              row.ID,
		UID:             row.UID,
		ClientID:        row.ClientID,
		TableNumber:     row.TableNumber,
		StartTime:       FormatTimestamp(row.StartTime),
		EndTime:         FormatTimestamp(row.EndTime),
		ClientName:      row.ClientName,
		ClientPhone:     row.ClientPhone,
		HostName:        row.HostName,
		ReservationType: string(models.ReservationTypeMeeting),
	}
	if row.ReservationType != nil && *row.ReservationType != "" {
		v.ReservationType = *row.ReservationType
	}
	if row.SpecialRequests != nil {
		v.SpecialRequests = *row.SpecialRequests
	}
	return v
}

// GetReservation returns nil without error when id does not exist.
func (s *ReservationService) GetReservation(ctx context.Context, id uint) (*ReservationView, error) {
	row, err := s.store.FindView(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get reservation %d: %w", id, err)
	}
	return toView(row), nil
}

// GetAllReservations returns every reservation matching all set filters.
// The result is empty, never nil, when nothing matches.
func (s *ReservationService) GetAllReservations(ctx context.Context, f repository.ReservationFilter) ([]ReservationView, error) {
	rows, err := s.store.ListViews(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list reservations: %w", err)
	}
	views := make([]ReservationView, 0, len(rows))
	for i := range rows {
		views = append(views, *toView(&rows[i]))
	}
	return views, nil
}

func writeKeys(clientID uint, tableNumber int) []string {
	return []string{database.ClientKey(clientID), database.TableKey(tableNumber)}
}

// resolve looks up the referenced table and client. A missing reference is
// reported through the *ServerError, infrastructure failures through error.
func resolve(ctx context.Context, store repository.Store, req ReservationRequest) (*models.Table, *models.Client, *ServerError, error) {
	table, err := store.FindTableByNumber(ctx, req.TableNumber)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil, ErrTableOrClientMissing, nil
	}
	if err != nil {
		return nil, nil, nil, err
	}
	client, err := store.FindClient(ctx, req.ClientID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil, ErrTableOrClientMissing, nil
	}
	if err != nil {
		return nil, nil, nil, err
	}
	return table, client, nil, nil
}

// AddReservation checks the client's limit, the references and the table's
// availability, then stores the reservation with its detail. The checks and
// the insert run under per-client and per-table locks inside one transaction.
// The locks are released on commit, before the read-back and event publish.
func (s *ReservationService) AddReservation(ctx context.Context, req ReservationRequest) (Result, error) {
	unlock, err := s.locker.Lock(ctx, writeKeys(req.ClientID, req.TableNumber)...)
	if err != nil {
		return Result{}, fmt.Errorf("add reservation: lock: %w", err)
	}
	defer unlock()

	var (
		res     Result
		created *models.Reservation
	)
	err = s.store.Transaction(ctx, func(tx repository.Store) error {
		if err := tx.LockForWrite(ctx, req.ClientID, req.TableNumber); err != nil {
			return err
		}
		clientID := req.ClientID
		count, err := tx.CountByFilter(ctx, repository.ReservationFilter{ClientID: &clientID})
		if err != nil {
			return err
		}
		if limit := s.limits.ReservationLimit(); count >= int64(limit) {
			res = Result{Outcome: OutcomeLimitExceeded}
			return nil
		}

		table, client, verr, err := resolve(ctx, tx, req)
		if err != nil {
			return err
		}
		if verr != nil {
			res = rejected(verr)
			return nil
		}

		start, end, verr := parseRange(req.StartTime, req.EndTime)
		if verr != nil {
			res = rejected(verr)
			return nil
		}

		overlapping, err := tx.CountOverlapping(ctx, table.ID, start, end, 0)
		if err != nil {
			return err
		}
		if overlapping > 0 {
			res = rejected(ErrTableReserved)
			return nil
		}

		r := &models.Reservation{
			ClientID:  client.ID,
			TableID:   table.ID,
			StartTime: start,
			EndTime:   end,
			Detail: models.ReservationDetail{
				ReservationType: models.ReservationTypeOrDefault(req.ReservationType),
				SpecialRequests: req.SpecialRequests,
			},
		}
		if err := tx.CreateReservation(ctx, r); err != nil {
			return err
		}
		created = r
		return nil
	})
	unlock()
	if err != nil {
		return Result{}, fmt.Errorf("add reservation: %w", err)
	}

	if created == nil {
		utils.InfoLogger.Printf("Reservation for client %d on table %d not created: %s", req.ClientID, req.TableNumber, describe(res))
		return res, nil
	}

	view, err := s.GetReservation(ctx, created.ID)
	if err != nil {
		return Result{}, err
	}
	if view == nil {
		return Result{}, fmt.Errorf("add reservation: reservation %d vanished after commit", created.ID)
	}

	utils.InfoLogger.Printf("Reservation %d created: table %d, client %d, %s - %s", created.ID, view.TableNumber, created.ClientID, view.StartTime, view.EndTime)
	s.publish(ctx, EventReservationCreated, created.ID, created.UID, view)
	return Result{Outcome: OutcomeCreated, ID: created.ID, Reservation: view}, nil
}

// UpdateReservation validates the new values completely before changing the
// stored reservation. The reservation never conflicts with itself.
func (s *ReservationService) UpdateReservation(ctx context.Context, id uint, req ReservationRequest) (Result, error) {
	unlock, err := s.locker.Lock(ctx, writeKeys(req.ClientID, req.TableNumber)...)
	if err != nil {
		return Result{}, fmt.Errorf("update reservation %d: lock: %w", id, err)
	}
	defer unlock()

	var (
		res     Result
		updated *models.Reservation
	)
	err = s.store.Transaction(ctx, func(tx repository.Store) error {
		if err := tx.LockForWrite(ctx, req.ClientID, req.TableNumber); err != nil {
			return err
		}
		existing, err := tx.FindReservation(ctx, id)
		if errors.Is(err, repository.ErrNotFound) {
			res = Result{Outcome: OutcomeNotFound}
			return nil
		}
		if err != nil {
			return err
		}

		table, client, verr, err := resolve(ctx, tx, req)
		if err != nil {
			return err
		}
		if verr != nil {
			res = rejected(verr)
			return nil
		}

		start, end, verr := parseRange(req.StartTime, req.EndTime)
		if verr != nil {
			res = rejected(verr)
			return nil
		}

		overlapping, err := tx.CountOverlapping(ctx, table.ID, start, end, existing.ID)
		if err != nil {
			return err
		}
		if overlapping > 0 {
			res = rejected(ErrTableReserved)
			return nil
		}

		existing.TableID = table.ID
		existing.ClientID = client.ID
		existing.StartTime = start
		existing.EndTime = end
		existing.Detail.ReservationType = models.ReservationTypeOrDefault(req.ReservationType)
		existing.Detail.SpecialRequests = req.SpecialRequests
		if err := tx.SaveReservation(ctx, existing); err != nil {
			return err
		}
		updated = existing
		return nil
	})
	unlock()
	if err != nil {
		return Result{}, fmt.Errorf("update reservation %d: %w", id, err)
	}

	if updated == nil {
		utils.InfoLogger.Printf("Reservation %d not updated: %s", id, describe(res))
		return res, nil
	}

	view, err := s.GetReservation(ctx, id)
	if err != nil {
		return Result{}, err
	}
	if view == nil {
		return Result{Outcome: OutcomeNotFound}, nil
	}

	utils.InfoLogger.Printf("Reservation %d updated: table %d, %s - %s", id, view.TableNumber, view.StartTime, view.EndTime)
	s.publish(ctx, EventReservationUpdated, id, updated.UID, view)
	return Result{Outcome: OutcomeUpdated, ID: id, Reservation: view}, nil
}

// DeleteReservation reports whether a reservation was removed.
func (s *ReservationService) DeleteReservation(ctx context.Context, id uint) (bool, error) {
	view, err := s.GetReservation(ctx, id)
	if err != nil {
		return false, err
	}
	if view == nil {
		return false, nil
	}

	deleted, err := s.store.DeleteReservation(ctx, id)
	if err != nil {
		return false, fmt.Errorf("delete reservation %d: %w", id, err)
	}
	if deleted {
		utils.InfoLogger.Printf("Reservation %d deleted", id)
		s.publish(ctx, EventReservationDeleted, id, view.UID, view)
	}
	return deleted, nil
}

func (s *ReservationService) publish(ctx context.Context, kind string, id uint, uid string, view *ReservationView) {
	ev := ReservationEvent{
		Type:          kind,
		ReservationID: id,
		UID:           uid,
		Reservation:   view,
		OccurredAt:    time.Now().UTC(),
	}
	if err := s.events.Publish(ctx, ev); err != nil {
		utils.ErrorLogger.Printf("Failed to publish %s for reservation %d: %v", kind, id, err)
	}
}

func describe(r Result) string {
	if r.Err != nil {
		return r.Outcome.String() + ": " + r.Err.Message
	}
	return r.Outcome.String()
}
