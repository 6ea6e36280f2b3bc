// Package repository holds the gorm-backed persistence used by the reservation
// service. Views are built with explicit joins so callers get exactly the
// denormalized fields they render, never lazily loaded relations.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/yeremiapane/table-reservations/database"
	"github.com/yeremiapane/table-reservations/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrNotFound is returned when a looked-up row does not exist.
var ErrNotFound = errors.New("record not found")

// ReservationFilter narrows a listing. Nil fields are ignored and the
// remaining ones are combined with AND.
type ReservationFilter struct {
	ClientID        *uint
	TableNumber     *int
	Date            *time.Time
	ReservationType *string
}

// ReservationRow is one reservation joined with its detail, client, table and host.
type ReservationRow struct {
	ID              uint
	UID             string
	ClientID        uint
	TableID         uint
	TableNumber     int
	StartTime       time.Time
	EndTime         time.Time
	ClientName      string
	ClientPhone     string
	HostName        *string
	ReservationType *string
	SpecialRequests *string
}

// Store is everything the reservation service needs from persistence.
type Store interface {
	FindView(ctx context.Context, id uint) (*ReservationRow, error)
	ListViews(ctx context.Context, f ReservationFilter) ([]ReservationRow, error)
	CountByFilter(ctx context.Context, f ReservationFilter) (int64, error)
	FindReservation(ctx context.Context, id uint) (*models.Reservation, error)
	FindTableByNumber(ctx context.Context, number int) (*models.Table, error)
	FindClient(ctx context.Context, id uint) (*models.Client, error)
	CountOverlapping(ctx context.Context, tableID uint, start, end time.Time, excludeID uint) (int64, error)
	CreateReservation(ctx context.Context, r *models.Reservation) error
	SaveReservation(ctx context.Context, r *models.Reservation) error
	DeleteReservation(ctx context.Context, id uint) (bool, error)
	// LockForWrite blocks other writers on the same client or table until
	// the current transaction ends. Call it first inside Transaction.
	LockForWrite(ctx context.Context, clientID uint, tableNumber int) error
	Transaction(ctx context.Context, fn func(Store) error) error
}

type GormStore struct {
	DB *gorm.DB
	// LockTimeout bounds the wait in LockForWrite. Zero keeps the server default.
	LockTimeout time.Duration
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{DB: db}
}

const viewColumns = `r.id, r.uid, r.client_id, r.table_id, t.number AS table_number,
	r.start_time, r.end_time, c.name AS client_name, c.phone AS client_phone,
	h.name AS host_name, d.reservation_type, d.special_requests`

func (s *GormStore) viewQuery(ctx context.Context) *gorm.DB {
	return s.DB.WithContext(ctx).
		Table("reservations AS r").
		Joins("JOIN tables t ON t.id = r.table_id").
		Joins("JOIN clients c ON c.id = r.client_id").
		Joins("LEFT JOIN hosts h ON h.table_id = t.id").
		Joins("LEFT JOIN reservation_details d ON d.reservation_id = r.id")
}

func applyFilter(q *gorm.DB, f ReservationFilter) *gorm.DB {
	if f.ClientID != nil {
		q = q.Where("r.client_id = ?", *f.ClientID)
	}
	if f.TableNumber != nil {
		q = q.Where("t.number = ?", *f.TableNumber)
	}
	if f.Date != nil {
		d := f.Date.UTC()
		day := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
		q = q.Where("r.start_time >= ? AND r.start_time < ?", day, day.Add(24*time.Hour))
	}
	if f.ReservationType != nil {
		// Unknown names are compared verbatim and so match nothing.
		name := *f.ReservationType
		if t, ok := models.ParseReservationType(name); ok {
			name = string(t)
		}
		q = q.Where("d.reservation_type = ?", name)
	}
	return q
}

func (s *GormStore) FindView(ctx context.Context, id uint) (*ReservationRow, error) {
	var rows []ReservationRow
	err := s.viewQuery(ctx).Select(viewColumns).Where("r.id = ?", id).Limit(1).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	return &rows[0], nil
}

func (s *GormStore) ListViews(ctx context.Context, f ReservationFilter) ([]ReservationRow, error) {
	rows := make([]ReservationRow, 0)
	err := applyFilter(s.viewQuery(ctx), f).Select(viewColumns).Order("r.start_time, r.id").Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// CountByFilter counts through the same joins as ListViews.
func (s *GormStore) CountByFilter(ctx context.Context, f ReservationFilter) (int64, error) {
	var n int64
	err := applyFilter(s.viewQuery(ctx), f).Count(&n).Error
	return n, err
}

func (s *GormStore) FindReservation(ctx context.Context, id uint) (*models.Reservation, error) {
	var r models.Reservation
	if err := s.DB.WithContext(ctx).Preload("Detail").First(&r, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &r, nil
}

func (s *GormStore) FindTableByNumber(ctx context.Context, number int) (*models.Table, error) {
	var t models.Table
	if err := s.DB.WithContext(ctx).Where("number = ?", number).First(&t).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &t, nil
}

func (s *GormStore) FindClient(ctx context.Context, id uint) (*models.Client, error) {
	var c models.Client
	if err := s.DB.WithContext(ctx).First(&c, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

// CountOverlapping counts reservations on tableID whose [start, end) intersects
// the given range. Touching endpoints do not count. excludeID 0 excludes nothing.
func (s *GormStore) CountOverlapping(ctx context.Context, tableID uint, start, end time.Time, excludeID uint) (int64, error) {
	q := s.DB.WithContext(ctx).Model(&models.Reservation{}).
		Where("table_id = ? AND start_time < ? AND end_time > ?", tableID, end.UTC(), start.UTC())
	if excludeID != 0 {
		q = q.Where("id <> ?", excludeID)
	}
	var n int64
	err := q.Count(&n).Error
	return n, err
}

// CreateReservation inserts the reservation and then its detail.
func (s *GormStore) CreateReservation(ctx context.Context, r *models.Reservation) error {
	db := s.DB.WithContext(ctx)
	if err := db.Omit(clause.Associations).Create(r).Error; err != nil {
		return err
	}
	r.Detail.ReservationID = r.ID
	return db.Create(&r.Detail).Error
}

func (s *GormStore) SaveReservation(ctx context.Context, r *models.Reservation) error {
	db := s.DB.WithContext(ctx)
	if err := db.Omit(clause.Associations).Save(r).Error; err != nil {
		return err
	}
	r.Detail.ReservationID = r.ID
	if r.Detail.ID == 0 {
		return db.Create(&r.Detail).Error
	}
	return db.Save(&r.Detail).Error
}

// DeleteReservation removes the detail and the reservation together.
func (s *GormStore) DeleteReservation(ctx context.Context, id uint) (bool, error) {
	var deleted bool
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("reservation_id = ?", id).Delete(&models.ReservationDetail{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&models.Reservation{}, id)
		if res.Error != nil {
			return res.Error
		}
		deleted = res.RowsAffected > 0
		return nil
	})
	return deleted, err
}

func (s *GormStore) LockForWrite(ctx context.Context, clientID uint, tableNumber int) error {
	db := s.DB.WithContext(ctx)
	for _, l := range database.WriteLocks(db.Dialector.Name(), clientID, tableNumber, s.LockTimeout) {
		if err := db.Exec(l.SQL, l.Args...).Error; err != nil {
			return err
		}
	}
	return nil
}

func (s *GormStore) Transaction(ctx context.Context, fn func(Store) error) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormStore{DB: tx, LockTimeout: s.LockTimeout})
	})
}
