package booking

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// Store-level constraint signals. The service layer translates these into
// domain outcomes: a duplicate idempotency key becomes an idempotent replay,
// an overlap becomes a conflict response.
var (
	ErrDuplicateIdempotencyKey = errors.New("idempotency key already consumed")
	ErrOverlapConstraint       = errors.New("interval overlaps an existing booking")
)

// Repository defines booking data access
type Repository interface {
	Create(ctx context.Context, b *Booking) error
	GetByID(ctx context.Context, id uuid.UUID) (*Booking, error)
	GetByIdempotencyKey(ctx context.Context, key string) (*Booking, error)
	List(ctx context.Context, f Filter) ([]*Booking, error)
	Update(ctx context.Context, b *Booking) error
	FindConflicting(ctx context.Context, roomID uuid.UUID, start, end time.Time, excludeID *uuid.UUID) ([]*Booking, error)
	ListActiveForRange(ctx context.Context, roomID uuid.UUID, from, to time.Time) ([]*Booking, error)
}

type repository struct {
	db *sqlx.DB
}

// NewRepository creates booking repository
func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

const bookingColumns = `
	id, room_id, user_id, title, description, start_time, end_time,
	status, idempotency_key, cancel_reason, cancelled_at, created_at, updated_at`

func (r *repository) Create(ctx context.Context, b *Booking) error {
	query := `
		INSERT INTO bookings (
			id, room_id, user_id, title, description, start_time, end_time,
			status, idempotency_key, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := r.db.ExecContext(ctx, query,
		b.ID,
		b.RoomID,
		b.UserID,
		b.Title,
		b.Description,
		b.StartTime,
		b.EndTime,
		b.Status,
		b.IdempotencyKey,
		b.CreatedAt,
		b.UpdatedAt,
	)
	if err != nil {
		return mapInsertError(err)
	}
	return nil
}

// mapInsertError translates constraint violations from the insert into the
// package sentinels. Everything else passes through untouched.
func mapInsertError(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return err
	}
	switch pqErr.Code {
	case "23505": // unique_violation
		if pqErr.Constraint == "bookings_idempotency_key_uq" {
			return fmt.Errorf("%w: %s", ErrDuplicateIdempotencyKey, pqErr.Message)
		}
	case "23P01": // exclusion_violation
		if pqErr.Constraint == "bookings_no_overlap" {
			return fmt.Errorf("%w: %s", ErrOverlapConstraint, pqErr.Message)
		}
	}
	return err
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1`
	var b Booking
	err := r.db.GetContext(ctx, &b, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &b, nil
}

// GetByIdempotencyKey is the durable side of the idempotency protocol: the
// cache entry is an accelerator, this index is authoritative.
func (r *repository) GetByIdempotencyKey(ctx context.Context, key string) (*Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE idempotency_key = $1`
	var b Booking
	err := r.db.GetContext(ctx, &b, query, key)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &b, nil
}

func (r *repository) List(ctx context.Context, f Filter) ([]*Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings`
	var conditions []string
	var args []interface{}

	add := func(condition string, value interface{}) {
		args = append(args, value)
		conditions = append(conditions, condition+"$"+strconv.Itoa(len(args)))
	}

	if f.RoomID != uuid.Nil {
		add("room_id = ", f.RoomID)
	}
	if f.UserID != "" {
		add("user_id = ", f.UserID)
	}
	if f.Status != "" {
		add("status = ", f.Status)
	}
	if !f.StartFrom.IsZero() {
		add("start_time >= ", f.StartFrom)
	}
	if !f.StartTo.IsZero() {
		add("start_time < ", f.StartTo)
	}

	for i, c := range conditions {
		if i == 0 {
			query += " WHERE " + c
		} else {
			query += " AND " + c
		}
	}
	query += " ORDER BY start_time"

	bookings := []*Booking{}
	if err := r.db.SelectContext(ctx, &bookings, query, args...); err != nil {
		return nil, err
	}
	return bookings, nil
}

func (r *repository) Update(ctx context.Context, b *Booking) error {
	query := `
		UPDATE bookings SET
			status = $2, cancel_reason = $3, cancelled_at = $4, updated_at = $5
		WHERE id = $1
	`
	b.UpdatedAt = time.Now()
	_, err := r.db.ExecContext(ctx, query,
		b.ID,
		b.Status,
		b.CancelReason,
		b.CancelledAt,
		b.UpdatedAt,
	)
	return err
}

// FindConflicting returns non-cancelled bookings of the room overlapping
// [start, end), ordered by start time. excludeID is honored for update
// flows that must not collide with themselves.
func (r *repository) FindConflicting(ctx context.Context, roomID uuid.UUID, start, end time.Time, excludeID *uuid.UUID) ([]*Booking, error) {
	query := `
		SELECT ` + bookingColumns + `
		FROM bookings
		WHERE room_id = $1
		  AND status <> 'CANCELLED'
		  AND start_time < $3
		  AND end_time > $2
	`
	args := []interface{}{roomID, start, end}
	if excludeID != nil {
		query += ` AND id <> $4`
		args = append(args, *excludeID)
	}
	query += ` ORDER BY start_time`

	bookings := []*Booking{}
	if err := r.db.SelectContext(ctx, &bookings, query, args...); err != nil {
		return nil, err
	}
	return bookings, nil
}

// ListActiveForRange feeds the availability calculator: non-cancelled
// bookings whose start falls within [from, to), ordered by start time.
func (r *repository) ListActiveForRange(ctx context.Context, roomID uuid.UUID, from, to time.Time) ([]*Booking, error) {
	query := `
		SELECT ` + bookingColumns + `
		FROM bookings
		WHERE room_id = $1
		  AND status <> 'CANCELLED'
		  AND start_time >= $2
		  AND start_time < $3
		ORDER BY start_time
	`
	bookings := []*Booking{}
	if err := r.db.SelectContext(ctx, &bookings, query, roomID, from, to); err != nil {
		return nil, err
	}
	return bookings, nil
}
