package room

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// Repository defines room data access
type Repository interface {
	Create(ctx context.Context, room *Room) error
	GetByID(ctx context.Context, id uuid.UUID) (*Room, error)
	List(ctx context.Context, includeInactive bool) ([]*Room, error)
	Update(ctx context.Context, room *Room) error
	Deactivate(ctx context.Context, id uuid.UUID) (bool, error)
	ExistsActive(ctx context.Context, id uuid.UUID) (bool, error)
}

type repository struct {
	db *sqlx.DB
}

// NewRepository creates room repository
func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

const roomColumns = `id, name, capacity, location, amenities, is_active, created_at, updated_at`

func (r *repository) Create(ctx context.Context, room *Room) error {
	query := `
		INSERT INTO rooms (id, name, capacity, location, amenities, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.db.ExecContext(ctx, query,
		room.ID,
		room.Name,
		room.Capacity,
		room.Location,
		room.Amenities,
		room.IsActive,
		room.CreatedAt,
		room.UpdatedAt,
	)
	return err
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*Room, error) {
	query := `SELECT ` + roomColumns + ` FROM rooms WHERE id = $1`
	var room Room
	err := r.db.GetContext(ctx, &room, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &room, nil
}

func (r *repository) List(ctx context.Context, includeInactive bool) ([]*Room, error) {
	query := `SELECT ` + roomColumns + ` FROM rooms`
	if !includeInactive {
		query += ` WHERE is_active = true`
	}
	query += ` ORDER BY name`

	rooms := []*Room{}
	if err := r.db.SelectContext(ctx, &rooms, query); err != nil {
		return nil, err
	}
	return rooms, nil
}

func (r *repository) Update(ctx context.Context, room *Room) error {
	query := `
		UPDATE rooms SET
			name = $2, capacity = $3, location = $4, amenities = $5, is_active = $6, updated_at = $7
		WHERE id = $1
	`
	room.UpdatedAt = time.Now()
	_, err := r.db.ExecContext(ctx, query,
		room.ID,
		room.Name,
		room.Capacity,
		room.Location,
		room.Amenities,
		room.IsActive,
		room.UpdatedAt,
	)
	return err
}

// Deactivate is a logical delete: booking history keeps referencing the row.
func (r *repository) Deactivate(ctx context.Context, id uuid.UUID) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE rooms SET is_active = false, updated_at = NOW()
		WHERE id = $1 AND is_active = true
	`, id)
	if err != nil {
		return false, err
	}
	affected, _ := result.RowsAffected()
	return affected > 0, nil
}

func (r *repository) ExistsActive(ctx context.Context, id uuid.UUID) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `
		SELECT EXISTS (SELECT 1 FROM rooms WHERE id = $1 AND is_active = true)
	`, id)
	return exists, err
}
