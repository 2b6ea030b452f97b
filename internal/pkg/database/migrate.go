package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"
)

// schema is applied on startup. Two constraints carry the core correctness
// guarantees and must never be relaxed:
//   - bookings_no_overlap: the store-level exclusion constraint on
//     (room_id, [start_time, end_time)) for non-cancelled rows. Conflict
//     checking in the service is a fast path; this is the actual guard
//     against two concurrent creations both succeeding.
//   - bookings_idempotency_key_uq: a token is consumed exactly once; a
//     duplicate insert surfaces as unique_violation and is replayed.
var schema = []string{
	`CREATE EXTENSION IF NOT EXISTS btree_gist`,

	`CREATE TABLE IF NOT EXISTS rooms (
		id          UUID PRIMARY KEY,
		name        TEXT NOT NULL,
		capacity    INT NOT NULL DEFAULT 1,
		location    TEXT NOT NULL DEFAULT '',
		amenities   TEXT[] NOT NULL DEFAULT '{}',
		is_active   BOOLEAN NOT NULL DEFAULT TRUE,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS bookings (
		id              UUID PRIMARY KEY,
		room_id         UUID NOT NULL REFERENCES rooms(id),
		user_id         TEXT NOT NULL,
		title           TEXT NOT NULL,
		description     TEXT,
		start_time      TIMESTAMPTZ NOT NULL,
		end_time        TIMESTAMPTZ NOT NULL,
		status          TEXT NOT NULL DEFAULT 'CONFIRMED',
		idempotency_key TEXT,
		cancel_reason   TEXT,
		cancelled_at    TIMESTAMPTZ,
		created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CONSTRAINT bookings_interval_valid CHECK (end_time > start_time),
		CONSTRAINT bookings_no_overlap EXCLUDE USING gist (
			room_id WITH =,
			tstzrange(start_time, end_time) WITH &&
		) WHERE (status <> 'CANCELLED')
	)`,

	`CREATE UNIQUE INDEX IF NOT EXISTS bookings_idempotency_key_uq
		ON bookings (idempotency_key) WHERE idempotency_key IS NOT NULL`,

	`CREATE INDEX IF NOT EXISTS bookings_room_start_idx
		ON bookings (room_id, start_time)`,

	`CREATE TABLE IF NOT EXISTS notifications (
		id          UUID PRIMARY KEY,
		user_id     TEXT NOT NULL,
		type        TEXT NOT NULL,
		title       TEXT NOT NULL,
		body        TEXT,
		booking_id  UUID,
		is_read     BOOLEAN NOT NULL DEFAULT FALSE,
		read_at     TIMESTAMPTZ,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CONSTRAINT notifications_dedupe UNIQUE (user_id, type, booking_id)
	)`,
}

// seedRooms keeps a fresh instance usable out of the box.
var seedRooms = `
	INSERT INTO rooms (id, name, capacity, location, amenities) VALUES
		('550e8400-e29b-41d4-a716-446655440001', 'Salle Einstein', 8,  'Floor 1', '{"whiteboard","screen"}'),
		('550e8400-e29b-41d4-a716-446655440002', 'Salle Curie',    4,  'Floor 1', '{"whiteboard"}'),
		('550e8400-e29b-41d4-a716-446655440003', 'Salle Newton',   12, 'Floor 2', '{"screen","conference_phone"}')
	ON CONFLICT (id) DO NOTHING
`

// Migrate applies the schema and seeds the default rooms.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	if _, err := db.ExecContext(ctx, seedRooms); err != nil {
		return fmt.Errorf("seed rooms: %w", err)
	}
	log.Info().Msg("Database schema up to date")
	return nil
}
