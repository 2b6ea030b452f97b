package booking

import (
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"
)

func TestMapInsertError(t *testing.T) {
	cases := []struct {
		name string
		in   error
		want error
	}{
		{
			name: "idempotency key unique violation",
			in: &pq.Error{
				Code:       "23505",
				Constraint: "bookings_idempotency_key_uq",
				Message:    `duplicate key value violates unique constraint "bookings_idempotency_key_uq"`,
			},
			want: ErrDuplicateIdempotencyKey,
		},
		{
			name: "overlap exclusion violation",
			in: &pq.Error{
				Code:       "23P01",
				Constraint: "bookings_no_overlap",
				Message:    `conflicting key value violates exclusion constraint "bookings_no_overlap"`,
			},
			want: ErrOverlapConstraint,
		},
		{
			name: "wrapped pq error still maps",
			in: fmt.Errorf("exec insert: %w", &pq.Error{
				Code:       "23P01",
				Constraint: "bookings_no_overlap",
			}),
			want: ErrOverlapConstraint,
		},
		{
			name: "unique violation on an unrelated constraint passes through",
			in: &pq.Error{
				Code:       "23505",
				Constraint: "bookings_pkey",
			},
		},
		{
			name: "check violation passes through",
			in: &pq.Error{
				Code:       "23514",
				Constraint: "bookings_valid_range",
			},
		},
		{
			name: "non-pq error passes through",
			in:   errors.New("connection reset"),
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := mapInsertError(tc.in)
			if tc.want != nil {
				if !errors.Is(got, tc.want) {
					t.Fatalf("expected %v, got %v", tc.want, got)
				}
				return
			}
			if !errors.Is(got, tc.in) && got != tc.in {
				t.Fatalf("expected passthrough of %v, got %v", tc.in, got)
			}
		})
	}
}
