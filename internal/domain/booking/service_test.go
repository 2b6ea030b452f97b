package booking

import (
	"context"
	"database/sql"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/roomly/roomly-api/internal/pkg/apperr"
	"github.com/roomly/roomly-api/internal/pkg/cache"
	"github.com/roomly/roomly-api/internal/pkg/events"
)

// repoStub mimics the store, including the two constraints that the real
// schema enforces: the unique idempotency key and the non-overlap exclusion.
type repoStub struct {
	mu       sync.Mutex
	bookings map[uuid.UUID]*Booking

	// Force the constraint path: when set, Create fails with the given
	// error exactly once even if the in-memory check would pass.
	createErrOnce error

	// While positive, GetByIdempotencyKey returns a miss and decrements.
	// Simulates a winner whose row is not yet visible to the pre-check.
	keyLookupsBlind int

	failReads bool
}

func newRepoStub() *repoStub {
	return &repoStub{bookings: map[uuid.UUID]*Booking{}}
}

var errStubDown = errors.New("store down")

func (r *repoStub) Create(_ context.Context, b *Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErrOnce != nil {
		err := r.createErrOnce
		r.createErrOnce = nil
		return err
	}
	for _, existing := range r.bookings {
		if b.IdempotencyKey.Valid && existing.IdempotencyKey.Valid &&
			existing.IdempotencyKey.String == b.IdempotencyKey.String {
			return ErrDuplicateIdempotencyKey
		}
		if existing.RoomID == b.RoomID && !existing.IsCancelled() &&
			existing.Overlaps(b.StartTime, b.EndTime) {
			return ErrOverlapConstraint
		}
	}
	clone := *b
	r.bookings[b.ID] = &clone
	return nil
}

func (r *repoStub) GetByID(_ context.Context, id uuid.UUID) (*Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failReads {
		return nil, errStubDown
	}
	b, ok := r.bookings[id]
	if !ok {
		return nil, nil
	}
	clone := *b
	return &clone, nil
}

func (r *repoStub) GetByIdempotencyKey(_ context.Context, key string) (*Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failReads {
		return nil, errStubDown
	}
	if r.keyLookupsBlind > 0 {
		r.keyLookupsBlind--
		return nil, nil
	}
	for _, b := range r.bookings {
		if b.IdempotencyKey.Valid && b.IdempotencyKey.String == key {
			clone := *b
			return &clone, nil
		}
	}
	return nil, nil
}

func (r *repoStub) List(_ context.Context, f Filter) ([]*Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*Booking
	for _, b := range r.bookings {
		if f.RoomID != uuid.Nil && b.RoomID != f.RoomID {
			continue
		}
		if f.UserID != "" && b.UserID != f.UserID {
			continue
		}
		if f.Status != "" && b.Status != f.Status {
			continue
		}
		clone := *b
		out = append(out, &clone)
	}
	return out, nil
}

func (r *repoStub) Update(_ context.Context, b *Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *b
	r.bookings[b.ID] = &clone
	return nil
}

func (r *repoStub) FindConflicting(_ context.Context, roomID uuid.UUID, start, end time.Time, excludeID *uuid.UUID) ([]*Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*Booking
	for _, b := range r.bookings {
		if b.RoomID != roomID || b.IsCancelled() {
			continue
		}
		if excludeID != nil && b.ID == *excludeID {
			continue
		}
		if b.Overlaps(start, end) {
			clone := *b
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (r *repoStub) ListActiveForRange(_ context.Context, roomID uuid.UUID, from, to time.Time) ([]*Booking, error) {
	return r.FindConflicting(context.Background(), roomID, from, to, nil)
}

func (r *repoStub) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.bookings)
}

type roomsStub struct {
	active map[uuid.UUID]bool
}

func (s *roomsStub) ExistsActive(_ context.Context, id uuid.UUID) (bool, error) {
	return s.active[id], nil
}

// busStub records published events; publishOK=false simulates a dead broker.
type busStub struct {
	mu        sync.Mutex
	published map[string]int
	publishOK bool
}

func newBusStub() *busStub {
	return &busStub{published: map[string]int{}, publishOK: true}
}

func (b *busStub) Publish(_ context.Context, eventType string, _ interface{}) bool {
	b.mu.Lock()
	b.published[eventType]++
	b.mu.Unlock()
	return b.publishOK
}

func (b *busStub) Subscribe(string, events.Handler) {}

func (b *busStub) count(eventType string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.published[eventType]
}

type fixture struct {
	svc    *Service
	repo   *repoStub
	rooms  *roomsStub
	cache  *cache.MemoryCache
	bus    *busStub
	roomID uuid.UUID
	now    time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		repo:   newRepoStub(),
		cache:  cache.NewMemoryCache(),
		bus:    newBusStub(),
		roomID: uuid.New(),
		now:    time.Date(2025, 6, 2, 9, 0, 0, 0, time.Local),
	}
	f.rooms = &roomsStub{active: map[uuid.UUID]bool{f.roomID: true}}
	f.svc = NewService(f.repo, f.rooms, f.cache, f.bus)
	f.svc.now = func() time.Time { return f.now }
	return f
}

func (f *fixture) request(startHour, startMin, endHour, endMin int) *CreateBookingRequest {
	d := f.now
	return &CreateBookingRequest{
		RoomID:    f.roomID.String(),
		UserID:    "user-1",
		Title:     "Sprint planning",
		StartTime: time.Date(d.Year(), d.Month(), d.Day(), startHour, startMin, 0, 0, d.Location()),
		EndTime:   time.Date(d.Year(), d.Month(), d.Day(), endHour, endMin, 0, 0, d.Location()),
	}
}

func TestCreateBookingSuccess(t *testing.T) {
	f := newFixture(t)

	b, err := f.svc.CreateBooking(context.Background(), f.request(10, 0, 11, 0))
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if b.Status != StatusConfirmed {
		t.Fatalf("expected CONFIRMED, got %s", b.Status)
	}
	if f.repo.len() != 1 {
		t.Fatalf("expected one stored booking, got %d", f.repo.len())
	}
	if f.bus.count(events.TypeBookingCreated) != 1 {
		t.Fatal("created event must be published")
	}
	if _, ok := f.cache.Get(context.Background(), bookingKeyPrefix+b.ID.String()); !ok {
		t.Fatal("booking must be cached on write")
	}
}

func TestCreateBookingUnknownRoom(t *testing.T) {
	f := newFixture(t)
	req := f.request(10, 0, 11, 0)
	req.RoomID = uuid.New().String()

	_, err := f.svc.CreateBooking(context.Background(), req)
	if apperr.KindOf(err) != apperr.KindNotFound {
		t.Fatalf("expected not-found, got %v", err)
	}
	if f.repo.len() != 0 {
		t.Fatal("nothing may be stored")
	}
}

func TestCreateBookingIntervalValidation(t *testing.T) {
	f := newFixture(t)

	cases := []struct {
		name     string
		start    time.Time
		end      time.Time
		wantCode string
	}{
		{"past start", f.now.Add(-time.Hour), f.now.Add(time.Hour), "START_IN_PAST"},
		{"inverted range", f.now.Add(2 * time.Hour), f.now.Add(time.Hour), "INVALID_RANGE"},
		{"zero range", f.now.Add(time.Hour), f.now.Add(time.Hour), "INVALID_RANGE"},
		{"too long", f.now.Add(time.Hour), f.now.Add(10 * time.Hour), "DURATION_TOO_LONG"},
		{"too short", f.now.Add(time.Hour), f.now.Add(time.Hour + 5*time.Minute), "DURATION_TOO_SHORT"},
		// Past start wins over a simultaneously inverted range: the
		// checks run in a fixed order.
		{"past start beats inverted", f.now.Add(-2 * time.Hour), f.now.Add(-3 * time.Hour), "START_IN_PAST"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := f.request(10, 0, 11, 0)
			req.StartTime = tc.start
			req.EndTime = tc.end

			_, err := f.svc.CreateBooking(context.Background(), req)
			if apperr.KindOf(err) != apperr.KindInvalidInterval {
				t.Fatalf("expected invalid-interval, got %v", err)
			}
			if apperr.CodeOf(err) != tc.wantCode {
				t.Fatalf("expected code %s, got %s", tc.wantCode, apperr.CodeOf(err))
			}
		})
	}
}

func TestCreateBookingConflict(t *testing.T) {
	f := newFixture(t)

	a, err := f.svc.CreateBooking(context.Background(), f.request(10, 0, 11, 0))
	if err != nil {
		t.Fatalf("booking A must succeed: %v", err)
	}

	reqB := f.request(10, 30, 11, 30)
	reqB.UserID = "user-2"
	_, err = f.svc.CreateBooking(context.Background(), reqB)

	if apperr.KindOf(err) != apperr.KindConflict {
		t.Fatalf("expected conflict, got %v", err)
	}
	if got := apperr.FieldsOf(err)["conflicting_booking_id"]; got != a.ID.String() {
		t.Fatalf("conflict must name booking A, got %q", got)
	}
	if f.repo.len() != 1 {
		t.Fatalf("store must still contain only A, got %d", f.repo.len())
	}
	if f.bus.count(events.TypeRoomUnavailable) != 1 {
		t.Fatal("resource unavailable event must be published")
	}
	if f.bus.count(events.TypeBookingCreated) != 1 {
		t.Fatal("no second created event may be published")
	}
}

func TestCreateBookingIdempotentReplay(t *testing.T) {
	f := newFixture(t)
	req := f.request(10, 0, 11, 0)
	req.IdempotencyKey = "retry-key-1"

	first, err := f.svc.CreateBooking(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	second, err := f.svc.CreateBooking(context.Background(), req)
	if err != nil {
		t.Fatalf("replay must succeed: %v", err)
	}

	if first.ID != second.ID {
		t.Fatalf("replay must return the same booking: %s vs %s", first.ID, second.ID)
	}
	if f.repo.len() != 1 {
		t.Fatalf("exactly one record must exist, got %d", f.repo.len())
	}
	if f.bus.count(events.TypeBookingCreated) != 1 {
		t.Fatal("replay must not publish a second created event")
	}
}

func TestIdempotentReplaySurvivesCacheLoss(t *testing.T) {
	f := newFixture(t)
	req := f.request(10, 0, 11, 0)
	req.IdempotencyKey = "retry-key-2"

	first, err := f.svc.CreateBooking(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	// Simulate cache eviction: the durable index must still resolve.
	f.cache.Delete(context.Background(), idempotencyKeyPrefix+req.IdempotencyKey)

	second, err := f.svc.CreateBooking(context.Background(), req)
	if err != nil {
		t.Fatalf("replay after cache loss must succeed: %v", err)
	}
	if first.ID != second.ID {
		t.Fatal("durable index must resolve the replay")
	}
	if f.repo.len() != 1 {
		t.Fatalf("no double booking after cache loss, got %d records", f.repo.len())
	}
}

func TestIdempotencyKeyRaceReturnsWinner(t *testing.T) {
	f := newFixture(t)

	// The winner commits between our pre-check and our insert: make it
	// invisible to the first key lookup so the unique violation fires.
	winner := &Booking{
		ID:             uuid.New(),
		RoomID:         f.roomID,
		UserID:         "user-1",
		Title:          "Sprint planning",
		StartTime:      f.now.Add(4 * time.Hour),
		EndTime:        f.now.Add(5 * time.Hour),
		Status:         StatusConfirmed,
		IdempotencyKey: sql.NullString{String: "race-key", Valid: true},
	}
	f.repo.bookings[winner.ID] = winner
	f.repo.keyLookupsBlind = 1

	req := f.request(10, 0, 11, 0)
	req.IdempotencyKey = "race-key"
	got, err := f.svc.CreateBooking(context.Background(), req)
	if err != nil {
		t.Fatalf("race must resolve to the winner, got err %v", err)
	}
	if got.ID != winner.ID {
		t.Fatalf("expected winner %s, got %s", winner.ID, got.ID)
	}
}

func TestOverlapConstraintRaceBecomesConflict(t *testing.T) {
	f := newFixture(t)
	f.repo.createErrOnce = ErrOverlapConstraint

	_, err := f.svc.CreateBooking(context.Background(), f.request(10, 0, 11, 0))
	if apperr.KindOf(err) != apperr.KindConflict {
		t.Fatalf("exclusion violation must surface as conflict, got %v", err)
	}
}

func TestEventPublishFailureDoesNotFailCreate(t *testing.T) {
	f := newFixture(t)
	f.bus.publishOK = false

	if _, err := f.svc.CreateBooking(context.Background(), f.request(10, 0, 11, 0)); err != nil {
		t.Fatalf("publish failure must not fail the booking: %v", err)
	}
}

func TestGetBookingCacheAsideStalenessWindow(t *testing.T) {
	f := newFixture(t)
	b, err := f.svc.CreateBooking(context.Background(), f.request(10, 0, 11, 0))
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	// Mutate the store out-of-band, as another process would.
	f.repo.mu.Lock()
	f.repo.bookings[b.ID].Title = "renamed elsewhere"
	f.repo.mu.Unlock()

	got, err := f.svc.GetBooking(context.Background(), b.ID)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if got.Title != "Sprint planning" {
		t.Fatalf("read must serve the cached value inside the TTL, got %q", got.Title)
	}

	// Explicit invalidation ends the staleness window.
	f.cache.Delete(context.Background(), bookingKeyPrefix+b.ID.String())
	got, err = f.svc.GetBooking(context.Background(), b.ID)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if got.Title != "renamed elsewhere" {
		t.Fatalf("read after invalidation must hit the store, got %q", got.Title)
	}
}

func TestGetBookingNotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.GetBooking(context.Background(), uuid.New())
	if apperr.KindOf(err) != apperr.KindNotFound {
		t.Fatalf("expected not-found, got %v", err)
	}
}

func TestGetBookingStoreFailureIsUnavailable(t *testing.T) {
	f := newFixture(t)
	f.repo.failReads = true
	_, err := f.svc.GetBooking(context.Background(), uuid.New())
	if apperr.KindOf(err) != apperr.KindUnavailable {
		t.Fatalf("store read failure must map to unavailable, got %v", err)
	}
}

func TestCancelBookingOnceThenConflict(t *testing.T) {
	f := newFixture(t)
	b, err := f.svc.CreateBooking(context.Background(), f.request(10, 0, 11, 0))
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	cancelled, err := f.svc.CancelBooking(context.Background(), b.ID, "meeting moved")
	if err != nil {
		t.Fatalf("first cancel must succeed: %v", err)
	}
	if cancelled.Status != StatusCancelled || !cancelled.CancelledAt.Valid {
		t.Fatalf("cancel must stamp status and time: %+v", cancelled)
	}
	if _, ok := f.cache.Get(context.Background(), bookingKeyPrefix+b.ID.String()); ok {
		t.Fatal("cancel must delete the cache entry, not overwrite it")
	}
	if f.bus.count(events.TypeBookingCancelled) != 1 {
		t.Fatal("cancelled event must be published")
	}

	_, err = f.svc.CancelBooking(context.Background(), b.ID, "again")
	if apperr.KindOf(err) != apperr.KindConflict {
		t.Fatalf("second cancel must be a conflict, got %v", err)
	}
	if apperr.CodeOf(err) != "ALREADY_CANCELLED" {
		t.Fatalf("expected ALREADY_CANCELLED, got %s", apperr.CodeOf(err))
	}
	if f.bus.count(events.TypeBookingCancelled) != 1 {
		t.Fatal("failed cancel must not publish another event")
	}
}

func TestCancelBookingFreesTheSlot(t *testing.T) {
	f := newFixture(t)
	a, err := f.svc.CreateBooking(context.Background(), f.request(10, 0, 11, 0))
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if _, err := f.svc.CancelBooking(context.Background(), a.ID, ""); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	if _, err := f.svc.CreateBooking(context.Background(), f.request(10, 0, 11, 0)); err != nil {
		t.Fatalf("cancelled interval must be bookable again: %v", err)
	}
}

func TestCancelUnknownBooking(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.CancelBooking(context.Background(), uuid.New(), "")
	if apperr.KindOf(err) != apperr.KindNotFound {
		t.Fatalf("expected not-found, got %v", err)
	}
}

// Admitting random intervals one by one must never leave two confirmed
// bookings of the same room overlapping, whatever order they arrive in.
func TestNoOverlapInvariantProperty(t *testing.T) {
	f := newFixture(t)
	rng := rand.New(rand.NewSource(7))

	for i := 0; i < 300; i++ {
		startMin := 10*60 + rng.Intn(7*60)
		length := 15 + rng.Intn(120)
		req := f.request(startMin/60, startMin%60, (startMin+length)/60, (startMin+length)%60)
		_, _ = f.svc.CreateBooking(context.Background(), req)
	}

	confirmed, err := f.svc.ListBookings(context.Background(), Filter{RoomID: f.roomID, Status: StatusConfirmed})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(confirmed) == 0 {
		t.Fatal("at least one booking must have been admitted")
	}
	for i := 0; i < len(confirmed); i++ {
		for j := i + 1; j < len(confirmed); j++ {
			if confirmed[i].Overlaps(confirmed[j].StartTime, confirmed[j].EndTime) {
				t.Fatalf("overlap admitted: %+v and %+v", confirmed[i], confirmed[j])
			}
		}
	}
}
