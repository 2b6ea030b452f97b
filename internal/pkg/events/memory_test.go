package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func TestMemoryBusDeliversToSubscriber(t *testing.T) {
	bus := NewMemoryBus()
	defer bus.Close()

	var mu sync.Mutex
	var got []Event
	bus.Subscribe(TypeBookingCreated, func(_ context.Context, evt Event) error {
		mu.Lock()
		got = append(got, evt)
		mu.Unlock()
		return nil
	})

	if !bus.Publish(context.Background(), TypeBookingCreated, map[string]string{"id": "b1"}) {
		t.Fatal("publish must report success")
	}

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 1
	})

	var payload map[string]string
	if err := json.Unmarshal(got[0].Payload, &payload); err != nil {
		t.Fatalf("payload must be JSON: %v", err)
	}
	if payload["id"] != "b1" {
		t.Fatalf("unexpected payload: %v", payload)
	}
}

func TestMemoryBusZeroSubscribersIsNotAnError(t *testing.T) {
	bus := NewMemoryBus()
	defer bus.Close()

	if !bus.Publish(context.Background(), TypeRoomUnavailable, map[string]string{"room": "r1"}) {
		t.Fatal("publishing before any handler is registered must succeed")
	}
}

func TestMemoryBusRetriesFailedHandler(t *testing.T) {
	bus := NewMemoryBus()
	defer bus.Close()

	var mu sync.Mutex
	calls := 0
	bus.Subscribe(TypeBookingCancelled, func(_ context.Context, _ Event) error {
		mu.Lock()
		calls++
		n := calls
		mu.Unlock()
		if n < 2 {
			return errors.New("transient failure")
		}
		return nil
	})

	bus.Publish(context.Background(), TypeBookingCancelled, struct{}{})

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return calls >= 2
	})
}

func TestMemoryBusIsolatesEventTypes(t *testing.T) {
	bus := NewMemoryBus()
	defer bus.Close()

	var mu sync.Mutex
	created, cancelled := 0, 0
	bus.Subscribe(TypeBookingCreated, func(_ context.Context, _ Event) error {
		mu.Lock()
		created++
		mu.Unlock()
		return nil
	})
	bus.Subscribe(TypeBookingCancelled, func(_ context.Context, _ Event) error {
		mu.Lock()
		cancelled++
		mu.Unlock()
		return nil
	})

	bus.Publish(context.Background(), TypeBookingCreated, struct{}{})
	bus.Publish(context.Background(), TypeBookingCreated, struct{}{})

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return created == 2
	})

	mu.Lock()
	defer mu.Unlock()
	if cancelled != 0 {
		t.Fatalf("cancelled handler must not see created events, got %d", cancelled)
	}
}

func TestMemoryBusPublishAfterCloseIsDropped(t *testing.T) {
	bus := NewMemoryBus()
	bus.Subscribe(TypeBookingCreated, func(_ context.Context, _ Event) error { return nil })
	bus.Close()

	if bus.Publish(context.Background(), TypeBookingCreated, struct{}{}) {
		t.Fatal("publish on a closed bus must report a drop")
	}
}
