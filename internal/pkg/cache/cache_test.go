package cache

import (
	"context"
	"testing"
	"time"
)

func TestMemoryCacheSetGetDelete(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()

	if _, ok := c.Get(ctx, "booking:b1"); ok {
		t.Fatal("empty cache must miss")
	}

	c.Set(ctx, "booking:b1", []byte(`{"id":"b1"}`), time.Minute)
	raw, ok := c.Get(ctx, "booking:b1")
	if !ok || string(raw) != `{"id":"b1"}` {
		t.Fatalf("expected hit with stored value, got ok=%v raw=%s", ok, raw)
	}

	c.Delete(ctx, "booking:b1")
	if _, ok := c.Get(ctx, "booking:b1"); ok {
		t.Fatal("deleted key must miss")
	}
}

func TestMemoryCacheExpiry(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()
	current := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return current }

	c.Set(ctx, "availability:r1:2025-06-01", []byte("x"), 2*time.Minute)

	if _, ok := c.Get(ctx, "availability:r1:2025-06-01"); !ok {
		t.Fatal("entry must live before the TTL")
	}

	current = current.Add(3 * time.Minute)
	if _, ok := c.Get(ctx, "availability:r1:2025-06-01"); ok {
		t.Fatal("entry must expire after the TTL")
	}
}

func TestMemoryCacheDeleteByPrefix(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()

	c.Set(ctx, "availability:r1:2025-06-01", []byte("a"), 0)
	c.Set(ctx, "availability:r1:2025-06-02", []byte("b"), 0)
	c.Set(ctx, "availability:r2:2025-06-01", []byte("c"), 0)
	c.Set(ctx, "booking:b1", []byte("d"), 0)

	if n := c.DeleteByPrefix(ctx, "availability:r1:"); n != 2 {
		t.Fatalf("expected 2 removed, got %d", n)
	}
	if _, ok := c.Get(ctx, "availability:r2:2025-06-01"); !ok {
		t.Fatal("other room's entries must survive")
	}
	if _, ok := c.Get(ctx, "booking:b1"); !ok {
		t.Fatal("booking entry must survive")
	}
}

func TestGetJSONCorruptEntryIsMiss(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()
	c.Set(ctx, "booking:b1", []byte("{not json"), 0)

	var out map[string]string
	if GetJSON(ctx, c, "booking:b1", &out) {
		t.Fatal("corrupt entry must read as a miss")
	}
	if _, ok := c.Get(ctx, "booking:b1"); ok {
		t.Fatal("corrupt entry must be evicted")
	}
}

func TestSetJSONRoundTrip(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()

	type view struct {
		ID    string `json:"id"`
		Title string `json:"title"`
	}
	SetJSON(ctx, c, "booking:b2", view{ID: "b2", Title: "standup"}, time.Minute)

	var out view
	if !GetJSON(ctx, c, "booking:b2", &out) {
		t.Fatal("expected hit")
	}
	if out.ID != "b2" || out.Title != "standup" {
		t.Fatalf("unexpected value: %+v", out)
	}
}
