package cache

import (
	"context"
	"testing"
	"time"

	"github.com/tablewise/backend/internal/models"
)

func TestMemoryExpiresAfterTTL(t *testing.T) {
	clock := time.Date(2025, 2, 10, 12, 0, 0, 0, time.UTC)
	c := NewMemory(5 * time.Minute)
	c.now = func() time.Time { return clock }

	ctx := context.Background()
	c.Set(ctx, "k", models.AggregatedMetrics{TotalReservations: 7})

	got, ok := c.Get(ctx, "k")
	if !ok || got.TotalReservations != 7 {
		t.Fatalf("expected fresh hit, got ok=%v %+v", ok, got)
	}

	clock = clock.Add(4 * time.Minute)
	if _, ok := c.Get(ctx, "k"); !ok {
		t.Fatalf("entry expired before its TTL")
	}

	clock = clock.Add(1 * time.Minute)
	if _, ok := c.Get(ctx, "k"); ok {
		t.Fatalf("entry survived past its TTL")
	}
}

func TestMemoryInvalidateDropsEverything(t *testing.T) {
	c := NewMemory(time.Hour)
	ctx := context.Background()
	c.Set(ctx, "a", models.AggregatedMetrics{TotalReservations: 1})
	c.Set(ctx, "b", models.AggregatedMetrics{TotalReservations: 2})

	c.Invalidate(ctx)

	if _, ok := c.Get(ctx, "a"); ok {
		t.Fatalf("expected a to be gone")
	}
	if _, ok := c.Get(ctx, "b"); ok {
		t.Fatalf("expected b to be gone")
	}
}

func TestMemoryMissOnUnknownKey(t *testing.T) {
	c := NewMemory(time.Hour)
	if _, ok := c.Get(context.Background(), "nope"); ok {
		t.Fatalf("expected miss")
	}
}

func TestKeyIgnoresLocationOrder(t *testing.T) {
	start := time.Date(2025, 2, 10, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 2, 12, 0, 0, 0, 0, time.UTC)

	a := Key([]string{"loc-1", "loc-2", "loc-3"}, start, end)
	b := Key([]string{"loc-3", "loc-1", "loc-2"}, start, end)
	if a != b {
		t.Fatalf("same set must share a key: %s vs %s", a, b)
	}

	c := Key([]string{"loc-1", "loc-2"}, start, end)
	if a == c {
		t.Fatalf("different sets must not collide on %s", a)
	}

	d := Key([]string{"loc-1", "loc-2", "loc-3"}, start, end.Add(time.Hour))
	if a == d {
		t.Fatalf("different windows must not collide on %s", a)
	}
}

func TestKeyDoesNotMutateInput(t *testing.T) {
	ids := []string{"z", "a", "m"}
	Key(ids, time.Now(), time.Now())
	if ids[0] != "z" || ids[1] != "a" || ids[2] != "m" {
		t.Fatalf("caller slice reordered: %v", ids)
	}
}
