package votestore

import (
	"context"
	"testing"
	"time"
)

func newClockedStore() (*Memory, *time.Time) {
	now := time.Unix(1_700_000_000, 0)
	store := NewMemoryWithClock(func() time.Time { return now })
	return store, &now
}

func TestMemory_SetNXOnlyWritesOnce(t *testing.T) {
	store, _ := newClockedStore()
	ctx := context.Background()

	ok, err := store.SetNX(ctx, "k", "first", 0)
	if err != nil || !ok {
		t.Fatalf("first SetNX: ok=%v err=%v", ok, err)
	}

	ok, err = store.SetNX(ctx, "k", "second", 0)
	if err != nil {
		t.Fatalf("second SetNX: %v", err)
	}
	if ok {
		t.Fatalf("second SetNX should not write")
	}

	val, _, _ := store.Get(ctx, "k")
	if val != "first" {
		t.Fatalf("value overwritten: %q", val)
	}
}

func TestMemory_IncrCreatesAndCounts(t *testing.T) {
	store, _ := newClockedStore()
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		got, err := store.Incr(ctx, "counter")
		if err != nil {
			t.Fatalf("Incr: %v", err)
		}
		if got != want {
			t.Fatalf("Incr = %d, want %d", got, want)
		}
	}
}

func TestMemory_ExpiryHidesKeys(t *testing.T) {
	store, now := newClockedStore()
	ctx := context.Background()

	if err := store.Set(ctx, "k", "v", time.Hour); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := store.SAdd(ctx, "s", []string{"a", "b"}, time.Hour); err != nil {
		t.Fatalf("SAdd: %v", err)
	}

	*now = now.Add(2 * time.Hour)

	if _, ok, _ := store.Get(ctx, "k"); ok {
		t.Fatalf("expected k to expire")
	}
	members, _ := store.SMembers(ctx, "s")
	if len(members) != 0 {
		t.Fatalf("expected set to expire, got %v", members)
	}

	// Expired key is free for SetNX again.
	ok, _ := store.SetNX(ctx, "k", "v2", 0)
	if !ok {
		t.Fatalf("SetNX after expiry should write")
	}
}

func TestMemory_SetsAccumulateMembers(t *testing.T) {
	store, _ := newClockedStore()
	ctx := context.Background()

	_ = store.SAdd(ctx, "s", []string{"a"}, 0)
	_ = store.SAdd(ctx, "s", []string{"b", "a"}, 0)

	members, err := store.SMembers(ctx, "s")
	if err != nil {
		t.Fatalf("SMembers: %v", err)
	}
	if len(members) != 2 {
		t.Fatalf("expected 2 members, got %v", members)
	}
}

func TestMemory_DelRemovesValuesAndSets(t *testing.T) {
	store, _ := newClockedStore()
	ctx := context.Background()

	_ = store.Set(ctx, "k", "v", 0)
	_ = store.SAdd(ctx, "s", []string{"a"}, 0)

	if err := store.Del(ctx, "k", "s", "missing"); err != nil {
		t.Fatalf("Del: %v", err)
	}

	if _, ok, _ := store.Get(ctx, "k"); ok {
		t.Fatalf("k should be gone")
	}
	if members, _ := store.SMembers(ctx, "s"); len(members) != 0 {
		t.Fatalf("s should be gone")
	}
}
