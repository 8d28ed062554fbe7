package redis

import (
	"context"
	"testing"
	"time"
)

type payload struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestMemoryStore_RoundTripWithoutExpiry(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if err := store.SetJSON(ctx, "k", payload{Name: "a", Count: 3}, 0); err != nil {
		t.Fatalf("set: %v", err)
	}

	var got payload
	ok, err := store.GetJSON(ctx, "k", &got)
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if got.Name != "a" || got.Count != 3 {
		t.Fatalf("unexpected payload %+v", got)
	}

	// ttl <= 0 means no expiry.
	ttl, present, err := store.TTL(ctx, "k")
	if err != nil || !present {
		t.Fatalf("ttl: present=%v err=%v", present, err)
	}
	if ttl != 0 {
		t.Fatalf("expected zero ttl for non-expiring key, got %v", ttl)
	}
}

func TestMemoryStore_EntriesExpire(t *testing.T) {
	now := time.Now()
	store := NewMemoryStoreAt(func() time.Time { return now })
	ctx := context.Background()

	if err := store.SetJSON(ctx, "k", payload{Name: "a"}, time.Hour); err != nil {
		t.Fatalf("set: %v", err)
	}

	ttl, present, _ := store.TTL(ctx, "k")
	if !present || ttl != time.Hour {
		t.Fatalf("expected 1h ttl, got present=%v ttl=%v", present, ttl)
	}

	now = now.Add(2 * time.Hour)

	var got payload
	ok, err := store.GetJSON(ctx, "k", &got)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if ok {
		t.Fatalf("expired entry must be a miss")
	}
	if _, present, _ := store.TTL(ctx, "k"); present {
		t.Fatalf("expired entry must not report present")
	}
}

func TestMemoryStore_MissingKeyIsMissNotError(t *testing.T) {
	store := NewMemoryStore()

	var got payload
	ok, err := store.GetJSON(context.Background(), "nope", &got)
	if err != nil || ok {
		t.Fatalf("expected miss, ok=%v err=%v", ok, err)
	}
}

func TestMemoryStore_IncrByAccumulates(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if v, err := store.IncrBy(ctx, "counter", 3); err != nil || v != 3 {
		t.Fatalf("incr: v=%d err=%v", v, err)
	}
	if v, err := store.IncrBy(ctx, "counter", 7); err != nil || v != 10 {
		t.Fatalf("incr: v=%d err=%v", v, err)
	}

	v, ok, err := store.GetInt(ctx, "counter")
	if err != nil || !ok || v != 10 {
		t.Fatalf("get int: v=%d ok=%v err=%v", v, ok, err)
	}
}

func TestMemoryStore_CorruptEntryIsTreatedAsMiss(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if err := store.SetJSON(ctx, "k", "just a string", 0); err != nil {
		t.Fatalf("set: %v", err)
	}

	var got payload
	ok, err := store.GetJSON(ctx, "k", &got)
	if err != nil || ok {
		t.Fatalf("type-mismatched entry must read as a miss, ok=%v err=%v", ok, err)
	}
}
