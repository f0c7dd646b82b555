package storage

import (
	"path/filepath"
	"testing"
	"time"
)

func TestBoltStoreMarksAndExpiresResponses(t *testing.T) {
	opts := Options{
		ResponseTTL:     300 * time.Millisecond,
		CleanupInterval: time.Second,
	}

	storeRaw, err := openBolt(filepath.Join(t.TempDir(), "nested", "responses.db"), opts)
	if err != nil {
		t.Fatalf("openBolt: %v", err)
	}
	store := storeRaw.(*boltStore)
	defer store.Close()

	seen, err := store.SeenResponse("SV_1", "R_1")
	if err != nil || seen {
		t.Fatalf("expected unseen response, seen=%v err=%v", seen, err)
	}

	if err := store.MarkResponse("SV_1", "R_1"); err != nil {
		t.Fatalf("MarkResponse: %v", err)
	}

	// sub-second TTLs must still hold right after marking
	seen, err = store.SeenResponse("SV_1", "R_1")
	if err != nil || !seen {
		t.Fatalf("expected response marked as seen, got seen=%v err=%v", seen, err)
	}
	if seen, _ := store.SeenResponse("SV_2", "R_1"); seen {
		t.Fatalf("response ids must be scoped per survey")
	}

	// Fast-forward cleanup cadence and trigger expiry.
	store.lastCleanup.Store(time.Now().Add(-2 * time.Second).Unix())
	time.Sleep(400 * time.Millisecond)

	seen, err = store.SeenResponse("SV_1", "R_1")
	if err != nil {
		t.Fatalf("SeenResponse after expiry: %v", err)
	}
	if seen {
		t.Fatalf("expected entry to expire and be removed")
	}
}

func TestBoltStoreKeepsMarksWithoutTTL(t *testing.T) {
	store, err := NewStore("bbolt", filepath.Join(t.TempDir(), "responses.db"), Options{CleanupInterval: time.Nanosecond})
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	defer store.Close()

	if err := store.MarkResponse("SV_1", "R_1"); err != nil {
		t.Fatalf("MarkResponse: %v", err)
	}
	bolt := store.(*boltStore)
	bolt.lastCleanup.Store(time.Now().Add(-24 * time.Hour).Unix())
	time.Sleep(10 * time.Millisecond)

	seen, err := store.SeenResponse("SV_1", "R_1")
	if err != nil || !seen {
		t.Fatalf("expected permanent mark, got seen=%v err=%v", seen, err)
	}
}

func TestNewStoreSupportsNoop(t *testing.T) {
	store, err := NewStore("none", "", Options{})
	if err != nil {
		t.Fatalf("NewStore none: %v", err)
	}
	if err := store.MarkResponse("SV_1", "R_1"); err != nil {
		t.Fatalf("noop store MarkResponse: %v", err)
	}
	if seen, _ := store.SeenResponse("SV_1", "R_1"); seen {
		t.Fatalf("noop store never reports seen")
	}
}

func TestNewStoreRejectsUnknownType(t *testing.T) {
	if _, err := NewStore("redis", "x", Options{}); err == nil {
		t.Fatalf("expected unsupported type error")
	}
	if _, err := NewStore("bbolt", " ", Options{}); err == nil {
		t.Fatalf("expected missing path error")
	}
}
