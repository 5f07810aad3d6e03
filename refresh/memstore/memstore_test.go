package memstore

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/larslab/authcore/refresh"
)

func testRecord(id, hash string) refresh.Record {
	now := time.Now()
	return refresh.Record{
		ID:        id,
		UserID:    "user-1",
		TokenHash: hash,
		ExpiresAt: now.Add(time.Hour),
		CreatedAt: now,
	}
}

func TestInsertFindMarkRevoked(t *testing.T) {
	s := New()
	ctx := context.Background()

	if err := s.Insert(ctx, testRecord("id-1", "hash-1")); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	rec, err := s.FindByHash(ctx, "hash-1")
	if err != nil {
		t.Fatalf("FindByHash: %v", err)
	}
	if rec.ID != "id-1" || rec.Revoked {
		t.Fatalf("unexpected record %+v", rec)
	}

	if err := s.MarkRevoked(ctx, "id-1"); err != nil {
		t.Fatalf("MarkRevoked: %v", err)
	}
	rec, err = s.FindByHash(ctx, "hash-1")
	if err != nil {
		t.Fatalf("FindByHash after revoke: %v", err)
	}
	if !rec.Revoked {
		t.Fatal("revocation not visible through hash lookup")
	}

	if err := s.MarkRevoked(ctx, "missing"); !errors.Is(err, refresh.ErrNotFound) {
		t.Fatalf("MarkRevoked(missing) = %v, want ErrNotFound", err)
	}
}

func TestRotate(t *testing.T) {
	s := New()
	ctx := context.Background()

	if err := s.Insert(ctx, testRecord("id-1", "hash-1")); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	if err := s.Rotate(ctx, "hash-1", testRecord("id-2", "hash-2")); err != nil {
		t.Fatalf("Rotate: %v", err)
	}

	old, err := s.FindByHash(ctx, "hash-1")
	if err != nil {
		t.Fatalf("FindByHash old: %v", err)
	}
	if !old.Revoked {
		t.Fatal("old record not revoked")
	}
	if _, err := s.FindByHash(ctx, "hash-2"); err != nil {
		t.Fatalf("replacement missing: %v", err)
	}

	if err := s.Rotate(ctx, "hash-1", testRecord("id-3", "hash-3")); !errors.Is(err, refresh.ErrRevoked) {
		t.Fatalf("second rotate = %v, want ErrRevoked", err)
	}
	if err := s.Rotate(ctx, "missing", testRecord("id-4", "hash-4")); !errors.Is(err, refresh.ErrNotFound) {
		t.Fatalf("rotate missing = %v, want ErrNotFound", err)
	}
}

func TestRotateConcurrentSingleWinner(t *testing.T) {
	s := New()
	ctx := context.Background()

	if err := s.Insert(ctx, testRecord("id-0", "hash-0")); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	const goroutines = 16
	var wg sync.WaitGroup
	errs := make([]error, goroutines)

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			errs[n] = s.Rotate(ctx, "hash-0", testRecord("id-w", "hash-w"))
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, err := range errs {
		switch {
		case err == nil:
			winners++
		case errors.Is(err, refresh.ErrRevoked):
		default:
			t.Fatalf("unexpected rotate error: %v", err)
		}
	}
	if winners != 1 {
		t.Fatalf("winners = %d, want exactly 1", winners)
	}
}

func TestSweep(t *testing.T) {
	s := New()
	ctx := context.Background()

	live := testRecord("id-live", "hash-live")
	dead := testRecord("id-dead", "hash-dead")
	dead.ExpiresAt = time.Now().Add(-time.Minute)

	if err := s.Insert(ctx, live); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := s.Insert(ctx, dead); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	if removed := s.Sweep(time.Now()); removed != 1 {
		t.Fatalf("Sweep removed %d, want 1", removed)
	}
	if _, err := s.FindByHash(ctx, "hash-dead"); !errors.Is(err, refresh.ErrNotFound) {
		t.Fatalf("dead record still present: %v", err)
	}
	if _, err := s.FindByHash(ctx, "hash-live"); err != nil {
		t.Fatalf("live record swept: %v", err)
	}
}
