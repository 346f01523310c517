package database

import (
	"context"
	"path/filepath"
	"testing"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(Config{Path: filepath.Join(t.TempDir(), "test.db")})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestGetMissingKey(t *testing.T) {
	db := newTestDB(t)

	_, ok, err := db.Get(context.Background(), "nope")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if ok {
		t.Fatal("missing key reported as present")
	}
}

func TestSetGetRoundTrip(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	if err := db.Set(ctx, "k", `{"hello":"world"}`); err != nil {
		t.Fatalf("Set: %v", err)
	}

	v, ok, err := db.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok {
		t.Fatal("key not found after Set")
	}
	if v != `{"hello":"world"}` {
		t.Fatalf("value = %q", v)
	}
}

func TestSetOverwritesWholesale(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	if err := db.Set(ctx, "k", "first"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := db.Set(ctx, "k", "second"); err != nil {
		t.Fatalf("Set: %v", err)
	}

	v, _, err := db.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if v != "second" {
		t.Fatalf("value = %q, want %q", v, "second")
	}
}

func TestDeleteIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	if err := db.Set(ctx, "k", "v"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := db.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok, _ := db.Get(ctx, "k"); ok {
		t.Fatal("key still present after delete")
	}
	// Deleting a missing key is not an error.
	if err := db.Delete(ctx, "k"); err != nil {
		t.Fatalf("second Delete: %v", err)
	}
}

func TestMigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	db, err := New(Config{Path: path})
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	if err := db.Set(context.Background(), "k", "v"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	db.Close()

	// Reopening runs migrations again; existing data must survive.
	db2, err := New(Config{Path: path})
	if err != nil {
		t.Fatalf("second open: %v", err)
	}
	defer db2.Close()

	v, ok, err := db2.Get(context.Background(), "k")
	if err != nil || !ok || v != "v" {
		t.Fatalf("Get after reopen = %q, %v, %v", v, ok, err)
	}
}
