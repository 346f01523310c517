package safeguards

import (
	"errors"
	"fmt"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestAcquireRelease(t *testing.T) {
	g := NewKeyGuard(GuardConfig{})

	if err := g.Acquire("game-1", "download"); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if !g.Held("game-1") {
		t.Fatal("key not held after acquire")
	}

	g.Release("game-1")
	if g.Held("game-1") {
		t.Fatal("key still held after release")
	}
}

func TestDoubleAcquireRejected(t *testing.T) {
	g := NewKeyGuard(GuardConfig{})

	if err := g.Acquire("game-1", "download"); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	err := g.Acquire("game-1", "download")
	if !errors.Is(err, ErrInFlight) {
		t.Fatalf("err = %v, want ErrInFlight", err)
	}
}

func TestDifferentKeysDoNotBlock(t *testing.T) {
	g := NewKeyGuard(GuardConfig{})

	if err := g.Acquire("game-1", "download"); err != nil {
		t.Fatalf("Acquire game-1: %v", err)
	}
	if err := g.Acquire("game-2", "download"); err != nil {
		t.Fatalf("Acquire game-2: %v", err)
	}
}

func TestReleaseUnheldKeyIsNoOp(t *testing.T) {
	g := NewKeyGuard(GuardConfig{})
	g.Release("never-acquired")
}

func TestWithKeyReleasesAfterRun(t *testing.T) {
	g := NewKeyGuard(GuardConfig{})

	ran := false
	err := g.WithKey("game-1", "download", func() error {
		ran = true
		if !g.Held("game-1") {
			t.Error("key not held inside WithKey")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("WithKey: %v", err)
	}
	if !ran {
		t.Fatal("fn never ran")
	}
	if g.Held("game-1") {
		t.Fatal("key still held after WithKey returned")
	}
}

func TestWithKeyReleasesOnError(t *testing.T) {
	g := NewKeyGuard(GuardConfig{})

	wantErr := fmt.Errorf("boom")
	if err := g.WithKey("game-1", "download", func() error { return wantErr }); !errors.Is(err, wantErr) {
		t.Fatalf("err = %v, want %v", err, wantErr)
	}
	if g.Held("game-1") {
		t.Fatal("key still held after failing fn")
	}
}

func TestRecoverableOperationRecoversPanic(t *testing.T) {
	logger := logrus.New()

	err := RecoverableOperation(logger, "test-op", func() error {
		panic("kaboom")
	})
	if err == nil {
		t.Fatal("expected error from recovered panic")
	}
}

func TestRecoverableOperationPassesThrough(t *testing.T) {
	logger := logrus.New()

	if err := RecoverableOperation(logger, "test-op", func() error { return nil }); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
