// Package safeguards provides logical-reentrancy guards for catalog
// operations.
//
// The application has no parallel workers, but user gestures can still
// overlap in time: a second download tap for a game whose fetch is already
// in flight must be rejected rather than started twice. The guard makes
// at-most-one-in-flight per key an explicit, testable rule instead of an
// implicit property of the UI.
package safeguards

import (
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/sirupsen/logrus"
)

// ErrInFlight is returned when an operation is already running for a key.
var ErrInFlight = fmt.Errorf("operation already in flight")

// KeyGuard serializes operations per key: at most one operation may hold a
// given key at a time. Different keys do not block each other.
type KeyGuard struct {
	mu       sync.Mutex
	inflight map[string]struct{}
	logger   logrus.FieldLogger
}

// GuardConfig configures the key guard.
type GuardConfig struct {
	// Logger for logging acquisitions and rejections
	Logger logrus.FieldLogger
}

// NewKeyGuard creates a new key guard.
func NewKeyGuard(cfg GuardConfig) *KeyGuard {
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}
	return &KeyGuard{
		inflight: make(map[string]struct{}),
		logger:   cfg.Logger.WithField("component", "key-guard"),
	}
}

// Acquire claims key for an operation. It returns ErrInFlight if another
// operation already holds it.
func (g *KeyGuard) Acquire(key, opName string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, held := g.inflight[key]; held {
		g.logger.WithFields(logrus.Fields{
			"key":       key,
			"operation": opName,
		}).Warn("rejected operation: key already in flight")
		return fmt.Errorf("%w for %s", ErrInFlight, key)
	}

	g.inflight[key] = struct{}{}
	g.logger.WithFields(logrus.Fields{
		"key":       key,
		"operation": opName,
	}).Debug("acquired key")
	return nil
}

// Release frees key. Releasing an unheld key is a no-op.
func (g *KeyGuard) Release(key string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.inflight, key)
	g.logger.WithField("key", key).Debug("released key")
}

// Held reports whether an operation currently holds key.
func (g *KeyGuard) Held(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, held := g.inflight[key]
	return held
}

// WithKey runs fn while holding key, releasing it afterwards.
func (g *KeyGuard) WithKey(key, opName string, fn func() error) error {
	if err := g.Acquire(key, opName); err != nil {
		return err
	}
	defer g.Release(key)
	return fn()
}

// RecoverableOperation wraps a function with panic recovery.
func RecoverableOperation(logger logrus.FieldLogger, opName string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			stack := debug.Stack()
			logger.WithFields(logrus.Fields{
				"operation": opName,
				"panic":     r,
				"stack":     string(stack),
			}).Error("recovered from panic in operation")
			err = fmt.Errorf("panic in operation %s: %v", opName, r)
		}
	}()
	return fn()
}
