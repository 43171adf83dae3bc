// File: internal/hostlock/lock.go

// Package hostlock serializes automation sessions on one host. Concurrent
// sessions sharing a browser profile corrupt session state or trip the
// engine's "profile already in use" detection, so every session takes a
// single host-wide mutex for its whole lifetime. Fail-fast on timeout is
// deliberate: lock stealing or forced takeover would reintroduce exactly the
// corruption the lock exists to prevent.
package hostlock

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"go.uber.org/zap"

	"github.com/xkilldash9x/nlm-cli/api/schemas"
)

// Manager acquires and releases the host-wide session lock.
type Manager struct {
	path         string
	pollInterval time.Duration
	logger       *zap.Logger
}

// Handle represents exclusive ownership of the host-wide lock. Release is
// idempotent and must run on every exit path.
type Handle struct {
	fl         *flock.Flock
	AcquiredAt time.Time
	Budget     time.Duration

	releaseOnce sync.Once
	releaseErr  error
	logger      *zap.Logger
}

// NewManager creates a lock manager for the given lock file path.
func NewManager(path string, pollInterval time.Duration, logger *zap.Logger) *Manager {
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	return &Manager{
		path:         path,
		pollInterval: pollInterval,
		logger:       logger.Named("hostlock"),
	}
}

// Acquire blocks, polling at the configured interval, until it owns the lock
// or the timeout budget elapses. On timeout it returns schemas.ErrLockTimeout;
// the caller must terminate rather than proceed unsynchronized. Acquire is not
// reentrant: a process already holding the lock must not call it again.
func (m *Manager) Acquire(ctx context.Context, timeout time.Duration) (*Handle, error) {
	if err := os.MkdirAll(filepath.Dir(m.path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create lock directory: %w", err)
	}

	fl := flock.New(m.path)
	deadline := time.Now().Add(timeout)
	start := time.Now()

	for {
		locked, err := fl.TryLock()
		if err != nil {
			return nil, fmt.Errorf("failed to probe lock %s: %w", m.path, err)
		}
		if locked {
			m.logger.Debug("Acquired global session lock",
				zap.String("path", m.path),
				zap.Duration("waited", time.Since(start)))
			return &Handle{
				fl:         fl,
				AcquiredAt: time.Now(),
				Budget:     timeout,
				logger:     m.logger,
			}, nil
		}

		if time.Now().After(deadline) {
			return nil, fmt.Errorf("%w (waited %s for %s)",
				schemas.ErrLockTimeout, timeout, m.path)
		}

		m.logger.Info("Another session is running, waiting for lock",
			zap.Duration("elapsed", time.Since(start).Round(time.Second)))

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(m.pollInterval):
		}
	}
}

// Release gives up ownership of the lock. Safe to call more than once.
func (h *Handle) Release() error {
	h.releaseOnce.Do(func() {
		h.releaseErr = h.fl.Unlock()
		if h.releaseErr != nil {
			h.logger.Warn("Failed to release global session lock", zap.Error(h.releaseErr))
			return
		}
		h.logger.Debug("Released global session lock",
			zap.Duration("held", time.Since(h.AcquiredAt)))
	})
	return h.releaseErr
}
