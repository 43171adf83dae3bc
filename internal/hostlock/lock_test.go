// File: internal/hostlock/lock_test.go
package hostlock

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/xkilldash9x/nlm-cli/api/schemas"
)

func newTestManager(t *testing.T, path string) *Manager {
	t.Helper()
	return NewManager(path, 10*time.Millisecond, zap.NewNop())
}

func TestAcquireRelease(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.lock")
	m := newTestManager(t, path)

	handle, err := m.Acquire(context.Background(), time.Second)
	require.NoError(t, err)
	require.NotNil(t, handle)
	assert.False(t, handle.AcquiredAt.IsZero())

	require.NoError(t, handle.Release())
}

func TestAcquire_ContendedTimesOut(t *testing.T) {
	defer goleak.VerifyNone(t)
	path := filepath.Join(t.TempDir(), "test.lock")

	first := newTestManager(t, path)
	handle, err := first.Acquire(context.Background(), time.Second)
	require.NoError(t, err)
	defer handle.Release()

	second := newTestManager(t, path)
	start := time.Now()
	_, err = second.Acquire(context.Background(), 100*time.Millisecond)
	require.Error(t, err)
	assert.True(t, errors.Is(err, schemas.ErrLockTimeout), "expected ErrLockTimeout, got %v", err)
	assert.GreaterOrEqual(t, time.Since(start), 100*time.Millisecond)
}

func TestAcquire_AfterRelease(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.lock")

	first := newTestManager(t, path)
	handle, err := first.Acquire(context.Background(), time.Second)
	require.NoError(t, err)
	require.NoError(t, handle.Release())

	second := newTestManager(t, path)
	handle2, err := second.Acquire(context.Background(), time.Second)
	require.NoError(t, err)
	require.NoError(t, handle2.Release())
}

func TestAcquire_ContextCanceled(t *testing.T) {
	defer goleak.VerifyNone(t)
	path := filepath.Join(t.TempDir(), "test.lock")

	first := newTestManager(t, path)
	handle, err := first.Acquire(context.Background(), time.Second)
	require.NoError(t, err)
	defer handle.Release()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(30 * time.Millisecond)
		cancel()
	}()

	second := newTestManager(t, path)
	_, err = second.Acquire(ctx, 10*time.Second)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRelease_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.lock")
	m := newTestManager(t, path)

	handle, err := m.Acquire(context.Background(), time.Second)
	require.NoError(t, err)

	require.NoError(t, handle.Release())
	require.NoError(t, handle.Release())
}
