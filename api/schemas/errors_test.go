package schemas

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSentinelErrorsSurviveWrapping(t *testing.T) {
	sentinels := []error{
		ErrLockTimeout,
		ErrProfileBootstrap,
		ErrProbeNotFound,
		ErrCompletionTimeout,
	}
	for _, sentinel := range sentinels {
		wrapped := fmt.Errorf("session aborted: %w", sentinel)
		assert.ErrorIs(t, wrapped, sentinel)
	}
	assert.NotErrorIs(t, ErrLockTimeout, ErrCompletionTimeout)
}

func TestPreconditionError(t *testing.T) {
	err := NewPreconditionError(SearchReady, SearchPendingResults)
	require.Error(t, err)
	assert.Contains(t, err.Error(), string(SearchReady))
	assert.Contains(t, err.Error(), string(SearchPendingResults))

	wrapped := fmt.Errorf("search aborted: %w", err)
	assert.True(t, IsPrecondition(wrapped))

	var pe *PreconditionError
	require.True(t, errors.As(wrapped, &pe))
	assert.Equal(t, SearchReady, pe.Required)
	assert.Equal(t, SearchPendingResults, pe.Observed)
}

func TestIsPrecondition_RejectsOtherErrors(t *testing.T) {
	assert.False(t, IsPrecondition(nil))
	assert.False(t, IsPrecondition(ErrProbeNotFound))
	assert.False(t, IsPrecondition(errors.New("unrelated")))
}
