package retry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDoSucceedsFirstAttempt(t *testing.T) {
	calls := 0
	err := Do(context.Background(), 3, IsTransientPG, func(ctx context.Context) error {
		calls++
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoRetriesTransientErrors(t *testing.T) {
	calls := 0
	err := Do(context.Background(), 3, IsTransientPG, func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("pq: deadlock detected")
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoStopsOnFatalError(t *testing.T) {
	fatal := errors.New("pq: duplicate key value violates unique constraint")
	calls := 0
	err := Do(context.Background(), 3, IsTransientPG, func(ctx context.Context) error {
		calls++
		return fatal
	})
	assert.ErrorIs(t, err, fatal)
	assert.NotErrorIs(t, err, ErrAttemptsExhausted)
	assert.Equal(t, 1, calls)
}

func TestDoExhaustsAttempts(t *testing.T) {
	transient := errors.New("read tcp: connection reset by peer")
	calls := 0
	err := Do(context.Background(), 3, IsTransientPG, func(ctx context.Context) error {
		calls++
		return transient
	})
	assert.ErrorIs(t, err, ErrAttemptsExhausted)
	assert.ErrorIs(t, err, transient)
	assert.Equal(t, 3, calls)
}

func TestDoRespectsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := Do(ctx, 3, IsTransientPG, func(ctx context.Context) error {
		calls++
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, calls)
}

func TestDoAtLeastOneAttempt(t *testing.T) {
	calls := 0
	err := Do(context.Background(), 0, nil, func(ctx context.Context) error {
		calls++
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestIsTransientPG(t *testing.T) {
	assert.True(t, IsTransientPG(errors.New("pq: deadlock detected")))
	assert.True(t, IsTransientPG(errors.New("pq: could not serialize access due to concurrent update")))
	assert.True(t, IsTransientPG(errors.New("read tcp: connection reset by peer")))
	assert.True(t, IsTransientPG(errors.New("dial tcp: connection refused")))
	assert.True(t, IsTransientPG(errors.New("write: broken pipe")))

	assert.False(t, IsTransientPG(nil))
	assert.False(t, IsTransientPG(errors.New("pq: duplicate key value violates unique constraint")))
	assert.False(t, IsTransientPG(errors.New("pq: null value in column")))
}
