package protocol

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWaitReturnsAssoonAsConditionTrue(t *testing.T) {
	calls := 0
	err := Wait(context.Background(), time.Second, func() bool {
		calls++
		return calls >= 3
	})
	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestWaitTimesOut(t *testing.T) {
	err := Wait(context.Background(), 50*time.Millisecond, func() bool { return false })
	assert.ErrorIs(t, err, ErrDeadlineExceeded)
}

func TestWaitRespectsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Wait(ctx, time.Second, func() bool { return false })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWaitWithZeroTimeoutOnlyEndsOnContextOrCond(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := Wait(ctx, 0, func() bool { return false })
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}
