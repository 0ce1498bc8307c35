package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBreakerOpensAfterThreshold(t *testing.T) {
	cb := NewCircuitBreaker("test", Config{
		FailureThreshold: 3,
		Timeout:          time.Minute,
	})

	boom := errors.New("boom")
	for i := 0; i < 3; i++ {
		err := cb.Execute(context.Background(), func() error { return boom })
		assert.ErrorIs(t, err, boom)
	}

	assert.Equal(t, StateOpen, cb.State())

	err := cb.Execute(context.Background(), func() error { return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
}

func TestBreakerRecoversViaHalfOpen(t *testing.T) {
	cb := NewCircuitBreaker("test", Config{
		FailureThreshold: 1,
		SuccessThreshold: 1,
		MaxRequests:      1,
		Timeout:          10 * time.Millisecond,
	})

	_ = cb.Execute(context.Background(), func() error { return errors.New("boom") })
	require.Equal(t, StateOpen, cb.State())

	time.Sleep(20 * time.Millisecond)
	require.Equal(t, StateHalfOpen, cb.State())

	err := cb.Execute(context.Background(), func() error { return nil })
	require.NoError(t, err)
	assert.Equal(t, StateClosed, cb.State())
}

func TestBreakerStaysClosedOnSuccess(t *testing.T) {
	cb := NewCircuitBreaker("test", Config{FailureThreshold: 2})

	for i := 0; i < 10; i++ {
		err := cb.Execute(context.Background(), func() error { return nil })
		require.NoError(t, err)
	}
	assert.Equal(t, StateClosed, cb.State())
}
