// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package resilience

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	now time.Time
}

func (f *fakeClock) Now() time.Time { return f.now }

func (f *fakeClock) Advance(d time.Duration) { f.now = f.now.Add(d) }

func TestCircuitBreakerTripsAfterThreshold(t *testing.T) {
	clk := &fakeClock{now: time.Now()}
	cb := NewCircuitBreaker("judge", 2, 2, time.Minute, 100*time.Millisecond, WithClock(clk))

	require.Equal(t, StateClosed, cb.GetState())

	cb.RecordAttempt()
	cb.RecordTechnicalFailure()
	require.Equal(t, StateClosed, cb.GetState(), "single failure under minAttempts should not trip")

	cb.RecordAttempt()
	cb.RecordTechnicalFailure()
	assert.Equal(t, StateOpen, cb.GetState())
	assert.ErrorIs(t, cb.Execute(func() error { return nil }), ErrCircuitOpen)
}

func TestCircuitBreakerHalfOpenRecovery(t *testing.T) {
	clk := &fakeClock{now: time.Now()}
	cb := NewCircuitBreaker("device", 1, 1, time.Minute, 50*time.Millisecond, WithClock(clk), WithHalfOpenSuccessThreshold(2))

	cb.RecordAttempt()
	cb.RecordTechnicalFailure()
	require.Equal(t, StateOpen, cb.GetState())

	clk.Advance(60 * time.Millisecond)
	require.True(t, cb.AllowRequest())
	require.Equal(t, StateHalfOpen, cb.GetState())

	cb.RecordSuccess()
	require.Equal(t, StateHalfOpen, cb.GetState(), "needs two successes to close")
	cb.RecordSuccess()
	assert.Equal(t, StateClosed, cb.GetState())
}

func TestCircuitBreakerHalfOpenFailureReopens(t *testing.T) {
	clk := &fakeClock{now: time.Now()}
	cb := NewCircuitBreaker("mqtt", 1, 1, time.Minute, 10*time.Millisecond, WithClock(clk))

	cb.RecordAttempt()
	cb.RecordTechnicalFailure()
	clk.Advance(20 * time.Millisecond)
	require.True(t, cb.AllowRequest())
	require.Equal(t, StateHalfOpen, cb.GetState())

	cb.RecordTechnicalFailure()
	assert.Equal(t, StateOpen, cb.GetState())
}

func TestCircuitBreakerExecuteReturnsError(t *testing.T) {
	cb := NewCircuitBreaker("sponsorblock", 5, 5, time.Minute, time.Minute)
	boom := errors.New("boom")
	err := cb.Execute(func() error { return boom })
	assert.ErrorIs(t, err, boom)
}
