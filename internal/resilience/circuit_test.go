package resilience

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	clock := NewManualClock(time.Unix(0, 0))
	cb := NewCircuitBreaker("nominatim", CircuitBreakerConfig{
		FailureThreshold: 3,
		ResetTimeout:     time.Minute,
		Clock:            clock,
	})

	for i := 0; i < 3; i++ {
		assert.NoError(t, cb.Allow())
		cb.Record(errors.New("fail"))
	}
	assert.Equal(t, CircuitOpen, cb.State())
	assert.ErrorIs(t, cb.Allow(), ErrCircuitOpen)
}

func TestCircuitBreaker_SuccessResetsCount(t *testing.T) {
	cb := NewCircuitBreaker("x", CircuitBreakerConfig{FailureThreshold: 2})

	cb.Record(errors.New("fail"))
	cb.Record(nil)
	cb.Record(errors.New("fail"))
	assert.Equal(t, CircuitClosed, cb.State())
}

func TestCircuitBreaker_HalfOpenProbe(t *testing.T) {
	clock := NewManualClock(time.Unix(0, 0))
	cb := NewCircuitBreaker("x", CircuitBreakerConfig{
		FailureThreshold: 1,
		ResetTimeout:     10 * time.Second,
		Clock:            clock,
	})

	cb.Record(errors.New("fail"))
	assert.ErrorIs(t, cb.Allow(), ErrCircuitOpen)

	clock.Advance(10 * time.Second)
	assert.NoError(t, cb.Allow())
	assert.Equal(t, CircuitHalfOpen, cb.State())

	// Failed probe reopens.
	cb.Record(errors.New("still failing"))
	assert.Equal(t, CircuitOpen, cb.State())

	clock.Advance(10 * time.Second)
	assert.NoError(t, cb.Allow())
	cb.Record(nil)
	assert.Equal(t, CircuitClosed, cb.State())
}

func TestCircuitBreaker_QuotaDoesNotTrip(t *testing.T) {
	cb := NewCircuitBreaker("x", CircuitBreakerConfig{FailureThreshold: 1})
	cb.Record(NewQuotaError("x", 429, ""))
	assert.Equal(t, CircuitClosed, cb.State())
}

func TestCircuitBreaker_NilAlwaysAllows(t *testing.T) {
	var cb *CircuitBreaker
	assert.NoError(t, cb.Allow())
	cb.Record(errors.New("ignored"))

	var sb *ServiceBreakers
	assert.Nil(t, sb.Get("x"))
}

func TestServiceBreakers(t *testing.T) {
	sb := NewServiceBreakers(FromCircuitConfig(2, 5))

	a := sb.Get("nominatim")
	assert.Same(t, a, sb.Get("nominatim"))
	assert.NotSame(t, a, sb.Get("google_geocode"))

	a.Record(errors.New("1"))
	a.Record(errors.New("2"))

	states := sb.States()
	assert.Equal(t, CircuitOpen, states["nominatim"])
	assert.Equal(t, CircuitClosed, states["google_geocode"])
}
