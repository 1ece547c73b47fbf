package google_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/destination-cli/internal/resilience"
	"github.com/sells-group/destination-cli/pkg/google"
	"github.com/sells-group/destination-cli/pkg/google/mocks"
)

func retryCfg(clock resilience.Clock) resilience.RetryConfig {
	return resilience.RetryConfig{MaxAttempts: 3, InitialBackoff: time.Second, Clock: clock}
}

func TestWithRetry_RetriesTransient(t *testing.T) {
	inner := mocks.NewMockClient(t)
	transient := resilience.NewTransientError(errors.New("503"), 503)
	inner.On("PlaceDetails", mock.Anything, "p1").Return(nil, transient).Once()
	inner.On("PlaceDetails", mock.Anything, "p1").Return(&google.Place{ID: "p1"}, nil).Once()

	clock := resilience.NewManualClock(time.Unix(0, 0))
	c := google.WithRetry(inner, retryCfg(clock))

	p, err := c.PlaceDetails(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, "p1", p.ID)
	assert.Len(t, clock.Sleeps(), 1)
}

func TestWithRetry_QuotaNotRetried(t *testing.T) {
	inner := mocks.NewMockClient(t)
	inner.On("TextSearch", mock.Anything, "q").
		Return(nil, resilience.NewQuotaError("google_places", 429, "")).Once()

	clock := resilience.NewManualClock(time.Unix(0, 0))
	c := google.WithRetry(inner, retryCfg(clock))

	_, err := c.TextSearch(context.Background(), "q")
	require.Error(t, err)
	assert.True(t, resilience.IsQuota(err))
	assert.Empty(t, clock.Sleeps())
}
