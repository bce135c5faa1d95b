package retry

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain error", errors.New("boom"), false},
		{"429", &HTTPError{StatusCode: http.StatusTooManyRequests}, true},
		{"503 wrapped", fmt.Errorf("get: %w", &HTTPError{StatusCode: http.StatusServiceUnavailable}), true},
		{"400", &HTTPError{StatusCode: http.StatusBadRequest}, false},
		{"404", &HTTPError{StatusCode: http.StatusNotFound}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}

func TestParseRetryAfter(t *testing.T) {
	assert.Equal(t, 3*time.Second, ParseRetryAfter("3"))
	assert.Equal(t, time.Duration(0), ParseRetryAfter(""))
	assert.Equal(t, time.Duration(0), ParseRetryAfter("soon"))
	assert.Equal(t, time.Duration(0), ParseRetryAfter(time.Now().Add(-time.Hour).UTC().Format(time.RFC1123)))

	future := ParseRetryAfter(time.Now().Add(time.Hour).UTC().Format(time.RFC1123))
	assert.Greater(t, future, 50*time.Minute)
}

func TestFullJitterSleep(t *testing.T) {
	for attempt := 0; attempt < 10; attempt++ {
		d := FullJitterSleep(attempt, 10*time.Millisecond, 50*time.Millisecond)
		assert.GreaterOrEqual(t, d, time.Duration(0))
		assert.LessOrEqual(t, d, 50*time.Millisecond)
	}
	assert.Equal(t, time.Duration(0), FullJitterSleep(3, 0, time.Second))
}

func TestDo_RetriesRetryableErrors(t *testing.T) {
	calls := 0
	err := Do(context.Background(), Options{MaxRetries: 3, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}, func() error {
		calls++
		if calls < 3 {
			return &HTTPError{StatusCode: http.StatusBadGateway}
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_StopsOnPermanentError(t *testing.T) {
	calls := 0
	permanent := &HTTPError{StatusCode: http.StatusUnauthorized}
	err := Do(context.Background(), Options{MaxRetries: 5, BaseDelay: time.Millisecond}, func() error {
		calls++
		return permanent
	})

	assert.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, calls)
}

func TestDo_GivesUpAfterMaxRetries(t *testing.T) {
	calls := 0
	err := Do(context.Background(), Options{MaxRetries: 2, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}, func() error {
		calls++
		return &HTTPError{StatusCode: http.StatusInternalServerError}
	})

	require.Error(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_HonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := Do(ctx, Options{MaxRetries: 3}, func() error {
		calls++
		return nil
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, calls)
}

func TestDo_WaitsAdvertisedRetryAfter(t *testing.T) {
	var waits []time.Duration
	calls := 0
	opts := Options{
		MaxRetries: 2,
		BaseDelay:  time.Millisecond,
		MaxDelay:   30 * time.Millisecond,
		OnRetry: func(attempt int, err error, wait time.Duration) {
			waits = append(waits, wait)
		},
	}

	err := Do(context.Background(), opts, func() error {
		calls++
		if calls == 1 {
			// asked for more than MaxDelay, gets capped
			return &HTTPError{StatusCode: http.StatusTooManyRequests, RetryAfter: time.Hour}
		}
		if calls == 2 {
			return &HTTPError{StatusCode: http.StatusServiceUnavailable, RetryAfter: 5 * time.Millisecond}
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, []time.Duration{30 * time.Millisecond, 5 * time.Millisecond}, waits)
}

func TestDo_OnRetryNotCalledForPermanentErrors(t *testing.T) {
	called := false
	err := Do(context.Background(), Options{MaxRetries: 3, OnRetry: func(int, error, time.Duration) { called = true }}, func() error {
		return &HTTPError{StatusCode: http.StatusForbidden}
	})

	require.Error(t, err)
	assert.False(t, called)
}
