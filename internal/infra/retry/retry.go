package retry

// Retries for calls to rate limited APIs (Etherscan, Telegram Bot API).
// Transient failures back off with full jitter; a server-advertised wait
// (Retry-After header, Telegram retry_after) replaces the jitter.

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"strconv"
	"strings"
	"time"
)

type Options struct {
	MaxRetries int
	BaseDelay  time.Duration
	// MaxDelay caps both the jitter and an advertised wait. Zero means no cap.
	MaxDelay time.Duration
	// OnRetry is called before each sleep, e.g. to log the attempt.
	OnRetry func(attempt int, err error, wait time.Duration)
}

// HTTPError is a non-2xx answer. RetryAfter is the wait the server asked for, if any.
type HTTPError struct {
	StatusCode int
	Body       []byte
	RetryAfter time.Duration
}

func (e *HTTPError) Error() string {
	if e == nil {
		return "http error: <nil>"
	}
	if len(e.Body) == 0 {
		return fmt.Sprintf("http error (%d)", e.StatusCode)
	}
	return fmt.Sprintf("http error (%d): %s", e.StatusCode, string(e.Body))
}

var retryableStatus = map[int]bool{
	http.StatusTooManyRequests:     true,
	http.StatusInternalServerError: true,
	http.StatusBadGateway:          true,
	http.StatusServiceUnavailable:  true,
	http.StatusGatewayTimeout:      true,
}

// IsRetryable reports whether err wraps an HTTPError with a transient status.
func IsRetryable(err error) bool {
	var he *HTTPError
	return errors.As(err, &he) && retryableStatus[he.StatusCode]
}

// ParseRetryAfter accepts both delta-seconds and HTTP-date values.
func ParseRetryAfter(v string) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs > 0 {
			return time.Duration(secs) * time.Second
		}
		return 0
	}
	for _, layout := range []string{time.RFC1123, time.RFC1123Z, time.RFC850, time.ANSIC} {
		t, err := time.Parse(layout, v)
		if err != nil {
			continue
		}
		if d := time.Until(t); d > 0 {
			return d
		}
		return 0
	}
	return 0
}

// FullJitterSleep returns a random duration in [0, min(maxDelay, baseDelay*2^attempt)].
func FullJitterSleep(attempt int, baseDelay, maxDelay time.Duration) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if baseDelay <= 0 {
		return 0
	}
	ceiling := capDelay(baseDelay<<attempt, maxDelay)
	if ceiling <= 0 {
		return 0
	}
	return time.Duration(rand.Int63n(int64(ceiling) + 1))
}

func capDelay(d, max time.Duration) time.Duration {
	if max > 0 && d > max {
		return max
	}
	return d
}

// waitFor picks the sleep before the next attempt.
func waitFor(err error, attempt int, opts Options) time.Duration {
	var he *HTTPError
	if errors.As(err, &he) && he.RetryAfter > 0 {
		return capDelay(he.RetryAfter, opts.MaxDelay)
	}
	return FullJitterSleep(attempt, opts.BaseDelay, opts.MaxDelay)
}

// Do calls fn until it succeeds, returns a non-retryable error, runs out of
// attempts or ctx is done. The last error is returned as is.
func Do(ctx context.Context, opts Options, fn func() error) error {
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = 300 * time.Millisecond
	}

	var err error
	for attempt := 0; attempt <= opts.MaxRetries; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		if err = fn(); err == nil {
			return nil
		}
		if !IsRetryable(err) || attempt == opts.MaxRetries {
			return err
		}

		wait := waitFor(err, attempt, opts)
		if opts.OnRetry != nil {
			opts.OnRetry(attempt+1, err, wait)
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return err
}
