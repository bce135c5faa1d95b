package etherscan

// Package etherscan contains the client for the Etherscan v2 API.
// This file is the transport: rate limiting, circuit breaking, retries and
// unwrapping of the status/message/result envelope. It knows nothing about
// tracking records.

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"arb-stalker/internal/infra/log"
	"arb-stalker/internal/infra/retry"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL = "https://api.etherscan.io/v2/api"
	// ArbitrumChainID - Arbitrum One
	ArbitrumChainID = 42161

	maxResponseSize = 10 * 1024 * 1024
)

// Options configures a Client. Zero values fall back to defaults.
type Options struct {
	APIKey            string
	BaseURL           string
	ChainID           int64
	Timeout           time.Duration
	MaxRetries        int
	RequestsPerSecond float64
}

// Client talks to one chain through the Etherscan v2 multichain endpoint.
type Client struct {
	apiKey         string
	baseURL        string
	chainID        int64
	httpClient     *http.Client
	rateLimiter    *rate.Limiter
	circuitBreaker *gobreaker.CircuitBreaker
	retryOpts      retry.Options
}

// APIError is an Etherscan response with status "0" that is not an empty result.
type APIError struct {
	Message string
	Result  string
}

func (e *APIError) Error() string {
	if e.Result == "" {
		return fmt.Sprintf("etherscan error: %s", e.Message)
	}
	return fmt.Sprintf("etherscan error: %s: %s", e.Message, e.Result)
}

func NewClient(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.ChainID == 0 {
		opts.ChainID = ArbitrumChainID
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.RequestsPerSecond <= 0 {
		opts.RequestsPerSecond = 4
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}

	circuitBreaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "EtherscanAPI",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.LogWarn("Circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})

	return &Client{
		apiKey:         opts.APIKey,
		baseURL:        strings.TrimRight(opts.BaseURL, "/"),
		chainID:        opts.ChainID,
		rateLimiter:    rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1),
		circuitBreaker: circuitBreaker,
		retryOpts: retry.Options{
			MaxRetries: opts.MaxRetries,
			BaseDelay:  500 * time.Millisecond,
			MaxDelay:   10 * time.Second,
			OnRetry: func(attempt int, err error, wait time.Duration) {
				log.LogWarn("Retrying Etherscan request",
					zap.Int("attempt", attempt),
					zap.Duration("wait", wait),
					zap.Error(err))
			},
		},
		httpClient: &http.Client{
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:    10,
				IdleConnTimeout: 90 * time.Second,
			},
		},
	}
}

// ChainID returns the chain the client queries.
func (c *Client) ChainID() int64 {
	return c.chainID
}

// envelope is the common shape of Etherscan responses. Proxy (JSON-RPC)
// calls have no status and report failures in Error.
type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Result  json.RawMessage `json:"result"`
	Error   *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// MakeRequest performs a GET with the given query parameters and returns the raw
// result field. Every attempt waits on the rate limiter and runs through the circuit breaker.
func (c *Client) MakeRequest(ctx context.Context, params url.Values) (json.RawMessage, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("etherscan API key not configured")
	}

	query := url.Values{}
	for k, v := range params {
		query[k] = v
	}
	query.Set("chainid", strconv.FormatInt(c.chainID, 10))
	query.Set("apikey", c.apiKey)
	endpoint := params.Get("module") + "/" + params.Get("action")

	var result json.RawMessage
	err := retry.Do(ctx, c.retryOpts, func() error {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter wait failed: %w", err)
		}

		body, err := c.circuitBreaker.Execute(func() (interface{}, error) {
			return c.makeRequestWithContext(ctx, endpoint, query)
		})
		if err != nil {
			return err
		}

		result, err = decodeEnvelope(body.([]byte))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("etherscan %s: %w", endpoint, err)
	}
	return result, nil
}

func (c *Client) makeRequestWithContext(ctx context.Context, endpoint string, query url.Values) ([]byte, error) {
	requestID := log.GenerateRequestID()
	startTime := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	log.LogRequest(requestID, http.MethodGet, endpoint, zap.String("address", query.Get("address")))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.LogResponse(requestID, 0, time.Since(startTime).Milliseconds(), zap.String("endpoint", endpoint), zap.Error(err))
		return nil, fmt.Errorf("failed to perform request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	duration := time.Since(startTime).Milliseconds()
	if err != nil {
		log.LogResponse(requestID, resp.StatusCode, duration, zap.String("endpoint", endpoint), zap.Error(err))
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	log.LogResponse(requestID, resp.StatusCode, duration, zap.String("endpoint", endpoint))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &retry.HTTPError{
			StatusCode: resp.StatusCode,
			Body:       body,
			RetryAfter: retry.ParseRetryAfter(resp.Header.Get("Retry-After")),
		}
	}
	return body, nil
}

// decodeEnvelope returns the result field or an error for failed calls.
// Etherscan reports its own rate limiting with HTTP 200, so it is mapped to a
// retryable 429.
func decodeEnvelope(body []byte) (json.RawMessage, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	if env.Error != nil {
		return nil, &APIError{Message: env.Error.Message, Result: strconv.Itoa(env.Error.Code)}
	}

	if env.Status == "0" {
		if isEmptyResult(env.Message) {
			return json.RawMessage("[]"), nil
		}
		var result string
		_ = json.Unmarshal(env.Result, &result)
		if strings.Contains(strings.ToLower(result), "rate limit") {
			return nil, &retry.HTTPError{StatusCode: http.StatusTooManyRequests, Body: []byte(result)}
		}
		return nil, &APIError{Message: env.Message, Result: result}
	}

	return env.Result, nil
}

func isEmptyResult(message string) bool {
	switch message {
	case "No transactions found", "No records found":
		return true
	}
	return false
}
