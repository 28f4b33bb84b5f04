// Package retry wraps single HTTP round trips against the iClass API in a
// small, bounded retry loop with increasing backoff.
package retry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net"
	"net/http"
	"strings"
	"syscall"
	"time"
)

// Default retry configuration values
const (
	DEF_MAX_ATTEMPTS   = 3
	DEF_BASE_DELAY     = 2 * time.Second
	DEF_MAX_DELAY      = 30 * time.Second
	DEF_JITTER_FACTOR  = 0.0
	DEF_BACKOFF_FACTOR = 2.0
)

// Config holds configuration for retry behavior
type Config struct {
	MaxAttempts   int           // Total attempts including the first (0 = unlimited)
	BaseDelay     time.Duration // Delay before the second attempt
	MaxDelay      time.Duration // Maximum delay between attempts
	JitterFactor  float64       // Random jitter factor (0-1)
	BackoffFactor float64       // Exponential backoff multiplier
}

// DefaultConfig returns the retry policy used for every iClass request:
// three attempts, waiting 2s then 4s.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:   DEF_MAX_ATTEMPTS,
		BaseDelay:     DEF_BASE_DELAY,
		MaxDelay:      DEF_MAX_DELAY,
		JitterFactor:  DEF_JITTER_FACTOR,
		BackoffFactor: DEF_BACKOFF_FACTOR,
	}
}

// State tracks the state of retry attempts
type State struct {
	Attempts     int           // Number of attempts made
	LastError    error         // Most recent error encountered
	TotalDelayed time.Duration // Cumulative time spent waiting between attempts
}

// StatusError reports a response whose HTTP status is not 2xx.
type StatusError struct {
	Code   int
	Status string
}

func (e *StatusError) Error() string {
	if e.Status != "" {
		return fmt.Sprintf("unexpected HTTP status %s", e.Status)
	}
	return fmt.Sprintf("unexpected HTTP status %d", e.Code)
}

// CheckStatus returns a *StatusError for non-2xx responses.
func CheckStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	return &StatusError{Code: resp.StatusCode, Status: resp.Status}
}

// Category classifies errors for retry decisions
type Category int

const (
	CategoryFatal     Category = iota // Non-retryable errors (4xx, canceled)
	CategoryRetryable                 // Transient errors (EOF, timeout, reset, 5xx)
	CategoryThrottled                 // Rate limiting errors (429, 503)
)

func (c Category) String() string {
	switch c {
	case CategoryRetryable:
		return "retryable"
	case CategoryThrottled:
		return "throttled"
	default:
		return "fatal"
	}
}

// Classify determines how an error should be handled for retry purposes
func Classify(err error) Category {
	if err == nil {
		return CategoryFatal
	}
	if errors.Is(err, context.Canceled) {
		return CategoryFatal
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		switch {
		case statusErr.Code == http.StatusTooManyRequests,
			statusErr.Code == http.StatusServiceUnavailable:
			return CategoryThrottled
		case statusErr.Code == http.StatusRequestTimeout,
			statusErr.Code >= 500:
			return CategoryRetryable
		default:
			return CategoryFatal
		}
	}

	// connection dropped mid-body
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return CategoryRetryable
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return CategoryRetryable
	}

	for _, errno := range []syscall.Errno{
		syscall.ECONNRESET, syscall.ECONNREFUSED, syscall.ECONNABORTED,
		syscall.ETIMEDOUT, syscall.ENETUNREACH, syscall.EHOSTUNREACH,
		syscall.EPIPE,
	} {
		if errors.Is(err, errno) {
			return CategoryRetryable
		}
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return CategoryRetryable
	}

	// String-based pattern matching for wrapped errors
	errStr := strings.ToLower(err.Error())
	for _, pattern := range []string{
		"connection reset",
		"connection refused",
		"broken pipe",
		"timeout",
		"eof",
		"temporary failure",
		"no such host",
		"network is unreachable",
		"tls handshake",
	} {
		if strings.Contains(errStr, pattern) {
			return CategoryRetryable
		}
	}

	return CategoryFatal
}

// Backoff computes the delay after the given failed attempt (1-based).
func (c *Config) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	delay := float64(c.BaseDelay) * math.Pow(c.BackoffFactor, float64(attempt-1))

	if c.JitterFactor > 0 {
		jitter := c.JitterFactor * (2*rand.Float64() - 1) // random in [-1, 1]
		delay *= (1 + jitter)
	}

	if c.MaxDelay > 0 && delay > float64(c.MaxDelay) {
		delay = float64(c.MaxDelay)
	}
	if delay < 0 {
		delay = float64(c.BaseDelay)
	}
	return time.Duration(delay)
}

// ShouldRetry determines if another attempt should be made
func (c *Config) ShouldRetry(state *State, err error) bool {
	if Classify(err) == CategoryFatal {
		return false
	}
	if c.MaxAttempts > 0 && state.Attempts >= c.MaxAttempts {
		return false
	}
	return true
}

// Wait blocks until the retry delay has elapsed or ctx is done.
func (c *Config) Wait(ctx context.Context, state *State, category Category) error {
	delay := c.Backoff(state.Attempts)
	if category == CategoryThrottled {
		delay *= 2
		if c.MaxDelay > 0 && delay > c.MaxDelay {
			delay = c.MaxDelay
		}
	}

	t := time.NewTimer(delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		state.TotalDelayed += delay
		return nil
	}
}

// Do runs op until it succeeds, fails fatally or runs out of attempts.
// onRetry, if non-nil, is called before every wait. The returned error is
// the last error from op.
func (c Config) Do(ctx context.Context, op func(ctx context.Context) error, onRetry func(state *State, err error)) error {
	state := &State{}
	for {
		err := op(ctx)
		state.Attempts++
		if err == nil {
			return nil
		}
		state.LastError = err
		if ctx.Err() != nil || !c.ShouldRetry(state, err) {
			return err
		}
		if onRetry != nil {
			onRetry(state, err)
		}
		if werr := c.Wait(ctx, state, Classify(err)); werr != nil {
			return err
		}
	}
}
