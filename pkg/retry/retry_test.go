package retry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"syscall"
	"testing"
	"time"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected Category
	}{
		{"nil error", nil, CategoryFatal},
		{"context canceled", context.Canceled, CategoryFatal},
		{"unknown error", errors.New("some random error"), CategoryFatal},
		{"404", &StatusError{Code: 404}, CategoryFatal},
		{"403 wrapped", fmt.Errorf("login: %w", &StatusError{Code: 403}), CategoryFatal},
		{"500", &StatusError{Code: 500}, CategoryRetryable},
		{"502", &StatusError{Code: 502}, CategoryRetryable},
		{"408", &StatusError{Code: 408}, CategoryRetryable},
		{"429", &StatusError{Code: 429}, CategoryThrottled},
		{"503", &StatusError{Code: 503}, CategoryThrottled},
		{"io.EOF", io.EOF, CategoryRetryable},
		{"wrapped unexpected EOF", fmt.Errorf("read: %w", io.ErrUnexpectedEOF), CategoryRetryable},
		{"connection reset", fmt.Errorf("x: %w", syscall.ECONNRESET), CategoryRetryable},
		{"url error timeout", &url.Error{Op: "Get", URL: "http://x", Err: timeoutErr{}}, CategoryRetryable},
		{"dial error", &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("refused")}, CategoryRetryable},
		{"no such host string", errors.New("dial tcp: lookup iclass: no such host"), CategoryRetryable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.err); got != tt.expected {
				t.Errorf("Classify(%v) = %v, want %v", tt.err, got, tt.expected)
			}
		})
	}
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestBackoff_Increases(t *testing.T) {
	c := DefaultConfig()
	if got := c.Backoff(1); got != 2*time.Second {
		t.Errorf("Backoff(1) = %v, want 2s", got)
	}
	if got := c.Backoff(2); got != 4*time.Second {
		t.Errorf("Backoff(2) = %v, want 4s", got)
	}
	if got := c.Backoff(0); got != 2*time.Second {
		t.Errorf("Backoff(0) = %v, want clamp to 2s", got)
	}
	c.MaxDelay = 3 * time.Second
	if got := c.Backoff(5); got != 3*time.Second {
		t.Errorf("Backoff(5) = %v, want cap 3s", got)
	}
}

func TestCheckStatus(t *testing.T) {
	if err := CheckStatus(&http.Response{StatusCode: 204}); err != nil {
		t.Fatalf("204 should pass, got %v", err)
	}
	err := CheckStatus(&http.Response{StatusCode: 502, Status: "502 Bad Gateway"})
	var se *StatusError
	if !errors.As(err, &se) || se.Code != 502 {
		t.Fatalf("expected StatusError 502, got %v", err)
	}
	if se.Error() != "unexpected HTTP status 502 Bad Gateway" {
		t.Errorf("unexpected message %q", se.Error())
	}
}

func fastConfig() Config {
	return Config{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, BackoffFactor: 2}
}

func TestDo_RetriesThenSucceeds(t *testing.T) {
	calls := 0
	retries := 0
	err := fastConfig().Do(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return &StatusError{Code: 500}
		}
		return nil
	}, func(*State, error) { retries++ })
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if calls != 3 || retries != 2 {
		t.Fatalf("calls=%d retries=%d, want 3 and 2", calls, retries)
	}
}

func TestDo_StopsAfterMaxAttempts(t *testing.T) {
	calls := 0
	want := &StatusError{Code: 502}
	err := fastConfig().Do(context.Background(), func(context.Context) error {
		calls++
		return want
	}, nil)
	if !errors.Is(err, want) {
		t.Fatalf("expected last error, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
}

func TestDo_FatalNotRetried(t *testing.T) {
	calls := 0
	err := fastConfig().Do(context.Background(), func(context.Context) error {
		calls++
		return &StatusError{Code: 404}
	}, nil)
	if err == nil || calls != 1 {
		t.Fatalf("expected one attempt and an error, got calls=%d err=%v", calls, err)
	}
}

func TestDo_ContextCanceledDuringWait(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	c := Config{MaxAttempts: 5, BaseDelay: time.Hour, BackoffFactor: 1}
	calls := 0
	done := make(chan error, 1)
	go func() {
		done <- c.Do(ctx, func(context.Context) error {
			calls++
			return io.EOF
		}, func(*State, error) { cancel() })
	}()
	select {
	case err := <-done:
		if !errors.Is(err, io.EOF) {
			t.Fatalf("expected last op error, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Do did not return after cancel")
	}
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
}
