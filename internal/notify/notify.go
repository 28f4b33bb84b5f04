// Package notify pushes run summaries to the student's phone.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/warpdl/autosign/pkg/retry"
)

// DEF_SERVERCHAN_ENDPOINT is formatted with the push key.
const DEF_SERVERCHAN_ENDPOINT = "https://sctapi.ftqq.com/%s.send"

// Notifier delivers a short message.
type Notifier interface {
	Notify(ctx context.Context, title, body string) error
}

// Nop discards notifications.
type Nop struct{}

func (Nop) Notify(context.Context, string, string) error { return nil }

// ServerChan sends notifications through the ServerChan push service.
type ServerChan struct {
	key      string
	endpoint string
	http     *http.Client
}

// NewServerChan creates a notifier for key. endpoint may be empty for the
// public service; otherwise it is a format string taking the key.
func NewServerChan(key, endpoint string, hc *http.Client) *ServerChan {
	if endpoint == "" {
		endpoint = DEF_SERVERCHAN_ENDPOINT
	}
	if hc == nil {
		hc = http.DefaultClient
	}
	return &ServerChan{key: key, endpoint: endpoint, http: hc}
}

// New returns a ServerChan notifier when key is set and Nop otherwise.
func New(key string, hc *http.Client) Notifier {
	if strings.TrimSpace(key) == "" {
		return Nop{}
	}
	return NewServerChan(strings.TrimSpace(key), "", hc)
}

// Notify posts title and body (markdown) as a form.
func (s *ServerChan) Notify(ctx context.Context, title, body string) error {
	if s.key == "" {
		return errors.New("notify: empty push key")
	}
	form := url.Values{}
	form.Set("title", title)
	form.Set("desp", body)
	target := fmt.Sprintf(s.endpoint, url.PathEscape(s.key))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := s.http.Do(req)
	if err != nil {
		return fmt.Errorf("notify: %w", err)
	}
	defer resp.Body.Close()
	if err := retry.CheckStatus(resp); err != nil {
		return fmt.Errorf("notify: %w", err)
	}

	var out struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	}
	b, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return fmt.Errorf("notify: %w", err)
	}
	if err := json.Unmarshal(b, &out); err != nil {
		return fmt.Errorf("notify: unexpected response: %w", err)
	}
	if out.Code != 0 {
		return fmt.Errorf("notify: push rejected: code=%d: %s", out.Code, out.Message)
	}
	return nil
}
