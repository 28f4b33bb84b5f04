// Package iclass is a client for the iClass student mobile-app API: login,
// daily course schedule, sign-time policy, live classroom (socket) info and
// check-in submission.
package iclass

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/warpdl/autosign/pkg/logger"
	"github.com/warpdl/autosign/pkg/retry"
)

const (
	// DEF_USER_AGENT is the User-Agent of the official Android app.
	DEF_USER_AGENT = "student_5.0.1.2_android_9_20__110000"

	sessionCookie = "JSESSIONID"
	snippetLen    = 500
	maxBodySize   = 4 << 20
)

// Options configures a Client.
type Options struct {
	// BaseURL is the main API host, e.g. https://iclass.buaa.edu.cn:8181.
	BaseURL string
	// VEBaseURL is the host serving the ve webservices (sign policy).
	VEBaseURL string
	// HTTPClient defaults to NewHTTPClient(TransportOptions{}).
	HTTPClient *http.Client
	// UserAgent defaults to DEF_USER_AGENT.
	UserAgent string
	// Retry defaults to retry.DefaultConfig().
	Retry *retry.Config
	// Log defaults to a NopLogger.
	Log logger.Logger
}

// Client talks to one iClass deployment on behalf of one student. It is
// not safe for concurrent use.
type Client struct {
	base    string
	veBase  string
	http    *http.Client
	ua      string
	retry   retry.Config
	log     logger.Logger
	session Session
}

// New creates a Client. No request is made until Login.
func New(opts Options) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if base == "" {
		return nil, errors.New("iclass: base URL is required")
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("iclass: invalid base URL: %w", err)
	}
	veBase := strings.TrimRight(strings.TrimSpace(opts.VEBaseURL), "/")
	if veBase == "" {
		veBase = base
	}
	c := &Client{
		base:   base,
		veBase: veBase,
		http:   opts.HTTPClient,
		ua:     opts.UserAgent,
		log:    opts.Log,
	}
	if c.http == nil {
		hc, err := NewHTTPClient(TransportOptions{})
		if err != nil {
			return nil, err
		}
		c.http = hc
	}
	if c.ua == "" {
		c.ua = DEF_USER_AGENT
	}
	if opts.Retry != nil {
		c.retry = *opts.Retry
	} else {
		c.retry = retry.DefaultConfig()
	}
	if c.log == nil {
		c.log = logger.NewNopLogger()
	}
	return c, nil
}

// UserID returns the logged-in user identifier.
func (c *Client) UserID() string { return c.session.UserID }

// LoggedIn reports whether Login succeeded.
func (c *Client) LoggedIn() bool { return c.session.UserID != "" }

// Login authenticates with phone (student number) and password and keeps
// the session for every later call.
func (c *Client) Login(ctx context.Context, phone, password string) (Session, error) {
	const op = "login"
	form := url.Values{}
	form.Set("phone", phone)
	form.Set("password", password)
	form.Set("verificationType", "1")
	form.Set("verificationUrl", c.veBase+"/ve/webservices/mobileCheck.shtml?method=mobileLogin&username=${0}&password=${1}&lx=${2}")
	form.Set("userLevel", "1")

	env, err := c.call(ctx, op, http.MethodPost, c.base+"/app/user/login.action", form, nil)
	if err != nil {
		return Session{}, err
	}
	if string(env.Status) != statusOK {
		return Session{}, &APIError{Op: op, Status: string(env.Status), Code: string(env.ErrCode), Message: env.ErrMsg}
	}
	var res struct {
		SessionID FlexString `json:"sessionId"`
		ID        FlexString `json:"id"`
		RealName  string     `json:"realName"`
		UserName  string     `json:"userName"`
	}
	if err := json.Unmarshal(env.Result, &res); err != nil {
		return Session{}, &DecodeError{Op: op, Snippet: snippet(env.Result), Err: err}
	}
	if res.ID == "" {
		return Session{}, &DecodeError{Op: op, Snippet: snippet(env.Result), Err: errors.New("login result has no user id")}
	}
	s := Session{SessionID: string(res.SessionID), UserID: string(res.ID), Name: res.RealName}
	if s.Name == "" {
		s.Name = res.UserName
	}
	c.session = s
	c.storeSessionCookie()
	c.log.Info("login succeeded: sessionId=%s, userId=%s", s.SessionID, s.UserID)
	return s, nil
}

// CourseSchedule returns the student's courses on date. It does not
// require a session so that a debug run without login can still try it.
func (c *Client) CourseSchedule(ctx context.Context, date time.Time) ([]Course, error) {
	const op = "course schedule"
	q := url.Values{}
	q.Set("id", c.session.UserID)
	q.Set("dateStr", date.Format(DateLayout))
	env, err := c.call(ctx, op, http.MethodGet, c.base+"/app/course/get_stu_course_sched.action?"+q.Encode(), nil, nil)
	if err != nil {
		return nil, err
	}
	if env.Status != "" && string(env.Status) != statusOK {
		// No classes is reported as a non-zero STATUS by some deployments.
		if !env.hasResult() {
			c.log.Warning("course schedule returned STATUS=%s (%s), treating as empty", env.Status, env.ErrMsg)
			return nil, nil
		}
		return nil, &APIError{Op: op, Status: string(env.Status), Code: string(env.ErrCode), Message: env.ErrMsg}
	}
	if !env.hasResult() {
		return nil, nil
	}
	var courses []Course
	if err := json.Unmarshal(env.Result, &courses); err != nil {
		return nil, &DecodeError{Op: op, Snippet: snippet(env.Result), Err: err}
	}
	return courses, nil
}

// SignPolicy fetches the before/after check-in offsets. An empty result is
// not an error; the returned policy then has neither value set.
func (c *Client) SignPolicy(ctx context.Context) (SignPolicy, error) {
	const op = "sign policy"
	env, err := c.call(ctx, op, http.MethodGet, c.veBase+"/ve/webservices/app_qxkt.shtml?method=getQxktSignTime", nil, nil)
	if err != nil {
		return SignPolicy{}, err
	}
	if !env.hasResult() {
		return SignPolicy{}, nil
	}
	var rows []struct {
		Before FlexString `json:"before_minute"`
		After  FlexString `json:"after_minute"`
	}
	if err := json.Unmarshal(env.Result, &rows); err != nil {
		return SignPolicy{}, &DecodeError{Op: op, Snippet: snippet(env.Result), Err: err}
	}
	var p SignPolicy
	if len(rows) == 0 {
		return p, nil
	}
	if n, ok := parseMinutes(rows[0].Before); ok {
		p.BeforeMinutes, p.HasBefore = n, true
	}
	if n, ok := parseMinutes(rows[0].After); ok {
		p.AfterMinutes, p.HasAfter = n, true
	}
	return p, nil
}

// SocketInfo fetches the live classroom info of the student's current course.
func (c *Client) SocketInfo(ctx context.Context) (SocketInfo, error) {
	const op = "socket info"
	if !c.LoggedIn() {
		return SocketInfo{}, ErrNotLoggedIn
	}
	q := url.Values{}
	q.Set("id", c.session.UserID)
	env, err := c.call(ctx, op, http.MethodGet, c.base+"/app/service/get_socket_info.action?"+q.Encode(), nil, nil)
	if err != nil {
		return SocketInfo{}, err
	}
	if env.Status != "" && string(env.Status) != statusOK {
		return SocketInfo{}, &APIError{Op: op, Status: string(env.Status), Code: string(env.ErrCode), Message: env.ErrMsg}
	}
	var info SocketInfo
	if !env.hasResult() {
		return info, nil
	}
	if err := json.Unmarshal(env.Result, &info); err != nil {
		return SocketInfo{}, &DecodeError{Op: op, Snippet: snippet(env.Result), Err: err}
	}
	return info, nil
}

// SendSign submits a check-in to signURL as a form post. A decoded response
// with STATUS other than "0" is returned together with an *APIError.
func (c *Client) SendSign(ctx context.Context, signURL string, payload SignPayload) (SignResult, error) {
	const op = "sign"
	if signURL == "" {
		return SignResult{}, errors.New("iclass: sign URL is empty")
	}
	c.log.Info("sending check-in request to %s", signURL)
	headers := http.Header{}
	headers.Set("Connection", "Keep-Alive")

	body, code, err := c.do(ctx, op, http.MethodPost, signURL, payload.Values(), headers)
	if err != nil {
		return SignResult{HTTPStatus: code}, err
	}
	c.log.Info("check-in response HTTP %d", code)
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		c.log.Warning("check-in endpoint returned non-JSON, first %d chars: %s", snippetLen, snippet(body))
		return SignResult{HTTPStatus: code}, &DecodeError{Op: op, Snippet: snippet(body), Err: err}
	}
	res := SignResult{
		HTTPStatus: code,
		Status:     string(env.Status),
		Message:    env.ErrMsg,
		Result:     env.Result,
	}
	c.log.Info("check-in response JSON: %s", snippet(body))
	if !res.OK() {
		return res, &APIError{Op: op, Status: res.Status, Code: string(env.ErrCode), Message: env.ErrMsg}
	}
	return res, nil
}

// call performs a request and decodes the common JSON envelope.
func (c *Client) call(ctx context.Context, op, method, rawURL string, form url.Values, headers http.Header) (envelope, error) {
	body, _, err := c.do(ctx, op, method, rawURL, form, headers)
	if err != nil {
		return envelope{}, err
	}
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		c.log.Warning("%s returned non-JSON, first %d chars: %s", op, snippetLen, snippet(body))
		return envelope{}, &DecodeError{Op: op, Snippet: snippet(body), Err: err}
	}
	return env, nil
}

// do sends one logical request with retries and returns the body of the
// first 2xx response.
func (c *Client) do(ctx context.Context, op, method, rawURL string, form url.Values, headers http.Header) ([]byte, int, error) {
	var (
		body []byte
		code int
	)
	attempt := func(ctx context.Context) error {
		var rdr io.Reader
		if form != nil {
			rdr = strings.NewReader(form.Encode())
		}
		req, err := http.NewRequestWithContext(ctx, method, rawURL, rdr)
		if err != nil {
			return err
		}
		req.Header.Set("User-Agent", c.ua)
		if form != nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
		for k, vs := range headers {
			for _, v := range vs {
				req.Header.Add(k, v)
			}
		}
		c.applySession(req)

		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		code = resp.StatusCode
		b, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
		if err != nil {
			return err
		}
		if err := retry.CheckStatus(resp); err != nil {
			return err
		}
		body = b
		return nil
	}
	onRetry := func(state *retry.State, err error) {
		c.log.Warning("request failed: %s %s error: %v attempt %d/%d", method, rawURL, err, state.Attempts, c.retry.MaxAttempts)
	}
	if err := c.retry.Do(ctx, attempt, onRetry); err != nil {
		return nil, code, &TransportError{Op: op, Method: method, URL: rawURL, Err: err}
	}
	return body, code, nil
}

// applySession adds the sessionId header and, when the jar holds no
// cookie for the target, the JSESSIONID cookie.
func (c *Client) applySession(req *http.Request) {
	if c.session.SessionID == "" {
		return
	}
	req.Header.Set("sessionId", c.session.SessionID)
	if c.http.Jar != nil {
		for _, ck := range c.http.Jar.Cookies(req.URL) {
			if ck.Name == sessionCookie {
				return
			}
		}
	}
	req.AddCookie(&http.Cookie{Name: sessionCookie, Value: c.session.SessionID})
}

// storeSessionCookie seeds the jar for both API hosts.
func (c *Client) storeSessionCookie() {
	if c.http.Jar == nil || c.session.SessionID == "" {
		return
	}
	for _, raw := range []string{c.base, c.veBase} {
		u, err := url.Parse(raw)
		if err != nil {
			continue
		}
		c.http.Jar.SetCookies(u, []*http.Cookie{{Name: sessionCookie, Value: c.session.SessionID, Path: "/"}})
	}
}

func parseMinutes(v FlexString) (int, bool) {
	s := strings.TrimSpace(string(v))
	if s == "" || strings.EqualFold(s, "null") {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < 0 || f > 24*60 {
		return 0, false
	}
	return int(f), true
}

func snippet(b []byte) string {
	b = bytes.TrimSpace(b)
	if len(b) > snippetLen {
		b = b[:snippetLen]
	}
	return string(b)
}
