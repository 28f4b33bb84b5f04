package iclass

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/warpdl/autosign/pkg/logger"
	"github.com/warpdl/autosign/pkg/retry"
)

func fastRetry() *retry.Config {
	return &retry.Config{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond, BackoffFactor: 2}
}

func newTestClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	hc, err := NewHTTPClient(TransportOptions{Timeout: 2 * time.Second})
	if err != nil {
		t.Fatalf("NewHTTPClient: %v", err)
	}
	c, err := New(Options{
		BaseURL:    srv.URL,
		VEBaseURL:  srv.URL,
		HTTPClient: hc,
		Retry:      fastRetry(),
		Log:        logger.NewMockLogger(),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func loginHandler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("login method = %s", r.Method)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatalf("ParseForm: %v", err)
		}
		if r.Form.Get("phone") != "25375093" || r.Form.Get("password") != "secret" {
			fmt.Fprint(w, `{"STATUS":"1","ERRMSG":"wrong password"}`)
			return
		}
		if r.Form.Get("userLevel") != "1" || r.Form.Get("verificationType") != "1" {
			t.Errorf("unexpected login form: %v", r.Form)
		}
		if ua := r.Header.Get("User-Agent"); ua != DEF_USER_AGENT {
			t.Errorf("User-Agent = %q", ua)
		}
		fmt.Fprint(w, `{"STATUS":"0","result":{"sessionId":"S123","id":42,"realName":"Li Lei"}}`)
	}
}

func TestLogin_StoresSession(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/app/user/login.action", loginHandler(t))
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := newTestClient(t, srv)
	s, err := c.Login(context.Background(), "25375093", "secret")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if s.SessionID != "S123" || s.UserID != "42" || s.Name != "Li Lei" {
		t.Fatalf("unexpected session: %+v", s)
	}
	if !c.LoggedIn() || c.UserID() != "42" {
		t.Fatalf("client did not keep the session")
	}
}

func TestLogin_Rejected(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/app/user/login.action", loginHandler(t))
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := newTestClient(t, srv)
	_, err := c.Login(context.Background(), "25375093", "nope")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %T %v", err, err)
	}
	if apiErr.Status != "1" || apiErr.Message != "wrong password" {
		t.Fatalf("unexpected APIError: %+v", apiErr)
	}
	if c.LoggedIn() {
		t.Fatal("rejected login must not set a session")
	}
}

func TestLogin_NonJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html>maintenance</html>")
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv).Login(context.Background(), "p", "x")
	var decErr *DecodeError
	if !errors.As(err, &decErr) {
		t.Fatalf("expected *DecodeError, got %v", err)
	}
	if !strings.Contains(decErr.Snippet, "maintenance") {
		t.Errorf("snippet = %q", decErr.Snippet)
	}
}

func TestRequests_CarrySessionAndRetry(t *testing.T) {
	var schedCalls int32
	mux := http.NewServeMux()
	mux.HandleFunc("/app/user/login.action", loginHandler(t))
	mux.HandleFunc("/app/course/get_stu_course_sched.action", func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&schedCalls, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		if r.Header.Get("sessionId") != "S123" {
			t.Errorf("sessionId header = %q", r.Header.Get("sessionId"))
		}
		ck, err := r.Cookie("JSESSIONID")
		if err != nil || ck.Value != "S123" {
			t.Errorf("JSESSIONID cookie missing: %v", err)
		}
		if r.URL.Query().Get("id") != "42" || r.URL.Query().Get("dateStr") != "20240301" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		fmt.Fprint(w, `{"STATUS":"0","result":[
			{"id":"7","courseSchedId":"9001","courseName":"Physics","classroomName":"J3-101",
			 "classroomLongitude":"116.34","classroomLatitude":null,
			 "classBeginTime":"2024-03-01 09:00:00","classEndTime":"2024-03-01 09:45:00"},
			{"id":8,"courseName":"Algebra","classroomLongitude":"null",
			 "classBeginTime":"2024-03-01 10:00:00","classEndTime":"2024-03-01 10:45:00"}]}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := newTestClient(t, srv)
	if _, err := c.Login(context.Background(), "25375093", "secret"); err != nil {
		t.Fatalf("Login: %v", err)
	}
	date := time.Date(2024, 3, 1, 0, 0, 0, 0, time.Local)
	courses, err := c.CourseSchedule(context.Background(), date)
	if err != nil {
		t.Fatalf("CourseSchedule: %v", err)
	}
	if atomic.LoadInt32(&schedCalls) != 2 {
		t.Fatalf("expected one retry, got %d calls", schedCalls)
	}
	if len(courses) != 2 {
		t.Fatalf("expected 2 courses, got %d", len(courses))
	}
	if courses[0].ScheduleID() != "9001" || courses[1].ScheduleID() != "8" {
		t.Errorf("unexpected schedule ids %q %q", courses[0].ScheduleID(), courses[1].ScheduleID())
	}
	if courses[0].ClassroomLatitude != "" || courses[1].ClassroomLongitude != "null" {
		t.Errorf("unexpected coordinate decoding: %+v", courses)
	}
}

func TestCourseSchedule_EmptyAndTransportFailure(t *testing.T) {
	empty := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"STATUS":"2","ERRMSG":"no data"}`)
	}))
	defer empty.Close()
	c := newTestClient(t, empty)
	courses, err := c.CourseSchedule(context.Background(), time.Now())
	if err != nil || len(courses) != 0 {
		t.Fatalf("expected empty schedule, got %v %v", courses, err)
	}
	mock := c.log.(*logger.MockLogger)
	if len(mock.WarningCalls) != 1 || !strings.Contains(mock.WarningCalls[0], "STATUS=2 (no data)") {
		t.Fatalf("expected one STATUS warning, got %v", mock.WarningCalls)
	}

	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer down.Close()
	_, err = newTestClient(t, down).CourseSchedule(context.Background(), time.Now())
	var tErr *TransportError
	if !errors.As(err, &tErr) {
		t.Fatalf("expected *TransportError, got %v", err)
	}
	var se *retry.StatusError
	if !errors.As(err, &se) || se.Code != 500 {
		t.Fatalf("expected wrapped status 500, got %v", err)
	}
}

func TestSignPolicy(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantBefore int
		wantAfter  int
		hasBefore  bool
		hasAfter   bool
	}{
		{"strings", `{"result":[{"before_minute":"10","after_minute":"20"}]}`, 10, 20, true, true},
		{"numbers", `{"result":[{"before_minute":3,"after_minute":15}]}`, 3, 15, true, true},
		{"partial", `{"result":[{"after_minute":"45"}]}`, 0, 45, false, true},
		{"empty list", `{"result":[]}`, 0, 0, false, false},
		{"no result", `{"STATUS":"0"}`, 0, 0, false, false},
		{"garbage value", `{"result":[{"before_minute":"soon"}]}`, 0, 0, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/ve/webservices/app_qxkt.shtml" || r.URL.Query().Get("method") != "getQxktSignTime" {
					t.Errorf("unexpected request %s", r.URL)
				}
				fmt.Fprint(w, tt.body)
			}))
			defer srv.Close()
			p, err := newTestClient(t, srv).SignPolicy(context.Background())
			if err != nil {
				t.Fatalf("SignPolicy: %v", err)
			}
			if p.BeforeMinutes != tt.wantBefore || p.AfterMinutes != tt.wantAfter ||
				p.HasBefore != tt.hasBefore || p.HasAfter != tt.hasAfter {
				t.Fatalf("unexpected policy %+v", p)
			}
		})
	}
}

func TestSocketInfo_RequiresLogin(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()
	if _, err := newTestClient(t, srv).SocketInfo(context.Background()); !errors.Is(err, ErrNotLoggedIn) {
		t.Fatalf("expected ErrNotLoggedIn, got %v", err)
	}
}

func TestSocketInfoAndSendSign(t *testing.T) {
	var signed int32
	mux := http.NewServeMux()
	mux.HandleFunc("/app/user/login.action", loginHandler(t))
	mux.HandleFunc("/app/service/get_socket_info.action", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"STATUS":"0","result":{"id":"5","courseSchedId":"9001","classroomLongitude":116.5,"classroomLatitude":"39.9"}}`)
	})
	mux.HandleFunc("/app/course/stu_auto_sign.action", func(w http.ResponseWriter, r *http.Request) {
		if ct := r.Header.Get("Content-Type"); ct != "application/x-www-form-urlencoded" {
			t.Errorf("Content-Type = %q", ct)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatalf("ParseForm: %v", err)
		}
		if atomic.AddInt32(&signed, 1) == 2 {
			fmt.Fprint(w, `{"STATUS":"1","ERRMSG":"not in sign time"}`)
			return
		}
		want := map[string]string{
			"id": "42", "courseSchedId": "9001", "routerInfo": "A0:EE:1A:E0:A2:0E",
			"longitude": "116.5", "latitude": "39.9", "machineInfo": "Android",
			"signTime": "2024-03-01 08:56:00",
		}
		for k, v := range want {
			if got := r.Form.Get(k); got != v {
				t.Errorf("form %s = %q, want %q", k, got, v)
			}
		}
		fmt.Fprint(w, `{"STATUS":"0","result":{"stuSignStatus":"1"}}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := newTestClient(t, srv)
	if _, err := c.Login(context.Background(), "25375093", "secret"); err != nil {
		t.Fatalf("Login: %v", err)
	}
	info, err := c.SocketInfo(context.Background())
	if err != nil {
		t.Fatalf("SocketInfo: %v", err)
	}
	if info.ClassroomLongitude != "116.5" || info.CourseSchedID != "9001" {
		t.Fatalf("unexpected socket info %+v", info)
	}

	payload := SignPayload{
		UserID:        c.UserID(),
		CourseSchedID: "9001",
		RouterInfo:    "A0:EE:1A:E0:A2:0E",
		Longitude:     116.5,
		Latitude:      39.9,
		SignTime:      time.Date(2024, 3, 1, 8, 56, 0, 0, time.Local),
	}
	signURL := srv.URL + "/app/course/stu_auto_sign.action"
	res, err := c.SendSign(context.Background(), signURL, payload)
	if err != nil || !res.OK() || res.HTTPStatus != 200 {
		t.Fatalf("SendSign: %+v %v", res, err)
	}

	res, err = c.SendSign(context.Background(), signURL, payload)
	if !IsRejected(err) {
		t.Fatalf("expected rejection, got %v", err)
	}
	if res.Status != "1" || res.Message != "not in sign time" {
		t.Fatalf("unexpected rejected result %+v", res)
	}
}

func TestNew_RequiresBaseURL(t *testing.T) {
	if _, err := New(Options{}); err == nil {
		t.Fatal("expected error without base URL")
	}
}

func TestNewHTTPClient_Proxy(t *testing.T) {
	tests := []struct {
		proxy   string
		wantErr error
	}{
		{"", nil},
		{"http://127.0.0.1:8080", nil},
		{"socks5://user:pw@127.0.0.1:1080", nil},
		{"ftp://127.0.0.1:21", ErrUnsupportedScheme},
		{"not a url", ErrInvalidProxyURL},
	}
	for _, tt := range tests {
		_, err := NewHTTPClient(TransportOptions{Proxy: tt.proxy})
		if !errors.Is(err, tt.wantErr) {
			t.Errorf("proxy %q: got %v, want %v", tt.proxy, err, tt.wantErr)
		}
	}
}
