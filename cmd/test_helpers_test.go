package cmd

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/spf13/afero"

	"github.com/warpdl/autosign/internal/clock"
	"github.com/warpdl/autosign/internal/config"
	"github.com/warpdl/autosign/internal/notify"
	"github.com/warpdl/autosign/pkg/credman/keyring"
)

const (
	testPhone    = "25375093"
	testPassword = "secret"
	testConfig   = "/etc/autosign.yaml"
	testLogFile  = "/var/log/autosign/auto_sign.log"

	coursesJSON = `[
		{"id":"1","courseSchedId":"9001","courseName":"Math","classroomName":"J3-101",
		 "classroomLongitude":"116.30","classroomLatitude":"39.98",
		 "classBeginTime":"2024-03-01 09:05:00","classEndTime":"2024-03-01 09:50:00"},
		{"id":"2","courseSchedId":"9002","courseName":"Physics","classroomName":"J3-102",
		 "classroomLongitude":null,"classroomLatitude":"null",
		 "classBeginTime":"2024-03-01 09:00:00","classEndTime":"2024-03-01 09:45:00"},
		{"id":"3","courseName":"Broken","classBeginTime":"","classEndTime":"2024-03-01 10:00:00"}
	]`
)

// testNow is the fake wall clock of every command test: both valid courses
// are inside their check-in window.
var testNow = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

// fakeIClass emulates the iClass endpoints the commands use.
type fakeIClass struct {
	srv *httptest.Server

	mu         sync.Mutex
	courses    string
	schedCode  int
	loginCalls int
	schedCalls int
	dates      []string
	signs      []url.Values
}

func newFakeIClass(t *testing.T) *fakeIClass {
	t.Helper()
	f := &fakeIClass{courses: coursesJSON}
	mux := http.NewServeMux()
	mux.HandleFunc("/app/user/login.action", func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		f.mu.Lock()
		f.loginCalls++
		f.mu.Unlock()
		if r.PostForm.Get("phone") != testPhone || r.PostForm.Get("password") != testPassword {
			fmt.Fprint(w, `{"STATUS":"1","ERRMSG":"wrong password"}`)
			return
		}
		fmt.Fprint(w, `{"STATUS":"0","result":{"sessionId":"S123","id":42,"realName":"Li Lei"}}`)
	})
	mux.HandleFunc("/app/course/get_stu_course_sched.action", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.schedCalls++
		f.dates = append(f.dates, r.URL.Query().Get("dateStr"))
		code, body := f.schedCode, f.courses
		f.mu.Unlock()
		if code != 0 {
			w.WriteHeader(code)
			return
		}
		fmt.Fprintf(w, `{"STATUS":"0","result":%s}`, body)
	})
	mux.HandleFunc("/ve/webservices/app_qxkt.shtml", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"STATUS":"0","result":[{"before_minute":"10","after_minute":"20"}]}`)
	})
	mux.HandleFunc("/app/service/get_socket_info.action", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"STATUS":"0"}`)
	})
	mux.HandleFunc("/app/course/stu_auto_sign.action", func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		f.mu.Lock()
		f.signs = append(f.signs, r.PostForm)
		f.mu.Unlock()
		fmt.Fprint(w, `{"STATUS":"0","result":{"stuSignStatus":"1"}}`)
	})
	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeIClass) signed() []url.Values {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]url.Values(nil), f.signs...)
}

func (f *fakeIClass) scheduleCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.schedCalls
}

func (f *fakeIClass) yaml(extra string) string {
	return fmt.Sprintf(`base_url: %s
ve_base_url: %s
timezone: UTC
submit_delay: 0s
retry_backoff: 1ms
log_file: %s
%s`, f.srv.URL, f.srv.URL, testLogFile, extra)
}

type recordNotifier struct {
	mu     sync.Mutex
	titles []string
	bodies []string
}

func (r *recordNotifier) Notify(_ context.Context, title, body string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.titles = append(r.titles, title)
	r.bodies = append(r.bodies, body)
	return nil
}

func (r *recordNotifier) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.titles)
}

type memStore struct {
	passwords map[string]string
}

func (m *memStore) SetPassword(account, password string) error {
	m.passwords[account] = password
	return nil
}

func (m *memStore) GetPassword(account string) (string, error) {
	pw, ok := m.passwords[account]
	if !ok {
		return "", keyring.ErrNotFound
	}
	return pw, nil
}

func (m *memStore) DeletePassword(account string) error {
	if _, ok := m.passwords[account]; !ok {
		return keyring.ErrNotFound
	}
	delete(m.passwords, account)
	return nil
}

type cmdHarness struct {
	fs       afero.Fs
	out      *bytes.Buffer
	env      map[string]string
	store    *memStore
	notifier *recordNotifier
}

// setupCmd points every seam of the package at in-memory fakes. The YAML
// config is written to testConfig and selected through the environment.
func setupCmd(t *testing.T, yaml string) *cmdHarness {
	t.Helper()
	h := &cmdHarness{
		fs:  afero.NewMemMapFs(),
		out: &bytes.Buffer{},
		env: map[string]string{
			"AUTOSIGN_CONFIG": testConfig,
			"ICLASS_PHONE":    testPhone,
			"SIGN_PASS":       testPassword,
		},
		store:    &memStore{passwords: map[string]string{}},
		notifier: &recordNotifier{},
	}
	if err := afero.WriteFile(h.fs, testConfig, []byte(yaml), 0644); err != nil {
		t.Fatal(err)
	}

	origFs, origLookup, origOut := appFs, lookupEnv, stdout
	origClock, origKeyring, origNotifier, origRead := newClock, newKeyring, newNotifier, readPassword
	t.Cleanup(func() {
		appFs, lookupEnv, stdout = origFs, origLookup, origOut
		newClock, newKeyring, newNotifier, readPassword = origClock, origKeyring, origNotifier, origRead
	})
	appFs = h.fs
	lookupEnv = config.MapLookup(h.env)
	stdout = h.out
	newClock = func() clock.Clock { return clock.Fake(testNow) }
	newKeyring = func() passwordStore { return h.store }
	newNotifier = func(string, *http.Client) notify.Notifier { return h.notifier }
	readPassword = func(string) (string, error) { return "", fmt.Errorf("unexpected prompt") }
	return h
}

func (h *cmdHarness) runLog(t *testing.T) string {
	t.Helper()
	b, err := afero.ReadFile(h.fs, testLogFile)
	if err != nil {
		t.Fatalf("read run log: %v", err)
	}
	return string(b)
}

func (f *fakeIClass) date(i int) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if i >= len(f.dates) {
		return ""
	}
	return f.dates[i]
}
