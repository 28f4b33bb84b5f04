// Package signer runs the check-in loop: it sweeps the day's windows on a
// clock and submits exactly one check-in per course.
package signer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/warpdl/autosign/internal/clock"
	"github.com/warpdl/autosign/internal/window"
	"github.com/warpdl/autosign/pkg/iclass"
	"github.com/warpdl/autosign/pkg/logger"
)

const (
	DEF_INTERVAL     = 60 * time.Second
	DEF_SUBMIT_DELAY = 3 * time.Second
	// DEF_MAC is sent as routerInfo when no MAC is configured.
	DEF_MAC = "00:db:6e:66:8a:d8"
)

// API is the part of the iClass client the loop needs.
type API interface {
	SocketInfo(ctx context.Context) (iclass.SocketInfo, error)
	SendSign(ctx context.Context, signURL string, payload iclass.SignPayload) (iclass.SignResult, error)
	UserID() string
}

// State of the loop after the latest sweep.
type State int

const (
	// Waiting means no course was due in the latest sweep.
	Waiting State = iota
	// Firing means at least one course was handled in the latest sweep.
	Firing
	// AllDone means every course has been attempted or missed.
	AllDone
)

func (s State) String() string {
	switch s {
	case Waiting:
		return "waiting"
	case Firing:
		return "firing"
	case AllDone:
		return "all done"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// WindowPolicy decides what happens to a course once its window closed.
type WindowPolicy string

const (
	// PolicyStrict submits only inside [Begin, End]. A course first seen
	// after End is recorded as Missed.
	PolicyStrict WindowPolicy = "strict"
	// PolicyOpen submits at any time after Begin.
	PolicyOpen WindowPolicy = "open"
)

// ParseWindowPolicy parses a policy name. The empty string means strict.
func ParseWindowPolicy(s string) (WindowPolicy, error) {
	switch WindowPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", PolicyStrict:
		return PolicyStrict, nil
	case PolicyOpen:
		return PolicyOpen, nil
	default:
		return "", fmt.Errorf("invalid window policy %q, expected strict or open", s)
	}
}

// Config holds the loop settings.
type Config struct {
	SignURL string
	// MAC is sent as routerInfo. Empty means DEF_MAC.
	MAC               string
	FallbackLongitude float64
	FallbackLatitude  float64
	DryRun            bool
	// Interval between sweeps. Zero or less means DEF_INTERVAL.
	Interval time.Duration
	// SubmitDelay is waited after each attempt. Zero disables it.
	SubmitDelay time.Duration
	Policy      WindowPolicy
}

// DefaultConfig returns the loop defaults with the given sign URL.
func DefaultConfig(signURL string) Config {
	return Config{
		SignURL:           signURL,
		FallbackLongitude: 116.397451,
		FallbackLatitude:  39.909187,
		Interval:          DEF_INTERVAL,
		SubmitDelay:       DEF_SUBMIT_DELAY,
		Policy:            PolicyStrict,
	}
}

// Signer owns the signed set of one run. It is not safe for concurrent use.
type Signer struct {
	api     API
	cfg     Config
	clk     clock.Clock
	log     logger.Logger
	courses []window.Course
	signed  map[string]bool
	state   State
	summary Summary
}

// New creates a Signer for courses. A nil clk means clock.Real() and a nil
// log discards output.
func New(api API, courses []window.Course, cfg Config, clk clock.Clock, log logger.Logger) *Signer {
	if cfg.Interval <= 0 {
		cfg.Interval = DEF_INTERVAL
	}
	if cfg.MAC == "" {
		cfg.MAC = DEF_MAC
	}
	if cfg.Policy == "" {
		cfg.Policy = PolicyStrict
	}
	if clk == nil {
		clk = clock.Real()
	}
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Signer{
		api:     api,
		cfg:     cfg,
		clk:     clk,
		log:     log,
		courses: courses,
		signed:  make(map[string]bool, len(courses)),
		state:   Waiting,
	}
}

// State returns the state after the latest sweep.
func (s *Signer) State() State { return s.state }

// Attempted reports whether the course with key has left the loop.
func (s *Signer) Attempted(key string) bool { return s.signed[key] }

// Summary returns the outcomes recorded so far.
func (s *Signer) Summary() Summary { return s.summary.clone() }

// Run sweeps until every course is attempted or ctx is done. The returned
// summary is valid in both cases; the error is ctx.Err() on interruption.
func (s *Signer) Run(ctx context.Context) (Summary, error) {
	s.summary.Started = s.clk.Now()
	for {
		if err := s.Sweep(ctx); err != nil {
			s.summary.Finished = s.clk.Now()
			return s.summary.clone(), err
		}
		if s.state == AllDone {
			s.log.Info("all courses have been attempted, leaving the check-in loop")
			s.summary.Finished = s.clk.Now()
			return s.summary.clone(), nil
		}
		wait := s.nextWake(s.clk.Now())
		if err := clock.Sleep(ctx, s.clk, wait); err != nil {
			s.summary.Finished = s.clk.Now()
			return s.summary.clone(), err
		}
	}
}

// Sweep checks every course against the time the sweep started and handles
// the due ones in schedule order. Submit delays and retries inside the sweep
// never push a due course out of its window. It only fails when ctx is done.
func (s *Signer) Sweep(ctx context.Context) error {
	if s.state == AllDone {
		return nil
	}
	s.summary.Sweeps++
	now := s.clk.Now()
	fired := false
	for _, c := range s.courses {
		key := c.Key()
		if s.signed[key] {
			continue
		}
		if now.Before(c.Sign.Begin) {
			continue
		}
		fired = true
		if s.cfg.Policy == PolicyStrict && !c.Sign.Contains(now) {
			s.log.Warning("course [%s] window closed at %s before it could be attempted, marking missed",
				c.CourseName, c.Sign.End.Format(iclass.TimeLayout))
			s.signed[key] = true
			s.record(Attempt{Course: c, Outcome: Missed, At: now})
			continue
		}
		if err := s.attempt(ctx, c); err != nil {
			return err
		}
	}

	switch {
	case s.pending() == 0:
		s.state = AllDone
	case fired:
		s.state = Firing
	default:
		s.state = Waiting
	}
	return nil
}

func (s *Signer) attempt(ctx context.Context, c window.Course) error {
	key := c.Key()
	s.log.Info("course [%s] entered its check-in window, preparing check-in", c.CourseName)

	lon, lat := s.resolveCoords(ctx, c)
	now := s.clk.Now()
	payload := iclass.SignPayload{
		UserID:        s.api.UserID(),
		CourseSchedID: c.ScheduleID(),
		RouterInfo:    s.cfg.MAC,
		Longitude:     lon,
		Latitude:      lat,
		MachineInfo:   iclass.MachineInfo,
		SignTime:      now,
	}
	a := Attempt{Course: c, At: now, Payload: payload}

	if s.cfg.DryRun {
		s.log.Info("dry run, not sending check-in: %s", payload.Values().Encode())
		a.Outcome = DryRun
	} else {
		res, err := s.api.SendSign(ctx, s.cfg.SignURL, payload)
		a.Result, a.Err = res, err
		switch {
		case err == nil:
			a.Outcome = Signed
			s.log.Info("course [%s] check-in accepted", c.CourseName)
		case iclass.IsRejected(err):
			a.Outcome = Rejected
			s.log.Error("course [%s] check-in rejected: %v", c.CourseName, err)
		default:
			a.Outcome = Failed
			s.log.Error("course [%s] check-in failed: courseSchedId=%s, url=%s: %v",
				c.CourseName, payload.CourseSchedID, s.cfg.SignURL, err)
		}
	}

	s.signed[key] = true
	s.record(a)
	s.log.Info("course [%s] check-in finished", c.CourseName)

	if err := ctx.Err(); err != nil {
		return err
	}
	return clock.Sleep(ctx, s.clk, s.cfg.SubmitDelay)
}

// resolveCoords picks the first usable coordinate from the live socket
// info, then the course record, then the configured fallback. Each axis
// is resolved independently.
func (s *Signer) resolveCoords(ctx context.Context, c window.Course) (lon, lat float64) {
	info, err := s.api.SocketInfo(ctx)
	if err != nil {
		s.log.Warning("live classroom info unavailable, using course coordinates: %v", err)
		info = iclass.SocketInfo{}
	}
	if id := strings.TrimSpace(string(info.CourseSchedID)); id != "" && id != c.ScheduleID() {
		s.log.Info("live classroom info refers to courseSchedId=%s, submitting for %s", id, c.ScheduleID())
	}
	lon = iclass.FirstCoord(s.cfg.FallbackLongitude, info.ClassroomLongitude, c.ClassroomLongitude)
	lat = iclass.FirstCoord(s.cfg.FallbackLatitude, info.ClassroomLatitude, c.ClassroomLatitude)
	return lon, lat
}

func (s *Signer) pending() int {
	n := 0
	for _, c := range s.courses {
		if !s.signed[c.Key()] {
			n++
		}
	}
	return n
}

// nextWake returns the sleep before the next sweep: the interval, or the
// time until the earliest pending window opens when that is sooner.
func (s *Signer) nextWake(now time.Time) time.Duration {
	wait := s.cfg.Interval
	for _, c := range s.courses {
		if s.signed[c.Key()] {
			continue
		}
		if d := c.Sign.Begin.Sub(now); d < wait {
			wait = d
		}
	}
	if wait < 0 {
		wait = 0
	}
	return wait
}

func (s *Signer) record(a Attempt) {
	s.summary.Attempts = append(s.summary.Attempts, a)
}
