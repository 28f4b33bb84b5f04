package signer

import (
	"fmt"
	"strings"
	"time"

	"github.com/warpdl/autosign/internal/window"
	"github.com/warpdl/autosign/pkg/iclass"
)

// Outcome of one course in a run.
type Outcome int

const (
	// Signed means the service accepted the check-in.
	Signed Outcome = iota
	// Rejected means the service answered with an application-level error.
	Rejected
	// Failed means the request could not complete.
	Failed
	// DryRun means the payload was built and logged but not sent.
	DryRun
	// Missed means the window closed before the course was attempted.
	Missed
)

var outcomeNames = [...]string{
	Signed:   "signed",
	Rejected: "rejected",
	Failed:   "failed",
	DryRun:   "dry-run",
	Missed:   "missed",
}

func (o Outcome) String() string {
	if o >= 0 && int(o) < len(outcomeNames) {
		return outcomeNames[o]
	}
	return fmt.Sprintf("Outcome(%d)", int(o))
}

// Attempt records what happened to one course.
type Attempt struct {
	Course  window.Course
	Outcome Outcome
	At      time.Time
	Payload iclass.SignPayload
	Result  iclass.SignResult
	Err     error
}

// Summary is the result of a run.
type Summary struct {
	Started  time.Time
	Finished time.Time
	Sweeps   int
	Attempts []Attempt
}

// Count returns the number of attempts with outcome o.
func (s Summary) Count(o Outcome) int {
	n := 0
	for _, a := range s.Attempts {
		if a.Outcome == o {
			n++
		}
	}
	return n
}

// Title is a one-line digest, e.g. "2 signed, 1 missed".
func (s Summary) Title() string {
	if len(s.Attempts) == 0 {
		return "no courses attempted"
	}
	var parts []string
	for o := Signed; o <= Missed; o++ {
		if n := s.Count(o); n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, o))
		}
	}
	return strings.Join(parts, ", ")
}

// Report renders one line per attempt.
func (s Summary) Report() string {
	var b strings.Builder
	for i, a := range s.Attempts {
		fmt.Fprintf(&b, "%d. %s (%s) %s at %s", i+1, a.Course.CourseName, a.Course.ScheduleID(), a.Outcome, a.At.Format(iclass.TimeLayout))
		if a.Err != nil {
			fmt.Fprintf(&b, ": %v", a.Err)
		}
		b.WriteByte('\n')
	}
	return b.String()
}

func (s Summary) clone() Summary {
	out := s
	out.Attempts = append([]Attempt(nil), s.Attempts...)
	return out
}
