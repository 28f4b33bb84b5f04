// Package window turns raw schedule records into check-in windows.
package window

import (
	"strings"
	"time"

	"github.com/warpdl/autosign/pkg/iclass"
)

// Window is the closed interval during which a course accepts a check-in.
type Window struct {
	Begin time.Time
	End   time.Time
}

// Contains reports whether t lies within [Begin, End].
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Begin) && !t.After(w.End)
}

// Course is a schedule record annotated with its window and parsed class
// times.
type Course struct {
	iclass.Course
	ClassBegin time.Time
	ClassEnd   time.Time
	Sign       Window
}

// Key identifies the course within one run. Back-to-back classes may share
// a schedule id, so the class begin time is part of the key.
func (c Course) Key() string {
	return c.ScheduleID() + "@" + c.ClassBegin.Format(iclass.TimeLayout)
}

// Build annotates every record that has valid class times with its window
// [begin-before, end+after] and returns them in input order, together with
// the number of records it dropped. Negative offsets count as zero. A nil
// loc means time.Local.
func Build(courses []iclass.Course, before, after int, loc *time.Location) ([]Course, int) {
	if loc == nil {
		loc = time.Local
	}
	if before < 0 {
		before = 0
	}
	if after < 0 {
		after = 0
	}
	out := make([]Course, 0, len(courses))
	dropped := 0
	for _, c := range courses {
		begin, err := time.ParseInLocation(iclass.TimeLayout, strings.TrimSpace(c.ClassBeginTime), loc)
		if err != nil {
			dropped++
			continue
		}
		end, err := time.ParseInLocation(iclass.TimeLayout, strings.TrimSpace(c.ClassEndTime), loc)
		if err != nil || end.Before(begin) {
			dropped++
			continue
		}
		out = append(out, Course{
			Course:     c,
			ClassBegin: begin,
			ClassEnd:   end,
			Sign: Window{
				Begin: begin.Add(-time.Duration(before) * time.Minute),
				End:   end.Add(time.Duration(after) * time.Minute),
			},
		})
	}
	return out, dropped
}
