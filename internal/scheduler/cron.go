package scheduler

import (
	"fmt"
	"strings"
	"time"

	"github.com/adhocore/gronx"
)

// Validate checks a 5-field cron expression (minute hour day-of-month month
// day-of-week) that fires at least once a year.
func Validate(expr string) error {
	// gronx.IsValid also accepts 6-field expressions with seconds.
	if len(strings.Fields(expr)) != 5 || !gronx.IsValid(expr) {
		return fmt.Errorf("invalid cron expression %q, expected 5-field format (minute hour day-of-month month day-of-week)", expr)
	}
	if !hasOccurrenceWithinYear(expr, time.Now()) {
		return fmt.Errorf("cron expression %q never fires within a year", expr)
	}
	return nil
}

// Next returns the first time expr fires strictly after from.
func Next(expr string, from time.Time) (time.Time, error) {
	return gronx.NextTickAfter(expr, from, false)
}

// Recurring returns the event called name for the first occurrence of expr
// after from.
func Recurring(name, expr string, from time.Time) (Event, error) {
	at, err := Next(expr, from)
	if err != nil {
		return Event{}, err
	}
	return Event{Name: name, TriggerAt: at, CronExpr: expr}, nil
}

func hasOccurrenceWithinYear(expr string, from time.Time) bool {
	next, err := gronx.NextTickAfter(expr, from, false)
	if err != nil {
		return false
	}
	return next.Before(from.Add(365 * 24 * time.Hour))
}
