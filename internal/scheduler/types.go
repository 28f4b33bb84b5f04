package scheduler

import "time"

// Event is a pending trigger.
type Event struct {
	// Name is passed to the callback.
	Name string
	// TriggerAt is the wall-clock time the event fires at.
	TriggerAt time.Time
	// CronExpr makes the event recurring. Empty means one-shot.
	CronExpr string
}
