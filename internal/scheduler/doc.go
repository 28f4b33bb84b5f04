// Package scheduler fires named events at wall-clock times. It runs a single
// goroutine over a min-heap of events sorted by trigger time and never
// sleeps longer than 60 seconds, so clock steps, DST transitions and system
// sleep delay an event by at most one cap.
//
// Recurring events carry a 5-field cron expression; after firing, the next
// occurrence is computed from the clock and pushed back onto the heap. The
// watch command uses it to start the day's check-in run every morning.
package scheduler
