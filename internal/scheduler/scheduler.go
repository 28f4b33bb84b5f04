package scheduler

import (
	"context"
	"time"

	"github.com/warpdl/autosign/internal/clock"
)

const maxSleepCap = 60 * time.Second

// Scheduler owns the event heap. Added events are processed in call
// order by its goroutine.
type Scheduler struct {
	adds chan Event
	ctx  context.Context
	clk  clock.Clock
	done chan struct{}
}

// New starts a Scheduler. onTrigger runs on the scheduler goroutine, so a
// long callback delays later events instead of overlapping them. The
// goroutine exits when ctx is cancelled. A nil clk means clock.Real().
func New(ctx context.Context, clk clock.Clock, onTrigger func(Event)) *Scheduler {
	if clk == nil {
		clk = clock.Real()
	}
	s := &Scheduler{
		adds: make(chan Event, 64),
		ctx:  ctx,
		clk:  clk,
		done: make(chan struct{}),
	}
	go s.run(onTrigger)
	return s
}

// Add enqueues an event. It returns without effect once ctx is done.
func (s *Scheduler) Add(event Event) {
	select {
	case s.adds <- event:
	case <-s.ctx.Done():
	}
}

// Done is closed once the scheduler goroutine has exited.
func (s *Scheduler) Done() <-chan struct{} { return s.done }

func (s *Scheduler) run(onTrigger func(Event)) {
	defer close(s.done)
	h := &eventHeap{}

	wake := func() <-chan time.Time {
		if h.Len() == 0 {
			return nil
		}
		dur := (*h)[0].TriggerAt.Sub(s.clk.Now())
		if dur > maxSleepCap {
			dur = maxSleepCap
		}
		if dur < 0 {
			dur = 0
		}
		return s.clk.After(dur)
	}

	timerCh := wake()
	for {
		select {
		case <-s.ctx.Done():
			return

		case event := <-s.adds:
			heapPush(h, event)
			timerCh = wake()

		case <-timerCh:
			now := s.clk.Now()
			for h.Len() > 0 && !(*h)[0].TriggerAt.After(now) {
				event := heapPop(h)
				onTrigger(event)
				if s.ctx.Err() != nil {
					return
				}
				if next, ok := event.next(s.clk.Now()); ok {
					heapPush(h, next)
				}
			}
			timerCh = wake()
		}
	}
}

// next returns the following occurrence of a recurring event, strictly
// after now.
func (e Event) next(now time.Time) (Event, bool) {
	if e.CronExpr == "" {
		return Event{}, false
	}
	at, err := Next(e.CronExpr, now)
	if err != nil {
		return Event{}, false
	}
	return Event{Name: e.Name, TriggerAt: at, CronExpr: e.CronExpr}, true
}
