package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/cli"

	"github.com/warpdl/autosign/internal/signer"
	"github.com/warpdl/autosign/internal/window"
	"github.com/warpdl/autosign/pkg/iclass"
)

// dayClient is the iClass client as seen by one day run.
type dayClient interface {
	signer.API
	Login(ctx context.Context, phone, password string) (iclass.Session, error)
	CourseSchedule(ctx context.Context, date time.Time) ([]iclass.Course, error)
	SignPolicy(ctx context.Context) (iclass.SignPolicy, error)
}

func run(ctx *cli.Context) error {
	if ctx.NArg() > 0 {
		return unexpectedArgs(ctx)
	}
	e, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer e.log.Close()
	date, err := e.day()
	if err != nil {
		return err
	}
	sctx, stop := signalContext()
	defer stop()
	client, err := e.newClient()
	if err != nil {
		return err
	}
	_, err = e.runDay(sctx, client, date)
	return err
}

// prepare logs in, fetches the schedule and the sign policy and builds the
// check-in windows. Login and schedule failures are fatal.
func (e *env) prepare(ctx context.Context, client dayClient, date time.Time) ([]window.Course, error) {
	cfg := e.cfg
	if cfg.Phone == "" && cfg.ContinueWithoutLogin {
		e.log.Warning("no phone configured, continuing without login")
	} else if sess, err := client.Login(ctx, cfg.Phone, cfg.Password); err != nil {
		if !cfg.ContinueWithoutLogin {
			return nil, fmt.Errorf("login: %w", err)
		}
		e.log.Warning("login failed, continuing without login: %v", err)
	} else {
		e.log.Info("logged in as %s (user id %s)", sess.Name, sess.UserID)
	}

	records, err := client.CourseSchedule(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("fetch schedule: %w", err)
	}
	e.log.Info("%d course(s) scheduled on %s", len(records), date.Format("2006-01-02"))

	policy, err := client.SignPolicy(ctx)
	if err != nil {
		e.log.Warning("sign policy unavailable, using %d/%d minutes: %v",
			cfg.BeforeMinutes, cfg.AfterMinutes, err)
	}
	before, after := policy.Resolve(cfg.BeforeMinutes, cfg.AfterMinutes)
	e.log.Info("check-in opens %d minute(s) before class and closes %d minute(s) after", before, after)

	courses, dropped := window.Build(records, before, after, e.loc)
	if dropped > 0 {
		e.log.Warning("skipped %d course record(s) with missing or invalid class times", dropped)
	}
	for i, c := range courses {
		lon := iclass.FirstCoord(cfg.Longitude, c.ClassroomLongitude)
		lat := iclass.FirstCoord(cfg.Latitude, c.ClassroomLatitude)
		e.log.Info("%d. [%s] %s, courseSchedId=%s, window %s ~ %s, coords %.6f,%.6f",
			i+1, c.CourseName, c.ClassroomName, c.ScheduleID(),
			c.Sign.Begin.Format(iclass.TimeLayout), c.Sign.End.Format(iclass.TimeLayout), lon, lat)
	}
	return courses, nil
}

// runDay performs one full day and pushes the summary. An interrupt ends
// the loop early without an error.
func (e *env) runDay(ctx context.Context, client dayClient, date time.Time) (signer.Summary, error) {
	runID := uuid.NewString()
	e.log.Info("run %s started (dry_run=%t, window_policy=%s)", runID, e.cfg.DryRun, e.cfg.WindowPolicy)

	courses, err := e.prepare(ctx, client, date)
	if err != nil {
		e.log.Error("run %s aborted: %v", runID, err)
		return signer.Summary{}, err
	}

	s := signer.New(client, courses, e.cfg.SignerConfig(), e.clk, e.log)
	summary, err := s.Run(ctx)
	if err != nil {
		if !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			return summary, err
		}
		e.log.Warning("run %s interrupted with %d course(s) left", runID, len(courses)-len(summary.Attempts))
		for _, c := range courses {
			if !s.Attempted(c.Key()) {
				e.log.Warning("course [%s] not attempted, window %s ~ %s", c.CourseName,
					c.Sign.Begin.Format(iclass.TimeLayout), c.Sign.End.Format(iclass.TimeLayout))
			}
		}
	}

	title := summary.Title()
	report := summary.Report()
	e.log.Info("run %s finished: %s", runID, title)
	if report != "" {
		e.log.Info("summary:\n%s", report)
	}
	e.notify(ctx, runID, title, report)
	return summary, nil
}

func (e *env) notify(ctx context.Context, runID, title, report string) {
	nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), DEF_NOTIFY_TIMEOUT)
	defer cancel()
	body := fmt.Sprintf("run %s\n\n%s", runID, report)
	if err := e.notifier.Notify(nctx, "autosign: "+title, body); err != nil {
		e.log.Warning("push notification failed: %v", err)
	}
}
