package cmd

import (
	"context"
	"strings"

	"github.com/urfave/cli"

	cmdcommon "github.com/warpdl/autosign/cmd/common"
	"github.com/warpdl/autosign/internal/scheduler"
)

const watchEvent = "daily-run"

func watch(ctx *cli.Context) error {
	if ctx.NArg() > 0 {
		return unexpectedArgs(ctx)
	}
	e, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer e.log.Close()
	expr := strings.TrimSpace(watchSchedule)
	if expr == "" {
		expr = e.cfg.WatchSchedule
	}
	if err := scheduler.Validate(expr); err != nil {
		return err
	}
	sctx, stop := signalContext()
	defer stop()
	return e.watch(sctx, expr, watchNow, func(err error) {
		cmdcommon.PrintRuntimeErr(ctx, "watch", "run", err)
	})
}

// watch runs a full day every time expr fires until ctx is done. A failed
// run is reported through onErr and does not stop watching.
func (e *env) watch(ctx context.Context, expr string, now bool, onErr func(error)) error {
	runOnce := func() {
		client, err := e.newClient()
		if err == nil {
			_, err = e.runDay(ctx, client, e.clk.Now().In(e.loc))
		}
		if err != nil && ctx.Err() == nil {
			e.log.Error("scheduled run failed: %v", err)
			onErr(err)
		}
	}
	if now {
		runOnce()
	}

	first, err := scheduler.Recurring(watchEvent, expr, e.clk.Now())
	if err != nil {
		return err
	}
	sched := scheduler.New(ctx, e.clk, func(ev scheduler.Event) {
		e.log.Info("schedule %q fired at %s", ev.CronExpr, ev.TriggerAt.Format("2006-01-02 15:04"))
		runOnce()
	})
	sched.Add(first)
	e.log.Info("watching %q, next run at %s", expr, first.TriggerAt.In(e.loc).Format("2006-01-02 15:04"))

	<-ctx.Done()
	<-sched.Done()
	e.log.Info("stopped watching")
	return nil
}
