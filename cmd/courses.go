package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/urfave/cli"

	"github.com/warpdl/autosign/pkg/iclass"
)

const clockLayout = "15:04"

func courses(ctx *cli.Context) error {
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
	list, err := e.prepare(sctx, client, date)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		fmt.Fprintf(stdout, "No courses on %s.\n", date.Format("2006-01-02"))
		return nil
	}

	w := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "#\tCOURSE\tSCHED ID\tCLASSROOM\tCLASS\tCHECK-IN\tLONGITUDE\tLATITUDE")
	for i, c := range list {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s-%s\t%s-%s\t%.6f\t%.6f\n",
			i+1,
			c.CourseName,
			c.ScheduleID(),
			c.ClassroomName,
			c.ClassBegin.Format(clockLayout), c.ClassEnd.Format(clockLayout),
			c.Sign.Begin.Format(clockLayout), c.Sign.End.Format(clockLayout),
			iclass.FirstCoord(e.cfg.Longitude, c.ClassroomLongitude),
			iclass.FirstCoord(e.cfg.Latitude, c.ClassroomLatitude),
		)
	}
	return w.Flush()
}
