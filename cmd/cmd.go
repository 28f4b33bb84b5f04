// Package cmd wires the autosign command-line application.
package cmd

import (
	"fmt"
	"runtime"

	"github.com/urfave/cli"

	cmdcommon "github.com/warpdl/autosign/cmd/common"
	"github.com/warpdl/autosign/common"
)

type BuildArgs struct {
	Version   string
	BuildType string
	Date      string
	Commit    string
}

func Execute(args []string, bArgs BuildArgs) error {
	app := cli.App{
		Name:                  common.AppName,
		HelpName:              common.AppName,
		Usage:                 "automatic iClass attendance check-in",
		Version:               fmt.Sprintf("%s-%s", bArgs.Version, bArgs.BuildType),
		UsageText:             "autosign [global options] <command> [arguments...]",
		Description:           DESCRIPTION,
		CustomAppHelpTemplate: HELP_TEMPL,
		OnUsageError:          cmdcommon.UsageErrorCallback,
		Commands: []cli.Command{
			{
				Name:               "run",
				Aliases:            []string{"r"},
				Usage:              "check in to every course of the day",
				Action:             run,
				OnUsageError:       cmdcommon.UsageErrorCallback,
				CustomHelpTemplate: CMD_HELP_TEMPL,
				Description:        RunDescription,
			},
			{
				Name:               "courses",
				Aliases:            []string{"c"},
				Usage:              "list the day's courses and their check-in windows",
				Action:             courses,
				OnUsageError:       cmdcommon.UsageErrorCallback,
				CustomHelpTemplate: CMD_HELP_TEMPL,
				Description:        CoursesDescription,
			},
			{
				Name:                   "watch",
				Aliases:                []string{"w"},
				Usage:                  "run every day on a cron schedule",
				Action:                 watch,
				OnUsageError:           cmdcommon.UsageErrorCallback,
				CustomHelpTemplate:     CMD_HELP_TEMPL,
				Description:            WatchDescription,
				Flags:                  watchFlags,
				UseShortOptionHandling: true,
			},
			{
				Name:               "credentials",
				Usage:              "store or remove the password in the OS keyring",
				OnUsageError:       cmdcommon.UsageErrorCallback,
				CustomHelpTemplate: CMD_HELP_TEMPL,
				Description:        CredentialsDescription,
				Subcommands: []cli.Command{
					{
						Name:   "set",
						Usage:  "prompt for the password and store it",
						Action: credentialsSet,
					},
					{
						Name:   "delete",
						Usage:  "remove the stored password",
						Action: credentialsDelete,
					},
				},
			},
			{
				Name:    "help",
				Aliases: []string{"h"},
				Usage:   "prints the help message",
				Action:  cmdcommon.Help,
			},
			{
				Name:               "version",
				Aliases:            []string{"v"},
				Usage:              "prints installed version of autosign",
				UsageText:          " ",
				CustomHelpTemplate: CMD_HELP_TEMPL,
				Action:             cmdcommon.GetVersion,
			},
		},
		Action:      run,
		Flags:       globalFlags,
		HideHelp:    true,
		HideVersion: true,
	}
	cmdcommon.VersionCmdStr = fmt.Sprintf("%s %s (%s_%s)\nBuild: %s=%s\n",
		app.Name,
		app.Version,
		runtime.GOOS,
		runtime.GOARCH,
		bArgs.Date, bArgs.Commit,
	)
	return app.Run(args)
}

// unexpectedArgs reports stray positional arguments with the matching help.
func unexpectedArgs(ctx *cli.Context) error {
	return cmdcommon.UsageErrorCallback(ctx, fmt.Errorf("unexpected argument %q", ctx.Args().First()), false)
}
