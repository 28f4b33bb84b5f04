package cmd

import (
	"github.com/urfave/cli"

	"github.com/warpdl/autosign/common"
)

const (
	flagConfig       = "config"
	flagEnvFile      = "env-file"
	flagPhone        = "phone"
	flagLogFile      = "log-file"
	flagLogFormat    = "log-format"
	flagDryRun       = "dry-run"
	flagProxy        = "proxy"
	flagWindowPolicy = "window-policy"
	flagDate         = "date"
)

var (
	configPath   string
	envFile      string
	phone        string
	logFile      string
	logFormat    string
	dryRun       bool
	proxyURL     string
	windowPolicy string
	dateStr      string

	globalFlags = []cli.Flag{
		cli.StringFlag{
			Name:        flagConfig,
			Usage:       "path of the YAML config file (env: " + common.ConfigEnv + ")",
			Destination: &configPath,
		},
		cli.StringFlag{
			Name:        flagEnvFile,
			Usage:       "path of the .env file (default: ./" + common.DefaultEnvFile + " when present)",
			Destination: &envFile,
		},
		cli.StringFlag{
			Name:        flagPhone,
			Usage:       "student number used to log in",
			Destination: &phone,
		},
		cli.StringFlag{
			Name:        flagLogFile,
			Usage:       "append-only run log, empty disables it (default: " + common.DefaultLogFile + ")",
			Destination: &logFile,
		},
		cli.StringFlag{
			Name:        flagLogFormat,
			Usage:       "log format: text or json",
			Destination: &logFormat,
		},
		cli.BoolFlag{
			Name:        flagDryRun,
			Usage:       "build and log the check-in requests without sending them",
			Destination: &dryRun,
		},
		cli.StringFlag{
			Name:        flagProxy,
			Usage:       "http, https or socks5 proxy URL",
			Destination: &proxyURL,
		},
		cli.StringFlag{
			Name:        flagWindowPolicy,
			Usage:       "strict submits only inside the window, open also after it closed",
			Destination: &windowPolicy,
		},
		cli.StringFlag{
			Name:        flagDate,
			Usage:       "schedule date as YYYYMMDD (default: today)",
			Destination: &dateStr,
		},
	}
)

var (
	watchSchedule string
	watchNow      bool

	watchFlags = []cli.Flag{
		cli.StringFlag{
			Name:        "schedule, s",
			Usage:       "5-field cron expression (default: watch_schedule, " + common.DefaultWatchSchedule + ")",
			Destination: &watchSchedule,
		},
		cli.BoolFlag{
			Name:        "now",
			Usage:       "run once immediately before waiting for the schedule",
			Destination: &watchNow,
		},
	}
)
