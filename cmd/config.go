package cmd

import "time"

const (
	// DEF_NOTIFY_TIMEOUT bounds the summary push after the loop ended.
	DEF_NOTIFY_TIMEOUT = 15 * time.Second
)

const DESCRIPTION = `
autosign checks you in to every class of the day on iClass. It logs in,
fetches the day's schedule, opens a check-in window around each course
and submits exactly one check-in per course as soon as its window opens.
`

const (
	RunDescription = `The run command performs one full day: login, schedule fetch,
window computation and the check-in loop. It returns once every
course has been attempted. This is the default command.

Example:
        autosign run
                OR
        autosign --dry-run --date 20240301 run

`
	CoursesDescription = `The courses command logs in and prints the day's courses with
their check-in windows and the coordinates that would be
submitted. Nothing is submitted.

Example:
        autosign courses
        autosign --date 20240301 courses

`
	WatchDescription = `The watch command keeps running and starts a full day run every
time the cron expression fires (5 fields: minute hour day-of-month
month day-of-week). Use --now to also run once immediately.

Example:
        autosign watch
        autosign watch --schedule "30 6 * * 1-5" --now

`
	CredentialsDescription = `The credentials command stores the account password in the
operating system keyring, or removes it. A stored password is used
when none is set in the config file or the environment.

Example:
        autosign --phone 25375093 credentials set
        autosign credentials delete

`
)

const HELP_TEMPL = `Usage: {{if .UsageText}}{{.UsageText}}{{else}}{{.HelpName}} {{if .VisibleFlags}}[global options]{{end}}{{if .Commands}} command [command options]{{end}} {{if .ArgsUsage}}{{.ArgsUsage}}{{else}}[arguments...]{{end}}{{end}}
{{.Description}}{{if .VisibleCommands}}
Commands:{{range .VisibleCategories}}{{if .Name}}

{{.Name}}:{{range .VisibleCommands}}
  {{join .Names ", "}}{{"\t"}}{{.Usage}}{{end}}{{else}}{{range .VisibleCommands}}
{{"\t"}}{{index .Names 0}}{{"\t:\t"}}{{.Usage}}{{end}}{{end}}{{end}}{{end}}{{if .VisibleFlags}}

Global Flags:{{range .VisibleFlags}}
  {{.}}{{end}}{{end}}

Use "{{.HelpName}} help <command>" for more information about any command.

`

const CMD_HELP_TEMPL = `{{if .Description}}{{.Description}}{{else}}{{.HelpName}} - {{.Usage}}

{{end}}Usage:
        {{.HelpName}} {{if .UsageText}}{{.UsageText}}{{else}}[arguments...]{{end}}{{if .VisibleFlags}}

Supported Flags:{{range .VisibleFlags}}
  {{.}}{{end}}{{end}}

`
