package common

const (
	// AppName is the binary name and the keyring service.
	AppName = "autosign"

	// DefaultLogFile is the run log written next to the working directory.
	DefaultLogFile = "auto_sign.log"
	// DefaultEnvFile is loaded when present.
	DefaultEnvFile = ".env"
	// DefaultWatchSchedule starts the day's run at 07:00.
	DefaultWatchSchedule = "0 7 * * *"
)
