// Package common holds names shared by the autosign command and its
// configuration layer.
package common

// Environment variable names for configuration.
const (
	// PhoneEnv is the student number used to log in.
	PhoneEnv = "ICLASS_PHONE"
	// UsernameEnv is an alias of PhoneEnv.
	UsernameEnv = "ICLASS_USERNAME"

	// PasswordEnv is the account password.
	PasswordEnv = "SIGN_PASS"
	// PasswordAliasEnv is an alias of PasswordEnv.
	PasswordAliasEnv = "ICLASS_PASSWORD"

	// LongitudeEnv and LatitudeEnv override the fallback coordinates.
	LongitudeEnv = "LONGITUDE"
	LatitudeEnv  = "LATITUDE"

	// PushKeyEnv is the ServerChan key for run summaries.
	PushKeyEnv = "PUSH_KEY"

	BaseURLEnv   = "ICLASS_BASE_URL"
	VEBaseURLEnv = "ICLASS_VE_BASE_URL"
	SignURLEnv   = "ICLASS_SIGN_URL"

	// DryRunEnv enables dry-run mode when set to a true value.
	DryRunEnv = "ICLASS_DRY_RUN"

	// MACEnv overrides the routerInfo MAC address.
	MACEnv = "ICLASS_MAC"

	// ConfigEnv is the path of the YAML config file.
	ConfigEnv = "AUTOSIGN_CONFIG"
	// LogFileEnv is the path of the run log.
	LogFileEnv = "AUTOSIGN_LOG_FILE"
	// ProxyEnv is an http, https or socks5 proxy URL.
	ProxyEnv = "AUTOSIGN_PROXY"
)
