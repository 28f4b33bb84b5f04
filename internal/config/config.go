// Package config loads the autosign configuration.
//
// Values are layered, later layers winning: built-in defaults, the optional
// YAML file, the .env file and the process environment, then command-line
// flags (applied by the cmd package).
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/warpdl/autosign/common"
	"github.com/warpdl/autosign/internal/signer"
	"github.com/warpdl/autosign/pkg/iclass"
	"github.com/warpdl/autosign/pkg/logger"
	"github.com/warpdl/autosign/pkg/retry"
)

const (
	DEF_BASE_URL = "https://iclass.buaa.edu.cn:8181"
	DEF_MAC      = "A0:EE:1A:E0:A2:0E"

	signPath = "/app/course/stu_auto_sign.action"
)

var (
	ErrMissingPhone    = errors.New("missing phone: set " + common.PhoneEnv + " or use --phone")
	ErrMissingPassword = errors.New("missing password: set " + common.PasswordEnv + " or run 'autosign credentials set'")
)

// Config is the full configuration of one run.
type Config struct {
	BaseURL   string `yaml:"base_url"`
	VEBaseURL string `yaml:"ve_base_url"`
	SignURL   string `yaml:"sign_url"`

	Phone    string `yaml:"phone"`
	Password string `yaml:"password"`

	DryRun bool `yaml:"dry_run"`
	// ContinueWithoutLogin keeps going after a failed login, for debugging.
	ContinueWithoutLogin bool `yaml:"continue_without_login"`
	InsecureSkipVerify   bool `yaml:"insecure_skip_verify"`
	Proxy                string `yaml:"proxy"`

	Timeout      time.Duration `yaml:"timeout"`
	Retries      int           `yaml:"retries"`
	RetryBackoff time.Duration `yaml:"retry_backoff"`

	BeforeMinutes int     `yaml:"before_minute_default"`
	AfterMinutes  int     `yaml:"after_minute_default"`
	Longitude     float64 `yaml:"fake_longitude"`
	Latitude      float64 `yaml:"fake_latitude"`
	MAC           string  `yaml:"manual_mac"`

	SweepInterval time.Duration `yaml:"sweep_interval"`
	SubmitDelay   time.Duration `yaml:"submit_delay"`
	WindowPolicy  string        `yaml:"window_policy"`
	// Timezone of the schedule timestamps. Empty means the local zone.
	Timezone string `yaml:"timezone"`

	LogFile   string `yaml:"log_file"`
	LogFormat string `yaml:"log_format"`

	PushKey       string `yaml:"push_key"`
	WatchSchedule string `yaml:"watch_schedule"`
}

// Default returns the built-in configuration. The ve base URL and the
// sign URL are derived from the base URL by Normalize.
func Default() *Config {
	return &Config{
		BaseURL:            DEF_BASE_URL,
		InsecureSkipVerify: true,
		Timeout:            iclass.DEF_TIMEOUT,
		Retries:            retry.DEF_MAX_ATTEMPTS,
		RetryBackoff:       retry.DEF_BASE_DELAY,
		BeforeMinutes:      5,
		AfterMinutes:       30,
		Longitude:          116.397451,
		Latitude:           39.909187,
		MAC:                DEF_MAC,
		SweepInterval:      signer.DEF_INTERVAL,
		SubmitDelay:        signer.DEF_SUBMIT_DELAY,
		WindowPolicy:       string(signer.PolicyStrict),
		LogFile:            common.DefaultLogFile,
		LogFormat:          logger.FormatText,
		WatchSchedule:      common.DefaultWatchSchedule,
	}
}

// Load returns the defaults overlaid with the YAML file at path. An empty
// path returns the defaults.
func Load(fs afero.Fs, path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// ReadDotEnv parses the .env file at path. A missing file yields an empty
// map when optional is set.
func ReadDotEnv(fs afero.Fs, path string, optional bool) (map[string]string, error) {
	f, err := fs.Open(path)
	if err != nil {
		if optional && errors.Is(err, os.ErrNotExist) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("read env file: %w", err)
	}
	defer f.Close()
	vars, err := godotenv.Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parse env file %s: %w", path, err)
	}
	return vars, nil
}

// LookupFunc matches os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// Chain returns a lookup that consults each function in order. It is used
// to let the process environment win over the .env file.
func Chain(fns ...LookupFunc) LookupFunc {
	return func(key string) (string, bool) {
		for _, fn := range fns {
			if fn == nil {
				continue
			}
			if v, ok := fn(key); ok {
				return v, true
			}
		}
		return "", false
	}
}

// MapLookup adapts a map to a LookupFunc.
func MapLookup(m map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

// ApplyEnv overlays the environment variables found by lookup. Empty
// values are ignored.
func (c *Config) ApplyEnv(lookup LookupFunc) error {
	get := func(keys ...string) (string, bool) {
		for _, k := range keys {
			if v, ok := lookup(k); ok && strings.TrimSpace(v) != "" {
				return strings.TrimSpace(v), true
			}
		}
		return "", false
	}

	if v, ok := get(common.PhoneEnv, common.UsernameEnv); ok {
		c.Phone = v
	}
	if v, ok := get(common.PasswordEnv, common.PasswordAliasEnv); ok {
		c.Password = v
	}
	if v, ok := get(common.BaseURLEnv); ok {
		c.BaseURL = v
	}
	if v, ok := get(common.VEBaseURLEnv); ok {
		c.VEBaseURL = v
	}
	if v, ok := get(common.SignURLEnv); ok {
		c.SignURL = v
	}
	if v, ok := get(common.MACEnv); ok {
		c.MAC = v
	}
	if v, ok := get(common.PushKeyEnv); ok {
		c.PushKey = v
	}
	if v, ok := get(common.LogFileEnv); ok {
		c.LogFile = v
	}
	if v, ok := get(common.ProxyEnv); ok {
		c.Proxy = v
	}
	if v, ok := get(common.DryRunEnv); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", common.DryRunEnv, err)
		}
		c.DryRun = b
	}
	if v, ok := get(common.LongitudeEnv); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%s: %w", common.LongitudeEnv, err)
		}
		c.Longitude = f
	}
	if v, ok := get(common.LatitudeEnv); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%s: %w", common.LatitudeEnv, err)
		}
		c.Latitude = f
	}
	return nil
}

// Normalize trims the string settings, derives the ve base URL from the
// base URL when unset, downgrades the port-88 ve host to plain http and
// defaults the sign URL.
func (c *Config) Normalize() {
	c.BaseURL = strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	c.VEBaseURL = strings.TrimRight(strings.TrimSpace(c.VEBaseURL), "/")
	c.SignURL = strings.TrimSpace(c.SignURL)
	c.Phone = strings.TrimSpace(c.Phone)
	c.MAC = strings.TrimSpace(c.MAC)
	c.WindowPolicy = strings.ToLower(strings.TrimSpace(c.WindowPolicy))
	c.LogFormat = strings.ToLower(strings.TrimSpace(c.LogFormat))
	if c.LogFormat == "" {
		c.LogFormat = logger.FormatText
	}

	if c.VEBaseURL == "" {
		c.VEBaseURL = strings.Replace(c.BaseURL, ":8181", ":88", 1)
	}
	// The ve host on port 88 only speaks plain http.
	if strings.HasPrefix(c.VEBaseURL, "https://") && strings.HasSuffix(hostPort(c.VEBaseURL), ":88") {
		c.VEBaseURL = "http://" + strings.TrimPrefix(c.VEBaseURL, "https://")
	}
	if c.SignURL == "" {
		c.SignURL = c.BaseURL + signPath
	}
}

// Validate reports the first invalid setting. Credentials are checked by
// ValidateCredentials so that the keyring can fill the password first.
func (c *Config) Validate() error {
	urls := []struct{ name, raw string }{
		{"base_url", c.BaseURL},
		{"ve_base_url", c.VEBaseURL},
		{"sign_url", c.SignURL},
	}
	for _, u := range urls {
		parsed, err := url.Parse(u.raw)
		if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
			return fmt.Errorf("invalid %s %q", u.name, u.raw)
		}
	}
	switch {
	case c.Timeout <= 0:
		return fmt.Errorf("timeout must be positive, got %s", c.Timeout)
	case c.Retries < 1:
		return fmt.Errorf("retries must be at least 1, got %d", c.Retries)
	case c.RetryBackoff < 0:
		return fmt.Errorf("retry_backoff must not be negative, got %s", c.RetryBackoff)
	case c.BeforeMinutes < 0 || c.AfterMinutes < 0:
		return fmt.Errorf("window offsets must not be negative, got %d/%d", c.BeforeMinutes, c.AfterMinutes)
	case c.Longitude < -180 || c.Longitude > 180:
		return fmt.Errorf("fake_longitude out of range: %v", c.Longitude)
	case c.Latitude < -90 || c.Latitude > 90:
		return fmt.Errorf("fake_latitude out of range: %v", c.Latitude)
	case c.SweepInterval <= 0:
		return fmt.Errorf("sweep_interval must be positive, got %s", c.SweepInterval)
	case c.SubmitDelay < 0:
		return fmt.Errorf("submit_delay must not be negative, got %s", c.SubmitDelay)
	}
	if _, err := signer.ParseWindowPolicy(c.WindowPolicy); err != nil {
		return err
	}
	if c.LogFormat != logger.FormatText && c.LogFormat != logger.FormatJSON {
		return fmt.Errorf("invalid log format %q, expected text or json", c.LogFormat)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// ValidateCredentials checks that a login can be attempted.
func (c *Config) ValidateCredentials() error {
	if c.ContinueWithoutLogin {
		return nil
	}
	if c.Phone == "" {
		return ErrMissingPhone
	}
	if c.Password == "" {
		return ErrMissingPassword
	}
	return nil
}

// Location returns the time zone of the schedule timestamps.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// RetryConfig returns the transport retry settings.
func (c *Config) RetryConfig() retry.Config {
	rc := retry.DefaultConfig()
	rc.MaxAttempts = c.Retries
	rc.BaseDelay = c.RetryBackoff
	return rc
}

// SignerConfig returns the check-in loop settings.
func (c *Config) SignerConfig() signer.Config {
	policy, _ := signer.ParseWindowPolicy(c.WindowPolicy)
	return signer.Config{
		SignURL:           c.SignURL,
		MAC:               c.MAC,
		FallbackLongitude: c.Longitude,
		FallbackLatitude:  c.Latitude,
		DryRun:            c.DryRun,
		Interval:          c.SweepInterval,
		SubmitDelay:       c.SubmitDelay,
		Policy:            policy,
	}
}

// TransportOptions returns the HTTP client settings.
func (c *Config) TransportOptions() iclass.TransportOptions {
	return iclass.TransportOptions{
		Proxy:              c.Proxy,
		Timeout:            c.Timeout,
		InsecureSkipVerify: c.InsecureSkipVerify,
	}
}

func hostPort(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Host
}
