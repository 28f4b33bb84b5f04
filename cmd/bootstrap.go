package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/afero"
	"github.com/urfave/cli"
	"golang.org/x/term"

	"github.com/warpdl/autosign/common"
	"github.com/warpdl/autosign/internal/clock"
	"github.com/warpdl/autosign/internal/config"
	"github.com/warpdl/autosign/internal/notify"
	"github.com/warpdl/autosign/pkg/credman/keyring"
	"github.com/warpdl/autosign/pkg/iclass"
	"github.com/warpdl/autosign/pkg/logger"
)

// passwordStore is the part of the keyring the commands use.
type passwordStore interface {
	SetPassword(account, password string) error
	GetPassword(account string) (string, error)
	DeletePassword(account string) error
}

// Seams replaced by tests.
var (
	appFs     afero.Fs          = afero.NewOsFs()
	lookupEnv config.LookupFunc = os.LookupEnv
	stdout    io.Writer         = os.Stdout
	stdin     io.Reader         = os.Stdin

	newClock     = clock.Real
	baseContext  = context.Background
	newNotifier  = notify.New
	readPassword = promptPassword
	newKeyring   = func() passwordStore { return keyring.NewKeyring(common.AppName) }
)

// env is everything a command needs after bootstrap.
type env struct {
	cfg      *config.Config
	log      logger.Logger
	loc      *time.Location
	http     *http.Client
	clk      clock.Clock
	notifier notify.Notifier
}

// loadConfig layers defaults, the YAML file, the .env file and the process
// environment, then the global flags. The result is normalized and
// validated; credentials are not checked.
func loadConfig(ctx *cli.Context) (*config.Config, error) {
	path := configPath
	if !ctx.GlobalIsSet(flagConfig) {
		if v, ok := lookupEnv(common.ConfigEnv); ok {
			path = strings.TrimSpace(v)
		}
	}
	cfg, err := config.Load(appFs, path)
	if err != nil {
		return nil, err
	}

	dotenvPath, optional := common.DefaultEnvFile, true
	if ctx.GlobalIsSet(flagEnvFile) {
		dotenvPath, optional = envFile, false
	}
	vars, err := config.ReadDotEnv(appFs, dotenvPath, optional)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(config.Chain(lookupEnv, config.MapLookup(vars))); err != nil {
		return nil, err
	}

	if ctx.GlobalIsSet(flagPhone) {
		cfg.Phone = phone
	}
	if ctx.GlobalIsSet(flagLogFile) {
		cfg.LogFile = logFile
	}
	if ctx.GlobalIsSet(flagLogFormat) {
		cfg.LogFormat = logFormat
	}
	if ctx.GlobalIsSet(flagDryRun) {
		cfg.DryRun = dryRun
	}
	if ctx.GlobalIsSet(flagProxy) {
		cfg.Proxy = proxyURL
	}
	if ctx.GlobalIsSet(flagWindowPolicy) {
		cfg.WindowPolicy = windowPolicy
	}

	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// bootstrap loads the configuration, opens the logger and fills the
// password from the keyring when none was configured.
func bootstrap(ctx *cli.Context) (*env, error) {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return nil, err
	}
	log, err := logger.New(logger.Options{
		Fs:      appFs,
		Console: stdout,
		File:    cfg.LogFile,
		Format:  cfg.LogFormat,
	})
	if err != nil {
		return nil, err
	}
	if cfg.Password == "" && cfg.Phone != "" {
		pw, err := newKeyring().GetPassword(cfg.Phone)
		switch {
		case err == nil:
			cfg.Password = pw
		case errors.Is(err, keyring.ErrNotFound):
		default:
			log.Warning("could not read the password from the keyring: %v", err)
		}
	}
	if err := cfg.ValidateCredentials(); err != nil {
		log.Close()
		return nil, err
	}
	loc, _ := cfg.Location()
	hc, err := iclass.NewHTTPClient(cfg.TransportOptions())
	if err != nil {
		log.Close()
		return nil, err
	}
	return &env{
		cfg:      cfg,
		log:      log,
		loc:      loc,
		http:     hc,
		clk:      newClock(),
		notifier: newNotifier(cfg.PushKey, hc),
	}, nil
}

// newClient returns a fresh iClass client. Every day run logs in again.
func (e *env) newClient() (*iclass.Client, error) {
	rc := e.cfg.RetryConfig()
	return iclass.New(iclass.Options{
		BaseURL:    e.cfg.BaseURL,
		VEBaseURL:  e.cfg.VEBaseURL,
		HTTPClient: e.http,
		Retry:      &rc,
		Log:        e.log,
	})
}

// day returns the schedule date: the --date flag or today.
func (e *env) day() (time.Time, error) {
	if dateStr == "" {
		return e.clk.Now().In(e.loc), nil
	}
	d, err := time.ParseInLocation(iclass.DateLayout, strings.TrimSpace(dateStr), e.loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --%s %q, expected YYYYMMDD", flagDate, dateStr)
	}
	return d, nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(baseContext(), os.Interrupt, syscall.SIGTERM)
}

func promptPassword(prompt string) (string, error) {
	fmt.Fprint(stdout, prompt)
	if f, ok := stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(stdout)
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
	line, err := bufio.NewReader(stdin).ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
