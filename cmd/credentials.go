package cmd

import (
	"errors"
	"fmt"

	"github.com/urfave/cli"

	cmdcommon "github.com/warpdl/autosign/cmd/common"
	"github.com/warpdl/autosign/pkg/credman/keyring"
)

var errNoAccount = errors.New("no phone configured, set it in the config, the environment or with --phone")

func credentialsSet(ctx *cli.Context) error {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	if cfg.Phone == "" {
		return cmdcommon.PrintErrWithCmdHelp(ctx, errNoAccount)
	}
	pw, err := readPassword(fmt.Sprintf("Password for %s: ", cfg.Phone))
	if err != nil {
		return err
	}
	if pw == "" {
		return errors.New("empty password, nothing stored")
	}
	if err := newKeyring().SetPassword(cfg.Phone, pw); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Password for %s stored in the keyring.\n", cfg.Phone)
	return nil
}

func credentialsDelete(ctx *cli.Context) error {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	if cfg.Phone == "" {
		return cmdcommon.PrintErrWithCmdHelp(ctx, errNoAccount)
	}
	err = newKeyring().DeletePassword(cfg.Phone)
	switch {
	case errors.Is(err, keyring.ErrNotFound):
		fmt.Fprintf(stdout, "No password stored for %s.\n", cfg.Phone)
		return nil
	case err != nil:
		return err
	}
	fmt.Fprintf(stdout, "Password for %s removed from the keyring.\n", cfg.Phone)
	return nil
}
