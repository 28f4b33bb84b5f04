// Package keyring stores the iClass account password in the operating
// system keyring so that it does not have to live in a .env file.
package keyring

import (
	"errors"
	"fmt"
	"strings"

	"github.com/zalando/go-keyring"
)

// ErrNotFound is returned when no password is stored for the account.
var ErrNotFound = errors.New("keyring: no stored password")

// Keyring reads and writes passwords under one service name, keyed by the
// account (the student number).
type Keyring struct {
	Service string
}

var (
	keyringSet    = keyring.Set
	keyringGet    = keyring.Get
	keyringDelete = keyring.Delete
)

// NewKeyring returns a Keyring for service.
func NewKeyring(service string) *Keyring {
	return &Keyring{Service: service}
}

// SetPassword stores password for account, replacing any previous value.
func (k *Keyring) SetPassword(account, password string) error {
	if strings.TrimSpace(account) == "" {
		return errors.New("keyring: empty account")
	}
	if password == "" {
		return errors.New("keyring: empty password")
	}
	if err := keyringSet(k.Service, account, password); err != nil {
		return fmt.Errorf("keyring: store password: %w", err)
	}
	return nil
}

// GetPassword returns the password stored for account.
func (k *Keyring) GetPassword(account string) (string, error) {
	pw, err := keyringGet(k.Service, account)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("keyring: read password: %w", err)
	}
	return pw, nil
}

// DeletePassword removes the password stored for account.
func (k *Keyring) DeletePassword(account string) error {
	err := keyringDelete(k.Service, account)
	if errors.Is(err, keyring.ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("keyring: delete password: %w", err)
	}
	return nil
}
