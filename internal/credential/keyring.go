package credential

import (
	"fmt"

	"github.com/99designs/keyring"
)

const serviceName = "neverlight"

// openKeyring returns a configured keyring instance.
func openKeyring() (keyring.Keyring, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  "~/.config/neverlight/credentials",
		FilePasswordFunc:         keyring.FixedStringPrompt("neverlight-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return ring, nil
}

// accountKey builds the keyring key for an account's IMAP password.
func accountKey(accountID string) string {
	return "imap-" + accountID
}

// GetPassword retrieves the IMAP password for an account.
func GetPassword(accountID string) (string, error) {
	ring, err := openKeyring()
	if err != nil {
		return "", err
	}

	item, err := ring.Get(accountKey(accountID))
	if err != nil {
		return "", fmt.Errorf("getting credential for account %q: %w", accountID, err)
	}

	return string(item.Data), nil
}

// SetPassword stores the IMAP password for an account.
func SetPassword(accountID, password string) error {
	ring, err := openKeyring()
	if err != nil {
		return err
	}

	err = ring.Set(keyring.Item{
		Key:  accountKey(accountID),
		Data: []byte(password),
	})
	if err != nil {
		return fmt.Errorf("setting credential for account %q: %w", accountID, err)
	}

	return nil
}

// DeletePassword removes the IMAP password for an account. Called on
// account removal so no orphaned secrets remain.
func DeletePassword(accountID string) error {
	ring, err := openKeyring()
	if err != nil {
		return err
	}

	err = ring.Remove(accountKey(accountID))
	if err != nil {
		return fmt.Errorf("deleting credential for account %q: %w", accountID, err)
	}

	return nil
}
