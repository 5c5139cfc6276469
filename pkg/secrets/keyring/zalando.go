package keyring

import (
	"errors"
	"runtime"

	zkeyring "github.com/zalando/go-keyring"
)

// zalandoProvider delegates to the zalando/go-keyring library, which talks
// to the Secret Service D-Bus API on Linux, Keychain on macOS and the
// Credential Manager on Windows.
type zalandoProvider struct{}

// NewZalandoKeyringProvider returns the default OS-backed provider.
func NewZalandoKeyringProvider() Provider {
	return zalandoProvider{}
}

func (zalandoProvider) Name() string {
	switch runtime.GOOS {
	case "linux":
		return "D-Bus Secret Service"
	case "darwin":
		return "macOS Keychain"
	case "windows":
		return "Windows Credential Manager"
	default:
		return "Platform Keyring"
	}
}

func (zalandoProvider) IsAvailable() bool {
	_, err := zkeyring.Get("toolhive-zswag-probe", "toolhive-zswag-probe")
	return !errors.Is(err, zkeyring.ErrUnsupportedPlatform)
}

func (zalandoProvider) Set(service, key, value string) error {
	return zkeyring.Set(service, key, value)
}

func (zalandoProvider) Get(service, key string) (string, error) {
	value, err := zkeyring.Get(service, key)
	if errors.Is(err, zkeyring.ErrNotFound) {
		return "", ErrNotFound
	}
	return value, err
}

func (zalandoProvider) Delete(service, key string) error {
	err := zkeyring.Delete(service, key)
	if errors.Is(err, zkeyring.ErrNotFound) {
		return nil
	}
	return err
}

func (zalandoProvider) DeleteAll(service string) error {
	err := zkeyring.DeleteAll(service)
	if errors.Is(err, zkeyring.ErrUnsupportedPlatform) {
		return nil
	}
	return err
}
