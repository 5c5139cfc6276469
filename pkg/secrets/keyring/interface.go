// Package keyring wraps the operating system credential store used to hold
// secrets referenced indirectly from persisted HTTP settings.
package keyring

import "errors"

// ErrNotFound is returned by Get when no value is stored for the given
// service/key pair.
var ErrNotFound = errors.New("keyring: secret not found")

// Provider is a single credential-store backend.
type Provider interface {
	Name() string
	IsAvailable() bool
	Set(service, key, value string) error
	Get(service, key string) (string, error)
	Delete(service, key string) error
	DeleteAll(service string) error
}
