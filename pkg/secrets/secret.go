// Package secrets materializes credentials that HTTP settings reference
// indirectly by keychain service name, deferring the actual OS keychain
// lookup until a request is about to be sent.
package secrets

import (
	"crypto/rand"
	"fmt"
	"time"

	"github.com/ndsev/zswag-sub000/pkg/secrets/keyring"
)

const (
	keychainPackage = "io.ndsev.zswag"
	keychainTimeout = time.Minute
)

// Store loads, stores and removes passwords from the platform keychain,
// bounding every call so a hung backend can't stall a request indefinitely.
type Store struct {
	provider keyring.Provider
}

// NewStore returns a Store backed by the composite OS keychain provider.
func NewStore() *Store {
	return &Store{provider: keyring.NewCompositeProvider()}
}

// NewStoreWithProvider returns a Store backed by an explicit provider, for
// tests and alternative backends.
func NewStoreWithProvider(p keyring.Provider) *Store {
	return &Store{provider: p}
}

// Load fetches the password for (service, user), returning "" on timeout or
// if the backend couldn't produce a value.
func (s *Store) Load(service, user string) string {
	type result struct {
		value string
		err   error
	}
	done := make(chan result, 1)
	go func() {
		value, err := s.provider.Get(service, user)
		done <- result{value, err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return ""
		}
		return r.value
	case <-time.After(keychainTimeout):
		return ""
	}
}

// Store saves password under service (or a freshly generated service name
// if service is empty) and returns the service name actually used, or ""
// on timeout or failure.
func (s *Store) Store(service, user, password string) string {
	newService := service
	if newService == "" {
		newService = "service password " + randServiceID()
	}

	done := make(chan error, 1)
	go func() {
		done <- s.provider.Set(newService, user, password)
	}()

	select {
	case err := <-done:
		if err != nil {
			return ""
		}
		return newService
	case <-time.After(keychainTimeout):
		return ""
	}
}

// Remove deletes the password for (service, user), returning false on
// timeout or failure.
func (s *Store) Remove(service, user string) bool {
	done := make(chan error, 1)
	go func() {
		done <- s.provider.Delete(service, user)
	}()

	select {
	case err := <-done:
		return err == nil
	case <-time.After(keychainTimeout):
		return false
	}
}

func randServiceID() string {
	buf := make([]byte, 6)
	_, _ = rand.Read(buf)
	return fmt.Sprintf("%x", buf)
}
