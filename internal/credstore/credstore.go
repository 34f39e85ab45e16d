// Package credstore persists vault session tokens in the host's secure
// credential facility (Secret Service, macOS Keychain, Windows Credential
// Manager) under a fixed service/account pair.
package credstore

import (
	"errors"
	"fmt"
	"sync"

	"github.com/zalando/go-keyring"
)

// ErrNotFound is returned by Get when nothing is stored under the pair.
var ErrNotFound = errors.New("credential not found")

// Store reads and writes a single opaque secret per service/account pair.
type Store interface {
	Get(service, account string) (string, error)
	Set(service, account, secret string) error
	// Delete removes the secret. Deleting a missing entry is not an error.
	Delete(service, account string) error
}

// Keyring is the production Store backed by the OS keyring.
type Keyring struct{}

// NewKeyring returns the OS keyring store.
func NewKeyring() *Keyring {
	return &Keyring{}
}

// Get returns the stored secret or ErrNotFound.
func (k *Keyring) Get(service, account string) (string, error) {
	secret, err := keyring.Get(service, account)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", ErrNotFound
		}
		return "", &Error{Op: "get", Service: service, Account: account, Err: err}
	}
	return secret, nil
}

// Set stores secret, replacing any previous value.
func (k *Keyring) Set(service, account, secret string) error {
	if err := keyring.Set(service, account, secret); err != nil {
		return &Error{Op: "set", Service: service, Account: account, Err: err}
	}
	return nil
}

// Delete removes the stored secret.
func (k *Keyring) Delete(service, account string) error {
	if err := keyring.Delete(service, account); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil
		}
		return &Error{Op: "delete", Service: service, Account: account, Err: err}
	}
	return nil
}

// Error wraps credential store failures with the pair they concern.
type Error struct {
	Op      string
	Service string
	Account string
	Err     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("credential store %s %s/%s: %v", e.Op, e.Service, e.Account, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Memory is an in-process Store, used by tests and by --no-keyring runs.
// The zero value is an empty store ready to use.
type Memory struct {
	mu      sync.Mutex
	secrets map[string]string

	// SetErr, when non-nil, is returned by every Set call.
	SetErr error
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{secrets: make(map[string]string)}
}

func memoryKey(service, account string) string {
	return service + "\x00" + account
}

// Get returns the stored secret or ErrNotFound.
func (m *Memory) Get(service, account string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	secret, ok := m.secrets[memoryKey(service, account)]
	if !ok {
		return "", ErrNotFound
	}
	return secret, nil
}

// Set stores secret.
func (m *Memory) Set(service, account, secret string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.SetErr != nil {
		return m.SetErr
	}
	if m.secrets == nil {
		m.secrets = make(map[string]string)
	}
	m.secrets[memoryKey(service, account)] = secret
	return nil
}

// Delete removes the secret.
func (m *Memory) Delete(service, account string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.secrets, memoryKey(service, account))
	return nil
}

var (
	_ Store = (*Keyring)(nil)
	_ Store = (*Memory)(nil)
)
