package secure

import (
	"errors"
	"sync"

	"github.com/awnumar/memguard"
)

// ErrDestroyed is returned when a destroyed buffer is opened.
var ErrDestroyed = errors.New("secure buffer destroyed")

// SecureBuffer provides memory-safe storage for sensitive data.
// It wraps memguard.Enclave to encrypt secrets at rest in memory
// and protect them from swapping via mlock.
type SecureBuffer struct {
	mu        sync.RWMutex
	enclave   *memguard.Enclave
	size      int
	destroyed bool
}

// NewSecureBuffer creates a protected buffer from secret bytes.
// memguard wipes data after sealing it, so callers must not reuse the slice.
func NewSecureBuffer(data []byte) *SecureBuffer {
	buf := &SecureBuffer{size: len(data)}
	if len(data) > 0 {
		buf.enclave = memguard.NewEnclave(data)
	}
	return buf
}

// NewString seals a string.
func NewString(s string) *SecureBuffer {
	return NewSecureBuffer([]byte(s))
}

// Open decrypts the protected data into a locked buffer.
// The caller must Destroy the returned buffer when done.
func (s *SecureBuffer) Open() (*memguard.LockedBuffer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.destroyed {
		return nil, ErrDestroyed
	}
	if s.enclave == nil {
		return memguard.NewBuffer(0), nil
	}
	return s.enclave.Open()
}

// Reveal returns a plain copy of the protected data.
func (s *SecureBuffer) Reveal() (string, error) {
	locked, err := s.Open()
	if err != nil {
		return "", err
	}
	defer locked.Destroy()
	return string(locked.Bytes()), nil
}

// Len returns the size of the sealed plaintext.
func (s *SecureBuffer) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.destroyed {
		return 0
	}
	return s.size
}

// IsEmpty reports whether the buffer holds no data.
func (s *SecureBuffer) IsEmpty() bool {
	return s.Len() == 0
}

// Destroy drops the enclave. It is idempotent.
func (s *SecureBuffer) Destroy() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.enclave = nil
	s.size = 0
	s.destroyed = true
}

// String never renders the contents.
func (s *SecureBuffer) String() string {
	return "[REDACTED]"
}

// GoString never renders the contents.
func (s *SecureBuffer) GoString() string {
	return "[REDACTED]"
}
