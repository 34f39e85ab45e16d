package bitwarden

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// Session errors. All of them are recoverable by the provider layer.
var (
	// ErrUnlockFailed means the master password was rejected or the unlock
	// produced no token.
	ErrUnlockFailed = errors.New("bitwarden: unlock failed")

	// ErrDecryptionFailed means bw could not decrypt the vault with the
	// session token it was given, typically because the token is stale.
	ErrDecryptionFailed = errors.New("bitwarden: failed to decrypt")

	// ErrEncoding means bw produced output that is not valid UTF-8.
	ErrEncoding = errors.New("bitwarden: output is not valid UTF-8")

	// ErrNotFound means bw reported that the requested object does not exist.
	ErrNotFound = errors.New("bitwarden: not found")

	// ErrFieldNotFound means the item exists but carries no such field.
	ErrFieldNotFound = errors.New("bitwarden: field not found on item")
)

// excerptLimit bounds how much raw output ends up in error messages. Output
// can contain secrets, so diagnostics only ever carry a short prefix.
const excerptLimit = 64

// UnexpectedResponseError is returned when bw printed something other than
// the literal confirmation a subcommand is documented to print.
type UnexpectedResponseError struct {
	Subcommand string
	Raw        string
}

func (e *UnexpectedResponseError) Error() string {
	return fmt.Sprintf("bitwarden: unexpected response to %s: %q", e.Subcommand, excerpt([]byte(e.Raw)))
}

// ProtocolError is returned when structured output could not be decoded.
type ProtocolError struct {
	Subcommand string
	// Excerpt is a bounded prefix of the offending output.
	Excerpt string
	Err     error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("bitwarden: malformed %s output %q: %v", e.Subcommand, e.Excerpt, e.Err)
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// CommandError is returned when bw exits unsuccessfully without one of the
// recognised failure signatures.
type CommandError struct {
	Subcommand string
	ExitCode   int
	// Exited is false when bw never ran to completion, e.g. it could not be
	// started.
	Exited bool
	Stderr string
	Err    error
}

func (e *CommandError) Error() string {
	msg := fmt.Sprintf("bitwarden: %s failed", e.Subcommand)
	if e.ExitCode > 0 {
		msg += fmt.Sprintf(" (exit code %d)", e.ExitCode)
	}
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	} else if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// excerpt returns at most excerptLimit bytes of b, cut on a rune boundary.
func excerpt(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) <= excerptLimit {
		return s
	}
	cut := excerptLimit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
