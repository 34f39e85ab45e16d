// Package secure keeps short-lived credentials (vault session tokens and
// master passwords in flight) in memguard enclaves.
//
// Enclave contents are encrypted at rest in memory and only decrypted into
// a locked buffer while in use:
//
//	buf := secure.NewString(token)
//	defer buf.Destroy()
//
//	token, err := buf.Reveal()
//
// Reveal copies the plaintext into a regular Go string. Callers keep that
// copy as short-lived as possible; it is the form os/exec needs for a child
// environment or stdin.
//
// Memory locking depends on RLIMIT_MEMLOCK on Linux. When locking is not
// possible memguard falls back to ordinary allocations.
package secure
