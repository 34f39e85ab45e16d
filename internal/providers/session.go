package providers

import (
	"context"
	"errors"

	"github.com/systmms/secretmenu/internal/bitwarden"
	"github.com/systmms/secretmenu/internal/credstore"
	"github.com/systmms/secretmenu/internal/logging"
	"github.com/systmms/secretmenu/internal/metrics"
	"github.com/systmms/secretmenu/pkg/provider"
)

// Session sources recorded in metrics.
const (
	SessionSourceStored      = "stored"
	SessionSourceInteractive = "interactive"
)

const (
	unlockPrompt      = "Enter master password"
	unlockRetryPrompt = "Wrong master password, try again"

	// unlockAttempts is the initial prompt plus one retry.
	unlockAttempts = 2
)

// SessionAcquirer implements the re-authentication policy shared by
// vault-backed providers: adopt the stored token if the vault accepts it,
// otherwise prompt for the master password, unlock and store the new token.
type SessionAcquirer struct {
	Provider string
	Client   *bitwarden.Client
	Store    credstore.Store
	Service  string
	Account  string
	Prompter provider.Prompter
	Logger   *logging.Logger
	Metrics  *metrics.Metrics
}

// Acquire returns an unlocked session. Stored tokens that are rejected are
// discarded; any other probe failure is returned as is.
func (a *SessionAcquirer) Acquire(ctx context.Context) (*bitwarden.Session, error) {
	session, err := a.adoptStored(ctx)
	if err != nil {
		return nil, err
	}
	if session != nil {
		a.Metrics.RecordSession(a.Provider, SessionSourceStored)
		return session, nil
	}
	return a.unlockInteractive(ctx)
}

func (a *SessionAcquirer) adoptStored(ctx context.Context) (*bitwarden.Session, error) {
	token, err := a.Store.Get(a.Service, a.Account)
	if err != nil {
		if !errors.Is(err, credstore.ErrNotFound) {
			a.Logger.Warn("%s: cannot read stored session: %v", a.Provider, err)
		}
		return nil, nil
	}
	if token == "" {
		return nil, nil
	}

	session := bitwarden.Open(a.Client, token)
	unlocked, err := session.IsUnlocked(ctx)
	switch {
	case errors.Is(err, bitwarden.ErrDecryptionFailed):
		a.Logger.Warn("%s: stored session failed to decrypt the vault", a.Provider)
	case err != nil:
		session.Close()
		return nil, err
	case !unlocked:
		a.Logger.Info("%s: stored session is not valid", a.Provider)
	default:
		a.Logger.Debug("%s: reusing stored session %s", a.Provider, logging.Secret(token))
		return session, nil
	}

	session.Close()
	return nil, nil
}

func (a *SessionAcquirer) unlockInteractive(ctx context.Context) (*bitwarden.Session, error) {
	if a.Prompter == nil {
		return nil, &provider.AuthError{
			Provider: a.Provider,
			Message:  "vault is locked and no password prompt is available",
		}
	}

	prompt := unlockPrompt
	var lastErr error
	for attempt := 0; attempt < unlockAttempts; attempt++ {
		password, err := a.Prompter.PromptPassword(ctx, prompt)
		if err != nil {
			return nil, &provider.AuthError{Provider: a.Provider, Message: "master password prompt failed", Err: err}
		}

		session, err := bitwarden.Unlock(ctx, a.Client, password)
		password.Destroy()
		if errors.Is(err, bitwarden.ErrUnlockFailed) {
			a.Logger.Warn("%s: unlock failed (attempt %d of %d)", a.Provider, attempt+1, unlockAttempts)
			lastErr = err
			prompt = unlockRetryPrompt
			continue
		}
		if err != nil {
			return nil, err
		}

		a.persist(session)
		a.Metrics.RecordSession(a.Provider, SessionSourceInteractive)
		return session, nil
	}

	return nil, &provider.AuthError{Provider: a.Provider, Err: lastErr}
}

// persist stores the session token. Failure only costs a future prompt.
func (a *SessionAcquirer) persist(session *bitwarden.Session) {
	token, err := session.Token()
	if err != nil {
		a.Logger.Warn("%s: cannot read new session token: %v", a.Provider, err)
		return
	}
	if err := a.Store.Set(a.Service, a.Account, token); err != nil {
		a.Logger.Warn("%s: failed to put session key in credential store: %v", a.Provider, err)
	}
}

// Forget removes the stored token. Failure is logged.
func (a *SessionAcquirer) Forget() {
	if err := a.Store.Delete(a.Service, a.Account); err != nil {
		a.Logger.Warn("%s: deleting stored session failed: %v", a.Provider, err)
	}
}

// Stored opens the stored token without probing it, or returns nil when no
// token is stored.
func (a *SessionAcquirer) Stored() *bitwarden.Session {
	token, err := a.Store.Get(a.Service, a.Account)
	if err != nil || token == "" {
		return nil
	}
	return bitwarden.Open(a.Client, token)
}
