package bitwarden

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/systmms/secretmenu/internal/secure"
	"github.com/systmms/secretmenu/pkg/item"
)

// State tracks how far a session token can be trusted.
type State int

const (
	// StateUnverified: a token is present but has not been probed.
	StateUnverified State = iota
	// StateVerified: the last probe reported the vault unlocked.
	StateVerified
	// StateInvalid: the token was rejected. Only a new Unlock recovers.
	StateInvalid
)

func (s State) String() string {
	switch s {
	case StateUnverified:
		return "unverified"
	case StateVerified:
		return "verified"
	case StateInvalid:
		return "invalid"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

const lockConfirmation = "Your vault is locked."

// Session is an authenticated handle on the vault, identified by the token
// bw printed on unlock. The token lives in a memguard enclave and is only
// revealed to build the child environment.
type Session struct {
	client *Client
	token  *secure.SecureBuffer

	mu    sync.Mutex
	state State
}

// Open wraps a previously stored token without any I/O. The session starts
// unverified; call IsUnlocked before trusting it.
func Open(client *Client, token string) *Session {
	return &Session{
		client: client,
		token:  secure.NewString(token),
		state:  StateUnverified,
	}
}

// Unlock runs `bw unlock --raw` with password on standard input. An empty
// token or a non-zero exit means the password was rejected and yields
// ErrUnlockFailed. Failures to run bw at all are returned unchanged.
func Unlock(ctx context.Context, client *Client, password *secure.SecureBuffer) (*Session, error) {
	locked, err := password.Open()
	if err != nil {
		return nil, fmt.Errorf("open master password: %w", err)
	}
	input := append([]byte(nil), locked.Bytes()...)
	locked.Destroy()
	defer clear(input)

	out, err := client.Run(ctx, Call{Args: []string{"unlock", "--raw"}, Input: input})
	if err != nil {
		var cmdErr *CommandError
		if errors.As(err, &cmdErr) && cmdErr.Exited {
			return nil, fmt.Errorf("%w: %w", ErrUnlockFailed, err)
		}
		return nil, err
	}

	token := strings.TrimSpace(string(out))
	if token == "" {
		return nil, ErrUnlockFailed
	}

	return &Session{
		client: client,
		token:  secure.NewString(token),
		state:  StateVerified,
	}, nil
}

// State returns the current trust state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// Token reveals the session token, for persisting it in the credential store.
func (s *Session) Token() (string, error) {
	return s.token.Reveal()
}

// String never renders the token.
func (s *Session) String() string {
	return fmt.Sprintf("bitwarden.Session{state: %s}", s.State())
}

// Close destroys the token enclave. The session is unusable afterwards.
func (s *Session) Close() {
	s.token.Destroy()
	s.setState(StateInvalid)
}

func (s *Session) call(args ...string) (Call, error) {
	token, err := s.token.Reveal()
	if err != nil {
		return Call{}, fmt.Errorf("reveal session token: %w", err)
	}
	return Call{Args: args, Token: token}, nil
}

func (s *Session) runJSON(ctx context.Context, v any, args ...string) error {
	call, err := s.call(args...)
	if err != nil {
		return err
	}
	err = s.client.RunJSON(ctx, call, v)
	if errors.Is(err, ErrDecryptionFailed) {
		s.setState(StateInvalid)
	}
	return err
}

func (s *Session) runText(ctx context.Context, args ...string) (string, error) {
	call, err := s.call(args...)
	if err != nil {
		return "", err
	}
	out, err := s.client.Run(ctx, call)
	if errors.Is(err, ErrDecryptionFailed) {
		s.setState(StateInvalid)
	}
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// Status runs `bw status`.
func (s *Session) Status(ctx context.Context) (Status, error) {
	var st Status
	if err := s.runJSON(ctx, &st, "status"); err != nil {
		return Status{}, err
	}
	return st, nil
}

// IsUnlocked probes the token. It reports true iff bw says the vault is
// unlocked; any other status invalidates the session.
func (s *Session) IsUnlocked(ctx context.Context) (bool, error) {
	st, err := s.Status(ctx)
	if err != nil {
		if errors.Is(err, ErrDecryptionFailed) {
			s.setState(StateInvalid)
		}
		return false, err
	}
	if st.Status != StatusUnlocked {
		s.setState(StateInvalid)
		return false, nil
	}
	s.mu.Lock()
	if s.state != StateInvalid {
		s.state = StateVerified
	}
	unlocked := s.state == StateVerified
	s.mu.Unlock()
	return unlocked, nil
}

// Lock runs `bw lock` and invalidates the session.
func (s *Session) Lock(ctx context.Context) error {
	out, err := s.runText(ctx, "lock")
	if err != nil {
		return err
	}
	if strings.TrimSpace(out) != lockConfirmation {
		return &UnexpectedResponseError{Subcommand: "lock", Raw: out}
	}
	s.setState(StateInvalid)
	return nil
}

// Sync runs `bw sync`. It is safe to call repeatedly.
func (s *Session) Sync(ctx context.Context) error {
	_, err := s.runText(ctx, "sync")
	return err
}

// ListFolders runs `bw list folders`.
func (s *Session) ListFolders(ctx context.Context) ([]Folder, error) {
	var folders []Folder
	if err := s.runJSON(ctx, &folders, "list", "folders"); err != nil {
		return nil, err
	}
	return folders, nil
}

// ListItems runs `bw list items`.
func (s *Session) ListItems(ctx context.Context) ([]Item, error) {
	var items []Item
	if err := s.runJSON(ctx, &items, "list", "items"); err != nil {
		return nil, err
	}
	return items, nil
}

// GetItem runs `bw get item <id>`.
func (s *Session) GetItem(ctx context.Context, id string) (*Item, error) {
	var it Item
	if err := s.runJSON(ctx, &it, "get", "item", id); err != nil {
		return nil, err
	}
	return &it, nil
}

// ReadField fetches the plaintext of one field of item id. Well-known fields
// use `bw get <field> <id>`; custom fields are looked up on the full item.
func (s *Session) ReadField(ctx context.Context, id string, field item.Field) (string, error) {
	var object string
	switch field.Kind {
	case item.KindUsername:
		object = "username"
	case item.KindPassword:
		object = "password"
	case item.KindTotp:
		object = "totp"
	case item.KindOther:
		it, err := s.GetItem(ctx, id)
		if err != nil {
			return "", err
		}
		value, ok := it.FieldValue(field.Name)
		if !ok {
			return "", fmt.Errorf("%w: %s", ErrFieldNotFound, field.Name)
		}
		return value, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrFieldNotFound, field)
	}

	out, err := s.runText(ctx, "get", object, id)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(out, "\r\n"), nil
}
