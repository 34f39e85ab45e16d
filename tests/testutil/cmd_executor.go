// Package testutil provides testing utilities for secretmenu.
package testutil

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	pkgexec "github.com/systmms/secretmenu/pkg/exec"
)

// MockCommandExecutor provides a configurable mock for testing CLI-based providers.
type MockCommandExecutor struct {
	mu sync.Mutex

	// Responses maps command patterns to their mock responses.
	// Key format: "command arg1 arg2" (space-separated command and args)
	Responses map[string]MockResponse

	// sequences hold responses consumed in order; the last one repeats.
	sequences map[string][]MockResponse

	// DefaultResponse is used when no matching pattern is found.
	DefaultResponse *MockResponse

	// RecordedCalls stores all calls made to Execute for verification.
	RecordedCalls []RecordedCall

	// StrictMode causes Execute to fail if no matching response is found.
	StrictMode bool
}

// MockResponse defines the expected output for a mocked command.
type MockResponse struct {
	Stdout   []byte
	Stderr   []byte
	Err      error
	ExitCode int // Used to build Err when Err is nil and ExitCode is non-zero
}

// RecordedCall stores information about a command execution.
type RecordedCall struct {
	Command string
	Args    []string
	Env     []string
	Stdin   []byte
	Dir     string
	Context context.Context
}

// EnvValue returns the value of key in the recorded environment.
func (c RecordedCall) EnvValue(key string) (string, bool) {
	for _, kv := range c.Env {
		if k, v, ok := strings.Cut(kv, "="); ok && k == key {
			return v, true
		}
	}
	return "", false
}

// ExitError simulates a process exit status. It satisfies the ExitCode
// contract used by pkg/exec.ExitCode.
type ExitError struct {
	Code   int
	Stderr string
}

func (e *ExitError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("exit status %d: %s", e.Code, e.Stderr)
	}
	return fmt.Sprintf("exit status %d", e.Code)
}

// ExitCode returns the simulated status.
func (e *ExitError) ExitCode() int {
	return e.Code
}

// NewMockCommandExecutor creates a new mock executor with empty responses.
func NewMockCommandExecutor() *MockCommandExecutor {
	return &MockCommandExecutor{
		Responses:     make(map[string]MockResponse),
		sequences:     make(map[string][]MockResponse),
		RecordedCalls: make([]RecordedCall, 0),
	}
}

// Execute returns the mocked response for the given command.
func (m *MockCommandExecutor) Execute(ctx context.Context, cmd pkgexec.Command) ([]byte, []byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.RecordedCalls = append(m.RecordedCalls, RecordedCall{
		Command: cmd.Name,
		Args:    slices.Clone(cmd.Args),
		Env:     slices.Clone(cmd.Env),
		Stdin:   slices.Clone(cmd.Stdin),
		Dir:     cmd.Dir,
		Context: ctx,
	})

	key := m.buildKey(cmd.Name, cmd.Args)

	if resp, ok := m.nextInSequence(key); ok {
		return resp.result()
	}

	// Try exact match first
	if resp, ok := m.Responses[key]; ok {
		return resp.result()
	}

	// Longest matching prefix wins so "bw get item" beats "bw get".
	best := ""
	for pattern := range m.Responses {
		if m.matchesPattern(key, pattern) && len(pattern) > len(best) {
			best = pattern
		}
	}
	if best != "" {
		return m.Responses[best].result()
	}

	if m.DefaultResponse != nil {
		return m.DefaultResponse.result()
	}

	if m.StrictMode {
		return nil, nil, fmt.Errorf("mock: no response configured for command: %s", key)
	}

	return []byte{}, []byte{}, nil
}

func (r MockResponse) result() ([]byte, []byte, error) {
	err := r.Err
	if err == nil && r.ExitCode != 0 {
		err = &ExitError{Code: r.ExitCode, Stderr: strings.TrimSpace(string(r.Stderr))}
	}
	return r.Stdout, r.Stderr, err
}

func (m *MockCommandExecutor) nextInSequence(key string) (MockResponse, bool) {
	for pattern, seq := range m.sequences {
		if len(seq) == 0 || (pattern != key && !m.matchesPattern(key, pattern)) {
			continue
		}
		resp := seq[0]
		if len(seq) > 1 {
			m.sequences[pattern] = seq[1:]
		}
		return resp, true
	}
	return MockResponse{}, false
}

// buildKey creates a lookup key from command and arguments.
func (m *MockCommandExecutor) buildKey(name string, args []string) string {
	if len(args) == 0 {
		return name
	}
	return name + " " + strings.Join(args, " ")
}

// matchesPattern checks if the command key matches a pattern.
// A pattern matches when it is a whole-word prefix of the key.
func (m *MockCommandExecutor) matchesPattern(key, pattern string) bool {
	if strings.HasSuffix(pattern, "*") {
		return strings.HasPrefix(key, strings.TrimSuffix(pattern, "*"))
	}
	return key == pattern || strings.HasPrefix(key, pattern+" ")
}

// AddResponse registers a mock response for a specific command pattern.
func (m *MockCommandExecutor) AddResponse(commandPattern string, response MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Responses[commandPattern] = response
}

// AddSequence registers responses returned one after another for a pattern.
// Once exhausted, the last response keeps being returned.
func (m *MockCommandExecutor) AddSequence(commandPattern string, responses ...MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sequences[commandPattern] = responses
}

// AddJSONResponse is a convenience method to add a JSON response.
func (m *MockCommandExecutor) AddJSONResponse(commandPattern string, jsonData string) {
	m.AddResponse(commandPattern, MockResponse{
		Stdout: []byte(jsonData),
		Stderr: []byte{},
	})
}

// AddTextResponse adds a plain stdout response.
func (m *MockCommandExecutor) AddTextResponse(commandPattern string, stdout string) {
	m.AddResponse(commandPattern, MockResponse{Stdout: []byte(stdout)})
}

// AddErrorResponse adds an error response for a command pattern.
func (m *MockCommandExecutor) AddErrorResponse(commandPattern string, errMsg string, exitCode int) {
	m.AddResponse(commandPattern, MockResponse{
		Stdout:   []byte{},
		Stderr:   []byte(errMsg),
		ExitCode: exitCode,
	})
}

// GetCalls returns all recorded calls matching the given command name.
func (m *MockCommandExecutor) GetCalls(commandName string) []RecordedCall {
	m.mu.Lock()
	defer m.mu.Unlock()

	var matches []RecordedCall
	for _, call := range m.RecordedCalls {
		if call.Command == commandName {
			matches = append(matches, call)
		}
	}
	return matches
}

// CallsMatching returns recorded calls whose "command args" key matches pattern.
func (m *MockCommandExecutor) CallsMatching(pattern string) []RecordedCall {
	m.mu.Lock()
	defer m.mu.Unlock()

	var matches []RecordedCall
	for _, call := range m.RecordedCalls {
		if m.matchesPattern(m.buildKey(call.Command, call.Args), pattern) {
			matches = append(matches, call)
		}
	}
	return matches
}

// CallCount returns the number of times Execute was called.
func (m *MockCommandExecutor) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.RecordedCalls)
}

// Reset clears all recorded calls and responses.
func (m *MockCommandExecutor) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Responses = make(map[string]MockResponse)
	m.sequences = make(map[string][]MockResponse)
	m.RecordedCalls = make([]RecordedCall, 0)
	m.DefaultResponse = nil
}

// AssertCalled verifies that a specific command was called at least once.
func (m *MockCommandExecutor) AssertCalled(t interface{ Error(args ...interface{}) }, commandName string) bool {
	calls := m.GetCalls(commandName)
	if len(calls) == 0 {
		t.Error("expected command", commandName, "to be called, but it was not")
		return false
	}
	return true
}

// AssertNotCalled verifies that a specific command pattern was never called.
func (m *MockCommandExecutor) AssertNotCalled(t interface{ Error(args ...interface{}) }, pattern string) bool {
	calls := m.CallsMatching(pattern)
	if len(calls) > 0 {
		t.Error("expected", pattern, "to not be called, but it was called", len(calls), "times")
		return false
	}
	return true
}

// AssertCallCount verifies the exact number of times a command pattern was called.
func (m *MockCommandExecutor) AssertCallCount(t interface{ Error(args ...interface{}) }, pattern string, expected int) bool {
	calls := m.CallsMatching(pattern)
	if len(calls) != expected {
		t.Error("expected", pattern, "to be called", expected, "times, but was called", len(calls), "times")
		return false
	}
	return true
}

var _ pkgexec.CommandExecutor = (*MockCommandExecutor)(nil)

// BitwardenMockResponses provides pre-configured responses for Bitwarden CLI.
type BitwardenMockResponses struct{}

// StatusUnlocked returns a mock response for an unlocked Bitwarden vault.
func (BitwardenMockResponses) StatusUnlocked() MockResponse {
	return MockResponse{
		Stdout: []byte(`{
			"serverUrl": "https://vault.bitwarden.com",
			"lastSync": "2024-01-15T10:30:00.000Z",
			"userEmail": "user@example.com",
			"userId": "user-123",
			"status": "unlocked"
		}`),
	}
}

// StatusLocked returns a mock response for a locked Bitwarden vault.
func (BitwardenMockResponses) StatusLocked() MockResponse {
	return MockResponse{
		Stdout: []byte(`{
			"serverUrl": "https://vault.bitwarden.com",
			"lastSync": "2024-01-15T10:30:00.000Z",
			"userEmail": "user@example.com",
			"userId": "user-123",
			"status": "locked"
		}`),
	}
}

// StatusUnauthenticated returns a mock response for unauthenticated state.
func (BitwardenMockResponses) StatusUnauthenticated() MockResponse {
	return MockResponse{
		Stdout: []byte(`{
			"serverUrl": "https://vault.bitwarden.com",
			"lastSync": null,
			"userEmail": null,
			"userId": null,
			"status": "unauthenticated"
		}`),
	}
}

// DecryptFailure returns the banner bw prints for a stale session token.
func (BitwardenMockResponses) DecryptFailure() MockResponse {
	return MockResponse{Stdout: []byte("Failed to decrypt.\n")}
}

// Unlock returns a raw session token as printed by `bw unlock --raw`.
func (BitwardenMockResponses) Unlock(token string) MockResponse {
	return MockResponse{Stdout: []byte(token)}
}

// Locked returns the confirmation printed by `bw lock`.
func (BitwardenMockResponses) Locked() MockResponse {
	return MockResponse{Stdout: []byte("Your vault is locked.\n")}
}

// Folders returns a `bw list folders` response with a Work and a nested
// Personal/Finance folder plus the synthetic "No Folder" entry.
func (BitwardenMockResponses) Folders() MockResponse {
	return MockResponse{
		Stdout: []byte(`[
			{"object": "folder", "id": "f-work", "name": "Work"},
			{"object": "folder", "id": "f-fin", "name": "Personal/Finance"},
			{"object": "folder", "id": null, "name": "No Folder"}
		]`),
	}
}

// Items returns a `bw list items` response exercising folder resolution and
// field declaration.
func (BitwardenMockResponses) Items() MockResponse {
	return MockResponse{
		Stdout: []byte(`[
			{
				"object": "item", "id": "i-github", "name": "github", "type": 1,
				"folderId": "f-work", "organizationId": null, "favorite": false,
				"collectionIds": [], "revisionDate": "2024-01-15T10:30:00.000Z",
				"login": {"username": "octocat", "password": "gh-pass", "totp": "JBSWY3DPEHPK3PXP", "uris": []},
				"fields": [{"name": "recovery", "value": "r-123", "type": 1}]
			},
			{
				"object": "item", "id": "i-bank", "name": "bank", "type": 1,
				"folderId": "f-fin", "organizationId": null, "favorite": true,
				"collectionIds": [], "revisionDate": "2024-01-15T10:30:00.000Z",
				"login": {"username": null, "password": "bank-pass", "totp": null}
			},
			{
				"object": "item", "id": "i-loose", "name": "loose", "type": 1,
				"folderId": null, "organizationId": null, "favorite": false,
				"collectionIds": [], "revisionDate": "2024-01-15T10:30:00.000Z",
				"login": {"username": "me", "password": null, "totp": null}
			},
			{
				"object": "item", "id": "i-dangling", "name": "orphan", "type": 2,
				"folderId": "f-deleted", "organizationId": null, "favorite": false,
				"collectionIds": [], "revisionDate": "2024-01-15T10:30:00.000Z",
				"notes": "a secure note"
			}
		]`),
	}
}

// Item returns a mock Bitwarden item response.
func (BitwardenMockResponses) Item(id, name, username, password string) MockResponse {
	return MockResponse{
		Stdout: []byte(fmt.Sprintf(`{
			"object": "item",
			"id": "%s",
			"name": "%s",
			"type": 1,
			"login": {
				"username": "%s",
				"password": "%s",
				"totp": "JBSWY3DPEHPK3PXP",
				"uris": [
					{"uri": "https://example.com", "match": null}
				]
			},
			"fields": [
				{"name": "api_key", "value": "secret-key-123", "type": 0}
			],
			"notes": "Test notes for the item"
		}`, id, name, username, password)),
	}
}

// PassMockResponses provides pre-configured responses for pass CLI.
type PassMockResponses struct{}

// Show returns a mock password from pass store.
func (PassMockResponses) Show(password string) MockResponse {
	return MockResponse{
		Stdout: []byte(password + "\nuser: testuser\nurl: https://example.com\n"),
	}
}

// NotInStore returns the error pass prints for a missing entry.
func (PassMockResponses) NotInStore(path string) MockResponse {
	return MockResponse{
		Stderr:   []byte(fmt.Sprintf("Error: %s is not in the password store.\n", path)),
		ExitCode: 1,
	}
}

// TerraformMockResponses provides pre-configured responses for terraform CLI.
type TerraformMockResponses struct{}

// Outputs returns a `terraform output -json` response.
func (TerraformMockResponses) Outputs() MockResponse {
	return MockResponse{
		Stdout: []byte(`{
			"db_password": {"sensitive": true, "type": "string", "value": "tf-db-pass"},
			"db_admin": {
				"sensitive": true,
				"type": ["object", {"username": "string", "password": "string", "port": "number"}],
				"value": {"username": "admin", "password": "tf-admin-pass", "port": 5432}
			},
			"replica_count": {"sensitive": false, "type": "number", "value": 3}
		}`),
	}
}
