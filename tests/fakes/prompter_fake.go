package fakes

import (
	"context"
	"errors"
	"sync"

	"github.com/systmms/secretmenu/internal/secure"
	"github.com/systmms/secretmenu/pkg/provider"
)

// ErrNoMorePasswords is returned once a FakePrompter runs out of answers.
var ErrNoMorePasswords = errors.New("fake prompter: no more passwords")

// FakePrompter answers password prompts from a fixed list.
type FakePrompter struct {
	mu        sync.Mutex
	passwords []string
	err       error
	prompts   []string
}

// NewFakePrompter returns a prompter that answers with passwords in order.
func NewFakePrompter(passwords ...string) *FakePrompter {
	return &FakePrompter{passwords: passwords}
}

// WithError makes every prompt fail with err, as a dismissed dialog would.
func (f *FakePrompter) WithError(err error) *FakePrompter {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
	return f
}

// PromptPassword implements provider.Prompter.
func (f *FakePrompter) PromptPassword(_ context.Context, prompt string) (*secure.SecureBuffer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return nil, f.err
	}
	if len(f.passwords) == 0 {
		return nil, ErrNoMorePasswords
	}
	pw := f.passwords[0]
	f.passwords = f.passwords[1:]
	return secure.NewString(pw), nil
}

// Prompts returns the prompt texts shown so far.
func (f *FakePrompter) Prompts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.prompts...)
}

var _ provider.Prompter = (*FakePrompter)(nil)
