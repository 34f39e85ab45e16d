package rofi

import (
	"context"
	"errors"

	"github.com/systmms/secretmenu/internal/secure"
	"github.com/systmms/secretmenu/pkg/provider"
)

// ErrCancelled is returned when the password window is dismissed.
var ErrCancelled = errors.New("password prompt cancelled")

// Prompter asks for passwords through a rofi password window.
type Prompter struct {
	client *Client
}

// NewPrompter returns a Prompter backed by c.
func NewPrompter(c *Client) *Prompter {
	return &Prompter{client: c}
}

// PromptPassword implements provider.Prompter.
func (p *Prompter) PromptPassword(ctx context.Context, prompt string) (*secure.SecureBuffer, error) {
	w := NewWindow(prompt).
		Password(true).
		Lines(0).
		Args("-dmenu")

	resp, err := p.client.Show(ctx, w, nil)
	if err != nil {
		return nil, err
	}
	password, err := resp.Selection()
	if err != nil {
		return nil, ErrCancelled
	}
	return secure.NewString(password), nil
}

var _ provider.Prompter = (*Prompter)(nil)
