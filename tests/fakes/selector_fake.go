package fakes

import (
	"context"
	"errors"
	"sync"

	"github.com/systmms/secretmenu/internal/rofi"
)

// ErrNoMoreResponses is returned once a FakeSelector runs out of answers.
var ErrNoMoreResponses = errors.New("fake selector: no more responses")

// Shown records one menu display.
type Shown struct {
	Window  rofi.Window
	Options []string
}

// FakeSelector answers menus from a script instead of running rofi.
type FakeSelector struct {
	mu        sync.Mutex
	responses []rofi.Response
	err       error
	shown     []Shown
}

// NewFakeSelector returns a selector that answers with responses in order.
func NewFakeSelector(responses ...rofi.Response) *FakeSelector {
	return &FakeSelector{responses: responses}
}

// WithError makes every Show fail with err.
func (f *FakeSelector) WithError(err error) *FakeSelector {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
	return f
}

// Show records the menu and returns the next scripted response.
func (f *FakeSelector) Show(_ context.Context, w rofi.Window, options []string) (rofi.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.shown = append(f.shown, Shown{Window: w, Options: append([]string(nil), options...)})
	if f.err != nil {
		return rofi.Response{}, f.err
	}
	if len(f.responses) == 0 {
		return rofi.Response{}, ErrNoMoreResponses
	}
	resp := f.responses[0]
	f.responses = f.responses[1:]
	return resp, nil
}

// Shown returns every menu displayed so far.
func (f *FakeSelector) Shown() []Shown {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Shown(nil), f.shown...)
}
