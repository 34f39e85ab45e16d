// Package fakes provides test doubles for secretmenu interfaces.
//
// Fakes are manually implemented (not generated) to provide precise control
// over test behavior. They have working in-memory implementations, which
// makes them more realistic than mocks.
//
// Usage:
//
//	prompter := fakes.NewFakePrompter("wrong", "hunter2")
//	deps := providers.Deps{Prompter: prompter, Store: credstore.NewMemory()}
//	// Build a provider with deps and exercise it...
package fakes
