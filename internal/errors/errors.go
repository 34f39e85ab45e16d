package errors

import (
	"errors"
	"fmt"
	"strings"
)

// UserError represents an error that should be shown to the user with helpful context
type UserError struct {
	Message    string
	Suggestion string
	Details    string
	Err        error
}

func (e UserError) Error() string {
	var parts []string

	if e.Message != "" {
		parts = append(parts, e.Message)
	} else if e.Err != nil {
		parts = append(parts, e.Err.Error())
	}

	if e.Details != "" {
		parts = append(parts, "\n  Details: "+e.Details)
	}

	if e.Suggestion != "" {
		parts = append(parts, "\n  Try: "+e.Suggestion)
	}

	return strings.Join(parts, "")
}

func (e UserError) Unwrap() error {
	return e.Err
}

// ConfigError represents a configuration error with helpful context
type ConfigError struct {
	Field      string
	Value      interface{}
	Message    string
	Suggestion string
	Err        error
}

func (e ConfigError) Error() string {
	msg := "Configuration error"
	if e.Field != "" {
		msg += fmt.Sprintf(" in field '%s'", e.Field)
	}
	if e.Value != nil {
		msg += fmt.Sprintf(" (value: %v)", e.Value)
	}
	msg += ": " + e.Message

	if e.Suggestion != "" {
		msg += "\n  Try: " + e.Suggestion
	}

	return msg
}

func (e ConfigError) Unwrap() error {
	return e.Err
}

// CommandError represents a command execution error
type CommandError struct {
	Command    string
	ExitCode   int
	Message    string
	Suggestion string
}

func (e CommandError) Error() string {
	msg := fmt.Sprintf("Command '%s' failed", e.Command)
	if e.ExitCode != 0 {
		msg += fmt.Sprintf(" (exit code: %d)", e.ExitCode)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}

	if e.Suggestion != "" {
		msg += "\n  Try: " + e.Suggestion
	}

	return msg
}

// ProviderError enhances provider-specific errors with context
func ProviderError(provider string, operation string, err error) error {
	return UserError{
		Message:    fmt.Sprintf("%s provider error during %s", provider, operation),
		Suggestion: getProviderSuggestion(provider, err),
		Err:        err,
	}
}

// getProviderSuggestion returns helpful suggestions based on provider type and error
func getProviderSuggestion(provider string, err error) string {
	if err == nil {
		return ""
	}
	errStr := err.Error()

	switch provider {
	case "bitwarden":
		if strings.Contains(errStr, "unauthenticated") || strings.Contains(errStr, "not logged in") {
			return "Run 'bw login' once; secretmenu only unlocks an existing login"
		}
		if strings.Contains(errStr, "failed to decrypt") {
			return "The stored session is stale. Lock the vault from the menu and unlock again"
		}
		if strings.Contains(errStr, "unlock failed") {
			return "Check the master password and try again"
		}
		if strings.Contains(errStr, "executable file not found") {
			return "Install Bitwarden CLI: https://bitwarden.com/help/cli/"
		}

	case "password_store", "pass":
		if strings.Contains(errStr, "not in the password store") {
			return "Check the entry path with 'pass ls'"
		}
		if strings.Contains(errStr, "gpg") || strings.Contains(errStr, "decryption failed") {
			return "Check that your GPG agent is running and the key is available"
		}
		if strings.Contains(errStr, "executable file not found") {
			return "Install pass: https://www.passwordstore.org/"
		}

	case "terraform":
		if strings.Contains(errStr, "No outputs found") {
			return "Run 'terraform apply' in the configured path first"
		}
		if strings.Contains(errStr, "executable file not found") {
			return "Install Terraform: https://developer.hashicorp.com/terraform/install"
		}
	}

	if strings.Contains(errStr, "cancelled") {
		return "The prompt was dismissed; run the command again to retry"
	}

	return ""
}

// WrapCommandNotFound wraps command not found errors with helpful suggestions
func WrapCommandNotFound(command string, err error) error {
	suggestions := map[string]string{
		"bw":        "Install Bitwarden CLI from https://bitwarden.com/help/cli/",
		"pass":      "Install pass from https://www.passwordstore.org/",
		"terraform": "Install Terraform from https://developer.hashicorp.com/terraform/install",
		"rofi":      "Install rofi with your package manager (apt install rofi, pacman -S rofi)",
	}

	suggestion := suggestions[command]
	if suggestion == "" {
		suggestion = fmt.Sprintf("Make sure '%s' is installed and in your PATH", command)
	}

	msg := "command not found"
	if err != nil {
		msg = fmt.Sprintf("command not found: %v", err)
	}

	return CommandError{
		Command:    command,
		Message:    msg,
		Suggestion: suggestion,
	}
}

// SimplifyError simplifies complex error messages for users
func SimplifyError(err error) error {
	if err == nil {
		return nil
	}

	var (
		userErr   UserError
		configErr ConfigError
		cmdErr    CommandError
	)
	if errors.As(err, &userErr) || errors.As(err, &configErr) || errors.As(err, &cmdErr) {
		return err
	}

	rootErr := err
	for {
		unwrapped := errors.Unwrap(rootErr)
		if unwrapped == nil {
			break
		}
		rootErr = unwrapped
	}

	errStr := rootErr.Error()

	if strings.Contains(errStr, "yaml:") {
		return ConfigError{
			Message:    "Invalid configuration format",
			Suggestion: "Check for missing quotes, commas or braces in the config file",
			Err:        err,
		}
	}

	if strings.Contains(errStr, "permission denied") {
		return UserError{
			Message:    "Permission denied",
			Suggestion: "Check file permissions or run with appropriate privileges",
			Err:        err,
		}
	}

	if strings.Contains(errStr, "no such file or directory") {
		return UserError{
			Message:    "File or directory not found",
			Suggestion: "Verify the path exists and is spelled correctly",
			Err:        err,
		}
	}

	return err
}
