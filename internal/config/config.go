package config

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"

	apperrors "github.com/systmms/secretmenu/internal/errors"
	"github.com/systmms/secretmenu/internal/logging"
)

// FileName is the configuration file looked up in the user config directory.
const FileName = "config.json"

//go:embed schema.json
var schema []byte

// Config holds the runtime configuration
type Config struct {
	Path       string
	Logger     *logging.Logger
	Definition *Definition
}

// Definition represents the config.json structure
type Definition struct {
	Providers map[string]ProviderConfig `yaml:"providers" json:"providers"`
}

// ProviderConfig holds provider-specific configuration
type ProviderConfig struct {
	Type string `yaml:"type" json:"type"`
	// Shortcut is an optional menu key that jumps straight to this provider.
	Shortcut string         `yaml:"shortcut,omitempty" json:"shortcut,omitempty"`
	Config   map[string]any `yaml:"config,omitempty" json:"config,omitempty"`
}

// DefaultPath returns <user config dir>/secretmenu/config.json.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locate user config directory: %w", err)
	}
	return filepath.Join(dir, "secretmenu", FileName), nil
}

// Load reads, validates and parses the configuration file, which may be
// JSON or YAML.
func (c *Config) Load() error {
	data, err := os.ReadFile(c.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return apperrors.ConfigError{
				Field:      "path",
				Value:      c.Path,
				Message:    "configuration file not found",
				Suggestion: fmt.Sprintf(`Create %s with a "providers" object, e.g. {"providers": {"vault": {"type": "bitwarden"}}}`, c.Path),
				Err:        err,
			}
		}
		return apperrors.UserError{
			Message:    "Failed to read configuration file",
			Details:    err.Error(),
			Suggestion: "Check file permissions and path",
			Err:        err,
		}
	}

	def, err := Parse(data)
	if err != nil {
		return err
	}

	if c.Logger != nil {
		c.Logger.Debug("Loaded %d provider(s) from %s", len(def.Providers), c.Path)
	}
	c.Definition = def
	return nil
}

// Parse decodes and validates a configuration document.
func Parse(data []byte) (*Definition, error) {
	var raw map[string]any
	if err := decode(data, &raw); err != nil {
		return nil, apperrors.ConfigError{
			Message:    "invalid syntax in configuration file",
			Suggestion: "Check for missing quotes, commas or braces",
			Err:        err,
		}
	}
	if raw == nil {
		raw = map[string]any{}
	}

	if err := validate(raw); err != nil {
		return nil, err
	}

	var def Definition
	if err := decode(data, &def); err != nil {
		return nil, apperrors.ConfigError{
			Message: "configuration does not match the expected structure",
			Err:     err,
		}
	}
	if def.Providers == nil {
		def.Providers = map[string]ProviderConfig{}
	}
	return &def, nil
}

// decode reads strict JSON with encoding/json and everything else as YAML.
// yaml.v3 rejects some valid JSON, such as tab indentation.
func decode(data []byte, v any) error {
	if json.Valid(data) {
		return json.Unmarshal(data, v)
	}
	return yaml.Unmarshal(data, v)
}

func validate(raw map[string]any) error {
	doc, err := json.Marshal(raw)
	if err != nil {
		return apperrors.ConfigError{
			Message: "configuration cannot be represented as JSON",
			Err:     err,
		}
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(schema),
		gojsonschema.NewBytesLoader(doc),
	)
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}

	if !result.Valid() {
		var errorMessages []string
		for _, desc := range result.Errors() {
			errorMessages = append(errorMessages, desc.String())
		}
		return apperrors.ConfigError{
			Message:    "schema validation failed:\n  - " + strings.Join(errorMessages, "\n  - "),
			Suggestion: `Each provider needs a "type" and may carry "shortcut" and "config"`,
		}
	}
	return nil
}

// GetProvider returns the configuration for a provider
func (c *Config) GetProvider(name string) (ProviderConfig, error) {
	if c.Definition == nil {
		return ProviderConfig{}, apperrors.UserError{
			Message:    "Configuration not loaded",
			Suggestion: "This is an internal error. Please report it",
		}
	}

	if p, ok := c.Definition.Providers[name]; ok {
		return p, nil
	}

	suggestion := `Add the provider to the "providers" object of your configuration`
	if available := c.ProviderNames(); len(available) > 0 {
		suggestion = fmt.Sprintf("Available providers: %s", strings.Join(available, ", "))
	}

	return ProviderConfig{}, apperrors.ConfigError{
		Field:      "provider",
		Value:      name,
		Message:    "provider not found in configuration",
		Suggestion: suggestion,
	}
}

// ProviderNames returns the configured provider names in sorted order.
func (c *Config) ProviderNames() []string {
	if c.Definition == nil {
		return nil
	}
	names := make([]string, 0, len(c.Definition.Providers))
	for name := range c.Definition.Providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ProviderByShortcut returns the name of the provider bound to shortcut.
func (c *Config) ProviderByShortcut(shortcut string) (string, bool) {
	for _, name := range c.ProviderNames() {
		if c.Definition.Providers[name].Shortcut == shortcut && shortcut != "" {
			return name, true
		}
	}
	return "", false
}
