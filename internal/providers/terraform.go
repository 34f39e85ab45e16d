package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	apperrors "github.com/systmms/secretmenu/internal/errors"
	"github.com/systmms/secretmenu/internal/logging"
	pkgexec "github.com/systmms/secretmenu/pkg/exec"
	"github.com/systmms/secretmenu/pkg/item"
	"github.com/systmms/secretmenu/pkg/provider"
)

// ActionRefresh re-reads remote state into the Terraform state file.
const ActionRefresh = "refresh"

// TerraformConfig holds configuration for the Terraform provider
type TerraformConfig struct {
	// Path is the Terraform working directory (required).
	Path string
	// Wrapper is prepended to every command, e.g. aws-vault exec prod --.
	Wrapper []string
	// Binary is the terraform executable (default "terraform").
	Binary string
}

// TerraformProvider exposes root module outputs as items.
type TerraformProvider struct {
	name     string
	config   TerraformConfig
	logger   *logging.Logger
	executor pkgexec.CommandExecutor
}

// terraformOutput is one entry of `terraform output -json`.
type terraformOutput struct {
	Sensitive bool            `json:"sensitive"`
	Type      json.RawMessage `json:"type"`
	Value     json.RawMessage `json:"value"`
}

// NewTerraformProviderFactory creates a Terraform provider factory
func NewTerraformProviderFactory(name string, config map[string]any, deps Deps) (provider.Provider, error) {
	var cfg TerraformConfig
	var err error

	if cfg.Path, err = stringOption(config, "path", ""); err != nil {
		return nil, err
	}
	if cfg.Path == "" {
		return nil, fmt.Errorf("missing required 'path' field for Terraform provider")
	}
	if cfg.Path, err = expandHome(cfg.Path); err != nil {
		return nil, err
	}
	if cfg.Wrapper, err = stringsOption(config, "wrapper"); err != nil {
		return nil, err
	}
	if cfg.Binary, err = stringOption(config, "binary", "terraform"); err != nil {
		return nil, err
	}

	return NewTerraformProvider(name, cfg, deps), nil
}

// NewTerraformProvider creates a new Terraform provider.
func NewTerraformProvider(name string, cfg TerraformConfig, deps Deps) *TerraformProvider {
	deps = deps.withDefaults()
	if cfg.Binary == "" {
		cfg.Binary = "terraform"
	}
	return &TerraformProvider{
		name:     name,
		config:   cfg,
		logger:   deps.Logger.Named(name),
		executor: deps.Executor,
	}
}

// Name returns the provider name.
func (tf *TerraformProvider) Name() string {
	return tf.name
}

// ListItems turns each output carrying string values into an item. A string
// output declares Password; an object output declares one Other field per
// string-valued key. Outputs without string values are skipped.
func (tf *TerraformProvider) ListItems(ctx context.Context) ([]item.Item, error) {
	outputs, err := tf.outputs(ctx)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(outputs))
	for name := range outputs {
		names = append(names, name)
	}
	sort.Strings(names)

	items := make([]item.Item, 0, len(names))
	for _, name := range names {
		fields := outputFields(outputs[name].Value)
		if len(fields) == 0 {
			continue
		}
		items = append(items, item.Item{ID: name, Title: name, Fields: fields})
	}
	return items, nil
}

func outputFields(raw json.RawMessage) []item.Field {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return []item.Field{item.Password}
	}

	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil
	}
	keys := make([]string, 0, len(obj))
	for key, v := range obj {
		if _, ok := v.(string); ok {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	fields := make([]item.Field, 0, len(keys))
	for _, key := range keys {
		fields = append(fields, item.Other(key))
	}
	return fields
}

// ReadField re-reads the outputs and returns the requested value.
func (tf *TerraformProvider) ReadField(ctx context.Context, it item.Item, field item.Field) (string, error) {
	if err := provider.CheckField(tf.name, it, field); err != nil {
		return "", err
	}

	outputs, err := tf.outputs(ctx)
	if err != nil {
		return "", err
	}

	out, ok := outputs[it.ID]
	if !ok {
		return "", &provider.NotFoundError{Provider: tf.name, Key: it.ID}
	}

	switch field.Kind {
	case item.KindPassword:
		var s string
		if err := json.Unmarshal(out.Value, &s); err != nil {
			return "", &provider.NotFoundError{Provider: tf.name, Key: it.ID, Err: err}
		}
		return s, nil
	case item.KindOther:
		var obj map[string]any
		if err := json.Unmarshal(out.Value, &obj); err != nil {
			return "", &provider.NotFoundError{Provider: tf.name, Key: it.ID + "." + field.Name, Err: err}
		}
		s, ok := obj[field.Name].(string)
		if !ok {
			return "", &provider.NotFoundError{Provider: tf.name, Key: it.ID + "." + field.Name}
		}
		return s, nil
	default:
		return "", &provider.CapabilityError{Provider: tf.name, Item: it.Title, Field: field}
	}
}

// ListActions offers a state refresh.
func (tf *TerraformProvider) ListActions(context.Context) ([]item.Action, error) {
	return []item.Action{
		{ID: ActionRefresh, Label: "Refresh state", Key: "Alt+r"},
	}, nil
}

// DoAction runs a refresh. Other actions are ignored.
func (tf *TerraformProvider) DoAction(ctx context.Context, action item.Action) error {
	if action.ID != ActionRefresh {
		return nil
	}
	if _, err := tf.run(ctx, "refresh"); err != nil {
		return err
	}
	tf.logger.Info("Terraform state refreshed")
	return nil
}

func (tf *TerraformProvider) outputs(ctx context.Context) (map[string]terraformOutput, error) {
	stdout, err := tf.run(ctx, "output", "-json")
	if err != nil {
		return nil, err
	}

	var outputs map[string]terraformOutput
	if err := json.Unmarshal(stdout, &outputs); err != nil {
		return nil, apperrors.ProviderError(TypeTerraform, "output", fmt.Errorf("failed to parse terraform output: %w", err))
	}
	return outputs, nil
}

// command builds the invocation, prefixed by the configured wrapper.
func (tf *TerraformProvider) command(args ...string) pkgexec.Command {
	argv := make([]string, 0, len(tf.config.Wrapper)+len(args)+2)
	argv = append(argv, tf.config.Wrapper...)
	argv = append(argv, tf.config.Binary, "-chdir="+tf.config.Path)
	argv = append(argv, args...)
	return pkgexec.Command{Name: argv[0], Args: argv[1:]}
}

func (tf *TerraformProvider) run(ctx context.Context, args ...string) ([]byte, error) {
	cmd := tf.command(args...)
	tf.logger.Debug("Running %s %s", cmd.Name, strings.Join(cmd.Args, " "))

	stdout, stderr, err := tf.executor.Execute(ctx, cmd)
	if err != nil {
		detail := strings.TrimSpace(string(stderr))
		if detail == "" {
			detail = err.Error()
		}
		return nil, apperrors.ProviderError(TypeTerraform, args[0], fmt.Errorf("%s: %w", detail, err))
	}
	return stdout, nil
}

var _ provider.Provider = (*TerraformProvider)(nil)
