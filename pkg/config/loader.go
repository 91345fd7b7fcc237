package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/praetorian-inc/dynhooks/pkg/types"
)

// Loader reads configuration files on top of defaults.
type Loader struct {
	fs fs.FS // holds defaults.yml
}

// NewLoader creates a loader with the embedded defaults.
func NewLoader() *Loader {
	return &Loader{
		fs: defaultsFS,
	}
}

// NewLoaderWithFS creates a loader reading defaults.yml from fsys.
func NewLoaderWithFS(fsys fs.FS) *Loader {
	return &Loader{
		fs: fsys,
	}
}

// Defaults loads the defaults alone.
func (l *Loader) Defaults() (*Config, error) {
	var yc yamlConfig
	if err := l.decodeDefaults(&yc); err != nil {
		return nil, err
	}
	cfg := convertYAMLConfig(yc)
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid defaults: %w", err)
	}
	return cfg, nil
}

// Load parses YAML bytes over the defaults. Keys missing from data keep their
// default value; unknown keys are an error.
func (l *Loader) Load(data []byte) (*Config, error) {
	var yc yamlConfig
	if err := l.decodeDefaults(&yc); err != nil {
		return nil, err
	}
	if err := decode(data, &yc); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	cfg := convertYAMLConfig(yc)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile loads a config from a YAML file path.
func (l *Loader) LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", path, err)
	}
	return l.Load(data)
}

func (l *Loader) decodeDefaults(yc *yamlConfig) error {
	data, err := fs.ReadFile(l.fs, defaultsFile)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", defaultsFile, err)
	}
	if err := decode(data, yc); err != nil {
		return fmt.Errorf("failed to parse %s: %w", defaultsFile, err)
	}
	return nil
}

func decode(data []byte, yc *yamlConfig) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(yc); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// convertYAMLConfig converts yamlConfig to Config.
func convertYAMLConfig(yc yamlConfig) *Config {
	cfg := &Config{
		AllowContextInBindings:    yc.AllowContextInBindings,
		AllowContextFunctionCalls: yc.AllowContextFunctionCalls,
		UnescapeStrings:           yc.UnescapeStrings,
		CompareByValue:            yc.CompareByValue,
		CompareByValueDepth:       yc.CompareByValueDepth,
		UpdateOnPushOnly:          yc.UpdateOnPushOnly,
		Hooks:                     make([]types.HookSpec, 0, len(yc.Hooks)),
	}
	for _, yh := range yc.Hooks {
		cfg.Hooks = append(cfg.Hooks, types.HookSpec{
			Name:             yh.Name,
			Selector:         yh.Selector,
			OpeningDelimiter: yh.OpeningDelimiter,
			ClosingDelimiter: yh.ClosingDelimiter,
			SelfClosing:      yh.SelfClosing,
			AllowInputs:      yh.AllowInputs,
			DenyInputs:       yh.DenyInputs,
			AllowOutputs:     yh.AllowOutputs,
			DenyOutputs:      yh.DenyOutputs,
		}.WithDefaults())
	}
	return cfg
}
