// Package config persists the configurator's preferences and routing presets.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/james-see/midi18/pkg/protocol"
	"github.com/james-see/midi18/pkg/routing"
)

// ErrPresetNotFound is returned when no preset has the given name or id
var ErrPresetNotFound = errors.New("preset not found")

// Preset is a named routing table
type Preset struct {
	ID        uuid.UUID     `json:"id"`
	Name      string        `json:"name"`
	CreatedAt time.Time     `json:"created_at"`
	Table     routing.Table `json:"table"`
}

// Config is the main configuration structure
type Config struct {
	InputPort  string   `json:"input_port,omitempty"`
	OutputPort string   `json:"output_port,omitempty"`
	DeviceID   byte     `json:"device_id"`
	Timeout    string   `json:"timeout,omitempty"` // e.g. "2s"
	Presets    []Preset `json:"presets,omitempty"`

	path string
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		DeviceID: protocol.DefaultDeviceID,
		Timeout:  "2s",
	}
}

// ConfigDir returns the config directory path
func ConfigDir() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "midi18"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "midi18"), nil
}

// ConfigPath returns the full path to config.json
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// Load reads the config from the default path, or returns defaults if not found
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return DefaultConfig(), nil
	}
	return LoadFrom(path)
}

// LoadFrom reads the config at path, or returns defaults if the file does not exist
func LoadFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg := DefaultConfig()
			cfg.path = path
			return cfg, nil
		}
		return nil, err
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if cfg.DeviceID > 0x7F {
		return nil, fmt.Errorf("%w: device_id %d in %s", protocol.ErrInvalidAddress, cfg.DeviceID, path)
	}
	cfg.path = path

	return cfg, nil
}

// Path returns the file the config was loaded from
func (c *Config) Path() string {
	return c.path
}

// Save writes the config back to the file it was loaded from
func (c *Config) Save() error {
	path := c.path
	if path == "" {
		var err error
		if path, err = ConfigPath(); err != nil {
			return err
		}
	}
	return c.SaveTo(path)
}

// SaveTo writes the config to path, creating the directory if needed
func (c *Config) SaveTo(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return err
	}
	c.path = path
	return nil
}

// TimeoutDuration parses Timeout, falling back to def when unset or invalid
func (c *Config) TimeoutDuration(def time.Duration) time.Duration {
	if c.Timeout == "" {
		return def
	}
	d, err := time.ParseDuration(c.Timeout)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

// Address returns the default address with the configured device id
func (c *Config) Address() protocol.Address {
	return protocol.DefaultAddress().WithDeviceID(c.DeviceID)
}

// FindPreset finds a preset by name (case-insensitive) or id
func (c *Config) FindPreset(nameOrID string) (*Preset, error) {
	key := strings.TrimSpace(nameOrID)
	for i := range c.Presets {
		p := &c.Presets[i]
		if strings.EqualFold(p.Name, key) || p.ID.String() == key {
			return p, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrPresetNotFound, nameOrID)
}

// SavePreset adds or updates the preset called name
func (c *Config) SavePreset(name string, t routing.Table) (*Preset, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("preset name is empty")
	}

	if p, err := c.FindPreset(name); err == nil {
		p.Table = t
		return p, nil
	}

	c.Presets = append(c.Presets, Preset{
		ID:        uuid.New(),
		Name:      name,
		CreatedAt: time.Now().UTC(),
		Table:     t,
	})
	return &c.Presets[len(c.Presets)-1], nil
}

// DeletePreset removes a preset by name or id
func (c *Config) DeletePreset(nameOrID string) error {
	p, err := c.FindPreset(nameOrID)
	if err != nil {
		return err
	}
	for i := range c.Presets {
		if c.Presets[i].ID == p.ID {
			c.Presets = append(c.Presets[:i], c.Presets[i+1:]...)
			return nil
		}
	}
	return nil
}

// PresetNames returns the preset names in alphabetical order
func (c *Config) PresetNames() []string {
	names := make([]string, 0, len(c.Presets))
	for _, p := range c.Presets {
		names = append(names, p.Name)
	}
	sort.Strings(names)
	return names
}
