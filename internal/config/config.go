// Package config loads the panel configuration from a YAML file with
// environment variable overrides for deployment-specific values.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full panel configuration.
type Config struct {
	Host     HostConfig     `yaml:"host"`
	Listen   string         `yaml:"listen"`
	Tablet   bool           `yaml:"tablet_mode"`
	DataDir  string         `yaml:"data_dir"`
	Debounce DebounceConfig `yaml:"debounce"`
	Guard    GuardConfig    `yaml:"guard"`
}

// HostConfig holds the smart-home host connection settings. The token is
// never read from the file; it comes from the environment only.
type HostConfig struct {
	URL              string        `yaml:"url"`
	Token            string        `yaml:"-"`
	ReconnectWait    time.Duration `yaml:"-"`
	MaxReconnectWait time.Duration `yaml:"-"`
}

func (c *HostConfig) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		URL              string `yaml:"url"`
		ReconnectWait    string `yaml:"reconnect_wait"`
		MaxReconnectWait string `yaml:"max_reconnect_wait"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	if raw.URL != "" {
		c.URL = raw.URL
	}
	if err := setDuration(&c.ReconnectWait, raw.ReconnectWait); err != nil {
		return err
	}
	return setDuration(&c.MaxReconnectWait, raw.MaxReconnectWait)
}

// DebounceConfig holds the per-field-class debounce windows. Values are
// written as duration strings ("500ms", "1s"); unset fields keep their
// defaults.
type DebounceConfig struct {
	Select     time.Duration `yaml:"-"`
	Dropdown   time.Duration `yaml:"-"`
	Text       time.Duration `yaml:"-"`
	StartGrace time.Duration `yaml:"-"`
}

func (c *DebounceConfig) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		Select     string `yaml:"select"`
		Dropdown   string `yaml:"dropdown"`
		Text       string `yaml:"text"`
		StartGrace string `yaml:"start_grace"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	for _, f := range []struct {
		dst *time.Duration
		src string
	}{
		{&c.Select, raw.Select},
		{&c.Dropdown, raw.Dropdown},
		{&c.Text, raw.Text},
		{&c.StartGrace, raw.StartGrace},
	} {
		if err := setDuration(f.dst, f.src); err != nil {
			return err
		}
	}
	return nil
}

// GuardConfig holds the interaction guard settings.
type GuardConfig struct {
	DropdownWindow time.Duration `yaml:"-"`
}

func (c *GuardConfig) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		DropdownWindow string `yaml:"dropdown_window"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	return setDuration(&c.DropdownWindow, raw.DropdownWindow)
}

func setDuration(dst *time.Duration, s string) error {
	if s == "" {
		return nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*dst = d
	return nil
}

// Default returns the stock configuration.
func Default() Config {
	return Config{
		Host: HostConfig{
			URL:              "ws://localhost:8123/api/websocket",
			ReconnectWait:    2 * time.Second,
			MaxReconnectWait: 30 * time.Second,
		},
		Listen:  ":8090",
		DataDir: ".",
		Debounce: DebounceConfig{
			Select:     100 * time.Millisecond,
			Dropdown:   500 * time.Millisecond,
			Text:       800 * time.Millisecond,
			StartGrace: 800 * time.Millisecond,
		},
		Guard: GuardConfig{
			DropdownWindow: 800 * time.Millisecond,
		},
	}
}

// Load reads the config file at path (optional; missing file keeps the
// defaults) and applies environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// Defaults plus env are enough to run.
		case err != nil:
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("failed to parse config: %w", err)
			}
		}
	}

	cfg.Host.URL = getEnv("HOST_URL", cfg.Host.URL)
	cfg.Host.Token = getEnv("HOST_TOKEN", cfg.Host.Token)
	cfg.Listen = getEnv("PANEL_LISTEN", cfg.Listen)
	cfg.DataDir = getEnv("PANEL_DATA_DIR", cfg.DataDir)
	if v := os.Getenv("PANEL_TABLET_MODE"); v != "" {
		cfg.Tablet = v == "1" || v == "true"
	}

	if cfg.Host.Token == "" {
		return cfg, fmt.Errorf("HOST_TOKEN is required")
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
