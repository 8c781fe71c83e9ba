// Package config loads pane-gateway configuration from file and environment.
//
// Precedence (highest to lowest):
//  1. Environment variables (PANE_GATEWAY_*, OTEL_EXPORTER_OTLP_*)
//  2. Config file
//  3. Built-in defaults
//
// Config file search order:
//  1. .pane-gateway.yaml, then .pane-gateway.toml in current directory
//  2. ~/.config/pane-gateway/config.yaml, then config.toml
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Config holds all pane-gateway configuration.
type Config struct {
	// Gateway
	TmuxEnabled bool   `yaml:"tmux_enabled" toml:"tmux_enabled"`
	Session     string `yaml:"session" toml:"session"`
	Socket      string `yaml:"socket" toml:"socket"` // tmux -L socket name
	MaxTabs     int    `yaml:"max_tabs" toml:"max_tabs"`

	// Geometry
	HideWindowPaddingOnSplit bool    `yaml:"hide_window_padding_on_split" toml:"hide_window_padding_on_split"`
	WindowPadding            float64 `yaml:"window_padding" toml:"window_padding"`
	StatusBarHeight          int     `yaml:"status_bar_height" toml:"status_bar_height"` // cells

	// Timing
	PollInterval    string `yaml:"poll_interval" toml:"poll_interval"`       // Go duration string, e.g. "33ms"
	RefreshInterval string `yaml:"refresh_interval" toml:"refresh_interval"` // minimum spacing of refresh-client

	ScrollbackLines int `yaml:"scrollback_lines" toml:"scrollback_lines"`

	// Logging
	LogFile      string `yaml:"log_file" toml:"log_file"`
	LogLevel     string `yaml:"log_level" toml:"log_level"`
	LogMaxSizeMB int    `yaml:"log_max_size_mb" toml:"log_max_size_mb"`

	// OTEL
	OTELEndpoint string `yaml:"otel_endpoint" toml:"otel_endpoint"`
	OTELHeaders  string `yaml:"otel_headers" toml:"otel_headers"` // Comma-separated key=value pairs, e.g. "Authorization=Basic abc123"

	Theme string `yaml:"theme" toml:"theme"`

	// Parsed durations (not from the file, set after loading)
	PollDuration    time.Duration `yaml:"-" toml:"-"`
	RefreshDuration time.Duration `yaml:"-" toml:"-"`

	// ConfigFile is the path to the config file that was loaded (empty if none).
	ConfigFile string `yaml:"-" toml:"-"`
}

// Defaults returns a Config with all default values.
func Defaults() *Config {
	return &Config{
		TmuxEnabled:     true,
		Session:         "main",
		StatusBarHeight: 1,
		PollInterval:    "33ms",
		RefreshInterval: "100ms",
		ScrollbackLines: 2000,
		LogLevel:        "info",
		LogMaxSizeMB:    10,
		Theme:           "dark",
	}
}

var errNoConfigFile = errors.New("no config file found")

// Load reads configuration from the first config file found and the
// environment. Environment variables always override file values.
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile is Load with an explicit config file path. An empty path
// searches the default locations; a missing explicit file is an error.
func LoadFile(path string) (*Config, error) {
	cfg := Defaults()

	var data []byte
	var err error
	if path != "" {
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	} else {
		path, data, err = findConfigFile()
		if err != nil && !errors.Is(err, errNoConfigFile) {
			return nil, err
		}
	}
	if data != nil {
		if err := decodeFile(path, data, cfg); err != nil {
			return nil, err
		}
		cfg.ConfigFile = path
	}

	if err := mergeEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.finish(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// finish parses durations and validates ranges.
func (cfg *Config) finish() error {
	var err error
	cfg.PollDuration, err = parseDurationOrDisable(cfg.PollInterval, 33*time.Millisecond)
	if err != nil {
		return fmt.Errorf("invalid poll interval %q: %w", cfg.PollInterval, err)
	}
	if cfg.PollDuration <= 0 {
		return fmt.Errorf("invalid poll interval %q: must be positive", cfg.PollInterval)
	}
	cfg.RefreshDuration, err = parseDurationOrDisable(cfg.RefreshInterval, 100*time.Millisecond)
	if err != nil {
		return fmt.Errorf("invalid refresh interval %q: %w", cfg.RefreshInterval, err)
	}

	if cfg.MaxTabs < 0 {
		return fmt.Errorf("invalid max_tabs %d: must be >= 0", cfg.MaxTabs)
	}
	if cfg.WindowPadding < 0 {
		return fmt.Errorf("invalid window_padding %v: must be >= 0", cfg.WindowPadding)
	}
	if cfg.StatusBarHeight < 0 {
		return fmt.Errorf("invalid status_bar_height %d: must be >= 0", cfg.StatusBarHeight)
	}
	switch strings.ToLower(cfg.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log_level %q (want debug, info, warn or error)", cfg.LogLevel)
	}
	return nil
}

// decodeFile decodes onto cfg so keys absent from the file keep their
// current value.
func decodeFile(path string, data []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.NewDecoder(bytes.NewReader(data)).Decode(cfg); err != nil {
			return fmt.Errorf("parsing config file %s: %w", path, err)
		}
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	return nil
}

// findConfigFile searches for a config file and returns its path and contents.
func findConfigFile() (string, []byte, error) {
	candidates := []string{".pane-gateway.yaml", ".pane-gateway.toml"}
	if home, err := os.UserHomeDir(); err == nil {
		dir := filepath.Join(home, ".config", "pane-gateway")
		candidates = append(candidates, filepath.Join(dir, "config.yaml"), filepath.Join(dir, "config.toml"))
	}

	for _, path := range candidates {
		data, err := os.ReadFile(path)
		if err == nil {
			return path, data, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return "", nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
	}
	return "", nil, errNoConfigFile
}

// mergeEnv applies environment variables onto cfg. Env always wins.
func mergeEnv(cfg *Config) error {
	strs := []struct {
		env string
		dst *string
	}{
		{"PANE_GATEWAY_SESSION", &cfg.Session},
		{"PANE_GATEWAY_SOCKET", &cfg.Socket},
		{"PANE_GATEWAY_POLL_INTERVAL", &cfg.PollInterval},
		{"PANE_GATEWAY_REFRESH_INTERVAL", &cfg.RefreshInterval},
		{"PANE_GATEWAY_LOG_FILE", &cfg.LogFile},
		{"PANE_GATEWAY_LOG_LEVEL", &cfg.LogLevel},
		{"PANE_GATEWAY_THEME", &cfg.Theme},
		{"OTEL_EXPORTER_OTLP_ENDPOINT", &cfg.OTELEndpoint},
		{"OTEL_EXPORTER_OTLP_HEADERS", &cfg.OTELHeaders},
	}
	for _, s := range strs {
		if v := os.Getenv(s.env); v != "" {
			*s.dst = v
		}
	}

	ints := []struct {
		env string
		dst *int
	}{
		{"PANE_GATEWAY_MAX_TABS", &cfg.MaxTabs},
		{"PANE_GATEWAY_STATUS_BAR_HEIGHT", &cfg.StatusBarHeight},
		{"PANE_GATEWAY_SCROLLBACK_LINES", &cfg.ScrollbackLines},
		{"PANE_GATEWAY_LOG_MAX_SIZE_MB", &cfg.LogMaxSizeMB},
	}
	for _, i := range ints {
		if v := os.Getenv(i.env); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%s: %w", i.env, err)
			}
			*i.dst = n
		}
	}

	bools := []struct {
		env string
		dst *bool
	}{
		{"PANE_GATEWAY_TMUX_ENABLED", &cfg.TmuxEnabled},
		{"PANE_GATEWAY_HIDE_WINDOW_PADDING_ON_SPLIT", &cfg.HideWindowPaddingOnSplit},
	}
	for _, b := range bools {
		if v := os.Getenv(b.env); v != "" {
			on, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("%s: %w", b.env, err)
			}
			*b.dst = on
		}
	}

	if v := os.Getenv("PANE_GATEWAY_WINDOW_PADDING"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("PANE_GATEWAY_WINDOW_PADDING: %w", err)
		}
		cfg.WindowPadding = f
	}
	return nil
}

// parseDurationOrDisable parses a duration string. "0", "off", "disable" return 0.
// Empty string returns the fallback value.
func parseDurationOrDisable(s string, fallback time.Duration) (time.Duration, error) {
	if s == "" {
		return fallback, nil
	}
	if s == "0" || s == "off" || s == "disable" {
		return 0, nil
	}
	return time.ParseDuration(s)
}
