package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

var envKeys = []string{
	"PANE_GATEWAY_SESSION", "PANE_GATEWAY_SOCKET", "PANE_GATEWAY_POLL_INTERVAL",
	"PANE_GATEWAY_REFRESH_INTERVAL", "PANE_GATEWAY_LOG_FILE", "PANE_GATEWAY_LOG_LEVEL",
	"PANE_GATEWAY_THEME", "PANE_GATEWAY_MAX_TABS", "PANE_GATEWAY_STATUS_BAR_HEIGHT",
	"PANE_GATEWAY_SCROLLBACK_LINES", "PANE_GATEWAY_LOG_MAX_SIZE_MB",
	"PANE_GATEWAY_TMUX_ENABLED", "PANE_GATEWAY_HIDE_WINDOW_PADDING_ON_SPLIT",
	"PANE_GATEWAY_WINDOW_PADDING", "OTEL_EXPORTER_OTLP_ENDPOINT", "OTEL_EXPORTER_OTLP_HEADERS",
}

// isolate clears env vars and points the search at an empty directory.
func isolate(t *testing.T) string {
	t.Helper()
	for _, key := range envKeys {
		t.Setenv(key, "")
	}
	dir := t.TempDir()
	t.Setenv("HOME", filepath.Join(dir, "home"))
	t.Chdir(dir)
	return dir
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	if !cfg.TmuxEnabled {
		t.Error("TmuxEnabled: got false, want true")
	}
	if cfg.Session != "main" {
		t.Errorf("Session: got %q, want %q", cfg.Session, "main")
	}
	if cfg.MaxTabs != 0 {
		t.Errorf("MaxTabs: got %d, want 0", cfg.MaxTabs)
	}
	if cfg.StatusBarHeight != 1 {
		t.Errorf("StatusBarHeight: got %d, want 1", cfg.StatusBarHeight)
	}
	if cfg.ScrollbackLines != 2000 {
		t.Errorf("ScrollbackLines: got %d, want 2000", cfg.ScrollbackLines)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel: got %q, want %q", cfg.LogLevel, "info")
	}
}

func TestLoadWithoutFile(t *testing.T) {
	isolate(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.ConfigFile != "" {
		t.Errorf("ConfigFile: got %q, want empty", cfg.ConfigFile)
	}
	if cfg.PollDuration != 33*time.Millisecond {
		t.Errorf("PollDuration: got %v, want 33ms", cfg.PollDuration)
	}
	if cfg.RefreshDuration != 100*time.Millisecond {
		t.Errorf("RefreshDuration: got %v, want 100ms", cfg.RefreshDuration)
	}
}

func TestParseDurationOrDisable(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantMs  int64
		wantErr bool
	}{
		{"empty returns fallback", "", 5000, false},
		{"zero disables", "0", 0, false},
		{"off disables", "off", 0, false},
		{"disable disables", "disable", 0, false},
		{"valid duration", "30s", 30000, false},
		{"valid short duration", "500ms", 500, false},
		{"invalid", "not-a-duration", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseDurationOrDisable(tt.input, 5*time.Second)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseDurationOrDisable(%q): error = %v, wantErr = %v", tt.input, err, tt.wantErr)
			}
			if !tt.wantErr && got.Milliseconds() != tt.wantMs {
				t.Errorf("parseDurationOrDisable(%q) = %v, want %dms", tt.input, got, tt.wantMs)
			}
		})
	}
}

func TestLoadFromYAML(t *testing.T) {
	dir := isolate(t)
	writeFile(t, filepath.Join(dir, ".pane-gateway.yaml"), `tmux_enabled: false
session: work
socket: gw
max_tabs: 8
hide_window_padding_on_split: true
window_padding: 4.5
refresh_interval: "off"
`)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.ConfigFile != ".pane-gateway.yaml" {
		t.Errorf("ConfigFile: got %q", cfg.ConfigFile)
	}
	if cfg.TmuxEnabled {
		t.Error("TmuxEnabled: got true, want false")
	}
	if cfg.Session != "work" || cfg.Socket != "gw" {
		t.Errorf("Session/Socket: got %q/%q, want work/gw", cfg.Session, cfg.Socket)
	}
	if cfg.MaxTabs != 8 {
		t.Errorf("MaxTabs: got %d, want 8", cfg.MaxTabs)
	}
	if !cfg.HideWindowPaddingOnSplit {
		t.Error("HideWindowPaddingOnSplit: got false, want true")
	}
	if cfg.WindowPadding != 4.5 {
		t.Errorf("WindowPadding: got %v, want 4.5", cfg.WindowPadding)
	}
	if cfg.RefreshDuration != 0 {
		t.Errorf("RefreshDuration: got %v, want 0", cfg.RefreshDuration)
	}
	// keys absent from the file keep their defaults
	if cfg.ScrollbackLines != 2000 || cfg.StatusBarHeight != 1 {
		t.Errorf("defaults lost: scrollback %d, status bar %d", cfg.ScrollbackLines, cfg.StatusBarHeight)
	}
}

func TestLoadFromTOMLInHome(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "home", ".config", "pane-gateway", "config.toml")
	writeFile(t, path, `session = "remote"
max_tabs = 3
poll_interval = "50ms"
theme = "light"
`)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.ConfigFile != path {
		t.Errorf("ConfigFile: got %q, want %q", cfg.ConfigFile, path)
	}
	if cfg.Session != "remote" || cfg.MaxTabs != 3 || cfg.Theme != "light" {
		t.Errorf("got session %q, max tabs %d, theme %q", cfg.Session, cfg.MaxTabs, cfg.Theme)
	}
	if cfg.PollDuration != 50*time.Millisecond {
		t.Errorf("PollDuration: got %v, want 50ms", cfg.PollDuration)
	}
	if !cfg.TmuxEnabled {
		t.Error("TmuxEnabled default lost")
	}
}

func TestLocalFileWinsOverHome(t *testing.T) {
	dir := isolate(t)
	writeFile(t, filepath.Join(dir, "home", ".config", "pane-gateway", "config.yaml"), "session: home\n")
	writeFile(t, filepath.Join(dir, ".pane-gateway.toml"), "session = \"local\"\n")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Session != "local" {
		t.Errorf("Session: got %q, want local", cfg.Session)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	dir := isolate(t)
	writeFile(t, filepath.Join(dir, ".pane-gateway.yaml"), "session: file\nmax_tabs: 2\n")

	t.Setenv("PANE_GATEWAY_SESSION", "env")
	t.Setenv("PANE_GATEWAY_MAX_TABS", "5")
	t.Setenv("PANE_GATEWAY_TMUX_ENABLED", "false")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "http://localhost:4318")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Session != "env" {
		t.Errorf("Session: got %q, want env (env should override file)", cfg.Session)
	}
	if cfg.MaxTabs != 5 {
		t.Errorf("MaxTabs: got %d, want 5 (env should override file)", cfg.MaxTabs)
	}
	if cfg.TmuxEnabled {
		t.Error("TmuxEnabled: got true, want false")
	}
	if cfg.OTELEndpoint != "http://localhost:4318" {
		t.Errorf("OTELEndpoint: got %q", cfg.OTELEndpoint)
	}
}

func TestInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		env  string
		val  string
		want string
	}{
		{"bad int", "PANE_GATEWAY_MAX_TABS", "many", "PANE_GATEWAY_MAX_TABS"},
		{"negative ceiling", "PANE_GATEWAY_MAX_TABS", "-1", "max_tabs"},
		{"bad bool", "PANE_GATEWAY_TMUX_ENABLED", "maybe", "PANE_GATEWAY_TMUX_ENABLED"},
		{"zero poll", "PANE_GATEWAY_POLL_INTERVAL", "off", "poll interval"},
		{"bad level", "PANE_GATEWAY_LOG_LEVEL", "loud", "log_level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolate(t)
			t.Setenv(tt.env, tt.val)
			_, err := Load()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("got %v, want error mentioning %q", err, tt.want)
			}
		})
	}
}

func TestLoadFileExplicit(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "custom.yml")
	writeFile(t, path, "session: custom\n")

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error: %v", err)
	}
	if cfg.Session != "custom" {
		t.Errorf("Session: got %q, want custom", cfg.Session)
	}

	if _, err := LoadFile(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("missing explicit file: expected error")
	}
}

func TestMalformedFile(t *testing.T) {
	dir := isolate(t)
	writeFile(t, filepath.Join(dir, ".pane-gateway.toml"), "session = \n")
	if _, err := Load(); err == nil {
		t.Error("expected parse error")
	}
}
