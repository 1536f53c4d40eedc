// TVShim - Rental Television Control Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tvshim

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// TestDefaultConfig verifies that defaultConfig() returns proper defaults
func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := defaultConfig()

	if cfg.Server.Port != 3001 {
		t.Errorf("Server.Port = %d, want 3001", cfg.Server.Port)
	}
	if cfg.Bridge.Path != "adb" {
		t.Errorf("Bridge.Path = %q, want adb", cfg.Bridge.Path)
	}
	if cfg.Bridge.DefaultTimeout != 10*time.Second {
		t.Errorf("Bridge.DefaultTimeout = %v, want 10s", cfg.Bridge.DefaultTimeout)
	}
	if cfg.Bridge.LongTimeout != 15*time.Second {
		t.Errorf("Bridge.LongTimeout = %v, want 15s", cfg.Bridge.LongTimeout)
	}
	if cfg.Monitor.HeartbeatInterval != 10*time.Second {
		t.Errorf("Monitor.HeartbeatInterval = %v, want 10s", cfg.Monitor.HeartbeatInterval)
	}
	if cfg.Monitor.DefaultTimeoutSeconds != 30 {
		t.Errorf("Monitor.DefaultTimeoutSeconds = %d, want 30", cfg.Monitor.DefaultTimeoutSeconds)
	}
	if !cfg.Audit.Enabled || cfg.Audit.MaxEvents != 5000 {
		t.Errorf("Audit = %+v, want enabled with 5000 events", cfg.Audit)
	}
	if cfg.Devices.VideoPath != "/sdcard/Movies/hot.mp4" {
		t.Errorf("Devices.VideoPath = %q, want /sdcard/Movies/hot.mp4", cfg.Devices.VideoPath)
	}
}

func TestEnvTransformFunc(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input    string
		expected string
	}{
		{"HTTP_PORT", "server.port"},
		{"PORT", "server.port"},
		{"ADB_PATH", "bridge.path"},
		{"ADB_LONG_TIMEOUT", "bridge.long_timeout"},
		{"ADB_BREAKER_FAILURES", "bridge.breaker.failure_threshold"},
		{"HEARTBEAT_INTERVAL", "monitor.heartbeat_interval"},
		{"MONITOR_JOURNAL_PATH", "monitor.journal_path"},
		{"VIDEO_PATH", "devices.video_path"},
		{"AUDIT_RETENTION", "audit.retention"},
		{"CORS_ORIGINS", "security.cors_origins"},
		{"LOG_LEVEL", "logging.level"},
		{"HOME", ""},
		{"RANDOM_VAR", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()
			if result := envTransformFunc(tt.input); result != tt.expected {
				t.Errorf("envTransformFunc(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestFindConfigFile(t *testing.T) {
	tmpDir := t.TempDir()

	t.Run("CONFIG_PATH env var takes precedence", func(t *testing.T) {
		customPath := filepath.Join(tmpDir, "custom_config.yaml")
		if err := os.WriteFile(customPath, []byte("server: {}"), 0o644); err != nil {
			t.Fatalf("Failed to create custom config file: %v", err)
		}
		t.Setenv(ConfigPathEnvVar, customPath)

		if result := findConfigFile(); result != customPath {
			t.Errorf("findConfigFile() = %q, want %q", result, customPath)
		}
	})

	t.Run("CONFIG_PATH env var with non-existent file", func(t *testing.T) {
		t.Setenv(ConfigPathEnvVar, filepath.Join(tmpDir, "missing.yaml"))

		if result := findConfigFile(); result != "" {
			t.Errorf("findConfigFile() = %q, want empty string", result)
		}
	})
}

func TestLoadWithKoanfDefaults(t *testing.T) {
	t.Setenv(ConfigPathEnvVar, filepath.Join(t.TempDir(), "none.yaml"))

	cfg, err := LoadWithKoanf()
	if err != nil {
		t.Fatalf("LoadWithKoanf() error = %v", err)
	}

	if len(cfg.Devices.Profiles) != 1 || cfg.Devices.Profiles[0].Address != "192.168.1.20" {
		t.Fatalf("expected built-in profile for 192.168.1.20, got %+v", cfg.Devices.Profiles)
	}
	if len(cfg.Devices.Profiles[0].VideoCommands) != 3 {
		t.Errorf("built-in profile has %d video commands, want 3", len(cfg.Devices.Profiles[0].VideoCommands))
	}
	if _, ok := cfg.Devices.Default.Inputs[InputHDMI2]; !ok {
		t.Error("default profile is missing the hdmi2 input")
	}
	if cfg.Devices.ControlKeys["power_off"] != "KEYCODE_POWER" {
		t.Errorf("ControlKeys[power_off] = %q, want KEYCODE_POWER", cfg.Devices.ControlKeys["power_off"])
	}
	if got := cfg.Devices.ConfiguredAddresses(); len(got) != 1 || got[0] != "192.168.1.20" {
		t.Errorf("ConfiguredAddresses() = %v", got)
	}
}

func TestLoadWithKoanfEnvVars(t *testing.T) {
	t.Setenv(ConfigPathEnvVar, filepath.Join(t.TempDir(), "none.yaml"))
	t.Setenv("HTTP_PORT", "9000")
	t.Setenv("ADB_PATH", "/opt/platform-tools/adb")
	t.Setenv("HEARTBEAT_INTERVAL", "5s")
	t.Setenv("CORS_ORIGINS", "http://a.local, http://b.local")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := LoadWithKoanf()
	if err != nil {
		t.Fatalf("LoadWithKoanf() error = %v", err)
	}

	if cfg.Server.Port != 9000 {
		t.Errorf("Server.Port = %d, want 9000", cfg.Server.Port)
	}
	if cfg.Bridge.Path != "/opt/platform-tools/adb" {
		t.Errorf("Bridge.Path = %q", cfg.Bridge.Path)
	}
	if cfg.Monitor.HeartbeatInterval != 5*time.Second {
		t.Errorf("Monitor.HeartbeatInterval = %v, want 5s", cfg.Monitor.HeartbeatInterval)
	}
	if len(cfg.Security.CORSOrigins) != 2 || cfg.Security.CORSOrigins[1] != "http://b.local" {
		t.Errorf("Security.CORSOrigins = %v", cfg.Security.CORSOrigins)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}
	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("Server.Host = %q, want 0.0.0.0 (default)", cfg.Server.Host)
	}
}

func TestLoadWithKoanfConfigFile(t *testing.T) {
	configContent := `
server:
  port: 8080
bridge:
  path: /usr/bin/adb
  settle_delay: 500ms
devices:
  video_path: /sdcard/Movies/closing.mp4
  control_keys:
    mute: KEYCODE_VOLUME_MUTE
  profiles:
    - name: bar-left
      address: 10.0.0.5
      inputs:
        HDMI2:
          - {key: 178, pause: 1s}
          - {key: "20", repeat: 2}
          - {key: "23"}
      video_commands:
        - [shell, am, start, -d, "file://{video_path}"]
  default:
    inputs:
      hdmi2:
        - {key: "178"}
    video_commands:
      - [shell, am, start, -a, android.intent.action.VIEW, -d, "file://{video_path}"]
`
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte(configContent), 0o644); err != nil {
		t.Fatalf("Failed to create config file: %v", err)
	}
	t.Setenv(ConfigPathEnvVar, configPath)
	t.Setenv("HTTP_PORT", "9999")

	cfg, err := LoadWithKoanf()
	if err != nil {
		t.Fatalf("LoadWithKoanf() error = %v", err)
	}

	if cfg.Server.Port != 9999 {
		t.Errorf("Server.Port = %d, want 9999 (env override)", cfg.Server.Port)
	}
	if cfg.Bridge.SettleDelay != 500*time.Millisecond {
		t.Errorf("Bridge.SettleDelay = %v, want 500ms", cfg.Bridge.SettleDelay)
	}
	if cfg.Devices.VideoPath != "/sdcard/Movies/closing.mp4" {
		t.Errorf("Devices.VideoPath = %q", cfg.Devices.VideoPath)
	}
	if len(cfg.Devices.Profiles) != 1 {
		t.Fatalf("expected 1 profile, got %d", len(cfg.Devices.Profiles))
	}
	p := cfg.Devices.Profiles[0]
	steps, ok := p.Inputs["hdmi2"]
	if !ok {
		t.Fatalf("input names should be lower-cased, got %v", p.Inputs)
	}
	if len(steps) != 3 || steps[0].Key != "178" || steps[0].Pause != time.Second || steps[1].Repeat != 2 {
		t.Errorf("unexpected steps: %+v", steps)
	}
	if cfg.Devices.Default.Name != "default" {
		t.Errorf("Default.Name = %q, want default", cfg.Devices.Default.Name)
	}
	if cfg.Devices.ControlKeys["mute"] != "KEYCODE_VOLUME_MUTE" || cfg.Devices.ControlKeys["volume_up"] != "KEYCODE_VOLUME_UP" {
		t.Errorf("ControlKeys should merge file and built-ins, got %v", cfg.Devices.ControlKeys)
	}
}

func TestLoadWithKoanfValidation(t *testing.T) {
	tests := []struct {
		name    string
		envVars map[string]string
		errMsg  string
	}{
		{
			name:    "invalid port",
			envVars: map[string]string{"HTTP_PORT": "70000"},
			errMsg:  "HTTP_PORT",
		},
		{
			name:    "invalid log level",
			envVars: map[string]string{"LOG_LEVEL": "verbose"},
			errMsg:  "LOG_LEVEL",
		},
		{
			name:    "long timeout shorter than default",
			envVars: map[string]string{"ADB_TIMEOUT": "20s", "ADB_LONG_TIMEOUT": "15s"},
			errMsg:  "ADB_LONG_TIMEOUT",
		},
		{
			name:    "journal without path",
			envVars: map[string]string{"MONITOR_JOURNAL_ENABLED": "true", "MONITOR_JOURNAL_PATH": " "},
			errMsg:  "MONITOR_JOURNAL_PATH",
		},
		{
			name:    "zero heartbeat",
			envVars: map[string]string{"HEARTBEAT_INTERVAL": "0s"},
			errMsg:  "HEARTBEAT_INTERVAL",
		},
		{
			name:    "audit without capacity",
			envVars: map[string]string{"AUDIT_MAX_EVENTS": "0"},
			errMsg:  "AUDIT_MAX_EVENTS",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(ConfigPathEnvVar, filepath.Join(t.TempDir(), "none.yaml"))
			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}

			_, err := LoadWithKoanf()
			if err == nil {
				t.Fatal("expected validation error, got nil")
			}
			if !strings.Contains(err.Error(), tt.errMsg) {
				t.Errorf("error = %q, want it to mention %q", err.Error(), tt.errMsg)
			}
		})
	}
}

func TestValidateDevices(t *testing.T) {
	t.Parallel()

	base := func() *Config {
		cfg := defaultConfig()
		applyDeviceDefaults(cfg)
		return cfg
	}

	t.Run("built-ins are valid", func(t *testing.T) {
		t.Parallel()
		if err := base().Validate(); err != nil {
			t.Errorf("Validate() = %v", err)
		}
	})

	t.Run("duplicate address", func(t *testing.T) {
		t.Parallel()
		cfg := base()
		cfg.Devices.Profiles = append(cfg.Devices.Profiles, cfg.Devices.Profiles[0])
		if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "duplicate") {
			t.Errorf("Validate() = %v, want duplicate address error", err)
		}
	})

	t.Run("non-IP address", func(t *testing.T) {
		t.Parallel()
		cfg := base()
		cfg.Devices.Profiles[0].Address = "living-room"
		if err := cfg.Validate(); err == nil {
			t.Error("expected error for non-IP address")
		}
	})

	t.Run("profile without video commands", func(t *testing.T) {
		t.Parallel()
		cfg := base()
		cfg.Devices.Profiles[0].VideoCommands = nil
		if err := cfg.Validate(); err == nil {
			t.Error("expected error for missing video commands")
		}
	})
}

func TestConfiguredAddresses(t *testing.T) {
	t.Parallel()
	d := DevicesConfig{Profiles: []ProfileConfig{
		{Name: "lounge", Address: "10.0.0.20"},
		{Name: "unaddressed"},
		{Name: "bedroom", Address: "10.0.0.21"},
	}}
	got := d.ConfiguredAddresses()
	if len(got) != 2 || got[0] != "10.0.0.20" || got[1] != "10.0.0.21" {
		t.Errorf("ConfiguredAddresses() = %v, want [10.0.0.20 10.0.0.21]", got)
	}
}
