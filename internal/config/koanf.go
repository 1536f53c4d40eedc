// TVShim - Rental Television Control Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tvshim

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths searched for a config file, in order.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/tvshim/config.yaml",
	"/etc/tvshim/config.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns the scalar defaults. Device profiles and control keys
// are filled in by applyDeviceDefaults after unmarshaling.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            3001,
			Host:            "0.0.0.0",
			Timeout:         30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			Environment:     "development",
		},
		Security: SecurityConfig{
			CORSOrigins:       []string{"*"},
			RateLimitReqs:     120,
			RateLimitWindow:   time.Minute,
			RateLimitDisabled: false,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
		Bridge: BridgeConfig{
			Path:              "adb",
			Port:              5555,
			DefaultTimeout:    10 * time.Second,
			LongTimeout:       15 * time.Second,
			SettleDelay:       2 * time.Second,
			CommandsPerSecond: 0, // Unlimited
			CommandBurst:      1,
			Breaker: BreakerConfig{
				Enabled:          true,
				MaxRequests:      1,
				Interval:         time.Minute,
				Timeout:          30 * time.Second,
				FailureThreshold: 5,
			},
		},
		Monitor: MonitorConfig{
			HeartbeatInterval:     10 * time.Second,
			ActionTimeout:         2 * time.Minute,
			DefaultTimeoutSeconds: 30,
			EventBuffer:           16,
			JournalEnabled:        false,
			JournalPath:           "/data/monitor",
			JournalGCInterval:     10 * time.Minute,
		},
		Audit: AuditConfig{
			Enabled:         true,
			MaxEvents:       5000,
			BufferSize:      256,
			Retention:       7 * 24 * time.Hour,
			CleanupInterval: time.Hour,
			LogToStdout:     false,
		},
		Devices: DevicesConfig{
			VideoPath: "/sdcard/Movies/hot.mp4",
			HomeDelay: 3 * time.Second,
		},
	}
}

// LoadWithKoanf loads configuration with layered sources:
//  1. Defaults
//  2. Config file (optional)
//  3. Environment variables (highest priority)
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	applyDeviceDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile returns CONFIG_PATH when it exists, else the first default path found.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// sliceConfigPaths are parsed as comma-separated lists when they arrive as strings.
var sliceConfigPaths = []string{
	"security.cors_origins",
}

// processSliceFields converts comma-separated env values into slices.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok || strVal == "" {
			continue
		}

		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) == 0 {
			continue
		}
		if err := k.Set(path, trimmed); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

// envMappings maps environment variable names (lowercased) to koanf paths.
// Unmapped variables are ignored so the process environment cannot leak into config.
var envMappings = map[string]string{
	"port":             "server.port",
	"http_port":        "server.port",
	"http_host":        "server.host",
	"http_timeout":     "server.timeout",
	"shutdown_timeout": "server.shutdown_timeout",
	"environment":      "server.environment",

	"cors_origins":        "security.cors_origins",
	"rate_limit_requests": "security.rate_limit_reqs",
	"rate_limit_window":   "security.rate_limit_window",
	"disable_rate_limit":  "security.rate_limit_disabled",

	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",

	"adb_path":                "bridge.path",
	"adb_port":                "bridge.port",
	"adb_timeout":             "bridge.default_timeout",
	"adb_long_timeout":        "bridge.long_timeout",
	"adb_settle_delay":        "bridge.settle_delay",
	"adb_commands_per_second": "bridge.commands_per_second",
	"adb_command_burst":       "bridge.command_burst",
	"adb_breaker_enabled":     "bridge.breaker.enabled",
	"adb_breaker_failures":    "bridge.breaker.failure_threshold",
	"adb_breaker_timeout":     "bridge.breaker.timeout",

	"heartbeat_interval":              "monitor.heartbeat_interval",
	"monitor_action_timeout":          "monitor.action_timeout",
	"monitor_default_timeout_seconds": "monitor.default_timeout_seconds",
	"monitor_event_buffer":            "monitor.event_buffer",
	"monitor_journal_enabled":         "monitor.journal_enabled",
	"monitor_journal_path":            "monitor.journal_path",
	"monitor_journal_gc_interval":     "monitor.journal_gc_interval",

	"audit_enabled":       "audit.enabled",
	"audit_max_events":    "audit.max_events",
	"audit_retention":     "audit.retention",
	"audit_log_to_stdout": "audit.log_to_stdout",

	"video_path":       "devices.video_path",
	"video_home_delay": "devices.home_delay",
}

// envTransformFunc maps an environment variable name to a koanf path.
//
// Examples:
//   - HTTP_PORT -> server.port
//   - ADB_PATH -> bridge.path
//   - HEARTBEAT_INTERVAL -> monitor.heartbeat_interval
func envTransformFunc(key string) string {
	if mapped, ok := envMappings[strings.ToLower(key)]; ok {
		return mapped
	}
	return ""
}
