// TVShim - Rental Television Control Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tvshim

package config

import (
	"fmt"
	"time"
)

// Config holds all application configuration.
//
// Loading order (Koanf v2):
//  1. Defaults: built-in values for every optional setting
//  2. Config file: optional YAML file (config.yaml or CONFIG_PATH)
//  3. Environment variables: override any mapped setting
//
// Device profiles are normally declared in the YAML file. When none are
// declared the built-in profiles apply (see builtinProfiles).
//
// Config is immutable after Load and safe for concurrent reads.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Security SecurityConfig `koanf:"security"`
	Logging  LoggingConfig  `koanf:"logging"`
	Bridge   BridgeConfig   `koanf:"bridge"`
	Monitor  MonitorConfig  `koanf:"monitor"`
	Audit    AuditConfig    `koanf:"audit"`
	Devices  DevicesConfig  `koanf:"devices"`
}

// ServerConfig holds HTTP server settings.
//
// Environment Variables:
//   - HTTP_PORT or PORT: listen port (default: 3001)
//   - HTTP_HOST: bind address (default: 0.0.0.0)
//   - HTTP_TIMEOUT: request read timeout (default: 30s)
//   - SHUTDOWN_TIMEOUT: graceful drain period (default: 10s)
//   - ENVIRONMENT: development or production
type ServerConfig struct {
	Port            int           `koanf:"port"`
	Host            string        `koanf:"host"`
	Timeout         time.Duration `koanf:"timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	Environment     string        `koanf:"environment"`
}

// Addr returns host:port for http.Server.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// SecurityConfig holds CORS and rate limiting settings.
type SecurityConfig struct {
	CORSOrigins       []string      `koanf:"cors_origins"`
	RateLimitReqs     int           `koanf:"rate_limit_reqs"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// BridgeConfig describes how the device-bridge tool (adb) is invoked.
//
// Environment Variables:
//   - ADB_PATH: tool binary (default: adb, resolved through PATH)
//   - ADB_PORT: TCP port appended to device addresses (default: 5555)
//   - ADB_TIMEOUT: default per-invocation timeout (default: 10s)
//   - ADB_LONG_TIMEOUT: timeout for connect and video playback (default: 15s)
//   - ADB_SETTLE_DELAY: pause after connect and between alternatives (default: 2s)
//   - ADB_COMMANDS_PER_SECOND: per-device pacing, 0 disables (default: 0)
type BridgeConfig struct {
	Path              string        `koanf:"path"`
	Port              int           `koanf:"port"`
	DefaultTimeout    time.Duration `koanf:"default_timeout"`
	LongTimeout       time.Duration `koanf:"long_timeout"`
	SettleDelay       time.Duration `koanf:"settle_delay"`
	CommandsPerSecond float64       `koanf:"commands_per_second"`
	CommandBurst      int           `koanf:"command_burst"`
	Breaker           BreakerConfig `koanf:"breaker"`
}

// BreakerConfig configures the per-device circuit breaker around the bridge.
type BreakerConfig struct {
	Enabled bool `koanf:"enabled"`

	// MaxRequests allowed through while half-open.
	MaxRequests uint32 `koanf:"max_requests"`

	// Interval clears closed-state counts; 0 never clears.
	Interval time.Duration `koanf:"interval"`

	// Timeout is how long the breaker stays open.
	Timeout time.Duration `koanf:"timeout"`

	// FailureThreshold is the number of consecutive failures that trips it.
	FailureThreshold uint32 `koanf:"failure_threshold"`
}

// MonitorConfig configures the rental timeout monitor.
//
// Environment Variables:
//   - HEARTBEAT_INTERVAL: idle keep-alive period on event streams (default: 10s)
//   - MONITOR_ACTION_TIMEOUT: upper bound for one timeout action (default: 2m)
//   - MONITOR_DEFAULT_TIMEOUT_SECONDS: delay used when a request omits it (default: 30)
//   - MONITOR_JOURNAL_ENABLED / MONITOR_JOURNAL_PATH: persist live timers in BadgerDB
//   - MONITOR_JOURNAL_GC_INTERVAL: value-log GC period for the journal (default: 10m)
type MonitorConfig struct {
	HeartbeatInterval     time.Duration `koanf:"heartbeat_interval"`
	ActionTimeout         time.Duration `koanf:"action_timeout"`
	DefaultTimeoutSeconds int           `koanf:"default_timeout_seconds"`
	EventBuffer           int           `koanf:"event_buffer"`
	JournalEnabled        bool          `koanf:"journal_enabled"`
	JournalPath           string        `koanf:"journal_path"`
	JournalGCInterval     time.Duration `koanf:"journal_gc_interval"`
}

// AuditConfig configures the in-memory trail of television operations
// served at /audit.
//
// Environment Variables:
//   - AUDIT_ENABLED: record operations (default: true)
//   - AUDIT_MAX_EVENTS: events kept before the oldest are dropped (default: 5000)
//   - AUDIT_RETENTION: age after which events are pruned (default: 168h)
//   - AUDIT_LOG_TO_STDOUT: also emit each event as a log line (default: false)
type AuditConfig struct {
	Enabled         bool          `koanf:"enabled"`
	MaxEvents       int           `koanf:"max_events"`
	BufferSize      int           `koanf:"buffer_size"`
	Retention       time.Duration `koanf:"retention"`
	CleanupInterval time.Duration `koanf:"cleanup_interval"`
	LogToStdout     bool          `koanf:"log_to_stdout"`
}

// DevicesConfig holds the device profile table.
type DevicesConfig struct {
	// VideoPath is the timeout video on the device, used when a profile has none.
	VideoPath string `koanf:"video_path"`

	// HomeDelay is the pause after pressing HOME before playback starts.
	HomeDelay time.Duration `koanf:"home_delay"`

	// ControlKeys maps /tv-control actions to key codes.
	ControlKeys map[string]string `koanf:"control_keys"`

	Profiles []ProfileConfig `koanf:"profiles"`
	Default  ProfileConfig   `koanf:"default"`
}

// ProfileConfig is one device profile as written in the config file.
//
//	profiles:
//	  - name: xiaomi-lounge
//	    address: 192.168.1.20
//	    inputs:
//	      hdmi2:
//	        - {key: "178", pause: 2s}
//	        - {key: "20", repeat: 3, pause: 1s}
//	        - {key: "23"}
//	    video_commands:
//	      - [shell, am, start, -a, android.intent.action.VIEW, -d, "file://{video_path}", -t, video/mp4]
type ProfileConfig struct {
	Name          string                     `koanf:"name"`
	Address       string                     `koanf:"address"`
	VideoPath     string                     `koanf:"video_path"`
	Inputs        map[string][]KeyStepConfig `koanf:"inputs"`
	VideoCommands [][]string                 `koanf:"video_commands"`
}

// KeyStepConfig is one key press in an input switching sequence.
type KeyStepConfig struct {
	Key    string        `koanf:"key"`
	Repeat int           `koanf:"repeat"`
	Pause  time.Duration `koanf:"pause"`
}

// IsProduction reports whether ENVIRONMENT=production.
func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}

// Load reads configuration from defaults, the optional config file and the environment.
func Load() (*Config, error) {
	return LoadWithKoanf()
}
