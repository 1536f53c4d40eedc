// TVShim - Rental Television Control Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tvshim

package config

import (
	"fmt"
	"net"
	"strings"
	"time"
)

// Validate checks that the loaded configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}

	if err := c.validateSecurity(); err != nil {
		return err
	}

	if err := c.validateLogging(); err != nil {
		return err
	}

	if err := c.validateBridge(); err != nil {
		return err
	}

	if err := c.validateMonitor(); err != nil {
		return err
	}

	if err := c.validateAudit(); err != nil {
		return err
	}

	return c.validateDevices()
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535")
	}
	if c.Server.ShutdownTimeout < 0 {
		return fmt.Errorf("SHUTDOWN_TIMEOUT must not be negative")
	}
	return nil
}

// Rate limit bounds
const (
	minRateLimitRequests = 1
	maxRateLimitRequests = 100000
	minRateLimitWindow   = time.Second
	maxRateLimitWindow   = time.Hour
)

func (c *Config) validateSecurity() error {
	if c.Security.RateLimitDisabled {
		return nil
	}
	if c.Security.RateLimitReqs < minRateLimitRequests || c.Security.RateLimitReqs > maxRateLimitRequests {
		return fmt.Errorf("RATE_LIMIT_REQUESTS must be between %d and %d", minRateLimitRequests, maxRateLimitRequests)
	}
	if c.Security.RateLimitWindow < minRateLimitWindow || c.Security.RateLimitWindow > maxRateLimitWindow {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be between %v and %v", minRateLimitWindow, maxRateLimitWindow)
	}
	return nil
}

var validLogLevels = map[string]bool{
	"trace": true,
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var validLogFormats = map[string]bool{
	"json":    true,
	"console": true,
}

func (c *Config) validateLogging() error {
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("LOG_LEVEL must be one of: trace, debug, info, warn, error")
	}
	if c.Logging.Format != "" && !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("LOG_FORMAT must be one of: json, console")
	}
	return nil
}

func (c *Config) validateBridge() error {
	b := c.Bridge
	if strings.TrimSpace(b.Path) == "" {
		return fmt.Errorf("ADB_PATH must not be empty")
	}
	if b.Port < 1 || b.Port > 65535 {
		return fmt.Errorf("ADB_PORT must be between 1 and 65535")
	}
	if b.DefaultTimeout <= 0 || b.LongTimeout <= 0 {
		return fmt.Errorf("ADB_TIMEOUT and ADB_LONG_TIMEOUT must be positive")
	}
	if b.LongTimeout < b.DefaultTimeout {
		return fmt.Errorf("ADB_LONG_TIMEOUT (%v) must not be shorter than ADB_TIMEOUT (%v)", b.LongTimeout, b.DefaultTimeout)
	}
	if b.SettleDelay < 0 {
		return fmt.Errorf("ADB_SETTLE_DELAY must not be negative")
	}
	if b.CommandsPerSecond < 0 {
		return fmt.Errorf("ADB_COMMANDS_PER_SECOND must not be negative")
	}
	if b.CommandsPerSecond > 0 && b.CommandBurst < 1 {
		return fmt.Errorf("ADB_COMMAND_BURST must be at least 1 when pacing is enabled")
	}
	if b.Breaker.Enabled && b.Breaker.FailureThreshold == 0 {
		return fmt.Errorf("ADB_BREAKER_FAILURES must be at least 1 when the breaker is enabled")
	}
	return nil
}

func (c *Config) validateMonitor() error {
	m := c.Monitor
	if m.HeartbeatInterval <= 0 {
		return fmt.Errorf("HEARTBEAT_INTERVAL must be positive")
	}
	if m.ActionTimeout <= 0 {
		return fmt.Errorf("MONITOR_ACTION_TIMEOUT must be positive")
	}
	if m.DefaultTimeoutSeconds < 0 {
		return fmt.Errorf("MONITOR_DEFAULT_TIMEOUT_SECONDS must not be negative")
	}
	if m.EventBuffer < 1 {
		return fmt.Errorf("MONITOR_EVENT_BUFFER must be at least 1")
	}
	if m.JournalEnabled && strings.TrimSpace(m.JournalPath) == "" {
		return fmt.Errorf("MONITOR_JOURNAL_PATH is required when MONITOR_JOURNAL_ENABLED=true")
	}
	return nil
}

func (c *Config) validateAudit() error {
	a := c.Audit
	if !a.Enabled {
		return nil
	}
	if a.MaxEvents < 1 {
		return fmt.Errorf("AUDIT_MAX_EVENTS must be at least 1")
	}
	if a.Retention < 0 {
		return fmt.Errorf("AUDIT_RETENTION must not be negative")
	}
	return nil
}

func (c *Config) validateDevices() error {
	d := c.Devices
	if strings.TrimSpace(d.VideoPath) == "" {
		return fmt.Errorf("VIDEO_PATH must not be empty")
	}
	if d.HomeDelay < 0 {
		return fmt.Errorf("VIDEO_HOME_DELAY must not be negative")
	}
	for action, key := range d.ControlKeys {
		if strings.TrimSpace(key) == "" {
			return fmt.Errorf("devices.control_keys.%s has no key code", action)
		}
	}

	seen := make(map[string]bool, len(d.Profiles))
	for i := range d.Profiles {
		p := &d.Profiles[i]
		if net.ParseIP(p.Address) == nil {
			return fmt.Errorf("devices.profiles[%d]: address %q is not an IP address", i, p.Address)
		}
		if seen[p.Address] {
			return fmt.Errorf("devices.profiles[%d]: duplicate address %s", i, p.Address)
		}
		seen[p.Address] = true
		if err := validateProfile(p); err != nil {
			return fmt.Errorf("devices.profiles[%d] (%s): %w", i, p.Name, err)
		}
	}

	if err := validateProfile(&d.Default); err != nil {
		return fmt.Errorf("devices.default: %w", err)
	}
	if _, ok := d.Default.Inputs[InputHDMI2]; !ok {
		return fmt.Errorf("devices.default: input %q is required", InputHDMI2)
	}
	return nil
}

func validateProfile(p *ProfileConfig) error {
	if len(p.VideoCommands) == 0 {
		return fmt.Errorf("at least one video command is required")
	}
	for i, cmd := range p.VideoCommands {
		if len(cmd) == 0 {
			return fmt.Errorf("video_commands[%d] is empty", i)
		}
	}
	for input, steps := range p.Inputs {
		if len(steps) == 0 {
			return fmt.Errorf("input %q has no key steps", input)
		}
		for i, step := range steps {
			if strings.TrimSpace(step.Key) == "" {
				return fmt.Errorf("input %q step %d has no key", input, i)
			}
			if step.Repeat < 0 || step.Pause < 0 {
				return fmt.Errorf("input %q step %d has a negative repeat or pause", input, i)
			}
		}
	}
	return nil
}
