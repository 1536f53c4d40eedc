// TVShim - Rental Television Control Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tvshim

package device

import (
	"context"
	"errors"
	"fmt"
	"net"
	"path"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tomtom215/tvshim/internal/bridge"
	"github.com/tomtom215/tvshim/internal/config"
	"github.com/tomtom215/tvshim/internal/logging"
	"github.com/tomtom215/tvshim/internal/metrics"
)

// Android key codes used outside the profile tables.
const (
	KeyHome = "3"
)

var keyPattern = regexp.MustCompile(`^[A-Za-z0-9_]{1,64}$`)

// Bridge is the subset of *bridge.Bridge the controller needs.
type Bridge interface {
	Run(ctx context.Context, timeout time.Duration, args ...string) (bridge.Result, error)
	RunOn(ctx context.Context, serial string, timeout time.Duration, args ...string) (bridge.Result, error)
	DefaultTimeout() time.Duration
	LongTimeout() time.Duration
	BreakerState(serial string) string
}

// Options configures a Controller.
type Options struct {
	// ToolPath is reported by ToolInfo.
	ToolPath string

	// Port is appended to addresses to form the device serial.
	Port int

	// SettleDelay is the pause after connect, between video alternatives and
	// around a daemon restart.
	SettleDelay time.Duration

	// HomeDelay is the pause after HOME before playback is attempted.
	HomeDelay time.Duration

	// ControlKeys maps control actions to key codes.
	ControlKeys map[string]string
}

// OptionsFromConfig builds controller options from loaded configuration.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		ToolPath:    cfg.Bridge.Path,
		Port:        cfg.Bridge.Port,
		SettleDelay: cfg.Bridge.SettleDelay,
		HomeDelay:   cfg.Devices.HomeDelay,
		ControlKeys: cfg.Devices.ControlKeys,
	}
}

// OperationResult is the outcome of one successful device operation.
type OperationResult struct {
	Success     bool   `json:"success"`
	Message     string `json:"message,omitempty"`
	TVIP        string `json:"tv_ip,omitempty"`
	Profile     string `json:"profile,omitempty"`
	Output      string `json:"output,omitempty"`
	Devices     string `json:"devices,omitempty"`
	VideoPath   string `json:"video_path,omitempty"`
	Alternative int    `json:"alternative,omitempty"`
}

// ConnectionReport is one row of TestAll.
type ConnectionReport struct {
	TVIP    string `json:"tv_ip"`
	Profile string `json:"profile"`
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// ToolInfo describes the device-bridge installation.
type ToolInfo struct {
	Path    string `json:"adb_path"`
	Version string `json:"version"`
	Devices string `json:"devices"`
}

// Controller performs television operations through the bridge.
type Controller struct {
	bridge   Bridge
	profiles *Profiles
	opts     Options
}

// NewController creates a Controller.
func NewController(b Bridge, profiles *Profiles, opts Options) *Controller {
	if opts.Port == 0 {
		opts.Port = 5555
	}
	keys := make(map[string]string, len(opts.ControlKeys))
	for action, key := range opts.ControlKeys {
		keys[strings.ToLower(action)] = key
	}
	opts.ControlKeys = keys
	return &Controller{bridge: b, profiles: profiles, opts: opts}
}

// Profiles returns the profile table.
func (c *Controller) Profiles() *Profiles {
	return c.profiles
}

// ToolPath returns the configured device-bridge binary.
func (c *Controller) ToolPath() string {
	return c.opts.ToolPath
}

// Serial returns the bridge serial for an address ("ip:port").
func (c *Controller) Serial(ip string) string {
	if _, _, err := net.SplitHostPort(ip); err == nil {
		return ip
	}
	return net.JoinHostPort(ip, strconv.Itoa(c.opts.Port))
}

// BreakerStates reports the circuit breaker state of every profiled
// television, keyed by address.
func (c *Controller) BreakerStates() map[string]string {
	addrs := c.profiles.Addresses()
	states := make(map[string]string, len(addrs))
	for _, addr := range addrs {
		states[addr] = c.bridge.BreakerState(c.Serial(addr))
	}
	return states
}

// ToolInfo runs `version` and `devices`.
func (c *Controller) ToolInfo(ctx context.Context) (ToolInfo, error) {
	info := ToolInfo{Path: c.opts.ToolPath}
	version, err := c.bridge.Run(ctx, c.bridge.DefaultTimeout(), "version")
	if err != nil {
		return info, fmt.Errorf("query tool version: %w", err)
	}
	info.Version = strings.TrimSpace(version.Stdout)

	devices, err := c.bridge.Run(ctx, c.bridge.DefaultTimeout(), "devices")
	if err != nil {
		return info, fmt.Errorf("list devices: %w", err)
	}
	info.Devices = devices.Stdout
	return info, nil
}

// Devices lists devices known to the bridge daemon.
func (c *Controller) Devices(ctx context.Context) (DeviceList, error) {
	res, err := c.bridge.Run(ctx, c.bridge.DefaultTimeout(), "devices")
	if err != nil {
		return DeviceList{Raw: res.Stdout}, fmt.Errorf("list devices: %w", err)
	}
	return DeviceList{Devices: ParseDevices(res.Stdout), Raw: res.Stdout}, nil
}

// Connect attaches the bridge to the television at ip. A device already
// listed as online is reported without reconnecting.
func (c *Controller) Connect(ctx context.Context, ip string) (OperationResult, error) {
	serial := c.Serial(ip)
	result := OperationResult{TVIP: ip}

	list, err := c.Devices(ctx)
	if err == nil && list.Online(serial) {
		result.Success = true
		result.Message = fmt.Sprintf("TV %s is already connected", ip)
		result.Devices = list.Raw
		metrics.RecordDeviceAction("connect", true)
		return result, nil
	}

	connectRes, connectErr := c.bridge.Run(ctx, c.bridge.LongTimeout(), "connect", serial)
	result.Output = strings.TrimSpace(connectRes.Stdout)
	if connectErr != nil && errors.Is(connectErr, bridge.ErrToolTimeout) {
		metrics.RecordDeviceAction("connect", false)
		return result, fmt.Errorf("connect %s: %w", serial, connectErr)
	}

	if err := sleep(ctx, c.opts.SettleDelay); err != nil {
		return result, err
	}

	list, err = c.Devices(ctx)
	result.Devices = list.Raw
	if err != nil {
		metrics.RecordDeviceAction("connect", false)
		return result, fmt.Errorf("verify connection to %s: %w", serial, err)
	}
	if !list.Online(serial) {
		metrics.RecordDeviceAction("connect", false)
		detail := result.Output
		if connectErr != nil {
			detail = connectErr.Error()
		}
		return result, fmt.Errorf("%w: connection failed - TV %s not found in devices list: %s",
			bridge.ErrToolInvocationFailed, ip, detail)
	}

	result.Success = true
	result.Message = fmt.Sprintf("Successfully connected to TV %s", ip)
	metrics.RecordDeviceAction("connect", true)
	logging.Ctx(ctx).Info().Str("serial", serial).Msg("television connected")
	return result, nil
}

// Disconnect detaches the bridge from the television at ip.
func (c *Controller) Disconnect(ctx context.Context, ip string) (OperationResult, error) {
	serial := c.Serial(ip)
	res, err := c.bridge.Run(ctx, c.bridge.DefaultTimeout(), "disconnect", serial)
	metrics.RecordDeviceAction("disconnect", err == nil)
	if err != nil {
		return OperationResult{TVIP: ip, Output: res.Stdout}, fmt.Errorf("disconnect %s: %w", serial, err)
	}
	return OperationResult{
		Success: true,
		TVIP:    ip,
		Message: fmt.Sprintf("Disconnected from TV %s", ip),
		Output:  strings.TrimSpace(res.Stdout),
	}, nil
}

// TestConnection checks that the television at ip answers a shell command
// and names the profile that applies to it. An unresponsive television is
// connected first.
func (c *Controller) TestConnection(ctx context.Context, ip string) (ConnectionReport, error) {
	prof, err := c.profiles.Lookup(ip)
	if err != nil {
		return ConnectionReport{TVIP: ip}, err
	}
	report := ConnectionReport{TVIP: ip, Profile: prof.Name}

	echo, err := c.bridge.RunOn(ctx, c.Serial(ip), c.bridge.DefaultTimeout(), "shell", "echo", "test")
	if err == nil && strings.Contains(echo.Stdout, "test") {
		report.Success = true
		report.Message = fmt.Sprintf("%s TV at %s is responsive", prof.Name, ip)
		return report, nil
	}

	res, err := c.Connect(ctx, ip)
	if err != nil {
		report.Message = err.Error()
		return report, err
	}
	report.Success = true
	report.Message = fmt.Sprintf("%s TV ready", prof.Name)
	if res.Message != "" {
		report.Message = res.Message
	}
	return report, nil
}

// TestAll tests every profiled television concurrently. Individual failures
// are reported per row, never as an error.
func (c *Controller) TestAll(ctx context.Context) []ConnectionReport {
	addrs := c.profiles.Addresses()
	reports := make([]ConnectionReport, len(addrs))

	var g errgroup.Group
	for i, addr := range addrs {
		g.Go(func() error {
			report, err := c.TestConnection(ctx, addr)
			if err != nil {
				logging.Ctx(ctx).Warn().Err(err).Str("tv_ip", addr).Msg("connection test failed")
			}
			reports[i] = report
			return nil
		})
	}
	_ = g.Wait()
	return reports
}

// SendKey injects one key event.
func (c *Controller) SendKey(ctx context.Context, ip, key string) (OperationResult, error) {
	if !keyPattern.MatchString(key) {
		return OperationResult{TVIP: ip}, fmt.Errorf("%w: invalid key code %q", ErrUnknownAction, key)
	}
	res, err := c.bridge.RunOn(ctx, c.Serial(ip), c.bridge.DefaultTimeout(), "shell", "input", "keyevent", key)
	if err != nil {
		return OperationResult{TVIP: ip, Output: res.Stdout}, fmt.Errorf("failed to send key %s: %w", key, err)
	}
	return OperationResult{
		Success: true,
		TVIP:    ip,
		Message: fmt.Sprintf("Key %s sent", key),
		Output:  strings.TrimSpace(res.Stdout),
	}, nil
}

// SwitchInput runs the profile's key sequence for input.
func (c *Controller) SwitchInput(ctx context.Context, ip, input string) (OperationResult, error) {
	input = strings.ToLower(input)
	prof, err := c.profiles.Lookup(ip)
	if err != nil {
		return OperationResult{TVIP: ip}, err
	}
	if !prof.HasInput(input) {
		return OperationResult{TVIP: ip, Profile: prof.Name},
			fmt.Errorf("%w: input %q is not defined for profile %s", ErrUnknownAction, input, prof.Name)
	}

	log := logging.Ctx(ctx).With().Str("tv_ip", ip).Str("profile", prof.Name).Str("input", input).Logger()
	log.Info().Msg("switching input")

	for _, step := range prof.Inputs[input] {
		for n := 0; n < step.Repeat; n++ {
			if _, err := c.SendKey(ctx, ip, step.Key); err != nil {
				metrics.RecordDeviceAction("switch_input", false)
				return OperationResult{TVIP: ip, Profile: prof.Name}, fmt.Errorf("switch %s to %s: %w", ip, input, err)
			}
			if err := sleep(ctx, step.Pause); err != nil {
				return OperationResult{TVIP: ip, Profile: prof.Name}, err
			}
		}
	}

	metrics.RecordDeviceAction("switch_input", true)
	return OperationResult{
		Success: true,
		TVIP:    ip,
		Profile: prof.Name,
		Message: fmt.Sprintf("TV %s switched to %s", ip, strings.ToUpper(input)),
	}, nil
}

// PlayTimeoutVideo returns the television to its home screen and starts the
// timeout video, trying the profile's command alternatives in order. The video
// file must be listed on the device before any alternative is attempted.
func (c *Controller) PlayTimeoutVideo(ctx context.Context, ip string) (OperationResult, error) {
	return c.playVideo(ctx, ip, true)
}

// playVideo runs the playback sequence. Without requireFile an unlisted video
// file is logged and playback is attempted anyway.
func (c *Controller) playVideo(ctx context.Context, ip string, requireFile bool) (OperationResult, error) {
	prof, err := c.profiles.Lookup(ip)
	if err != nil {
		return OperationResult{TVIP: ip}, err
	}
	serial := c.Serial(ip)
	result := OperationResult{TVIP: ip, Profile: prof.Name, VideoPath: prof.VideoPath}
	log := logging.Ctx(ctx).With().Str("tv_ip", ip).Str("profile", prof.Name).Logger()

	if _, err := c.SendKey(ctx, ip, KeyHome); err != nil {
		log.Warn().Err(err).Msg("home key failed, continuing")
	}
	if err := sleep(ctx, c.opts.HomeDelay); err != nil {
		return result, err
	}

	verify, err := c.bridge.RunOn(ctx, serial, c.bridge.DefaultTimeout(), "shell", "ls", "-la", shellQuote(prof.VideoPath))
	listed := err == nil && strings.Contains(verify.Stdout, path.Base(prof.VideoPath))
	switch {
	case listed:
	case !requireFile:
		log.Warn().Err(err).Str("video_path", prof.VideoPath).Msg("video file not listed, attempting playback")
	case errors.Is(err, bridge.ErrToolTimeout):
		metrics.RecordDeviceAction("play_timeout_video", false)
		return result, fmt.Errorf("verify video file: %w", err)
	default:
		metrics.RecordDeviceAction("play_timeout_video", false)
		return result, fmt.Errorf("%w: video file not found at %s on TV %s",
			bridge.ErrToolInvocationFailed, prof.VideoPath, ip)
	}

	if len(prof.VideoCommands) == 0 {
		metrics.RecordDeviceAction("play_timeout_video", false)
		return result, fmt.Errorf("%w: profile %s has no video commands", bridge.ErrToolInvocationFailed, prof.Name)
	}

	failures := &AlternativesError{VideoPath: prof.VideoPath}
	for i, tmpl := range prof.VideoCommands {
		args := expand(tmpl, prof.VideoPath)
		res, err := c.bridge.RunOn(ctx, serial, c.bridge.LongTimeout(), args...)
		if err == nil {
			result.Success = true
			result.Alternative = i + 1
			result.Output = strings.TrimSpace(res.Stdout)
			result.Message = fmt.Sprintf("Timeout video playing on TV %s", ip)
			metrics.VideoAlternativeUsed.WithLabelValues(prof.Name, strconv.Itoa(i+1)).Inc()
			metrics.RecordDeviceAction("play_timeout_video", true)
			log.Info().Int("alternative", i+1).Msg("timeout video started")
			return result, nil
		}

		failures.Attempts = append(failures.Attempts, err)
		log.Warn().Err(err).Int("alternative", i+1).Int("of", len(prof.VideoCommands)).Msg("video command failed")

		if i < len(prof.VideoCommands)-1 {
			if err := sleep(ctx, c.opts.SettleDelay); err != nil {
				return result, err
			}
		}
	}

	metrics.RecordDeviceAction("play_timeout_video", false)
	return result, failures
}

// Control performs a named control action such as volume_up.
func (c *Controller) Control(ctx context.Context, ip, action string) (OperationResult, error) {
	key, ok := c.opts.ControlKeys[strings.ToLower(action)]
	if !ok {
		return OperationResult{TVIP: ip}, fmt.Errorf("%w: Unknown action: %s", ErrUnknownAction, action)
	}
	res, err := c.SendKey(ctx, ip, key)
	metrics.RecordDeviceAction("control_"+strings.ToLower(action), err == nil)
	if err != nil {
		return res, err
	}
	res.Message = fmt.Sprintf("TV %s executed successfully", action)
	return res, nil
}

// RestartDaemon restarts the bridge daemon and lists devices afterwards.
func (c *Controller) RestartDaemon(ctx context.Context) (OperationResult, error) {
	if _, err := c.bridge.Run(ctx, c.bridge.DefaultTimeout(), "kill-server"); err != nil {
		// The daemon may not be running.
		logging.Ctx(ctx).Debug().Err(err).Msg("kill-server failed")
	}
	if err := sleep(ctx, c.opts.SettleDelay); err != nil {
		return OperationResult{}, err
	}
	if _, err := c.bridge.Run(ctx, c.bridge.LongTimeout(), "start-server"); err != nil {
		metrics.RecordDeviceAction("restart_daemon", false)
		return OperationResult{}, fmt.Errorf("start-server: %w", err)
	}
	if err := sleep(ctx, c.opts.SettleDelay); err != nil {
		return OperationResult{}, err
	}
	list, err := c.Devices(ctx)
	metrics.RecordDeviceAction("restart_daemon", err == nil)
	if err != nil {
		return OperationResult{}, err
	}
	logging.Ctx(ctx).Info().Int("devices", len(list.Devices)).Msg("bridge daemon restarted")
	return OperationResult{Success: true, Message: "ADB server restarted", Devices: list.Raw}, nil
}

// AlternativesError reports that every video command alternative failed.
type AlternativesError struct {
	VideoPath string
	Attempts  []error
}

func (e *AlternativesError) Error() string {
	parts := make([]string, len(e.Attempts))
	for i, err := range e.Attempts {
		parts[i] = fmt.Sprintf("Cmd%d: %v", i+1, err)
	}
	return fmt.Sprintf("All commands failed for %s: %s", e.VideoPath, strings.Join(parts, "; "))
}

// Unwrap classifies the failure as a tool invocation failure even when
// individual attempts timed out.
func (e *AlternativesError) Unwrap() error {
	return bridge.ErrToolInvocationFailed
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
