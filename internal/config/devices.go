// TVShim - Rental Television Control Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tvshim

package config

import (
	"strings"
	"time"
)

// Input names used by the built-in profiles.
const (
	InputHDMI1 = "hdmi1"
	InputHDMI2 = "hdmi2"
)

// VideoPathPlaceholder is substituted with the profile's video path in video commands.
const VideoPathPlaceholder = "{video_path}"

// defaultControlKeys backs /tv-control when the config file does not override an action.
var defaultControlKeys = map[string]string{
	"volume_up":   "KEYCODE_VOLUME_UP",
	"volume_down": "KEYCODE_VOLUME_DOWN",
	"power_off":   "KEYCODE_POWER",
}

const (
	vlcPlayerActivity = "org.videolan.vlc/org.videolan.vlc.gui.video.VideoPlayerActivity"
	galleryActivity   = "com.android.gallery3d/com.android.gallery3d.app.MovieActivity"
	videoURI          = "file://" + VideoPathPlaceholder
)

// builtinProfiles returns the profiles for the lounge televisions the shim
// was first deployed with: a Xiaomi set whose input menu is a vertical list.
func builtinProfiles() []ProfileConfig {
	return []ProfileConfig{
		{
			Name:    "xiaomi",
			Address: "192.168.1.20",
			Inputs: map[string][]KeyStepConfig{
				InputHDMI2: {
					{Key: "178", Pause: 2 * time.Second}, // KEYCODE_TV_INPUT
					{Key: "20", Repeat: 3, Pause: time.Second},
					{Key: "23", Pause: 3 * time.Second},
				},
			},
			VideoCommands: [][]string{
				{"shell", "am", "start", "-n", vlcPlayerActivity, "-d", videoURI, "--activity-clear-top"},
				{"shell", "am", "start", "-a", "android.intent.action.VIEW", "-d", videoURI, "-t", "video/mp4", "--activity-clear-top"},
				{"shell", "am", "start", "-n", galleryActivity, "-d", videoURI},
			},
		},
	}
}

// builtinDefaultProfile is the fallback for any address without a profile.
// Its input menu is a horizontal strip.
func builtinDefaultProfile() ProfileConfig {
	return ProfileConfig{
		Name: "default",
		Inputs: map[string][]KeyStepConfig{
			InputHDMI1: {
				{Key: "178", Pause: 2 * time.Second},
				{Key: "22", Pause: time.Second},
				{Key: "23", Pause: 3 * time.Second},
			},
			InputHDMI2: {
				{Key: "178", Pause: 2 * time.Second},
				{Key: "22", Repeat: 2, Pause: time.Second},
				{Key: "23", Pause: 3 * time.Second},
			},
		},
		VideoCommands: [][]string{
			{"shell", "am", "start", "-n", vlcPlayerActivity, "-d", videoURI, "--activity-clear-top"},
			{"shell", "am", "start", "-a", "android.intent.action.VIEW", "-d", videoURI, "-t", "'video/*'", "--activity-clear-top"},
		},
	}
}

// applyDeviceDefaults fills the device table from the built-ins when the
// config sources left it empty, and normalizes input names to lower case.
func applyDeviceDefaults(cfg *Config) {
	d := &cfg.Devices

	keys := make(map[string]string, len(defaultControlKeys)+len(d.ControlKeys))
	for action, key := range defaultControlKeys {
		keys[action] = key
	}
	for action, key := range d.ControlKeys {
		keys[strings.ToLower(action)] = key
	}
	d.ControlKeys = keys

	if len(d.Profiles) == 0 {
		d.Profiles = builtinProfiles()
	}
	if len(d.Default.Inputs) == 0 && len(d.Default.VideoCommands) == 0 {
		d.Default = builtinDefaultProfile()
	}
	if d.Default.Name == "" {
		d.Default.Name = "default"
	}

	for i := range d.Profiles {
		normalizeProfile(&d.Profiles[i])
	}
	normalizeProfile(&d.Default)
}

func normalizeProfile(p *ProfileConfig) {
	if p.Name == "" {
		p.Name = p.Address
	}
	if len(p.Inputs) == 0 {
		return
	}
	inputs := make(map[string][]KeyStepConfig, len(p.Inputs))
	for name, steps := range p.Inputs {
		inputs[strings.ToLower(name)] = steps
	}
	p.Inputs = inputs
}

// ConfiguredAddresses returns the addresses of all explicit profiles.
func (d DevicesConfig) ConfiguredAddresses() []string {
	addrs := make([]string, 0, len(d.Profiles))
	for _, p := range d.Profiles {
		if p.Address != "" {
			addrs = append(addrs, p.Address)
		}
	}
	return addrs
}
