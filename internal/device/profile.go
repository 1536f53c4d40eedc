// TVShim - Rental Television Control Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tvshim

// Package device turns high-level television operations into sequences of
// device-bridge commands.
//
// Behaviour per television is table driven: a Profile holds the key sequences
// that reach each input and the ordered command alternatives that start the
// timeout video. Profiles are looked up by address with a fallback default and
// never change after startup.
package device

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/tomtom215/tvshim/internal/config"
)

var (
	// ErrNoMatchingProfile means an address has no profile and no default exists.
	ErrNoMatchingProfile = errors.New("no matching device profile")

	// ErrUnknownAction means a control action, input or key is not recognized.
	ErrUnknownAction = errors.New("unknown action")
)

// KeyStep is one key press in an input sequence.
type KeyStep struct {
	Key    string
	Repeat int
	Pause  time.Duration
}

// Profile is the command table for one television.
type Profile struct {
	Name          string
	Address       string
	VideoPath     string
	Inputs        map[string][]KeyStep
	VideoCommands [][]string
}

// HasInput reports whether the profile can switch to input.
func (p Profile) HasInput(input string) bool {
	_, ok := p.Inputs[strings.ToLower(input)]
	return ok
}

// Profiles is the read-only profile table.
type Profiles struct {
	byAddress map[string]Profile
	order     []string
	def       *Profile
}

// NewProfiles builds the table from configuration. The default profile is
// only installed when it declares inputs or video commands.
func NewProfiles(cfg config.DevicesConfig) *Profiles {
	p := &Profiles{byAddress: make(map[string]Profile, len(cfg.Profiles))}
	for _, pc := range cfg.Profiles {
		prof := fromConfig(pc, cfg.VideoPath)
		if _, dup := p.byAddress[prof.Address]; !dup {
			p.order = append(p.order, prof.Address)
		}
		p.byAddress[prof.Address] = prof
	}
	if len(cfg.Default.Inputs) > 0 || len(cfg.Default.VideoCommands) > 0 {
		def := fromConfig(cfg.Default, cfg.VideoPath)
		def.Address = ""
		p.def = &def
	}
	return p
}

// Lookup returns the profile for address, which may carry a port. Unknown
// addresses get the default profile.
func (p *Profiles) Lookup(address string) (Profile, error) {
	host := hostOnly(address)
	if prof, ok := p.byAddress[host]; ok {
		return prof, nil
	}
	if p.def != nil {
		return *p.def, nil
	}
	return Profile{}, fmt.Errorf("%w for %s", ErrNoMatchingProfile, host)
}

// Addresses lists the explicitly profiled addresses in configuration order.
func (p *Profiles) Addresses() []string {
	out := make([]string, len(p.order))
	copy(out, p.order)
	return out
}

func fromConfig(pc config.ProfileConfig, fallbackVideo string) Profile {
	prof := Profile{
		Name:          pc.Name,
		Address:       pc.Address,
		VideoPath:     pc.VideoPath,
		Inputs:        make(map[string][]KeyStep, len(pc.Inputs)),
		VideoCommands: make([][]string, 0, len(pc.VideoCommands)),
	}
	if prof.VideoPath == "" {
		prof.VideoPath = fallbackVideo
	}
	for name, steps := range pc.Inputs {
		seq := make([]KeyStep, 0, len(steps))
		for _, s := range steps {
			repeat := s.Repeat
			if repeat < 1 {
				repeat = 1
			}
			seq = append(seq, KeyStep{Key: s.Key, Repeat: repeat, Pause: s.Pause})
		}
		prof.Inputs[strings.ToLower(name)] = seq
	}
	for _, cmd := range pc.VideoCommands {
		prof.VideoCommands = append(prof.VideoCommands, append([]string(nil), cmd...))
	}
	return prof
}

func hostOnly(address string) string {
	if host, _, err := net.SplitHostPort(address); err == nil {
		return host
	}
	return address
}

// expand substitutes the video path into one command template.
func expand(tmpl []string, videoPath string) []string {
	out := make([]string, len(tmpl))
	for i, arg := range tmpl {
		out[i] = strings.ReplaceAll(arg, config.VideoPathPlaceholder, videoPath)
	}
	return out
}

// shellQuote wraps s in single quotes for the device shell.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
