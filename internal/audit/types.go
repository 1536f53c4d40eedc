// TVShim - Rental Television Control Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tvshim

package audit

import (
	"context"
	"time"

	"github.com/goccy/go-json"
)

// EventType categorizes audit events.
type EventType string

const (
	// Television operations
	EventTypeTVConnect     EventType = "tv.connect"
	EventTypeTVDisconnect  EventType = "tv.disconnect"
	EventTypeInputSwitch   EventType = "tv.input_switch"
	EventTypeKeySent       EventType = "tv.key_sent"
	EventTypeControl       EventType = "tv.control"
	EventTypeVideoPlayed   EventType = "tv.video_played"
	EventTypeBridgeRestart EventType = "bridge.restart"

	// Rental timer lifecycle
	EventTypeMonitorStarted EventType = "rental.monitor_started"
	EventTypeMonitorStopped EventType = "rental.monitor_stopped"
	EventTypeTimeoutFired   EventType = "rental.timeout_fired"
)

// Outcome indicates whether an action succeeded or failed.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)

// OutcomeOf maps a success flag to an Outcome.
func OutcomeOf(success bool) Outcome {
	if success {
		return OutcomeSuccess
	}
	return OutcomeFailure
}

// Event is one entry in the audit trail.
type Event struct {
	// ID is a unique identifier for this event.
	ID string `json:"id"`

	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	Outcome   Outcome   `json:"outcome"`

	// Target is the television address, empty for bridge-wide actions.
	Target string `json:"tv_ip,omitempty"`

	// RentalID is set for rental timer events and rental-scoped requests.
	RentalID int64 `json:"rental_id,omitempty"`

	// Action names the operation, e.g. "volume_up" or "hdmi2".
	Action string `json:"action,omitempty"`

	// Description is the human-readable result message.
	Description string `json:"description,omitempty"`

	// Source is empty for events raised by the monitor itself.
	Source *Source `json:"source,omitempty"`

	// RequestID from the originating HTTP request.
	RequestID string `json:"request_id,omitempty"`

	// Metadata contains event-specific details.
	Metadata json.RawMessage `json:"metadata,omitempty"`
}

// Source represents where a request originated.
type Source struct {
	IPAddress string `json:"ip_address"`
	UserAgent string `json:"user_agent,omitempty"`
}

// Store defines the interface for audit event persistence.
type Store interface {
	Save(ctx context.Context, event *Event) error
	Query(ctx context.Context, filter QueryFilter) ([]Event, error)
	Count(ctx context.Context, filter QueryFilter) (int64, error)

	// Delete removes events older than the cutoff and reports how many.
	Delete(ctx context.Context, olderThan time.Time) (int64, error)
}

// QueryFilter defines filtering options for audit queries. Zero fields match
// everything.
type QueryFilter struct {
	Types     []EventType `json:"types,omitempty"`
	Outcome   Outcome     `json:"outcome,omitempty"`
	Target    string      `json:"tv_ip,omitempty"`
	RentalID  int64       `json:"rental_id,omitempty"`
	RequestID string      `json:"request_id,omitempty"`
	Since     *time.Time  `json:"since,omitempty"`

	// Limit is the maximum number of results, newest first.
	Limit int `json:"limit,omitempty"`
}

// DefaultQueryLimit applies when a filter has no Limit.
const DefaultQueryLimit = 100

// MaxQueryLimit caps Limit.
const MaxQueryLimit = 1000

// DefaultQueryFilter returns a sensible default filter.
func DefaultQueryFilter() QueryFilter {
	return QueryFilter{Limit: DefaultQueryLimit}
}
