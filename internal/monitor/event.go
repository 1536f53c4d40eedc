// TVShim - Rental Television Control Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tvshim

package monitor

import (
	"fmt"
	"time"
)

// EventType names an event on a rental stream. The values double as SSE
// event names.
type EventType string

const (
	EventConnected          EventType = "connected"
	EventHeartbeat          EventType = "heartbeat"
	EventMonitorStarted     EventType = "monitor_started"
	EventMonitorStopped     EventType = "monitor_stopped"
	EventTimeoutVideoPlayed EventType = "timeout_video_played"
)

// Event is one notification for a rental.
type Event struct {
	Type           EventType `json:"type"`
	RentalID       int64     `json:"rental_id"`
	TVIP           string    `json:"tv_ip,omitempty"`
	Success        bool      `json:"success"`
	Message        string    `json:"message,omitempty"`
	TimeoutSeconds int       `json:"timeout_seconds,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// Outcome is the result of one timeout action.
type Outcome struct {
	Success bool
	Message string
}

func connectedEvent(rentalID int64) Event {
	return Event{
		Type:      EventConnected,
		RentalID:  rentalID,
		Success:   true,
		Message:   fmt.Sprintf("Connected to rental %d monitoring", rentalID),
		Timestamp: time.Now().UTC(),
	}
}

func heartbeatEvent(rentalID int64) Event {
	return Event{
		Type:      EventHeartbeat,
		RentalID:  rentalID,
		Success:   true,
		Timestamp: time.Now().UTC(),
	}
}

func startedEvent(rentalID int64, target string, delaySeconds int) Event {
	return Event{
		Type:           EventMonitorStarted,
		RentalID:       rentalID,
		TVIP:           target,
		Success:        true,
		Message:        fmt.Sprintf("Timeout monitor started for rental %d (%ds)", rentalID, delaySeconds),
		TimeoutSeconds: delaySeconds,
		Timestamp:      time.Now().UTC(),
	}
}

func stoppedEvent(rentalID int64, target string) Event {
	return Event{
		Type:      EventMonitorStopped,
		RentalID:  rentalID,
		TVIP:      target,
		Success:   true,
		Message:   fmt.Sprintf("Timeout monitor stopped for rental %d", rentalID),
		Timestamp: time.Now().UTC(),
	}
}

func firedEvent(rentalID int64, target string, delaySeconds int, out Outcome) Event {
	msg := out.Message
	if msg == "" {
		if out.Success {
			msg = "Timeout video played successfully"
		} else {
			msg = "Timeout video failed to play"
		}
	}
	return Event{
		Type:           EventTimeoutVideoPlayed,
		RentalID:       rentalID,
		TVIP:           target,
		Success:        out.Success,
		Message:        msg,
		TimeoutSeconds: delaySeconds,
		Timestamp:      time.Now().UTC(),
	}
}
