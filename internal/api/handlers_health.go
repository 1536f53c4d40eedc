// TVShim - Rental Television Control Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tvshim

package api

import (
	"net/http"
	"time"

	"github.com/tomtom215/tvshim/internal/monitor"
)

// HealthStatus is the /health payload.
type HealthStatus struct {
	Status         string            `json:"status"`
	Timestamp      time.Time         `json:"timestamp"`
	ADBPath        string            `json:"adb_path"`
	ConfiguredTVs  []string          `json:"configured_tvs"`
	Breakers       map[string]string `json:"circuit_breakers"`
	ActiveMonitors int               `json:"active_monitors"`
	WSClients      int               `json:"websocket_clients"`
	Uptime         float64           `json:"uptime_seconds"`
}

// Health reports liveness without touching any television.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := HealthStatus{
		Status:         "ADB Server is running",
		Timestamp:      time.Now().UTC(),
		ADBPath:        h.devices.ToolPath(),
		ConfiguredTVs:  h.devices.Profiles().Addresses(),
		Breakers:       h.devices.BreakerStates(),
		ActiveMonitors: h.monitor.ActiveCount(),
		Uptime:         time.Since(h.startTime).Seconds(),
	}
	if h.wsHub != nil {
		status.WSClients = h.wsHub.GetClientCount()
	}
	WriteSuccess(w, r, status)
}

// TestADB runs the tool's version and devices commands.
func (h *Handler) TestADB(w http.ResponseWriter, r *http.Request) {
	info, err := h.devices.ToolInfo(r.Context())
	if err != nil {
		WriteFromError(w, r, err, info)
		return
	}
	WriteSuccess(w, r, info)
}

// Devices lists devices known to the bridge daemon.
func (h *Handler) Devices(w http.ResponseWriter, r *http.Request) {
	list, err := h.devices.Devices(r.Context())
	if err != nil {
		WriteFromError(w, r, err, nil)
		return
	}
	WriteSuccess(w, r, list)
}

// MonitorList is the /monitors payload.
type MonitorList struct {
	Monitors []monitor.TimerInfo `json:"monitors"`
	Count    int                 `json:"count"`
}

// Monitors lists live rental timers.
func (h *Handler) Monitors(w http.ResponseWriter, r *http.Request) {
	active := h.monitor.Active()
	if active == nil {
		active = []monitor.TimerInfo{}
	}
	WriteSuccess(w, r, MonitorList{Monitors: active, Count: len(active)})
}
