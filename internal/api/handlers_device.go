// TVShim - Rental Television Control Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tvshim

package api

import (
	"net/http"

	"github.com/tomtom215/tvshim/internal/audit"
	"github.com/tomtom215/tvshim/internal/device"
	"github.com/tomtom215/tvshim/internal/logging"
)

// hdmi2 is the input /switch-to-hdmi2 selects.
const hdmi2 = "hdmi2"

// ConnectTV attaches the bridge to a television.
func (h *Handler) ConnectTV(w http.ResponseWriter, r *http.Request) {
	var req TVRequest
	if err := decodeRequest(w, r, &req); err != nil {
		WriteFromError(w, r, err, nil)
		return
	}
	res, err := h.devices.Connect(r.Context(), req.TVIP)
	h.recordOperation(r, audit.EventTypeTVConnect, req.TVIP, "", res, err)
	if err != nil {
		WriteFromError(w, r, err, res)
		return
	}
	WriteSuccess(w, r, res)
}

// DisconnectTV detaches the bridge from a television.
func (h *Handler) DisconnectTV(w http.ResponseWriter, r *http.Request) {
	var req TVRequest
	if err := decodeRequest(w, r, &req); err != nil {
		WriteFromError(w, r, err, nil)
		return
	}
	res, err := h.devices.Disconnect(r.Context(), req.TVIP)
	h.recordOperation(r, audit.EventTypeTVDisconnect, req.TVIP, "", res, err)
	if err != nil {
		WriteFromError(w, r, err, res)
		return
	}
	WriteSuccess(w, r, res)
}

// TestConnection connects to one television and names its profile.
func (h *Handler) TestConnection(w http.ResponseWriter, r *http.Request) {
	var req TVRequest
	if err := decodeRequest(w, r, &req); err != nil {
		WriteFromError(w, r, err, nil)
		return
	}
	report, err := h.devices.TestConnection(r.Context(), req.TVIP)
	if err != nil {
		WriteFromError(w, r, err, report)
		return
	}
	WriteSuccess(w, r, report)
}

// ConnectionReports is the /test-all-connections payload.
type ConnectionReports struct {
	Results   []device.ConnectionReport `json:"results"`
	Connected int                       `json:"connected"`
	Total     int                       `json:"total"`
}

// TestAllConnections tests every profiled television. It always answers 200;
// per-television failures are reported in the rows.
func (h *Handler) TestAllConnections(w http.ResponseWriter, r *http.Request) {
	reports := h.devices.TestAll(r.Context())
	connected := 0
	for _, rep := range reports {
		if rep.Success {
			connected++
		}
	}
	WriteSuccess(w, r, ConnectionReports{Results: reports, Connected: connected, Total: len(reports)})
}

// SwitchToHDMI2 runs the profile's hdmi2 key sequence.
func (h *Handler) SwitchToHDMI2(w http.ResponseWriter, r *http.Request) {
	var req TVRequest
	if err := decodeRequest(w, r, &req); err != nil {
		WriteFromError(w, r, err, nil)
		return
	}
	h.switchInput(w, r, req.TVIP, hdmi2)
}

// SetHDMIInput runs the profile's key sequence for target_input.
func (h *Handler) SetHDMIInput(w http.ResponseWriter, r *http.Request) {
	var req SetInputRequest
	if err := decodeRequest(w, r, &req); err != nil {
		WriteFromError(w, r, err, nil)
		return
	}
	h.switchInput(w, r, req.TVIP, req.TargetInput)
}

func (h *Handler) switchInput(w http.ResponseWriter, r *http.Request, ip, input string) {
	res, err := h.devices.SwitchInput(r.Context(), ip, input)
	h.recordOperation(r, audit.EventTypeInputSwitch, ip, input, res, err)
	if err != nil {
		WriteFromError(w, r, err, res)
		return
	}
	WriteSuccess(w, r, res)
}

// PlayTimeoutVideo plays the timeout video now, without touching timers.
func (h *Handler) PlayTimeoutVideo(w http.ResponseWriter, r *http.Request) {
	var req PlayVideoRequest
	if err := decodeRequest(w, r, &req); err != nil {
		WriteFromError(w, r, err, nil)
		return
	}
	ctx := r.Context()
	if req.RentalID != nil {
		ctx = logging.ContextWithRentalID(ctx, *req.RentalID)
	}
	res, err := h.devices.PlayTimeoutVideo(ctx, req.TVIP)
	h.recordOperation(r.WithContext(ctx), audit.EventTypeVideoPlayed, req.TVIP, "", res, err)
	if err != nil {
		WriteFromError(w, r, err, res)
		return
	}
	WriteSuccess(w, r, res)
}

// SendKey injects one key event.
func (h *Handler) SendKey(w http.ResponseWriter, r *http.Request) {
	var req SendKeyRequest
	if err := decodeRequest(w, r, &req); err != nil {
		WriteFromError(w, r, err, nil)
		return
	}
	key := string(req.Keycode)
	res, err := h.devices.SendKey(r.Context(), req.TVIP, key)
	h.recordOperation(r, audit.EventTypeKeySent, req.TVIP, key, res, err)
	if err != nil {
		WriteFromError(w, r, err, res)
		return
	}
	WriteSuccess(w, r, res)
}

// TVControl performs a named control action such as volume_up.
func (h *Handler) TVControl(w http.ResponseWriter, r *http.Request) {
	var req ControlRequest
	if err := decodeRequest(w, r, &req); err != nil {
		WriteFromError(w, r, err, nil)
		return
	}
	res, err := h.devices.Control(r.Context(), req.TVIP, req.Action)
	h.recordOperation(r, audit.EventTypeControl, req.TVIP, req.Action, res, err)
	if err != nil {
		WriteFromError(w, r, err, res)
		return
	}
	WriteSuccess(w, r, res)
}

// RestartADB restarts the bridge daemon.
func (h *Handler) RestartADB(w http.ResponseWriter, r *http.Request) {
	res, err := h.devices.RestartDaemon(r.Context())
	h.recordOperation(r, audit.EventTypeBridgeRestart, "", "", res, err)
	if err != nil {
		WriteFromError(w, r, err, nil)
		return
	}
	WriteSuccess(w, r, res)
}
