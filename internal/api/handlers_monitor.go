// TVShim - Rental Television Control Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tvshim

package api

import (
	"fmt"
	"net/http"

	"github.com/tomtom215/tvshim/internal/logging"
)

// MonitorStatus answers start and stop requests.
type MonitorStatus struct {
	RentalID       int64  `json:"rental_id"`
	TVIP           string `json:"tv_ip,omitempty"`
	TimeoutSeconds int    `json:"timeout_seconds,omitempty"`
	Active         bool   `json:"active"`
	Message        string `json:"message"`
}

// TimeoutResult answers a manual timeout trigger.
type TimeoutResult struct {
	RentalID int64  `json:"rental_id"`
	TVIP     string `json:"tv_ip"`
	Success  bool   `json:"success"`
	Message  string `json:"message"`
}

// StartRentalMonitor arms (or re-arms) the timer for a rental.
func (h *Handler) StartRentalMonitor(w http.ResponseWriter, r *http.Request) {
	var req StartMonitorRequest
	if err := decodeRequest(w, r, &req); err != nil {
		WriteFromError(w, r, err, nil)
		return
	}
	delay := h.defaultTimeoutSeconds()
	if req.TimeoutSeconds != nil {
		delay = *req.TimeoutSeconds
	}

	if err := h.monitor.Start(req.RentalID, req.TVIP, delay); err != nil {
		WriteFromError(w, r, err, nil)
		return
	}
	WriteSuccess(w, r, MonitorStatus{
		RentalID:       req.RentalID,
		TVIP:           req.TVIP,
		TimeoutSeconds: delay,
		Active:         true,
		Message:        fmt.Sprintf("Timeout monitor started for rental %d", req.RentalID),
	})
}

// StopRentalMonitor cancels a rental's timer. Stopping a rental with no
// timer succeeds.
func (h *Handler) StopRentalMonitor(w http.ResponseWriter, r *http.Request) {
	id, err := rentalIDParam(r)
	if err != nil {
		WriteFromError(w, r, err, nil)
		return
	}
	stopped := h.monitor.Stop(id)
	msg := fmt.Sprintf("Timeout monitor stopped for rental %d", id)
	if !stopped {
		msg = fmt.Sprintf("No active timeout monitor for rental %d", id)
	}
	WriteSuccess(w, r, MonitorStatus{RentalID: id, Active: false, Message: msg})
}

// RentalTimeout runs the timeout action immediately, cancelling any live
// timer for the rental. A failed action is answered with 502 so callers
// can tell it apart from a played video.
func (h *Handler) RentalTimeout(w http.ResponseWriter, r *http.Request) {
	var req RentalTimeoutRequest
	if err := decodeRequest(w, r, &req); err != nil {
		WriteFromError(w, r, err, nil)
		return
	}
	ctx := logging.ContextWithRentalID(r.Context(), req.RentalID)
	logging.Ctx(ctx).Info().Str("tv_ip", req.TVIP).Msg("manual rental timeout")

	out := h.monitor.Trigger(ctx, req.RentalID, req.TVIP)
	result := TimeoutResult{RentalID: req.RentalID, TVIP: req.TVIP, Success: out.Success, Message: out.Message}
	if !out.Success {
		NewResponseWriter(w, r).ErrorWithDetails(http.StatusBadGateway, ErrCodeToolInvocationFailed, out.Message, result)
		return
	}
	WriteSuccess(w, r, result)
}
