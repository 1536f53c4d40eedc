// TVShim - Rental Television Control Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tvshim

package api

import (
	"net/http"

	"github.com/tomtom215/tvshim/internal/logging"
	ws "github.com/tomtom215/tvshim/internal/websocket"
)

// WebSocket upgrades to the dashboard event feed. ?rental_id=N restricts the
// feed to one rental.
func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	if h.wsHub == nil {
		WriteError(w, r, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "event feed not available")
		return
	}

	rentalID, err := parseRentalFilter(r)
	if err != nil {
		WriteFromError(w, r, err, nil)
		return
	}

	upgrader := h.getUpgrader()
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written an HTTP error.
		logging.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := ws.NewClient(h.wsHub, conn, rentalID)
	select {
	case h.wsHub.Register <- client:
	case <-r.Context().Done():
		_ = conn.Close()
		return
	}
	client.Start()
}
