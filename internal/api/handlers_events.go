// TVShim - Rental Television Control Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tvshim

package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/tomtom215/tvshim/internal/logging"
	"github.com/tomtom215/tvshim/internal/monitor"
)

// RentalEvents streams a rental's monitor events as Server-Sent Events.
//
// The stream opens with a connected event, then carries monitor_started,
// monitor_stopped and timeout_video_played as they happen, with a heartbeat
// whenever the stream has been idle for the heartbeat interval. Closing the
// connection unsubscribes, which also cancels the rental's live timer. A
// second stream for the same rental replaces the first.
func (h *Handler) RentalEvents(w http.ResponseWriter, r *http.Request) {
	id, err := rentalIDParam(r)
	if err != nil {
		WriteFromError(w, r, err, nil)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		WriteError(w, r, http.StatusInternalServerError, ErrCodeInternalError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ctx := logging.ContextWithRentalID(r.Context(), id)
	log := logging.Ctx(ctx)

	sub := h.monitor.Subscribe(id)
	defer h.monitor.Unsubscribe(sub)
	log.Info().Msg("event stream opened")

	for {
		ev, err := sub.Next(ctx)
		if err != nil {
			if errors.Is(err, monitor.ErrSubscriptionClosed) {
				log.Info().Msg("event stream closed by monitor")
			} else {
				log.Info().Msg("event stream client disconnected")
			}
			return
		}
		if err := writeSSE(w, ev); err != nil {
			log.Debug().Err(err).Msg("event stream write failed")
			return
		}
		flusher.Flush()
	}
}

// writeSSE writes one frame: "event: <type>\ndata: <json>\n\n".
func writeSSE(w io.Writer, ev monitor.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, data)
	return err
}
