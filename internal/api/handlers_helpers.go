// TVShim - Rental Television Control Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tvshim

package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
)

// sanitizeLogValue replaces control characters so request-supplied values
// cannot forge log lines.
func sanitizeLogValue(s string) string {
	var result strings.Builder
	result.Grow(len(s))
	for _, r := range s {
		if r < 0x20 || r == 0x7F {
			result.WriteString(fmt.Sprintf("\\x%02x", r))
		} else {
			result.WriteRune(r)
		}
	}
	return result.String()
}

// rentalIDParam parses the {rentalID} path segment.
func rentalIDParam(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "rentalID")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, errBadRequest(fmt.Sprintf("invalid rental id %q", sanitizeLogValue(raw)))
	}
	return id, nil
}

// parseRentalFilter reads the optional ?rental_id= query used by /ws.
// Absent means all rentals.
func parseRentalFilter(r *http.Request) (int64, error) {
	raw := r.URL.Query().Get("rental_id")
	if raw == "" {
		return 0, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, errBadRequest(fmt.Sprintf("invalid rental_id filter %q", sanitizeLogValue(raw)))
	}
	return id, nil
}
