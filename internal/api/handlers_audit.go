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
	"time"

	"github.com/tomtom215/tvshim/internal/audit"
	"github.com/tomtom215/tvshim/internal/device"
)

// SetAuditLog installs the operation trail. Without one, operations are not
// recorded and /audit answers 503.
func (h *Handler) SetAuditLog(l *audit.Logger) {
	h.audit = l
}

// recordOperation adds a television operation to the audit trail.
func (h *Handler) recordOperation(r *http.Request, typ audit.EventType, target, action string, res device.OperationResult, err error) {
	if !h.audit.Enabled() {
		return
	}
	description := res.Message
	if err != nil {
		description = err.Error()
	}
	h.audit.LogRequest(r, &audit.Event{
		Type:        typ,
		Outcome:     audit.OutcomeOf(err == nil && res.Success),
		Target:      target,
		Action:      action,
		Description: description,
	})
}

// AuditList is the /audit payload.
type AuditList struct {
	Events []audit.Event `json:"events"`
	Count  int           `json:"count"`
	Total  int64         `json:"total"`
}

// AuditEvents lists recorded operations, newest first.
//
// Query parameters (all optional): type (comma-separated), tv_ip, rental_id,
// outcome (success or failure), since (RFC 3339), limit (1-1000, default 100).
func (h *Handler) AuditEvents(w http.ResponseWriter, r *http.Request) {
	if h.audit == nil {
		WriteError(w, r, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "audit trail is disabled")
		return
	}

	filter, err := parseAuditFilter(r)
	if err != nil {
		WriteFromError(w, r, err, nil)
		return
	}

	events, err := h.audit.Query(r.Context(), filter)
	if err != nil {
		WriteFromError(w, r, err, nil)
		return
	}
	total, err := h.audit.Count(r.Context(), filter)
	if err != nil {
		WriteFromError(w, r, err, nil)
		return
	}
	WriteSuccess(w, r, AuditList{Events: events, Count: len(events), Total: total})
}

func parseAuditFilter(r *http.Request) (audit.QueryFilter, error) {
	q := r.URL.Query()
	filter := audit.DefaultQueryFilter()

	if raw := q.Get("type"); raw != "" {
		for _, t := range strings.Split(raw, ",") {
			if t = strings.TrimSpace(t); t != "" {
				filter.Types = append(filter.Types, audit.EventType(t))
			}
		}
	}

	filter.Target = q.Get("tv_ip")

	if raw := q.Get("rental_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			return filter, errBadRequest(fmt.Sprintf("invalid rental_id %q", sanitizeLogValue(raw)))
		}
		filter.RentalID = id
	}

	switch raw := audit.Outcome(q.Get("outcome")); raw {
	case "":
	case audit.OutcomeSuccess, audit.OutcomeFailure:
		filter.Outcome = raw
	default:
		return filter, errBadRequest(fmt.Sprintf("invalid outcome %q", sanitizeLogValue(string(raw))))
	}

	if raw := q.Get("since"); raw != "" {
		since, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filter, errBadRequest(fmt.Sprintf("invalid since %q: want RFC 3339", sanitizeLogValue(raw)))
		}
		filter.Since = &since
	}

	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 || limit > audit.MaxQueryLimit {
			return filter, errBadRequest(fmt.Sprintf("limit must be between 1 and %d", audit.MaxQueryLimit))
		}
		filter.Limit = limit
	}

	return filter, nil
}
