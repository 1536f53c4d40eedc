// TVShim - Rental Television Control Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tvshim

package api

import (
	"net/http"
	"testing"
	"time"

	"github.com/tomtom215/tvshim/internal/audit"
)

// waitAudit polls /audit until it lists want events for the query.
func waitAudit(t *testing.T, env *testEnv, query string, want int) AuditList {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		rec, resp := env.do(t, http.MethodGet, "/audit"+query, "")
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
		}
		var list AuditList
		decodeData(t, resp, &list)
		if list.Count == want {
			return list
		}
		if time.Now().After(deadline) {
			t.Fatalf("/audit%s listed %d events, want %d: %+v", query, list.Count, want, list.Events)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestAudit_Disabled(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, envOptions{})

	rec, resp := env.do(t, http.MethodGet, "/audit", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	if resp.Error.Code != ErrCodeServiceUnavailable {
		t.Errorf("code = %s", resp.Error.Code)
	}
}

func TestAudit_RecordsOperations(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, envOptions{withAudit: true})

	env.do(t, http.MethodPost, "/tv-control", `{"tv_ip":"10.0.0.20","action":"volume_up"}`)
	env.do(t, http.MethodPost, "/switch-to-hdmi2", `{"tv_ip":"10.0.0.20"}`)
	// Read-only and rejected requests leave no trace.
	env.do(t, http.MethodGet, "/devices", "")
	env.do(t, http.MethodPost, "/tv-control", `{"tv_ip":"10.0.0.20"}`)

	list := waitAudit(t, env, "", 2)
	if list.Total != 2 {
		t.Errorf("total = %d, want 2", list.Total)
	}

	// Newest first.
	sw, ctl := list.Events[0], list.Events[1]
	if sw.Type != audit.EventTypeInputSwitch || sw.Action != "hdmi2" || sw.Outcome != audit.OutcomeSuccess {
		t.Errorf("switch event = %+v", sw)
	}
	if ctl.Type != audit.EventTypeControl || ctl.Action != "volume_up" || ctl.Target != testTV {
		t.Errorf("control event = %+v", ctl)
	}
	if ctl.Description != "TV volume_up executed successfully" {
		t.Errorf("description = %q", ctl.Description)
	}
	if ctl.Source == nil || ctl.RequestID == "" {
		t.Errorf("control event lacks request context: %+v", ctl)
	}
}

func TestAudit_RecordsFailures(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, envOptions{withAudit: true})

	rec, _ := env.do(t, http.MethodPost, "/set-hdmi-input", `{"tv_ip":"10.0.0.20","target_input":"hdmi9"}`)
	if rec.Code == http.StatusOK {
		t.Fatalf("undefined input answered 200")
	}

	list := waitAudit(t, env, "?outcome=failure", 1)
	ev := list.Events[0]
	if ev.Type != audit.EventTypeInputSwitch || ev.Action != "hdmi9" || ev.Description == "" {
		t.Errorf("event = %+v", ev)
	}
}

func TestAudit_RentalLifecycle(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, envOptions{withAudit: true})

	env.do(t, http.MethodPost, "/start-rental-monitor", `{"rental_id":31,"tv_ip":"10.0.0.20","timeout_seconds":1000}`)
	env.do(t, http.MethodPost, "/stop-rental-monitor/31", "")
	env.do(t, http.MethodPost, "/start-rental-monitor", `{"rental_id":32,"tv_ip":"10.0.0.20","timeout_seconds":1000}`)

	list := waitAudit(t, env, "?rental_id=31", 2)
	if list.Events[0].Type != audit.EventTypeMonitorStopped || list.Events[1].Type != audit.EventTypeMonitorStarted {
		t.Errorf("events = %+v", list.Events)
	}

	list = waitAudit(t, env, "?type=rental.monitor_started", 2)
	for _, ev := range list.Events {
		if ev.Type != audit.EventTypeMonitorStarted {
			t.Errorf("type filter leaked %s", ev.Type)
		}
	}
}

func TestAudit_Limit(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, envOptions{withAudit: true})

	for i := 0; i < 3; i++ {
		env.do(t, http.MethodPost, "/send-key", `{"tv_ip":"10.0.0.20","keycode":"KEYCODE_HOME"}`)
	}
	waitAudit(t, env, "", 3)

	list := waitAudit(t, env, "?limit=2", 2)
	if list.Total != 3 {
		t.Errorf("total = %d, want 3", list.Total)
	}
}

func TestAudit_InvalidFilter(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, envOptions{withAudit: true})

	for _, query := range []string{
		"?rental_id=abc",
		"?rental_id=0",
		"?outcome=maybe",
		"?since=yesterday",
		"?limit=0",
		"?limit=5000",
	} {
		rec, resp := env.do(t, http.MethodGet, "/audit"+query, "")
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", query, rec.Code)
			continue
		}
		if resp.Error.Code != ErrCodeBadRequest {
			t.Errorf("%s: code = %s", query, resp.Error.Code)
		}
	}
}
