// TVShim - Rental Television Control Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tvshim

package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tomtom215/tvshim/internal/config"
	"github.com/tomtom215/tvshim/internal/monitor"
	ws "github.com/tomtom215/tvshim/internal/websocket"
)

func wsURL(srv *httptest.Server, path string) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + path
}

func TestWebSocket_NoHub(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, envOptions{noHub: true})

	rec, resp := env.do(t, http.MethodGet, "/ws", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	if resp.Error.Code != ErrCodeServiceUnavailable {
		t.Errorf("code = %s", resp.Error.Code)
	}
}

func TestWebSocket_OriginCheck(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{Security: config.SecurityConfig{CORSOrigins: []string{"http://dashboard.local"}}}

	tests := []struct {
		name   string
		origin string
		wantOK bool
	}{
		{name: "allowed origin", origin: "http://dashboard.local", wantOK: true},
		{name: "foreign origin", origin: "http://evil.example", wantOK: false},
		{name: "missing origin", origin: "", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			env := newTestEnv(t, envOptions{config: cfg})
			srv := httptest.NewServer(env.handler)
			t.Cleanup(srv.Close)

			header := http.Header{}
			if tt.origin != "" {
				header.Set("Origin", tt.origin)
			}
			conn, resp, err := websocket.DefaultDialer.Dial(wsURL(srv, "/ws"), header)
			if tt.wantOK {
				if err != nil {
					t.Fatalf("dial: %v", err)
				}
				_ = conn.Close()
				return
			}
			if err == nil {
				_ = conn.Close()
				t.Fatal("dial succeeded, want rejection")
			}
			if resp == nil || resp.StatusCode != http.StatusForbidden {
				t.Errorf("response = %v, want 403", resp)
			}
		})
	}
}

func TestWebSocket_ReceivesRentalEvents(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, envOptions{})
	srv := httptest.NewServer(env.handler)
	t.Cleanup(srv.Close)

	header := http.Header{"Origin": []string{"http://dashboard.local"}}
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "/ws?rental_id=21"), header)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	deadline := time.Now().Add(5 * time.Second)
	for env.hub.GetClientCount() != 1 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(10 * time.Millisecond)
	}

	// The filter drops the other rental's event.
	post(t, srv, "/start-rental-monitor", `{"rental_id":20,"tv_ip":"10.0.0.20","timeout_seconds":1000}`)
	post(t, srv, "/start-rental-monitor", `{"rental_id":21,"tv_ip":"10.0.0.20","timeout_seconds":1000}`)

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var msg struct {
		Type string        `json:"type"`
		Data monitor.Event `json:"data"`
	}
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	if msg.Type != ws.MessageTypeRentalEvent {
		t.Errorf("type = %q", msg.Type)
	}
	if msg.Data.RentalID != 21 || msg.Data.Type != monitor.EventMonitorStarted {
		t.Errorf("event = %+v, want monitor_started for rental 21", msg.Data)
	}
}

func TestWebSocket_InvalidFilter(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, envOptions{})

	rec, resp := env.do(t, http.MethodGet, "/ws?rental_id=nope", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if resp.Error.Code != ErrCodeBadRequest {
		t.Errorf("code = %s", resp.Error.Code)
	}
}
