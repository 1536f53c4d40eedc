// TVShim - Rental Television Control Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tvshim

package websocket

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tomtom215/tvshim/internal/monitor"
)

// serveClients upgrades every request into a hub client following rentalID.
func serveClients(t *testing.T, hub *Hub, rentalID int64) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		client := NewClient(hub, conn, rentalID)
		hub.Register <- client
		client.Start()
	}))
	t.Cleanup(server.Close)
	return server
}

func dialWebSocket(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if resp != nil && resp.Body != nil {
		defer resp.Body.Close()
	}
	if err != nil {
		t.Fatalf("Failed to dial websocket: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestNewClient(t *testing.T) {
	hub := NewHub()
	a := NewClient(hub, nil, 0)
	b := NewClient(hub, nil, 9)

	if b.ID() <= a.ID() {
		t.Errorf("client ids not increasing: %d then %d", a.ID(), b.ID())
	}
	if cap(a.send) == 0 || cap(a.control) == 0 {
		t.Error("client channels should be buffered")
	}
	if !a.wants(1) || !a.wants(9) {
		t.Error("unfiltered client should want every rental")
	}
	if !b.wants(9) || b.wants(1) {
		t.Error("filtered client should want only rental 9")
	}
}

func TestClient_Constants(t *testing.T) {
	if pingPeriod >= pongWait {
		t.Errorf("pingPeriod %v must be shorter than pongWait %v", pingPeriod, pongWait)
	}
	if writeWait != 10*time.Second {
		t.Errorf("writeWait = %v", writeWait)
	}
}

func TestClient_PingPong(t *testing.T) {
	hub := setupHub(t)
	conn := dialWebSocket(t, serveClients(t, hub, 0))

	if err := conn.WriteJSON(Message{Type: MessageTypePing}); err != nil {
		t.Fatalf("write ping: %v", err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg Message
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read pong: %v", err)
	}
	if msg.Type != MessageTypePong {
		t.Errorf("Type = %q, want pong", msg.Type)
	}
}

func TestClient_ReceivesRentalEvents(t *testing.T) {
	hub := setupHub(t)
	conn := dialWebSocket(t, serveClients(t, hub, 42))
	waitForClients(t, hub, 1)

	hub.BroadcastEvent(monitor.Event{Type: monitor.EventMonitorStarted, RentalID: 7})
	hub.BroadcastEvent(monitor.Event{Type: monitor.EventTimeoutVideoPlayed, RentalID: 42, Success: true})

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg struct {
		Type string        `json:"type"`
		Data monitor.Event `json:"data"`
	}
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	if msg.Type != MessageTypeRentalEvent || msg.Data.RentalID != 42 || msg.Data.Type != monitor.EventTimeoutVideoPlayed {
		t.Errorf("unexpected message %+v", msg)
	}
}

func TestClient_DisconnectUnregisters(t *testing.T) {
	hub := setupHub(t)
	conn := dialWebSocket(t, serveClients(t, hub, 0))
	waitForClients(t, hub, 1)

	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	_ = conn.Close()

	waitForClients(t, hub, 0)
}
