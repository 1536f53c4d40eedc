// TVShim - Rental Television Control Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tvshim

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tomtom215/tvshim/internal/audit"
	"github.com/tomtom215/tvshim/internal/config"
	"github.com/tomtom215/tvshim/internal/device"
	"github.com/tomtom215/tvshim/internal/logging"
	"github.com/tomtom215/tvshim/internal/monitor"
	ws "github.com/tomtom215/tvshim/internal/websocket"
)

// DeviceController is the set of television operations the handlers expose.
// *device.Controller implements it.
type DeviceController interface {
	ToolPath() string
	ToolInfo(ctx context.Context) (device.ToolInfo, error)
	Devices(ctx context.Context) (device.DeviceList, error)
	Connect(ctx context.Context, ip string) (device.OperationResult, error)
	Disconnect(ctx context.Context, ip string) (device.OperationResult, error)
	TestConnection(ctx context.Context, ip string) (device.ConnectionReport, error)
	TestAll(ctx context.Context) []device.ConnectionReport
	SendKey(ctx context.Context, ip, key string) (device.OperationResult, error)
	SwitchInput(ctx context.Context, ip, input string) (device.OperationResult, error)
	PlayTimeoutVideo(ctx context.Context, ip string) (device.OperationResult, error)
	Control(ctx context.Context, ip, action string) (device.OperationResult, error)
	RestartDaemon(ctx context.Context) (device.OperationResult, error)
	Profiles() *device.Profiles
	BreakerStates() map[string]string
}

// RentalMonitor is the rental timer service. *monitor.Monitor implements it.
type RentalMonitor interface {
	Start(rentalID int64, target string, delaySeconds int) error
	Stop(rentalID int64) bool
	Subscribe(rentalID int64) *monitor.Subscription
	Unsubscribe(sub *monitor.Subscription)
	Trigger(ctx context.Context, rentalID int64, target string) monitor.Outcome
	Active() []monitor.TimerInfo
	ActiveCount() int
}

var (
	_ DeviceController = (*device.Controller)(nil)
	_ RentalMonitor    = (*monitor.Monitor)(nil)
)

// Handler contains dependencies for API handlers
//
// Handler methods are split across files:
//   - handlers_health.go: health, tool and monitor listings
//   - handlers_device.go: television operations
//   - handlers_monitor.go: rental timer start/stop/trigger
//   - handlers_events.go: per-rental SSE stream
//   - handlers_websocket.go: dashboard WebSocket feed
//   - handlers_audit.go: operation trail
type Handler struct {
	devices   DeviceController
	monitor   RentalMonitor
	wsHub     *ws.Hub
	audit     *audit.Logger
	config    *config.Config
	startTime time.Time
}

// NewHandler creates a Handler. wsHub may be nil, in which case /ws answers
// 503.
func NewHandler(devices DeviceController, mon RentalMonitor, wsHub *ws.Hub, cfg *config.Config) *Handler {
	return &Handler{
		devices:   devices,
		monitor:   mon,
		wsHub:     wsHub,
		config:    cfg,
		startTime: time.Now(),
	}
}

// defaultTimeoutSeconds is used when a start request omits timeout_seconds.
func (h *Handler) defaultTimeoutSeconds() int {
	if h.config != nil && h.config.Monitor.DefaultTimeoutSeconds > 0 {
		return h.config.Monitor.DefaultTimeoutSeconds
	}
	return 30
}

// getUpgrader creates a WebSocket upgrader with origin checking and a
// handshake timeout.
func (h *Handler) getUpgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		CheckOrigin:      h.checkWebSocketOrigin,
		HandshakeTimeout: 10 * time.Second,
	}
}

// checkWebSocketOrigin validates WebSocket connection origins
func (h *Handler) checkWebSocketOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")

	// Browsers always send Origin; an empty one would bypass the allow-list.
	if origin == "" {
		logging.Warn().Msg("WebSocket connection rejected: missing Origin header")
		return false
	}

	if h.config == nil {
		return true
	}

	for _, allowedOrigin := range h.config.Security.CORSOrigins {
		if allowedOrigin == "*" || allowedOrigin == origin {
			return true
		}
	}

	logging.Warn().Str("origin", sanitizeLogValue(origin)).Msg("WebSocket connection rejected from unauthorized origin")
	return false
}
