// TVShim - Rental Television Control Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tvshim

package audit

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tomtom215/tvshim/internal/config"
	"github.com/tomtom215/tvshim/internal/logging"
	"github.com/tomtom215/tvshim/internal/metrics"
	"github.com/tomtom215/tvshim/internal/monitor"
)

// Config holds configuration for the audit logger.
type Config struct {
	// Enabled controls whether events are recorded at all.
	Enabled bool

	// Retention is how long events are kept. Zero keeps them until evicted
	// by the store's capacity.
	Retention time.Duration

	// CleanupInterval is how often retention is enforced.
	CleanupInterval time.Duration

	// BufferSize is the size of the async write buffer.
	BufferSize int

	// LogToStdout also writes every event as a log line.
	LogToStdout bool
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Enabled:         true,
		Retention:       7 * 24 * time.Hour,
		CleanupInterval: time.Hour,
		BufferSize:      256,
	}
}

// ConfigFrom adapts the application's audit section.
func ConfigFrom(cfg config.AuditConfig) Config {
	return Config{
		Enabled:         cfg.Enabled,
		Retention:       cfg.Retention,
		CleanupInterval: cfg.CleanupInterval,
		BufferSize:      cfg.BufferSize,
		LogToStdout:     cfg.LogToStdout,
	}
}

// Logger buffers audit events and writes them to a Store from Serve.
//
// Log never blocks: when the buffer is full the event is dropped and
// counted. A nil *Logger accepts and discards events.
//
// Logger implements suture.Service.
type Logger struct {
	config Config
	store  Store
	events chan *Event
}

// NewLogger creates an audit logger. Events are only persisted while Serve
// runs.
func NewLogger(store Store, cfg Config) *Logger {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = DefaultConfig().BufferSize
	}
	return &Logger{
		config: cfg,
		store:  store,
		events: make(chan *Event, cfg.BufferSize),
	}
}

// Serve drains the buffer into the store and prunes expired events until ctx
// is cancelled. Events still buffered at cancellation are written before it
// returns.
func (l *Logger) Serve(ctx context.Context) error {
	var cleanup <-chan time.Time
	if l.config.Retention > 0 && l.config.CleanupInterval > 0 {
		ticker := time.NewTicker(l.config.CleanupInterval)
		defer ticker.Stop()
		cleanup = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			l.drain()
			return ctx.Err()
		case event := <-l.events:
			l.writeEvent(event)
		case <-cleanup:
			l.prune(ctx)
		}
	}
}

// String implements fmt.Stringer.
func (l *Logger) String() string {
	return "audit-logger"
}

func (l *Logger) drain() {
	for {
		select {
		case event := <-l.events:
			l.writeEvent(event)
		default:
			return
		}
	}
}

// writeEvent persists an event to the store.
func (l *Logger) writeEvent(event *Event) {
	if l.config.LogToStdout {
		l.logToStdout(event)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := l.store.Save(ctx, event); err != nil {
		logging.Error().Err(err).Str("event_id", event.ID).Msg("Failed to save audit event")
		return
	}
	metrics.AuditEventsRecorded.WithLabelValues(string(event.Type)).Inc()
}

func (l *Logger) logToStdout(event *Event) {
	data, err := json.Marshal(event)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to marshal audit event")
		return
	}
	logging.Info().RawJSON("event", data).Msg("Audit event")
}

func (l *Logger) prune(ctx context.Context) {
	cutoff := time.Now().Add(-l.config.Retention)
	count, err := l.store.Delete(ctx, cutoff)
	if err != nil {
		logging.Error().Err(err).Msg("Audit cleanup error")
		return
	}
	if count > 0 {
		logging.Info().Int64("count", count).Msg("Pruned expired audit events")
	}
}

// Log records an audit event, filling in ID and Timestamp when unset.
func (l *Logger) Log(event *Event) {
	if l == nil || !l.config.Enabled {
		return
	}

	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	select {
	case l.events <- event:
	default:
		metrics.AuditEventsDropped.Inc()
		logging.Warn().Str("event_id", event.ID).Str("type", string(event.Type)).Msg("Audit event buffer full, dropping event")
	}
}

// Enabled reports whether events are recorded.
func (l *Logger) Enabled() bool {
	return l != nil && l.config.Enabled
}

// Query retrieves events matching the filter.
func (l *Logger) Query(ctx context.Context, filter QueryFilter) ([]Event, error) {
	return l.store.Query(ctx, filter)
}

// Count returns the number of events matching the filter.
func (l *Logger) Count(ctx context.Context, filter QueryFilter) (int64, error) {
	return l.store.Count(ctx, filter)
}

// Observer returns a monitor.Observer recording the rental timer lifecycle.
func (l *Logger) Observer() monitor.Observer {
	return l.ObserveRentalEvent
}

// ObserveRentalEvent records one monitor event. Events that do not change a
// timer are ignored.
func (l *Logger) ObserveRentalEvent(ev monitor.Event) {
	var typ EventType
	switch ev.Type {
	case monitor.EventMonitorStarted:
		typ = EventTypeMonitorStarted
	case monitor.EventMonitorStopped:
		typ = EventTypeMonitorStopped
	case monitor.EventTimeoutVideoPlayed:
		typ = EventTypeTimeoutFired
	default:
		return
	}

	event := &Event{
		Timestamp:   ev.Timestamp,
		Type:        typ,
		Outcome:     OutcomeOf(ev.Success),
		Target:      ev.TVIP,
		RentalID:    ev.RentalID,
		Description: ev.Message,
	}
	if ev.TimeoutSeconds > 0 {
		event.Metadata = mustJSON(map[string]int{"timeout_seconds": ev.TimeoutSeconds})
	}
	l.Log(event)
}

// LogRequest records an operation performed on behalf of an HTTP request.
func (l *Logger) LogRequest(r *http.Request, event *Event) {
	if l == nil {
		return
	}
	source := SourceFromRequest(r)
	event.Source = &source
	if event.RequestID == "" {
		event.RequestID = logging.RequestIDFromContext(r.Context())
	}
	if event.RentalID == 0 {
		if id, ok := logging.RentalIDFromContext(r.Context()); ok {
			event.RentalID = id
		}
	}
	l.Log(event)
}

func mustJSON(v interface{}) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return data
}

// SourceFromRequest extracts the client address and agent.
func SourceFromRequest(r *http.Request) Source {
	ip := r.RemoteAddr
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		ip = host
	}
	return Source{
		IPAddress: ip,
		UserAgent: r.UserAgent(),
	}
}
