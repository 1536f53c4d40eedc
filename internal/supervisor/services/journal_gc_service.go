// TVShim - Rental Television Control Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tvshim

package services

import (
	"context"
	"errors"
	"time"

	"github.com/thejerf/suture/v4"

	"github.com/tomtom215/tvshim/internal/logging"
	"github.com/tomtom215/tvshim/internal/store"
)

// GarbageCollector is satisfied by *store.Journal.
type GarbageCollector interface {
	RunGC() error
}

// JournalGCService periodically reclaims value-log space in the monitor
// journal.
//
//	journal, _ := store.Open(store.Config{Path: cfg.Monitor.JournalPath})
//	tree.AddDataService(services.NewJournalGCService(journal, cfg.Monitor.JournalGCInterval))
type JournalGCService struct {
	journal  GarbageCollector
	interval time.Duration
	name     string
}

// NewJournalGCService creates the service. A non-positive interval uses 10m.
func NewJournalGCService(journal GarbageCollector, interval time.Duration) *JournalGCService {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &JournalGCService{
		journal:  journal,
		interval: interval,
		name:     "journal-gc",
	}
}

// Serve implements suture.Service. A closed journal ends the service without
// a restart; other GC failures are logged and retried on the next tick.
func (s *JournalGCService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			err := s.journal.RunGC()
			switch {
			case err == nil:
				logging.Debug().Msg("journal GC complete")
			case errors.Is(err, store.ErrClosed):
				logging.Info().Msg("journal closed, stopping GC")
				return suture.ErrDoNotRestart
			default:
				logging.Warn().Err(err).Msg("journal GC failed")
			}
		}
	}
}

// String implements fmt.Stringer.
func (s *JournalGCService) String() string {
	return s.name
}
