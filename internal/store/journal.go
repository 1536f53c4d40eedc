// TVShim - Rental Television Control Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tvshim

// Package store persists live rental timers in BadgerDB so they survive a
// restart of the shim.
package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/tomtom215/tvshim/internal/logging"
	"github.com/tomtom215/tvshim/internal/monitor"
)

const timerKeyPrefix = "rental_timer:"

// ErrClosed is returned once the journal has been closed.
var ErrClosed = errors.New("journal closed")

// Config configures the journal database.
type Config struct {
	// Path is the BadgerDB directory. Ignored when InMemory is set.
	Path string

	// InMemory keeps the database in memory (tests).
	InMemory bool

	// SyncWrites fsyncs every write.
	SyncWrites bool

	// CloseTimeout bounds Close; 0 uses 30 seconds.
	CloseTimeout time.Duration
}

// Journal is a BadgerDB-backed monitor.Journal.
type Journal struct {
	db  *badger.DB
	cfg Config

	mu     sync.RWMutex
	closed bool
}

var _ monitor.Journal = (*Journal)(nil)

// Open opens (or creates) the journal.
func Open(cfg Config) (*Journal, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("journal path is required")
	}
	if cfg.CloseTimeout <= 0 {
		cfg.CloseTimeout = 30 * time.Second
	}

	opts := badger.DefaultOptions(cfg.Path)
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts.SyncWrites = cfg.SyncWrites
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open BadgerDB: %w", err)
	}

	logging.Info().Str("path", cfg.Path).Bool("in_memory", cfg.InMemory).Msg("monitor journal opened")
	return &Journal{db: db, cfg: cfg}, nil
}

func timerKey(rentalID int64) []byte {
	return []byte(timerKeyPrefix + strconv.FormatInt(rentalID, 10))
}

// Save stores or replaces the entry for e.RentalID.
func (j *Journal) Save(ctx context.Context, e monitor.Entry) error {
	if err := j.check(ctx); err != nil {
		return err
	}
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal entry: %w", err)
	}
	return j.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(timerKey(e.RentalID), data); err != nil {
			return fmt.Errorf("set entry: %w", err)
		}
		return nil
	})
}

// Delete removes the entry for rentalID. Missing entries are not an error.
func (j *Journal) Delete(ctx context.Context, rentalID int64) error {
	if err := j.check(ctx); err != nil {
		return err
	}
	return j.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete(timerKey(rentalID)); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("delete entry: %w", err)
		}
		return nil
	})
}

// List returns every entry in rental order. Entries that fail to decode are
// skipped and logged.
func (j *Journal) List(ctx context.Context) ([]monitor.Entry, error) {
	if err := j.check(ctx); err != nil {
		return nil, err
	}

	var entries []monitor.Entry
	err := j.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(timerKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			var e monitor.Entry
			err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &e)
			})
			if err != nil {
				logging.Warn().Err(err).Str("key", string(item.Key())).Msg("skipping corrupt journal entry")
				continue
			}
			entries = append(entries, e)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}

	// Keys sort lexically ("10" < "9").
	sort.Slice(entries, func(a, b int) bool { return entries[a].RentalID < entries[b].RentalID })
	return entries, nil
}

// RunGC reclaims value-log space until BadgerDB reports nothing to rewrite.
func (j *Journal) RunGC() error {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.closed {
		return ErrClosed
	}
	if j.cfg.InMemory {
		return nil
	}
	for {
		err := j.db.RunValueLogGC(0.5)
		if errors.Is(err, badger.ErrNoRewrite) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("run GC: %w", err)
		}
	}
}

// Close closes the database, giving up after the configured timeout.
func (j *Journal) Close() error {
	j.mu.Lock()
	if j.closed {
		j.mu.Unlock()
		return nil
	}
	j.closed = true
	j.mu.Unlock()

	done := make(chan error, 1)
	go func() {
		done <- j.db.Close()
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("close BadgerDB: %w", err)
		}
		logging.Info().Msg("monitor journal closed")
		return nil
	case <-time.After(j.cfg.CloseTimeout):
		return fmt.Errorf("journal close timed out after %v", j.cfg.CloseTimeout)
	}
}

func (j *Journal) check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.closed {
		return ErrClosed
	}
	return nil
}
