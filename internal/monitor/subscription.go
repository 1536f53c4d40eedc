// TVShim - Rental Television Control Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tvshim

package monitor

import (
	"context"
	"errors"
	"time"
)

// ErrSubscriptionClosed is returned by Next once the subscription has been
// torn down and its buffered events drained.
var ErrSubscriptionClosed = errors.New("subscription closed")

// Subscription receives events for one rental. It is owned by one listener.
type Subscription struct {
	rentalID  int64
	events    chan Event
	heartbeat time.Duration

	// closed is guarded by Monitor.mu.
	closed bool
}

// RentalID returns the rental this subscription follows.
func (s *Subscription) RentalID() int64 {
	return s.rentalID
}

// Next blocks until the next event. When nothing arrives within the heartbeat
// interval a heartbeat event is returned instead, so an idle subscription
// yields exactly one heartbeat per interval.
func (s *Subscription) Next(ctx context.Context) (Event, error) {
	t := time.NewTimer(s.heartbeat)
	defer t.Stop()

	select {
	case ev, ok := <-s.events:
		if !ok {
			return Event{}, ErrSubscriptionClosed
		}
		return ev, nil
	case <-t.C:
		return heartbeatEvent(s.rentalID), nil
	case <-ctx.Done():
		return Event{}, ctx.Err()
	}
}
