// TVShim - Rental Television Control Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tvshim

package device

import (
	"context"

	"github.com/tomtom215/tvshim/internal/logging"
	"github.com/tomtom215/tvshim/internal/monitor"
)

// TimeoutAction adapts the timeout playback to the monitor's Action. Unlike
// PlayTimeoutVideo it still tries the command alternatives when the video
// file cannot be listed.
func (c *Controller) TimeoutAction() monitor.Action {
	return func(ctx context.Context, rentalID int64, target string) monitor.Outcome {
		res, err := c.playVideo(ctx, target, false)
		if err != nil {
			logging.Ctx(ctx).Error().Err(err).Int64("rental_id", rentalID).Str("tv_ip", target).
				Msg("timeout video failed")
			return monitor.Outcome{Success: false, Message: err.Error()}
		}
		return monitor.Outcome{Success: true, Message: res.Message}
	}
}
