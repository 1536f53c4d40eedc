// TVShim - Rental Television Control Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tvshim

package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordAPIRequest(t *testing.T) {
	before := testutil.ToFloat64(APIRequestsTotal.WithLabelValues("POST", "/send-key", "200"))

	RecordAPIRequest("POST", "/send-key", "200", 15*time.Millisecond)

	after := testutil.ToFloat64(APIRequestsTotal.WithLabelValues("POST", "/send-key", "200"))
	if after != before+1 {
		t.Errorf("api_requests_total = %v, want %v", after, before+1)
	}
}

func TestTrackActiveRequest(t *testing.T) {
	before := testutil.ToFloat64(APIActiveRequests)

	TrackActiveRequest(true)
	if got := testutil.ToFloat64(APIActiveRequests); got != before+1 {
		t.Errorf("after inc: api_active_requests = %v, want %v", got, before+1)
	}

	TrackActiveRequest(false)
	if got := testutil.ToFloat64(APIActiveRequests); got != before {
		t.Errorf("after dec: api_active_requests = %v, want %v", got, before)
	}
}

func TestRecordBridgeInvocation(t *testing.T) {
	tests := []struct {
		command string
		outcome string
	}{
		{"connect", OutcomeSuccess},
		{"shell", OutcomeFailure},
		{"shell", OutcomeTimeout},
		{"devices", OutcomeRejected},
	}

	for _, tt := range tests {
		t.Run(tt.command+"/"+tt.outcome, func(t *testing.T) {
			counter := BridgeInvocations.WithLabelValues(tt.command, tt.outcome)
			before := testutil.ToFloat64(counter)

			RecordBridgeInvocation(tt.command, tt.outcome, time.Second)

			if got := testutil.ToFloat64(counter); got != before+1 {
				t.Errorf("bridge_invocations_total{%s,%s} = %v, want %v", tt.command, tt.outcome, got, before+1)
			}
		})
	}
}

func TestRecordOutcomeHelpers(t *testing.T) {
	fired := MonitorTimeoutsFired.WithLabelValues(OutcomeFailure)
	before := testutil.ToFloat64(fired)
	RecordTimeoutFired(false)
	if got := testutil.ToFloat64(fired); got != before+1 {
		t.Errorf("monitor_timeouts_fired_total{failure} = %v, want %v", got, before+1)
	}

	action := DeviceActions.WithLabelValues("connect", OutcomeSuccess)
	before = testutil.ToFloat64(action)
	RecordDeviceAction("connect", true)
	if got := testutil.ToFloat64(action); got != before+1 {
		t.Errorf("device_actions_total{connect,success} = %v, want %v", got, before+1)
	}
}
