// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package events

import (
	"log/slog"
)

// StartLogSink subscribes to the bus and mirrors every event into the
// logger at debug level. Returns a stop func. This is the default sink the
// server installs; external notification sinks subscribe the same way.
func StartLogSink(bus *Bus, logger *slog.Logger) func() {
	ch, cancel := bus.Subscribe(256)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for evt := range ch {
			logger.Debug("lifecycle event",
				"type", string(evt.Type),
				"run", evt.TestRunID,
				"case", evt.TestCaseID,
				"session", evt.SessionID,
				"device", evt.DeviceID,
				"attempt", evt.Attempt,
				"duration", evt.Duration,
				"error", evt.Error,
			)
		}
	}()
	return func() {
		cancel()
		<-done
	}
}
