// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package core

import "time"

// EventType names a lifecycle event emitted by the runner or session
// manager. Within one run, events are published in execution order.
type EventType string

const (
	EventTestStarted     EventType = "TEST_STARTED"
	EventTestRetry       EventType = "TEST_RETRY"
	EventTestCompleted   EventType = "TEST_COMPLETED"
	EventTestFailed      EventType = "TEST_FAILED"
	EventTestTimeout     EventType = "TEST_TIMEOUT"
	EventSessionCreated  EventType = "SESSION_CREATED"
	EventSessionReleased EventType = "SESSION_RELEASED"
	EventSessionError    EventType = "SESSION_ERROR"
	EventBatchStarted    EventType = "BATCH_STARTED"
	EventBatchCompleted  EventType = "BATCH_COMPLETED"
)

// Event is one lifecycle notification. Only the fields relevant to the
// event type are set; the rest stay zero.
type Event struct {
	Type       EventType     `json:"type"`
	Timestamp  time.Time     `json:"timestamp"`
	TestRunID  string        `json:"testRunId,omitempty"`
	TestCaseID string        `json:"testCaseId,omitempty"`
	SessionID  string        `json:"sessionId,omitempty"`
	DeviceID   string        `json:"deviceId,omitempty"`
	Attempt    int           `json:"attempt,omitempty"`
	Duration   time.Duration `json:"duration,omitempty"`
	Error      string        `json:"error,omitempty"`
}
