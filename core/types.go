// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

// Package core holds the domain types shared by the orchestration
// components: run/test/session states, the error taxonomy, and lifecycle
// events. It has no dependencies on the components themselves.
package core

import "time"

// RunStatus is the lifecycle state of a test run. Transitions are monotonic:
// PENDING → RUNNING → one of the terminal states, never backwards.
type RunStatus string

const (
	RunPending   RunStatus = "PENDING"
	RunRunning   RunStatus = "RUNNING"
	RunCompleted RunStatus = "COMPLETED"
	RunFailed    RunStatus = "FAILED"
	RunCancelled RunStatus = "CANCELLED"
)

// IsTerminal reports whether no further status transitions are allowed.
func (s RunStatus) IsTerminal() bool {
	return s == RunCompleted || s == RunFailed || s == RunCancelled
}

// CanTransitionTo reports whether moving from s to next preserves the
// monotonic run lifecycle.
func (s RunStatus) CanTransitionTo(next RunStatus) bool {
	if s.IsTerminal() {
		return false
	}
	switch s {
	case RunPending:
		return next == RunRunning || next == RunFailed || next == RunCancelled
	case RunRunning:
		return next.IsTerminal()
	}
	return false
}

// TestStatus is the outcome of a single test case execution.
type TestStatus string

const (
	TestPassed  TestStatus = "PASSED"
	TestFailed  TestStatus = "FAILED"
	TestSkipped TestStatus = "SKIPPED"
	TestTimeout TestStatus = "TIMEOUT"
)

// DeviceStatus is the externally visible state of a device in the pool.
type DeviceStatus string

const (
	DeviceAvailable   DeviceStatus = "AVAILABLE"
	DeviceBusy        DeviceStatus = "BUSY"
	DeviceOffline     DeviceStatus = "OFFLINE"
	DeviceMaintenance DeviceStatus = "MAINTENANCE"
)

// SessionStatus is the state of a device session as tracked by the session
// manager.
type SessionStatus string

const (
	SessionIdle         SessionStatus = "idle"
	SessionBusy         SessionStatus = "busy"
	SessionInitializing SessionStatus = "initializing"
	SessionTerminating  SessionStatus = "terminating"
	SessionError        SessionStatus = "error"
)

// IsolationStrategy controls how often the runner creates a fresh device
// session within one run.
type IsolationStrategy string

const (
	// FullIsolation creates a new session per test case. Strongest fault
	// containment, highest overhead.
	FullIsolation IsolationStrategy = "FULL_ISOLATION"
	// SessionReuse runs the whole suite on one session.
	SessionReuse IsolationStrategy = "SESSION_REUSE"
	// DeviceIsolation isolates at device granularity only; the session is
	// reused like SessionReuse but the device is not shared across runs.
	DeviceIsolation IsolationStrategy = "DEVICE_ISOLATION"
)

// ParseIsolationStrategy validates s, defaulting to SessionReuse when empty.
func ParseIsolationStrategy(s string) (IsolationStrategy, error) {
	switch IsolationStrategy(s) {
	case "":
		return SessionReuse, nil
	case FullIsolation, SessionReuse, DeviceIsolation:
		return IsolationStrategy(s), nil
	}
	return "", NewValidationError("unknown isolation strategy: %s", s)
}

// BatchStrategy names a batch partitioning policy of the optimizer.
type BatchStrategy string

const (
	DurationBalanced  BatchStrategy = "DURATION_BALANCED"
	DurationClustered BatchStrategy = "DURATION_CLUSTERED"
	TagBased          BatchStrategy = "TAG_BASED"
	FlakyIsolated     BatchStrategy = "FLAKY_ISOLATED"
	Hybrid            BatchStrategy = "HYBRID"
)

// ParseBatchStrategy validates s, defaulting to DurationBalanced when empty.
func ParseBatchStrategy(s string) (BatchStrategy, error) {
	switch BatchStrategy(s) {
	case "":
		return DurationBalanced, nil
	case DurationBalanced, DurationClustered, TagBased, FlakyIsolated, Hybrid:
		return BatchStrategy(s), nil
	}
	return "", NewValidationError("unknown batch strategy: %s", s)
}

// Batch is one computed execution group: the member test case IDs, the
// concurrency the group should run at and the estimated wall-clock cost.
// Batches are ephemeral; they are computed on demand and never persisted.
type Batch struct {
	Strategy          BatchStrategy `json:"strategy"`
	TestCaseIds       []string      `json:"testCaseIds"`
	EstimatedDuration time.Duration `json:"estimatedDuration"`
	MaxConcurrency    int           `json:"maxConcurrency"`
}
