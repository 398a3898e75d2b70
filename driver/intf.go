// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

// Package driver defines the action-execution boundary: the opaque,
// possibly slow, possibly failing call that performs the taps, swipes and
// assertions of one test case on one device session.
package driver

import (
	"context"
	"time"

	"github.com/testforge/devicelab/core"
	"github.com/testforge/devicelab/storage"
)

// SessionHandle identifies the device session a test case executes on.
type SessionHandle struct {
	SessionID string
	DeviceID  string
	Platform  string
}

// Artifact is a file produced during execution (screenshot, device log).
// The runner persists the bytes; result rows reference the name only.
type Artifact struct {
	Name    string
	Content []byte
}

// Result is the outcome of one execution attempt.
type Result struct {
	Status       core.TestStatus
	Duration     time.Duration
	ErrorMessage string
	Artifacts    []Artifact
}

// Driver executes test cases. An error return means the attempt itself
// could not be carried out (driver crash, device connection lost) as
// opposed to the test failing; the runner treats both as retryable.
type Driver interface {
	ExecuteTestCase(ctx context.Context, session SessionHandle, tc storage.TestCase) (Result, error)
}
