// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package runner

import (
	"bytes"
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/testforge/devicelab/core"
	"github.com/testforge/devicelab/driver"
	"github.com/testforge/devicelab/sessions"
	"github.com/testforge/devicelab/storage"
)

// outcome is the final result of one test case after all retries.
type outcome struct {
	status    core.TestStatus
	duration  time.Duration
	retries   int
	errMsg    string
	artifacts []driver.Artifact
}

// executeCase runs one test case with the retry policy. A FAILED or TIMEOUT
// attempt is retried up to MaxRetries times; PASSED and SKIPPED end the
// loop. The recorded duration is the last attempt's.
func (e *Engine) executeCase(ctx context.Context, session *sessions.Session,
	tc storage.TestCase, opts Options) outcome {

	timeout := tc.Timeout()
	if opts.Timeout > 0 {
		timeout = opts.Timeout
	}

	e.bus.Publish(core.Event{
		Type: core.EventTestStarted, Timestamp: time.Now(),
		TestRunID: session.CurrentTestRunID, TestCaseID: tc.Uuid,
		SessionID: session.SessionID, DeviceID: session.DeviceID,
	})

	var last outcome
	for attempt := 0; attempt <= opts.MaxRetries; attempt++ {
		if attempt > 0 {
			e.bus.Publish(core.Event{
				Type: core.EventTestRetry, Timestamp: time.Now(),
				TestRunID: session.CurrentTestRunID, TestCaseID: tc.Uuid,
				SessionID: session.SessionID, Attempt: attempt,
			})
			delay := opts.RetryDelay
			if opts.RetryBackoff {
				delay *= time.Duration(attempt)
			}
			if delay > 0 {
				select {
				case <-time.After(delay):
				case <-ctx.Done():
				}
			}
		}

		attemptCtx, cancel := context.WithTimeout(ctx, timeout)
		res, err := e.drv.ExecuteTestCase(attemptCtx, session.Handle(), tc)
		cancel()
		e.sessions.NoteExecution(session.SessionID)

		last.retries = attempt
		last.duration = res.Duration
		last.artifacts = res.Artifacts
		if err != nil {
			// Driver-level failure: retryable like a test failure, but the
			// attempt never produced a verdict.
			last.status = core.TestFailed
			last.errMsg = err.Error()
		} else {
			last.status = res.Status
			last.errMsg = res.ErrorMessage
			if res.Status == core.TestFailed && attemptCtx.Err() == context.DeadlineExceeded {
				last.status = core.TestTimeout
			}
		}

		if last.status == core.TestPassed || last.status == core.TestSkipped {
			break
		}
	}
	return last
}

// record persists the outcome, feeds the history tracker, stores artifacts
// and publishes the terminal event. Persistence failures are logged, not
// fatal: partial failure is a first-class outcome and the run continues.
func (e *Engine) record(runID string, tc storage.TestCase, o outcome, summary *Summary) {
	var names []string
	for _, a := range o.artifacts {
		if err := e.store.Artifacts().WriteArtifact(runID, a.Name, bytes.NewReader(a.Content)); err != nil {
			e.logger.Error("failed to store artifact", "run", runID, "artifact", a.Name, "error", err)
			continue
		}
		names = append(names, a.Name)
	}

	res := storage.TestResult{
		Uuid:         uuid.New().String(),
		RunUuid:      runID,
		CaseUuid:     tc.Uuid,
		Status:       string(o.status),
		DurationMs:   o.duration.Milliseconds(),
		Retries:      o.retries,
		ErrorMessage: o.errMsg,
		Artifacts:    names,
	}
	if err := e.store.ResultCreate(res); err != nil {
		e.logger.Error("failed to persist result", "run", runID, "case", tc.Uuid, "error", err)
	}
	e.tracker.RecordExecution(tc.Uuid, o.duration, o.status)

	summary.TotalRetries += o.retries
	summary.TotalDuration += o.duration
	evt := core.Event{
		Timestamp: time.Now(), TestRunID: runID, TestCaseID: tc.Uuid,
		Duration: o.duration, Attempt: o.retries, Error: o.errMsg,
	}
	switch o.status {
	case core.TestPassed:
		summary.Passed++
		evt.Type = core.EventTestCompleted
	case core.TestSkipped:
		summary.Skipped++
		evt.Type = core.EventTestCompleted
	case core.TestTimeout:
		summary.TimedOut++
		evt.Type = core.EventTestTimeout
	default:
		summary.Failed++
		evt.Type = core.EventTestFailed
	}
	e.bus.Publish(evt)
}
