// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

// Package runner executes all test cases of one test run against one
// device. Per-case failures are retried and recorded without aborting the
// run; only session-level failures abort.
package runner

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	cache "github.com/go-pkgz/expirable-cache/v3"

	"github.com/testforge/devicelab/core"
	"github.com/testforge/devicelab/driver"
	"github.com/testforge/devicelab/events"
	"github.com/testforge/devicelab/history"
	"github.com/testforge/devicelab/sessions"
	"github.com/testforge/devicelab/storage"
)

// Options controls one suite execution.
type Options struct {
	Isolation core.IsolationStrategy
	// MaxRetries is how many extra attempts a failing case gets.
	MaxRetries int
	// RetryDelay is the pause before a retry; with RetryBackoff it grows
	// linearly with the attempt number.
	RetryDelay   time.Duration
	RetryBackoff bool
	// Timeout overrides the per-case timeout for the whole run when > 0.
	Timeout time.Duration
	// Tags filters the suite down to cases carrying at least one of them.
	Tags []string
}

// Summary aggregates one finished run.
type Summary struct {
	RunID         string
	Status        core.RunStatus
	Passed        int
	Failed        int
	Skipped       int
	TimedOut      int
	TotalRetries  int
	TotalDuration time.Duration
	AvgDuration   time.Duration
}

type Engine struct {
	store    *storage.Storage
	sessions *sessions.Manager
	tracker  *history.Tracker
	drv      driver.Driver
	bus      *events.Bus
	logger   *slog.Logger

	// Suite contents are immutable reference data; cache them briefly so
	// repeated runs of the same suite skip the query.
	suiteCases cache.Cache[string, []storage.TestCase]
}

func NewEngine(store *storage.Storage, mgr *sessions.Manager, tracker *history.Tracker,
	drv driver.Driver, bus *events.Bus, logger *slog.Logger) *Engine {
	return &Engine{
		store:      store,
		sessions:   mgr,
		tracker:    tracker,
		drv:        drv,
		bus:        bus,
		logger:     logger,
		suiteCases: cache.NewCache[string, []storage.TestCase]().WithTTL(time.Minute).WithMaxKeys(256),
	}
}

// ExecuteTestSuite runs every test case of the run's suite on its device,
// in declaration order. It returns an error only for unrecoverable
// conditions (run/suite not found, session acquisition failure); ordinary
// per-case failures are recorded in the summary.
func (e *Engine) ExecuteTestSuite(ctx context.Context, runID string, opts Options) (*Summary, error) {
	log := e.logger.With("run", runID)

	run, err := e.store.RunGet(runID)
	if err != nil {
		return nil, fmt.Errorf("unable to load run %s: %w", runID, err)
	}
	if run == nil {
		return nil, core.NewNotFoundError("run %s not found", runID)
	}

	started, err := e.store.RunStart(runID)
	if err != nil {
		return nil, fmt.Errorf("unable to start run %s: %w", runID, err)
	}
	if !started {
		// Cancelled before dispatch, or a duplicate dispatch. Either way
		// there is nothing to execute.
		current, err := e.store.RunGet(runID)
		if err != nil {
			return nil, err
		}
		if core.RunStatus(current.Status) == core.RunCancelled {
			log.Info("run cancelled before dispatch")
			return &Summary{RunID: runID, Status: core.RunCancelled}, nil
		}
		return nil, core.NewConflictError("run %s is %s, not PENDING", runID, current.Status)
	}

	cases, err := e.casesFor(run.SuiteUuid)
	if err != nil {
		return nil, e.failRun(runID, err)
	}
	cases = filterByTags(cases, opts.Tags)
	if len(cases) == 0 {
		return nil, e.failRun(runID, core.NewValidationError("suite %s has no matching test cases", run.SuiteUuid))
	}

	isolation := opts.Isolation
	if isolation == "" {
		isolation = core.SessionReuse
	}

	var session *sessions.Session
	if isolation != core.FullIsolation {
		if session, err = e.sessions.Acquire(run.DeviceUuid, runID); err != nil {
			return nil, e.failRun(runID, err)
		}
	}

	e.bus.Publish(core.Event{
		Type: core.EventBatchStarted, Timestamp: time.Now(),
		TestRunID: runID, DeviceID: run.DeviceUuid,
	})

	summary := Summary{RunID: runID, Status: core.RunCompleted}
	cancelled := false

	for _, tc := range cases {
		if e.runCancelled(ctx, runID) {
			cancelled = true
			break
		}

		if isolation == core.FullIsolation {
			if session, err = e.sessions.Acquire(run.DeviceUuid, runID); err != nil {
				// Cannot continue without a session: the one case where a
				// single failure aborts the whole run.
				return nil, e.failRun(runID, err)
			}
		}

		outcome := e.executeCase(ctx, session, tc, opts)
		e.record(runID, tc, outcome, &summary)

		if isolation == core.FullIsolation {
			if err := e.sessions.Terminate(session.SessionID); err != nil {
				log.Error("failed to terminate per-case session", "session", session.SessionID, "error", err)
			}
			session = nil
		}
	}

	if session != nil {
		if err := e.sessions.Release(session.SessionID, nil); err != nil {
			log.Error("failed to release session", "session", session.SessionID, "error", err)
		}
	}

	e.bus.Publish(core.Event{
		Type: core.EventBatchCompleted, Timestamp: time.Now(),
		TestRunID: runID, DeviceID: run.DeviceUuid,
	})

	if cancelled {
		summary.Status = core.RunCancelled
		log.Info("run halted by cancellation",
			"passed", summary.Passed, "failed", summary.Failed)
		return &summary, nil
	}

	if _, err := e.store.RunComplete(runID, string(core.RunCompleted),
		summary.Passed, summary.Failed+summary.TimedOut, summary.Skipped, ""); err != nil {
		return nil, fmt.Errorf("unable to complete run %s: %w", runID, err)
	}
	if n := summary.Passed + summary.Failed + summary.Skipped + summary.TimedOut; n > 0 {
		summary.AvgDuration = summary.TotalDuration / time.Duration(n)
	}
	log.Info("run completed", "passed", summary.Passed, "failed", summary.Failed,
		"skipped", summary.Skipped, "timedOut", summary.TimedOut, "retries", summary.TotalRetries)
	return &summary, nil
}

// failRun marks the run FAILED with the error preserved, releasing nothing:
// callers release/terminate any session they still hold. The original error
// is returned so the queue can apply its own retry policy; a requeued job
// reopens the run to PENDING before the next attempt.
func (e *Engine) failRun(runID string, cause error) error {
	if _, err := e.store.RunComplete(runID, string(core.RunFailed), 0, 0, 0, cause.Error()); err != nil {
		e.logger.Error("unable to mark run failed", "run", runID, "error", err)
	}
	return cause
}

func (e *Engine) casesFor(suiteUuid string) ([]storage.TestCase, error) {
	if cached, ok := e.suiteCases.Get(suiteUuid); ok {
		return cached, nil
	}
	suite, err := e.store.SuiteGet(suiteUuid)
	if err != nil {
		return nil, err
	}
	if suite == nil {
		return nil, core.NewNotFoundError("suite %s not found", suiteUuid)
	}
	cases, err := e.store.CasesBySuite(suiteUuid)
	if err != nil {
		return nil, err
	}
	e.suiteCases.Set(suiteUuid, cases, 0)
	return cases, nil
}

func filterByTags(cases []storage.TestCase, tags []string) []storage.TestCase {
	if len(tags) == 0 {
		return cases
	}
	want := make(map[string]bool, len(tags))
	for _, t := range tags {
		want[t] = true
	}
	var out []storage.TestCase
	for _, c := range cases {
		for _, t := range c.Tags {
			if want[t] {
				out = append(out, c)
				break
			}
		}
	}
	return out
}

// runCancelled observes cooperative cancellation: either the caller's
// context or a CANCELLED status set by the API.
func (e *Engine) runCancelled(ctx context.Context, runID string) bool {
	if ctx.Err() != nil {
		return true
	}
	run, err := e.store.RunGet(runID)
	if err != nil {
		e.logger.Error("unable to check run status", "run", runID, "error", err)
		return false
	}
	return run != nil && core.RunStatus(run.Status) == core.RunCancelled
}
