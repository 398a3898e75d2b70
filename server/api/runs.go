// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/testforge/devicelab/core"
	"github.com/testforge/devicelab/queue"
	"github.com/testforge/devicelab/storage"
)

type createRunRequest struct {
	SuiteUuid  string       `json:"suiteUuid"`
	DeviceUuid string       `json:"deviceUuid"`
	Spec       core.RunSpec `json:"spec"`

	// Queue placement. DelayMs holds the job back; MaxAttempts and backoff
	// fall back to the queue defaults when zero.
	Priority    int    `json:"priority,omitempty"`
	DelayMs     int64  `json:"delayMs,omitempty"`
	MaxAttempts int    `json:"maxAttempts,omitempty"`
	BackoffType string `json:"backoffType,omitempty"`
	BackoffMs   int64  `json:"backoffMs,omitempty"`
	TimeoutMs   int64  `json:"timeoutMs,omitempty"`
}

type createRunResponse struct {
	Run *storage.TestRun `json:"run"`
	Job *queue.Job       `json:"job"`
}

// createRun validates the request, persists a PENDING run, and enqueues its
// execution job in one call. The job id equals the run id, so retrying the
// same create after a partial failure is a conflict, not a duplicate run.
func (h *handlers) createRun(c echo.Context) error {
	var req createRunRequest
	if err := c.Bind(&req); err != nil {
		return fail(c, core.NewValidationError("malformed request body: %v", err))
	}
	if err := req.Spec.Validate(); err != nil {
		return fail(c, err)
	}

	suite, err := h.core.Store.SuiteGet(req.SuiteUuid)
	if err != nil {
		return fail(c, err)
	}
	if suite == nil {
		return fail(c, core.NewNotFoundError("suite %s not found", req.SuiteUuid))
	}
	device, err := h.core.Store.DeviceGet(req.DeviceUuid)
	if err != nil {
		return fail(c, err)
	}
	if device == nil {
		return fail(c, core.NewNotFoundError("device %s not found", req.DeviceUuid))
	}

	metadata, err := req.Spec.Marshal()
	if err != nil {
		return fail(c, err)
	}
	run, err := h.core.Store.RunCreate(uuid.NewString(), suite.Uuid, device.Uuid, metadata)
	if err != nil {
		return fail(c, err)
	}

	var backoff queue.BackoffPolicy
	if req.BackoffType != "" {
		backoff = queue.BackoffPolicy{
			Type: req.BackoffType,
			Base: time.Duration(req.BackoffMs) * time.Millisecond,
		}
	}
	job, err := h.core.Queue.Enqueue(run.Uuid, device.Uuid, queue.EnqueueOptions{
		JobID:       run.Uuid,
		Priority:    req.Priority,
		Delay:       time.Duration(req.DelayMs) * time.Millisecond,
		MaxAttempts: req.MaxAttempts,
		Backoff:     backoff,
		Timeout:     time.Duration(req.TimeoutMs) * time.Millisecond,
	})
	if err != nil {
		return fail(c, err)
	}

	return c.JSON(http.StatusCreated, createRunResponse{Run: run, Job: job})
}

type runResponse struct {
	Run     *storage.TestRun     `json:"run"`
	Results []storage.TestResult `json:"results,omitempty"`
}

func (h *handlers) getRun(c echo.Context) error {
	run, err := h.core.Store.RunGet(c.Param("uuid"))
	if err != nil {
		return fail(c, err)
	}
	if run == nil {
		return fail(c, core.NewNotFoundError("run %s not found", c.Param("uuid")))
	}
	results, err := h.core.Store.ResultsByRun(run.Uuid)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, runResponse{Run: run, Results: results})
}

func (h *handlers) listRuns(c echo.Context) error {
	limit := 50
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return fail(c, core.NewValidationError("invalid limit %q", v))
		}
		limit = n
	}
	runs, err := h.core.Store.RunList(limit)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, runs)
}

// startRun transitions a PENDING run to RUNNING. The queue worker does this
// itself when it picks the job up; the endpoint exists for externally driven
// runs that bypass the queue.
func (h *handlers) startRun(c echo.Context) error {
	id := c.Param("uuid")
	ok, err := h.core.Store.RunStart(id)
	if err != nil {
		return fail(c, err)
	}
	if !ok {
		run, err := h.core.Store.RunGet(id)
		if err != nil {
			return fail(c, err)
		}
		if run == nil {
			return fail(c, core.NewNotFoundError("run %s not found", id))
		}
		return fail(c, core.NewConflictError("run %s is %s, not PENDING", id, run.Status))
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *handlers) cancelRun(c echo.Context) error {
	id := c.Param("uuid")
	ok, err := h.core.Store.RunCancel(id)
	if err != nil {
		return fail(c, err)
	}
	if !ok {
		run, err := h.core.Store.RunGet(id)
		if err != nil {
			return fail(c, err)
		}
		if run == nil {
			return fail(c, core.NewNotFoundError("run %s not found", id))
		}
		return fail(c, core.NewConflictError("run %s already %s", id, run.Status))
	}
	return c.NoContent(http.StatusNoContent)
}

type completeRunRequest struct {
	Status string `json:"status,omitempty"`
	Error  string `json:"error,omitempty"`
}

// completeRun closes out a run, recomputing its counters from the persisted
// results rather than trusting the caller. Timeouts count as failures. A run
// with failed cases still completes COMPLETED, same as the engine: FAILED is
// reserved for runs that could not execute, or for an explicit caller
// verdict.
func (h *handlers) completeRun(c echo.Context) error {
	id := c.Param("uuid")
	var req completeRunRequest
	if err := c.Bind(&req); err != nil {
		return fail(c, core.NewValidationError("malformed request body: %v", err))
	}

	status := core.RunStatus(req.Status)
	if req.Status == "" {
		status = core.RunCompleted
	}
	if status != core.RunCompleted && status != core.RunFailed {
		return fail(c, core.NewValidationError("completion status must be COMPLETED or FAILED, got %q", req.Status))
	}

	run, err := h.core.Store.RunGet(id)
	if err != nil {
		return fail(c, err)
	}
	if run == nil {
		return fail(c, core.NewNotFoundError("run %s not found", id))
	}

	results, err := h.core.Store.ResultsByRun(id)
	if err != nil {
		return fail(c, err)
	}
	var passed, failed, skipped int
	for _, r := range results {
		switch core.TestStatus(r.Status) {
		case core.TestPassed:
			passed++
		case core.TestSkipped:
			skipped++
		default:
			failed++
		}
	}
	ok, err := h.core.Store.RunComplete(id, string(status), passed, failed, skipped, req.Error)
	if err != nil {
		return fail(c, err)
	}
	if !ok {
		return fail(c, core.NewConflictError("run %s already %s", id, run.Status))
	}
	run, err = h.core.Store.RunGet(id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, runResponse{Run: run, Results: results})
}
