// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/testforge/devicelab/core"
)

func (h *handlers) queueStats(c echo.Context) error {
	stats, err := h.core.Queue.GetStats()
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, stats)
}

func (h *handlers) pauseQueue(c echo.Context) error {
	h.core.Queue.Pause()
	return c.NoContent(http.StatusNoContent)
}

func (h *handlers) resumeQueue(c echo.Context) error {
	h.core.Queue.Resume()
	return c.NoContent(http.StatusNoContent)
}

type cleanQueueRequest struct {
	GraceMs int64  `json:"graceMs"`
	Limit   int    `json:"limit,omitempty"`
	Type    string `json:"type,omitempty"`
}

type cleanQueueResponse struct {
	Removed int `json:"removed"`
}

func (h *handlers) cleanQueue(c echo.Context) error {
	var req cleanQueueRequest
	if err := c.Bind(&req); err != nil {
		return fail(c, core.NewValidationError("malformed request body: %v", err))
	}
	if req.GraceMs < 0 {
		return fail(c, core.NewValidationError("grace cannot be negative"))
	}
	if req.Limit <= 0 {
		req.Limit = 1000
	}
	removed, err := h.core.Queue.CleanOldJobs(time.Duration(req.GraceMs)*time.Millisecond, req.Limit, req.Type)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, cleanQueueResponse{Removed: removed})
}
