// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/testforge/devicelab/core"
)

type flakyTest struct {
	TestCaseId string `json:"testCaseId"`
	Samples    int    `json:"samples"`
}

func (h *handlers) flakyTests(c echo.Context) error {
	ids := h.core.Tracker.FlakyTests()
	out := make([]flakyTest, 0, len(ids))
	for _, id := range ids {
		out = append(out, flakyTest{TestCaseId: id, Samples: h.core.Tracker.SampleCount(id)})
	}
	return c.JSON(http.StatusOK, out)
}

func (h *handlers) historyStats(c echo.Context) error {
	return c.JSON(http.StatusOK, h.core.Tracker.Statistics())
}

type optimizationRequest struct {
	FlakinessThreshold *float64 `json:"flakinessThreshold,omitempty"`
	DefaultDurationMs  *int64   `json:"defaultDurationMs,omitempty"`
}

type optimizationResponse struct {
	FlakinessThreshold float64 `json:"flakinessThreshold,omitempty"`
	DefaultDurationMs  int64   `json:"defaultDurationMs"`
}

// updateOptimization retunes the optimizer at runtime. Changing the
// flakiness threshold reclassifies every tracked case immediately.
func (h *handlers) updateOptimization(c echo.Context) error {
	var req optimizationRequest
	if err := c.Bind(&req); err != nil {
		return fail(c, core.NewValidationError("malformed request body: %v", err))
	}
	if req.FlakinessThreshold != nil {
		t := *req.FlakinessThreshold
		if t < 0 || t > 1 {
			return fail(c, core.NewValidationError("flakinessThreshold must be within [0, 1], got %v", t))
		}
		h.core.Tracker.SetFlakinessThreshold(t)
	}
	if req.DefaultDurationMs != nil {
		d := *req.DefaultDurationMs
		if d <= 0 {
			return fail(c, core.NewValidationError("defaultDurationMs must be positive, got %d", d))
		}
		h.core.Optimizer.SetDefaultDuration(time.Duration(d) * time.Millisecond)
	}
	resp := optimizationResponse{
		DefaultDurationMs: h.core.Optimizer.DefaultDuration().Milliseconds(),
	}
	if req.FlakinessThreshold != nil {
		resp.FlakinessThreshold = *req.FlakinessThreshold
	}
	return c.JSON(http.StatusOK, resp)
}
