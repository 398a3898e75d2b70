// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/testforge/devicelab/batch"
	"github.com/testforge/devicelab/core"
)

type planBatchesRequest struct {
	TestCaseIds   []string `json:"testCaseIds"`
	Strategy      string   `json:"strategy,omitempty"`
	TargetWorkers int      `json:"targetWorkers,omitempty"`
}

type planBatchesResponse struct {
	Strategy core.BatchStrategy `json:"strategy"`
	Batches  []core.Batch       `json:"batches"`
}

func (h *handlers) planBatches(c echo.Context) error {
	var req planBatchesRequest
	if err := c.Bind(&req); err != nil {
		return fail(c, core.NewValidationError("malformed request body: %v", err))
	}
	strategy, err := core.ParseBatchStrategy(req.Strategy)
	if err != nil {
		return fail(c, err)
	}
	batches, err := h.core.Optimizer.GetOptimalBatches(req.TestCaseIds, batch.Options{
		Strategy:      strategy,
		TargetWorkers: req.TargetWorkers,
	})
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, planBatchesResponse{Strategy: strategy, Batches: batches})
}
