// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package api

import (
	"github.com/testforge/devicelab/core"
	"github.com/testforge/devicelab/history"
)

type HistoryApi struct {
	api *Api
}

func (a *Api) History() HistoryApi {
	return HistoryApi{api: a}
}

type FlakyTest struct {
	TestCaseId string `json:"testCaseId"`
	Samples    int    `json:"samples"`
}

func (h HistoryApi) Flaky() ([]FlakyTest, error) {
	var flaky []FlakyTest
	return flaky, h.api.Get("/v1/tests/flaky", &flaky)
}

func (h HistoryApi) Stats() (history.Statistics, error) {
	var stats history.Statistics
	return stats, h.api.Get("/v1/history/stats", &stats)
}

type PlanBatchesRequest struct {
	TestCaseIds   []string `json:"testCaseIds"`
	Strategy      string   `json:"strategy,omitempty"`
	TargetWorkers int      `json:"targetWorkers,omitempty"`
}

type PlanBatchesResponse struct {
	Strategy core.BatchStrategy `json:"strategy"`
	Batches  []core.Batch       `json:"batches"`
}

func (h HistoryApi) PlanBatches(req PlanBatchesRequest) (*PlanBatchesResponse, error) {
	var resp PlanBatchesResponse
	if err := h.api.Post("/v1/batches", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
