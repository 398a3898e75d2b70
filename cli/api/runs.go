// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package api

import (
	"fmt"

	"github.com/testforge/devicelab/core"
	"github.com/testforge/devicelab/storage"
)

type RunsApi struct {
	api *Api
}

func (a *Api) Runs() RunsApi {
	return RunsApi{api: a}
}

type CreateRunRequest struct {
	SuiteUuid  string       `json:"suiteUuid"`
	DeviceUuid string       `json:"deviceUuid"`
	Spec       core.RunSpec `json:"spec"`
	Priority   int          `json:"priority,omitempty"`
	DelayMs    int64        `json:"delayMs,omitempty"`
}

type CreateRunResponse struct {
	Run *storage.TestRun `json:"run"`
}

type RunDetail struct {
	Run     *storage.TestRun     `json:"run"`
	Results []storage.TestResult `json:"results,omitempty"`
}

func (r RunsApi) Create(req CreateRunRequest) (*storage.TestRun, error) {
	var resp CreateRunResponse
	if err := r.api.Post("/v1/runs", req, &resp); err != nil {
		return nil, err
	}
	return resp.Run, nil
}

func (r RunsApi) Get(uuid string) (*RunDetail, error) {
	var detail RunDetail
	return &detail, r.api.Get("/v1/runs/"+uuid, &detail)
}

func (r RunsApi) List(limit int) ([]storage.TestRun, error) {
	var runs []storage.TestRun
	return runs, r.api.Get(fmt.Sprintf("/v1/runs?limit=%d", limit), &runs)
}

func (r RunsApi) Cancel(uuid string) error {
	return r.api.Post("/v1/runs/"+uuid+"/cancel", nil, nil)
}
