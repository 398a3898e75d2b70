// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package api

import (
	"github.com/testforge/devicelab/queue"
)

type QueueApi struct {
	api *Api
}

func (a *Api) Queue() QueueApi {
	return QueueApi{api: a}
}

func (q QueueApi) Stats() (queue.Stats, error) {
	var stats queue.Stats
	return stats, q.api.Get("/v1/queue/stats", &stats)
}

func (q QueueApi) Pause() error {
	return q.api.Post("/v1/queue/pause", nil, nil)
}

func (q QueueApi) Resume() error {
	return q.api.Post("/v1/queue/resume", nil, nil)
}

type CleanRequest struct {
	GraceMs int64  `json:"graceMs"`
	Limit   int    `json:"limit,omitempty"`
	Type    string `json:"type,omitempty"`
}

func (q QueueApi) Clean(req CleanRequest) (int, error) {
	var resp struct {
		Removed int `json:"removed"`
	}
	if err := q.api.Post("/v1/queue/clean", req, &resp); err != nil {
		return 0, err
	}
	return resp.Removed, nil
}
