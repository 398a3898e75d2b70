// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

// Package api exposes the orchestration core over REST. Handlers translate
// requests into core operations and map taxonomy error codes onto HTTP
// statuses; internal error details never reach clients.
package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/testforge/devicelab/batch"
	"github.com/testforge/devicelab/context"
	"github.com/testforge/devicelab/core"
	"github.com/testforge/devicelab/history"
	"github.com/testforge/devicelab/queue"
	"github.com/testforge/devicelab/sessions"
	"github.com/testforge/devicelab/storage"
)

// Core bundles the components the API fronts.
type Core struct {
	Store     *storage.Storage
	Queue     *queue.Queue
	Sessions  *sessions.Manager
	Tracker   *history.Tracker
	Optimizer *batch.Optimizer
}

type handlers struct {
	core Core
}

func RegisterHandlers(e *echo.Echo, core Core) {
	h := handlers{core: core}

	e.POST("/v1/runs", h.createRun)
	e.GET("/v1/runs", h.listRuns)
	e.GET("/v1/runs/:uuid", h.getRun)
	e.POST("/v1/runs/:uuid/start", h.startRun)
	e.POST("/v1/runs/:uuid/cancel", h.cancelRun)
	e.POST("/v1/runs/:uuid/complete", h.completeRun)

	e.POST("/v1/batches", h.planBatches)

	e.GET("/v1/queue/stats", h.queueStats)
	e.POST("/v1/queue/pause", h.pauseQueue)
	e.POST("/v1/queue/resume", h.resumeQueue)
	e.POST("/v1/queue/clean", h.cleanQueue)

	e.GET("/v1/tests/flaky", h.flakyTests)
	e.GET("/v1/history/stats", h.historyStats)
	e.PUT("/v1/config/optimization", h.updateOptimization)

	e.GET("/v1/devices", h.listDevices)
	e.POST("/v1/devices", h.registerDevice)
	e.PUT("/v1/devices/:uuid/status", h.setDeviceStatus)
	e.GET("/v1/sessions", h.listSessions)

	e.GET("/v1/suites", h.listSuites)
	e.POST("/v1/suites", h.importSuite)
	e.GET("/v1/suites/:uuid/cases", h.listSuiteCases)
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// fail maps a taxonomy error onto an HTTP response. Unclassified errors
// become opaque 500s; the cause goes to the log, not the client.
func fail(c echo.Context, err error) error {
	code := core.CodeOf(err)
	status := http.StatusInternalServerError
	switch code {
	case core.CodeValidation:
		status = http.StatusBadRequest
	case core.CodeNotFound:
		status = http.StatusNotFound
	case core.CodeConflict:
		status = http.StatusConflict
	case core.CodeCapacity:
		status = http.StatusTooManyRequests
	case core.CodeDeviceUnavailable:
		status = http.StatusConflict
	case core.CodeTimeout:
		status = http.StatusGatewayTimeout
	}

	msg := "internal error"
	var coreErr *core.Error
	if errors.As(err, &coreErr) {
		msg = coreErr.Msg
	} else {
		context.CtxGetLog(c.Request().Context()).Error("request failed", "error", err)
	}
	return c.JSON(status, errorResponse{Code: string(code), Message: msg})
}
