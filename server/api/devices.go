// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package api

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/testforge/devicelab/core"
)

type registerDeviceRequest struct {
	Name       string `json:"name"`
	Platform   string `json:"platform"`
	OsVersion  string `json:"osVersion,omitempty"`
	IsEmulator bool   `json:"isEmulator,omitempty"`
}

func (h *handlers) registerDevice(c echo.Context) error {
	var req registerDeviceRequest
	if err := c.Bind(&req); err != nil {
		return fail(c, core.NewValidationError("malformed request body: %v", err))
	}
	if req.Name == "" || req.Platform == "" {
		return fail(c, core.NewValidationError("name and platform are required"))
	}
	device, err := h.core.Store.DeviceCreate(uuid.NewString(), req.Name, req.Platform, req.OsVersion, req.IsEmulator)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, device)
}

func (h *handlers) listDevices(c echo.Context) error {
	devices, err := h.core.Store.DeviceList()
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, devices)
}

type deviceStatusRequest struct {
	Status string `json:"status"`
}

// setDeviceStatus is the operator path for taking devices in and out of the
// pool. A device with a live session cannot be moved; terminate first.
func (h *handlers) setDeviceStatus(c echo.Context) error {
	id := c.Param("uuid")
	var req deviceStatusRequest
	if err := c.Bind(&req); err != nil {
		return fail(c, core.NewValidationError("malformed request body: %v", err))
	}
	switch core.DeviceStatus(req.Status) {
	case core.DeviceAvailable, core.DeviceOffline, core.DeviceMaintenance:
	default:
		return fail(c, core.NewValidationError("invalid device status %q", req.Status))
	}
	if s := h.core.Sessions.Get(id); s != nil {
		return fail(c, core.NewConflictError("device %s has session %s; terminate it first", id, s.SessionID))
	}
	if err := h.core.Store.DeviceSetStatus(id, req.Status); err != nil {
		return fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *handlers) listSessions(c echo.Context) error {
	return c.JSON(http.StatusOK, h.core.Sessions.List())
}
