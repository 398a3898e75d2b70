// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package api

import (
	"github.com/testforge/devicelab/sessions"
	"github.com/testforge/devicelab/storage"
)

type DeviceApi struct {
	api *Api
}

func (a *Api) Devices() DeviceApi {
	return DeviceApi{api: a}
}

func (d DeviceApi) List() ([]storage.Device, error) {
	var devices []storage.Device
	return devices, d.api.Get("/v1/devices", &devices)
}

type RegisterDeviceRequest struct {
	Name       string `json:"name"`
	Platform   string `json:"platform"`
	OsVersion  string `json:"osVersion,omitempty"`
	IsEmulator bool   `json:"isEmulator,omitempty"`
}

func (d DeviceApi) Register(req RegisterDeviceRequest) (*storage.Device, error) {
	var device storage.Device
	if err := d.api.Post("/v1/devices", req, &device); err != nil {
		return nil, err
	}
	return &device, nil
}

func (d DeviceApi) SetStatus(uuid, status string) error {
	return d.api.Put("/v1/devices/"+uuid+"/status", map[string]string{"status": status}, nil)
}

func (d DeviceApi) Sessions() ([]sessions.Session, error) {
	var list []sessions.Session
	return list, d.api.Get("/v1/sessions", &list)
}
