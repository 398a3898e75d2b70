// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

// Package api is the dlcli client for the devicelab REST API.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/testforge/devicelab/cli/config"
)

type ctxKey int

// ContextKey stows the client in the cobra command context.
const ContextKey ctxKey = 0

type Api struct {
	baseUrl string
	token   string
	client  *http.Client
}

func NewClient(ctx config.Context) *Api {
	return &Api{
		baseUrl: strings.TrimRight(ctx.URL, "/"),
		token:   ctx.Token,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

func CtxGetApi(ctx context.Context) *Api {
	return ctx.Value(ContextKey).(*Api)
}

// apiError mirrors the server's error body.
type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (a *Api) do(method, path, contentType string, body io.Reader, out any) error {
	req, err := http.NewRequest(method, a.baseUrl+path, body)
	if err != nil {
		return err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if a.token != "" {
		req.Header.Set("Authorization", "Bearer "+a.token)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode >= 400 {
		var apiErr apiError
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Message != "" {
			return fmt.Errorf("%s: %s", apiErr.Code, apiErr.Message)
		}
		return fmt.Errorf("unexpected status %s from %s %s", resp.Status, method, path)
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse response from %s: %w", path, err)
	}
	return nil
}

func (a *Api) Get(path string, out any) error {
	return a.do(http.MethodGet, path, "", nil, out)
}

func (a *Api) Post(path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}
	return a.do(http.MethodPost, path, "application/json", body, out)
}

func (a *Api) PostRaw(path, contentType string, data []byte, out any) error {
	return a.do(http.MethodPost, path, contentType, bytes.NewReader(data), out)
}

func (a *Api) Put(path string, in, out any) error {
	data, err := json.Marshal(in)
	if err != nil {
		return err
	}
	return a.do(http.MethodPut, path, "application/json", bytes.NewReader(data), out)
}
