// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package api

import (
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/testforge/devicelab/core"
	"github.com/testforge/devicelab/suitespec"
)

func (h *handlers) listSuites(c echo.Context) error {
	suites, err := h.core.Store.SuiteList()
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, suites)
}

// importSuite accepts a YAML suite definition as the request body, the same
// format the dlcli and the import subcommand use.
func (h *handlers) importSuite(c echo.Context) error {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, 1<<20))
	if err != nil {
		return fail(c, core.NewValidationError("unable to read request body: %v", err))
	}
	sf, err := suitespec.Parse(body)
	if err != nil {
		return fail(c, core.NewValidationError("invalid suite definition: %v", err))
	}
	suite, err := h.core.Store.SuiteImport(sf)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, suite)
}

func (h *handlers) listSuiteCases(c echo.Context) error {
	id := c.Param("uuid")
	suite, err := h.core.Store.SuiteGet(id)
	if err != nil {
		return fail(c, err)
	}
	if suite == nil {
		return fail(c, core.NewNotFoundError("suite %s not found", id))
	}
	cases, err := h.core.Store.CasesBySuite(id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, cases)
}
