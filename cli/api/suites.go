// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package api

import (
	"github.com/testforge/devicelab/storage"
)

type SuitesApi struct {
	api *Api
}

func (a *Api) Suites() SuitesApi {
	return SuitesApi{api: a}
}

func (s SuitesApi) List() ([]storage.TestSuite, error) {
	var suites []storage.TestSuite
	return suites, s.api.Get("/v1/suites", &suites)
}

// Import uploads a YAML suite definition.
func (s SuitesApi) Import(definition []byte) (*storage.TestSuite, error) {
	var suite storage.TestSuite
	if err := s.api.PostRaw("/v1/suites", "application/yaml", definition, &suite); err != nil {
		return nil, err
	}
	return &suite, nil
}

func (s SuitesApi) Cases(suiteUuid string) ([]storage.TestCase, error) {
	var cases []storage.TestCase
	return cases, s.api.Get("/v1/suites/"+suiteUuid+"/cases", &cases)
}
