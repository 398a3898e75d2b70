// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package storage

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/testforge/devicelab/core"
	"github.com/testforge/devicelab/suitespec"
)

// SuiteImport persists a parsed suite definition, assigning uuids to the
// suite and its cases. Importing a name that already exists is an error;
// suites are immutable once created.
func (s *Storage) SuiteImport(sf *suitespec.Suite) (*TestSuite, error) {
	if existing, err := s.SuiteGetByName(sf.Name); err != nil {
		return nil, err
	} else if existing != nil {
		return nil, core.NewConflictError("suite %s already exists", sf.Name)
	}

	suite, err := s.SuiteCreate(uuid.New().String(), sf.Name, sf.Platform)
	if err != nil {
		return nil, err
	}
	for i, c := range sf.Cases {
		tc := TestCase{
			Uuid:      uuid.New().String(),
			SuiteUuid: suite.Uuid,
			Name:      c.Name,
			TimeoutMs: time.Duration(c.Timeout).Milliseconds(),
			Tags:      c.Tags,
			Position:  i,
		}
		if err := s.CaseCreate(tc); err != nil {
			return nil, fmt.Errorf("failed to import case %q: %w", c.Name, err)
		}
	}
	return suite, nil
}
