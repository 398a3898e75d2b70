// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package driver

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/testforge/devicelab/core"
	"github.com/testforge/devicelab/storage"
)

// Simulated is a driver for tests and local development. Every case passes
// after Latency unless a script was installed for it; scripted outcomes are
// consumed one per attempt, with the last one repeating.
type Simulated struct {
	// Latency is how long each execution takes. Zero means immediate.
	Latency time.Duration
	// FailureArtifacts makes failed attempts produce a small log artifact.
	FailureArtifacts bool

	mu      sync.Mutex
	scripts map[string][]core.TestStatus
	calls   map[string]int
}

func NewSimulated(latency time.Duration) *Simulated {
	return &Simulated{
		Latency: latency,
		scripts: make(map[string][]core.TestStatus),
		calls:   make(map[string]int),
	}
}

// Script sets the attempt-by-attempt outcomes for a case, e.g.
// [FAILED, FAILED, PASSED] makes the first two attempts fail.
func (d *Simulated) Script(testCaseID string, outcomes ...core.TestStatus) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.scripts[testCaseID] = outcomes
}

// Calls reports how many attempts have been executed for the case.
func (d *Simulated) Calls(testCaseID string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls[testCaseID]
}

func (d *Simulated) nextOutcome(testCaseID string) core.TestStatus {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := d.calls[testCaseID]
	d.calls[testCaseID] = n + 1
	script := d.scripts[testCaseID]
	if len(script) == 0 {
		return core.TestPassed
	}
	if n >= len(script) {
		n = len(script) - 1
	}
	return script[n]
}

func (d *Simulated) ExecuteTestCase(ctx context.Context, session SessionHandle, tc storage.TestCase) (Result, error) {
	start := time.Now()
	if d.Latency > 0 {
		select {
		case <-time.After(d.Latency):
		case <-ctx.Done():
			return Result{
				Status:       core.TestTimeout,
				Duration:     time.Since(start),
				ErrorMessage: ctx.Err().Error(),
			}, nil
		}
	} else if err := ctx.Err(); err != nil {
		return Result{Status: core.TestTimeout, Duration: time.Since(start), ErrorMessage: err.Error()}, nil
	}

	status := d.nextOutcome(tc.Uuid)
	res := Result{Status: status, Duration: time.Since(start)}
	if status == core.TestFailed {
		res.ErrorMessage = fmt.Sprintf("simulated failure of %s", tc.Name)
		if d.FailureArtifacts {
			res.Artifacts = []Artifact{{
				Name:    fmt.Sprintf("failure-%s.log", tc.Uuid),
				Content: []byte(res.ErrorMessage + "\n"),
			}}
		}
	}
	return res, nil
}
