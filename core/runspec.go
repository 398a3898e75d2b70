// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package core

import (
	"encoding/json"
	"fmt"
	"time"
)

// RunSpec is the typed execution policy attached to a test run. It is
// validated once at the API boundary and carried in the run's metadata, so
// the runner never interprets loose key/value bags.
type RunSpec struct {
	Isolation    IsolationStrategy `json:"isolationStrategy,omitempty"`
	MaxRetries   int               `json:"maxRetries,omitempty"`
	RetryDelayMs int64             `json:"retryDelayMs,omitempty"`
	RetryBackoff bool              `json:"retryBackoff,omitempty"`
	TimeoutMs    int64             `json:"timeoutMs,omitempty"`
	Tags         []string          `json:"tags,omitempty"`
}

func (s RunSpec) RetryDelay() time.Duration {
	return time.Duration(s.RetryDelayMs) * time.Millisecond
}

func (s RunSpec) Timeout() time.Duration {
	return time.Duration(s.TimeoutMs) * time.Millisecond
}

// Validate normalizes the run spec, filling the default isolation strategy.
func (s *RunSpec) Validate() error {
	isolation, err := ParseIsolationStrategy(string(s.Isolation))
	if err != nil {
		return err
	}
	s.Isolation = isolation
	if s.MaxRetries < 0 {
		return NewValidationError("maxRetries cannot be negative")
	}
	if s.RetryDelayMs < 0 || s.TimeoutMs < 0 {
		return NewValidationError("delays cannot be negative")
	}
	return nil
}

func (s RunSpec) Marshal() (string, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("unable to marshal run spec: %w", err)
	}
	return string(data), nil
}

// ParseRunSpec reads a spec back out of run metadata. Empty metadata means
// all defaults.
func ParseRunSpec(metadata string) (RunSpec, error) {
	var s RunSpec
	if metadata == "" {
		s.Isolation = SessionReuse
		return s, nil
	}
	if err := json.Unmarshal([]byte(metadata), &s); err != nil {
		return s, NewValidationError("malformed run metadata: %v", err)
	}
	if err := s.Validate(); err != nil {
		return s, err
	}
	return s, nil
}
