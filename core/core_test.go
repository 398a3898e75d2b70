// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package core

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRunStatusTransitions(t *testing.T) {
	require.True(t, RunPending.CanTransitionTo(RunRunning))
	require.True(t, RunPending.CanTransitionTo(RunCancelled))
	require.True(t, RunPending.CanTransitionTo(RunFailed))
	require.False(t, RunPending.CanTransitionTo(RunCompleted))

	require.True(t, RunRunning.CanTransitionTo(RunCompleted))
	require.True(t, RunRunning.CanTransitionTo(RunFailed))
	require.True(t, RunRunning.CanTransitionTo(RunCancelled))
	require.False(t, RunRunning.CanTransitionTo(RunPending))

	for _, terminal := range []RunStatus{RunCompleted, RunFailed, RunCancelled} {
		require.True(t, terminal.IsTerminal())
		require.False(t, terminal.CanTransitionTo(RunRunning))
	}
	require.False(t, RunPending.IsTerminal())
	require.False(t, RunRunning.IsTerminal())
}

func TestParseIsolationStrategy(t *testing.T) {
	s, err := ParseIsolationStrategy("")
	require.Nil(t, err)
	require.Equal(t, SessionReuse, s)

	s, err = ParseIsolationStrategy("FULL_ISOLATION")
	require.Nil(t, err)
	require.Equal(t, FullIsolation, s)

	_, err = ParseIsolationStrategy("none")
	require.True(t, IsCode(err, CodeValidation))
}

func TestParseBatchStrategy(t *testing.T) {
	s, err := ParseBatchStrategy("")
	require.Nil(t, err)
	require.Equal(t, DurationBalanced, s)

	for _, name := range []string{"DURATION_BALANCED", "DURATION_CLUSTERED", "TAG_BASED", "FLAKY_ISOLATED", "HYBRID"} {
		s, err = ParseBatchStrategy(name)
		require.Nil(t, err)
		require.Equal(t, BatchStrategy(name), s)
	}

	_, err = ParseBatchStrategy("RANDOM")
	require.True(t, IsCode(err, CodeValidation))
}

func TestRunSpecRoundTrip(t *testing.T) {
	spec := RunSpec{
		Isolation:    FullIsolation,
		MaxRetries:   2,
		RetryDelayMs: 1500,
		RetryBackoff: true,
		TimeoutMs:    60000,
		Tags:         []string{"smoke"},
	}
	require.Nil(t, spec.Validate())

	metadata, err := spec.Marshal()
	require.Nil(t, err)

	parsed, err := ParseRunSpec(metadata)
	require.Nil(t, err)
	require.Equal(t, spec, parsed)
	require.Equal(t, 1500*time.Millisecond, parsed.RetryDelay())
	require.Equal(t, time.Minute, parsed.Timeout())
}

func TestParseRunSpecDefaults(t *testing.T) {
	spec, err := ParseRunSpec("")
	require.Nil(t, err)
	require.Equal(t, SessionReuse, spec.Isolation)
	require.Zero(t, spec.MaxRetries)

	// Validation fills the default isolation on an empty JSON object too.
	spec, err = ParseRunSpec("{}")
	require.Nil(t, err)
	require.Equal(t, SessionReuse, spec.Isolation)
}

func TestParseRunSpecErrors(t *testing.T) {
	_, err := ParseRunSpec("not json")
	require.True(t, IsCode(err, CodeValidation))

	_, err = ParseRunSpec(`{"isolationStrategy":"bogus"}`)
	require.True(t, IsCode(err, CodeValidation))

	_, err = ParseRunSpec(`{"maxRetries":-1}`)
	require.True(t, IsCode(err, CodeValidation))

	_, err = ParseRunSpec(`{"timeoutMs":-5}`)
	require.True(t, IsCode(err, CodeValidation))
}

func TestErrorTaxonomy(t *testing.T) {
	err := NewNotFoundError("run %s not found", "r1")
	require.Equal(t, CodeNotFound, CodeOf(err))
	require.True(t, IsCode(err, CodeNotFound))
	require.False(t, IsCode(err, CodeValidation))
	require.Equal(t, "NOT_FOUND: run r1 not found", err.Error())

	// Codes survive wrapping.
	wrapped := fmt.Errorf("enqueue: %w", NewCapacityError("full"))
	require.Equal(t, CodeCapacity, CodeOf(wrapped))
	require.True(t, IsCode(wrapped, CodeCapacity))

	// Errors outside the taxonomy classify as the generic internal code.
	require.Equal(t, CodeSession, CodeOf(fmt.Errorf("disk on fire")))
	require.False(t, IsCode(fmt.Errorf("disk on fire"), CodeSession))

	cause := fmt.Errorf("driver crashed")
	serr := NewSessionError(cause, "device %s lost", "d1")
	require.Equal(t, "SESSION: device d1 lost: driver crashed", serr.Error())
	require.Equal(t, cause, serr.Unwrap())
}
