// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	path := filepath.Join(t.TempDir(), "devicelab.toml")
	require.Nil(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadMissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.toml"))
	require.Nil(t, err)
	require.Equal(t, Default(), cfg)
	require.Equal(t, uint16(8080), cfg.Server.ApiPort)
	require.Equal(t, 4, cfg.Queue.Concurrency)
	require.Equal(t, "exponential", cfg.Queue.BackoffType)
	require.Equal(t, 30*time.Second, cfg.Optimizer.DefaultDuration.Std())
}

func TestLoadOverrides(t *testing.T) {
	path := writeConfig(t, `
[server]
api_port = 9999
log_level = "debug"
log_format = "text"

[queue]
concurrency = 8
backoff_type = "fixed"
backoff_base = "250ms"
stall_interval = "10s"

[sessions]
idle_timeout = "2m"

[history]
flakiness_threshold = 0.5

[driver]
latency = "100ms"
`)
	cfg, err := Load(path)
	require.Nil(t, err)
	require.Equal(t, uint16(9999), cfg.Server.ApiPort)
	require.Equal(t, "debug", cfg.Server.LogLevel)
	require.Equal(t, "text", cfg.Server.LogFormat)
	require.Equal(t, 8, cfg.Queue.Concurrency)
	require.Equal(t, "fixed", cfg.Queue.BackoffType)
	require.Equal(t, 250*time.Millisecond, cfg.Queue.BackoffBase.Std())
	require.Equal(t, 10*time.Second, cfg.Queue.StallInterval.Std())
	require.Equal(t, 2*time.Minute, cfg.Sessions.IdleTimeout.Std())
	require.Equal(t, 0.5, cfg.History.FlakinessThreshold)
	require.Equal(t, 100*time.Millisecond, cfg.Driver.Latency.Std())

	// Sections absent from the file keep their defaults.
	require.Equal(t, 3, cfg.Queue.MaxAttempts)
	require.Equal(t, 16, cfg.Sessions.MaxSessions)
	require.Equal(t, 50, cfg.History.MaxSamples)
}

func TestLoadBadDuration(t *testing.T) {
	path := writeConfig(t, `
[queue]
backoff_base = "not a duration"
`)
	_, err := Load(path)
	require.NotNil(t, err)
}

func TestLoadMalformedToml(t *testing.T) {
	path := writeConfig(t, `[server`)
	_, err := Load(path)
	require.NotNil(t, err)
	require.Contains(t, err.Error(), "failed to parse config file")
}

func TestValidate(t *testing.T) {
	for name, content := range map[string]string{
		"zero concurrency": `
[queue]
concurrency = 0
`,
		"bad backoff": `
[queue]
backoff_type = "cubic"
`,
		"zero sessions": `
[sessions]
max_sessions = 0
`,
		"threshold too high": `
[history]
flakiness_threshold = 1.5
`,
		"unknown driver": `
[driver]
mode = "appium"
`,
	} {
		_, err := Load(writeConfig(t, content))
		require.NotNil(t, err, name)
		require.Contains(t, err.Error(), "invalid config", name)
	}
}
