// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package storage

import (
	"bytes"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/testforge/devicelab/core"
	"github.com/testforge/devicelab/suitespec"
)

func newTestStorage(t *testing.T) *Storage {
	tmpdir := t.TempDir()
	db, err := NewDb(filepath.Join(tmpdir, "sql.db"))
	require.Nil(t, err)
	t.Cleanup(func() {
		require.Nil(t, db.Close())
	})
	fs, err := NewFs(tmpdir)
	require.Nil(t, err)

	s, err := NewStorage(db, fs)
	require.Nil(t, err)
	return s
}

func TestDevices(t *testing.T) {
	s := newTestStorage(t)

	d, err := s.DeviceGet("does not exist")
	require.Nil(t, err)
	require.Nil(t, d)

	d, err = s.DeviceCreate("dev-1", "pixel-7", "android", "14", false)
	require.Nil(t, err)
	require.Equal(t, string(core.DeviceAvailable), d.Status)

	d2, err := s.DeviceGet("dev-1")
	require.Nil(t, err)
	require.Equal(t, d.Name, d2.Name)
	require.Equal(t, d.Platform, d2.Platform)
	require.False(t, d2.IsEmulator)

	require.Nil(t, s.DeviceSetStatus("dev-1", string(core.DeviceMaintenance)))
	d2, err = s.DeviceGet("dev-1")
	require.Nil(t, err)
	require.Equal(t, string(core.DeviceMaintenance), d2.Status)

	require.NotNil(t, s.DeviceSetStatus("no-such-device", string(core.DeviceBusy)))

	_, err = s.DeviceCreate("dev-2", "iphone-15", "ios", "17", true)
	require.Nil(t, err)
	devices, err := s.DeviceList()
	require.Nil(t, err)
	require.Len(t, devices, 2)
}

func TestSuiteImport(t *testing.T) {
	s := newTestStorage(t)

	sf, err := suitespec.Parse([]byte(`
name: checkout
platform: android
cases:
  - name: login
    timeout: 45s
    tags: [auth, smoke]
  - name: add-to-cart
  - name: pay
    timeout: 2m
`))
	require.Nil(t, err)

	suite, err := s.SuiteImport(sf)
	require.Nil(t, err)
	require.Equal(t, "checkout", suite.Name)

	cases, err := s.CasesBySuite(suite.Uuid)
	require.Nil(t, err)
	require.Len(t, cases, 3)
	// Declaration order survives the round trip.
	require.Equal(t, "login", cases[0].Name)
	require.Equal(t, "add-to-cart", cases[1].Name)
	require.Equal(t, "pay", cases[2].Name)
	require.Equal(t, 45*time.Second, cases[0].Timeout())
	require.Equal(t, 30*time.Second, cases[1].Timeout())
	require.Equal(t, []string{"auth", "smoke"}, cases[0].Tags)
	require.Empty(t, cases[1].Tags)

	_, err = s.SuiteImport(sf)
	require.True(t, core.IsCode(err, core.CodeConflict))

	byName, err := s.SuiteGetByName("checkout")
	require.Nil(t, err)
	require.Equal(t, suite.Uuid, byName.Uuid)

	tc, err := s.CaseGet(cases[2].Uuid)
	require.Nil(t, err)
	require.Equal(t, 2*time.Minute, tc.Timeout())
}

func TestRunLifecycle(t *testing.T) {
	s := newTestStorage(t)

	run, err := s.RunCreate("run-1", "suite-1", "dev-1", `{"maxRetries":1}`)
	require.Nil(t, err)
	require.Equal(t, string(core.RunPending), run.Status)
	require.Nil(t, run.StartedAt)

	started, err := s.RunStart("run-1")
	require.Nil(t, err)
	require.True(t, started)

	// A second start loses the race.
	started, err = s.RunStart("run-1")
	require.Nil(t, err)
	require.False(t, started)

	run, err = s.RunGet("run-1")
	require.Nil(t, err)
	require.Equal(t, string(core.RunRunning), run.Status)
	require.NotNil(t, run.StartedAt)

	done, err := s.RunComplete("run-1", string(core.RunCompleted), 3, 1, 0, "")
	require.Nil(t, err)
	require.True(t, done)

	// Terminal runs cannot be completed or cancelled again.
	done, err = s.RunComplete("run-1", string(core.RunFailed), 0, 0, 0, "late failure")
	require.Nil(t, err)
	require.False(t, done)
	cancelled, err := s.RunCancel("run-1")
	require.Nil(t, err)
	require.False(t, cancelled)

	run, err = s.RunGet("run-1")
	require.Nil(t, err)
	require.Equal(t, string(core.RunCompleted), run.Status)
	require.Equal(t, 3, run.Passed)
	require.Equal(t, 1, run.Failed)
	require.NotNil(t, run.CompletedAt)

	_, err = s.RunCreate("run-2", "suite-1", "dev-1", "")
	require.Nil(t, err)
	cancelled, err = s.RunCancel("run-2")
	require.Nil(t, err)
	require.True(t, cancelled)

	runs, err := s.RunList(10)
	require.Nil(t, err)
	require.Len(t, runs, 2)
}

func TestRunReopen(t *testing.T) {
	s := newTestStorage(t)

	_, err := s.RunCreate("run-1", "suite-1", "dev-1", "")
	require.Nil(t, err)

	// PENDING needs no reopening.
	reopened, err := s.RunReopen("run-1")
	require.Nil(t, err)
	require.False(t, reopened)

	_, err = s.RunStart("run-1")
	require.Nil(t, err)

	// RUNNING reopens back to a startable state.
	reopened, err = s.RunReopen("run-1")
	require.Nil(t, err)
	require.True(t, reopened)
	run, err := s.RunGet("run-1")
	require.Nil(t, err)
	require.Equal(t, string(core.RunPending), run.Status)
	require.Nil(t, run.StartedAt)
	started, err := s.RunStart("run-1")
	require.Nil(t, err)
	require.True(t, started)

	// FAILED reopens with the error cleared.
	_, err = s.RunComplete("run-1", string(core.RunFailed), 0, 1, 0, "device busy")
	require.Nil(t, err)
	reopened, err = s.RunReopen("run-1")
	require.Nil(t, err)
	require.True(t, reopened)
	run, err = s.RunGet("run-1")
	require.Nil(t, err)
	require.Equal(t, string(core.RunPending), run.Status)
	require.Empty(t, run.Error)
	require.Nil(t, run.CompletedAt)

	// COMPLETED and CANCELLED stay terminal.
	_, err = s.RunStart("run-1")
	require.Nil(t, err)
	_, err = s.RunComplete("run-1", string(core.RunCompleted), 1, 0, 0, "")
	require.Nil(t, err)
	reopened, err = s.RunReopen("run-1")
	require.Nil(t, err)
	require.False(t, reopened)

	_, err = s.RunCreate("run-2", "suite-1", "dev-1", "")
	require.Nil(t, err)
	_, err = s.RunCancel("run-2")
	require.Nil(t, err)
	reopened, err = s.RunReopen("run-2")
	require.Nil(t, err)
	require.False(t, reopened)
}

func TestResults(t *testing.T) {
	s := newTestStorage(t)

	_, err := s.RunCreate("run-1", "suite-1", "dev-1", "")
	require.Nil(t, err)

	for i, status := range []core.TestStatus{core.TestPassed, core.TestFailed, core.TestTimeout} {
		err := s.ResultCreate(TestResult{
			Uuid:       string(rune('a' + i)),
			RunUuid:    "run-1",
			CaseUuid:   "case-1",
			Status:     string(status),
			DurationMs: int64(100 * (i + 1)),
			Retries:    i,
		})
		require.Nil(t, err)
	}

	results, err := s.ResultsByRun("run-1")
	require.Nil(t, err)
	require.Len(t, results, 3)
	// Insertion order.
	require.Equal(t, string(core.TestPassed), results[0].Status)
	require.Equal(t, string(core.TestTimeout), results[2].Status)
	require.Equal(t, 2, results[2].Retries)

	recent, err := s.ResultsRecent(2, 0)
	require.Nil(t, err)
	require.Len(t, recent, 2)
	// Newest first.
	require.Equal(t, string(core.TestTimeout), recent[0].Status)
}

func TestJobs(t *testing.T) {
	s := newTestStorage(t)
	now := NowMs()

	base := JobRecord{
		RunUuid:       "run-1",
		DeviceUuid:    "dev-1",
		MaxAttempts:   3,
		BackoffType:   "fixed",
		BackoffBaseMs: 1000,
		ScheduledAtMs: now,
		CreatedAtMs:   now,
		UpdatedAtMs:   now,
	}

	low := base
	low.Uuid = "job-low"
	require.Nil(t, s.JobInsert(low))
	high := base
	high.Uuid = "job-high"
	high.Priority = 5
	require.Nil(t, s.JobInsert(high))
	future := base
	future.Uuid = "job-future"
	future.Priority = 10
	future.ScheduledAtMs = now + 60_000
	require.Nil(t, s.JobInsert(future))

	require.NotNil(t, s.JobInsert(low)) // duplicate uuid

	// Highest ready priority wins; the delayed job is invisible.
	next, err := s.JobNextReady(now)
	require.Nil(t, err)
	require.Equal(t, "job-high", next.Uuid)

	claimed, err := s.JobActivate("job-high", now)
	require.Nil(t, err)
	require.True(t, claimed)
	claimed, err = s.JobActivate("job-high", now)
	require.Nil(t, err)
	require.False(t, claimed)

	j, err := s.JobGet("job-high")
	require.Nil(t, err)
	require.Equal(t, "active", j.Status)
	require.Equal(t, 1, j.Attempts)

	next, err = s.JobNextReady(now)
	require.Nil(t, err)
	require.Equal(t, "job-low", next.Uuid)

	delayed, err := s.JobDelayedCount(now)
	require.Nil(t, err)
	require.Equal(t, 1, delayed)

	// Heartbeats move the stall cutoff.
	require.Nil(t, s.JobHeartbeat("job-high", now+10))
	stalled, err := s.JobStalled(now + 5)
	require.Nil(t, err)
	require.Empty(t, stalled)
	stalled, err = s.JobStalled(now + 20)
	require.Nil(t, err)
	require.Len(t, stalled, 1)
	require.Equal(t, "job-high", stalled[0].Uuid)

	require.Nil(t, s.JobRequeue("job-high", 0, now, "worker died", true, now))
	j, err = s.JobGet("job-high")
	require.Nil(t, err)
	require.Equal(t, "waiting", j.Status)
	require.Equal(t, 0, j.Attempts)
	require.Equal(t, 1, j.StallCount)
	require.Equal(t, "worker died", j.LastError)

	require.Nil(t, s.JobFinish("job-low", "completed", "", now))
	counts, err := s.JobCounts()
	require.Nil(t, err)
	require.Equal(t, 2, counts["waiting"])
	require.Equal(t, 1, counts["completed"])

	removed, err := s.JobClean("completed", now+1, 100)
	require.Nil(t, err)
	require.Equal(t, 1, removed)
	j, err = s.JobGet("job-low")
	require.Nil(t, err)
	require.Nil(t, j)
}

func TestArtifacts(t *testing.T) {
	s := newTestStorage(t)
	fs := s.Artifacts()

	require.Nil(t, fs.WriteArtifact("run-1", "screenshot.png", bytes.NewReader([]byte("pngdata"))))
	require.Nil(t, fs.WriteArtifact("run-1", "device.log", bytes.NewReader([]byte("log line\n"))))

	names, err := fs.ListArtifacts("run-1")
	require.Nil(t, err)
	require.Len(t, names, 2)

	r, err := fs.ReadArtifact("run-1", "screenshot.png")
	require.Nil(t, err)
	data, err := io.ReadAll(r)
	require.Nil(t, err)
	require.Nil(t, r.Close())
	require.Equal(t, "pngdata", string(data))

	require.NotNil(t, fs.WriteArtifact("run-1", "../escape.txt", bytes.NewReader(nil)))
	require.NotNil(t, fs.WriteArtifact("run-1", "a/b.txt", bytes.NewReader(nil)))
}
