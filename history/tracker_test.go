// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package history

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/testforge/devicelab/core"
	"github.com/testforge/devicelab/storage"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, nil))
}

func TestFlakinessDetection(t *testing.T) {
	tr := NewTracker(Config{FlakinessThreshold: 0.3}, testLogger())

	// Alternating pass/fail is well above a 0.3 failure rate.
	for _, s := range []core.TestStatus{core.TestFailed, core.TestPassed, core.TestFailed, core.TestPassed, core.TestFailed} {
		tr.RecordExecution("flapping", time.Second, s)
	}
	require.True(t, tr.IsTestFlaky("flapping"))

	for range 5 {
		tr.RecordExecution("solid", time.Second, core.TestPassed)
	}
	require.False(t, tr.IsTestFlaky("solid"))

	// Timeouts count as failures.
	for _, s := range []core.TestStatus{core.TestPassed, core.TestTimeout, core.TestPassed, core.TestTimeout} {
		tr.RecordExecution("slow", time.Second, s)
	}
	require.True(t, tr.IsTestFlaky("slow"))

	require.Equal(t, []string{"flapping", "slow"}, tr.FlakyTests())
	require.False(t, tr.IsTestFlaky("never-seen"))
}

func TestFlakinessRecentWindow(t *testing.T) {
	tr := NewTracker(Config{RecentWindow: 4, FlakinessThreshold: 0.5}, testLogger())

	// Old failures age out of the recent window as passes accumulate.
	tr.RecordExecution("recovering", time.Second, core.TestFailed)
	tr.RecordExecution("recovering", time.Second, core.TestFailed)
	require.True(t, tr.IsTestFlaky("recovering"))
	for range 4 {
		tr.RecordExecution("recovering", time.Second, core.TestPassed)
	}
	require.False(t, tr.IsTestFlaky("recovering"))
}

func TestSampleEviction(t *testing.T) {
	tr := NewTracker(Config{MaxSamples: 5}, testLogger())

	for i := range 8 {
		tr.RecordExecution("case", time.Duration(i+1)*time.Second, core.TestPassed)
	}
	require.Equal(t, 5, tr.SampleCount("case"))

	// Only the last five samples (4s..8s) remain: mean is 6s.
	require.Equal(t, 6*time.Second, tr.EstimatedDuration("case", 0))
}

func TestEstimatedDuration(t *testing.T) {
	tr := NewTracker(Config{}, testLogger())

	require.Equal(t, 42*time.Second, tr.EstimatedDuration("unknown", 42*time.Second))

	tr.RecordExecution("case", 10*time.Second, core.TestPassed)
	tr.RecordExecution("case", 20*time.Second, core.TestPassed)
	require.Equal(t, 15*time.Second, tr.EstimatedDuration("case", time.Minute))

	// Constant durations have zero variance; spread ones do not.
	require.Zero(t, tr.Variance("unknown"))
	tr2 := NewTracker(Config{}, testLogger())
	tr2.RecordExecution("flat", 5*time.Second, core.TestPassed)
	tr2.RecordExecution("flat", 5*time.Second, core.TestPassed)
	require.Zero(t, tr2.Variance("flat"))
	require.InDelta(t, 25.0, tr.Variance("case"), 0.001)
}

func TestSetFlakinessThreshold(t *testing.T) {
	tr := NewTracker(Config{FlakinessThreshold: 0.5}, testLogger())

	for _, s := range []core.TestStatus{core.TestFailed, core.TestPassed, core.TestPassed, core.TestPassed} {
		tr.RecordExecution("borderline", time.Second, s)
	}
	require.False(t, tr.IsTestFlaky("borderline"))

	// Tightening the threshold reclassifies existing history.
	tr.SetFlakinessThreshold(0.2)
	require.True(t, tr.IsTestFlaky("borderline"))

	tr.SetFlakinessThreshold(0.5)
	require.False(t, tr.IsTestFlaky("borderline"))
}

func TestStatistics(t *testing.T) {
	tr := NewTracker(Config{}, testLogger())

	empty := tr.Statistics()
	require.Zero(t, empty.TrackedCases)
	require.Zero(t, empty.TotalSamples)

	for i := range 10 {
		tr.RecordExecution("a", time.Duration(i+1)*time.Second, core.TestPassed)
	}
	tr.RecordExecution("b", 20*time.Second, core.TestFailed)
	tr.RecordExecution("b", 20*time.Second, core.TestFailed)

	stats := tr.Statistics()
	require.Equal(t, 2, stats.TrackedCases)
	require.Equal(t, 12, stats.TotalSamples)
	require.Equal(t, 1, stats.FlakyCases)
	require.Equal(t, time.Second, stats.Min)
	require.Equal(t, 20*time.Second, stats.Max)
	require.Equal(t, 20*time.Second, stats.P95)

	tr.ClearCache()
	require.Zero(t, tr.Statistics().TrackedCases)
}

func TestLoadFromStore(t *testing.T) {
	tmpdir := t.TempDir()
	db, err := storage.NewDb(filepath.Join(tmpdir, "sql.db"))
	require.Nil(t, err)
	t.Cleanup(func() {
		require.Nil(t, db.Close())
	})
	fs, err := storage.NewFs(tmpdir)
	require.Nil(t, err)
	store, err := storage.NewStorage(db, fs)
	require.Nil(t, err)

	_, err = store.RunCreate("run-1", "suite-1", "dev-1", "")
	require.Nil(t, err)
	outcomes := []core.TestStatus{core.TestPassed, core.TestFailed, core.TestPassed, core.TestFailed}
	for i, s := range outcomes {
		err := store.ResultCreate(storage.TestResult{
			Uuid:       string(rune('a' + i)),
			RunUuid:    "run-1",
			CaseUuid:   "case-1",
			Status:     string(s),
			DurationMs: 1000,
		})
		require.Nil(t, err)
	}

	tr := NewTracker(Config{FlakinessThreshold: 0.3}, testLogger())
	require.Nil(t, tr.LoadFromStore(store, 1000))
	require.Equal(t, 4, tr.SampleCount("case-1"))
	require.True(t, tr.IsTestFlaky("case-1"))
	require.Equal(t, time.Second, tr.EstimatedDuration("case-1", 0))
}
