// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package api

import (
	"bytes"
	stdctx "context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/testforge/devicelab/batch"
	"github.com/testforge/devicelab/core"
	"github.com/testforge/devicelab/events"
	"github.com/testforge/devicelab/history"
	"github.com/testforge/devicelab/queue"
	"github.com/testforge/devicelab/server"
	"github.com/testforge/devicelab/sessions"
	"github.com/testforge/devicelab/storage"
)

type client struct {
	srv  *httptest.Server
	core Core
}

func (c client) do(t *testing.T, method, resource, contentType string, body []byte, status int) []byte {
	req, err := http.NewRequest(method, c.srv.URL+resource, bytes.NewReader(body))
	require.Nil(t, err)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	res, err := c.srv.Client().Do(req)
	require.Nil(t, err)
	buf, err := io.ReadAll(res.Body)
	require.Nil(t, err)
	require.Nil(t, res.Body.Close())
	require.Equal(t, status, res.StatusCode, "%s %s: %s", method, resource, string(buf))
	return buf
}

func (c client) GET(t *testing.T, resource string, status int) []byte {
	return c.do(t, http.MethodGet, resource, "", nil, status)
}

func (c client) POST(t *testing.T, resource string, body any, status int) []byte {
	data, err := json.Marshal(body)
	require.Nil(t, err)
	return c.do(t, http.MethodPost, resource, "application/json", data, status)
}

func (c client) PUT(t *testing.T, resource string, body any, status int) []byte {
	data, err := json.Marshal(body)
	require.Nil(t, err)
	return c.do(t, http.MethodPut, resource, "application/json", data, status)
}

func testWrapper(t *testing.T, testFunc func(client)) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

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

	bus := events.NewBus(logger)
	t.Cleanup(bus.Close)
	tracker := history.NewTracker(history.Config{}, logger)
	mgr := sessions.NewManager(sessions.Config{}, store, bus, logger)
	// The dispatcher is never started: enqueued jobs stay waiting, which
	// keeps queue assertions deterministic.
	q := queue.New(queue.Config{}, store, func(ctx stdctx.Context, job queue.Job) error {
		return nil
	}, logger)

	apiCore := Core{
		Store:     store,
		Queue:     q,
		Sessions:  mgr,
		Tracker:   tracker,
		Optimizer: batch.NewOptimizer(store, tracker, 30*time.Second),
	}

	e := server.NewEchoServer("api-test", logger)
	RegisterHandlers(e, apiCore)

	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)

	testFunc(client{srv: srv, core: apiCore})
}

const suiteYaml = `
name: smoke
platform: android
cases:
  - name: login
    tags: [auth]
  - name: browse
  - name: checkout
    tags: [payments]
`

func (c client) importSuite(t *testing.T) *storage.TestSuite {
	buf := c.do(t, http.MethodPost, "/v1/suites", "application/yaml", []byte(suiteYaml), http.StatusCreated)
	var suite storage.TestSuite
	require.Nil(t, json.Unmarshal(buf, &suite))
	require.NotEmpty(t, suite.Uuid)
	return &suite
}

func (c client) registerDevice(t *testing.T) *storage.Device {
	buf := c.POST(t, "/v1/devices", registerDeviceRequest{
		Name: "pixel-7", Platform: "android", OsVersion: "14",
	}, http.StatusCreated)
	var device storage.Device
	require.Nil(t, json.Unmarshal(buf, &device))
	require.Equal(t, string(core.DeviceAvailable), device.Status)
	return &device
}

func TestDeviceEndpoints(t *testing.T) {
	testWrapper(t, func(tc client) {
		device := tc.registerDevice(t)

		buf := tc.GET(t, "/v1/devices", http.StatusOK)
		var devices []storage.Device
		require.Nil(t, json.Unmarshal(buf, &devices))
		require.Len(t, devices, 1)
		require.Equal(t, device.Uuid, devices[0].Uuid)

		tc.POST(t, "/v1/devices", registerDeviceRequest{Name: "no-platform"}, http.StatusBadRequest)

		tc.PUT(t, "/v1/devices/"+device.Uuid+"/status",
			deviceStatusRequest{Status: "MAINTENANCE"}, http.StatusNoContent)
		tc.PUT(t, "/v1/devices/"+device.Uuid+"/status",
			deviceStatusRequest{Status: "BROKEN"}, http.StatusBadRequest)

		// A device with a live session cannot be moved.
		tc.PUT(t, "/v1/devices/"+device.Uuid+"/status",
			deviceStatusRequest{Status: "AVAILABLE"}, http.StatusNoContent)
		_, err := tc.core.Sessions.Acquire(device.Uuid, "run-x")
		require.Nil(t, err)
		tc.PUT(t, "/v1/devices/"+device.Uuid+"/status",
			deviceStatusRequest{Status: "OFFLINE"}, http.StatusConflict)

		buf = tc.GET(t, "/v1/sessions", http.StatusOK)
		var live []sessions.Session
		require.Nil(t, json.Unmarshal(buf, &live))
		require.Len(t, live, 1)
		require.Equal(t, device.Uuid, live[0].DeviceID)
	})
}

func TestSuiteEndpoints(t *testing.T) {
	testWrapper(t, func(tc client) {
		suite := tc.importSuite(t)

		buf := tc.GET(t, "/v1/suites", http.StatusOK)
		var suites []storage.TestSuite
		require.Nil(t, json.Unmarshal(buf, &suites))
		require.Len(t, suites, 1)

		buf = tc.GET(t, "/v1/suites/"+suite.Uuid+"/cases", http.StatusOK)
		var cases []storage.TestCase
		require.Nil(t, json.Unmarshal(buf, &cases))
		require.Len(t, cases, 3)
		require.Equal(t, "login", cases[0].Name)

		tc.GET(t, "/v1/suites/no-such-suite/cases", http.StatusNotFound)

		// Re-importing the same suite name conflicts.
		tc.do(t, http.MethodPost, "/v1/suites", "application/yaml", []byte(suiteYaml), http.StatusConflict)
		tc.do(t, http.MethodPost, "/v1/suites", "application/yaml", []byte("cases: []"), http.StatusBadRequest)
	})
}

func TestRunEndpoints(t *testing.T) {
	testWrapper(t, func(tc client) {
		suite := tc.importSuite(t)
		device := tc.registerDevice(t)

		tc.POST(t, "/v1/runs", createRunRequest{
			SuiteUuid: "no-such-suite", DeviceUuid: device.Uuid,
		}, http.StatusNotFound)
		tc.POST(t, "/v1/runs", createRunRequest{
			SuiteUuid: suite.Uuid, DeviceUuid: "no-such-device",
		}, http.StatusNotFound)
		tc.POST(t, "/v1/runs", createRunRequest{
			SuiteUuid: suite.Uuid, DeviceUuid: device.Uuid,
			Spec: core.RunSpec{Isolation: "bogus"},
		}, http.StatusBadRequest)

		buf := tc.POST(t, "/v1/runs", createRunRequest{
			SuiteUuid: suite.Uuid, DeviceUuid: device.Uuid,
			Spec:     core.RunSpec{MaxRetries: 2, Tags: []string{"auth"}},
			Priority: 5,
		}, http.StatusCreated)
		var created createRunResponse
		require.Nil(t, json.Unmarshal(buf, &created))
		require.Equal(t, string(core.RunPending), created.Run.Status)
		require.Equal(t, created.Run.Uuid, created.Job.ID)
		require.Equal(t, 5, created.Job.Priority)

		buf = tc.GET(t, "/v1/runs/"+created.Run.Uuid, http.StatusOK)
		var fetched runResponse
		require.Nil(t, json.Unmarshal(buf, &fetched))
		require.Equal(t, created.Run.Uuid, fetched.Run.Uuid)
		spec, err := core.ParseRunSpec(fetched.Run.Metadata)
		require.Nil(t, err)
		require.Equal(t, 2, spec.MaxRetries)

		tc.GET(t, "/v1/runs/no-such-run", http.StatusNotFound)

		buf = tc.GET(t, "/v1/runs?limit=10", http.StatusOK)
		var runs []storage.TestRun
		require.Nil(t, json.Unmarshal(buf, &runs))
		require.Len(t, runs, 1)
		tc.GET(t, "/v1/runs?limit=zero", http.StatusBadRequest)

		tc.POST(t, "/v1/runs/"+created.Run.Uuid+"/start", nil, http.StatusNoContent)
		tc.POST(t, "/v1/runs/"+created.Run.Uuid+"/start", nil, http.StatusConflict)
		tc.POST(t, "/v1/runs/no-such-run/start", nil, http.StatusNotFound)

		tc.POST(t, "/v1/runs/"+created.Run.Uuid+"/cancel", nil, http.StatusNoContent)
		tc.POST(t, "/v1/runs/"+created.Run.Uuid+"/cancel", nil, http.StatusConflict)
		tc.POST(t, "/v1/runs/no-such-run/cancel", nil, http.StatusNotFound)
	})
}

func TestCompleteRun(t *testing.T) {
	testWrapper(t, func(tc client) {
		suite := tc.importSuite(t)
		device := tc.registerDevice(t)

		buf := tc.POST(t, "/v1/runs", createRunRequest{
			SuiteUuid: suite.Uuid, DeviceUuid: device.Uuid,
		}, http.StatusCreated)
		var created createRunResponse
		require.Nil(t, json.Unmarshal(buf, &created))
		runID := created.Run.Uuid

		tc.POST(t, "/v1/runs/"+runID+"/start", nil, http.StatusNoContent)
		for i, status := range []core.TestStatus{core.TestPassed, core.TestFailed, core.TestTimeout} {
			require.Nil(t, tc.core.Store.ResultCreate(storage.TestResult{
				Uuid:    string(rune('a' + i)),
				RunUuid: runID,
				Status:  string(status),
			}))
		}

		// Counters come from the persisted results. Failed cases do not
		// flip the run status: a run with failures still completes.
		buf = tc.POST(t, "/v1/runs/"+runID+"/complete", completeRunRequest{}, http.StatusOK)
		var completed runResponse
		require.Nil(t, json.Unmarshal(buf, &completed))
		require.Equal(t, string(core.RunCompleted), completed.Run.Status)
		require.Equal(t, 1, completed.Run.Passed)
		require.Equal(t, 2, completed.Run.Failed)
		require.Zero(t, completed.Run.Skipped)
		require.Len(t, completed.Results, 3)

		tc.POST(t, "/v1/runs/"+runID+"/complete", completeRunRequest{}, http.StatusConflict)
		tc.POST(t, "/v1/runs/no-such-run/complete", completeRunRequest{}, http.StatusNotFound)
		tc.POST(t, "/v1/runs/"+runID+"/complete",
			completeRunRequest{Status: "CANCELLED"}, http.StatusBadRequest)
	})
}

func TestCompleteRunExplicitFailure(t *testing.T) {
	testWrapper(t, func(tc client) {
		suite := tc.importSuite(t)
		device := tc.registerDevice(t)

		buf := tc.POST(t, "/v1/runs", createRunRequest{
			SuiteUuid: suite.Uuid, DeviceUuid: device.Uuid,
		}, http.StatusCreated)
		var created createRunResponse
		require.Nil(t, json.Unmarshal(buf, &created))
		runID := created.Run.Uuid

		tc.POST(t, "/v1/runs/"+runID+"/start", nil, http.StatusNoContent)

		// The caller can still deliver a FAILED verdict explicitly.
		buf = tc.POST(t, "/v1/runs/"+runID+"/complete",
			completeRunRequest{Status: "FAILED", Error: "appium server crashed"}, http.StatusOK)
		var completed runResponse
		require.Nil(t, json.Unmarshal(buf, &completed))
		require.Equal(t, string(core.RunFailed), completed.Run.Status)
		require.Equal(t, "appium server crashed", completed.Run.Error)
	})
}

func TestQueueEndpoints(t *testing.T) {
	testWrapper(t, func(tc client) {
		suite := tc.importSuite(t)
		device := tc.registerDevice(t)
		tc.POST(t, "/v1/runs", createRunRequest{
			SuiteUuid: suite.Uuid, DeviceUuid: device.Uuid,
		}, http.StatusCreated)

		buf := tc.GET(t, "/v1/queue/stats", http.StatusOK)
		var stats queue.Stats
		require.Nil(t, json.Unmarshal(buf, &stats))
		require.Equal(t, 1, stats.Waiting)
		require.Zero(t, stats.Paused)

		tc.POST(t, "/v1/queue/pause", nil, http.StatusNoContent)
		buf = tc.GET(t, "/v1/queue/stats", http.StatusOK)
		require.Nil(t, json.Unmarshal(buf, &stats))
		require.Zero(t, stats.Waiting)
		require.Equal(t, 1, stats.Paused)
		tc.POST(t, "/v1/queue/resume", nil, http.StatusNoContent)

		buf = tc.POST(t, "/v1/queue/clean", cleanQueueRequest{GraceMs: 0}, http.StatusOK)
		var cleaned cleanQueueResponse
		require.Nil(t, json.Unmarshal(buf, &cleaned))
		require.Zero(t, cleaned.Removed) // nothing terminal yet

		tc.POST(t, "/v1/queue/clean", cleanQueueRequest{GraceMs: -1}, http.StatusBadRequest)
		tc.POST(t, "/v1/queue/clean", cleanQueueRequest{Type: "active"}, http.StatusBadRequest)
	})
}

func TestHistoryEndpoints(t *testing.T) {
	testWrapper(t, func(tc client) {
		tc.core.Tracker.RecordExecution("case-1", time.Second, core.TestFailed)
		tc.core.Tracker.RecordExecution("case-1", time.Second, core.TestPassed)
		tc.core.Tracker.RecordExecution("case-2", 2*time.Second, core.TestPassed)

		buf := tc.GET(t, "/v1/tests/flaky", http.StatusOK)
		var flaky []flakyTest
		require.Nil(t, json.Unmarshal(buf, &flaky))
		require.Len(t, flaky, 1)
		require.Equal(t, "case-1", flaky[0].TestCaseId)
		require.Equal(t, 2, flaky[0].Samples)

		buf = tc.GET(t, "/v1/history/stats", http.StatusOK)
		var stats history.Statistics
		require.Nil(t, json.Unmarshal(buf, &stats))
		require.Equal(t, 2, stats.TrackedCases)
		require.Equal(t, 3, stats.TotalSamples)
		require.Equal(t, 1, stats.FlakyCases)

		// Raising the threshold declassifies case-1.
		threshold := 0.9
		tc.PUT(t, "/v1/config/optimization",
			optimizationRequest{FlakinessThreshold: &threshold}, http.StatusOK)
		buf = tc.GET(t, "/v1/tests/flaky", http.StatusOK)
		require.Nil(t, json.Unmarshal(buf, &flaky))
		require.Empty(t, flaky)

		bad := 1.5
		tc.PUT(t, "/v1/config/optimization",
			optimizationRequest{FlakinessThreshold: &bad}, http.StatusBadRequest)
		zero := int64(0)
		tc.PUT(t, "/v1/config/optimization",
			optimizationRequest{DefaultDurationMs: &zero}, http.StatusBadRequest)

		dur := int64(45000)
		buf = tc.PUT(t, "/v1/config/optimization",
			optimizationRequest{DefaultDurationMs: &dur}, http.StatusOK)
		var resp optimizationResponse
		require.Nil(t, json.Unmarshal(buf, &resp))
		require.Equal(t, dur, resp.DefaultDurationMs)
	})
}

func TestBatchEndpoint(t *testing.T) {
	testWrapper(t, func(tc client) {
		suite := tc.importSuite(t)
		buf := tc.GET(t, "/v1/suites/"+suite.Uuid+"/cases", http.StatusOK)
		var cases []storage.TestCase
		require.Nil(t, json.Unmarshal(buf, &cases))

		ids := make([]string, len(cases))
		for i, c := range cases {
			ids[i] = c.Uuid
		}

		buf = tc.POST(t, "/v1/batches", planBatchesRequest{
			TestCaseIds: ids, TargetWorkers: 2,
		}, http.StatusOK)
		var plan planBatchesResponse
		require.Nil(t, json.Unmarshal(buf, &plan))
		require.Equal(t, core.DurationBalanced, plan.Strategy)
		total := 0
		for _, b := range plan.Batches {
			total += len(b.TestCaseIds)
		}
		require.Equal(t, len(ids), total)

		tc.POST(t, "/v1/batches", planBatchesRequest{
			TestCaseIds: ids, Strategy: "RANDOM",
		}, http.StatusBadRequest)
		tc.POST(t, "/v1/batches", planBatchesRequest{
			TestCaseIds: []string{"no-such-case"},
		}, http.StatusBadRequest)
	})
}
