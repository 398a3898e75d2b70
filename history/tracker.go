// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

// Package history tracks per-test-case execution telemetry: bounded sample
// windows, rolling duration statistics and flakiness detection. The batch
// optimizer reads it to estimate durations; the runner writes into it as
// results land.
package history

import (
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/testforge/devicelab/core"
	"github.com/testforge/devicelab/storage"
)

type Config struct {
	// MaxSamples bounds the per-case ring buffer; oldest samples are
	// evicted first.
	MaxSamples int
	// RecentWindow is how many of the latest outcomes the flakiness rate
	// is computed over.
	RecentWindow int
	// FlakinessThreshold is the failure rate at or above which a case is
	// flagged flaky.
	FlakinessThreshold float64
	// RehydrateWindow is how far back LoadFromStore looks.
	RehydrateWindow time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxSamples <= 0 {
		c.MaxSamples = 50
	}
	if c.RecentWindow <= 0 {
		c.RecentWindow = 10
	}
	if c.FlakinessThreshold <= 0 {
		c.FlakinessThreshold = 0.3
	}
	if c.RehydrateWindow <= 0 {
		c.RehydrateWindow = 30 * 24 * time.Hour
	}
	return c
}

type sample struct {
	duration time.Duration
	status   core.TestStatus
}

// caseHistory is a bounded ring of the most recent executions of one case
// plus statistics recomputed on each append.
type caseHistory struct {
	samples []sample // ring contents, oldest first
	max     int

	avgDuration time.Duration
	variance    float64 // of duration in seconds squared
	flaky       bool
}

func (h *caseHistory) append(s sample, recentWindow int, threshold float64) {
	if len(h.samples) == h.max {
		h.samples = append(h.samples[1:len(h.samples):len(h.samples)], s)
	} else {
		h.samples = append(h.samples, s)
	}
	h.recompute(recentWindow, threshold)
}

func (h *caseHistory) recompute(recentWindow int, threshold float64) {
	var sum time.Duration
	for _, s := range h.samples {
		sum += s.duration
	}
	n := len(h.samples)
	h.avgDuration = sum / time.Duration(n)

	mean := h.avgDuration.Seconds()
	var sq float64
	for _, s := range h.samples {
		d := s.duration.Seconds() - mean
		sq += d * d
	}
	h.variance = sq / float64(n)

	window := h.samples
	if len(window) > recentWindow {
		window = window[len(window)-recentWindow:]
	}
	failures := 0
	for _, s := range window {
		if s.status == core.TestFailed || s.status == core.TestTimeout {
			failures++
		}
	}
	h.flaky = float64(failures)/float64(len(window)) >= threshold
}

// Tracker is safe for concurrent use: workers record as they finish tests
// while the optimizer and API read estimates.
type Tracker struct {
	mu     sync.RWMutex
	cfg    Config
	cases  map[string]*caseHistory
	logger *slog.Logger
}

func NewTracker(cfg Config, logger *slog.Logger) *Tracker {
	return &Tracker{
		cfg:    cfg.withDefaults(),
		cases:  make(map[string]*caseHistory),
		logger: logger,
	}
}

// RecordExecution appends one outcome to the case's window and refreshes its
// rolling statistics.
func (t *Tracker) RecordExecution(testCaseID string, duration time.Duration, status core.TestStatus) {
	t.mu.Lock()
	defer t.mu.Unlock()

	h, ok := t.cases[testCaseID]
	if !ok {
		h = &caseHistory{max: t.cfg.MaxSamples}
		t.cases[testCaseID] = h
	}
	h.append(sample{duration: duration, status: status}, t.cfg.RecentWindow, t.cfg.FlakinessThreshold)
}

// EstimatedDuration returns the rolling average duration for the case, or
// fallback when no history exists.
func (t *Tracker) EstimatedDuration(testCaseID string, fallback time.Duration) time.Duration {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if h, ok := t.cases[testCaseID]; ok && len(h.samples) > 0 {
		return h.avgDuration
	}
	return fallback
}

// Variance returns the duration variance (seconds squared) for the case, or
// zero without history.
func (t *Tracker) Variance(testCaseID string) float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if h, ok := t.cases[testCaseID]; ok {
		return h.variance
	}
	return 0
}

func (t *Tracker) IsTestFlaky(testCaseID string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	h, ok := t.cases[testCaseID]
	return ok && h.flaky
}

// FlakyTests returns the IDs of all cases currently flagged flaky, sorted.
func (t *Tracker) FlakyTests() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var ids []string
	for id, h := range t.cases {
		if h.flaky {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

func (t *Tracker) SampleCount(testCaseID string) int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if h, ok := t.cases[testCaseID]; ok {
		return len(h.samples)
	}
	return 0
}

// SetFlakinessThreshold changes the threshold at runtime and reevaluates
// every tracked case against it.
func (t *Tracker) SetFlakinessThreshold(threshold float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cfg.FlakinessThreshold = threshold
	for _, h := range t.cases {
		h.recompute(t.cfg.RecentWindow, threshold)
	}
}

// Statistics is the global view over every retained sample of every case.
type Statistics struct {
	TrackedCases int           `json:"trackedCases"`
	TotalSamples int           `json:"totalSamples"`
	FlakyCases   int           `json:"flakyCases"`
	Mean         time.Duration `json:"mean"`
	Median       time.Duration `json:"median"`
	P95          time.Duration `json:"p95"`
	Min          time.Duration `json:"min"`
	Max          time.Duration `json:"max"`
}

func (t *Tracker) Statistics() Statistics {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var durations []time.Duration
	stats := Statistics{TrackedCases: len(t.cases)}
	for _, h := range t.cases {
		if h.flaky {
			stats.FlakyCases++
		}
		for _, s := range h.samples {
			durations = append(durations, s.duration)
		}
	}
	stats.TotalSamples = len(durations)
	if len(durations) == 0 {
		return stats
	}

	sort.Slice(durations, func(i, j int) bool { return durations[i] < durations[j] })
	var sum time.Duration
	for _, d := range durations {
		sum += d
	}
	stats.Mean = sum / time.Duration(len(durations))
	stats.Median = durations[len(durations)/2]
	p95 := int(math.Ceil(0.95*float64(len(durations)))) - 1
	stats.P95 = durations[p95]
	stats.Min = durations[0]
	stats.Max = durations[len(durations)-1]
	return stats
}

// LoadFromStore rehydrates the in-memory windows from persisted results,
// bounded by limit rows and the configured lookback window. Rows arrive
// newest first from the store and are replayed oldest first so the ring
// retains the most recent ones.
func (t *Tracker) LoadFromStore(store *storage.Storage, limit int) error {
	since := storage.Timestamp(time.Now().Add(-t.cfg.RehydrateWindow).Unix())
	results, err := store.ResultsRecent(limit, since)
	if err != nil {
		return err
	}
	for i := len(results) - 1; i >= 0; i-- {
		r := results[i]
		t.RecordExecution(r.CaseUuid, time.Duration(r.DurationMs)*time.Millisecond, core.TestStatus(r.Status))
	}
	t.logger.Info("history rehydrated", "results", len(results))
	return nil
}

// ClearCache drops all in-memory state. Administrative/testing use.
func (t *Tracker) ClearCache() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cases = make(map[string]*caseHistory)
}
