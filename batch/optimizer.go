// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

// Package batch partitions sets of test cases into balanced execution
// groups for parallel dispatch, using historical duration and flakiness
// data. The optimizer only reads a snapshot of tracker state and owns no
// mutable shared state beyond its own configuration.
package batch

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/testforge/devicelab/core"
	"github.com/testforge/devicelab/history"
	"github.com/testforge/devicelab/storage"
)

type Options struct {
	TargetWorkers int
	Strategy      core.BatchStrategy
}

type Optimizer struct {
	store   *storage.Storage
	tracker *history.Tracker

	mu sync.RWMutex
	// defaultDuration is the estimate used for cases with no history.
	defaultDuration time.Duration
}

func NewOptimizer(store *storage.Storage, tracker *history.Tracker, defaultDuration time.Duration) *Optimizer {
	if defaultDuration <= 0 {
		defaultDuration = 30 * time.Second
	}
	return &Optimizer{store: store, tracker: tracker, defaultDuration: defaultDuration}
}

// SetDefaultDuration changes the fallback estimate at runtime.
func (o *Optimizer) SetDefaultDuration(d time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.defaultDuration = d
}

func (o *Optimizer) DefaultDuration() time.Duration {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.defaultDuration
}

// estimated is a resolved test case with its duration estimate.
type estimated struct {
	id       string
	tags     []string
	duration time.Duration
	flaky    bool
}

// GetOptimalBatches validates the requested IDs and partitions them per the
// chosen strategy. Every requested ID lands in exactly one batch; an
// unknown ID fails the whole request with a validation error naming it.
func (o *Optimizer) GetOptimalBatches(testCaseIDs []string, opts Options) ([]core.Batch, error) {
	if len(testCaseIDs) == 0 {
		return nil, core.NewValidationError("no test case ids given")
	}
	if opts.TargetWorkers <= 0 {
		opts.TargetWorkers = 1
	}
	strategy := opts.Strategy
	if strategy == "" {
		strategy = core.DurationBalanced
	}

	fallback := o.DefaultDuration()
	cases := make([]estimated, 0, len(testCaseIDs))
	seen := make(map[string]bool, len(testCaseIDs))
	var unknown []string
	for _, id := range testCaseIDs {
		if seen[id] {
			return nil, core.NewValidationError("duplicate test case id %s", id)
		}
		seen[id] = true
		tc, err := o.store.CaseGet(id)
		if err != nil {
			return nil, err
		}
		if tc == nil {
			unknown = append(unknown, id)
			continue
		}
		cases = append(cases, estimated{
			id:       id,
			tags:     tc.Tags,
			duration: o.tracker.EstimatedDuration(id, fallback),
			flaky:    o.tracker.IsTestFlaky(id),
		})
	}
	if len(unknown) > 0 {
		return nil, core.NewValidationError("unknown test case ids: %s", strings.Join(unknown, ", "))
	}

	switch strategy {
	case core.DurationBalanced:
		return tag(strategy, lptBalance(cases, opts.TargetWorkers)), nil
	case core.DurationClustered:
		return tag(strategy, clusterByDuration(cases, opts.TargetWorkers)), nil
	case core.TagBased:
		return tag(strategy, groupByTags(cases, opts.TargetWorkers)), nil
	case core.FlakyIsolated:
		return tag(strategy, isolateFlaky(cases, opts.TargetWorkers, false)), nil
	case core.Hybrid:
		return tag(strategy, isolateFlaky(cases, opts.TargetWorkers, true)), nil
	}
	return nil, core.NewValidationError("unknown batch strategy: %s", strategy)
}

func tag(strategy core.BatchStrategy, batches []core.Batch) []core.Batch {
	for i := range batches {
		batches[i].Strategy = strategy
	}
	return batches
}

// lptBalance is classic Longest-Processing-Time bin packing: cases sorted
// by descending estimate, each assigned to the least-loaded bucket. The
// makespan is bounded at (4/3 - 1/3W) of optimal.
func lptBalance(cases []estimated, workers int) []core.Batch {
	if workers > len(cases) {
		workers = len(cases)
	}
	if workers == 0 {
		return nil
	}
	sorted := make([]estimated, len(cases))
	copy(sorted, cases)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].duration > sorted[j].duration })

	batches := make([]core.Batch, workers)
	for _, c := range sorted {
		least := 0
		for i := 1; i < workers; i++ {
			if batches[i].EstimatedDuration < batches[least].EstimatedDuration {
				least = i
			}
		}
		batches[least].TestCaseIds = append(batches[least].TestCaseIds, c.id)
		batches[least].EstimatedDuration += c.duration
	}
	return batches
}

// clusterByDuration puts cases of similar estimated duration into the same
// batch: sorted ascending, split into contiguous groups. This minimizes
// duration variance within a batch instead of balancing across batches.
func clusterByDuration(cases []estimated, workers int) []core.Batch {
	if workers > len(cases) {
		workers = len(cases)
	}
	if workers == 0 {
		return nil
	}
	sorted := make([]estimated, len(cases))
	copy(sorted, cases)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].duration < sorted[j].duration })

	batches := make([]core.Batch, 0, workers)
	chunk := (len(sorted) + workers - 1) / workers
	for start := 0; start < len(sorted); start += chunk {
		end := min(start+chunk, len(sorted))
		var b core.Batch
		for _, c := range sorted[start:end] {
			b.TestCaseIds = append(b.TestCaseIds, c.id)
			b.EstimatedDuration += c.duration
		}
		batches = append(batches, b)
	}
	return batches
}

// groupByTags groups cases sharing the same tag signature, ignoring
// duration, then folds the groups into at most `workers` batches, keeping
// each tag group intact.
func groupByTags(cases []estimated, workers int) []core.Batch {
	groups := map[string][]estimated{}
	var order []string
	for _, c := range cases {
		tags := make([]string, len(c.tags))
		copy(tags, c.tags)
		sort.Strings(tags)
		key := strings.Join(tags, ",")
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], c)
	}

	if workers > len(order) {
		workers = len(order)
	}
	batches := make([]core.Batch, workers)
	for i, key := range order {
		b := &batches[i%workers]
		for _, c := range groups[key] {
			b.TestCaseIds = append(b.TestCaseIds, c.id)
			b.EstimatedDuration += c.duration
		}
	}
	return batches
}

// isolateFlaky pulls flaky cases into a dedicated batch capped at
// concurrency 1, so their retries cannot starve stable throughput. The
// stable remainder keeps suite order in FLAKY_ISOLATED and is LPT-balanced
// across the remaining workers in HYBRID.
func isolateFlaky(cases []estimated, workers int, balanceRemainder bool) []core.Batch {
	var flaky, stable []estimated
	for _, c := range cases {
		if c.flaky {
			flaky = append(flaky, c)
		} else {
			stable = append(stable, c)
		}
	}

	var batches []core.Batch
	if len(flaky) > 0 {
		b := core.Batch{MaxConcurrency: 1}
		for _, c := range flaky {
			b.TestCaseIds = append(b.TestCaseIds, c.id)
			b.EstimatedDuration += c.duration
		}
		batches = append(batches, b)
		workers--
	}
	if len(stable) > 0 {
		if balanceRemainder {
			batches = append(batches, lptBalance(stable, max(workers, 1))...)
		} else {
			var b core.Batch
			for _, c := range stable {
				b.TestCaseIds = append(b.TestCaseIds, c.id)
				b.EstimatedDuration += c.duration
			}
			batches = append(batches, b)
		}
	}
	return batches
}
