// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

// Package queue is the durable dispatch layer: one job per test run, held
// in sqlite until a worker slot frees up, retried with backoff on failure
// and recovered when a worker dies mid-processing.
package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/testforge/devicelab/core"
	"github.com/testforge/devicelab/storage"
)

const (
	StatusWaiting   = "waiting"
	StatusActive    = "active"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

const (
	BackoffFixed       = "fixed"
	BackoffExponential = "exponential"
)

// BackoffPolicy is the delay schedule between a job's retry attempts.
type BackoffPolicy struct {
	Type string
	Base time.Duration
}

// Delay returns the pause before the given retry. attempt is 1-based: the
// delay scheduled after the attempt-th failure. Exponential doubles per
// attempt, so delays strictly increase.
func (p BackoffPolicy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	switch p.Type {
	case BackoffFixed:
		return p.Base
	default:
		return p.Base << (attempt - 1)
	}
}

// Job is the runtime view of a queued test run execution request.
type Job struct {
	ID          string
	RunID       string
	DeviceID    string
	Priority    int
	Attempts    int
	MaxAttempts int
	Backoff     BackoffPolicy
	Timeout     time.Duration
}

// EnqueueOptions tune one enqueue call. Zero values fall back to the queue
// configuration.
type EnqueueOptions struct {
	// JobID makes the enqueue idempotent: a duplicate ID is a conflict.
	JobID       string
	Priority    int
	Delay       time.Duration
	MaxAttempts int
	Backoff     BackoffPolicy
	Timeout     time.Duration
}

// Processor executes one job. A nil return completes the job; an error (or
// a per-job timeout, or a panic) requeues it per its backoff policy until
// attempts are exhausted.
type Processor func(ctx context.Context, job Job) error

// Stats mirrors the queue's per-state job counts. Paused is the number of
// waiting jobs held back because the queue is paused.
type Stats struct {
	Waiting   int `json:"waiting"`
	Active    int `json:"active"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Delayed   int `json:"delayed"`
	Paused    int `json:"paused"`
}

type Config struct {
	// Concurrency is the number of simultaneously processing workers.
	Concurrency int
	// PollInterval is the dispatcher's idle wait between dequeue checks.
	PollInterval time.Duration
	// HeartbeatInterval is how often an active worker touches its job row.
	HeartbeatInterval time.Duration
	// StallInterval is how old a heartbeat may get before the job counts
	// as stalled.
	StallInterval time.Duration
	// StallRetryLimit is how many times a stalled job is requeued before
	// it fails outright.
	StallRetryLimit int
	// DefaultMaxAttempts applies to jobs enqueued without an explicit
	// maximum.
	DefaultMaxAttempts int
	// DefaultBackoff applies to jobs enqueued without a policy.
	DefaultBackoff BackoffPolicy
	// DefaultTimeout bounds jobs enqueued without one. Zero leaves such
	// jobs unbounded.
	DefaultTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.Concurrency <= 0 {
		c.Concurrency = 4
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 250 * time.Millisecond
	}
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = 5 * time.Second
	}
	if c.StallInterval <= 0 {
		c.StallInterval = 30 * time.Second
	}
	if c.StallRetryLimit <= 0 {
		c.StallRetryLimit = 1
	}
	if c.DefaultMaxAttempts <= 0 {
		c.DefaultMaxAttempts = 3
	}
	if c.DefaultBackoff.Base <= 0 {
		c.DefaultBackoff = BackoffPolicy{Type: BackoffExponential, Base: time.Second}
	}
	return c
}

type Queue struct {
	cfg    Config
	store  *storage.Storage
	proc   Processor
	logger *slog.Logger

	mu     sync.Mutex
	paused bool

	stop    chan struct{}
	stopped chan struct{}
	workers sync.WaitGroup
	slots   chan struct{}
}

func New(cfg Config, store *storage.Storage, proc Processor, logger *slog.Logger) *Queue {
	cfg = cfg.withDefaults()
	return &Queue{
		cfg:    cfg,
		store:  store,
		proc:   proc,
		logger: logger,
		slots:  make(chan struct{}, cfg.Concurrency),
	}
}

// Enqueue persists a new job for the run and returns its handle. The job
// becomes dispatchable after opts.Delay.
func (q *Queue) Enqueue(runID, deviceID string, opts EnqueueOptions) (*Job, error) {
	job := Job{
		ID:          opts.JobID,
		RunID:       runID,
		DeviceID:    deviceID,
		Priority:    opts.Priority,
		MaxAttempts: opts.MaxAttempts,
		Backoff:     opts.Backoff,
		Timeout:     opts.Timeout,
	}
	if job.ID == "" {
		job.ID = uuid.New().String()
	}
	if job.MaxAttempts <= 0 {
		job.MaxAttempts = q.cfg.DefaultMaxAttempts
	}
	if job.Backoff.Base <= 0 {
		job.Backoff = q.cfg.DefaultBackoff
	}
	if job.Backoff.Type != BackoffFixed && job.Backoff.Type != BackoffExponential {
		return nil, core.NewValidationError("unknown backoff type: %s", job.Backoff.Type)
	}
	if job.Timeout <= 0 {
		job.Timeout = q.cfg.DefaultTimeout
	}

	now := storage.NowMs()
	rec := storage.JobRecord{
		Uuid:          job.ID,
		RunUuid:       runID,
		DeviceUuid:    deviceID,
		Priority:      job.Priority,
		MaxAttempts:   job.MaxAttempts,
		BackoffType:   job.Backoff.Type,
		BackoffBaseMs: job.Backoff.Base.Milliseconds(),
		TimeoutMs:     job.Timeout.Milliseconds(),
		ScheduledAtMs: now + opts.Delay.Milliseconds(),
		CreatedAtMs:   now,
		UpdatedAtMs:   now,
	}
	if err := q.store.JobInsert(rec); err != nil {
		if storage.IsDbError(err, storage.ErrDbConstraintUnique) {
			return nil, core.NewConflictError("job %s already exists", job.ID)
		}
		return nil, fmt.Errorf("unable to persist job: %w", err)
	}
	q.logger.Info("job enqueued", "job", job.ID, "run", runID, "priority", job.Priority)
	return &job, nil
}

// Pause halts dispatch without discarding queued work. Active jobs finish.
func (q *Queue) Pause() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.paused = true
	q.logger.Info("queue paused")
}

func (q *Queue) Resume() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.paused = false
	q.logger.Info("queue resumed")
}

func (q *Queue) isPaused() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.paused
}

// GetStats reports per-state job counts.
func (q *Queue) GetStats() (Stats, error) {
	counts, err := q.store.JobCounts()
	if err != nil {
		return Stats{}, err
	}
	delayed, err := q.store.JobDelayedCount(storage.NowMs())
	if err != nil {
		return Stats{}, err
	}
	stats := Stats{
		Waiting:   counts[StatusWaiting] - delayed,
		Active:    counts[StatusActive],
		Completed: counts[StatusCompleted],
		Failed:    counts[StatusFailed],
		Delayed:   delayed,
	}
	if q.isPaused() {
		stats.Paused = stats.Waiting
		stats.Waiting = 0
	}
	return stats, nil
}

// CleanOldJobs prunes terminal jobs past the grace window. jobType is
// "completed", "failed", or empty for both. Returns the number removed.
func (q *Queue) CleanOldJobs(grace time.Duration, limit int, jobType string) (int, error) {
	if limit <= 0 {
		limit = 1000
	}
	before := storage.NowMs() - grace.Milliseconds()
	switch jobType {
	case StatusCompleted, StatusFailed:
		return q.store.JobClean(jobType, before, limit)
	case "":
		completed, err := q.store.JobClean(StatusCompleted, before, limit)
		if err != nil {
			return completed, err
		}
		failed, err := q.store.JobClean(StatusFailed, before, limit-completed)
		return completed + failed, err
	}
	return 0, core.NewValidationError("cannot clean jobs of type %q", jobType)
}
