// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package queue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/testforge/devicelab/core"
	"github.com/testforge/devicelab/storage"
)

// Start launches the dispatch and stall-detection loops. Jobs left active
// by a previous process are requeued first so a crash never strands work.
func (q *Queue) Start(ctx context.Context) error {
	if err := q.recoverStranded(); err != nil {
		return err
	}
	q.stop = make(chan struct{})
	q.stopped = make(chan struct{})
	go q.dispatchLoop(ctx)
	go q.stallLoop(ctx)
	return nil
}

// Shutdown stops dispatching and waits for active workers to finish, up to
// the context deadline.
func (q *Queue) Shutdown(ctx context.Context) error {
	if q.stop == nil {
		return nil
	}
	close(q.stop)
	<-q.stopped

	done := make(chan struct{})
	go func() {
		q.workers.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("queue shutdown timed out with workers still active: %w", ctx.Err())
	}
}

// recoverStranded requeues every job a dead process left active, without
// consuming an attempt. Runs before dispatch starts, so no worker of this
// process can own a job yet.
func (q *Queue) recoverStranded() error {
	stranded, err := q.store.JobStalled(storage.NowMs() + 1)
	if err != nil {
		return fmt.Errorf("unable to scan for stranded jobs: %w", err)
	}
	for _, j := range stranded {
		q.logger.Warn("recovering job stranded by previous process", "job", j.Uuid, "run", j.RunUuid)
		if err := q.requeueStalled(j); err != nil {
			return err
		}
	}
	return nil
}

func (q *Queue) dispatchLoop(ctx context.Context) {
	defer close(q.stopped)
	ticker := time.NewTicker(q.cfg.PollInterval)
	defer ticker.Stop()

	for {
		q.dispatchReady(ctx)
		select {
		case <-q.stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// dispatchReady claims and hands out ready jobs until no slot or no job is
// left.
func (q *Queue) dispatchReady(ctx context.Context) {
	for {
		if q.isPaused() {
			return
		}
		select {
		case q.slots <- struct{}{}:
		default:
			return // all workers busy
		}

		job, err := q.claimNext()
		if err != nil {
			q.logger.Error("dispatch failed", "error", err)
		}
		if job == nil {
			<-q.slots
			return
		}

		q.workers.Add(1)
		go func(j Job) {
			defer q.workers.Done()
			defer func() { <-q.slots }()
			q.process(ctx, j)
		}(*job)
	}
}

func (q *Queue) claimNext() (*Job, error) {
	now := storage.NowMs()
	rec, err := q.store.JobNextReady(now)
	if err != nil || rec == nil {
		return nil, err
	}
	claimed, err := q.store.JobActivate(rec.Uuid, now)
	if err != nil || !claimed {
		return nil, err
	}
	return &Job{
		ID:          rec.Uuid,
		RunID:       rec.RunUuid,
		DeviceID:    rec.DeviceUuid,
		Priority:    rec.Priority,
		Attempts:    rec.Attempts + 1,
		MaxAttempts: rec.MaxAttempts,
		Backoff: BackoffPolicy{
			Type: rec.BackoffType,
			Base: time.Duration(rec.BackoffBaseMs) * time.Millisecond,
		},
		Timeout: time.Duration(rec.TimeoutMs) * time.Millisecond,
	}, nil
}

// process runs one job attempt with heartbeating and the per-job timeout.
func (q *Queue) process(ctx context.Context, job Job) {
	log := q.logger.With("job", job.ID, "run", job.RunID, "attempt", job.Attempts)

	jobCtx := ctx
	if job.Timeout > 0 {
		var cancel context.CancelFunc
		jobCtx, cancel = context.WithTimeout(ctx, job.Timeout)
		defer cancel()
	}

	hbStop := make(chan struct{})
	go func() {
		ticker := time.NewTicker(q.cfg.HeartbeatInterval)
		defer ticker.Stop()
		for {
			select {
			case <-hbStop:
				return
			case <-ticker.C:
				if err := q.store.JobHeartbeat(job.ID, storage.NowMs()); err != nil {
					log.Error("heartbeat failed", "error", err)
				}
			}
		}
	}()

	err := q.runProcessor(jobCtx, job)
	close(hbStop)

	if err == nil {
		if ferr := q.store.JobFinish(job.ID, StatusCompleted, "", storage.NowMs()); ferr != nil {
			log.Error("unable to mark job completed", "error", ferr)
		}
		return
	}

	if jobCtx.Err() == context.DeadlineExceeded {
		err = core.NewTimeoutError("job exceeded its %s timeout", job.Timeout)
	}
	q.handleFailure(job, err)
}

// runProcessor isolates processor panics: a crashed worker fails the
// attempt instead of the process.
func (q *Queue) runProcessor(ctx context.Context, job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("processor panicked: %v", r)
		}
	}()
	return q.proc(ctx, job)
}

// handleFailure requeues with backoff, or fails the job and its run once
// attempts are exhausted. Never silently drops a job.
func (q *Queue) handleFailure(job Job, cause error) {
	log := q.logger.With("job", job.ID, "run", job.RunID)

	if job.Attempts >= job.MaxAttempts {
		exhausted := core.NewRetryExhaustedError(
			"job failed after %d attempts: %v", job.Attempts, cause)
		log.Error("job failed permanently", "error", cause, "attempts", job.Attempts)
		if err := q.store.JobFinish(job.ID, StatusFailed, exhausted.Error(), storage.NowMs()); err != nil {
			log.Error("unable to mark job failed", "error", err)
		}
		// The run fails with the job; RunComplete's guard keeps an already
		// terminal run untouched.
		if _, err := q.store.RunComplete(job.RunID, string(core.RunFailed), 0, 0, 0, exhausted.Error()); err != nil {
			log.Error("unable to mark run failed", "error", err)
		}
		return
	}

	delay := job.Backoff.Delay(job.Attempts)
	log.Warn("job attempt failed, requeueing", "error", cause, "delay", delay)
	q.reopenRun(job.RunID, log)
	if err := q.store.JobRequeue(job.ID, job.Attempts, storage.NowMs()+delay.Milliseconds(),
		cause.Error(), false, storage.NowMs()); err != nil {
		log.Error("unable to requeue job", "error", err)
	}
}

// reopenRun resets a requeued job's run to PENDING so the next attempt can
// start it; a cancelled run stays cancelled and the retry winds down as a
// no-op. Runs before the job goes back to waiting, so no attempt can claim
// the job against a still-terminal run.
func (q *Queue) reopenRun(runID string, log *slog.Logger) {
	if _, err := q.store.RunReopen(runID); err != nil {
		log.Error("unable to reopen run for retry", "error", err)
	}
}

// stallLoop periodically requeues active jobs whose heartbeat went silent.
func (q *Queue) stallLoop(ctx context.Context) {
	ticker := time.NewTicker(q.cfg.StallInterval)
	defer ticker.Stop()
	for {
		select {
		case <-q.stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			q.checkStalled()
		}
	}
}

func (q *Queue) checkStalled() {
	cutoff := storage.NowMs() - q.cfg.StallInterval.Milliseconds()
	stalled, err := q.store.JobStalled(cutoff)
	if err != nil {
		q.logger.Error("stall scan failed", "error", err)
		return
	}
	for _, j := range stalled {
		if err := q.requeueStalled(j); err != nil {
			q.logger.Error("unable to recover stalled job", "job", j.Uuid, "error", err)
		}
	}
}

func (q *Queue) requeueStalled(j storage.JobRecord) error {
	if j.StallCount >= q.cfg.StallRetryLimit {
		msg := fmt.Sprintf("job stalled %d times, giving up", j.StallCount+1)
		q.logger.Error("stalled job failed permanently", "job", j.Uuid, "run", j.RunUuid)
		if err := q.store.JobFinish(j.Uuid, StatusFailed, msg, storage.NowMs()); err != nil {
			return err
		}
		_, err := q.store.RunComplete(j.RunUuid, string(core.RunFailed), 0, 0, 0, msg)
		return err
	}
	q.logger.Warn("requeueing stalled job", "job", j.Uuid, "run", j.RunUuid, "stalls", j.StallCount+1)
	// A stall is not a processing failure: the interrupted attempt is
	// given back, only the stall counter moves.
	attempts := j.Attempts - 1
	if attempts < 0 {
		attempts = 0
	}
	q.reopenRun(j.RunUuid, q.logger.With("job", j.Uuid, "run", j.RunUuid))
	return q.store.JobRequeue(j.Uuid, attempts, storage.NowMs(), j.LastError, true, storage.NowMs())
}
