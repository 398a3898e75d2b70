// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package storage

import (
	"database/sql"
)

func (s *Storage) JobInsert(j JobRecord) error {
	return s.stmtJobInsert.run(j)
}

// JobGet returns nil, nil when the job does not exist.
func (s *Storage) JobGet(uuid string) (*JobRecord, error) {
	j := JobRecord{Uuid: uuid}
	if err := s.stmtJobGet.run(uuid, &j); err != nil {
		if err == sql.ErrNoRows {
			err = nil
		}
		return nil, err
	}
	return &j, nil
}

// JobNextReady returns the highest-priority waiting job whose scheduled time
// has passed, FIFO within a priority. nil, nil when nothing is ready.
func (s *Storage) JobNextReady(nowMs int64) (*JobRecord, error) {
	j, err := s.stmtJobNextReady.run(nowMs)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return j, err
}

// JobActivate transitions a waiting job to active. The status guard makes
// the claim safe against a concurrent dispatcher; false means someone else
// took it.
func (s *Storage) JobActivate(uuid string, nowMs int64) (bool, error) {
	return s.stmtJobActivate.run(uuid, nowMs)
}

// JobHeartbeat records worker liveness for stall detection.
func (s *Storage) JobHeartbeat(uuid string, nowMs int64) error {
	return s.stmtJobHeartbeat.run(uuid, nowMs)
}

// JobFinish marks an active job completed or failed.
func (s *Storage) JobFinish(uuid, status, lastError string, nowMs int64) error {
	return s.stmtJobFinish.run(uuid, status, lastError, nowMs)
}

// JobRequeue returns a job to the waiting state with its next attempt
// scheduled at scheduledAtMs. bumpStall distinguishes stall recoveries from
// ordinary processing failures.
func (s *Storage) JobRequeue(uuid string, attempts int, scheduledAtMs int64, lastError string, bumpStall bool, nowMs int64) error {
	return s.stmtJobRequeue.run(uuid, attempts, scheduledAtMs, lastError, bumpStall, nowMs)
}

// JobStalled lists active jobs whose last heartbeat is older than cutoffMs.
func (s *Storage) JobStalled(cutoffMs int64) ([]JobRecord, error) {
	return s.stmtJobStalled.run(cutoffMs)
}

// JobCounts returns the number of jobs per status.
func (s *Storage) JobCounts() (map[string]int, error) {
	return s.stmtJobCounts.run()
}

// JobDelayedCount returns how many waiting jobs are scheduled after nowMs.
func (s *Storage) JobDelayedCount(nowMs int64) (int, error) {
	return s.stmtJobDelayedCount.run(nowMs)
}

// JobClean deletes up to limit jobs with the given terminal status whose
// last update is older than beforeMs. Returns the number removed.
func (s *Storage) JobClean(status string, beforeMs int64, limit int) (int, error) {
	return s.stmtJobClean.run(status, beforeMs, limit)
}

type stmtJobInsert DbStmt

func (s *stmtJobInsert) Init(db DbHandle) (err error) {
	s.Stmt, err = db.Prepare("JobInsert", `
		INSERT INTO jobs(uuid, run_uuid, device_uuid, status, priority, attempts, max_attempts,
			backoff_type, backoff_base_ms, timeout_ms, scheduled_at, created_at, updated_at)
		VALUES (?, ?, ?, "waiting", ?, 0, ?, ?, ?, ?, ?, ?, ?)`,
	)
	return
}

func (s *stmtJobInsert) run(j JobRecord) error {
	_, err := s.Stmt.Exec(j.Uuid, j.RunUuid, j.DeviceUuid, j.Priority, j.MaxAttempts,
		j.BackoffType, j.BackoffBaseMs, j.TimeoutMs, j.ScheduledAtMs, j.CreatedAtMs, j.UpdatedAtMs)
	return err
}

const jobColumns = `
	run_uuid, device_uuid, status, priority, attempts, max_attempts,
	backoff_type, backoff_base_ms, timeout_ms, scheduled_at, created_at,
	updated_at, last_heartbeat, stall_count, last_error`

func scanJob(row interface{ Scan(...any) error }, j *JobRecord) error {
	return row.Scan(&j.RunUuid, &j.DeviceUuid, &j.Status, &j.Priority, &j.Attempts,
		&j.MaxAttempts, &j.BackoffType, &j.BackoffBaseMs, &j.TimeoutMs,
		&j.ScheduledAtMs, &j.CreatedAtMs, &j.UpdatedAtMs, &j.HeartbeatMs,
		&j.StallCount, &j.LastError)
}

type stmtJobGet DbStmt

func (s *stmtJobGet) Init(db DbHandle) (err error) {
	s.Stmt, err = db.Prepare("JobGet", `SELECT`+jobColumns+` FROM jobs WHERE uuid = ?`)
	return
}

func (s *stmtJobGet) run(uuid string, j *JobRecord) error {
	return scanJob(s.Stmt.QueryRow(uuid), j)
}

type stmtJobNextReady DbStmt

func (s *stmtJobNextReady) Init(db DbHandle) (err error) {
	s.Stmt, err = db.Prepare("JobNextReady", `
		SELECT uuid,`+jobColumns+`
		FROM jobs
		WHERE status = "waiting" AND scheduled_at <= ?
		ORDER BY priority DESC, created_at, rowid
		LIMIT 1`,
	)
	return
}

func (s *stmtJobNextReady) run(nowMs int64) (*JobRecord, error) {
	var j JobRecord
	row := s.Stmt.QueryRow(nowMs)
	if err := row.Scan(&j.Uuid, &j.RunUuid, &j.DeviceUuid, &j.Status, &j.Priority,
		&j.Attempts, &j.MaxAttempts, &j.BackoffType, &j.BackoffBaseMs, &j.TimeoutMs,
		&j.ScheduledAtMs, &j.CreatedAtMs, &j.UpdatedAtMs, &j.HeartbeatMs,
		&j.StallCount, &j.LastError); err != nil {
		return nil, err
	}
	return &j, nil
}

type stmtJobActivate DbStmt

func (s *stmtJobActivate) Init(db DbHandle) (err error) {
	s.Stmt, err = db.Prepare("JobActivate", `
		UPDATE jobs
		SET status = "active", attempts = attempts + 1, last_heartbeat = ?, updated_at = ?
		WHERE uuid = ? AND status = "waiting"`,
	)
	return
}

func (s *stmtJobActivate) run(uuid string, nowMs int64) (bool, error) {
	res, err := s.Stmt.Exec(nowMs, nowMs, uuid)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

type stmtJobHeartbeat DbStmt

func (s *stmtJobHeartbeat) Init(db DbHandle) (err error) {
	s.Stmt, err = db.Prepare("JobHeartbeat", `
		UPDATE jobs SET last_heartbeat = ? WHERE uuid = ? AND status = "active"`,
	)
	return
}

func (s *stmtJobHeartbeat) run(uuid string, nowMs int64) error {
	_, err := s.Stmt.Exec(nowMs, uuid)
	return err
}

type stmtJobFinish DbStmt

func (s *stmtJobFinish) Init(db DbHandle) (err error) {
	s.Stmt, err = db.Prepare("JobFinish", `
		UPDATE jobs SET status = ?, last_error = ?, updated_at = ? WHERE uuid = ?`,
	)
	return
}

func (s *stmtJobFinish) run(uuid, status, lastError string, nowMs int64) error {
	_, err := s.Stmt.Exec(status, lastError, nowMs, uuid)
	return err
}

type stmtJobRequeue DbStmt

func (s *stmtJobRequeue) Init(db DbHandle) (err error) {
	s.Stmt, err = db.Prepare("JobRequeue", `
		UPDATE jobs
		SET status = "waiting", attempts = ?, scheduled_at = ?, last_error = ?,
		    stall_count = stall_count + ?, updated_at = ?
		WHERE uuid = ?`,
	)
	return
}

func (s *stmtJobRequeue) run(uuid string, attempts int, scheduledAtMs int64, lastError string, bumpStall bool, nowMs int64) error {
	bump := 0
	if bumpStall {
		bump = 1
	}
	_, err := s.Stmt.Exec(attempts, scheduledAtMs, lastError, bump, nowMs, uuid)
	return err
}

type stmtJobStalled DbStmt

func (s *stmtJobStalled) Init(db DbHandle) (err error) {
	s.Stmt, err = db.Prepare("JobStalled", `
		SELECT uuid,`+jobColumns+`
		FROM jobs
		WHERE status = "active" AND last_heartbeat < ?`,
	)
	return
}

func (s *stmtJobStalled) run(cutoffMs int64) ([]JobRecord, error) {
	rows, err := s.Stmt.Query(cutoffMs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []JobRecord
	for rows.Next() {
		var j JobRecord
		if err := rows.Scan(&j.Uuid, &j.RunUuid, &j.DeviceUuid, &j.Status, &j.Priority,
			&j.Attempts, &j.MaxAttempts, &j.BackoffType, &j.BackoffBaseMs, &j.TimeoutMs,
			&j.ScheduledAtMs, &j.CreatedAtMs, &j.UpdatedAtMs, &j.HeartbeatMs,
			&j.StallCount, &j.LastError); err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

type stmtJobCounts DbStmt

func (s *stmtJobCounts) Init(db DbHandle) (err error) {
	s.Stmt, err = db.Prepare("JobCounts", `
		SELECT status, COUNT(*) FROM jobs GROUP BY status`,
	)
	return
}

func (s *stmtJobCounts) run() (map[string]int, error) {
	rows, err := s.Stmt.Query()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := map[string]int{}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

type stmtJobDelayedCount DbStmt

func (s *stmtJobDelayedCount) Init(db DbHandle) (err error) {
	s.Stmt, err = db.Prepare("JobDelayedCount", `
		SELECT COUNT(*) FROM jobs WHERE status = "waiting" AND scheduled_at > ?`,
	)
	return
}

func (s *stmtJobDelayedCount) run(nowMs int64) (int, error) {
	var n int
	err := s.Stmt.QueryRow(nowMs).Scan(&n)
	return n, err
}

type stmtJobClean DbStmt

func (s *stmtJobClean) Init(db DbHandle) (err error) {
	s.Stmt, err = db.Prepare("JobClean", `
		DELETE FROM jobs
		WHERE uuid IN (
			SELECT uuid FROM jobs
			WHERE status = ? AND updated_at < ?
			ORDER BY updated_at
			LIMIT ?
		)`,
	)
	return
}

func (s *stmtJobClean) run(status string, beforeMs int64, limit int) (int, error) {
	res, err := s.Stmt.Exec(status, beforeMs, limit)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}
