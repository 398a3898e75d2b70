// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package storage

import (
	"database/sql"
)

func (s *Storage) RunCreate(uuid, suiteUuid, deviceUuid, metadata string) (*TestRun, error) {
	now := Now()
	if err := s.stmtRunCreate.run(uuid, suiteUuid, deviceUuid, metadata, now); err != nil {
		return nil, err
	}
	return &TestRun{
		Uuid:       uuid,
		SuiteUuid:  suiteUuid,
		DeviceUuid: deviceUuid,
		Status:     "PENDING",
		Metadata:   metadata,
		CreatedAt:  now,
	}, nil
}

// RunGet returns nil, nil when the run does not exist.
func (s *Storage) RunGet(uuid string) (*TestRun, error) {
	r := TestRun{Uuid: uuid}
	if err := s.stmtRunGet.run(uuid, &r); err != nil {
		if err == sql.ErrNoRows {
			err = nil
		}
		return nil, err
	}
	return &r, nil
}

// RunStart moves a PENDING run to RUNNING. Returns false when the run was
// not PENDING (already started, or cancelled before dispatch).
func (s *Storage) RunStart(uuid string) (bool, error) {
	return s.stmtRunStart.run(uuid, Now())
}

// RunComplete moves a RUNNING run to a terminal status with its aggregated
// counts. The WHERE clause enforces the monotonic lifecycle: a run already
// terminal is never rewritten. Returns false when no transition happened.
func (s *Storage) RunComplete(uuid, status string, passed, failed, skipped int, errMsg string) (bool, error) {
	return s.stmtRunComplete.run(uuid, status, passed, failed, skipped, errMsg, Now())
}

// RunCancel marks a PENDING or RUNNING run CANCELLED. Returns false when the
// run was already terminal.
func (s *Storage) RunCancel(uuid string) (bool, error) {
	return s.stmtRunCancel.run(uuid, Now())
}

// RunReopen moves a RUNNING or FAILED run back to PENDING so a requeued job
// can start it again. This is the queue's retry path and the one sanctioned
// backwards transition; COMPLETED and CANCELLED stay terminal. Returns false
// when the run was not reopenable.
func (s *Storage) RunReopen(uuid string) (bool, error) {
	return s.stmtRunReopen.run(uuid)
}

func (s *Storage) RunList(limit int) ([]TestRun, error) {
	return s.stmtRunList.run(limit)
}

type stmtRunCreate DbStmt

func (s *stmtRunCreate) Init(db DbHandle) (err error) {
	s.Stmt, err = db.Prepare("RunCreate", `
		INSERT INTO test_runs(uuid, suite_uuid, device_uuid, status, metadata, created_at)
		VALUES (?, ?, ?, "PENDING", ?, ?)`,
	)
	return
}

func (s *stmtRunCreate) run(uuid, suiteUuid, deviceUuid, metadata string, now Timestamp) error {
	_, err := s.Stmt.Exec(uuid, suiteUuid, deviceUuid, metadata, now)
	return err
}

type stmtRunGet DbStmt

func (s *stmtRunGet) Init(db DbHandle) (err error) {
	s.Stmt, err = db.Prepare("RunGet", `
		SELECT suite_uuid, device_uuid, status, started_at, completed_at,
		       passed, failed, skipped, error, metadata, created_at
		FROM test_runs
		WHERE uuid = ?`,
	)
	return
}

func (s *stmtRunGet) run(uuid string, r *TestRun) error {
	var startedAt, completedAt sql.NullInt64
	err := s.Stmt.QueryRow(uuid).Scan(
		&r.SuiteUuid, &r.DeviceUuid, &r.Status, &startedAt, &completedAt,
		&r.Passed, &r.Failed, &r.Skipped, &r.Error, &r.Metadata, &r.CreatedAt)
	if startedAt.Valid {
		ts := Timestamp(startedAt.Int64)
		r.StartedAt = &ts
	}
	if completedAt.Valid {
		ts := Timestamp(completedAt.Int64)
		r.CompletedAt = &ts
	}
	return err
}

type stmtRunStart DbStmt

func (s *stmtRunStart) Init(db DbHandle) (err error) {
	s.Stmt, err = db.Prepare("RunStart", `
		UPDATE test_runs SET status = "RUNNING", started_at = ?
		WHERE uuid = ? AND status = "PENDING"`,
	)
	return
}

func (s *stmtRunStart) run(uuid string, now Timestamp) (bool, error) {
	res, err := s.Stmt.Exec(now, uuid)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

type stmtRunComplete DbStmt

func (s *stmtRunComplete) Init(db DbHandle) (err error) {
	s.Stmt, err = db.Prepare("RunComplete", `
		UPDATE test_runs
		SET status = ?, passed = ?, failed = ?, skipped = ?, error = ?, completed_at = ?
		WHERE uuid = ? AND status NOT IN ("COMPLETED", "FAILED", "CANCELLED")`,
	)
	return
}

func (s *stmtRunComplete) run(uuid, status string, passed, failed, skipped int, errMsg string, now Timestamp) (bool, error) {
	res, err := s.Stmt.Exec(status, passed, failed, skipped, errMsg, now, uuid)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

type stmtRunCancel DbStmt

func (s *stmtRunCancel) Init(db DbHandle) (err error) {
	s.Stmt, err = db.Prepare("RunCancel", `
		UPDATE test_runs SET status = "CANCELLED", completed_at = ?
		WHERE uuid = ? AND status IN ("PENDING", "RUNNING")`,
	)
	return
}

func (s *stmtRunCancel) run(uuid string, now Timestamp) (bool, error) {
	res, err := s.Stmt.Exec(now, uuid)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

type stmtRunReopen DbStmt

func (s *stmtRunReopen) Init(db DbHandle) (err error) {
	s.Stmt, err = db.Prepare("RunReopen", `
		UPDATE test_runs SET status = "PENDING", started_at = NULL,
		       completed_at = NULL, error = ""
		WHERE uuid = ? AND status IN ("RUNNING", "FAILED")`,
	)
	return
}

func (s *stmtRunReopen) run(uuid string) (bool, error) {
	res, err := s.Stmt.Exec(uuid)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

type stmtRunList DbStmt

func (s *stmtRunList) Init(db DbHandle) (err error) {
	s.Stmt, err = db.Prepare("RunList", `
		SELECT uuid, suite_uuid, device_uuid, status, started_at, completed_at,
		       passed, failed, skipped, error, metadata, created_at
		FROM test_runs
		ORDER BY created_at DESC
		LIMIT ?`,
	)
	return
}

func (s *stmtRunList) run(limit int) ([]TestRun, error) {
	rows, err := s.Stmt.Query(limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []TestRun
	for rows.Next() {
		var r TestRun
		var startedAt, completedAt sql.NullInt64
		if err := rows.Scan(&r.Uuid, &r.SuiteUuid, &r.DeviceUuid, &r.Status,
			&startedAt, &completedAt, &r.Passed, &r.Failed, &r.Skipped,
			&r.Error, &r.Metadata, &r.CreatedAt); err != nil {
			return nil, err
		}
		if startedAt.Valid {
			ts := Timestamp(startedAt.Int64)
			r.StartedAt = &ts
		}
		if completedAt.Valid {
			ts := Timestamp(completedAt.Int64)
			r.CompletedAt = &ts
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
