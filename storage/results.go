// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package storage

func (s *Storage) ResultCreate(r TestResult) error {
	if r.CreatedAt == 0 {
		r.CreatedAt = Now()
	}
	return s.stmtResultCreate.run(r)
}

// ResultsByRun returns results in recording order, which within one run is
// suite declaration order.
func (s *Storage) ResultsByRun(runUuid string) ([]TestResult, error) {
	return s.stmtResultsByRun.run(runUuid)
}

// ResultsRecent returns up to limit results recorded at or after since,
// newest first. The history tracker replays them on startup.
func (s *Storage) ResultsRecent(limit int, since Timestamp) ([]TestResult, error) {
	return s.stmtResultsRecent.run(limit, since)
}

type stmtResultCreate DbStmt

func (s *stmtResultCreate) Init(db DbHandle) (err error) {
	s.Stmt, err = db.Prepare("ResultCreate", `
		INSERT INTO test_results(uuid, run_uuid, case_uuid, status, duration_ms, retries, error_message, artifacts, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	return
}

func (s *stmtResultCreate) run(r TestResult) error {
	_, err := s.Stmt.Exec(r.Uuid, r.RunUuid, r.CaseUuid, r.Status, r.DurationMs,
		r.Retries, r.ErrorMessage, joinTags(r.Artifacts), r.CreatedAt)
	return err
}

type stmtResultsByRun DbStmt

func (s *stmtResultsByRun) Init(db DbHandle) (err error) {
	s.Stmt, err = db.Prepare("ResultsByRun", `
		SELECT uuid, case_uuid, status, duration_ms, retries, error_message, artifacts, created_at
		FROM test_results
		WHERE run_uuid = ?
		ORDER BY rowid`,
	)
	return
}

func (s *stmtResultsByRun) run(runUuid string) ([]TestResult, error) {
	rows, err := s.Stmt.Query(runUuid)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []TestResult
	for rows.Next() {
		r := TestResult{RunUuid: runUuid}
		var artifacts string
		if err := rows.Scan(&r.Uuid, &r.CaseUuid, &r.Status, &r.DurationMs,
			&r.Retries, &r.ErrorMessage, &artifacts, &r.CreatedAt); err != nil {
			return nil, err
		}
		r.Artifacts = splitTags(artifacts)
		results = append(results, r)
	}
	return results, rows.Err()
}

type stmtResultsRecent DbStmt

func (s *stmtResultsRecent) Init(db DbHandle) (err error) {
	s.Stmt, err = db.Prepare("ResultsRecent", `
		SELECT uuid, run_uuid, case_uuid, status, duration_ms, retries, created_at
		FROM test_results
		WHERE created_at >= ?
		ORDER BY created_at DESC
		LIMIT ?`,
	)
	return
}

func (s *stmtResultsRecent) run(limit int, since Timestamp) ([]TestResult, error) {
	rows, err := s.Stmt.Query(since, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []TestResult
	for rows.Next() {
		var r TestResult
		if err := rows.Scan(&r.Uuid, &r.RunUuid, &r.CaseUuid, &r.Status,
			&r.DurationMs, &r.Retries, &r.CreatedAt); err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, rows.Err()
}
