// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package storage

import (
	"database/sql"
	"fmt"
)

func (s *Storage) SuiteCreate(uuid, name, platform string) (*TestSuite, error) {
	now := Now()
	if err := s.stmtSuiteCreate.run(uuid, name, platform, now); err != nil {
		if IsDbError(err, ErrDbConstraintUnique) {
			return nil, fmt.Errorf("suite %s already exists: %w", name, err)
		}
		return nil, err
	}
	return &TestSuite{Uuid: uuid, Name: name, Platform: platform, CreatedAt: now}, nil
}

// SuiteGet returns nil, nil when the suite does not exist.
func (s *Storage) SuiteGet(uuid string) (*TestSuite, error) {
	t := TestSuite{Uuid: uuid}
	if err := s.stmtSuiteGet.run(uuid, &t); err != nil {
		if err == sql.ErrNoRows {
			err = nil
		}
		return nil, err
	}
	return &t, nil
}

func (s *Storage) SuiteGetByName(name string) (*TestSuite, error) {
	t := TestSuite{Name: name}
	if err := s.stmtSuiteGetByName.run(name, &t); err != nil {
		if err == sql.ErrNoRows {
			err = nil
		}
		return nil, err
	}
	return &t, nil
}

func (s *Storage) SuiteList() ([]TestSuite, error) {
	return s.stmtSuiteList.run()
}

func (s *Storage) CaseCreate(c TestCase) error {
	return s.stmtCaseCreate.run(c)
}

// CaseGet returns nil, nil when the case does not exist.
func (s *Storage) CaseGet(uuid string) (*TestCase, error) {
	c := TestCase{Uuid: uuid}
	if err := s.stmtCaseGet.run(uuid, &c); err != nil {
		if err == sql.ErrNoRows {
			err = nil
		}
		return nil, err
	}
	return &c, nil
}

// CasesBySuite returns the suite's cases in declaration order.
func (s *Storage) CasesBySuite(suiteUuid string) ([]TestCase, error) {
	return s.stmtCasesBySuite.run(suiteUuid)
}

type stmtSuiteCreate DbStmt

func (s *stmtSuiteCreate) Init(db DbHandle) (err error) {
	s.Stmt, err = db.Prepare("SuiteCreate", `
		INSERT INTO suites(uuid, name, platform, created_at) VALUES (?, ?, ?, ?)`,
	)
	return
}

func (s *stmtSuiteCreate) run(uuid, name, platform string, now Timestamp) error {
	_, err := s.Stmt.Exec(uuid, name, platform, now)
	return err
}

type stmtSuiteGet DbStmt

func (s *stmtSuiteGet) Init(db DbHandle) (err error) {
	s.Stmt, err = db.Prepare("SuiteGet", `
		SELECT name, platform, created_at FROM suites WHERE uuid = ?`,
	)
	return
}

func (s *stmtSuiteGet) run(uuid string, t *TestSuite) error {
	return s.Stmt.QueryRow(uuid).Scan(&t.Name, &t.Platform, &t.CreatedAt)
}

type stmtSuiteGetByName DbStmt

func (s *stmtSuiteGetByName) Init(db DbHandle) (err error) {
	s.Stmt, err = db.Prepare("SuiteGetByName", `
		SELECT uuid, platform, created_at FROM suites WHERE name = ?`,
	)
	return
}

func (s *stmtSuiteGetByName) run(name string, t *TestSuite) error {
	return s.Stmt.QueryRow(name).Scan(&t.Uuid, &t.Platform, &t.CreatedAt)
}

type stmtSuiteList DbStmt

func (s *stmtSuiteList) Init(db DbHandle) (err error) {
	s.Stmt, err = db.Prepare("SuiteList", `
		SELECT uuid, name, platform, created_at FROM suites ORDER BY name`,
	)
	return
}

func (s *stmtSuiteList) run() ([]TestSuite, error) {
	rows, err := s.Stmt.Query()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var suites []TestSuite
	for rows.Next() {
		var t TestSuite
		if err := rows.Scan(&t.Uuid, &t.Name, &t.Platform, &t.CreatedAt); err != nil {
			return nil, err
		}
		suites = append(suites, t)
	}
	return suites, rows.Err()
}

type stmtCaseCreate DbStmt

func (s *stmtCaseCreate) Init(db DbHandle) (err error) {
	s.Stmt, err = db.Prepare("CaseCreate", `
		INSERT INTO test_cases(uuid, suite_uuid, name, timeout_ms, tags, position)
		VALUES (?, ?, ?, ?, ?, ?)`,
	)
	return
}

func (s *stmtCaseCreate) run(c TestCase) error {
	_, err := s.Stmt.Exec(c.Uuid, c.SuiteUuid, c.Name, c.TimeoutMs, joinTags(c.Tags), c.Position)
	return err
}

type stmtCaseGet DbStmt

func (s *stmtCaseGet) Init(db DbHandle) (err error) {
	s.Stmt, err = db.Prepare("CaseGet", `
		SELECT suite_uuid, name, timeout_ms, tags, position FROM test_cases WHERE uuid = ?`,
	)
	return
}

func (s *stmtCaseGet) run(uuid string, c *TestCase) error {
	var tags string
	err := s.Stmt.QueryRow(uuid).Scan(&c.SuiteUuid, &c.Name, &c.TimeoutMs, &tags, &c.Position)
	c.Tags = splitTags(tags)
	return err
}

type stmtCasesBySuite DbStmt

func (s *stmtCasesBySuite) Init(db DbHandle) (err error) {
	s.Stmt, err = db.Prepare("CasesBySuite", `
		SELECT uuid, name, timeout_ms, tags, position
		FROM test_cases
		WHERE suite_uuid = ?
		ORDER BY position`,
	)
	return
}

func (s *stmtCasesBySuite) run(suiteUuid string) ([]TestCase, error) {
	rows, err := s.Stmt.Query(suiteUuid)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cases []TestCase
	for rows.Next() {
		c := TestCase{SuiteUuid: suiteUuid}
		var tags string
		if err := rows.Scan(&c.Uuid, &c.Name, &c.TimeoutMs, &tags, &c.Position); err != nil {
			return nil, err
		}
		c.Tags = splitTags(tags)
		cases = append(cases, c)
	}
	return cases, rows.Err()
}
