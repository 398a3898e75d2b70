// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

//go:build !nodb

package storage

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"
)

var ErrDbConstraintUnique = sqlite3.ErrConstraintUnique

// IsDbError reports whether err is a sqlite error with the given code or
// extended code.
func IsDbError(err error, code any) bool {
	var serr sqlite3.Error
	if !errors.As(err, &serr) {
		return false
	}
	switch c := code.(type) {
	case sqlite3.ErrNo:
		return serr.Code == c
	case sqlite3.ErrNoExtended:
		return serr.ExtendedCode == c
	}
	return false
}

type DbHandle struct {
	db *sql.DB
}

// NewDb opens (creating if needed) the sqlite database at dbfile and applies
// the schema. WAL mode keeps concurrent worker writes from blocking the
// dispatcher's reads.
func NewDb(dbfile string) (*DbHandle, error) {
	db, err := sql.Open("sqlite3", dbfile+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("unable to open database %s: %w", dbfile, err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("unable to initialize database schema: %w", err)
	}
	return &DbHandle{db: db}, nil
}

func (d DbHandle) Close() error {
	return d.db.Close()
}

func (d DbHandle) Prepare(name, query string) (*sql.Stmt, error) {
	stmt, err := d.db.Prepare(query)
	if err != nil {
		return nil, fmt.Errorf("unable to prepare statement %s: %w", name, err)
	}
	return stmt, nil
}

func (d DbHandle) InitStmt(stmts ...DbStmtInit) error {
	for _, s := range stmts {
		if err := s.Init(d); err != nil {
			return err
		}
	}
	return nil
}

type DbStmt struct {
	Stmt *sql.Stmt
}

type DbStmtInit interface {
	Init(db DbHandle) error
}
