// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

//go:build !nodb

package storage

const schema = `
CREATE TABLE IF NOT EXISTS devices (
	uuid        TEXT PRIMARY KEY,
	name        TEXT NOT NULL,
	platform    TEXT NOT NULL,
	os_version  TEXT NOT NULL DEFAULT "",
	is_emulator BOOLEAN NOT NULL DEFAULT false,
	status      TEXT NOT NULL DEFAULT "AVAILABLE",
	created_at  INTEGER NOT NULL,
	last_seen   INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS suites (
	uuid       TEXT PRIMARY KEY,
	name       TEXT NOT NULL UNIQUE,
	platform   TEXT NOT NULL DEFAULT "",
	created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS test_cases (
	uuid       TEXT PRIMARY KEY,
	suite_uuid TEXT NOT NULL REFERENCES suites(uuid),
	name       TEXT NOT NULL,
	timeout_ms INTEGER NOT NULL DEFAULT 30000,
	tags       TEXT NOT NULL DEFAULT "",
	position   INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS test_cases_suite ON test_cases(suite_uuid, position);

CREATE TABLE IF NOT EXISTS test_runs (
	uuid         TEXT PRIMARY KEY,
	suite_uuid   TEXT NOT NULL REFERENCES suites(uuid),
	device_uuid  TEXT NOT NULL REFERENCES devices(uuid),
	status       TEXT NOT NULL DEFAULT "PENDING",
	started_at   INTEGER,
	completed_at INTEGER,
	passed       INTEGER NOT NULL DEFAULT 0,
	failed       INTEGER NOT NULL DEFAULT 0,
	skipped      INTEGER NOT NULL DEFAULT 0,
	error        TEXT NOT NULL DEFAULT "",
	metadata     TEXT NOT NULL DEFAULT "",
	created_at   INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS test_runs_status ON test_runs(status);

CREATE TABLE IF NOT EXISTS test_results (
	uuid          TEXT PRIMARY KEY,
	run_uuid      TEXT NOT NULL REFERENCES test_runs(uuid),
	case_uuid     TEXT NOT NULL REFERENCES test_cases(uuid),
	status        TEXT NOT NULL,
	duration_ms   INTEGER NOT NULL,
	retries       INTEGER NOT NULL DEFAULT 0,
	error_message TEXT NOT NULL DEFAULT "",
	artifacts     TEXT NOT NULL DEFAULT "",
	created_at    INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS test_results_run ON test_results(run_uuid);
CREATE INDEX IF NOT EXISTS test_results_created ON test_results(created_at);

CREATE TABLE IF NOT EXISTS jobs (
	uuid            TEXT PRIMARY KEY,
	run_uuid        TEXT NOT NULL REFERENCES test_runs(uuid),
	device_uuid     TEXT NOT NULL,
	status          TEXT NOT NULL DEFAULT "waiting",
	priority        INTEGER NOT NULL DEFAULT 0,
	attempts        INTEGER NOT NULL DEFAULT 0,
	max_attempts    INTEGER NOT NULL DEFAULT 1,
	backoff_type    TEXT NOT NULL DEFAULT "exponential",
	backoff_base_ms INTEGER NOT NULL DEFAULT 1000,
	timeout_ms      INTEGER NOT NULL DEFAULT 0,
	scheduled_at    INTEGER NOT NULL,
	created_at      INTEGER NOT NULL,
	updated_at      INTEGER NOT NULL,
	last_heartbeat  INTEGER NOT NULL DEFAULT 0,
	stall_count     INTEGER NOT NULL DEFAULT 0,
	last_error      TEXT NOT NULL DEFAULT ""
);
CREATE INDEX IF NOT EXISTS jobs_dispatch ON jobs(status, priority DESC, created_at);
`
