// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

// Package storage is the sqlite-backed persistence layer for devices, test
// suites/cases, runs, results and queue jobs, plus file storage for test
// artifacts. All SQL goes through prepared statements initialized once at
// startup.
package storage

import (
	"strings"
	"time"
)

type Timestamp int64

func (t Timestamp) Time() time.Time {
	return time.Unix(int64(t), 0)
}

func Now() Timestamp {
	return Timestamp(time.Now().Unix())
}

// Device is a physical or emulated device registered with the lab.
type Device struct {
	Uuid       string `json:"uuid"`
	Name       string `json:"name"`
	Platform   string `json:"platform"`
	OsVersion  string `json:"osVersion"`
	IsEmulator bool   `json:"isEmulator"`
	Status     string `json:"status"`
	CreatedAt  Timestamp
	LastSeen   Timestamp
}

// TestSuite groups the test cases of one application flow set.
type TestSuite struct {
	Uuid      string `json:"uuid"`
	Name      string `json:"name"`
	Platform  string `json:"platform"`
	CreatedAt Timestamp
}

// TestCase is immutable reference data: the core reads cases, never writes
// them. Position preserves suite declaration order.
type TestCase struct {
	Uuid      string `json:"uuid"`
	SuiteUuid string `json:"suiteUuid"`
	Name      string `json:"name"`
	TimeoutMs int64  `json:"timeoutMs"`
	Tags      []string
	Position  int
}

func (c TestCase) Timeout() time.Duration {
	return time.Duration(c.TimeoutMs) * time.Millisecond
}

// TestRun is one execution request of a suite on a device.
type TestRun struct {
	Uuid        string `json:"uuid"`
	SuiteUuid   string `json:"suiteUuid"`
	DeviceUuid  string `json:"deviceUuid"`
	Status      string `json:"status"`
	StartedAt   *Timestamp
	CompletedAt *Timestamp
	Passed      int    `json:"passed"`
	Failed      int    `json:"failed"`
	Skipped     int    `json:"skipped"`
	Error       string `json:"error,omitempty"`
	Metadata    string `json:"metadata,omitempty"`
	CreatedAt   Timestamp
}

// TestResult is the final outcome of one test case within one run.
type TestResult struct {
	Uuid         string   `json:"uuid"`
	RunUuid      string   `json:"runUuid"`
	CaseUuid     string   `json:"caseUuid"`
	Status       string   `json:"status"`
	DurationMs   int64    `json:"durationMs"`
	Retries      int      `json:"retries"`
	ErrorMessage string   `json:"errorMessage,omitempty"`
	Artifacts    []string `json:"artifacts,omitempty"`
	CreatedAt    Timestamp
}

// JobRecord is the persisted form of a queue job. The queue package owns
// these rows exclusively until the job is terminal. Job timestamps are unix
// milliseconds: backoff delays are sub-second resolution.
type JobRecord struct {
	Uuid          string
	RunUuid       string
	DeviceUuid    string
	Status        string
	Priority      int
	Attempts      int
	MaxAttempts   int
	BackoffType   string
	BackoffBaseMs int64
	TimeoutMs     int64
	ScheduledAtMs int64
	CreatedAtMs   int64
	UpdatedAtMs   int64
	HeartbeatMs   int64
	StallCount    int
	LastError     string
}

func NowMs() int64 {
	return time.Now().UnixMilli()
}

// Tags are stored as a comma separated list.
func joinTags(tags []string) string {
	return strings.Join(tags, ",")
}

func splitTags(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}
