// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package storage

// Storage bundles the prepared statements for every entity. One instance is
// created at startup and shared by all components.
type Storage struct {
	db *DbHandle
	fs *FsHandle

	stmtDeviceCreate    stmtDeviceCreate
	stmtDeviceGet       stmtDeviceGet
	stmtDeviceList      stmtDeviceList
	stmtDeviceSetStatus stmtDeviceSetStatus

	stmtSuiteCreate    stmtSuiteCreate
	stmtSuiteGet       stmtSuiteGet
	stmtSuiteGetByName stmtSuiteGetByName
	stmtSuiteList      stmtSuiteList
	stmtCaseCreate     stmtCaseCreate
	stmtCaseGet        stmtCaseGet
	stmtCasesBySuite   stmtCasesBySuite

	stmtRunCreate   stmtRunCreate
	stmtRunGet      stmtRunGet
	stmtRunStart    stmtRunStart
	stmtRunComplete stmtRunComplete
	stmtRunCancel   stmtRunCancel
	stmtRunReopen   stmtRunReopen
	stmtRunList     stmtRunList

	stmtResultCreate  stmtResultCreate
	stmtResultsByRun  stmtResultsByRun
	stmtResultsRecent stmtResultsRecent

	stmtJobInsert       stmtJobInsert
	stmtJobGet          stmtJobGet
	stmtJobNextReady    stmtJobNextReady
	stmtJobActivate     stmtJobActivate
	stmtJobHeartbeat    stmtJobHeartbeat
	stmtJobFinish       stmtJobFinish
	stmtJobRequeue      stmtJobRequeue
	stmtJobStalled      stmtJobStalled
	stmtJobCounts       stmtJobCounts
	stmtJobDelayedCount stmtJobDelayedCount
	stmtJobClean        stmtJobClean
}

func NewStorage(db *DbHandle, fs *FsHandle) (*Storage, error) {
	s := Storage{db: db, fs: fs}

	if err := db.InitStmt(
		&s.stmtDeviceCreate,
		&s.stmtDeviceGet,
		&s.stmtDeviceList,
		&s.stmtDeviceSetStatus,
		&s.stmtSuiteCreate,
		&s.stmtSuiteGet,
		&s.stmtSuiteGetByName,
		&s.stmtSuiteList,
		&s.stmtCaseCreate,
		&s.stmtCaseGet,
		&s.stmtCasesBySuite,
		&s.stmtRunCreate,
		&s.stmtRunGet,
		&s.stmtRunStart,
		&s.stmtRunComplete,
		&s.stmtRunCancel,
		&s.stmtRunReopen,
		&s.stmtRunList,
		&s.stmtResultCreate,
		&s.stmtResultsByRun,
		&s.stmtResultsRecent,
		&s.stmtJobInsert,
		&s.stmtJobGet,
		&s.stmtJobNextReady,
		&s.stmtJobActivate,
		&s.stmtJobHeartbeat,
		&s.stmtJobFinish,
		&s.stmtJobRequeue,
		&s.stmtJobStalled,
		&s.stmtJobCounts,
		&s.stmtJobDelayedCount,
		&s.stmtJobClean,
	); err != nil {
		return nil, err
	}
	return &s, nil
}

// Artifacts exposes the filesystem artifact store.
func (s *Storage) Artifacts() *FsHandle {
	return s.fs
}
