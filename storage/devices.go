// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package storage

import (
	"database/sql"
	"fmt"
)

func (s *Storage) DeviceCreate(uuid, name, platform, osVersion string, isEmulator bool) (*Device, error) {
	now := Now()
	if err := s.stmtDeviceCreate.run(uuid, name, platform, osVersion, isEmulator, now); err != nil {
		if IsDbError(err, ErrDbConstraintUnique) {
			return nil, fmt.Errorf("device %s already exists: %w", uuid, err)
		}
		return nil, err
	}
	return &Device{
		Uuid:       uuid,
		Name:       name,
		Platform:   platform,
		OsVersion:  osVersion,
		IsEmulator: isEmulator,
		Status:     "AVAILABLE",
		CreatedAt:  now,
		LastSeen:   now,
	}, nil
}

// DeviceGet returns nil, nil when no device with the uuid exists.
func (s *Storage) DeviceGet(uuid string) (*Device, error) {
	d := Device{Uuid: uuid}
	if err := s.stmtDeviceGet.run(uuid, &d); err != nil {
		if err == sql.ErrNoRows {
			err = nil
		}
		return nil, err
	}
	return &d, nil
}

func (s *Storage) DeviceList() ([]Device, error) {
	return s.stmtDeviceList.run()
}

// DeviceSetStatus updates the externally visible device status and touches
// last_seen. The session manager is the only caller for BUSY/AVAILABLE.
func (s *Storage) DeviceSetStatus(uuid, status string) error {
	return s.stmtDeviceSetStatus.run(uuid, status, Now())
}

type stmtDeviceCreate DbStmt

func (s *stmtDeviceCreate) Init(db DbHandle) (err error) {
	s.Stmt, err = db.Prepare("DeviceCreate", `
		INSERT INTO devices(uuid, name, platform, os_version, is_emulator, status, created_at, last_seen)
		VALUES (?, ?, ?, ?, ?, "AVAILABLE", ?, ?)`,
	)
	return
}

func (s *stmtDeviceCreate) run(uuid, name, platform, osVersion string, isEmulator bool, now Timestamp) error {
	_, err := s.Stmt.Exec(uuid, name, platform, osVersion, isEmulator, now, now)
	return err
}

type stmtDeviceGet DbStmt

func (s *stmtDeviceGet) Init(db DbHandle) (err error) {
	s.Stmt, err = db.Prepare("DeviceGet", `
		SELECT name, platform, os_version, is_emulator, status, created_at, last_seen
		FROM devices
		WHERE uuid = ?`,
	)
	return
}

func (s *stmtDeviceGet) run(uuid string, d *Device) error {
	return s.Stmt.QueryRow(uuid).Scan(
		&d.Name, &d.Platform, &d.OsVersion, &d.IsEmulator, &d.Status, &d.CreatedAt, &d.LastSeen)
}

type stmtDeviceList DbStmt

func (s *stmtDeviceList) Init(db DbHandle) (err error) {
	s.Stmt, err = db.Prepare("DeviceList", `
		SELECT uuid, name, platform, os_version, is_emulator, status, created_at, last_seen
		FROM devices
		ORDER BY name`,
	)
	return
}

func (s *stmtDeviceList) run() ([]Device, error) {
	rows, err := s.Stmt.Query()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var devices []Device
	for rows.Next() {
		var d Device
		if err := rows.Scan(&d.Uuid, &d.Name, &d.Platform, &d.OsVersion,
			&d.IsEmulator, &d.Status, &d.CreatedAt, &d.LastSeen); err != nil {
			return nil, err
		}
		devices = append(devices, d)
	}
	return devices, rows.Err()
}

type stmtDeviceSetStatus DbStmt

func (s *stmtDeviceSetStatus) Init(db DbHandle) (err error) {
	s.Stmt, err = db.Prepare("DeviceSetStatus", `
		UPDATE devices SET status = ?, last_seen = ? WHERE uuid = ?`,
	)
	return
}

func (s *stmtDeviceSetStatus) run(uuid, status string, now Timestamp) error {
	res, err := s.Stmt.Exec(status, now, uuid)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("device %s not found", uuid)
	}
	return nil
}
