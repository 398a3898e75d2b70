// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

// Package sessions owns the pool of device sessions. It is the single
// writer of device status in the store and serializes acquire/release/
// terminate so that a device never has two concurrent sessions.
package sessions

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/testforge/devicelab/core"
	"github.com/testforge/devicelab/driver"
	"github.com/testforge/devicelab/events"
	"github.com/testforge/devicelab/storage"
)

type Config struct {
	// MaxSessions is the global ceiling of live sessions across all
	// devices. Zero means 16.
	MaxSessions int
	// IdleTimeout is how long an idle session survives before the reaper
	// terminates it. Zero means 5 minutes.
	IdleTimeout time.Duration
	// ReapInterval is how often the reaper scans. Zero means 30 seconds.
	ReapInterval time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxSessions <= 0 {
		c.MaxSessions = 16
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = 5 * time.Minute
	}
	if c.ReapInterval <= 0 {
		c.ReapInterval = 30 * time.Second
	}
	return c
}

// Session is one exclusive binding between a worker and a device.
type Session struct {
	SessionID        string             `json:"sessionId"`
	DeviceID         string             `json:"deviceId"`
	Status           core.SessionStatus `json:"status"`
	CurrentTestRunID string             `json:"currentTestRunId,omitempty"`
	TestCount        int                `json:"testCount"`
	CreatedAt        time.Time          `json:"createdAt"`
	LastActivityAt   time.Time          `json:"lastActivityAt"`
	Platform         string             `json:"platform"`
	OsVersion        string             `json:"osVersion"`
	IsEmulator       bool               `json:"isEmulator"`
}

// Handle returns the driver-facing identity of the session.
func (s *Session) Handle() driver.SessionHandle {
	return driver.SessionHandle{SessionID: s.SessionID, DeviceID: s.DeviceID, Platform: s.Platform}
}

type Manager struct {
	cfg    Config
	store  *storage.Storage
	bus    *events.Bus
	logger *slog.Logger

	mu       sync.Mutex
	sessions map[string]*Session // deviceID → session, at most one each

	reapStop chan struct{}
	reapDone chan struct{}
}

func NewManager(cfg Config, store *storage.Storage, bus *events.Bus, logger *slog.Logger) *Manager {
	return &Manager{
		cfg:      cfg.withDefaults(),
		store:    store,
		bus:      bus,
		logger:   logger,
		sessions: make(map[string]*Session),
	}
}

// Acquire binds the device to the given run and returns a busy session. An
// existing idle session is reused; one in error or terminating is torn down
// and replaced. A busy device or an exhausted global ceiling is a capacity
// error; an OFFLINE or MAINTENANCE device is unavailable.
func (m *Manager) Acquire(deviceID, testRunID string) (*Session, error) {
	device, err := m.store.DeviceGet(deviceID)
	if err != nil {
		return nil, fmt.Errorf("unable to look up device %s: %w", deviceID, err)
	}
	if device == nil {
		return nil, core.NewNotFoundError("device %s not found", deviceID)
	}
	if s := core.DeviceStatus(device.Status); s == core.DeviceOffline || s == core.DeviceMaintenance {
		return nil, core.NewDeviceUnavailableError("device %s is %s", deviceID, device.Status)
	}

	m.mu.Lock()
	existing := m.sessions[deviceID]
	if existing != nil {
		switch existing.Status {
		case core.SessionBusy, core.SessionInitializing:
			m.mu.Unlock()
			return nil, core.NewCapacityError("device %s already has an active session %s",
				deviceID, existing.SessionID)
		case core.SessionError, core.SessionTerminating:
			delete(m.sessions, deviceID)
			m.logger.Info("replacing dead session", "session", existing.SessionID, "device", deviceID)
			existing = nil
		}
	}

	var session *Session
	if existing != nil {
		// Idle session on this device: reuse it.
		session = existing
	} else {
		if len(m.sessions) >= m.cfg.MaxSessions {
			m.mu.Unlock()
			return nil, core.NewCapacityError("session ceiling reached (%d)", m.cfg.MaxSessions)
		}
		now := time.Now()
		session = &Session{
			SessionID:      uuid.New().String(),
			DeviceID:       deviceID,
			Status:         core.SessionInitializing,
			CreatedAt:      now,
			LastActivityAt: now,
			Platform:       device.Platform,
			OsVersion:      device.OsVersion,
			IsEmulator:     device.IsEmulator,
		}
		m.sessions[deviceID] = session
	}
	session.Status = core.SessionBusy
	session.CurrentTestRunID = testRunID
	session.LastActivityAt = time.Now()
	m.mu.Unlock()

	if err := m.store.DeviceSetStatus(deviceID, string(core.DeviceBusy)); err != nil {
		m.mu.Lock()
		delete(m.sessions, deviceID)
		m.mu.Unlock()
		return nil, core.NewSessionError(err, "unable to mark device %s busy", deviceID)
	}

	m.bus.Publish(core.Event{
		Type:      core.EventSessionCreated,
		Timestamp: time.Now(),
		TestRunID: testRunID,
		SessionID: session.SessionID,
		DeviceID:  deviceID,
	})

	// Hand out a snapshot; the manager-owned struct is only touched under
	// the lock.
	m.mu.Lock()
	cp := *session
	m.mu.Unlock()
	return &cp, nil
}

// Release returns a busy session to idle, or parks it in the error state
// when execErr is non-nil. Releasing an already idle session is a no-op.
func (m *Manager) Release(sessionID string, execErr error) error {
	m.mu.Lock()
	session := m.bySessionID(sessionID)
	if session == nil {
		m.mu.Unlock()
		return core.NewNotFoundError("session %s not found", sessionID)
	}
	if session.Status == core.SessionIdle {
		m.mu.Unlock()
		return nil
	}
	runID := session.CurrentTestRunID
	deviceID := session.DeviceID
	session.CurrentTestRunID = ""
	if execErr != nil {
		session.Status = core.SessionError
	} else {
		session.Status = core.SessionIdle
		session.LastActivityAt = time.Now()
	}
	m.mu.Unlock()

	if execErr != nil {
		// The device stays BUSY in the store until the dead session is
		// terminated, so the scheduler cannot hand it out mid-investigation.
		m.bus.Publish(core.Event{
			Type:      core.EventSessionError,
			Timestamp: time.Now(),
			TestRunID: runID,
			SessionID: sessionID,
			DeviceID:  deviceID,
			Error:     execErr.Error(),
		})
		return nil
	}

	if err := m.store.DeviceSetStatus(deviceID, string(core.DeviceAvailable)); err != nil {
		return core.NewSessionError(err, "unable to mark device %s available", deviceID)
	}
	m.bus.Publish(core.Event{
		Type:      core.EventSessionReleased,
		Timestamp: time.Now(),
		TestRunID: runID,
		SessionID: sessionID,
		DeviceID:  deviceID,
	})
	return nil
}

// NoteExecution bumps the session's test counter and activity time.
func (m *Manager) NoteExecution(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if session := m.bySessionID(sessionID); session != nil {
		session.TestCount++
		session.LastActivityAt = time.Now()
	}
}

// Terminate removes the session and returns its device to the pool. The
// device goes back to AVAILABLE only from BUSY; OFFLINE or MAINTENANCE set
// by an operator in the meantime is preserved.
func (m *Manager) Terminate(sessionID string) error {
	m.mu.Lock()
	session := m.bySessionID(sessionID)
	if session == nil {
		m.mu.Unlock()
		return core.NewNotFoundError("session %s not found", sessionID)
	}
	session.Status = core.SessionTerminating
	deviceID := session.DeviceID
	delete(m.sessions, deviceID)
	m.mu.Unlock()

	device, err := m.store.DeviceGet(deviceID)
	if err != nil {
		return fmt.Errorf("unable to look up device %s: %w", deviceID, err)
	}
	if device != nil && core.DeviceStatus(device.Status) == core.DeviceBusy {
		if err := m.store.DeviceSetStatus(deviceID, string(core.DeviceAvailable)); err != nil {
			return core.NewSessionError(err, "unable to mark device %s available", deviceID)
		}
	}
	m.logger.Info("session terminated", "session", sessionID, "device", deviceID)
	return nil
}

// TerminateAll tears down every session. Graceful shutdown path.
func (m *Manager) TerminateAll() error {
	m.mu.Lock()
	ids := make([]string, 0, len(m.sessions))
	for _, s := range m.sessions {
		ids = append(ids, s.SessionID)
	}
	m.mu.Unlock()

	var firstErr error
	for _, id := range ids {
		if err := m.Terminate(id); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Get returns a copy of the session for the device, or nil.
func (m *Manager) Get(deviceID string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[deviceID]; ok {
		cp := *s
		return &cp
	}
	return nil
}

// List returns a copy of all live sessions.
func (m *Manager) List() []Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, *s)
	}
	return out
}

func (m *Manager) bySessionID(sessionID string) *Session {
	for _, s := range m.sessions {
		if s.SessionID == sessionID {
			return s
		}
	}
	return nil
}

// StartReaper launches the background loop that terminates sessions idle
// past the configured timeout. Call StopReaper to stop it.
func (m *Manager) StartReaper() {
	m.reapStop = make(chan struct{})
	m.reapDone = make(chan struct{})
	go func() {
		defer close(m.reapDone)
		ticker := time.NewTicker(m.cfg.ReapInterval)
		defer ticker.Stop()
		for {
			select {
			case <-m.reapStop:
				return
			case <-ticker.C:
				m.reapIdle()
			}
		}
	}()
}

func (m *Manager) StopReaper() {
	if m.reapStop == nil {
		return
	}
	close(m.reapStop)
	<-m.reapDone
	m.reapStop = nil
}

func (m *Manager) reapIdle() {
	cutoff := time.Now().Add(-m.cfg.IdleTimeout)
	m.mu.Lock()
	var expired []string
	for _, s := range m.sessions {
		if s.Status == core.SessionIdle && s.LastActivityAt.Before(cutoff) {
			expired = append(expired, s.SessionID)
		}
	}
	m.mu.Unlock()

	for _, id := range expired {
		if err := m.Terminate(id); err != nil {
			m.logger.Error("reaper failed to terminate session", "session", id, "error", err)
		} else {
			m.logger.Info("reaped idle session", "session", id)
		}
	}
}
