// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

// Package config loads the server configuration file. Every setting has a
// default; an absent file yields a fully usable configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Server    Server    `toml:"server"`
	Queue     Queue     `toml:"queue"`
	Sessions  Sessions  `toml:"sessions"`
	History   History   `toml:"history"`
	Optimizer Optimizer `toml:"optimizer"`
	Driver    Driver    `toml:"driver"`
}

type Server struct {
	ApiPort   uint16 `toml:"api_port"`
	LogLevel  string `toml:"log_level"`
	LogFormat string `toml:"log_format"`
}

type Queue struct {
	Concurrency     int      `toml:"concurrency"`
	MaxAttempts     int      `toml:"max_attempts"`
	BackoffType     string   `toml:"backoff_type"`
	BackoffBase     Duration `toml:"backoff_base"`
	JobTimeout      Duration `toml:"job_timeout"`
	StallInterval   Duration `toml:"stall_interval"`
	StallRetryLimit int      `toml:"stall_retry_limit"`
	RetentionWindow Duration `toml:"retention_window"`
}

type Sessions struct {
	MaxSessions  int      `toml:"max_sessions"`
	IdleTimeout  Duration `toml:"idle_timeout"`
	ReapInterval Duration `toml:"reap_interval"`
}

type History struct {
	MaxSamples         int      `toml:"max_samples"`
	RecentWindow       int      `toml:"recent_window"`
	FlakinessThreshold float64  `toml:"flakiness_threshold"`
	RehydrateWindow    Duration `toml:"rehydrate_window"`
	RehydrateLimit     int      `toml:"rehydrate_limit"`
}

type Optimizer struct {
	DefaultDuration Duration `toml:"default_duration"`
}

type Driver struct {
	// Mode selects the action-execution driver. Only "simulated" ships in
	// this repository; real drivers register externally.
	Mode    string   `toml:"mode"`
	Latency Duration `toml:"latency"`
}

// Duration accepts Go duration strings ("30s", "5m") in TOML.
type Duration time.Duration

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

func Default() Config {
	return Config{
		Server: Server{ApiPort: 8080, LogLevel: "info", LogFormat: "json"},
		Queue: Queue{
			Concurrency:     4,
			MaxAttempts:     3,
			BackoffType:     "exponential",
			BackoffBase:     Duration(time.Second),
			JobTimeout:      Duration(30 * time.Minute),
			StallInterval:   Duration(30 * time.Second),
			StallRetryLimit: 1,
			RetentionWindow: Duration(7 * 24 * time.Hour),
		},
		Sessions: Sessions{
			MaxSessions:  16,
			IdleTimeout:  Duration(5 * time.Minute),
			ReapInterval: Duration(30 * time.Second),
		},
		History: History{
			MaxSamples:         50,
			RecentWindow:       10,
			FlakinessThreshold: 0.3,
			RehydrateWindow:    Duration(30 * 24 * time.Hour),
			RehydrateLimit:     10000,
		},
		Optimizer: Optimizer{DefaultDuration: Duration(30 * time.Second)},
		Driver:    Driver{Mode: "simulated"},
	}
}

// Load reads path over the defaults. A missing file is fine; a malformed
// one is not.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return cfg, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.Queue.Concurrency < 1 {
		return fmt.Errorf("queue.concurrency must be at least 1")
	}
	if c.Queue.BackoffType != "fixed" && c.Queue.BackoffType != "exponential" {
		return fmt.Errorf("queue.backoff_type must be fixed or exponential")
	}
	if c.Sessions.MaxSessions < 1 {
		return fmt.Errorf("sessions.max_sessions must be at least 1")
	}
	if c.History.FlakinessThreshold <= 0 || c.History.FlakinessThreshold > 1 {
		return fmt.Errorf("history.flakiness_threshold must be in (0, 1]")
	}
	if c.Driver.Mode != "simulated" {
		return fmt.Errorf("unknown driver.mode %q", c.Driver.Mode)
	}
	return nil
}
