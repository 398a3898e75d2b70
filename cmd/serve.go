// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/testforge/devicelab/batch"
	"github.com/testforge/devicelab/config"
	"github.com/testforge/devicelab/context"
	"github.com/testforge/devicelab/core"
	"github.com/testforge/devicelab/driver"
	"github.com/testforge/devicelab/events"
	"github.com/testforge/devicelab/history"
	"github.com/testforge/devicelab/queue"
	"github.com/testforge/devicelab/runner"
	"github.com/testforge/devicelab/server"
	"github.com/testforge/devicelab/server/api"
	"github.com/testforge/devicelab/sessions"
	"github.com/testforge/devicelab/storage"
)

type ServeCmd struct {
	ApiPort uint16 `help:"Override the configured REST API port"`
}

func (c *ServeCmd) Run(args CommonArgs) error {
	cfg, err := config.Load(args.configPath())
	if err != nil {
		return err
	}
	if c.ApiPort != 0 {
		cfg.Server.ApiPort = c.ApiPort
	}

	logger, err := context.InitLogger(cfg.Server.LogLevel, cfg.Server.LogFormat)
	if err != nil {
		return err
	}

	db, err := storage.NewDb(filepath.Join(args.DataDir, "devicelab.db"))
	if err != nil {
		return err
	}
	defer db.Close()
	fs, err := storage.NewFs(args.DataDir)
	if err != nil {
		return err
	}
	store, err := storage.NewStorage(db, fs)
	if err != nil {
		return err
	}

	bus := events.NewBus(logger)
	stopSink := events.StartLogSink(bus, logger)
	defer stopSink()

	tracker := history.NewTracker(history.Config{
		MaxSamples:         cfg.History.MaxSamples,
		RecentWindow:       cfg.History.RecentWindow,
		FlakinessThreshold: cfg.History.FlakinessThreshold,
		RehydrateWindow:    cfg.History.RehydrateWindow.Std(),
	}, logger)
	if err := tracker.LoadFromStore(store, cfg.History.RehydrateLimit); err != nil {
		return fmt.Errorf("unable to rehydrate execution history: %w", err)
	}

	mgr := sessions.NewManager(sessions.Config{
		MaxSessions:  cfg.Sessions.MaxSessions,
		IdleTimeout:  cfg.Sessions.IdleTimeout.Std(),
		ReapInterval: cfg.Sessions.ReapInterval.Std(),
	}, store, bus, logger)
	mgr.StartReaper()
	defer mgr.StopReaper()

	drv := driver.NewSimulated(cfg.Driver.Latency.Std())
	engine := runner.NewEngine(store, mgr, tracker, drv, bus, logger)
	optimizer := batch.NewOptimizer(store, tracker, cfg.Optimizer.DefaultDuration.Std())

	proc := func(ctx context.Context, job queue.Job) error {
		run, err := store.RunGet(job.RunID)
		if err != nil {
			return err
		}
		if run == nil {
			return core.NewNotFoundError("run %s not found", job.RunID)
		}
		spec, err := core.ParseRunSpec(run.Metadata)
		if err != nil {
			return err
		}
		_, err = engine.ExecuteTestSuite(ctx, job.RunID, runner.Options{
			Isolation:    spec.Isolation,
			MaxRetries:   spec.MaxRetries,
			RetryDelay:   spec.RetryDelay(),
			RetryBackoff: spec.RetryBackoff,
			Timeout:      spec.Timeout(),
			Tags:         spec.Tags,
		})
		return err
	}

	q := queue.New(queue.Config{
		Concurrency:        cfg.Queue.Concurrency,
		StallInterval:      cfg.Queue.StallInterval.Std(),
		StallRetryLimit:    cfg.Queue.StallRetryLimit,
		DefaultMaxAttempts: cfg.Queue.MaxAttempts,
		DefaultBackoff: queue.BackoffPolicy{
			Type: cfg.Queue.BackoffType,
			Base: cfg.Queue.BackoffBase.Std(),
		},
		DefaultTimeout: cfg.Queue.JobTimeout.Std(),
	}, store, proc, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := q.Start(ctx); err != nil {
		return err
	}

	// Terminal jobs older than the retention window are swept hourly.
	retentionDone := make(chan struct{})
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if _, err := q.CleanOldJobs(cfg.Queue.RetentionWindow.Std(), 1000, ""); err != nil {
					logger.Warn("job retention sweep failed", "error", err)
				}
			case <-retentionDone:
				return
			}
		}
	}()
	defer close(retentionDone)

	e := server.NewEchoServer("rest-api", logger)
	api.RegisterHandlers(e, api.Core{
		Store:     store,
		Queue:     q,
		Sessions:  mgr,
		Tracker:   tracker,
		Optimizer: optimizer,
	})
	srv := server.NewServer(ctx, e, cfg.Server.ApiPort)

	serveErr := make(chan error, 1)
	srv.Start(serveErr)
	logger.Info("devicelab server started", "port", cfg.Server.ApiPort)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)

	select {
	case err := <-serveErr:
		return err
	case sig := <-quit:
		logger.Info("shutting down", "signal", sig.String())
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Minute)
	defer shutdownCancel()
	if err := q.Shutdown(shutdownCtx); err != nil {
		logger.Error("unexpected error stopping job queue", "error", err)
	}
	if err := mgr.TerminateAll(); err != nil {
		logger.Error("unexpected error terminating sessions", "error", err)
	}
	if err := srv.Shutdown(30 * time.Second); err != nil {
		logger.Error("unexpected error stopping rest-api server", "error", err)
	}
	bus.Close()
	return nil
}
