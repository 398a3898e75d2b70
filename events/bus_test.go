// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package events

import (
	"fmt"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/testforge/devicelab/core"
)

func newTestBus(t *testing.T) *Bus {
	b := NewBus(slog.New(slog.NewTextHandler(os.Stderr, nil)))
	t.Cleanup(b.Close)
	return b
}

func TestPublishOrdering(t *testing.T) {
	b := newTestBus(t)
	ch, cancel := b.Subscribe(16)
	defer cancel()

	for i := 0; i < 10; i++ {
		b.Publish(core.Event{Type: core.EventTestStarted, TestRunID: fmt.Sprintf("run-%d", i)})
	}
	for i := 0; i < 10; i++ {
		evt := <-ch
		require.Equal(t, fmt.Sprintf("run-%d", i), evt.TestRunID)
	}

	published, dropped := b.Stats()
	require.Equal(t, int64(10), published)
	require.Zero(t, dropped)
}

func TestFanout(t *testing.T) {
	b := newTestBus(t)
	ch1, cancel1 := b.Subscribe(4)
	defer cancel1()
	ch2, cancel2 := b.Subscribe(4)
	defer cancel2()

	b.Publish(core.Event{Type: core.EventBatchStarted, TestRunID: "run-1"})
	require.Equal(t, "run-1", (<-ch1).TestRunID)
	require.Equal(t, "run-1", (<-ch2).TestRunID)
}

func TestSlowSubscriberDrops(t *testing.T) {
	b := newTestBus(t)
	ch, cancel := b.Subscribe(2)
	defer cancel()

	// Nobody reads: the third publish overflows the buffer.
	for i := 0; i < 5; i++ {
		b.Publish(core.Event{Type: core.EventTestCompleted})
	}
	published, dropped := b.Stats()
	require.Equal(t, int64(5), published)
	require.Equal(t, int64(3), dropped)

	// The two buffered events are still delivered.
	require.Len(t, ch, 2)
}

func TestCancelClosesChannel(t *testing.T) {
	b := newTestBus(t)
	ch, cancel := b.Subscribe(1)

	cancel()
	_, ok := <-ch
	require.False(t, ok)

	// Cancelling twice is fine, and a cancelled subscriber no longer counts
	// drops.
	cancel()
	b.Publish(core.Event{Type: core.EventTestStarted})
	_, dropped := b.Stats()
	require.Zero(t, dropped)
}

func TestClose(t *testing.T) {
	b := NewBus(slog.New(slog.NewTextHandler(os.Stderr, nil)))
	ch, cancel := b.Subscribe(1)
	defer cancel()

	b.Close()
	_, ok := <-ch
	require.False(t, ok)

	// Publishing after Close is a no-op, not a panic.
	b.Publish(core.Event{Type: core.EventTestStarted})

	// Subscribing after Close yields an already closed channel.
	ch2, cancel2 := b.Subscribe(1)
	defer cancel2()
	select {
	case _, ok := <-ch2:
		require.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("subscriber channel not closed")
	}
}
