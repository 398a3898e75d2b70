// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

// Package events delivers lifecycle events from the runner and session
// manager to subscribers over typed buffered channels. Publishing never
// blocks the emitting component: a subscriber that cannot keep up loses
// events and the loss is counted.
package events

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/testforge/devicelab/core"
)

type Bus struct {
	mu     sync.RWMutex
	subs   map[int]*subscriber
	nextID int
	closed bool
	logger *slog.Logger

	published int64
	dropped   int64
}

type subscriber struct {
	ch chan core.Event
}

func NewBus(logger *slog.Logger) *Bus {
	return &Bus{
		subs:   make(map[int]*subscriber),
		logger: logger,
	}
}

// Subscribe registers a new subscriber with the given channel buffer size
// and returns its event channel plus a cancel func. The channel is closed by
// cancel or by Close.
func (b *Bus) Subscribe(buffer int) (<-chan core.Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	sub := &subscriber{ch: make(chan core.Event, buffer)}
	if b.closed {
		close(sub.ch)
		return sub.ch, func() {}
	}
	b.subs[id] = sub

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if s, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(s.ch)
		}
	}
	return sub.ch, cancel
}

// Publish fans the event out to every subscriber. Delivery order matches
// publish order per subscriber because all sends happen under the same lock.
func (b *Bus) Publish(evt core.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	atomic.AddInt64(&b.published, 1)
	for _, sub := range b.subs {
		select {
		case sub.ch <- evt:
		default:
			atomic.AddInt64(&b.dropped, 1)
			b.logger.Warn("event subscriber full, event dropped",
				"type", string(evt.Type), "run", evt.TestRunID)
		}
	}
}

// Stats returns the total number of published events and of per-subscriber
// drops.
func (b *Bus) Stats() (published, dropped int64) {
	return atomic.LoadInt64(&b.published), atomic.LoadInt64(&b.dropped)
}

// Close shuts the bus down and closes all subscriber channels.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, sub := range b.subs {
		delete(b.subs, id)
		close(sub.ch)
	}
}
