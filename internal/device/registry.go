// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package device

import (
	"context"
	"sync"
	"time"

	"github.com/ManuGH/xg2g/internal/bus"
	"github.com/ManuGH/xg2g/internal/log"
	"github.com/ManuGH/xg2g/internal/store"
)

// workerJoinTimeout bounds how long Registry.Stop waits for a worker's
// Run loop to exit before canceling harder (spec §5 "stop workers with a
// 3s join per worker then cancel").
const workerJoinTimeout = 3 * time.Second

type runningWorker struct {
	worker *Worker
	cancel context.CancelFunc
	done   chan struct{}
}

// Registry owns one Worker per paired device, keyed by device id (spec
// §3 "Ownership"; grounded on the donor's pipeline worker orchestrator's
// active map).
type Registry struct {
	store   *store.Store
	bus     bus.Bus
	factory SessionFactory

	mu      sync.Mutex
	running map[int64]*runningWorker
}

// NewRegistry constructs an empty device worker registry.
func NewRegistry(st *store.Store, b bus.Bus, factory SessionFactory) *Registry {
	return &Registry{
		store:   st,
		bus:     b,
		factory: factory,
		running: make(map[int64]*runningWorker),
	}
}

// StartAll launches a Worker for every device row not already running.
func (r *Registry) StartAll(ctx context.Context) error {
	devices, err := r.store.ListDevices(ctx)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range devices {
		r.startLocked(d)
	}
	return nil
}

// Start launches a Worker for a single device, replacing any existing
// one for the same id.
func (r *Registry) Start(dev store.Device) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopLocked(dev.ID)
	r.startLocked(dev)
}

func (r *Registry) startLocked(d store.Device) {
	if _, ok := r.running[d.ID]; ok {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	w := New(d, r.store, r.bus, r.factory)
	done := make(chan struct{})
	rw := &runningWorker{worker: w, cancel: cancel, done: done}
	r.running[d.ID] = rw
	go func() {
		defer close(done)
		w.Run(ctx)
	}()
}

// Get returns the running Worker for a device id, if any.
func (r *Registry) Get(deviceID int64) (*Worker, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rw, ok := r.running[deviceID]
	if !ok {
		return nil, false
	}
	return rw.worker, true
}

// Stop cancels and joins a single device's worker (spec §5: 3s join,
// then cancel harder — here cancel has already been issued so "harder"
// is simply giving up the wait).
func (r *Registry) Stop(deviceID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopLocked(deviceID)
}

func (r *Registry) stopLocked(deviceID int64) {
	rw, ok := r.running[deviceID]
	if !ok {
		return
	}
	delete(r.running, deviceID)
	rw.cancel()
	select {
	case <-rw.done:
	case <-time.After(workerJoinTimeout):
		log.WithComponent("device").Warn().Int64("device_id", deviceID).Msg("worker did not exit within join timeout")
	}
}

// StopAll cancels and joins every running worker (spec §5 graceful
// shutdown).
func (r *Registry) StopAll() {
	r.mu.Lock()
	ids := make([]int64, 0, len(r.running))
	for id := range r.running {
		ids = append(ids, id)
	}
	r.mu.Unlock()

	for _, id := range ids {
		r.Stop(id)
	}
}

// PauseAll marks every running worker's device "paused" with reason
// "schedule_or_state_inactive" and then stops it (spec §4.8: schedule or
// state transitions to inactive stop the device's worker AND record why,
// not just stop it silently — grounded on the original's lounge_manager.py
// pause_all(), which calls stop_all() then sets each device's status to
// "paused"/"schedule_or_state_inactive").
func (r *Registry) PauseAll(ctx context.Context) {
	r.mu.Lock()
	workers := make([]*Worker, 0, len(r.running))
	ids := make([]int64, 0, len(r.running))
	for id, rw := range r.running {
		workers = append(workers, rw.worker)
		ids = append(ids, id)
	}
	r.mu.Unlock()

	for _, w := range workers {
		w.Pause(ctx)
	}
	for _, id := range ids {
		r.Stop(id)
	}
}

// Running reports how many workers are currently active.
func (r *Registry) Running() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.running)
}
