// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package runtime

import (
	"context"
	"sync"
	"time"
)

// upNextQueueCap bounds the per-device up-next candidate FIFO (spec §4.7
// step 5, §9 "per-device ephemeral state").
const upNextQueueCap = 30

// deviceState is the orchestrator's per-device ephemeral coordination
// state (spec §3 "Ownership", §9 "per-device ephemeral state"). Its own
// mutex serializes event processing for one device while letting
// different devices proceed independently (spec §9 option (b)).
type deviceState struct {
	mu sync.Mutex

	hasLastNowPlaying   bool
	lastNowPlayingVideo string
	lastNowPlayingAt    time.Time

	upNextCounts map[string]int
	upNextQueue  []string

	blockRetryAt map[string]time.Time

	reinforceCancel context.CancelFunc

	lastHistoryChoice string
}

func newDeviceState() *deviceState {
	return &deviceState{
		upNextCounts: make(map[string]int),
		blockRetryAt: make(map[string]time.Time),
	}
}

// pushUpNext appends videoID to the FIFO, moving it to the end if
// already present, then trims to upNextQueueCap (spec §4.7 step 5).
func (d *deviceState) pushUpNext(videoID string) {
	d.dropUpNext(videoID)
	d.upNextQueue = append(d.upNextQueue, videoID)
	if len(d.upNextQueue) > upNextQueueCap {
		d.upNextQueue = d.upNextQueue[len(d.upNextQueue)-upNextQueueCap:]
	}
}

func (d *deviceState) dropUpNext(videoID string) {
	for i, v := range d.upNextQueue {
		if v == videoID {
			d.upNextQueue = append(d.upNextQueue[:i], d.upNextQueue[i+1:]...)
			return
		}
	}
}

// stateRegistry hands out the per-device state record, creating one on
// first access.
type stateRegistry struct {
	mu     sync.Mutex
	states map[string]*deviceState
}

func newStateRegistry() *stateRegistry {
	return &stateRegistry{states: make(map[string]*deviceState)}
}

func (r *stateRegistry) get(deviceID string) *deviceState {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.states[deviceID]
	if !ok {
		st = newDeviceState()
		r.states[deviceID] = st
	}
	return st
}
