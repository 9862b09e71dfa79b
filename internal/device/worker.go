// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package device

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ManuGH/xg2g/internal/bus"
	"github.com/ManuGH/xg2g/internal/store"
)

// Status values a Worker reports on the devices table (spec §3 "Device").
const (
	StatusOffline    = "offline"
	StatusConnecting = "connecting"
	StatusLinked     = "linked"
	StatusConnected  = "connected"
	StatusPaused     = "paused"
)

const (
	initialBackoff = 2 * time.Second
	maxBackoff     = 30 * time.Second
	noAuthRetry    = 5 * time.Second
)

// errSubscriptionEnded marks a subscription channel that closed while the
// worker was still running.
var errSubscriptionEnded = errors.New("subscription_ended")

// sleeper abstracts context-aware sleeping so backoff is testable without
// a real clock dependency on wall time.
type sleeper func(ctx context.Context, d time.Duration) bool

func ctxSleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// Worker owns the long-running control-channel session for one paired
// device (spec §4.6).
type Worker struct {
	deviceID int64
	screenID string
	name     string

	store   *store.Store
	bus     bus.Bus
	factory SessionFactory

	mu      sync.Mutex
	session Session

	sleep sleeper
}

// New constructs a Worker for an already-paired device row.
func New(dev store.Device, st *store.Store, b bus.Bus, factory SessionFactory) *Worker {
	return &Worker{
		deviceID: dev.ID,
		screenID: dev.ScreenID,
		name:     dev.Name,
		store:    st,
		bus:      b,
		factory:  factory,
		sleep:    ctxSleep,
	}
}

// Run drives the worker's state machine (spec §4.6 diagram) until ctx is
// canceled.
func (w *Worker) Run(ctx context.Context) {
	backoff := initialBackoff
	for ctx.Err() == nil {
		advance := w.runOnce(ctx, &backoff)
		if !advance {
			return
		}
	}
}

// runOnce executes one full connect-subscribe-drain cycle, returning
// false when the caller should stop (context canceled during a sleep).
func (w *Worker) runOnce(ctx context.Context, backoff *time.Duration) bool {
	dev, ok, err := w.store.GetDevice(ctx, w.deviceID)
	if err != nil || !ok {
		return w.sleep(ctx, noAuthRetry)
	}

	if dev.AuthStateJSON == "" {
		w.setStatus(ctx, StatusOffline, "")
		return w.sleep(ctx, noAuthRetry)
	}

	w.setStatus(ctx, StatusConnecting, "")
	sess := w.factory.NewSession(dev.ScreenID)

	newAuth, err := sess.RefreshAuth(ctx, dev.AuthStateJSON)
	if err != nil {
		_ = sess.Close()
		w.setStatus(ctx, StatusOffline, humanizeSessionError(err))
		return w.backoffSleep(ctx, backoff)
	}
	if newAuth != "" && newAuth != dev.AuthStateJSON {
		_, _ = w.store.UpsertDevice(ctx, store.Device{
			Name: dev.Name, ScreenID: dev.ScreenID, LoungeToken: dev.LoungeToken,
			AuthStateJSON: newAuth, Status: StatusLinked,
		})
	}
	w.setStatus(ctx, StatusLinked, "")

	if err := sess.Connect(ctx, newAuth); err != nil {
		_ = sess.Close()
		w.setStatus(ctx, StatusOffline, humanizeSessionError(err))
		return w.backoffSleep(ctx, backoff)
	}
	*backoff = initialBackoff
	w.setStatus(ctx, StatusConnected, "")
	w.setSession(sess)

	ch, err := sess.Subscribe(ctx)
	if err != nil {
		w.setSession(nil)
		_ = sess.Close()
		w.setStatus(ctx, StatusOffline, humanizeSessionError(err))
		return w.backoffSleep(ctx, backoff)
	}

	w.consumeEvents(ctx, ch)

	w.setSession(nil)
	_ = sess.Close()
	if ctx.Err() != nil {
		return false
	}
	w.setStatus(ctx, StatusOffline, humanizeSessionError(errSubscriptionEnded))
	return w.backoffSleep(ctx, backoff)
}

func (w *Worker) backoffSleep(ctx context.Context, backoff *time.Duration) bool {
	d := *backoff
	*backoff *= 2
	if *backoff > maxBackoff {
		*backoff = maxBackoff
	}
	return w.sleep(ctx, d)
}

func (w *Worker) setSession(s Session) {
	w.mu.Lock()
	w.session = s
	w.mu.Unlock()
}

func (w *Worker) currentSession() Session {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.session
}

func (w *Worker) setStatus(ctx context.Context, status, lastError string) {
	_ = w.store.UpdateDeviceStatus(ctx, w.deviceID, status, lastError)
	fields := map[string]any{"status": status}
	if lastError != "" {
		fields["error"] = lastError
	}
	_ = w.bus.Publish(ctx, bus.Topic, bus.Message{
		Type:     bus.EventDeviceStatus,
		DeviceID: fmt.Sprint(w.deviceID),
		At:       time.Now().UTC(),
		Fields:   fields,
	})
}

// consumeEvents reads raw events until the channel closes or ctx is
// canceled, normalizing and publishing each one.
func (w *Worker) consumeEvents(ctx context.Context, ch <-chan RawEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case raw, ok := <-ch:
			if !ok {
				return
			}
			w.publishRaw(ctx, raw)
		}
	}
}

func (w *Worker) publishRaw(ctx context.Context, raw RawEvent) {
	fields := map[string]any{}
	if raw.CurrentTime != nil {
		fields["current_time"] = *raw.CurrentTime
	}
	if raw.Duration != nil {
		fields["duration"] = *raw.Duration
	}
	if raw.PlayState != "" {
		fields["play_state"] = raw.PlayState
	}

	msgType := bus.EventNowPlaying
	if raw.Kind == "up_next" {
		msgType = bus.EventUpNext
	}

	_ = w.bus.Publish(ctx, bus.Topic, bus.Message{
		Type:     msgType,
		DeviceID: fmt.Sprint(w.deviceID),
		VideoID:  raw.VideoID,
		At:       time.Now().UTC(),
		Fields:   fields,
	})
}

// SkipMethod identifies which control operation satisfied SkipCurrent.
type SkipMethod string

const (
	SkipMethodSeekEnd SkipMethod = "seek_end"
	SkipMethodNext    SkipMethod = "next"
	SkipMethodNone    SkipMethod = "none"
)

// farFutureSeek is the position SkipCurrent seeks to, relying on the
// receiver clamping it to the video's actual end (spec §4.6).
const farFutureSeek = 99999

// SkipCurrent fast-forwards past the current video, preferring a direct
// seek-to-end and falling back to "next" if that fails (spec §4.6).
func (w *Worker) SkipCurrent(ctx context.Context) (bool, string, SkipMethod) {
	sess := w.currentSession()
	if sess == nil {
		return false, "The receiver is not connected right now.", SkipMethodNone
	}

	if err := sess.SeekTo(ctx, farFutureSeek); err == nil {
		return true, "", SkipMethodSeekEnd
	}

	if err := sess.Next(ctx); err != nil {
		return false, humanizeSessionError(err), SkipMethodNone
	}
	return true, "", SkipMethodNext
}

// Pause marks the device paused with the schedule/state-inactive reason
// (spec §4.8). Registry.PauseAll calls this just before stopping the
// worker so the persisted status and published event explain why the
// worker stopped, rather than leaving it looking merely offline.
func (w *Worker) Pause(ctx context.Context) {
	w.setStatus(ctx, StatusPaused, "schedule_or_state_inactive")
}

// Seek issues a direct seek to an absolute position (spec §4.6).
func (w *Worker) Seek(ctx context.Context, position float64) (bool, string) {
	sess := w.currentSession()
	if sess == nil {
		return false, "The receiver is not connected right now."
	}
	if err := sess.SeekTo(ctx, position); err != nil {
		return false, humanizeSessionError(err)
	}
	return true, ""
}

// PlayVideo commands playback of videoID on the receiver (spec §4.6).
func (w *Worker) PlayVideo(ctx context.Context, videoID string) (bool, string) {
	sess := w.currentSession()
	if sess == nil {
		return false, "The receiver is not connected right now."
	}
	if err := sess.PlayVideo(ctx, videoID); err != nil {
		return false, humanizeSessionError(err)
	}
	return true, ""
}

