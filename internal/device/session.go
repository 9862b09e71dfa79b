// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package device implements the per-receiver worker (spec §4.6): the
// long-running control-channel session state machine, the three control
// operations, and normalized event emission onto the bus. The wire
// protocol itself (pairing handshake, playback-event transport) is an
// external collaborator (spec §1); this package only depends on the
// Session interface below.
package device

import "context"

// PlayState mirrors the receiver's reported playback state for a
// now_playing event.
const (
	PlayStatePlaying = "1"
	PlayStatePaused  = "2"
)

// RawEvent is one playback-state transition delivered by a Session's
// Subscribe channel, before normalization.
type RawEvent struct {
	Kind        string // "now_playing" | "up_next"
	VideoID     string
	CurrentTime *float64
	Duration    *float64
	PlayState   string
}

// Session is the long-running control-channel connection to one paired
// receiver (spec §4.6, glossary "Control channel"). Implementations wrap
// whatever remote-control wire protocol the receiver speaks; Sentinel's
// core only depends on this interface.
type Session interface {
	// RefreshAuth exchanges the persisted auth blob for a fresh one,
	// returning the new blob to persist.
	RefreshAuth(ctx context.Context, authBlob string) (string, error)
	// Connect establishes the control channel using a refreshed auth blob.
	Connect(ctx context.Context, authBlob string) error
	// Subscribe streams playback events until the channel closes or ctx
	// is canceled.
	Subscribe(ctx context.Context) (<-chan RawEvent, error)
	// SeekTo issues an absolute seek, in seconds.
	SeekTo(ctx context.Context, positionSeconds float64) error
	// Next requests the next queued video.
	Next(ctx context.Context) error
	// PlayVideo commands playback of a specific video id.
	PlayVideo(ctx context.Context, videoID string) error
	// Close releases any resources held by the session.
	Close() error
}

// PairingSession performs the one-shot pairing handshake that yields a
// screen id and an initial auth blob (spec §9 supplemented feature 2a,
// grounded on lounge_manager.pair_device).
type PairingSession interface {
	Pair(ctx context.Context, pairingCode string) (screenID, authBlob string, err error)
}

// SessionFactory builds a Session bound to one device's screen id.
type SessionFactory interface {
	NewSession(screenID string) Session
}
