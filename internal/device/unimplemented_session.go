// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package device

import (
	"context"
	"errors"
)

// ErrProtocolNotConfigured is returned by every method of
// unimplementedSession: the receiver's control-channel wire protocol
// (pairing handshake, playback-event subscription) is an external
// collaborator (spec §1) with no implementation wired in. A real
// deployment supplies its own SessionFactory; this one only lets the
// rest of the worker state machine link and exercise its retry/backoff
// paths against something that always fails cleanly.
var ErrProtocolNotConfigured = errors.New("device: control-channel protocol not configured")

// unimplementedSession is the default Session/PairingSession: every call
// fails with ErrProtocolNotConfigured instead of panicking or hanging,
// so Worker.Run's offline/connecting backoff loop behaves the same way
// it would against a receiver that is simply unreachable.
type unimplementedSession struct{}

func (unimplementedSession) RefreshAuth(_ context.Context, _ string) (string, error) {
	return "", ErrProtocolNotConfigured
}

func (unimplementedSession) Connect(_ context.Context, _ string) error {
	return ErrProtocolNotConfigured
}

func (unimplementedSession) Subscribe(_ context.Context) (<-chan RawEvent, error) {
	return nil, ErrProtocolNotConfigured
}

func (unimplementedSession) SeekTo(_ context.Context, _ float64) error {
	return ErrProtocolNotConfigured
}

func (unimplementedSession) Next(_ context.Context) error {
	return ErrProtocolNotConfigured
}

func (unimplementedSession) PlayVideo(_ context.Context, _ string) error {
	return ErrProtocolNotConfigured
}

func (unimplementedSession) Close() error { return nil }

func (unimplementedSession) Pair(_ context.Context, _ string) (screenID, authBlob string, err error) {
	return "", "", ErrProtocolNotConfigured
}

// unimplementedSessionFactory hands out unimplementedSession for every
// device. Used as the default SessionFactory when no real control-channel
// client is configured.
type unimplementedSessionFactory struct{}

// NewUnimplementedSessionFactory returns a SessionFactory whose sessions
// always fail with ErrProtocolNotConfigured. It exists so the rest of
// Sentinel (registry, worker state machine, pairing) can be constructed
// and run end-to-end without a real receiver control-channel client.
func NewUnimplementedSessionFactory() SessionFactory {
	return unimplementedSessionFactory{}
}

func (unimplementedSessionFactory) NewSession(_ string) Session {
	return unimplementedSession{}
}
