// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package device

import (
	"context"
	"errors"

	"github.com/ManuGH/xg2g/internal/store"
)

// Pairer runs the one-shot pairing handshake and persists the resulting
// device row (spec §9 supplemented feature 2a, grounded on
// lounge_manager.pair_device).
type Pairer struct {
	store    *store.Store
	registry *Registry
	session  PairingSession
}

// NewPairer constructs a Pairer using the given PairingSession
// implementation for the handshake itself.
func NewPairer(st *store.Store, registry *Registry, session PairingSession) *Pairer {
	return &Pairer{store: st, registry: registry, session: session}
}

// Pair normalizes and validates a pairing code, runs the handshake, and
// on success upserts the device row and starts its worker.
func (p *Pairer) Pair(ctx context.Context, name, rawCode string) (store.Device, error) {
	code := normalizePairingCode(rawCode)
	if len(code) < minPairingCodeLength {
		return store.Device{}, ErrPairCodeInvalid
	}

	screenID, authBlob, err := p.session.Pair(ctx, code)
	if err != nil {
		return store.Device{}, classifyPairError(err)
	}
	if screenID == "" {
		return store.Device{}, ErrPairMissingScreenID
	}

	id, err := p.store.UpsertDevice(ctx, store.Device{
		Name:          name,
		ScreenID:      screenID,
		AuthStateJSON: authBlob,
		Status:        StatusLinked,
	})
	if err != nil {
		return store.Device{}, errors.Join(ErrPairFailed, err)
	}

	dev, ok, err := p.store.GetDevice(ctx, id)
	if err != nil || !ok {
		return store.Device{}, errors.Join(ErrPairFailed, err)
	}

	if p.registry != nil {
		p.registry.Start(dev)
	}
	return dev, nil
}

// classifyPairError maps a handshake error onto the pairing error
// taxonomy so callers (the HTTP/MQTT surfaces) can render a stable
// reason code without inspecting transport details.
func classifyPairError(err error) error {
	switch {
	case errors.Is(err, ErrPairRejected), errors.Is(err, ErrPairTimeout),
		errors.Is(err, ErrPairNetworkError), errors.Is(err, ErrPairCodeInvalid):
		return err
	default:
		return errors.Join(ErrPairFailed, err)
	}
}
