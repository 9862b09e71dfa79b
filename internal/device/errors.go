// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package device

import (
	"errors"
	"strings"
)

// Pairing errors (spec §7 taxonomy, SPEC_FULL §C.2a), caller-visible.
var (
	ErrPairCodeInvalid     = errors.New("pair_code_invalid")
	ErrPairRejected        = errors.New("pair_rejected")
	ErrPairTimeout         = errors.New("pair_timeout")
	ErrPairNetworkError    = errors.New("pair_network_error")
	ErrPairMissingScreenID = errors.New("pair_missing_screen_id")
	ErrPairFailed          = errors.New("pair_failed")
)

// minPairingCodeLength is the minimum accepted pairing code length
// (spec §9 supplemented feature 2a).
const minPairingCodeLength = 6

// normalizePairingCode mirrors lounge_manager.pair_device's code
// normalization: trim whitespace, drop interior spaces/dashes, uppercase.
func normalizePairingCode(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, "-", "")
	return strings.ToUpper(s)
}

// humanizeSessionError rewrites a raw session error into a plain-English
// sentence before it reaches the bus or persistence (spec §4.6, §7;
// substring table reproduced from lounge_manager._humanize_lounge_error,
// SPEC_FULL §C.3).
func humanizeSessionError(err error) string {
	if err == nil {
		return ""
	}
	msg := strings.ToLower(err.Error())

	switch {
	case strings.Contains(msg, "not connected"):
		return "The receiver is not connected right now."
	case strings.Contains(msg, "unsupported client"):
		return "This receiver model is not supported."
	case strings.Contains(msg, "refresh_auth_failed"):
		return "Could not refresh the receiver's authorization; try re-pairing."
	case strings.Contains(msg, "connect_failed"):
		return "Could not connect to the receiver."
	case strings.Contains(msg, "timeout"):
		return "The receiver did not respond in time."
	case strings.Contains(msg, "network"), strings.Contains(msg, "host"), strings.Contains(msg, "connection"):
		return "A network error occurred while talking to the receiver."
	case strings.Contains(msg, "subscription_ended"):
		return "The receiver closed the event stream."
	case strings.Contains(msg, "disconnected"):
		return "The receiver disconnected."
	default:
		return err.Error()
	}
}
