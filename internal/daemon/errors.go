// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// SPDX-License-Identifier: MIT

package daemon

import "errors"

var (
	// ErrMissingAPIHandler is returned when a Deps value has no API
	// handler.
	ErrMissingAPIHandler = errors.New("daemon: API handler is required")

	// ErrManagerNotStarted is returned by Shutdown when Start was never
	// called.
	ErrManagerNotStarted = errors.New("daemon: manager not started")
)
