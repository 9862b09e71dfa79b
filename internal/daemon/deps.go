// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// SPDX-License-Identifier: MIT

package daemon

import (
	"net/http"

	"github.com/rs/zerolog"
)

// Deps are the manager's external dependencies: the two HTTP handlers it
// serves and the logger it reports through. Everything that actually
// drives Sentinel (the runtime orchestrator, supervisor tick, device
// registry, MQTT bridge) runs as its own goroutine started by the caller
// before Manager.Start blocks on the servers; Deps only carries what the
// HTTP lifecycle itself needs.
type Deps struct {
	Logger zerolog.Logger

	// APIHandler serves internal/api's router (status, SSE, command
	// endpoints).
	APIHandler http.Handler

	// MetricsHandler serves /metrics. Nil disables the metrics listener.
	MetricsHandler http.Handler
	MetricsAddr    string
}

// Validate checks that the minimum required dependencies are present.
func (d Deps) Validate() error {
	if d.APIHandler == nil {
		return ErrMissingAPIHandler
	}
	return nil
}
