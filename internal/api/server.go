// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// SPDX-License-Identifier: MIT

package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"

	"github.com/ManuGH/xg2g/internal/bus"
	"github.com/ManuGH/xg2g/internal/log"
	"github.com/ManuGH/xg2g/internal/store"
)

// commandRPS bounds the three command endpoints (spec §6 MQTT command
// contract, mirrored here for the HTTP surface); grounded on the donor's
// httprate-based API rate limiting.
const (
	commandRPS    = 5
	commandWindow = time.Minute
	statusRPS     = 60
)

// Server is Sentinel's HTTP surface: a status snapshot, an SSE event
// stream, and the three command endpoints that mirror the MQTT contract.
type Server struct {
	store   *store.Store
	bus     bus.Bus
	devices DeviceCounter
	clock   func() time.Time

	router chi.Router
}

// NewServer builds the chi router and wires every route. devices may be
// nil in tests that don't care about the devices_connected count.
func NewServer(st *store.Store, b bus.Bus, devices DeviceCounter) *Server {
	s := &Server{
		store:   st,
		bus:     b,
		devices: devices,
		clock:   time.Now,
	}
	s.router = s.routes()
	return s
}

// ServeHTTP satisfies http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(log.Middleware())

	r.Get("/healthz", s.handleHealthz)

	r.Group(func(gr chi.Router) {
		gr.Use(rateLimit(statusRPS, time.Minute))
		gr.Get("/api/status", s.handleStatus)
		gr.Get("/api/events", s.handleEvents)
	})

	r.Group(func(gr chi.Router) {
		gr.Use(rateLimit(commandRPS, commandWindow))
		gr.Post("/api/commands/active", s.handleSwitchCommand("active"))
		gr.Post("/api/commands/sponsorblock_active", s.handleSwitchCommand("sponsorblock_active"))
		gr.Post("/api/commands/remote_release_minutes", s.handleRemoteReleaseCommand)
	})

	return r
}

// rateLimit returns a sliding-window IP rate limiter, styled on the
// donor's RateLimit middleware (custom 429 JSON body, Retry-After
// header) but trimmed to the single IP-keyed case Sentinel's
// single-household deployment needs.
func rateLimit(requestLimit int, window time.Duration) func(http.Handler) http.Handler {
	return httprate.Limit(
		requestLimit,
		window,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", fmt.Sprintf("%d", int(window.Seconds())))
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":"rate_limit_exceeded"}`))
		}),
	)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	snap, err := buildSnapshot(r.Context(), s.store, s.devices, s.clock())
	if err != nil {
		writeJSONError(w, r, http.StatusInternalServerError, "status_unavailable")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// handleEvents streams the bus as Server-Sent Events, prefixed by a
// status event carrying the full snapshot (spec §6 "Stream prefix is a
// status event carrying the full status snapshot").
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSONError(w, r, http.StatusInternalServerError, "streaming_unsupported")
		return
	}

	ctx := r.Context()
	sub, err := s.bus.Subscribe(ctx, bus.Topic)
	if err != nil {
		writeJSONError(w, r, http.StatusInternalServerError, "subscribe_failed")
		return
	}
	defer sub.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	snap, err := buildSnapshot(ctx, s.store, s.devices, s.clock())
	if err == nil {
		writeSSE(w, bus.Message{Type: bus.EventStatus, At: s.clock(), Fields: snapshotFields(snap)})
		flusher.Flush()
	}

	keepalive := time.NewTicker(15 * time.Second)
	defer keepalive.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, open := <-sub.C():
			if !open {
				return
			}
			writeSSE(w, msg)
			flusher.Flush()
		case <-keepalive.C:
			_, _ = fmt.Fprint(w, ": keepalive\n\n")
			flusher.Flush()
		}
	}
}

func writeSSE(w http.ResponseWriter, msg bus.Message) {
	payload := map[string]any{
		"event":     msg.Type,
		"timestamp": msg.At.UTC().Format(time.RFC3339),
	}
	if msg.DeviceID != "" {
		payload["device_id"] = msg.DeviceID
	}
	if msg.VideoID != "" {
		payload["video_id"] = msg.VideoID
	}
	if msg.ChannelID != "" {
		payload["channel_id"] = msg.ChannelID
	}
	for k, v := range msg.Fields {
		payload[k] = v
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return
	}
	_, _ = fmt.Fprintf(w, "data: %s\n\n", body)
}

func snapshotFields(snap Snapshot) map[string]any {
	raw, _ := json.Marshal(snap)
	var fields map[string]any
	_ = json.Unmarshal(raw, &fields)
	return fields
}

type switchRequest struct {
	Value string `json:"value"`
}

// handleSwitchCommand handles the active/sponsorblock_active endpoints,
// mirroring mqtt.Bridge.applySwitch so the HTTP and MQTT surfaces agree
// on the same ON/OFF alphabet (spec §6).
func (s *Server) handleSwitchCommand(key string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req switchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(w, r, http.StatusBadRequest, "invalid_body")
			return
		}

		on := boolFromCommand(req.Value)
		value := "false"
		if on {
			value = "true"
		}
		if err := s.store.SetSetting(r.Context(), key, value); err != nil {
			writeJSONError(w, r, http.StatusInternalServerError, "set_setting_failed")
			return
		}
		_ = s.bus.Publish(r.Context(), bus.Topic, bus.Message{
			Type: bus.EventMQTTStateChange,
			At:   s.clock().UTC(),
			Fields: map[string]any{
				"key":   key,
				"value": on,
			},
		})
		writeJSON(w, http.StatusOK, map[string]any{"key": key, "value": on})
	}
}

// handleRemoteReleaseCommand handles remote_release_minutes, mirroring
// mqtt.Bridge.applyReleaseMinutes (spec §6, clamped to [0,240]).
func (s *Server) handleRemoteReleaseCommand(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Minutes int `json:"minutes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, r, http.StatusBadRequest, "invalid_body")
		return
	}

	minutes := req.Minutes
	if minutes < 0 {
		minutes = 0
	}
	if minutes > 240 {
		minutes = 240
	}

	until := ""
	if minutes > 0 {
		until = s.clock().UTC().Add(time.Duration(minutes) * time.Minute).Format(time.RFC3339)
	}
	if err := s.store.SetSetting(r.Context(), "sponsorblock_release_until", until); err != nil {
		writeJSONError(w, r, http.StatusInternalServerError, "set_setting_failed")
		return
	}
	_ = s.bus.Publish(r.Context(), bus.Topic, bus.Message{
		Type: bus.EventRemoteReleaseChange,
		At:   s.clock().UTC(),
		Fields: map[string]any{
			"minutes": minutes,
		},
	})
	writeJSON(w, http.StatusOK, map[string]any{"minutes": minutes})
}

// boolFromCommand accepts the same ON/OFF alphabet as the MQTT command
// contract (spec §6): ON|OFF|1|0|true|false|yes|no, case-insensitive.
func boolFromCommand(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "on", "1", "true", "yes":
		return true
	default:
		return false
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, _ *http.Request, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}
