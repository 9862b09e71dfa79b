// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package api implements Sentinel's external HTTP surface (spec §6):
// a status snapshot endpoint, a Server-Sent-Events stream of the event
// bus prefixed by that same snapshot, and the three command endpoints
// that mirror the MQTT command contract (spec §2 component 9).
package api

import (
	"context"
	"time"

	"github.com/ManuGH/xg2g/internal/runtime"
	"github.com/ManuGH/xg2g/internal/store"
)

// DeviceCounter reports the device worker fleet's size, satisfied by
// *device.Registry.
type DeviceCounter interface {
	Running() int
}

// Snapshot is the full status document: the stream prefix event and the
// body of GET /api/status (spec §6 "Stream prefix is a status event
// carrying the full status snapshot").
type Snapshot struct {
	Active                bool   `json:"active"`
	SponsorblockActive     bool   `json:"sponsorblock_active"`
	MonitoringEffective    bool   `json:"monitoring_effective"`
	SponsorblockEffective  bool   `json:"sponsorblock_effective"`
	JudgeOK                bool   `json:"judge_ok"`
	ScheduleActiveNow       bool   `json:"schedule_active_now"`
	ScheduleMode           string `json:"schedule_mode"`
	RemoteReleaseActive    bool   `json:"remote_release_active"`
	RemoteReleaseMinutes   int    `json:"remote_release_minutes"`
	Timezone               string `json:"timezone"`
	DevicesConnected       int    `json:"devices_connected"`
	DevicesTotal           int    `json:"devices_total"`
	SchedulesCount         int    `json:"schedules_count"`
	BlockedToday           int    `json:"blocked_today"`
	Blocked7d              int    `json:"blocked_7d"`
	AllowedToday           int    `json:"allowed_today"`
	Allowed7d              int    `json:"allowed_7d"`
	ReviewedToday          int    `json:"reviewed_today"`
	Reviewed7d             int    `json:"reviewed_7d"`
	BlockedTotal           int    `json:"blocked_total"`
	AllowedTotal           int    `json:"allowed_total"`
	LastError              string `json:"last_error"`
	UpdatedAt              string `json:"updated_at"`
}

// buildSnapshot computes the current status document from persisted
// settings, the schedule evaluator, and the device fleet (spec §4.8
// effective-state gates, mirrored from internal/mqtt's publishSnapshot
// so both surfaces agree on one derivation).
func buildSnapshot(ctx context.Context, st *store.Store, devices DeviceCounter, now time.Time) (Snapshot, error) {
	settings, err := st.AllSettings(ctx)
	if err != nil {
		return Snapshot{}, err
	}

	active := settings["active"] == "true"
	sponsorActive := settings["sponsorblock_active"] == "true"
	judgeOK := settings["judge_ok"] != "false"
	tz := settings["timezone"]
	if tz == "" {
		tz = "UTC"
	}

	// Reuse the exact monitoring/sponsorblock effective-state derivation
	// the event processor's gate uses (spec §4.8), rather than a
	// simplified legacy-window-only copy that ignores multi-window
	// schedule rows and the sponsorblock-specific window.
	scheduleOn, _, err := runtime.ScheduleActiveNow(ctx, st, now)
	if err != nil {
		scheduleOn = false
	}
	monitoringEffective := active && scheduleOn
	sponsorblockEffective, err := runtime.SponsorblockEffective(ctx, st, now)
	if err != nil {
		sponsorblockEffective = false
	}

	releaseUntil := settings["sponsorblock_release_until"]
	releaseActive := false
	releaseMinutes := 0
	if releaseUntil != "" {
		if until, err := time.Parse(time.RFC3339, releaseUntil); err == nil && until.After(now) {
			releaseActive = true
			releaseMinutes = int(until.Sub(now).Minutes()) + 1
		}
	}

	schedulesCount := 0
	if rows, err := st.ListSchedules(ctx); err == nil {
		schedulesCount = len(rows)
	}

	devicesTotal := 0
	if devs, err := st.ListDevices(ctx); err == nil {
		devicesTotal = len(devs)
	}
	devicesConnected := 0
	if devices != nil {
		devicesConnected = devices.Running()
	}

	counts, err := st.DecisionCounts(ctx, now)
	if err != nil {
		counts = store.DecisionCounts{}
	}

	return Snapshot{
		Active:                active,
		SponsorblockActive:    sponsorActive,
		MonitoringEffective:   monitoringEffective,
		SponsorblockEffective: sponsorblockEffective,
		JudgeOK:               judgeOK,
		ScheduleActiveNow:     scheduleOn,
		ScheduleMode:          settings["schedule_mode"],
		RemoteReleaseActive:   releaseActive,
		RemoteReleaseMinutes:  releaseMinutes,
		Timezone:              tz,
		DevicesConnected:      devicesConnected,
		DevicesTotal:          devicesTotal,
		SchedulesCount:        schedulesCount,
		BlockedToday:          counts.BlockedToday,
		Blocked7d:             counts.Blocked7d,
		AllowedToday:          counts.AllowedToday,
		Allowed7d:             counts.Allowed7d,
		ReviewedToday:         counts.ReviewedToday,
		Reviewed7d:            counts.Reviewed7d,
		BlockedTotal:          counts.BlockedTotal,
		AllowedTotal:          counts.AllowedTotal,
		LastError:             settings["last_error"],
		UpdatedAt:             now.Format(time.RFC3339),
	}, nil
}

