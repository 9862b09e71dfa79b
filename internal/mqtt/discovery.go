// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/ManuGH/xg2g/internal/log"
	"github.com/ManuGH/xg2g/internal/runtime"
)

type discoveryEntity struct {
	component string
	objectID  string
	payload   map[string]any
}

type haDevice struct {
	Identifiers []string `json:"identifiers"`
	Name        string   `json:"name"`
	Manufacturer string  `json:"manufacturer"`
	Model       string   `json:"model"`
	SWVersion   string   `json:"sw_version"`
}

func (b *Bridge) discoveryTopic(cfg Config, component, objectID string) string {
	node := topicSlug(cfg.ClientID, "sentinel-yt")
	return fmt.Sprintf("%s/%s/%s/%s/config", cfg.DiscoveryPrefix, component, node, objectID)
}

// discoveryEntities returns the switch, binary sensor, sensor and number
// entities, mirroring mqtt_bridge.py's publish_discovery entity table (spec §9 supplemented
// feature 4).
func discoveryEntities(cfg Config) []discoveryEntity {
	node := topicSlug(cfg.ClientID, "sentinel-yt")
	commands := commandTopics(cfg)

	return []discoveryEntity{
		{"switch", "sentinel_active", map[string]any{
			"name": "Sentinel Active", "unique_id": node + "_sentinel_active",
			"state_topic": stateTopic(cfg, "active"), "command_topic": commands["active"],
			"payload_on": "ON", "payload_off": "OFF", "state_on": "ON", "state_off": "OFF",
			"icon": "mdi:shield-check",
		}},
		{"switch", "sponsorblock_active", map[string]any{
			"name": "SponsorBlock Active", "unique_id": node + "_sponsorblock_active",
			"state_topic": stateTopic(cfg, "sponsorblock_active"), "command_topic": commands["sponsorblock_active"],
			"payload_on": "ON", "payload_off": "OFF", "state_on": "ON", "state_off": "OFF",
			"icon": "mdi:skip-next-circle",
		}},
		{"binary_sensor", "monitoring_effective", map[string]any{
			"name": "Sentinel Monitoring Effective", "unique_id": node + "_monitoring_effective",
			"state_topic": stateTopic(cfg, "monitoring_effective"),
			"payload_on": "ON", "payload_off": "OFF", "icon": "mdi:shield-search",
		}},
		{"binary_sensor", "sponsorblock_effective", map[string]any{
			"name": "SponsorBlock Effective", "unique_id": node + "_sponsorblock_effective",
			"state_topic": stateTopic(cfg, "sponsorblock_effective"),
			"payload_on": "ON", "payload_off": "OFF", "icon": "mdi:skip-forward-outline",
		}},
		{"binary_sensor", "judge_ok", map[string]any{
			"name": "Sentinel Judge OK", "unique_id": node + "_judge_ok",
			"state_topic": stateTopic(cfg, "judge_ok"),
			"payload_on": "ON", "payload_off": "OFF", "icon": "mdi:robot",
		}},
		{"binary_sensor", "schedule_active_now", map[string]any{
			"name": "Sentinel Schedule Active", "unique_id": node + "_schedule_active_now",
			"state_topic": stateTopic(cfg, "schedule_active_now"),
			"payload_on": "ON", "payload_off": "OFF", "icon": "mdi:calendar-clock",
		}},
		{"binary_sensor", "remote_release_active", map[string]any{
			"name": "Sentinel Remote Release Active", "unique_id": node + "_remote_release_active",
			"state_topic": stateTopic(cfg, "remote_release_active"),
			"payload_on": "ON", "payload_off": "OFF", "icon": "mdi:television-play",
		}},
		{"sensor", "schedule_mode_now", map[string]any{
			"name": "Sentinel Schedule Mode", "unique_id": node + "_schedule_mode_now",
			"state_topic": stateTopic(cfg, "schedule_mode_now"), "icon": "mdi:timeline-text",
		}},
		{"sensor", "timezone", map[string]any{
			"name": "Sentinel Timezone", "unique_id": node + "_timezone",
			"state_topic": stateTopic(cfg, "timezone"), "icon": "mdi:map-clock",
		}},
		{"sensor", "build_version", map[string]any{
			"name": "Sentinel Build Version", "unique_id": node + "_build_version",
			"state_topic": stateTopic(cfg, "build_version"), "icon": "mdi:source-branch",
		}},
		{"sensor", "blocked_today", map[string]any{
			"name": "Sentinel Blocked Today", "unique_id": node + "_blocked_today",
			"state_topic": stateTopic(cfg, "blocked_today"), "state_class": "measurement", "icon": "mdi:shield-remove",
		}},
		{"sensor", "blocked_7d", map[string]any{
			"name": "Sentinel Blocked 7d", "unique_id": node + "_blocked_7d",
			"state_topic": stateTopic(cfg, "blocked_7d"), "state_class": "measurement", "icon": "mdi:calendar-week",
		}},
		{"sensor", "allowed_today", map[string]any{
			"name": "Sentinel Allowed Today", "unique_id": node + "_allowed_today",
			"state_topic": stateTopic(cfg, "allowed_today"), "state_class": "measurement", "icon": "mdi:shield-check",
		}},
		{"sensor", "allowed_7d", map[string]any{
			"name": "Sentinel Allowed 7d", "unique_id": node + "_allowed_7d",
			"state_topic": stateTopic(cfg, "allowed_7d"), "state_class": "measurement", "icon": "mdi:calendar-week",
		}},
		{"sensor", "reviewed_today", map[string]any{
			"name": "Sentinel Reviewed Today", "unique_id": node + "_reviewed_today",
			"state_topic": stateTopic(cfg, "reviewed_today"), "state_class": "measurement", "icon": "mdi:counter",
		}},
		{"sensor", "reviewed_7d", map[string]any{
			"name": "Sentinel Reviewed 7d", "unique_id": node + "_reviewed_7d",
			"state_topic": stateTopic(cfg, "reviewed_7d"), "state_class": "measurement", "icon": "mdi:calendar-week",
		}},
		{"sensor", "devices_connected", map[string]any{
			"name": "Sentinel Devices Connected", "unique_id": node + "_devices_connected",
			"state_topic": stateTopic(cfg, "devices_connected"), "state_class": "measurement", "icon": "mdi:cast-connected",
		}},
		{"sensor", "devices_total", map[string]any{
			"name": "Sentinel Devices Total", "unique_id": node + "_devices_total",
			"state_topic": stateTopic(cfg, "devices_total"), "state_class": "measurement", "icon": "mdi:television",
		}},
		{"sensor", "schedules_count", map[string]any{
			"name": "Sentinel Schedules Count", "unique_id": node + "_schedules_count",
			"state_topic": stateTopic(cfg, "schedules_count"), "state_class": "measurement", "icon": "mdi:calendar-multiselect",
		}},
		{"sensor", "blocked_total", map[string]any{
			"name": "Sentinel Blocked Total", "unique_id": node + "_blocked_total",
			"state_topic": stateTopic(cfg, "blocked_total"), "state_class": "total_increasing", "icon": "mdi:shield-lock",
		}},
		{"sensor", "allowed_total", map[string]any{
			"name": "Sentinel Allowed Total", "unique_id": node + "_allowed_total",
			"state_topic": stateTopic(cfg, "allowed_total"), "state_class": "total_increasing", "icon": "mdi:playlist-check",
		}},
		{"sensor", "db_size_bytes", map[string]any{
			"name": "Sentinel DB Size", "unique_id": node + "_db_size_bytes",
			"state_topic": stateTopic(cfg, "db_size_bytes"), "state_class": "measurement",
			"unit_of_measurement": "B", "icon": "mdi:database",
		}},
		{"sensor", "last_error", map[string]any{
			"name": "Sentinel Last Error", "unique_id": node + "_last_error",
			"state_topic": stateTopic(cfg, "last_error"), "icon": "mdi:alert-circle-outline",
		}},
		{"number", "remote_release_minutes", map[string]any{
			"name": "Sentinel Release Minutes", "unique_id": node + "_remote_release_minutes",
			"state_topic": stateTopic(cfg, "remote_release_minutes"), "command_topic": commands["remote_release_minutes"],
			"min": 0, "max": 240, "step": 1, "mode": "box", "icon": "mdi:timer-cog",
		}},
	}
}

// publishDiscovery publishes the Home Assistant discovery documents for
// every entity, skipping the round trip entirely when nothing
// discovery-relevant has changed since the last publish (spec §9
// supplemented feature 4).
func (b *Bridge) publishDiscovery(ctx context.Context, force bool) {
	b.mu.Lock()
	cfg := b.cfg
	client := b.client
	prevSig := b.discoverySignature
	b.mu.Unlock()
	if !cfg.Enabled || cfg.Host == "" || client == nil {
		return
	}

	sig, _ := json.Marshal(map[string]any{
		"base_topic":       cfg.BaseTopic,
		"discovery_prefix": cfg.DiscoveryPrefix,
		"retain":           cfg.Retain,
		"build_version":    b.buildVersion,
	})
	if !force && string(sig) == prevSig {
		return
	}

	node := topicSlug(cfg.ClientID, "sentinel-yt")
	device := haDevice{
		Identifiers:  []string{node + "_device"},
		Name:         "Sentinel YouTube Guardian",
		Manufacturer: "Sentinel",
		Model:        "sentinel-yt",
		SWVersion:    b.buildVersion,
	}
	availability := stateTopic(cfg, "availability")

	for _, e := range discoveryEntities(cfg) {
		payload := map[string]any{}
		for k, v := range e.payload {
			payload[k] = v
		}
		payload["availability_topic"] = availability
		payload["payload_available"] = "online"
		payload["payload_not_available"] = "offline"
		payload["device"] = device

		body, err := json.Marshal(payload)
		if err != nil {
			continue
		}
		b.publish(b.discoveryTopic(cfg, e.component, e.objectID), string(body), true)
	}

	b.mu.Lock()
	b.discoverySignature = string(sig)
	b.mu.Unlock()
}

// publishSnapshot publishes every discovery entity's current state (spec
// §9 supplemented feature 4). A failed settings read skips the whole
// snapshot; a failure of the schedule, device or decision-count reads
// leaves that field at zero and the rest are still published.
func (b *Bridge) publishSnapshot(ctx context.Context) {
	logger := log.WithComponent("mqtt")
	b.mu.Lock()
	cfg := b.cfg
	client := b.client
	lastErr := b.lastError
	b.mu.Unlock()
	if !cfg.Enabled || cfg.Host == "" || client == nil {
		return
	}

	pairs, err := b.snapshotPairs(ctx, lastErr, time.Now().UTC())
	if err != nil {
		logger.Warn().Err(err).Msg("mqtt: snapshot settings read failed")
		return
	}

	b.publish(stateTopic(cfg, "availability"), "online", true)
	for key, value := range pairs {
		b.publish(stateTopic(cfg, key), value, cfg.Retain)
	}
}

// snapshotPairs computes publishSnapshot's state-topic/value pairs without
// touching the MQTT client, so the derived monitoring/sponsorblock
// effective-state fields are directly testable against a store fixture
// (spec §9 supplemented feature 4).
func (b *Bridge) snapshotPairs(ctx context.Context, lastErr string, now time.Time) (map[string]string, error) {
	logger := log.WithComponent("mqtt")
	settings, err := b.store.AllSettings(ctx)
	if err != nil {
		return nil, err
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
	scheduleOn, _, err := runtime.ScheduleActiveNow(ctx, b.store, now)
	if err != nil {
		logger.Debug().Err(err).Msg("mqtt: schedule active check failed")
		scheduleOn = false
	}
	monitoringEffective := active && scheduleOn
	sponsorblockEffective, err := runtime.SponsorblockEffective(ctx, b.store, now)
	if err != nil {
		logger.Debug().Err(err).Msg("mqtt: sponsorblock effective check failed")
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

	schedules, err := b.store.ListSchedules(ctx)
	schedulesCount := 0
	if err == nil {
		schedulesCount = len(schedules)
	}

	devicesTotal := 0
	if devs, err := b.store.ListDevices(ctx); err == nil {
		devicesTotal = len(devs)
	}
	devicesConnected := 0
	if b.devices != nil {
		devicesConnected = b.devices.Running()
	}

	counts, err := b.store.DecisionCounts(ctx, now)
	if err != nil {
		logger.Debug().Err(err).Msg("mqtt: decision counts unavailable")
	}

	return map[string]string{
		"active":                 switchPayload(active),
		"sponsorblock_active":    switchPayload(sponsorActive),
		"monitoring_effective":   switchPayload(monitoringEffective),
		"sponsorblock_effective": switchPayload(sponsorblockEffective),
		"judge_ok":               switchPayload(judgeOK),
		"schedule_active_now":    switchPayload(scheduleOn),
		"schedule_mode_now":      settings["schedule_mode"],
		"schedules_count":        strconv.Itoa(schedulesCount),
		"timezone":               tz,
		"build_version":          b.buildVersion,
		"remote_release_active":  switchPayload(releaseActive),
		"remote_release_minutes": strconv.Itoa(releaseMinutes),
		"devices_connected":      strconv.Itoa(devicesConnected),
		"devices_total":          strconv.Itoa(devicesTotal),
		"blocked_today":          strconv.Itoa(counts.BlockedToday),
		"blocked_7d":             strconv.Itoa(counts.Blocked7d),
		"allowed_today":          strconv.Itoa(counts.AllowedToday),
		"allowed_7d":             strconv.Itoa(counts.Allowed7d),
		"reviewed_today":         strconv.Itoa(counts.ReviewedToday),
		"reviewed_7d":            strconv.Itoa(counts.Reviewed7d),
		"blocked_total":          strconv.Itoa(counts.BlockedTotal),
		"allowed_total":          strconv.Itoa(counts.AllowedTotal),
		"updated_at":             now.Format(time.RFC3339),
		"last_error":             lastErr,
	}, nil
}

func switchPayload(on bool) string {
	if on {
		return "ON"
	}
	return "OFF"
}
