// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package mqtt implements the external command intake and Home Assistant
// discovery/state bridge (spec §2.9, §6): a paho MQTT client subscribed to
// three command topics, plus a debounced discovery and snapshot publisher,
// grounded on the original's mqtt_bridge.py.
package mqtt

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
)

var topicSlugRe = regexp.MustCompile(`[^a-zA-Z0-9_/-]+`)

// Config is the MQTT connection and topic configuration, rebuilt from
// persisted settings on every Tick (spec §6 "mqtt_* settings").
type Config struct {
	Enabled                 bool
	Host                    string
	Port                    int
	Username                string
	Password                string
	BaseTopic               string
	DiscoveryPrefix         string
	Retain                  bool
	TLS                     bool
	PublishIntervalSeconds  int
	ClientID                string
}

func boolFromSetting(raw string, def bool) bool {
	raw = strings.ToLower(strings.TrimSpace(raw))
	switch raw {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return def
	}
}

func safeInt(raw string, def, min, max int) int {
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		v = def
	}
	if v < min {
		v = min
	}
	if v > max {
		v = max
	}
	return v
}

func topicSlug(raw, def string) string {
	out := topicSlugRe.ReplaceAllString(strings.TrimSpace(raw), "")
	out = strings.Trim(out, "/")
	if out == "" {
		return def
	}
	return out
}

// buildConfig mirrors mqtt_bridge.py's _build_config.
func buildConfig(settings map[string]string) Config {
	return Config{
		Enabled:                boolFromSetting(settings["mqtt_enabled"], false),
		Host:                   strings.TrimSpace(settings["mqtt_host"]),
		Port:                   safeInt(settings["mqtt_port"], 1883, 1, 65535),
		Username:               strings.TrimSpace(settings["mqtt_username"]),
		Password:               settings["mqtt_password"],
		BaseTopic:              topicSlug(settings["mqtt_base_topic"], "sentinel"),
		DiscoveryPrefix:        topicSlug(settings["mqtt_discovery_prefix"], "homeassistant"),
		Retain:                 boolFromSetting(settings["mqtt_retain"], true),
		TLS:                    boolFromSetting(settings["mqtt_tls"], false),
		PublishIntervalSeconds: safeInt(settings["mqtt_publish_interval_seconds"], 30, 5, 3600),
		ClientID:               topicSlug(settings["mqtt_client_id"], "sentinel-yt"),
	}
}

// signature renders the fields that matter for "does the broker
// connection need to be re-established" (spec §6, grounded on
// mqtt_bridge.py's _signature / _config_signature comparison).
func signature(cfg Config) string {
	b, _ := json.Marshal(cfg)
	return string(b)
}

// commandTopics returns the three inbound command topics under cfg's
// base topic (spec §6 "MQTT command contract").
func commandTopics(cfg Config) map[string]string {
	return map[string]string{
		"active":                  cfg.BaseTopic + "/command/active/set",
		"sponsorblock_active":     cfg.BaseTopic + "/command/sponsorblock_active/set",
		"remote_release_minutes":  cfg.BaseTopic + "/command/remote_release_minutes/set",
	}
}

func stateTopic(cfg Config, key string) string {
	return cfg.BaseTopic + "/state/" + key
}
