// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package store

import (
	"context"
	"database/sql"
	"time"
)

// criticalSettings are retried with a compare-after-write loop because they
// gate runtime behavior and are sometimes written by a racing admin request
// and a reconciling supervisor tick at the same time.
var criticalSettings = map[string]bool{
	"active":              true,
	"sponsorblock_active": true,
	"mqtt_enabled":         true,
}

// DefaultSettings are the keys the core reads or writes, with their
// first-boot values.
func DefaultSettings(hostTimezone string) map[string]string {
	return map[string]string{
		"active":                           "true",
		"schedule_enabled":                 "true",
		"schedule_start":                   "07:00",
		"schedule_end":                     "19:00",
		"timezone":                         hostTimezone,
		"custom_prompt":                    "",
		"failure_webhook_url":              "",
		"judge_ok":                         "true",
		"last_error":                       "",
		"gemini_api_key_runtime":           "",
		"last_failure_alert_at":            "",
		"policy_flags_json":                "{}",
		"gemini_enabled":                   "true",
		"sponsorblock_active":              "false",
		"sponsorblock_schedule_enabled":    "false",
		"sponsorblock_schedule_start":      "00:00",
		"sponsorblock_schedule_end":        "23:59",
		"sponsorblock_timezone":            hostTimezone,
		"sponsorblock_categories_json":     `["sponsor","selfpromo","interaction","intro","outro","music_offtopic"]`,
		"sponsorblock_min_length_seconds":  "1.0",
		"sponsorblock_release_until":       "",
		"mqtt_enabled":                     "false",
		"mqtt_host":                        "",
		"mqtt_port":                        "1883",
		"mqtt_username":                    "",
		"mqtt_password":                    "",
		"mqtt_base_topic":                  "sentinel",
		"mqtt_discovery_prefix":            "homeassistant",
		"mqtt_retain":                      "true",
		"mqtt_tls":                         "false",
		"mqtt_publish_interval_seconds":    "30",
		"mqtt_client_id":                   "sentinel-yt",
		"blocklist_source_urls":            "",
		"allowlist_source_urls":            "",
		"allow_policy_flags_json":          "{}",
		"schedule_mode":                    "blocklist",
	}
}

// EnsureDefaults writes any key from DefaultSettings that is not already
// present, leaving existing values untouched. Call once at startup.
func (s *Store) EnsureDefaults(ctx context.Context, hostTimezone string) error {
	for key, value := range DefaultSettings(hostTimezone) {
		existing, err := s.GetSetting(ctx, key)
		if err != nil {
			return err
		}
		if existing != nil {
			continue
		}
		if err := s.SetSetting(ctx, key, value); err != nil {
			return err
		}
	}
	return nil
}

// GetSetting returns the persisted value for key, or nil if unset.
func (s *Store) GetSetting(ctx context.Context, key string) (*string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &value, nil
}

// AllSettings returns every persisted key/value pair.
func (s *Store) AllSettings(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT key, value FROM settings")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]string{}
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, rows.Err()
}

// SetSetting upserts a single key. For keys in criticalSettings it also
// reads the value back and, while it differs, writes it again 50ms later,
// for at most three write attempts in all, to tolerate a racing writer
// silently overwriting it in between the write and the read.
func (s *Store) SetSetting(ctx context.Context, key, value string) error {
	if !criticalSettings[key] {
		return s.writeSetting(ctx, key, value)
	}

	const attempts = 3
	const delay = 50 * time.Millisecond
	var lastErr error
	for i := 0; i < attempts; i++ {
		if err := s.writeSetting(ctx, key, value); err != nil {
			lastErr = err
			continue
		}
		got, err := s.GetSetting(ctx, key)
		if err != nil {
			lastErr = err
			continue
		}
		if got != nil && *got == value {
			return nil
		}
		lastErr = nil
		if i < attempts-1 {
			time.Sleep(delay)
		}
	}
	return lastErr
}

func (s *Store) writeSetting(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO settings(key, value) VALUES(?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}
