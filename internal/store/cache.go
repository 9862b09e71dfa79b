// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"
)

// CachedVerdict is the structured payload stored under a cache key. A
// row whose payload fails to unmarshal into this shape is treated as a
// miss rather than surfaced as an error (spec §9).
type CachedVerdict struct {
	Verdict    string `json:"verdict"`
	Reason     string `json:"reason"`
	Confidence int    `json:"confidence"`
	Source     string `json:"source"`
}

func (v CachedVerdict) valid() bool {
	return v.Verdict == "ALLOW" || v.Verdict == "BLOCK"
}

// CacheSet upserts a verdict under key with an absolute expiry.
func (s *Store) CacheSet(ctx context.Context, key string, v CachedVerdict, expiresAt time.Time) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO analysis_cache(key, payload_json, expires_at)
		VALUES(?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET payload_json = excluded.payload_json, expires_at = excluded.expires_at
	`, key, string(payload), expiresAt.UTC().Format(time.RFC3339Nano))
	return err
}

// CacheGet returns the verdict stored under key. It reports a miss (ok
// == false, err == nil) when the key is absent, expired, or the stored
// payload doesn't parse into a valid CachedVerdict.
func (s *Store) CacheGet(ctx context.Context, key string) (CachedVerdict, bool, error) {
	var payload string
	var expiresAt sql.NullString
	err := s.db.QueryRowContext(ctx, "SELECT payload_json, expires_at FROM analysis_cache WHERE key = ?", key).Scan(&payload, &expiresAt)
	if err == sql.ErrNoRows {
		return CachedVerdict{}, false, nil
	}
	if err != nil {
		return CachedVerdict{}, false, err
	}

	if expiresAt.Valid && expiresAt.String != "" {
		exp, err := time.Parse(time.RFC3339Nano, expiresAt.String)
		if err == nil && time.Now().UTC().After(exp) {
			return CachedVerdict{}, false, nil
		}
	}

	var v CachedVerdict
	if err := json.Unmarshal([]byte(payload), &v); err != nil || !v.valid() {
		return CachedVerdict{}, false, nil
	}
	return v, true, nil
}

// PurgeCache deletes every analysis_cache row and returns the count that
// existed beforehand.
func (s *Store) PurgeCache(ctx context.Context) (int, error) {
	var before int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM analysis_cache").Scan(&before); err != nil {
		return 0, err
	}
	if _, err := s.db.ExecContext(ctx, "DELETE FROM analysis_cache"); err != nil {
		return 0, err
	}
	return before, nil
}
