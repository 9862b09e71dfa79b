// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package store

import (
	"context"
	"database/sql"
)

// Device is one row of the devices table. AuthStateJSON carries the
// opaque pairing/session blob; callers marshal/unmarshal it, the store
// treats it as text.
type Device struct {
	ID            int64
	Name          string
	ScreenID      string
	LoungeToken   string
	AuthStateJSON string
	Status        string
	LastSeenAt    string
	LastError     string
}

// UpsertDevice inserts or updates a device keyed by ScreenID, returning
// its id. A conflicting screen_id overwrites name, token, auth state,
// status and last_error — mirroring a fresh pairing re-claiming an
// existing row instead of creating a duplicate.
func (s *Store) UpsertDevice(ctx context.Context, d Device) (int64, error) {
	now := utcNowISO()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO devices(name, screen_id, lounge_token, auth_state_json, status, last_seen_at, last_error)
		VALUES(?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(screen_id) DO UPDATE SET
			name = excluded.name,
			lounge_token = excluded.lounge_token,
			auth_state_json = excluded.auth_state_json,
			status = excluded.status,
			last_seen_at = excluded.last_seen_at,
			last_error = excluded.last_error
	`, d.Name, d.ScreenID, d.LoungeToken, d.AuthStateJSON, orDefault(d.Status, "paired"), now, d.LastError)
	if err != nil {
		return 0, err
	}

	var id int64
	err = s.db.QueryRowContext(ctx, "SELECT id FROM devices WHERE screen_id = ?", d.ScreenID).Scan(&id)
	return id, err
}

// ListDevices returns every device, ordered by id.
func (s *Store) ListDevices(ctx context.Context) ([]Device, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, screen_id, lounge_token, auth_state_json, status, last_seen_at, last_error
		FROM devices ORDER BY id ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Device
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// GetDevice fetches a device by id. Returns (Device{}, false, nil) if no
// row matches.
func (s *Store) GetDevice(ctx context.Context, id int64) (Device, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, screen_id, lounge_token, auth_state_json, status, last_seen_at, last_error
		FROM devices WHERE id = ?
	`, id)
	return scanDeviceRow(row)
}

// GetDeviceByScreenID fetches a device by its screen id.
func (s *Store) GetDeviceByScreenID(ctx context.Context, screenID string) (Device, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, screen_id, lounge_token, auth_state_json, status, last_seen_at, last_error
		FROM devices WHERE screen_id = ?
	`, screenID)
	return scanDeviceRow(row)
}

// UpdateDeviceStatus transitions a device's status and last_error,
// bumping last_seen_at to now.
func (s *Store) UpdateDeviceStatus(ctx context.Context, id int64, status, lastError string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE devices SET status = ?, last_error = ?, last_seen_at = ? WHERE id = ?",
		status, lastError, utcNowISO(), id,
	)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDevice(r rowScanner) (Device, error) {
	var d Device
	var name, token, auth, status, seenAt, lastErr sql.NullString
	if err := r.Scan(&d.ID, &name, &d.ScreenID, &token, &auth, &status, &seenAt, &lastErr); err != nil {
		return Device{}, err
	}
	d.Name = name.String
	d.LoungeToken = token.String
	d.AuthStateJSON = auth.String
	d.Status = orDefault(status.String, "offline")
	d.LastSeenAt = seenAt.String
	d.LastError = lastErr.String
	return d, nil
}

func scanDeviceRow(row *sql.Row) (Device, bool, error) {
	d, err := scanDevice(row)
	if err == sql.ErrNoRows {
		return Device{}, false, nil
	}
	if err != nil {
		return Device{}, false, err
	}
	return d, true, nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
