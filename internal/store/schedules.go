// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package store

import "context"

// ScheduleWindow is one row of the schedules table.
type ScheduleWindow struct {
	ID        int64
	Name      string
	Enabled   bool
	Start     string
	End       string
	Timezone  string
	Mode      string
	CreatedAt string
	UpdatedAt string
}

// ListSchedules returns every schedule row, ordered by id.
func (s *Store) ListSchedules(ctx context.Context) ([]ScheduleWindow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, enabled, start, end, timezone, mode, created_at, updated_at
		FROM schedules ORDER BY id ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ScheduleWindow
	for rows.Next() {
		var w ScheduleWindow
		var enabled int
		if err := rows.Scan(&w.ID, &w.Name, &enabled, &w.Start, &w.End, &w.Timezone, &w.Mode, &w.CreatedAt, &w.UpdatedAt); err != nil {
			return nil, err
		}
		w.Enabled = enabled != 0
		out = append(out, w)
	}
	return out, rows.Err()
}

// AddSchedule inserts a new schedule row and returns its id.
func (s *Store) AddSchedule(ctx context.Context, w ScheduleWindow) (int64, error) {
	now := utcNowISO()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO schedules(name, enabled, start, end, timezone, mode, created_at, updated_at)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?)
	`, w.Name, boolToInt(w.Enabled), w.Start, w.End, w.Timezone, w.Mode, now, now)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// UpdateSchedule overwrites an existing schedule row by id, reporting
// whether a row was actually matched.
func (s *Store) UpdateSchedule(ctx context.Context, w ScheduleWindow) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE schedules
		SET name = ?, enabled = ?, start = ?, end = ?, timezone = ?, mode = ?, updated_at = ?
		WHERE id = ?
	`, w.Name, boolToInt(w.Enabled), w.Start, w.End, w.Timezone, w.Mode, utcNowISO(), w.ID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// DeleteSchedule removes a schedule row by id, reporting whether a row
// was matched. Callers are responsible for re-bootstrapping a default
// window via EnsureDefaultSchedule if this empties the table.
func (s *Store) DeleteSchedule(ctx context.Context, id int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM schedules WHERE id = ?", id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// EnsureDefaultSchedule inserts a single default window built from the
// legacy schedule_* settings when the schedules table is empty. The
// invariant this restores — at least one schedule row always exists — is
// what lets the runtime orchestrator treat the legacy single-window
// fallback in ScheduleActiveNow as unreachable in steady state.
func (s *Store) EnsureDefaultSchedule(ctx context.Context) error {
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schedules").Scan(&count); err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	enabled := true
	if v, err := s.GetSetting(ctx, "schedule_enabled"); err == nil && v != nil {
		enabled = *v == "true"
	}
	start := "07:00"
	if v, err := s.GetSetting(ctx, "schedule_start"); err == nil && v != nil && *v != "" {
		start = *v
	}
	end := "19:00"
	if v, err := s.GetSetting(ctx, "schedule_end"); err == nil && v != nil && *v != "" {
		end = *v
	}
	tz := "UTC"
	if v, err := s.GetSetting(ctx, "timezone"); err == nil && v != nil && *v != "" {
		tz = *v
	}
	mode := "blocklist"
	if v, err := s.GetSetting(ctx, "schedule_mode"); err == nil && v != nil && *v != "" {
		mode = *v
	}

	_, err := s.AddSchedule(ctx, ScheduleWindow{
		Name:     "Default",
		Enabled:  enabled,
		Start:    start,
		End:      end,
		Timezone: tz,
		Mode:     mode,
	})
	return err
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
