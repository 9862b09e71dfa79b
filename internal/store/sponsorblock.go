// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package store

import "context"

// SponsorAction is one row of the sponsorblock_actions log: a record of
// a skip attempt (successful or not) for a segment on a device.
type SponsorAction struct {
	ID           int64
	DeviceID     int64
	VideoID      string
	Title        string
	Category     string
	SegmentStart float64
	SegmentEnd   float64
	ActionTaken  string
	Status       string
	Error        string
	CreatedAt    string
}

// AddSponsorAction appends a row to the sponsor-action log. The log is
// append-only, used for the admin UI's recent-activity view.
func (s *Store) AddSponsorAction(ctx context.Context, a SponsorAction) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sponsorblock_actions(device_id, video_id, title, category, segment_start, segment_end, action_taken, status, error, created_at)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, a.DeviceID, a.VideoID, a.Title, a.Category, a.SegmentStart, a.SegmentEnd, a.ActionTaken, a.Status, a.Error, utcNowISO())
	return err
}

// RecentSponsorActions returns up to limit rows, most recent first.
func (s *Store) RecentSponsorActions(ctx context.Context, limit int) ([]SponsorAction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, device_id, video_id, title, category, segment_start, segment_end, action_taken, status, error, created_at
		FROM sponsorblock_actions ORDER BY id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SponsorAction
	for rows.Next() {
		var a SponsorAction
		if err := rows.Scan(&a.ID, &a.DeviceID, &a.VideoID, &a.Title, &a.Category, &a.SegmentStart, &a.SegmentEnd, &a.ActionTaken, &a.Status, &a.Error, &a.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// DBStats reports per-table row counts, mirroring the admin
// diagnostics endpoint in the original implementation.
type DBStats struct {
	VideoDecisions  int
	AnalysisCache   int
	Rules           int
	SponsorActions  int
	Schedules       int
}

// Stats returns row counts across the tables the admin diagnostics view
// reports on. File-size reporting is the caller's responsibility since
// the store does not know its own dbPath once opened.
func (s *Store) Stats(ctx context.Context) (DBStats, error) {
	var st DBStats
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM video_decisions").Scan(&st.VideoDecisions); err != nil {
		return DBStats{}, err
	}
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM analysis_cache").Scan(&st.AnalysisCache); err != nil {
		return DBStats{}, err
	}
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM rules").Scan(&st.Rules); err != nil {
		return DBStats{}, err
	}
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM sponsorblock_actions").Scan(&st.SponsorActions); err != nil {
		return DBStats{}, err
	}
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schedules").Scan(&st.Schedules); err != nil {
		return DBStats{}, err
	}
	return st, nil
}
