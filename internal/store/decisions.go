// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package store

import (
	"context"
	"database/sql"
	"time"
)

// Decision is one row of the video_decisions table: a classification
// outcome, the device it was observed on, and what action (if any) was
// taken as a result.
type Decision struct {
	ID           int64
	DeviceID     *int64
	VideoID      string
	ChannelID    string
	Title        string
	ThumbnailURL string
	Verdict      string
	Reason       string
	Confidence   int
	Source       string
	ActionTaken  string
	CreatedAt    string
}

// AddDecision appends a decision record. video_decisions is append-only;
// there is no update path.
func (s *Store) AddDecision(ctx context.Context, d Decision) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO video_decisions(device_id, video_id, channel_id, title, thumbnail_url, verdict, reason, confidence, source, action_taken, created_at)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, d.DeviceID, d.VideoID, d.ChannelID, d.Title, d.ThumbnailURL, d.Verdict, d.Reason, d.Confidence, d.Source, d.ActionTaken, utcNowISO())
	return err
}

// RecentDecisions returns up to limit decisions, most recent first.
func (s *Store) RecentDecisions(ctx context.Context, limit int) ([]Decision, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, device_id, video_id, channel_id, title, thumbnail_url, verdict, reason, confidence, source, action_taken, created_at
		FROM video_decisions ORDER BY id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanDecisions(rows)
}

// DecisionsByVerdict returns up to limit decisions with the given verdict
// ("BLOCK" or "ALLOW"), most recent first.
func (s *Store) DecisionsByVerdict(ctx context.Context, verdict string, limit int) ([]Decision, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, device_id, video_id, channel_id, title, thumbnail_url, verdict, reason, confidence, source, action_taken, created_at
		FROM video_decisions WHERE verdict = ? ORDER BY id DESC LIMIT ?
	`, verdict, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanDecisions(rows)
}

// DecisionPage is one page of a paginated decision listing.
type DecisionPage struct {
	Rows       []Decision
	Page       int
	PageSize   int
	TotalCount int
	PageCount  int
	HasPrev    bool
	HasNext    bool
}

// PagedDecisions returns a bounded page of decisions. The total scanned
// is capped at maxTotal so a large history table never has to be fully
// counted or scanned for a single page request.
func (s *Store) PagedDecisions(ctx context.Context, page, pageSize, maxTotal int) (DecisionPage, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 1
	}
	if pageSize > 100 {
		pageSize = 100
	}
	if maxTotal < pageSize {
		maxTotal = pageSize
	}

	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM (SELECT 1 FROM video_decisions LIMIT ?)", maxTotal).Scan(&total); err != nil {
		return DecisionPage{}, err
	}
	if total > maxTotal {
		total = maxTotal
	}
	pageCount := (total + pageSize - 1) / pageSize
	if pageCount < 1 {
		pageCount = 1
	}
	if page > pageCount {
		page = pageCount
	}
	offset := (page - 1) * pageSize

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, device_id, video_id, channel_id, title, thumbnail_url, verdict, reason, confidence, source, action_taken, created_at
		FROM (
			SELECT id, device_id, video_id, channel_id, title, thumbnail_url, verdict, reason, confidence, source, action_taken, created_at
			FROM video_decisions ORDER BY id DESC LIMIT ?
		)
		ORDER BY id DESC LIMIT ? OFFSET ?
	`, maxTotal, pageSize, offset)
	if err != nil {
		return DecisionPage{}, err
	}
	defer rows.Close()

	out, err := scanDecisions(rows)
	if err != nil {
		return DecisionPage{}, err
	}

	return DecisionPage{
		Rows:       out,
		Page:       page,
		PageSize:   pageSize,
		TotalCount: total,
		PageCount:  pageCount,
		HasPrev:    page > 1,
		HasNext:    page < pageCount,
	}, nil
}

// PurgeDecisions deletes all video_decisions rows and returns the count
// that existed beforehand.
func (s *Store) PurgeDecisions(ctx context.Context) (int, error) {
	var before int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM video_decisions").Scan(&before); err != nil {
		return 0, err
	}
	if _, err := s.db.ExecContext(ctx, "DELETE FROM video_decisions"); err != nil {
		return 0, err
	}
	return before, nil
}

// DecisionCounts summarizes block/allow volume for the status snapshot
// and MQTT discovery sensors (spec §6, mirroring the original's
// admin-status trend aggregation).
type DecisionCounts struct {
	BlockedToday, AllowedToday, ReviewedToday int
	Blocked7d, Allowed7d, Reviewed7d          int
	BlockedTotal, AllowedTotal                int
}

// DecisionCounts aggregates video_decisions by verdict over today, the
// trailing 7 days, and all time, using created_at's UTC timestamp.
func (s *Store) DecisionCounts(ctx context.Context, now time.Time) (DecisionCounts, error) {
	dayStart := now.UTC().Truncate(24 * time.Hour).Format(time.RFC3339Nano)
	weekStart := now.UTC().Add(-7 * 24 * time.Hour).Format(time.RFC3339Nano)

	var out DecisionCounts
	count := func(verdict, since string) (int, error) {
		var n int
		var err error
		if since == "" {
			err = s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM video_decisions WHERE verdict = ?", verdict).Scan(&n)
		} else {
			err = s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM video_decisions WHERE verdict = ? AND created_at >= ?", verdict, since).Scan(&n)
		}
		return n, err
	}
	total := func(since string) (int, error) {
		var n int
		var err error
		if since == "" {
			err = s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM video_decisions").Scan(&n)
		} else {
			err = s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM video_decisions WHERE created_at >= ?", since).Scan(&n)
		}
		return n, err
	}

	var err error
	if out.BlockedToday, err = count("BLOCK", dayStart); err != nil {
		return DecisionCounts{}, err
	}
	if out.AllowedToday, err = count("ALLOW", dayStart); err != nil {
		return DecisionCounts{}, err
	}
	if out.ReviewedToday, err = total(dayStart); err != nil {
		return DecisionCounts{}, err
	}
	if out.Blocked7d, err = count("BLOCK", weekStart); err != nil {
		return DecisionCounts{}, err
	}
	if out.Allowed7d, err = count("ALLOW", weekStart); err != nil {
		return DecisionCounts{}, err
	}
	if out.Reviewed7d, err = total(weekStart); err != nil {
		return DecisionCounts{}, err
	}
	if out.BlockedTotal, err = count("BLOCK", ""); err != nil {
		return DecisionCounts{}, err
	}
	if out.AllowedTotal, err = count("ALLOW", ""); err != nil {
		return DecisionCounts{}, err
	}
	return out, nil
}

func scanDecisions(rows *sql.Rows) ([]Decision, error) {
	var out []Decision
	for rows.Next() {
		var d Decision
		var deviceID sql.NullInt64
		var channelID, title, thumb, reason, action sql.NullString
		if err := rows.Scan(&d.ID, &deviceID, &d.VideoID, &channelID, &title, &thumb, &d.Verdict, &reason, &d.Confidence, &d.Source, &action, &d.CreatedAt); err != nil {
			return nil, err
		}
		if deviceID.Valid {
			v := deviceID.Int64
			d.DeviceID = &v
		}
		d.ChannelID = channelID.String
		d.Title = title.String
		d.ThumbnailURL = thumb.String
		d.Reason = reason.String
		d.ActionTaken = action.String
		out = append(out, d)
	}
	return out, rows.Err()
}
