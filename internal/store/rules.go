// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package store

import (
	"context"
	"database/sql"
)

// Rule is one row of the rules table: a manual or imported allow/block
// entry scoped to a video or channel.
type Rule struct {
	ID         int64
	RuleType   string // "whitelist" | "blacklist"
	Scope      string // "video" | "channel"
	Value      string
	Label      string
	URL        string
	SourceList string
	CreatedAt  string
}

// AddRule inserts a new rule row.
func (s *Store) AddRule(ctx context.Context, r Rule) error {
	sourceList := r.SourceList
	if sourceList == "" {
		sourceList = "manual"
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO rules(rule_type, scope, value, label, url, source_list, created_at)
		VALUES(?, ?, ?, ?, ?, ?, ?)
	`, r.RuleType, r.Scope, r.Value, r.Label, r.URL, sourceList, utcNowISO())
	return err
}

// DeleteRule removes a rule by id.
func (s *Store) DeleteRule(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM rules WHERE id = ?", id)
	return err
}

// GetRule fetches a single rule by id.
func (s *Store) GetRule(ctx context.Context, id int64) (Rule, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, rule_type, scope, value, label, url, source_list, created_at
		FROM rules WHERE id = ?
	`, id)
	return scanRuleRow(row)
}

// ListRules returns up to limit rules, most recent first. ruleType
// filters to "whitelist" or "blacklist"; any other value (including "")
// returns both.
func (s *Store) ListRules(ctx context.Context, limit int, ruleType string) ([]Rule, error) {
	var rows *sql.Rows
	var err error
	if ruleType == "whitelist" || ruleType == "blacklist" {
		rows, err = s.db.QueryContext(ctx, `
			SELECT id, rule_type, scope, value, label, url, source_list, created_at
			FROM rules WHERE rule_type = ? ORDER BY id DESC LIMIT ?
		`, ruleType, limit)
	} else {
		rows, err = s.db.QueryContext(ctx, `
			SELECT id, rule_type, scope, value, label, url, source_list, created_at
			FROM rules ORDER BY id DESC LIMIT ?
		`, limit)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Rule
	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// FindRuleMatch looks up a manual rule for videoID first, then channelID,
// most recent row wins. preferredRuleType, when "whitelist" or
// "blacklist", restricts the search to that rule type; this lets the
// judge ask "is there a manual override for the *other* direction" when
// resolving precedence (spec §4.4).
func (s *Store) FindRuleMatch(ctx context.Context, videoID, channelID, preferredRuleType string) (Rule, bool, error) {
	typeFilter := ""
	var typeArg []any
	if preferredRuleType == "whitelist" || preferredRuleType == "blacklist" {
		typeFilter = " AND rule_type = ?"
		typeArg = []any{preferredRuleType}
	}

	if videoID != "" {
		args := append([]any{videoID}, typeArg...)
		row := s.db.QueryRowContext(ctx,
			"SELECT rule_type, scope, value, source_list FROM rules WHERE scope = 'video' AND value = ?"+typeFilter+" ORDER BY id DESC LIMIT 1",
			args...,
		)
		if r, ok, err := scanRuleMatch(row); err != nil {
			return Rule{}, false, err
		} else if ok {
			return r, true, nil
		}
	}
	if channelID != "" {
		args := append([]any{channelID}, typeArg...)
		row := s.db.QueryRowContext(ctx,
			"SELECT rule_type, scope, value, source_list FROM rules WHERE scope = 'channel' AND value = ?"+typeFilter+" ORDER BY id DESC LIMIT 1",
			args...,
		)
		if r, ok, err := scanRuleMatch(row); err != nil {
			return Rule{}, false, err
		} else if ok {
			return r, true, nil
		}
	}
	return Rule{}, false, nil
}

func scanRule(r rowScanner) (Rule, error) {
	var rule Rule
	var label, url, sourceList sql.NullString
	if err := r.Scan(&rule.ID, &rule.RuleType, &rule.Scope, &rule.Value, &label, &url, &sourceList, &rule.CreatedAt); err != nil {
		return Rule{}, err
	}
	rule.Label = label.String
	rule.URL = url.String
	rule.SourceList = orDefault(sourceList.String, "manual")
	return rule, nil
}

func scanRuleRow(row *sql.Row) (Rule, bool, error) {
	r, err := scanRule(row)
	if err == sql.ErrNoRows {
		return Rule{}, false, nil
	}
	if err != nil {
		return Rule{}, false, err
	}
	return r, true, nil
}

func scanRuleMatch(row *sql.Row) (Rule, bool, error) {
	var r Rule
	var sourceList sql.NullString
	err := row.Scan(&r.RuleType, &r.Scope, &r.Value, &sourceList)
	if err == sql.ErrNoRows {
		return Rule{}, false, nil
	}
	if err != nil {
		return Rule{}, false, err
	}
	r.SourceList = orDefault(sourceList.String, "manual")
	return r, true, nil
}
