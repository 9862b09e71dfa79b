// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "sentinel_test.db")
	s, err := Open(dbPath, DefaultConfig())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestOpen_Pragmas(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	var mode string
	if err := s.db.QueryRowContext(ctx, "PRAGMA journal_mode").Scan(&mode); err != nil || mode != "wal" {
		t.Errorf("expected WAL mode, got %q (err: %v)", mode, err)
	}

	var fk int
	if err := s.db.QueryRowContext(ctx, "PRAGMA foreign_keys").Scan(&fk); err != nil || fk != 1 {
		t.Errorf("expected foreign_keys=ON, got %d (err: %v)", fk, err)
	}

	var version int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil || version != schemaVersion {
		t.Errorf("expected user_version=%d, got %d (err: %v)", schemaVersion, version, err)
	}
}

func TestEnsureDefaults_SeedsOnlyMissingKeys(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.SetSetting(ctx, "active", "false"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := s.EnsureDefaults(ctx, "UTC"); err != nil {
		t.Fatalf("ensure defaults: %v", err)
	}

	v, err := s.GetSetting(ctx, "active")
	if err != nil || v == nil || *v != "false" {
		t.Fatalf("expected pre-existing value preserved, got %v (err %v)", v, err)
	}
	v, err = s.GetSetting(ctx, "gemini_enabled")
	if err != nil || v == nil || *v != "true" {
		t.Fatalf("expected default seeded, got %v (err %v)", v, err)
	}
}

func TestSetSetting_CriticalKeyRetriesUntilStable(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.SetSetting(ctx, "active", "true"); err != nil {
		t.Fatalf("set: %v", err)
	}
	v, err := s.GetSetting(ctx, "active")
	if err != nil || v == nil || *v != "true" {
		t.Fatalf("expected active=true, got %v (err %v)", v, err)
	}
}

func TestScheduleLifecycle(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.EnsureDefaultSchedule(ctx); err != nil {
		t.Fatalf("ensure default: %v", err)
	}
	windows, err := s.ListSchedules(ctx)
	if err != nil || len(windows) != 1 {
		t.Fatalf("expected exactly one default window, got %d (err %v)", len(windows), err)
	}

	id, err := s.AddSchedule(ctx, ScheduleWindow{Name: "Evening", Enabled: true, Start: "20:00", End: "22:00", Timezone: "UTC", Mode: "whitelist"})
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	ok, err := s.UpdateSchedule(ctx, ScheduleWindow{ID: id, Name: "Evening 2", Enabled: false, Start: "20:30", End: "22:30", Timezone: "UTC", Mode: "whitelist"})
	if err != nil || !ok {
		t.Fatalf("update: ok=%v err=%v", ok, err)
	}

	windows, err = s.ListSchedules(ctx)
	if err != nil || len(windows) != 2 {
		t.Fatalf("expected two windows, got %d (err %v)", len(windows), err)
	}

	ok, err = s.DeleteSchedule(ctx, id)
	if err != nil || !ok {
		t.Fatalf("delete: ok=%v err=%v", ok, err)
	}

	// Deleting the last non-default row must not violate the ≥1-row
	// invariant on its own; callers re-bootstrap explicitly.
	windows, err = s.ListSchedules(ctx)
	if err != nil || len(windows) != 1 {
		t.Fatalf("expected one window remaining, got %d (err %v)", len(windows), err)
	}
}

func TestDeviceUpsertIsIdempotentByScreenID(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	id1, err := s.UpsertDevice(ctx, Device{Name: "Living Room", ScreenID: "screen-1", AuthStateJSON: `{"a":1}`})
	if err != nil {
		t.Fatalf("upsert 1: %v", err)
	}
	id2, err := s.UpsertDevice(ctx, Device{Name: "Living Room TV", ScreenID: "screen-1", AuthStateJSON: `{"a":2}`})
	if err != nil {
		t.Fatalf("upsert 2: %v", err)
	}
	if id1 != id2 {
		t.Fatalf("expected same device id across upserts, got %d and %d", id1, id2)
	}

	dev, ok, err := s.GetDevice(ctx, id1)
	if err != nil || !ok {
		t.Fatalf("get device: ok=%v err=%v", ok, err)
	}
	if dev.Name != "Living Room TV" {
		t.Fatalf("expected updated name, got %q", dev.Name)
	}
	if dev.Status != "paired" {
		t.Fatalf("expected default status 'paired', got %q", dev.Status)
	}

	if err := s.UpdateDeviceStatus(ctx, id1, "connected", ""); err != nil {
		t.Fatalf("update status: %v", err)
	}
	dev, _, err = s.GetDeviceByScreenID(ctx, "screen-1")
	if err != nil || dev.Status != "connected" {
		t.Fatalf("expected status connected, got %q (err %v)", dev.Status, err)
	}
}

func TestRuleMatch_VideoBeatsChannel(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.AddRule(ctx, Rule{RuleType: "blacklist", Scope: "channel", Value: "UC1234567890123456789012"}); err != nil {
		t.Fatalf("add channel rule: %v", err)
	}
	if err := s.AddRule(ctx, Rule{RuleType: "whitelist", Scope: "video", Value: "abc12345678"}); err != nil {
		t.Fatalf("add video rule: %v", err)
	}

	r, ok, err := s.FindRuleMatch(ctx, "abc12345678", "UC1234567890123456789012", "")
	if err != nil || !ok {
		t.Fatalf("find match: ok=%v err=%v", ok, err)
	}
	if r.Scope != "video" || r.RuleType != "whitelist" {
		t.Fatalf("expected video rule to win, got %+v", r)
	}

	r, ok, err = s.FindRuleMatch(ctx, "", "UC1234567890123456789012", "")
	if err != nil || !ok || r.Scope != "channel" {
		t.Fatalf("expected channel fallback, got %+v (ok=%v err=%v)", r, ok, err)
	}
}

func TestDecisionAppendAndPage(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := s.AddDecision(ctx, Decision{VideoID: "vid", Verdict: "ALLOW", Source: "gemini"}); err != nil {
			t.Fatalf("add decision %d: %v", i, err)
		}
	}

	page, err := s.PagedDecisions(ctx, 1, 2, 500)
	if err != nil {
		t.Fatalf("paged: %v", err)
	}
	if len(page.Rows) != 2 || page.TotalCount != 5 || !page.HasNext || page.HasPrev {
		t.Fatalf("unexpected first page: %+v", page)
	}

	purged, err := s.PurgeDecisions(ctx)
	if err != nil || purged != 5 {
		t.Fatalf("purge: purged=%d err=%v", purged, err)
	}
}

func TestCacheGet_MissOnExpiryAndMalformedPayload(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.CacheSet(ctx, "blocklist:abc12345678", CachedVerdict{Verdict: "ALLOW", Confidence: 97, Source: "gemini"}, time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("set: %v", err)
	}
	v, ok, err := s.CacheGet(ctx, "blocklist:abc12345678")
	if err != nil || !ok || v.Verdict != "ALLOW" {
		t.Fatalf("expected hit, got v=%+v ok=%v err=%v", v, ok, err)
	}

	if err := s.CacheSet(ctx, "blocklist:expired12345", CachedVerdict{Verdict: "ALLOW"}, time.Now().Add(-time.Hour)); err != nil {
		t.Fatalf("set expired: %v", err)
	}
	_, ok, err = s.CacheGet(ctx, "blocklist:expired12345")
	if err != nil || ok {
		t.Fatalf("expected miss for expired entry, ok=%v err=%v", ok, err)
	}

	if _, err := s.db.ExecContext(ctx, `INSERT INTO analysis_cache(key, payload_json, expires_at) VALUES(?, ?, ?)`,
		"blocklist:malformed123", "{not json", ""); err != nil {
		t.Fatalf("insert malformed: %v", err)
	}
	_, ok, err = s.CacheGet(ctx, "blocklist:malformed123")
	if err != nil || ok {
		t.Fatalf("expected miss for malformed payload, ok=%v err=%v", ok, err)
	}
}

func TestSponsorActionsRecent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.AddSponsorAction(ctx, SponsorAction{DeviceID: 1, VideoID: "vid", Category: "sponsor", SegmentStart: 10, SegmentEnd: 20, ActionTaken: "skip", Status: "ok"}); err != nil {
		t.Fatalf("add: %v", err)
	}
	actions, err := s.RecentSponsorActions(ctx, 10)
	if err != nil || len(actions) != 1 || actions[0].Category != "sponsor" {
		t.Fatalf("unexpected actions: %+v (err %v)", actions, err)
	}

	stats, err := s.Stats(ctx)
	if err != nil || stats.SponsorActions != 1 {
		t.Fatalf("unexpected stats: %+v (err %v)", stats, err)
	}
}
