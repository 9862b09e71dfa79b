// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package lists

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLine_Forms(t *testing.T) {
	cases := []struct {
		line      string
		wantScope string
		wantValue string
		wantOK    bool
	}{
		{"video:abc12345678", "video", "abc12345678", true},
		{"video:abc12345678 | My Title | https://example.com", "video", "abc12345678", true},
		{"channel:UC1234567890123456789012", "channel", "UC1234567890123456789012", true},
		{"channel:@somehandle", "channel", "@somehandle", true},
		{"https://www.youtube.com/watch?v=abc12345678", "video", "abc12345678", true},
		{"https://youtu.be/abc12345678", "video", "abc12345678", true},
		{"abc12345678", "video", "abc12345678", true},
		{"not a valid line at all", "", "", false},
		{"video:tooshort", "", "", false},
	}
	for _, c := range cases {
		e, ok := parseLine(c.line)
		if ok != c.wantOK {
			t.Errorf("parseLine(%q) ok=%v want %v", c.line, ok, c.wantOK)
			continue
		}
		if !ok {
			continue
		}
		if e.Scope != c.wantScope || e.Value != c.wantValue {
			t.Errorf("parseLine(%q) = %+v, want scope=%s value=%s", c.line, e, c.wantScope, c.wantValue)
		}
	}
}

func TestParseSerializeParseIdempotent(t *testing.T) {
	dir := t.TempDir()
	s := New(KindBlacklist, filepath.Join(dir, "custom-blacklist.txt"))
	ctx := context.Background()

	if err := s.Append(ctx, "video", "abc12345678", "My Label", "", "manual"); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := s.Reload(ctx, nil); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if m := s.Match("abc12345678", ""); m == nil {
		t.Fatalf("expected match after append+reload")
	}

	content, err := s.LocalContent()
	if err != nil {
		t.Fatalf("local content: %v", err)
	}
	reparsed := parseContent(content, "local")
	found := false
	for _, e := range reparsed {
		if e.Scope == "video" && e.Value == "abc12345678" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected reparsed entry to survive round-trip, got %+v", reparsed)
	}
}

func TestAppend_SkipsDuplicateCanonical(t *testing.T) {
	dir := t.TempDir()
	s := New(KindBlacklist, filepath.Join(dir, "custom-blacklist.txt"))
	ctx := context.Background()

	if err := s.Append(ctx, "video", "abc12345678", "first", "", "manual"); err != nil {
		t.Fatalf("append 1: %v", err)
	}
	if err := s.Append(ctx, "video", "abc12345678", "second", "", "manual"); err != nil {
		t.Fatalf("append 2: %v", err)
	}

	content, err := s.LocalContent()
	if err != nil {
		t.Fatalf("local content: %v", err)
	}
	count := 0
	for _, line := range splitLines(content) {
		if line == "video:abc12345678 | first" {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("expected exactly one occurrence, got %d in %q", count, content)
	}
}

func TestRemove_StripsLineAndManualComment(t *testing.T) {
	dir := t.TempDir()
	s := New(KindBlacklist, filepath.Join(dir, "custom-blacklist.txt"))
	ctx := context.Background()

	if err := s.Append(ctx, "video", "abc12345678", "My Label", "", "manual"); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := s.Remove(ctx, "video", "abc12345678"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	content, err := s.LocalContent()
	if err != nil {
		t.Fatalf("local content: %v", err)
	}
	if strings.Contains(content, "abc12345678") {
		t.Fatalf("expected entry removed, got %q", content)
	}
	if strings.Contains(content, "# [manual] My Label") {
		t.Fatalf("expected manual comment removed, got %q", content)
	}
}

func TestMatch_VideoThenChannel(t *testing.T) {
	dir := t.TempDir()
	s := New(KindWhitelist, filepath.Join(dir, "custom-whitelist.txt"))
	ctx := context.Background()
	if err := s.Append(ctx, "channel", "UC1234567890123456789012", "", "", "manual"); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := s.Reload(ctx, nil); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if m := s.Match("", "UC1234567890123456789012"); m == nil || m.Scope != "channel" {
		t.Fatalf("expected channel match, got %+v", m)
	}
	if m := s.Match("nonexistent1", "UC1234567890123456789012"); m == nil || m.Scope != "channel" {
		t.Fatalf("expected fallthrough to channel match when video misses, got %+v", m)
	}
}

func splitLines(s string) []string {
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	if start < len(s) {
		out = append(out, s[start:])
	}
	return out
}

func TestEnsureFile_CreatesHeader(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sub", "custom-blacklist.txt")
	s := New(KindBlacklist, path)
	if _, err := s.LocalContent(); err != nil {
		t.Fatalf("local content: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected file created: %v", err)
	}
}
