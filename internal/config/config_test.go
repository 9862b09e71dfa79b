// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// SPDX-License-Identifier: MIT
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()
	if cfg.Server.ListenAddr == "" {
		t.Fatal("expected a default listen address")
	}
	if cfg.Classifier.Model == "" {
		t.Fatal("expected a default classifier model")
	}
}

func TestLoad_YAMLFileLowersDefaultsUnderEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sentinel.yaml")
	yamlBody := "data_dir: /household/sentinel\nserver:\n  listen_addr: \":9191\"\n  read_timeout: 5s\nclassifier:\n  model: gemini-2.0-pro\n"
	if err := os.WriteFile(path, []byte(yamlBody), 0o644); err != nil {
		t.Fatalf("write config file: %v", err)
	}
	t.Setenv("SENTINEL_CONFIG_FILE", path)

	cfg := Load()
	if cfg.DataDir != "/household/sentinel" {
		t.Errorf("DataDir = %q, want file value", cfg.DataDir)
	}
	if cfg.Server.ListenAddr != ":9191" {
		t.Errorf("ListenAddr = %q, want file value", cfg.Server.ListenAddr)
	}
	if cfg.Server.ReadTimeout != 5*time.Second {
		t.Errorf("ReadTimeout = %v, want 5s", cfg.Server.ReadTimeout)
	}
	if cfg.Classifier.Model != "gemini-2.0-pro" {
		t.Errorf("Classifier.Model = %q, want file value", cfg.Classifier.Model)
	}

	t.Setenv("SENTINEL_LISTEN_ADDR", ":7070")
	cfg = Load()
	if cfg.Server.ListenAddr != ":7070" {
		t.Errorf("env var should win over config file, got %q", cfg.Server.ListenAddr)
	}
}

func TestBoolFromSetting(t *testing.T) {
	cases := map[string]bool{
		"1": true, "true": true, "YES": true, "on": true,
		"0": false, "false": false, "NO": false, "off": false,
	}
	for raw, want := range cases {
		if got := BoolFromSetting(raw, !want); got != want {
			t.Errorf("BoolFromSetting(%q) = %v, want %v", raw, got, want)
		}
	}
	if got := BoolFromSetting("garbage", true); got != true {
		t.Errorf("expected fallback to default for unrecognized token, got %v", got)
	}
}

func TestParseIntFallsBackOnInvalid(t *testing.T) {
	t.Setenv("SENTINEL_TEST_INT", "not-a-number")
	if got := ParseInt("SENTINEL_TEST_INT", 42); got != 42 {
		t.Errorf("ParseInt() = %d, want 42", got)
	}
}
