// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ManuGH/xg2g/internal/bus"
	"github.com/ManuGH/xg2g/internal/store"
)

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "sentinel_test.db")
	s, err := store.Open(dbPath, store.DefaultConfig())
	require.NoError(t, err)
	require.NoError(t, s.EnsureDefaults(context.Background(), "UTC"))
	require.NoError(t, s.EnsureDefaultSchedule(context.Background()))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestHandleStatus_ReturnsSnapshot(t *testing.T) {
	st := openTestStore(t)
	b := bus.NewMemoryBus()
	srv := NewServer(st, b, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var snap Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	require.Equal(t, "UTC", snap.Timezone)
}

func TestHandleSwitchCommand_SetsSettingAndPublishes(t *testing.T) {
	st := openTestStore(t)
	b := bus.NewMemoryBus()
	srv := NewServer(st, b, nil)

	sub, err := b.Subscribe(context.Background(), bus.Topic)
	require.NoError(t, err)
	defer sub.Close()

	body, _ := json.Marshal(switchRequest{Value: "ON"})
	req := httptest.NewRequest(http.MethodPost, "/api/commands/active", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	settings, err := st.AllSettings(context.Background())
	require.NoError(t, err)
	require.Equal(t, "true", settings["active"])

	select {
	case msg := <-sub.C():
		require.Equal(t, bus.EventMQTTStateChange, msg.Type)
		require.Equal(t, "active", msg.Fields["key"])
		require.Equal(t, true, msg.Fields["value"])
	default:
		t.Fatal("expected a published message")
	}
}

func TestHandleRemoteReleaseCommand_ClampsMinutes(t *testing.T) {
	st := openTestStore(t)
	b := bus.NewMemoryBus()
	srv := NewServer(st, b, nil)

	body, _ := json.Marshal(map[string]int{"minutes": 9000})
	req := httptest.NewRequest(http.MethodPost, "/api/commands/remote_release_minutes", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]int
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, 240, resp["minutes"])

	settings, err := st.AllSettings(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, settings["sponsorblock_release_until"])
}

func TestHandleHealthz_OK(t *testing.T) {
	st := openTestStore(t)
	b := bus.NewMemoryBus()
	srv := NewServer(st, b, nil)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
}
