// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package webhook

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNotifyDegraded_PostsFixedPayload(t *testing.T) {
	var captured degradedPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New(srv.URL, 0)
	err := c.NotifyDegraded(context.Background(), "quota exceeded", true)
	require.NoError(t, err)

	require.Equal(t, "sentinel_gemini_failure_degraded", captured.Event)
	require.True(t, captured.Active)
	require.False(t, captured.JudgeOK)
	require.Equal(t, "quota exceeded", captured.Error)
	require.NotEmpty(t, captured.Timestamp)
}

func TestNotifyDegraded_EmptyURLIsNoop(t *testing.T) {
	c := New("", 0)
	require.NoError(t, c.NotifyDegraded(context.Background(), "boom", false))
}

func TestNotifyDegraded_NonOKStatusIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(srv.URL, 0)
	err := c.NotifyDegraded(context.Background(), "boom", false)
	require.Error(t, err)
}
