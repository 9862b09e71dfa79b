// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package webhook implements the outbound failure-alert client (spec
// §4.4, §6): a single JSON POST with a configurable timeout and a
// truncated response body, grounded on webhook.py's post_json.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ManuGH/xg2g/internal/log"
)

// maxResponseBytes truncates the response body kept for logging (spec
// §9 supplemented feature 5).
const maxResponseBytes = 300

// DefaultTimeout is the webhook POST's default total timeout (spec §5).
const DefaultTimeout = 8 * time.Second

// Client posts degraded-judge alerts to a configured URL.
type Client struct {
	url     string
	httpCli *http.Client
}

// New constructs a Client. An empty url makes every NotifyDegraded call
// a no-op success, so callers don't need to branch on "is webhook
// configured".
func New(url string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{url: url, httpCli: &http.Client{Timeout: timeout}}
}

// degradedPayload is the fixed shape §4.4/§6 specify for the failure
// alert.
type degradedPayload struct {
	Event     string `json:"event"`
	Active    bool   `json:"active"`
	JudgeOK   bool   `json:"judge_ok"`
	Error     string `json:"error"`
	Timestamp string `json:"timestamp"`
}

// NotifyDegraded implements judge.FailureNotifier: POST the fixed
// degraded-judge event payload (spec §4.4, §6). The judge package itself
// enforces the 5-minute rate-limit floor via last_failure_alert_at; this
// client performs the request unconditionally when called.
func (c *Client) NotifyDegraded(ctx context.Context, errMsg string, active bool) error {
	if c.url == "" {
		return nil
	}
	payload := degradedPayload{
		Event:     "sentinel_gemini_failure_degraded",
		Active:    active,
		JudgeOK:   false,
		Error:     errMsg,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	return c.postJSON(ctx, payload)
}

func (c *Client) postJSON(ctx context.Context, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("webhook: encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpCli.Do(req)
	if err != nil {
		return fmt.Errorf("webhook: post: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))

	logger := log.WithComponent("webhook")
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		logger.Warn().Int("status", resp.StatusCode).Bytes("response", respBody).Msg("webhook post rejected")
		return fmt.Errorf("webhook: unexpected status %d", resp.StatusCode)
	}
	logger.Debug().Int("status", resp.StatusCode).Msg("webhook post delivered")
	return nil
}
