// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package judge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ManuGH/xg2g/internal/policy"
	"github.com/ManuGH/xg2g/internal/schedule"
)

// ErrClassifierNotConfigured is returned when Evaluate reaches step 9
// with gemini_enabled=true but no Classifier was wired.
var ErrClassifierNotConfigured = errors.New("judge: classifier enabled but not configured")

// webhookAlertInterval is the floor between failure_webhook_url
// notifications (spec §4.4: "previous alert older than 5 minutes").
const webhookAlertInterval = 5 * time.Minute

// evaluateClassifier builds the effective prompt, calls the classifier
// through the circuit breaker with one retry on parse failure, and
// returns the raw (pre-gate) Decision. A non-nil error means no usable
// verdict was produced (a fatal failure, or a failure that persisted
// through the retry) and the caller should apply the mode fail-mode
// instead of using the returned Decision.
func (j *Judge) evaluateClassifier(ctx context.Context, req Request, mode schedule.Mode) (Decision, error) {
	if j.classifier == nil {
		return Decision{}, ErrClassifierNotConfigured
	}

	systemPrompt, err := j.buildSystemPrompt(ctx, mode)
	if err != nil {
		return Decision{}, err
	}
	userContent := buildUserContent(req)

	out, callErr := j.callOnce(ctx, systemPrompt, userContent)
	var parsed Output
	ok := false
	if callErr != nil {
		if isFatal(callErr) {
			j.handleFatalFailure(ctx, callErr)
			return Decision{}, callErr
		}
		// Non-fatal transport failure: treated the same as a parse
		// failure (spec §7 "otherwise treat as parse error") and gets
		// the same one-retry-with-strict-JSON-suffix handling below.
	} else {
		parsed, ok = parseOutput(out)
	}

	if !ok {
		// One retry with the strict-JSON suffix, whether the first
		// attempt was a parse failure or a non-fatal transport error.
		out, err := j.callOnce(ctx, systemPrompt+strictJSONRetrySuffix, userContent)
		if err != nil {
			if isFatal(err) {
				j.handleFatalFailure(ctx, err)
			}
			return Decision{}, err
		}
		parsed, ok = parseOutput(out)
		if !ok {
			return Decision{}, fmt.Errorf("judge: classifier output did not parse as strict JSON after retry")
		}
	}

	_ = j.store.SetSetting(ctx, "judge_ok", "true")

	return Decision{
		Verdict:    Verdict(parsed.Verdict),
		Reason:     parsed.Reason,
		Confidence: parsed.Confidence,
		Source:     SourceGemini,
	}, nil
}

// callOnce invokes the classifier through the circuit breaker. Execute
// itself records success/failure; callOnce only marks the attempt.
func (j *Judge) callOnce(ctx context.Context, systemPrompt, userContent string) (string, error) {
	var out string
	err := j.breaker.Execute(func() error {
		j.breaker.RecordAttempt()
		o, callErr := j.classifier.Classify(ctx, systemPrompt, userContent)
		if callErr != nil {
			return callErr
		}
		out = o
		return nil
	})
	return out, err
}

func (j *Judge) buildSystemPrompt(ctx context.Context, mode schedule.Mode) (string, error) {
	customRaw, err := j.store.GetSetting(ctx, "custom_prompt")
	if err != nil {
		return "", err
	}
	custom := ""
	if customRaw != nil {
		custom = strings.TrimSpace(*customRaw)
	}

	if mode == schedule.ModeWhitelist {
		flags, err := j.allowFlags(ctx)
		if err != nil {
			return "", err
		}
		base := DefaultWhitelistPrompt
		if custom != "" {
			base = custom
		}
		return base + "\n\n" + policy.BuildAllowAddon(flags) + outputContractSuffix, nil
	}

	flags, err := j.blockFlags(ctx)
	if err != nil {
		return "", err
	}
	base := DefaultSafePrompt
	if custom != "" {
		base = custom
	}
	return base + "\n\n" + policy.BuildBlockAddon(flags) + outputContractSuffix, nil
}

func buildUserContent(req Request) string {
	return fmt.Sprintf(
		"video_id: %s\ntitle: %s\nchannel_id: %s\nchannel_title: %s\nurl: %s",
		req.VideoID, req.Title, req.ChannelID, req.ChannelTitle, req.VideoURL,
	)
}

func parseOutput(raw string) (Output, bool) {
	text := strings.TrimSpace(raw)
	// Tolerate a classifier that wraps JSON in a code fence despite the
	// instruction not to.
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	var out Output
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		return Output{}, false
	}
	if out.Verdict != string(Allow) && out.Verdict != string(Block) {
		return Output{}, false
	}
	if out.Confidence < 0 {
		out.Confidence = 0
	}
	if out.Confidence > 100 {
		out.Confidence = 100
	}
	return out, true
}

// isFatal reports whether err's message contains any of the known fatal
// auth/quota substrings (spec §4.4).
func isFatal(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, needle := range fatalSubstrings {
		if strings.Contains(msg, needle) {
			return true
		}
	}
	return false
}

// handleFatalFailure records judge_ok=false/last_error and, if a webhook
// is configured and the previous alert is stale, notifies it (spec
// §4.4).
func (j *Judge) handleFatalFailure(ctx context.Context, cause error) {
	_ = j.store.SetSetting(ctx, "judge_ok", "false")
	_ = j.store.SetSetting(ctx, "last_error", cause.Error())

	if j.notifier == nil {
		return
	}

	now := j.clock.Now()
	stale := true
	if raw, err := j.store.GetSetting(ctx, "last_failure_alert_at"); err == nil && raw != nil && *raw != "" {
		if prev, perr := time.Parse(time.RFC3339Nano, *raw); perr == nil {
			stale = now.Sub(prev) >= webhookAlertInterval
		}
	}
	if !stale {
		return
	}

	activeRaw, _ := j.store.GetSetting(ctx, "active")
	active := activeRaw == nil || *activeRaw == "true"

	if err := j.notifier.NotifyDegraded(ctx, cause.Error(), active); err == nil {
		_ = j.store.SetSetting(ctx, "last_failure_alert_at", now.UTC().Format(time.RFC3339Nano))
	}
}

