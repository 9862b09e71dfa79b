// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	decisionTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sentinel_decision_total",
		Help: "Total number of judge decisions by mode, verdict, source, and action taken",
	}, []string{"mode", "verdict", "source", "action_taken"})
)

// RecordDecisionSummary records one judge verdict outcome.
func RecordDecisionSummary(mode, verdict, source, actionTaken string) {
	decisionTotal.WithLabelValues(
		normalizeDecisionModeLabel(mode),
		normalizeDecisionVerdictLabel(verdict),
		normalizeDecisionSourceLabel(source),
		normalizeDecisionActionLabel(actionTaken),
	).Inc()
}

func normalizeDecisionModeLabel(mode string) string {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "blocklist", "whitelist":
		return strings.ToLower(strings.TrimSpace(mode))
	default:
		return "unknown"
	}
}

func normalizeDecisionVerdictLabel(verdict string) string {
	switch strings.ToUpper(strings.TrimSpace(verdict)) {
	case "ALLOW", "BLOCK":
		return strings.ToUpper(strings.TrimSpace(verdict))
	default:
		return "unknown"
	}
}

func normalizeDecisionSourceLabel(source string) string {
	switch strings.ToLower(strings.TrimSpace(source)) {
	case "blacklist", "whitelist", "file_blacklist", "file_whitelist", "policy", "policy_allowlist", "cache", "gemini", "fallback":
		return strings.ToLower(strings.TrimSpace(source))
	default:
		return "unknown"
	}
}

func normalizeDecisionActionLabel(action string) string {
	switch strings.ToLower(strings.TrimSpace(action)) {
	case "none", "play_safe", "allow":
		return strings.ToLower(strings.TrimSpace(action))
	default:
		return "unknown"
	}
}
