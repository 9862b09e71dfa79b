// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package judge implements the central classifier (spec §4.4): a fixed
// precedence of local rules, file lists, keyword policy toggles, a
// persistent verdict cache, and an external language-model classifier as
// the last resort.
package judge

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ManuGH/xg2g/internal/lists"
	"github.com/ManuGH/xg2g/internal/log"
	"github.com/ManuGH/xg2g/internal/policy"
	"github.com/ManuGH/xg2g/internal/resilience"
	"github.com/ManuGH/xg2g/internal/schedule"
	"github.com/ManuGH/xg2g/internal/store"
)

// Verdict is the binary classification outcome (spec §3, §4.4).
type Verdict string

const (
	Allow Verdict = "ALLOW"
	Block Verdict = "BLOCK"
)

// Source identifies which precedence step produced a Decision.
const (
	SourceBlacklist      = "blacklist"
	SourceFileBlacklist  = "file_blacklist"
	SourceWhitelist      = "whitelist"
	SourceFileWhitelist  = "file_whitelist"
	SourcePolicyAllow    = "policy_allowlist"
	SourcePolicy         = "policy"
	SourceFallback       = "fallback"
	SourceGemini         = "gemini"
)

// defaultStrictAllowMinConfidence is STRICT_ALLOW_MIN_CONFIDENCE (spec
// §4.4), the confidence floor below which a cached or freshly-classified
// ALLOW is rewritten to BLOCK.
const defaultStrictAllowMinConfidence = 95

// defaultDecisionCacheTTL is decision_cache_ttl_seconds's default (spec
// §4.4): 30 days.
const defaultDecisionCacheTTL = 30 * 24 * time.Hour

// strictClickbaitKeywords forces BLOCK regardless of confidence (spec
// §4.4), reproduced verbatim from the original's
// _STRICT_CLICKBAIT_KEYWORDS (SPEC_FULL.md §C.2).
var strictClickbaitKeywords = []string{
	"monkey baby", "baby monkey", "bon bon", "toilet", "poop", "potty", "animal ht",
}

// fatalSubstrings are the lowercased substrings that mark a classifier
// error as a fatal auth/quota failure (spec §4.4).
var fatalSubstrings = []string{
	"401", "403", "429", "quota", "api key", "permission",
	"invalid argument", "unauthenticated", "api_key_invalid", "billing",
}

// Decision is the structured classification outcome for one video (spec
// §9 "Dynamic verdict cache payload").
type Decision struct {
	Verdict    Verdict
	Reason     string
	Confidence int
	Source     string
}

// Request is the tuple evaluated against the precedence table.
type Request struct {
	VideoID      string
	ChannelID    string
	Title        string
	ChannelTitle string
	VideoURL     string
	Mode         schedule.Mode
}

// Output is the classifier's parsed response (spec §4.4 "Judge wire
// contract").
type Output struct {
	Verdict    string `json:"verdict"`
	Reason     string `json:"reason"`
	Confidence int    `json:"confidence"`
}

// Classifier is the external language-model judge. Implementations
// perform exactly one request/response round trip; the retry-on-parse-
// failure behavior lives in Judge.evaluateClassifier, not here.
type Classifier interface {
	Classify(ctx context.Context, systemPrompt, userContent string) (string, error)
}

// FailureNotifier is notified on a fatal classifier failure (spec §4.4,
// §6 webhook). Implementations are expected to rate-limit themselves;
// Judge additionally enforces the 5-minute floor via last_failure_alert_at.
type FailureNotifier interface {
	NotifyDegraded(ctx context.Context, errMsg string, active bool) error
}

// clock is the injectable time source (matches internal/resilience's
// seam), letting tests control cache TTL and webhook rate-limit checks.
type clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Config tunes the few numeric knobs the precedence table exposes.
type Config struct {
	StrictAllowMinConfidence int
	DecisionCacheTTL         time.Duration
}

// Judge evaluates the fixed precedence table (spec §4.4) for one video.
type Judge struct {
	store      *store.Store
	blacklist  *lists.Store
	whitelist  *lists.Store
	classifier Classifier
	breaker    *resilience.CircuitBreaker
	notifier   FailureNotifier
	clock      clock
	cfg        Config
}

// New constructs a Judge. blacklist/whitelist must be lists.Store
// instances of the matching Kind; classifier and notifier may be nil
// (disabled classifier, no webhook configured respectively).
func New(st *store.Store, blacklist, whitelist *lists.Store, classifier Classifier, notifier FailureNotifier, cfg Config) *Judge {
	if cfg.StrictAllowMinConfidence <= 0 {
		cfg.StrictAllowMinConfidence = defaultStrictAllowMinConfidence
	}
	if cfg.DecisionCacheTTL <= 0 {
		cfg.DecisionCacheTTL = defaultDecisionCacheTTL
	}
	return &Judge{
		store:      st,
		blacklist:  blacklist,
		whitelist:  whitelist,
		classifier: classifier,
		breaker:    resilience.NewCircuitBreaker("judge", 5, 3, 2*time.Minute, 30*time.Second),
		notifier:   notifier,
		clock:      realClock{},
		cfg:        cfg,
	}
}

// WithClock overrides the time source used for cache expiry stamps and
// the webhook rate-limit check. Test-only seam.
func (j *Judge) WithClock(c interface{ Now() time.Time }) *Judge {
	j.clock = c
	return j
}

// Evaluate runs the full precedence table (spec §4.4 steps 1-9) for one
// video and returns the surfaced Decision.
func (j *Judge) Evaluate(ctx context.Context, req Request) (Decision, error) {
	logger := log.WithComponent("judge")
	mode := req.Mode
	if mode == "" {
		mode = schedule.ModeBlocklist
	}

	// Step 1: local blacklist rule.
	if rule, ok, err := j.store.FindRuleMatch(ctx, req.VideoID, req.ChannelID, "blacklist"); err == nil && ok {
		return Decision{
			Verdict:    Block,
			Reason:     fmt.Sprintf("matched local blacklist rule for %s %s", rule.Scope, rule.Value),
			Confidence: 100,
			Source:     SourceBlacklist,
		}, nil
	}

	// Step 2: file blocklist.
	if j.blacklist != nil {
		if m := j.blacklist.Match(req.VideoID, req.ChannelID); m != nil {
			return Decision{
				Verdict:    Block,
				Reason:     fmt.Sprintf("matched file blocklist entry for %s %s", m.Scope, m.Value),
				Confidence: 100,
				Source:     SourceFileBlacklist,
			}, nil
		}
	}

	if mode == schedule.ModeWhitelist {
		// Step 3: local whitelist rule.
		if rule, ok, err := j.store.FindRuleMatch(ctx, req.VideoID, req.ChannelID, "whitelist"); err == nil && ok {
			return Decision{
				Verdict:    Allow,
				Reason:     fmt.Sprintf("matched local whitelist rule for %s %s", rule.Scope, rule.Value),
				Confidence: 100,
				Source:     SourceWhitelist,
			}, nil
		}

		// Step 4: file allowlist.
		if j.whitelist != nil {
			if m := j.whitelist.Match(req.VideoID, req.ChannelID); m != nil {
				return Decision{
					Verdict:    Allow,
					Reason:     fmt.Sprintf("matched file allowlist entry for %s %s", m.Scope, m.Value),
					Confidence: 100,
					Source:     SourceFileWhitelist,
				}, nil
			}
		}

		// Step 5: enabled allow_* keyword policy.
		allowFlags, err := j.allowFlags(ctx)
		if err != nil {
			return Decision{}, err
		}
		if label := policy.MatchAllow(allowFlags, req.Title, req.ChannelTitle, req.VideoURL); label != "" {
			return Decision{
				Verdict:    Allow,
				Reason:     fmt.Sprintf("matched allow policy %q", label),
				Confidence: 100,
				Source:     SourcePolicyAllow,
			}, nil
		}
	} else {
		// Step 6: enabled block_* keyword policy.
		blockFlags, err := j.blockFlags(ctx)
		if err != nil {
			return Decision{}, err
		}
		if label := policy.MatchBlock(blockFlags, req.Title, req.ChannelTitle, req.VideoURL); label != "" {
			return Decision{
				Verdict:    Block,
				Reason:     fmt.Sprintf("matched block policy %q", label),
				Confidence: 100,
				Source:     SourcePolicy,
			}, nil
		}
	}

	cacheKey := fmt.Sprintf("%s:%s", mode, req.VideoID)

	// Step 7: cache hit.
	if cached, ok, err := j.store.CacheGet(ctx, cacheKey); err == nil && ok {
		d := Decision{Verdict: Verdict(cached.Verdict), Reason: cached.Reason, Confidence: cached.Confidence, Source: cached.Source}
		return j.applyStrictAllowGate(d, req), nil
	}

	// Step 8: classifier disabled.
	enabled, err := j.geminiEnabled(ctx)
	if err != nil {
		return Decision{}, err
	}
	if !enabled {
		if mode == schedule.ModeBlocklist {
			return Decision{Verdict: Allow, Reason: "classifier disabled, fail-open", Confidence: 0, Source: SourceFallback}, nil
		}
		return Decision{Verdict: Block, Reason: "classifier disabled, fail-closed in whitelist mode", Confidence: 100, Source: SourcePolicy}, nil
	}

	// Step 9: call the classifier.
	d, fatalErr := j.evaluateClassifier(ctx, req, mode)
	if fatalErr != nil {
		logger.Warn().Err(fatalErr).Str("video_id", req.VideoID).Msg("classifier call failed, applying fail-mode")
		return j.failMode(mode), nil
	}
	d = j.applyStrictAllowGate(d, req)

	if err := j.store.CacheSet(ctx, cacheKey, store.CachedVerdict{
		Verdict: string(d.Verdict), Reason: d.Reason, Confidence: d.Confidence, Source: d.Source,
	}, j.clock.Now().Add(j.cfg.DecisionCacheTTL)); err != nil {
		logger.Warn().Err(err).Msg("failed to cache verdict")
	}

	return d, nil
}

// failMode implements the caller-side fail-mode on fatal classifier
// failure (spec §4.4): blocklist mode fails open, whitelist mode fails
// closed.
func (j *Judge) failMode(mode schedule.Mode) Decision {
	if mode == schedule.ModeBlocklist {
		return Decision{Verdict: Allow, Reason: "classifier unavailable, fail-open", Confidence: 0, Source: SourceFallback}
	}
	return Decision{Verdict: Block, Reason: "classifier unavailable, fail-closed in whitelist mode", Confidence: 100, Source: SourcePolicy}
}

// applyStrictAllowGate rewrites a low-confidence or clickbait-flagged
// ALLOW to BLOCK (spec §4.4 "Strict allow gate"). Non-ALLOW decisions and
// ALLOWs sourced from local/file/policy precedence steps are untouched by
// the caller (this is only invoked on cache-hit and fresh-classifier
// paths).
func (j *Judge) applyStrictAllowGate(d Decision, req Request) Decision {
	if d.Verdict != Allow {
		return d
	}
	if clickbaitMatches(req.Title, req.ChannelTitle, req.VideoURL) {
		return Decision{Verdict: Block, Reason: "Strict clickbait-animal override", Confidence: 100, Source: SourcePolicy}
	}
	if d.Confidence < j.cfg.StrictAllowMinConfidence {
		return Decision{
			Verdict:    Block,
			Reason:     fmt.Sprintf("Strict allow gate: confidence %d below minimum %d", d.Confidence, j.cfg.StrictAllowMinConfidence),
			Confidence: 100,
			Source:     SourcePolicy,
		}
	}
	return d
}

func clickbaitMatches(title, channelTitle, videoURL string) bool {
	hay := " " + strings.ToLower(title) + " " + strings.ToLower(channelTitle) + " " + strings.ToLower(videoURL) + " "
	for _, needle := range strictClickbaitKeywords {
		if strings.Contains(hay, needle) {
			return true
		}
	}
	return false
}

func (j *Judge) blockFlags(ctx context.Context) (policy.Flags, error) {
	raw, err := j.store.GetSetting(ctx, "policy_flags_json")
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return policy.NormalizeBlockFlags(""), nil
	}
	return policy.NormalizeBlockFlags(*raw), nil
}

func (j *Judge) allowFlags(ctx context.Context) (policy.Flags, error) {
	raw, err := j.store.GetSetting(ctx, "allow_policy_flags_json")
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return policy.NormalizeAllowFlags(""), nil
	}
	return policy.NormalizeAllowFlags(*raw), nil
}

func (j *Judge) geminiEnabled(ctx context.Context) (bool, error) {
	raw, err := j.store.GetSetting(ctx, "gemini_enabled")
	if err != nil {
		return false, err
	}
	if raw == nil {
		return true, nil
	}
	return *raw == "true" || *raw == "1", nil
}
