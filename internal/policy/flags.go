// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package policy

import (
	"encoding/json"
	"strings"
)

// Flags is a canonical key -> enabled map, always covering the full preset
// key set regardless of what was persisted.
type Flags map[string]bool

// NormalizeBlockFlags parses a raw JSON-encoded flag map (as persisted in
// the "policy_flags_json" setting) and returns the canonical flags map,
// applying BlockDefaults to any key missing from raw.
func NormalizeBlockFlags(raw string) Flags {
	return normalize(raw, BlockPresets, BlockDefaults)
}

// NormalizeAllowFlags parses a raw JSON-encoded flag map (as persisted in
// the "allow_policy_flags_json" setting) and returns the canonical flags
// map, applying AllowDefaults to any key missing from raw.
func NormalizeAllowFlags(raw string) Flags {
	return normalize(raw, AllowPresets, AllowDefaults)
}

func normalize(raw string, presets []Preset, defaults map[string]bool) Flags {
	data := map[string]any{}
	if text := strings.TrimSpace(raw); text != "" {
		// A malformed payload normalizes to "nothing set" rather than
		// failing the caller — mirrors the original's best-effort parse.
		_ = json.Unmarshal([]byte(text), &data)
	}

	out := make(Flags, len(presets))
	for _, p := range presets {
		v, ok := data[p.Key]
		if !ok {
			out[p.Key] = defaults[p.Key]
			continue
		}
		b, _ := v.(bool)
		out[p.Key] = b
	}
	return out
}

// BuildBlockAddon renders the enabled block presets as a prompt addon
// (spec §4.4's blocklist-mode effective prompt). Returns "" if none are
// enabled.
func BuildBlockAddon(flags Flags) string {
	var enabled []Preset
	for _, p := range BlockPresets {
		if flags[p.Key] {
			enabled = append(enabled, p)
		}
	}
	if len(enabled) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("Strict policy overrides enabled by admin toggles:\n")
	b.WriteString("If a toggle matches the video context, return BLOCK even when content is popular.")
	for _, p := range enabled {
		b.WriteString("\n- ")
		b.WriteString(p.Label)
		b.WriteString(": ")
		b.WriteString(p.PromptAddon)
	}
	return b.String()
}

// BuildAllowAddon renders the enabled allow presets as a prompt addon
// (spec §4.4's whitelist-mode effective prompt). When none are enabled it
// returns the literal fallback instructing the classifier to default to
// BLOCK.
func BuildAllowAddon(flags Flags) string {
	var enabled []Preset
	for _, p := range AllowPresets {
		if flags[p.Key] {
			enabled = append(enabled, p)
		}
	}
	if len(enabled) == 0 {
		return "No allow profile categories are enabled. Default to BLOCK."
	}
	var b strings.Builder
	b.WriteString("Allow profile categories enabled by admin toggles:\n")
	b.WriteString("Only ALLOW when the video clearly belongs to these categories.")
	for _, p := range enabled {
		b.WriteString("\n- ")
		b.WriteString(p.Label)
		b.WriteString(": ")
		b.WriteString(p.PromptAddon)
	}
	return b.String()
}

// MatchBlock reports the label of the first enabled block preset (in
// catalog order) whose keyword appears in the haystack built from
// title/channel/url (spec §4.4 precedence step 6), or "" if none match.
func MatchBlock(flags Flags, title, channelTitle, videoURL string) string {
	return match(flags, BlockPresets, BlockKeywords, title, channelTitle, videoURL)
}

// MatchAllow reports the label of the first enabled allow preset (in
// catalog order) whose keyword appears in the haystack (spec §4.4
// precedence step 5), or "" if none match.
func MatchAllow(flags Flags, title, channelTitle, videoURL string) string {
	return match(flags, AllowPresets, AllowKeywords, title, channelTitle, videoURL)
}

// match walks presets in catalog order (not map order) so that, when more
// than one enabled preset's keywords would match, the result is
// deterministic.
func match(flags Flags, presets []Preset, keywords map[string][]string, title, channelTitle, videoURL string) string {
	hay := " " + strings.ToLower(title) + " " + strings.ToLower(channelTitle) + " " + strings.ToLower(videoURL) + " "
	for _, p := range presets {
		if !flags[p.Key] {
			continue
		}
		for _, needle := range keywords[p.Key] {
			if strings.Contains(hay, needle) {
				return p.Label
			}
		}
	}
	return ""
}
