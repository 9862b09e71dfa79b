// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package policy

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestNormalizeBlockFlags_DefaultsOnEmpty(t *testing.T) {
	flags := NormalizeBlockFlags("")
	if !flags["block_cocomelon"] || !flags["block_nursery_factory"] || !flags["block_kids_clickbait_animals"] {
		t.Fatalf("expected default-on block presets, got %+v", flags)
	}
	if flags["block_skibidi"] {
		t.Fatalf("non-default preset should be off, got %+v", flags)
	}
}

func TestNormalizeBlockFlags_OverridesDefault(t *testing.T) {
	flags := NormalizeBlockFlags(`{"block_cocomelon": false, "block_skibidi": true}`)
	if flags["block_cocomelon"] {
		t.Fatalf("explicit false should win over default")
	}
	if !flags["block_skibidi"] {
		t.Fatalf("explicit true should be honored")
	}
}

func TestNormalizeBlockFlags_MalformedJSONFallsBackToDefaults(t *testing.T) {
	flags := NormalizeBlockFlags("{not json")
	if !flags["block_cocomelon"] {
		t.Fatalf("malformed JSON should fall back to defaults, got %+v", flags)
	}
}

func TestNormalizeAllowFlags_Defaults(t *testing.T) {
	flags := NormalizeAllowFlags("")
	for _, key := range []string{"allow_90s_cartoons", "allow_00s_cartoons", "allow_disney_family", "allow_educational"} {
		if !flags[key] {
			t.Errorf("expected %s to default on", key)
		}
	}
}

func TestMatchBlock_NurseryFactoryKeyword(t *testing.T) {
	flags := NormalizeBlockFlags("")
	label := MatchBlock(flags, "Dinosaur Monster Song | Baby Anna Kids Songs", "Baby Anna - Kids Songs", "")
	if label != "Nursery Factory / Clone Kids Songs" {
		t.Fatalf("expected nursery factory match, got %q", label)
	}
}

func TestMatchBlock_NoMatchWhenDisabled(t *testing.T) {
	flags := NormalizeBlockFlags(`{"block_nursery_factory": false}`)
	label := MatchBlock(flags, "Baby Anna Kids Songs", "", "")
	if label != "" {
		t.Fatalf("expected no match with preset disabled, got %q", label)
	}
}

func TestBuildAllowAddon_EmptyFallback(t *testing.T) {
	flags := Flags{}
	for _, p := range AllowPresets {
		flags[p.Key] = false
	}
	addon := BuildAllowAddon(flags)
	if addon != "No allow profile categories are enabled. Default to BLOCK." {
		t.Fatalf("unexpected addon: %q", addon)
	}
}

// TestNormalizeBlockFlags_MatchesFullDefaultSet guards the full catalog
// of default-on presets (not just the handful spec.md names as
// examples): a go-cmp diff pinpoints exactly which key flipped if the
// preset table changes, rather than a single pass/fail assertion.
func TestNormalizeBlockFlags_MatchesFullDefaultSet(t *testing.T) {
	got := NormalizeBlockFlags("")
	want := make(Flags, len(BlockPresets))
	for _, p := range BlockPresets {
		want[p.Key] = BlockDefaults[p.Key]
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("default block flags mismatch (-want +got):\n%s", diff)
	}
}

func TestNormalizeAllowFlags_MatchesFullDefaultSet(t *testing.T) {
	got := NormalizeAllowFlags("")
	want := make(Flags, len(AllowPresets))
	for _, p := range AllowPresets {
		want[p.Key] = AllowDefaults[p.Key]
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("default allow flags mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildBlockAddon_EmptyWhenNoneEnabled(t *testing.T) {
	flags := Flags{}
	for _, p := range BlockPresets {
		flags[p.Key] = false
	}
	if addon := BuildBlockAddon(flags); addon != "" {
		t.Fatalf("expected empty addon, got %q", addon)
	}
}
