// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package schedule

import (
	"testing"
	"time"
)

func at(hh, mm int) time.Time {
	return time.Date(2026, 7, 31, hh, mm, 0, 0, time.UTC)
}

func TestIsActive_Disabled(t *testing.T) {
	active, err := IsActive(false, "07:00", "19:00", "UTC", at(3, 0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !active {
		t.Fatalf("disabled window must always be active")
	}
}

func TestIsActive_EqualStartEnd(t *testing.T) {
	active, err := IsActive(true, "10:00", "10:00", "UTC", at(0, 1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !active {
		t.Fatalf("equal start/end means always active")
	}
}

func TestIsActive_Standard(t *testing.T) {
	cases := []struct {
		now  time.Time
		want bool
	}{
		{at(6, 59), false},
		{at(7, 0), true},
		{at(12, 0), true},
		{at(18, 59), true},
		{at(19, 0), false},
	}
	for _, c := range cases {
		got, err := IsActive(true, "07:00", "19:00", "UTC", c.now)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != c.want {
			t.Errorf("at %s: got %v, want %v", c.now, got, c.want)
		}
	}
}

func TestIsActive_CrossesMidnight(t *testing.T) {
	cases := []struct {
		now  time.Time
		want bool
	}{
		{at(21, 59), false},
		{at(22, 0), true},
		{at(23, 59), true},
		{at(0, 0), true},
		{at(5, 59), true},
		{at(6, 0), false},
	}
	for _, c := range cases {
		got, err := IsActive(true, "22:00", "06:00", "UTC", c.now)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != c.want {
			t.Errorf("at %s: got %v, want %v", c.now, got, c.want)
		}
	}
}

// TestIsActive_AgreesWithBruteForce asserts IsActive agrees with a
// minute-by-minute brute-force scan over a full day (spec §8 testable
// property), for both a standard and a cross-midnight window.
func TestIsActive_AgreesWithBruteForce(t *testing.T) {
	windows := []struct{ start, end string }{
		{"07:00", "19:00"},
		{"22:00", "06:00"},
		{"00:00", "23:59"},
	}
	for _, w := range windows {
		startMin, _ := toMinutes(w.start)
		endMin, _ := toMinutes(w.end)
		for m := 0; m < 24*60; m++ {
			now := at(m/60, m%60)
			got, err := IsActive(true, w.start, w.end, "UTC", now)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			var want bool
			if startMin == endMin {
				want = true
			} else if startMin < endMin {
				want = m >= startMin && m < endMin
			} else {
				want = m >= startMin || m < endMin
			}
			if got != want {
				t.Fatalf("window %s-%s at minute %d: got %v want %v", w.start, w.end, m, got, want)
			}
		}
	}
}

func TestPickActive_StableOrderFirstMatch(t *testing.T) {
	windows := []Window{
		{ID: 1, Enabled: true, Start: "00:00", End: "01:00", Timezone: "UTC", Mode: ModeBlocklist},
		{ID: 2, Enabled: true, Start: "10:00", End: "20:00", Timezone: "UTC", Mode: ModeWhitelist},
		{ID: 3, Enabled: true, Start: "10:00", End: "20:00", Timezone: "UTC", Mode: ModeBlocklist},
	}
	w := PickActive(windows, at(12, 0))
	if w == nil || w.ID != 2 {
		t.Fatalf("expected first matching window (id=2), got %+v", w)
	}
}

func TestPickActive_NoneActive(t *testing.T) {
	windows := []Window{
		{ID: 1, Enabled: true, Start: "01:00", End: "02:00", Timezone: "UTC"},
	}
	if w := PickActive(windows, at(12, 0)); w != nil {
		t.Fatalf("expected no active window, got %+v", w)
	}
}

func TestEffectiveMode_DefaultsToBlocklist(t *testing.T) {
	if got := EffectiveMode(nil, at(12, 0)); got != ModeBlocklist {
		t.Fatalf("expected default blocklist mode, got %v", got)
	}
}

func TestEffectiveMode_FromActiveWindow(t *testing.T) {
	windows := []Window{
		{ID: 1, Enabled: true, Start: "10:00", End: "20:00", Timezone: "UTC", Mode: ModeWhitelist},
	}
	if got := EffectiveMode(windows, at(12, 0)); got != ModeWhitelist {
		t.Fatalf("expected whitelist mode, got %v", got)
	}
}
