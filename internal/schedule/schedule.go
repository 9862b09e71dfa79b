// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package schedule evaluates time-of-day windows that gate monitoring and
// sponsor-skip behavior. It is a pure function library: no I/O, no
// persistence — callers load Window rows from internal/store and pass them
// in.
package schedule

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Mode selects which policy applies while a window is active.
type Mode string

const (
	ModeBlocklist Mode = "blocklist"
	ModeWhitelist Mode = "whitelist"
)

// Window is one schedule row (spec §3 "Schedule window").
type Window struct {
	ID       int64
	Name     string
	Enabled  bool
	Start    string // "HH:MM"
	End      string // "HH:MM"
	Timezone string
	Mode     Mode
}

// IsActive reports whether the window is active right now. A disabled
// window is always "active" (spec §4.1: disabled means "no time
// restriction"). Equal start/end means "always active in that window".
// start>end is interpreted as crossing midnight.
func IsActive(enabled bool, start, end, timezoneName string, now time.Time) (bool, error) {
	if !enabled {
		return true, nil
	}

	loc, err := time.LoadLocation(timezoneName)
	if err != nil {
		loc = time.UTC
	}

	startMin, err := toMinutes(start)
	if err != nil {
		return false, fmt.Errorf("schedule: invalid start %q: %w", start, err)
	}
	endMin, err := toMinutes(end)
	if err != nil {
		return false, fmt.Errorf("schedule: invalid end %q: %w", end, err)
	}

	local := now.In(loc)
	nowMin := local.Hour()*60 + local.Minute()

	if startMin == endMin {
		return true, nil
	}
	if startMin < endMin {
		return nowMin >= startMin && nowMin < endMin, nil
	}
	// crosses midnight
	return nowMin >= startMin || nowMin < endMin, nil
}

// IsActiveWindow reports whether w is active at now.
func IsActiveWindow(w Window, now time.Time) (bool, error) {
	return IsActive(w.Enabled, w.Start, w.End, w.Timezone, now)
}

// PickActive returns the first enabled window (in the given, insertion-order
// slice) whose IsActive is true, or nil if none match. Windows that fail to
// parse are treated as inactive rather than aborting the scan.
func PickActive(windows []Window, now time.Time) *Window {
	for i := range windows {
		w := windows[i]
		if !w.Enabled {
			continue
		}
		active, err := IsActiveWindow(w, now)
		if err != nil {
			continue
		}
		if active {
			return &w
		}
	}
	return nil
}

// EffectiveMode returns the mode of the currently active window, defaulting
// to blocklist when no window exists or none is active (spec §4.1).
func EffectiveMode(windows []Window, now time.Time) Mode {
	if w := PickActive(windows, now); w != nil && w.Mode != "" {
		return w.Mode
	}
	return ModeBlocklist
}

func toMinutes(hhmm string) (int, error) {
	parts := strings.SplitN(hhmm, ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("expected HH:MM, got %q", hhmm)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, err
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, err
	}
	if h < 0 || h > 24 || m < 0 || m > 59 || (h == 24 && m != 0) {
		return 0, fmt.Errorf("out of range HH:MM: %q", hhmm)
	}
	return h*60 + m, nil
}
