// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package sponsorblock

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ManuGH/xg2g/internal/cache"
)

type fakeClock struct{ now time.Time }

func (f *fakeClock) Now() time.Time        { return f.now }
func (f *fakeClock) Advance(d time.Duration) { f.now = f.now.Add(d) }

func newTestCoordinator(t *testing.T) (*Coordinator, *fakeClock) {
	t.Helper()
	c := cache.NewMemoryCache("sponsorblock_segments", time.Minute)
	t.Cleanup(func() {
		if mc, ok := c.(interface{ Stop() }); ok {
			mc.Stop()
		}
	})
	co := New("https://sponsor.example", c)
	clk := &fakeClock{now: time.Now()}
	co.WithClock(clk)
	return co, clk
}

// Scenario 6 (spec §8): a cached segment triggers a single seek past it;
// a repeat now_playing within the cooldown window must not seek again.
func TestTrySkipCurrent_SeeksOnceWithinCooldown(t *testing.T) {
	co, clk := newTestCoordinator(t)
	co.cache.Set("vidS", []Segment{{Start: 12.0, End: 32.0, Category: "sponsor"}}, time.Minute)

	var seeks []float64
	seek := func(_ context.Context, target float64) error {
		seeks = append(seeks, target)
		return nil
	}

	ct1 := 18.4
	seg, err := co.TrySkipCurrent(context.Background(), "dev1", "vidS", &ct1, []string{"sponsor"}, 1.0, time.Minute, seek)
	require.NoError(t, err)
	require.NotNil(t, seg)
	require.Len(t, seeks, 1)
	require.InDelta(t, 32.08, seeks[0], 0.001)

	clk.Advance(1 * time.Second)
	ct2 := 20.0
	seg2, err := co.TrySkipCurrent(context.Background(), "dev1", "vidS", &ct2, []string{"sponsor"}, 1.0, time.Minute, seek)
	require.NoError(t, err)
	require.NotNil(t, seg2)
	require.Len(t, seeks, 1, "repeat event inside the cooldown window must not issue another seek")

	clk.Advance(2 * time.Second)
	ct3 := 20.5
	_, err = co.TrySkipCurrent(context.Background(), "dev1", "vidS", &ct3, []string{"sponsor"}, 1.0, time.Minute, seek)
	require.NoError(t, err)
	require.Len(t, seeks, 2, "cooldown elapsed, a second seek for the same segment end is allowed")
}

func TestTrySkipCurrent_NilCurrentTimeIsNoop(t *testing.T) {
	co, _ := newTestCoordinator(t)
	seek := func(_ context.Context, _ float64) error {
		t.Fatal("seek must not be called when currentTime is unknown")
		return nil
	}
	seg, err := co.TrySkipCurrent(context.Background(), "dev1", "vidX", nil, nil, 0, time.Minute, seek)
	require.NoError(t, err)
	require.Nil(t, seg)
}

func TestMergeSegments_MergesAdjacentWithinTolerance(t *testing.T) {
	in := []Segment{
		{Start: 10, End: 20, Category: "sponsor"},
		{Start: 20.5, End: 30, Category: "sponsor"},
		{Start: 50, End: 60, Category: "intro"},
	}
	out := mergeSegments(in)
	require.Len(t, out, 2)
	require.Equal(t, 10.0, out[0].Start)
	require.Equal(t, 30.0, out[0].End)
	require.Equal(t, 50.0, out[1].Start)
}
