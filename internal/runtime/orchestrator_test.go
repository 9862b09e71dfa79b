// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package runtime

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/ManuGH/xg2g/internal/bus"
	"github.com/ManuGH/xg2g/internal/cache"
	"github.com/ManuGH/xg2g/internal/device"
	"github.com/ManuGH/xg2g/internal/judge"
	"github.com/ManuGH/xg2g/internal/lists"
	"github.com/ManuGH/xg2g/internal/metadata"
	"github.com/ManuGH/xg2g/internal/sponsorblock"
	"github.com/ManuGH/xg2g/internal/store"
)

// TestMain fails the package if any test leaves a worker goroutine
// running — the orchestrator spawns reinforcement and supervisor
// goroutines that must exit cleanly when their context is canceled.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "runtime_test.db")
	s, err := store.Open(dbPath, store.DefaultConfig())
	require.NoError(t, err)
	require.NoError(t, s.EnsureDefaults(context.Background(), "UTC"))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }
func (c *fakeClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

type fakeController struct {
	playCalls []string
	playOK    bool
	seekOK    bool
}

func (f *fakeController) SkipCurrent(ctx context.Context) (bool, string, device.SkipMethod) {
	return true, "", device.SkipMethod("seek_end")
}

func (f *fakeController) Seek(ctx context.Context, position float64) (bool, string) {
	if !f.seekOK {
		return false, "seek failed"
	}
	return true, ""
}

func (f *fakeController) PlayVideo(ctx context.Context, videoID string) (bool, string) {
	f.playCalls = append(f.playCalls, videoID)
	if !f.playOK {
		return false, "play failed"
	}
	return true, ""
}

type fakeDeviceRegistry struct {
	workers map[int64]*fakeController
}

func (r *fakeDeviceRegistry) Get(deviceID int64) (*device.Worker, bool) { return nil, false }
func (r *fakeDeviceRegistry) StartAll(ctx context.Context) error        { return nil }
func (r *fakeDeviceRegistry) StopAll()                                  {}
func (r *fakeDeviceRegistry) PauseAll(ctx context.Context)              {}

type fakeMeta struct{}

func (fakeMeta) Fetch(ctx context.Context, videoID string) metadata.Info {
	return metadata.Stub(videoID)
}

type stableShuffler struct{}

func (stableShuffler) Shuffle(n int, swap func(i, j int)) {}

func newTestOrchestrator(t *testing.T, clk *fakeClock) (*Orchestrator, *store.Store, bus.Bus) {
	t.Helper()
	st := openTestStore(t)
	b := bus.NewMemoryBus()
	bl := lists.New(lists.KindBlacklist, "")
	wl := lists.New(lists.KindWhitelist, "")
	j := judge.New(st, bl, wl, nil, nil, judge.Config{})
	sponsor := sponsorblock.New("", cache.NewMemoryCache("sponsorblock_segments", time.Minute))

	o := New(st, b, j, sponsor, &fakeDeviceRegistry{}, fakeMeta{}, nil)
	o.WithClock(clk)
	o.WithShuffle(stableShuffler{})
	return o, st, b
}

func TestDedupAndInfer_SuppressesRepeatNowPlayingWithinWindow(t *testing.T) {
	st := newDeviceState()
	now := time.Now()

	proceed, inferred := dedupAndInfer(st, bus.Message{Type: bus.EventNowPlaying, VideoID: "v1"}, now)
	require.True(t, proceed)
	require.False(t, inferred)

	proceed, _ = dedupAndInfer(st, bus.Message{Type: bus.EventNowPlaying, VideoID: "v1"}, now.Add(1*time.Second))
	require.False(t, proceed, "duplicate now_playing within dedup window must be suppressed")

	proceed, _ = dedupAndInfer(st, bus.Message{Type: bus.EventNowPlaying, VideoID: "v1"}, now.Add(dedupWindow+time.Second))
	require.True(t, proceed, "now_playing after the dedup window elapses must proceed")
}

func TestDedupAndInfer_InfersFromRepeatedUpNext(t *testing.T) {
	st := newDeviceState()
	now := time.Now()

	_, _ = dedupAndInfer(st, bus.Message{Type: bus.EventNowPlaying, VideoID: "v1"}, now)

	_, inferred := dedupAndInfer(st, bus.Message{Type: bus.EventUpNext, VideoID: "v2"}, now.Add(time.Second))
	require.False(t, inferred, "first up_next sighting is not yet inferred")

	_, inferred = dedupAndInfer(st, bus.Message{Type: bus.EventUpNext, VideoID: "v2"}, now.Add(upNextRepeatGap+2*time.Second))
	require.True(t, inferred, "a second up_next sighting well after the gap must be inferred as now playing")
}

func TestToWindows_ConvertsStoreRowsToScheduleWindows(t *testing.T) {
	rows := []store.ScheduleWindow{{ID: 1, Name: "evening", Enabled: true, Start: "18:00", End: "21:00", Timezone: "UTC", Mode: "whitelist"}}
	windows := toWindows(rows)
	require.Len(t, windows, 1)
	require.Equal(t, "evening", windows[0].Name)
	require.EqualValues(t, "whitelist", windows[0].Mode)
}

func TestWatchURL_BuildsYouTubeWatchLink(t *testing.T) {
	require.Equal(t, "https://www.youtube.com/watch?v=abc123", watchURL("abc123"))
}

func TestParseDeviceID_ReturnsNilOnNonNumeric(t *testing.T) {
	require.Nil(t, parseDeviceID("not-a-number"))
	id := parseDeviceID("42")
	require.NotNil(t, id)
	require.EqualValues(t, 42, *id)
}

func TestMonitoringEffective_FalseWhenActiveSettingDisabled(t *testing.T) {
	clk := &fakeClock{now: time.Now()}
	o, st, _ := newTestOrchestrator(t, clk)
	ctx := context.Background()

	require.NoError(t, st.SetSetting(ctx, "active", "false"))
	on, _, err := o.monitoringEffectiveWithWindows(ctx, clk.now)
	require.NoError(t, err)
	require.False(t, on)
}

func TestMonitoringEffective_TrueWithNoSchedulesAndLegacyWindowOpen(t *testing.T) {
	clk := &fakeClock{now: time.Now()}
	o, st, _ := newTestOrchestrator(t, clk)
	ctx := context.Background()

	require.NoError(t, st.SetSetting(ctx, "active", "true"))
	require.NoError(t, st.SetSetting(ctx, "schedule_enabled", "false"))
	on, windows, err := o.monitoringEffectiveWithWindows(ctx, clk.now)
	require.NoError(t, err)
	require.True(t, on)
	require.Empty(t, windows)
}

func TestSponsorblockEffective_FalseWhenMasterToggleOff(t *testing.T) {
	clk := &fakeClock{now: time.Now()}
	o, st, _ := newTestOrchestrator(t, clk)
	ctx := context.Background()

	require.NoError(t, st.SetSetting(ctx, "sponsorblock_active", "false"))
	on, err := o.sponsorblockEffective(ctx, clk.now)
	require.NoError(t, err)
	require.False(t, on)
}

func TestRemoteReleaseActive_TrueWithinFutureWindow(t *testing.T) {
	clk := &fakeClock{now: time.Now()}
	o, st, _ := newTestOrchestrator(t, clk)
	ctx := context.Background()

	require.NoError(t, st.SetSetting(ctx, "sponsorblock_release_until", clk.now.Add(5*time.Minute).Format(time.RFC3339)))
	active, err := o.remoteReleaseActive(ctx, clk.now)
	require.NoError(t, err)
	require.True(t, active)

	active, err = o.remoteReleaseActive(ctx, clk.now.Add(10*time.Minute))
	require.NoError(t, err)
	require.False(t, active)
}

func TestSafeFallbackQueue_PicksFirstAllowedCandidate(t *testing.T) {
	clk := &fakeClock{now: time.Now()}
	o, _, _ := newTestOrchestrator(t, clk)
	ctx := context.Background()

	st := newDeviceState()
	st.upNextQueue = []string{"blocked-video", "candidate-1", "candidate-2"}

	ctrl := &fakeController{playOK: true}
	ok, errMsg, id := o.safeFallbackQueue(ctx, st, ctrl, "blocked-video", "blocklist")
	require.True(t, ok)
	require.Empty(t, errMsg)
	require.Equal(t, "candidate-1", id)
	require.Equal(t, []string{"candidate-1"}, ctrl.playCalls)
}

func TestSafeFallbackQueue_SkipsCandidateWhenPlayFails(t *testing.T) {
	clk := &fakeClock{now: time.Now()}
	o, _, _ := newTestOrchestrator(t, clk)
	ctx := context.Background()

	st := newDeviceState()
	st.upNextQueue = []string{"candidate-1", "candidate-2"}

	ctrl := &fakeController{playOK: false}
	ok, _, _ := o.safeFallbackQueue(ctx, st, ctrl, "", "blocklist")
	require.False(t, ok)
	require.Equal(t, []string{"candidate-1", "candidate-2"}, ctrl.playCalls)
}

func TestSafeFallbackHistory_FallsBackToRecentAllowedDecisions(t *testing.T) {
	clk := &fakeClock{now: time.Now()}
	o, st, _ := newTestOrchestrator(t, clk)
	ctx := context.Background()

	require.NoError(t, st.AddDecision(ctx, store.Decision{VideoID: "history-1", Verdict: string(judge.Allow), ActionTaken: "allow"}))
	require.NoError(t, st.AddDecision(ctx, store.Decision{VideoID: "history-2", Verdict: string(judge.Block), ActionTaken: "play_safe"}))

	dstate := newDeviceState()
	ctrl := &fakeController{playOK: true}
	ok, errMsg, id := o.safeFallbackHistory(ctx, dstate, ctrl, "blocked", "blocklist")
	require.True(t, ok)
	require.Empty(t, errMsg)
	require.Equal(t, "history-1", id)
}

func TestProcessEvent_NowPlayingAllowedRecordsDecision(t *testing.T) {
	clk := &fakeClock{now: time.Now()}
	o, st, b := newTestOrchestrator(t, clk)
	ctx := context.Background()

	require.NoError(t, st.SetSetting(ctx, "active", "true"))
	require.NoError(t, st.SetSetting(ctx, "schedule_enabled", "false"))

	sub, err := b.Subscribe(ctx, bus.Topic)
	require.NoError(t, err)
	defer sub.Close()

	o.ProcessEvent(ctx, bus.Message{Type: bus.EventNowPlaying, DeviceID: "1", VideoID: "abc123"})

	rows, err := st.RecentDecisions(ctx, 1)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "abc123", rows[0].VideoID)
	require.Equal(t, string(judge.Allow), rows[0].Verdict)
	require.Equal(t, "allow", rows[0].ActionTaken)
}

func TestProcessEvent_IgnoresDeviceStatusEvents(t *testing.T) {
	clk := &fakeClock{now: time.Now()}
	o, st, _ := newTestOrchestrator(t, clk)
	ctx := context.Background()

	o.ProcessEvent(ctx, bus.Message{Type: bus.EventDeviceStatus, DeviceID: "1"})

	rows, err := st.RecentDecisions(ctx, 10)
	require.NoError(t, err)
	require.Empty(t, rows)
}
