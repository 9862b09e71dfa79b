// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package runtime implements the runtime orchestrator (spec §2.8): the
// component that owns the supervisor tick, the effective-state gates, and
// the event processor turning one worker event into zero or one
// intervention (spec §4.7-§4.9).
package runtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ManuGH/xg2g/internal/bus"
	"github.com/ManuGH/xg2g/internal/config"
	"github.com/ManuGH/xg2g/internal/device"
	"github.com/ManuGH/xg2g/internal/judge"
	"github.com/ManuGH/xg2g/internal/log"
	"github.com/ManuGH/xg2g/internal/metadata"
	"github.com/ManuGH/xg2g/internal/metrics"
	"github.com/ManuGH/xg2g/internal/schedule"
	"github.com/ManuGH/xg2g/internal/sponsorblock"
	"github.com/ManuGH/xg2g/internal/store"
)

const (
	// supervisorInterval is the supervisor tick period (spec §4.8).
	supervisorInterval = 5 * time.Second
	// dedupWindow is the same-video now_playing dedup window (spec §4.7
	// step 5).
	dedupWindow = 5 * time.Second
	// upNextRepeatGap gates the inferred-now-playing heuristic (spec §4.7
	// step 5).
	upNextRepeatGap = 4 * time.Second
	// blockRetryWindow rate-limits repeated block interventions for the
	// same (device,video) (spec §4.7 step 8).
	blockRetryWindow = 1500 * time.Millisecond
	// safeFallbackQueueDepth bounds how many up-next candidates the queue
	// pool tries (spec §4.9).
	safeFallbackQueueDepth = 12
	// historyPoolSize bounds how many recent decisions feed the history
	// pool (spec §4.9).
	historyPoolSize = 500
	// reinforcementFirstDelay is the wait before the first reinforcement
	// retry and reinforcementSecondDelay the further wait before the
	// second, so the retries land at +1.0s and +3.0s after the successful
	// safe-play (spec §4.9).
	reinforcementFirstDelay  = 1 * time.Second
	reinforcementSecondDelay = 2 * time.Second
)

// clock is the injectable time source used throughout dedup/cooldown
// logic (matches the seam internal/resilience and internal/sponsorblock
// use).
type clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Controller is the subset of device.Worker's control operations the
// orchestrator needs (spec §4.6). *device.Worker satisfies this
// directly.
type Controller interface {
	SkipCurrent(ctx context.Context) (bool, string, device.SkipMethod)
	Seek(ctx context.Context, position float64) (bool, string)
	PlayVideo(ctx context.Context, videoID string) (bool, string)
}

// DeviceRegistry is the subset of device.Registry the orchestrator needs:
// looking up a device's worker and starting/stopping the whole fleet on
// supervisor-tick transitions.
type DeviceRegistry interface {
	Get(deviceID int64) (*device.Worker, bool)
	StartAll(ctx context.Context) error
	StopAll()
	PauseAll(ctx context.Context)
}

// MetadataFetcher resolves public video metadata (spec §4.7 step 6).
type MetadataFetcher interface {
	Fetch(ctx context.Context, videoID string) metadata.Info
}

// MQTTTicker is ticked once per supervisor cycle to apply config, drain
// command intake, and publish a debounced snapshot (spec §4.8c).
type MQTTTicker interface {
	Tick(ctx context.Context)
}

// Orchestrator owns the supervisor loop and the event processor (spec
// §2.8, §3 "Ownership").
type Orchestrator struct {
	store    *store.Store
	bus      bus.Bus
	judgeSvc *judge.Judge
	sponsor  *sponsorblock.Coordinator
	devices  DeviceRegistry
	meta     MetadataFetcher
	mqtt     MQTTTicker

	states  *stateRegistry
	clock   clock
	shuffle Shuffler
}

// New constructs an Orchestrator. mqttTicker may be nil when the MQTT
// bridge is disabled.
func New(st *store.Store, b bus.Bus, judgeSvc *judge.Judge, sponsor *sponsorblock.Coordinator, devices DeviceRegistry, meta MetadataFetcher, mqttTicker MQTTTicker) *Orchestrator {
	return &Orchestrator{
		store:    st,
		bus:      b,
		judgeSvc: judgeSvc,
		sponsor:  sponsor,
		devices:  devices,
		meta:     meta,
		mqtt:     mqttTicker,
		states:   newStateRegistry(),
		clock:    realClock{},
		shuffle:  cryptoShuffler{},
	}
}

// WithClock overrides the time source. Test-only seam.
func (o *Orchestrator) WithClock(c interface{ Now() time.Time }) *Orchestrator {
	o.clock = c
	return o
}

// WithShuffle overrides the safe-fallback history shuffle. Test-only
// seam (spec §9 "Shuffle determinism in tests").
func (o *Orchestrator) WithShuffle(s Shuffler) *Orchestrator {
	o.shuffle = s
	return o
}

// Run subscribes to the event bus and feeds every message through
// ProcessEvent until ctx is canceled (spec §2.8 control flow).
func (o *Orchestrator) Run(ctx context.Context) error {
	sub, err := o.bus.Subscribe(ctx, bus.Topic)
	if err != nil {
		return err
	}
	defer sub.Close()

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-sub.C():
			if !ok {
				return nil
			}
			o.ProcessEvent(ctx, msg)
		}
	}
}

// RunSupervisor ticks every 5 seconds until ctx is canceled (spec §4.8).
func (o *Orchestrator) RunSupervisor(ctx context.Context) {
	ticker := time.NewTicker(supervisorInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			o.supervisorTick(ctx)
		}
	}
}

func (o *Orchestrator) supervisorTick(ctx context.Context) {
	logger := log.WithComponent("runtime")
	now := o.clock.Now()

	// The two effective-state gates read independent settings/schedule
	// rows, so they run concurrently rather than as two sequential store
	// round trips.
	var monitoringOn, sponsorOn bool
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		on, _, err := o.monitoringEffectiveWithWindows(gctx, now)
		monitoringOn = on
		return err
	})
	g.Go(func() error {
		on, err := o.sponsorblockEffective(gctx, now)
		sponsorOn = on
		return err
	})
	if err := g.Wait(); err != nil {
		logger.Warn().Err(err).Msg("supervisor: effective-state check failed")
	}

	switch {
	case monitoringOn:
		if err := o.devices.StartAll(ctx); err != nil {
			logger.Warn().Err(err).Msg("supervisor: starting workers failed")
		}
	case !sponsorOn:
		// Schedule/state is inactive: stop every worker AND record why
		// (spec §4.8), matching the original's pause_all() two-step
		// semantics rather than leaving devices merely "offline".
		o.devices.PauseAll(ctx)
	}

	if o.mqtt != nil {
		o.mqtt.Tick(ctx)
	}
}

// ProcessEvent turns one normalized worker event into zero or one
// intervention (spec §4.7). A panic anywhere in the pipeline is recovered
// so a single bad event cannot take down the supervisor or another
// device's processing (spec §7 "Propagation policy").
func (o *Orchestrator) ProcessEvent(ctx context.Context, msg bus.Message) {
	logger := log.WithComponent("runtime")
	defer func() {
		if r := recover(); r != nil {
			logger.Error().Interface("panic", r).Str("device_id", msg.DeviceID).Msg("event processor recovered from panic")
			_ = o.store.SetSetting(ctx, "last_error", fmt.Sprintf("event processor panic: %v", r))
		}
	}()

	// Step 1: device_status is already on the bus; nothing further to do.
	if msg.Type == bus.EventDeviceStatus {
		return
	}
	if msg.Type != bus.EventNowPlaying && msg.Type != bus.EventUpNext {
		return
	}

	now := o.clock.Now()

	// Step 2: sponsor check, independent of the monitoring gate.
	if sponsorOn, err := o.sponsorblockEffective(ctx, now); err != nil {
		logger.Warn().Err(err).Msg("sponsorblock effective check failed")
	} else if sponsorOn {
		o.handleSponsor(ctx, msg, now)
	}

	// Step 3: monitoring gate.
	monitoringOn, windows, err := o.monitoringEffectiveWithWindows(ctx, now)
	if err != nil {
		logger.Warn().Err(err).Msg("monitoring effective check failed")
	}
	if !monitoringOn {
		return
	}

	// Step 4: enforcement mode.
	mode := schedule.EffectiveMode(windows, now)

	// Step 5: dedup / infer, guarded by the per-device record lock.
	st := o.states.get(msg.DeviceID)
	st.mu.Lock()
	defer st.mu.Unlock()

	proceed, inferred := dedupAndInfer(st, msg, now)
	if !proceed {
		return
	}

	// Step 6: metadata.
	info := o.meta.Fetch(ctx, msg.VideoID)

	// Step 7: judge.
	d, err := o.judgeSvc.Evaluate(ctx, judge.Request{
		VideoID:      msg.VideoID,
		ChannelID:    msg.ChannelID,
		Title:        info.Title,
		ChannelTitle: info.ChannelTitle,
		VideoURL:     watchURL(msg.VideoID),
		Mode:         mode,
	})
	if err != nil {
		logger.Warn().Err(err).Str("video_id", msg.VideoID).Msg("judge evaluate failed")
		_ = o.store.SetSetting(ctx, "last_error", err.Error())
		return
	}

	// Step 8: action_taken.
	isCurrent := msg.Type == bus.EventNowPlaying || inferred || (msg.Type == bus.EventUpNext && d.Verdict == judge.Block)
	action := "none"
	if isCurrent {
		if d.Verdict == judge.Allow {
			action = "allow"
		} else {
			action = o.handleBlock(ctx, st, msg, now, mode)
		}
	}

	// Step 9: persist decision record.
	if err := o.store.AddDecision(ctx, store.Decision{
		DeviceID:     parseDeviceID(msg.DeviceID),
		VideoID:      msg.VideoID,
		ChannelID:    msg.ChannelID,
		Title:        info.Title,
		ThumbnailURL: info.ThumbnailURL,
		Verdict:      string(d.Verdict),
		Reason:       d.Reason,
		Confidence:   d.Confidence,
		Source:       d.Source,
		ActionTaken:  action,
	}); err != nil {
		logger.Warn().Err(err).Msg("failed to persist decision record")
	}
	metrics.RecordDecisionSummary(string(mode), string(d.Verdict), d.Source, action)

	// Step 10: live emission.
	_ = o.bus.Publish(ctx, bus.Topic, bus.Message{
		Type:     msg.Type,
		DeviceID: msg.DeviceID,
		VideoID:  msg.VideoID,
		At:       now,
		Fields: map[string]any{
			"verdict":              d.Verdict,
			"reason":               d.Reason,
			"confidence":           d.Confidence,
			"source":               d.Source,
			"action_taken":         action,
			"inferred_now_playing": inferred,
		},
	})
}

// dedupAndInfer implements spec §4.7 step 5 under the caller-held
// per-device lock.
func dedupAndInfer(st *deviceState, msg bus.Message, now time.Time) (proceed bool, inferred bool) {
	switch msg.Type {
	case bus.EventNowPlaying:
		if st.hasLastNowPlaying && st.lastNowPlayingVideo == msg.VideoID && now.Sub(st.lastNowPlayingAt) < dedupWindow {
			return false, false
		}
		st.lastNowPlayingVideo = msg.VideoID
		st.lastNowPlayingAt = now
		st.hasLastNowPlaying = true
		st.upNextCounts = make(map[string]int)
		st.dropUpNext(msg.VideoID)
		return true, false

	case bus.EventUpNext:
		st.upNextCounts[msg.VideoID]++
		inferred = st.upNextCounts[msg.VideoID] >= 2 &&
			st.hasLastNowPlaying &&
			now.Sub(st.lastNowPlayingAt) > upNextRepeatGap
		st.pushUpNext(msg.VideoID)
		return true, inferred
	}
	return true, false
}

// handleBlock implements spec §4.7 step 8's BLOCK branch.
func (o *Orchestrator) handleBlock(ctx context.Context, st *deviceState, msg bus.Message, now time.Time, mode schedule.Mode) string {
	logger := log.WithComponent("runtime")

	if release, err := o.remoteReleaseActive(ctx, now); err != nil {
		logger.Warn().Err(err).Msg("remote release check failed")
	} else if release {
		return "none"
	}

	if last, ok := st.blockRetryAt[msg.VideoID]; ok && now.Sub(last) < blockRetryWindow {
		return "none"
	}
	st.blockRetryAt[msg.VideoID] = now

	worker, ok := o.workerFor(msg.DeviceID)
	if !ok {
		_ = o.bus.Publish(ctx, bus.Topic, bus.Message{
			Type: bus.EventInterventionError, DeviceID: msg.DeviceID, VideoID: msg.VideoID, At: now,
			Fields: map[string]any{"error": "device is not connected"},
		})
		return "none"
	}

	ok2, errMsg, safeID := o.safeFallback(ctx, st, worker, msg.VideoID, mode)
	if !ok2 {
		_ = o.bus.Publish(ctx, bus.Topic, bus.Message{
			Type: bus.EventInterventionError, DeviceID: msg.DeviceID, VideoID: msg.VideoID, At: now,
			Fields: map[string]any{"error": errMsg},
		})
		return "none"
	}

	st.blockRetryAt = make(map[string]time.Time)
	o.spawnReinforcement(st, msg.DeviceID, worker, safeID)

	_ = o.bus.Publish(ctx, bus.Topic, bus.Message{
		Type: bus.EventInterventionPlaySafe, DeviceID: msg.DeviceID, VideoID: safeID, At: now,
		Fields: map[string]any{"blocked_video_id": msg.VideoID},
	})
	return "play_safe"
}

// safeFallback implements spec §4.9: queue pool first, then history
// pool.
func (o *Orchestrator) safeFallback(ctx context.Context, st *deviceState, worker Controller, blockedID string, mode schedule.Mode) (bool, string, string) {
	if ok, _, id := o.safeFallbackQueue(ctx, st, worker, blockedID, mode); ok {
		return true, "", id
	}
	ok, errMsg, id := o.safeFallbackHistory(ctx, st, worker, blockedID, mode)
	if ok {
		return true, "", id
	}
	if errMsg == "" {
		errMsg = "no safe replacement available"
	}
	return false, errMsg, ""
}

func (o *Orchestrator) safeFallbackQueue(ctx context.Context, st *deviceState, worker Controller, blockedID string, mode schedule.Mode) (bool, string, string) {
	candidates := make([]string, 0, len(st.upNextQueue))
	for _, id := range st.upNextQueue {
		if id != blockedID {
			candidates = append(candidates, id)
		}
	}
	if len(candidates) > safeFallbackQueueDepth {
		candidates = candidates[len(candidates)-safeFallbackQueueDepth:]
	}

	var lastErr string
	for _, id := range candidates {
		info := o.meta.Fetch(ctx, id)
		d, err := o.judgeSvc.Evaluate(ctx, judge.Request{VideoID: id, Title: info.Title, ChannelTitle: info.ChannelTitle, VideoURL: watchURL(id), Mode: mode})
		if err != nil {
			lastErr = err.Error()
			continue
		}
		if d.Verdict != judge.Allow {
			continue
		}
		ok, errMsg := worker.PlayVideo(ctx, id)
		if !ok {
			lastErr = errMsg
			continue
		}
		st.dropUpNext(id)
		return true, "", id
	}
	return false, lastErr, ""
}

func (o *Orchestrator) safeFallbackHistory(ctx context.Context, st *deviceState, worker Controller, blockedID string, mode schedule.Mode) (bool, string, string) {
	rows, err := o.store.RecentDecisions(ctx, historyPoolSize)
	if err != nil {
		return false, err.Error(), ""
	}

	seen := make(map[string]bool)
	var candidates []string
	for _, r := range rows {
		if r.Verdict != string(judge.Allow) || r.VideoID == blockedID || seen[r.VideoID] {
			continue
		}
		seen[r.VideoID] = true
		candidates = append(candidates, r.VideoID)
	}

	o.shuffle.Shuffle(len(candidates), func(i, j int) { candidates[i], candidates[j] = candidates[j], candidates[i] })

	if len(candidates) > 1 && candidates[0] == st.lastHistoryChoice {
		for i := 1; i < len(candidates); i++ {
			if candidates[i] != st.lastHistoryChoice {
				candidates[0], candidates[i] = candidates[i], candidates[0]
				break
			}
		}
	}

	var lastErr string
	for _, id := range candidates {
		info := o.meta.Fetch(ctx, id)
		d, err := o.judgeSvc.Evaluate(ctx, judge.Request{VideoID: id, Title: info.Title, ChannelTitle: info.ChannelTitle, VideoURL: watchURL(id), Mode: mode})
		if err != nil {
			lastErr = err.Error()
			continue
		}
		if d.Verdict != judge.Allow {
			continue
		}
		ok, errMsg := worker.PlayVideo(ctx, id)
		if !ok {
			lastErr = errMsg
			continue
		}
		st.lastHistoryChoice = id
		return true, "", id
	}
	return false, lastErr, ""
}

// spawnReinforcement schedules two playVideo retries at +1.0s and +3.0s,
// replacing any prior reinforcement task for this device (spec §4.9,
// §5).
func (o *Orchestrator) spawnReinforcement(st *deviceState, deviceID string, worker Controller, safeID string) {
	if st.reinforceCancel != nil {
		st.reinforceCancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	st.reinforceCancel = cancel
	go o.runReinforcement(ctx, deviceID, worker, safeID)
}

func (o *Orchestrator) runReinforcement(ctx context.Context, deviceID string, worker Controller, safeID string) {
	for _, delay := range []time.Duration{reinforcementFirstDelay, reinforcementSecondDelay} {
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}

		bgCtx := context.Background()
		active, _, err := o.monitoringEffectiveWithWindows(bgCtx, o.clock.Now())
		if err != nil || !active {
			return
		}
		release, err := o.remoteReleaseActive(bgCtx, o.clock.Now())
		if err != nil || release {
			return
		}
		if ok, _ := worker.PlayVideo(bgCtx, safeID); ok {
			_ = o.bus.Publish(bgCtx, bus.Topic, bus.Message{
				Type: bus.EventInterventionPlaySafeReinforce, DeviceID: deviceID, VideoID: safeID, At: o.clock.Now(),
			})
		}
	}
}

// handleSponsor implements spec §4.7 step 2.
func (o *Orchestrator) handleSponsor(ctx context.Context, msg bus.Message, now time.Time) {
	logger := log.WithComponent("runtime")
	categories := o.sponsorCategories(ctx)
	minLength := o.sponsorMinLength(ctx)

	switch msg.Type {
	case bus.EventUpNext:
		o.sponsor.Prefetch(ctx, msg.VideoID, categories, minLength, sponsorblock.DefaultSegmentCacheTTL)

	case bus.EventNowPlaying:
		playState, _ := msg.Fields["play_state"].(string)
		if playState != device.PlayStatePlaying {
			return
		}
		var currentTime *float64
		if ct, ok := msg.Fields["current_time"].(float64); ok {
			currentTime = &ct
		}

		seekCalled := false
		seek := func(c context.Context, target float64) error {
			seekCalled = true
			worker, ok := o.workerFor(msg.DeviceID)
			if !ok {
				return errors.New("device is not connected")
			}
			ok2, errMsg := worker.Seek(c, target)
			if !ok2 {
				return errors.New(errMsg)
			}
			return nil
		}

		seg, err := o.sponsor.TrySkipCurrent(ctx, msg.DeviceID, msg.VideoID, currentTime, categories, minLength, sponsorblock.DefaultSegmentCacheTTL, seek)
		if seg == nil {
			if err != nil {
				logger.Debug().Err(err).Str("video_id", msg.VideoID).Msg("sponsorblock lookup failed")
			}
			return
		}

		action := "none"
		status := "ok"
		errStr := ""
		if err != nil {
			status = "error"
			errStr = err.Error()
		}
		if seekCalled && err == nil {
			action = "seek_end"
		}
		if addErr := o.store.AddSponsorAction(ctx, store.SponsorAction{
			DeviceID: parseDeviceIDOrZero(msg.DeviceID), VideoID: msg.VideoID, Category: seg.Category,
			SegmentStart: seg.Start, SegmentEnd: seg.End, ActionTaken: action, Status: status, Error: errStr,
		}); addErr != nil {
			logger.Warn().Err(addErr).Msg("failed to record sponsor action")
		}

		evType := bus.EventSponsorblockSkip
		fields := map[string]any{"category": seg.Category, "start": seg.Start, "end": seg.End}
		if err != nil {
			evType = bus.EventSponsorblockError
			fields["error"] = errStr
		}
		_ = o.bus.Publish(ctx, bus.Topic, bus.Message{Type: evType, DeviceID: msg.DeviceID, VideoID: msg.VideoID, At: now, Fields: fields})
	}
}

// monitoringEffectiveWithWindows implements spec §4.8's monitoring_effective
// gate, returning the loaded schedule windows so the caller can also
// compute the enforcement mode without a second store round trip.
func (o *Orchestrator) monitoringEffectiveWithWindows(ctx context.Context, now time.Time) (bool, []schedule.Window, error) {
	return MonitoringEffective(ctx, o.store, now)
}

// sponsorblockEffective implements spec §4.8's sponsorblock_effective
// gate.
func (o *Orchestrator) sponsorblockEffective(ctx context.Context, now time.Time) (bool, error) {
	return SponsorblockEffective(ctx, o.store, now)
}

// remoteReleaseActive implements spec §4.8's remote_release_active gate
// (spec §9 open question: the same setting suppresses both sponsor skip
// and block intervention).
func (o *Orchestrator) remoteReleaseActive(ctx context.Context, now time.Time) (bool, error) {
	return RemoteReleaseActive(ctx, o.store, now)
}

// ScheduleActiveNow reports whether the monitoring schedule itself is
// active right now, independent of the `active` toggle: `pickActive`
// over the stored schedule rows, or the legacy single-window settings
// when zero rows exist (spec §4.1, §4.8). It also returns the loaded
// windows so a caller can derive the enforcement mode without a second
// store round trip. Exported so internal/api's status snapshot and
// internal/mqtt's discovery/state publisher share this derivation
// instead of re-deriving a simplified copy.
func ScheduleActiveNow(ctx context.Context, st *store.Store, now time.Time) (bool, []schedule.Window, error) {
	rows, err := st.ListSchedules(ctx)
	if err != nil {
		return false, nil, err
	}
	if len(rows) == 0 {
		active, err := legacyMonitoringActive(ctx, st, now)
		return active, nil, err
	}
	windows := toWindows(rows)
	return schedule.PickActive(windows, now) != nil, windows, nil
}

// MonitoringEffective implements spec §4.8's monitoring_effective gate:
// `active && schedule(pickActive).active`. Exported for the same reason
// as ScheduleActiveNow.
func MonitoringEffective(ctx context.Context, st *store.Store, now time.Time) (bool, []schedule.Window, error) {
	if !settingBool(ctx, st, "active", true) {
		return false, nil, nil
	}
	return ScheduleActiveNow(ctx, st, now)
}

func legacyMonitoringActive(ctx context.Context, st *store.Store, now time.Time) (bool, error) {
	enabled := settingBool(ctx, st, "schedule_enabled", true)
	start := settingStr(ctx, st, "schedule_start", "07:00")
	end := settingStr(ctx, st, "schedule_end", "19:00")
	tz := settingStr(ctx, st, "timezone", "UTC")
	return schedule.IsActive(enabled, start, end, tz, now)
}

// SponsorblockEffective implements spec §4.8's sponsorblock_effective
// gate: `sponsorblock_active && schedule(sponsorblock_*).active`, a
// window entirely separate from the monitoring schedule. Exported for
// the same reason as MonitoringEffective.
func SponsorblockEffective(ctx context.Context, st *store.Store, now time.Time) (bool, error) {
	if !settingBool(ctx, st, "sponsorblock_active", false) {
		return false, nil
	}
	enabled := settingBool(ctx, st, "sponsorblock_schedule_enabled", false)
	start := settingStr(ctx, st, "sponsorblock_schedule_start", "00:00")
	end := settingStr(ctx, st, "sponsorblock_schedule_end", "23:59")
	tz := settingStr(ctx, st, "sponsorblock_timezone", "UTC")
	return schedule.IsActive(enabled, start, end, tz, now)
}

// RemoteReleaseActive implements spec §4.8's remote_release_active gate
// (spec §9 open question: the same setting suppresses both sponsor skip
// and block intervention). Exported for the same reason as
// MonitoringEffective.
func RemoteReleaseActive(ctx context.Context, st *store.Store, now time.Time) (bool, error) {
	raw, err := st.GetSetting(ctx, "sponsorblock_release_until")
	if err != nil {
		return false, err
	}
	if raw == nil || *raw == "" {
		return false, nil
	}
	until, err := time.Parse(time.RFC3339, *raw)
	if err != nil {
		return false, nil
	}
	return until.After(now), nil
}

func (o *Orchestrator) sponsorCategories(ctx context.Context) []string {
	defaultCats := []string{"sponsor", "selfpromo", "interaction", "intro", "outro", "music_offtopic"}
	raw := o.settingStr(ctx, "sponsorblock_categories_json", "")
	if raw == "" {
		return defaultCats
	}
	var cats []string
	if err := json.Unmarshal([]byte(raw), &cats); err != nil || len(cats) == 0 {
		return defaultCats
	}
	return cats
}

func (o *Orchestrator) sponsorMinLength(ctx context.Context) float64 {
	raw := o.settingStr(ctx, "sponsorblock_min_length_seconds", "1.0")
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 1.0
	}
	return v
}

func (o *Orchestrator) settingStr(ctx context.Context, key, def string) string {
	return settingStr(ctx, o.store, key, def)
}

func (o *Orchestrator) settingBool(ctx context.Context, key string, def bool) bool {
	return settingBool(ctx, o.store, key, def)
}

func settingStr(ctx context.Context, st *store.Store, key, def string) string {
	v, err := st.GetSetting(ctx, key)
	if err != nil || v == nil || *v == "" {
		return def
	}
	return *v
}

func settingBool(ctx context.Context, st *store.Store, key string, def bool) bool {
	v, err := st.GetSetting(ctx, key)
	if err != nil || v == nil {
		return def
	}
	return config.BoolFromSetting(*v, def)
}

func (o *Orchestrator) workerFor(deviceID string) (Controller, bool) {
	id, err := strconv.ParseInt(deviceID, 10, 64)
	if err != nil {
		return nil, false
	}
	return o.devices.Get(id)
}

func toWindows(rows []store.ScheduleWindow) []schedule.Window {
	out := make([]schedule.Window, len(rows))
	for i, r := range rows {
		out[i] = schedule.Window{
			ID: r.ID, Name: r.Name, Enabled: r.Enabled,
			Start: r.Start, End: r.End, Timezone: r.Timezone, Mode: schedule.Mode(r.Mode),
		}
	}
	return out
}

func watchURL(videoID string) string {
	return fmt.Sprintf("https://www.youtube.com/watch?v=%s", videoID)
}

func parseDeviceID(s string) *int64 {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil
	}
	return &id
}

func parseDeviceIDOrZero(s string) int64 {
	id, _ := strconv.ParseInt(s, 10, 64)
	return id
}
