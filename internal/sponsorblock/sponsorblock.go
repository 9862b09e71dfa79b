// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package sponsorblock implements the SponsorBlock coordinator (spec
// §4.5): fetching and caching time-coded sponsor segments for a video,
// and commanding a seek past the segment the receiver is currently
// playing inside, subject to a per-(device,video,segment) cooldown.
package sponsorblock

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ManuGH/xg2g/internal/cache"
	"github.com/ManuGH/xg2g/internal/log"
)

// defaultAPIBase is the public SponsorBlock API (spec §4.5).
const defaultAPIBase = "https://sponsor.ajay.app/api"

// apiTimeout is the Sponsor API's total request timeout (spec §5).
const apiTimeout = 6 * time.Second

// DefaultSegmentCacheTTL is sponsorblock_segment_cache_ttl_seconds's
// default (spec §4.5).
const DefaultSegmentCacheTTL = 900 * time.Second

// minSegmentCacheTTL is the floor on the configured cache TTL (spec
// §4.5).
const minSegmentCacheTTL = 30 * time.Second

// mergeGapTolerance is the maximum gap between two segments that still
// causes them to be merged (spec §4.5).
const mergeGapTolerance = 0.8

// cooldownWindow is the minimum time between two seek commands for the
// same (device,video,segment-end) guard key (spec §4.5).
const cooldownWindow = 2 * time.Second

// Segment is one time-coded sponsor-like interval (spec §3 "Segment").
type Segment struct {
	Start    float64
	End      float64
	Category string
	UUID     string
}

// clock is the injectable time source for the cooldown guard.
type clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Coordinator is the SponsorBlock segment fetcher/cache/skip engine.
type Coordinator struct {
	apiBase string
	httpCli *http.Client
	cache   cache.Cache

	mu     sync.Mutex
	guards map[string]time.Time

	clock clock
}

// New constructs a Coordinator. segCache is typically a
// cache.NewMemoryCache; apiBase defaults to the public SponsorBlock API
// when empty.
func New(apiBase string, segCache cache.Cache) *Coordinator {
	if apiBase == "" {
		apiBase = defaultAPIBase
	}
	return &Coordinator{
		apiBase: apiBase,
		httpCli: &http.Client{Timeout: apiTimeout},
		cache:   segCache,
		guards:  make(map[string]time.Time),
		clock:   realClock{},
	}
}

// WithClock overrides the cooldown clock. Test-only seam.
func (c *Coordinator) WithClock(clk interface{ Now() time.Time }) *Coordinator {
	c.clock = clk
	return c
}

type apiSegment struct {
	Segment  [2]float64 `json:"segment"`
	Category string     `json:"category"`
	UUID     string     `json:"UUID"`
}

type apiHashMatch struct {
	VideoID  string       `json:"videoID"`
	Segments []apiSegment `json:"segments"`
}

// GetSegments returns the merged, filtered segment list for videoID,
// serving from cache when a fresh entry exists (spec §4.5).
func (c *Coordinator) GetSegments(ctx context.Context, videoID string, categories []string, minLength float64, ttl time.Duration) ([]Segment, error) {
	if cached, ok := c.cache.Get(videoID); ok {
		if segs, ok := cached.([]Segment); ok {
			return segs, nil
		}
	}

	segs, err := c.fetchSegments(ctx, videoID, categories, minLength)
	if err != nil {
		return nil, err
	}

	if ttl <= 0 {
		ttl = DefaultSegmentCacheTTL
	}
	if ttl < minSegmentCacheTTL {
		ttl = minSegmentCacheTTL
	}
	c.cache.Set(videoID, segs, ttl)
	return segs, nil
}

func (c *Coordinator) fetchSegments(ctx context.Context, videoID string, categories []string, minLength float64) ([]Segment, error) {
	sum := sha256.Sum256([]byte(videoID))
	prefix := hex.EncodeToString(sum[:])[:4]

	q := make([]string, 0, len(categories)+1)
	q = append(q, "service=YouTube", "actionType=skip")
	for _, cat := range categories {
		q = append(q, "category="+cat)
	}
	url := fmt.Sprintf("%s/skipSegments/%s?%s", c.apiBase, prefix, strings.Join(q, "&"))

	reqCtx, cancel := context.WithTimeout(ctx, apiTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("sponsorblock: build request: %w", err)
	}
	resp, err := c.httpCli.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sponsorblock: fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("sponsorblock: unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("sponsorblock: read body: %w", err)
	}

	var matches []apiHashMatch
	if err := json.Unmarshal(body, &matches); err != nil {
		return nil, fmt.Errorf("sponsorblock: decode response: %w", err)
	}

	var raw []Segment
	for _, m := range matches {
		if m.VideoID != videoID {
			continue
		}
		for _, s := range m.Segments {
			start, end := s.Segment[0], s.Segment[1]
			if end <= start {
				continue
			}
			if end-start < minLength {
				continue
			}
			raw = append(raw, Segment{Start: start, End: end, Category: s.Category, UUID: s.UUID})
		}
	}

	return mergeSegments(raw), nil
}

// mergeSegments sorts by (start, end) then merges adjacent/overlapping
// segments whose gap is within mergeGapTolerance (spec §4.5).
func mergeSegments(segs []Segment) []Segment {
	if len(segs) == 0 {
		return nil
	}
	sort.Slice(segs, func(i, j int) bool {
		if segs[i].Start != segs[j].Start {
			return segs[i].Start < segs[j].Start
		}
		return segs[i].End < segs[j].End
	})

	out := []Segment{segs[0]}
	for _, s := range segs[1:] {
		last := &out[len(out)-1]
		if s.Start-last.End <= mergeGapTolerance {
			if s.End > last.End {
				last.End = s.End
			}
			continue
		}
		out = append(out, s)
	}
	return out
}

// Prefetch fires GetSegments and discards the result (spec §4.5, used
// on up_next).
func (c *Coordinator) Prefetch(ctx context.Context, videoID string, categories []string, minLength float64, ttl time.Duration) {
	if videoID == "" {
		return
	}
	if _, err := c.GetSegments(ctx, videoID, categories, minLength, ttl); err != nil {
		log.WithComponent("sponsorblock").Debug().Err(err).Str("video_id", videoID).Msg("prefetch failed")
	}
}

// SeekFunc commands a receiver to seek to an absolute position, in
// seconds.
type SeekFunc func(ctx context.Context, target float64) error

// TrySkipCurrent finds the segment (if any) containing currentTime and,
// subject to the per-guard-key cooldown, commands a seek past it (spec
// §4.5). It returns the matched segment (even when the cooldown
// suppressed the seek, so the caller can still log it) and any error
// from the seek call itself.
func (c *Coordinator) TrySkipCurrent(ctx context.Context, device, videoID string, currentTime *float64, categories []string, minLength float64, ttl time.Duration, seek SeekFunc) (*Segment, error) {
	if currentTime == nil {
		return nil, nil
	}

	segs, err := c.GetSegments(ctx, videoID, categories, minLength, ttl)
	if err != nil {
		return nil, err
	}

	var match *Segment
	for i := range segs {
		s := segs[i]
		if s.Start-0.1 <= *currentTime && *currentTime < s.End-0.05 {
			match = &s
			break
		}
	}
	if match == nil {
		return nil, nil
	}

	guardKey := fmt.Sprintf("%s:%s:%.3f", device, videoID, match.End)

	c.mu.Lock()
	last, seen := c.guards[guardKey]
	now := c.clock.Now()
	onCooldown := seen && now.Sub(last) < cooldownWindow
	if !onCooldown {
		c.guards[guardKey] = now
	}
	c.mu.Unlock()

	if onCooldown {
		return match, nil
	}

	target := match.End + 0.08
	if *currentTime+0.1 > target {
		target = *currentTime + 0.1
	}
	if err := seek(ctx, target); err != nil {
		return match, err
	}
	return match, nil
}
