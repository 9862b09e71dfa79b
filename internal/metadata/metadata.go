// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package metadata fetches public video metadata (title, channel,
// thumbnail) for the event processor (spec §4.7 step 6). Failures fall
// through to a stub rather than stalling decision-making, mirroring the
// donor's tolerance of remote-fetch failures in internal/openwebif.
package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/ManuGH/xg2g/internal/log"
)

// oEmbedTimeout is the metadata fetch's total timeout (spec §5).
const oEmbedTimeout = 5 * time.Second

const defaultOEmbedBase = "https://www.youtube.com/oembed"

// Info is the subset of video metadata the judge and decision record
// need.
type Info struct {
	Title        string
	ChannelTitle string
	ThumbnailURL string
}

// Fetcher retrieves Info for a video id, via YouTube's public oEmbed
// endpoint.
type Fetcher struct {
	base    string
	httpCli *http.Client
}

// New constructs a Fetcher. An empty base uses the public oEmbed
// endpoint.
func New(base string) *Fetcher {
	if base == "" {
		base = defaultOEmbedBase
	}
	return &Fetcher{base: base, httpCli: &http.Client{Timeout: oEmbedTimeout}}
}

type oEmbedResponse struct {
	Title        string `json:"title"`
	AuthorName   string `json:"author_name"`
	ThumbnailURL string `json:"thumbnail_url"`
}

// Fetch returns metadata for videoID, falling back to a stub on any
// failure (spec §4.7 step 6, §7 "remote I/O swallowed to fall-through
// defaults").
func (f *Fetcher) Fetch(ctx context.Context, videoID string) Info {
	info, err := f.fetch(ctx, videoID)
	if err != nil {
		log.WithComponent("metadata").Debug().Err(err).Str("video_id", videoID).Msg("oEmbed fetch failed, using stub")
		return Stub(videoID)
	}
	return info
}

func (f *Fetcher) fetch(ctx context.Context, videoID string) (Info, error) {
	reqCtx, cancel := context.WithTimeout(ctx, oEmbedTimeout)
	defer cancel()

	watchURL := fmt.Sprintf("https://www.youtube.com/watch?v=%s", videoID)
	url := fmt.Sprintf("%s?url=%s&format=json", f.base, watchURL)

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return Info{}, err
	}
	resp, err := f.httpCli.Do(req)
	if err != nil {
		return Info{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Info{}, fmt.Errorf("metadata: unexpected status %d", resp.StatusCode)
	}

	var body oEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Info{}, err
	}

	return Info{
		Title:        body.Title,
		ChannelTitle: body.AuthorName,
		ThumbnailURL: body.ThumbnailURL,
	}, nil
}

// Stub returns the fallback metadata used when the oEmbed fetch fails
// (spec §4.7 step 6: `{title: "Video <id>", thumbnail: hqdefault}`).
func Stub(videoID string) Info {
	return Info{
		Title:        fmt.Sprintf("Video %s", videoID),
		ThumbnailURL: fmt.Sprintf("https://i.ytimg.com/vi/%s/hqdefault.jpg", videoID),
	}
}
