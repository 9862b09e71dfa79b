// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package lists implements the dual list store (spec §4.2): a local,
// append/remove-able text file plus N remote URLs, merged into an indexed
// match set. One Store instance exists for the blacklist and one for the
// whitelist (spec §3 "List store (twice...)").
package lists

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/renameio/v2"

	"github.com/ManuGH/xg2g/internal/log"
)

var (
	videoIDRe   = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)
	channelIDRe = regexp.MustCompile(`^(UC[A-Za-z0-9_-]{22}|@[A-Za-z0-9_.-]+)$`)
)

// Kind distinguishes the two list store flavors.
type Kind string

const (
	KindBlacklist Kind = "blacklist"
	KindWhitelist Kind = "whitelist"
)

// Entry is one parsed rule, annotated with its provenance for UI display.
type Entry struct {
	Scope      string // "video" | "channel"
	Value      string
	Label      string
	URL        string
	SourceList string // "local" or the remote URL it came from
}

// Match is the result of a successful lookup (spec §4.2 "Match").
type Match struct {
	Scope      string
	Value      string
	RuleType   Kind
	SourceList string
}

type snapshot struct {
	videoIDs  map[string]struct{}
	channelIDs map[string]struct{}
	entries   []Entry
	sources   []string
	loadedAt  time.Time
}

// Store is one local-file + remote-URL list (spec §4.2).
type Store struct {
	kind    Kind
	path    string
	httpCli *http.Client

	mu   sync.Mutex
	snap snapshot
}

// New constructs a Store backed by the given local file path. The file is
// created with a header comment on first use if missing.
func New(kind Kind, localPath string) *Store {
	return &Store{
		kind:    kind,
		path:    localPath,
		httpCli: &http.Client{Timeout: 15 * time.Second},
		snap:    snapshot{videoIDs: map[string]struct{}{}, channelIDs: map[string]struct{}{}},
	}
}

// LocalPath returns the backing file path.
func (s *Store) LocalPath() string { return s.path }

// WatchLocalFile watches the local list file for edits made outside the
// Append/Remove API (e.g. a household member editing the file directly)
// and reloads remoteSources alongside it whenever the file changes. It
// blocks until ctx is canceled; callers run it in its own goroutine.
func (s *Store) WatchLocalFile(ctx context.Context, remoteSources []string) error {
	if err := s.ensureFile(); err != nil {
		return err
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("lists: create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(s.path)); err != nil {
		return fmt.Errorf("lists: watch %s: %w", s.path, err)
	}

	logger := log.WithComponent("lists")
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != filepath.Clean(s.path) {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if err := s.Reload(ctx, remoteSources); err != nil {
				logger.Warn().Str("kind", string(s.kind)).Err(err).Msg("reload after file change failed")
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn().Str("kind", string(s.kind)).Err(err).Msg("list file watcher error")
		}
	}
}

func (s *Store) ensureFile() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("lists: mkdir: %w", err)
	}
	if _, err := os.Stat(s.path); err == nil {
		return nil
	}
	header := fmt.Sprintf(
		"# Sentinel %s File v1\n"+
			"# Supported entry formats:\n"+
			"# 1) video:<VIDEO_ID> | Human readable title | https://www.youtube.com/watch?v=<VIDEO_ID>\n"+
			"# 2) channel:<CHANNEL_ID_OR_HANDLE> | Channel name | https://www.youtube.com/channel/<CHANNEL_ID>\n"+
			"# 3) Direct YouTube links are accepted and parsed.\n"+
			"# Lines starting with # are comments.\n",
		strings.ToUpper(string(s.kind)[:1])+string(s.kind)[1:],
	)
	return renameio.WriteFile(s.path, []byte(header), 0o644)
}

// LocalContent returns the raw local file content, creating it if absent.
func (s *Store) LocalContent() (string, error) {
	if err := s.ensureFile(); err != nil {
		return "", err
	}
	b, err := os.ReadFile(s.path)
	if err != nil {
		return "", fmt.Errorf("lists: read: %w", err)
	}
	return string(b), nil
}

// Reload re-parses the local file plus every remote source URL and
// replaces the in-memory snapshot. Remote fetch failures are swallowed
// (best-effort, spec §4.2).
func (s *Store) Reload(ctx context.Context, remoteSources []string) error {
	local, err := s.LocalContent()
	if err != nil {
		return err
	}

	next := snapshot{
		videoIDs:   map[string]struct{}{},
		channelIDs: map[string]struct{}{},
		sources:    append([]string(nil), remoteSources...),
		loadedAt:   time.Now().UTC(),
	}

	for _, e := range parseContent(local, "local") {
		addEntry(&next, e)
	}

	for _, src := range remoteSources {
		content, err := s.fetchRemote(ctx, src)
		if err != nil {
			log.WithComponent("lists").Warn().Str("source", src).Err(err).Msg("remote list fetch failed, skipping")
			continue
		}
		for _, e := range parseContent(content, src) {
			addEntry(&next, e)
		}
	}

	s.mu.Lock()
	s.snap = next
	s.mu.Unlock()
	return nil
}

func addEntry(snap *snapshot, e Entry) {
	if e.Scope == "video" {
		snap.videoIDs[e.Value] = struct{}{}
	} else {
		snap.channelIDs[e.Value] = struct{}{}
	}
	snap.entries = append(snap.entries, e)
}

func (s *Store) fetchRemote(ctx context.Context, src string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return "", err
	}
	resp, err := s.httpCli.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("lists: remote %s returned status %d", src, resp.StatusCode)
	}
	sc := bufio.NewScanner(resp.Body)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	var b strings.Builder
	for sc.Scan() {
		b.WriteString(sc.Text())
		b.WriteByte('\n')
	}
	return b.String(), nil
}

// Match checks the video set, then the channel set (spec §4.2 "Match").
func (s *Store) Match(videoID, channelID string) *Match {
	s.mu.Lock()
	defer s.mu.Unlock()
	if videoID != "" {
		if _, ok := s.snap.videoIDs[videoID]; ok {
			return &Match{Scope: "video", Value: videoID, RuleType: s.kind, SourceList: "file"}
		}
	}
	if channelID != "" {
		if _, ok := s.snap.channelIDs[channelID]; ok {
			return &Match{Scope: "channel", Value: channelID, RuleType: s.kind, SourceList: "file"}
		}
	}
	return nil
}

// Summary describes the current snapshot for UI/status display.
type Summary struct {
	Kind         Kind
	VideoCount   int
	ChannelCount int
	EntriesCount int
	LoadedAt     time.Time
	LocalPath    string
	Sources      []string
}

// Summary returns a point-in-time view of the snapshot.
func (s *Store) Summary() Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Summary{
		Kind:         s.kind,
		VideoCount:   len(s.snap.videoIDs),
		ChannelCount: len(s.snap.channelIDs),
		EntriesCount: len(s.snap.entries),
		LoadedAt:     s.snap.loadedAt,
		LocalPath:    s.path,
		Sources:      append([]string(nil), s.snap.sources...),
	}
}

// Append adds a canonical entry to the local file (spec §4.2 "Append").
// If the canonical scope:value already appears anywhere in the file, it is
// skipped. The new entry is also added straight into the in-memory
// snapshot (no Reload) so immediate Match calls see the new rule.
func (s *Store) Append(ctx context.Context, scope, value, label, ruleURL, sourceList string) error {
	scope = strings.ToLower(strings.TrimSpace(scope))
	value = strings.TrimSpace(value)
	if scope != "video" && scope != "channel" || value == "" {
		return fmt.Errorf("lists: invalid scope/value %q/%q", scope, value)
	}
	if sourceList == "" {
		sourceList = "manual"
	}
	safeLabel := strings.ReplaceAll(strings.ReplaceAll(strings.TrimSpace(label), "\n", " "), "\r", " ")
	safeURL := strings.TrimSpace(ruleURL)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureFile(); err != nil {
		return err
	}
	content, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("lists: read: %w", err)
	}
	canonical := scope + ":" + value
	if strings.Contains(string(content), canonical) {
		return nil
	}

	comment := fmt.Sprintf("# [%s] %s", sourceList, safeLabel)
	if safeLabel == "" {
		comment = fmt.Sprintf("# [%s] %s:%s", sourceList, scope, value)
	}
	line := canonical
	if safeLabel != "" {
		line += " | " + safeLabel
	}
	if safeURL != "" {
		line += " | " + safeURL
	}

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("lists: open for append: %w", err)
	}
	defer f.Close()
	if _, err := fmt.Fprintf(f, "\n%s\n%s\n", comment, line); err != nil {
		return fmt.Errorf("lists: append: %w", err)
	}

	e := Entry{Scope: scope, Value: value, Label: safeLabel, URL: safeURL, SourceList: sourceList}
	addEntry(&s.snap, e)
	return nil
}

// Remove strips the matching line (and, if immediately preceded by a
// "# [manual]" comment, that comment too) from the local file (spec §4.2
// "Remove").
func (s *Store) Remove(ctx context.Context, scope, value string) error {
	scope = strings.ToLower(strings.TrimSpace(scope))
	value = strings.TrimSpace(value)
	if scope != "video" && scope != "channel" || value == "" {
		return fmt.Errorf("lists: invalid scope/value %q/%q", scope, value)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureFile(); err != nil {
		return err
	}
	content, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("lists: read: %w", err)
	}
	lines := strings.Split(string(content), "\n")
	target := scope + ":" + value

	filtered := make([]string, 0, len(lines))
	skipNextComment := false
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "# [manual]") {
			skipNextComment = true
			filtered = append(filtered, line)
			continue
		}
		if strings.HasPrefix(trimmed, target) {
			if skipNextComment && len(filtered) > 0 {
				filtered = filtered[:len(filtered)-1]
			}
			skipNextComment = false
			continue
		}
		skipNextComment = false
		filtered = append(filtered, line)
	}

	out := strings.TrimRight(strings.Join(filtered, "\n"), "\n \t") + "\n"
	if err := renameio.WriteFile(s.path, []byte(out), 0o644); err != nil {
		return fmt.Errorf("lists: write: %w", err)
	}

	for i := range s.snap.entries {
		if s.snap.entries[i].Scope == scope && s.snap.entries[i].Value == value {
			s.snap.entries = append(s.snap.entries[:i], s.snap.entries[i+1:]...)
			break
		}
	}
	if scope == "video" {
		delete(s.snap.videoIDs, value)
	} else {
		delete(s.snap.channelIDs, value)
	}
	return nil
}

// parseContent parses a local-or-remote file body into entries, silently
// dropping invalid lines (spec §4.2).
func parseContent(content, sourceName string) []Entry {
	var out []Entry
	sc := bufio.NewScanner(strings.NewReader(content))
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		e, ok := parseLine(line)
		if !ok {
			continue
		}
		e.SourceList = sourceName
		out = append(out, e)
	}
	return out
}

func parseLine(line string) (Entry, bool) {
	parts := strings.Split(line, "|")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	primary := parts[0]
	label := ""
	entryURL := ""
	if len(parts) > 1 {
		label = parts[1]
	}
	if len(parts) > 2 {
		entryURL = parts[2]
	}

	switch {
	case strings.HasPrefix(primary, "video:"):
		vid := strings.TrimSpace(strings.SplitN(primary, ":", 2)[1])
		if !videoIDRe.MatchString(vid) {
			return Entry{}, false
		}
		if entryURL == "" {
			entryURL = "https://www.youtube.com/watch?v=" + vid
		}
		return Entry{Scope: "video", Value: vid, Label: label, URL: entryURL}, true

	case strings.HasPrefix(primary, "channel:"):
		ch := strings.TrimSpace(strings.SplitN(primary, ":", 2)[1])
		if !channelIDRe.MatchString(ch) {
			return Entry{}, false
		}
		if entryURL == "" {
			entryURL = defaultChannelURL(ch)
		}
		return Entry{Scope: "channel", Value: ch, Label: label, URL: entryURL}, true
	}

	if e, ok := extractFromURL(primary); ok {
		return e, true
	}

	token := primary
	if videoIDRe.MatchString(token) {
		if entryURL == "" {
			entryURL = "https://www.youtube.com/watch?v=" + token
		}
		return Entry{Scope: "video", Value: token, Label: label, URL: entryURL}, true
	}
	if channelIDRe.MatchString(token) {
		if entryURL == "" {
			entryURL = defaultChannelURL(token)
		}
		return Entry{Scope: "channel", Value: token, Label: label, URL: entryURL}, true
	}
	return Entry{}, false
}

func defaultChannelURL(channelID string) string {
	if strings.HasPrefix(channelID, "UC") {
		return "https://www.youtube.com/channel/" + channelID
	}
	return "https://www.youtube.com/" + channelID
}

func extractFromURL(text string) (Entry, bool) {
	u, err := url.Parse(text)
	if err != nil {
		return Entry{}, false
	}
	host := strings.ToLower(u.Host)
	if !strings.Contains(host, "youtube.com") && !strings.Contains(host, "youtu.be") {
		return Entry{}, false
	}

	if strings.Contains(host, "youtu.be") {
		vid := strings.SplitN(strings.Trim(u.Path, "/"), "/", 2)[0]
		if videoIDRe.MatchString(vid) {
			return Entry{Scope: "video", Value: vid, URL: "https://www.youtube.com/watch?v=" + vid}, true
		}
		return Entry{}, false
	}

	q := u.Query()
	if vid := q.Get("v"); vid != "" && videoIDRe.MatchString(vid) {
		return Entry{Scope: "video", Value: vid, URL: "https://www.youtube.com/watch?v=" + vid}, true
	}

	var pathParts []string
	for _, p := range strings.Split(u.Path, "/") {
		if p != "" {
			pathParts = append(pathParts, p)
		}
	}
	if len(pathParts) >= 2 && pathParts[0] == "channel" {
		channelID := strings.TrimSpace(pathParts[1])
		if channelIDRe.MatchString(channelID) {
			return Entry{Scope: "channel", Value: channelID, URL: "https://www.youtube.com/channel/" + channelID}, true
		}
	}
	if len(pathParts) > 0 && strings.HasPrefix(pathParts[0], "@") {
		handle := pathParts[0]
		if channelIDRe.MatchString(handle) {
			return Entry{Scope: "channel", Value: handle, URL: "https://www.youtube.com/" + handle}, true
		}
	}
	return Entry{}, false
}
