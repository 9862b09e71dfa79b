// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// SPDX-License-Identifier: MIT

// Command sentineld runs the household content-control supervisor: it
// wires the store, list/judge/sponsorblock/device components together,
// drives the runtime orchestrator's event processor and supervisor
// ticks, and serves the HTTP/MQTT surfaces described by the external
// interfaces.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"google.golang.org/genai"

	"github.com/ManuGH/xg2g/internal/api"
	"github.com/ManuGH/xg2g/internal/bus"
	"github.com/ManuGH/xg2g/internal/cache"
	"github.com/ManuGH/xg2g/internal/config"
	"github.com/ManuGH/xg2g/internal/daemon"
	"github.com/ManuGH/xg2g/internal/device"
	"github.com/ManuGH/xg2g/internal/judge"
	"github.com/ManuGH/xg2g/internal/lists"
	xglog "github.com/ManuGH/xg2g/internal/log"
	"github.com/ManuGH/xg2g/internal/metadata"
	"github.com/ManuGH/xg2g/internal/mqtt"
	"github.com/ManuGH/xg2g/internal/runtime"
	"github.com/ManuGH/xg2g/internal/sponsorblock"
	"github.com/ManuGH/xg2g/internal/store"
	"github.com/ManuGH/xg2g/internal/version"
	"github.com/ManuGH/xg2g/internal/webhook"
)

// listRefreshInterval bounds how often the blacklist/whitelist remote
// sources are re-fetched (spec §4.2 list store).
const listRefreshInterval = 10 * time.Minute

func main() {
	cfg := config.Load()

	xglog.Configure(xglog.Config{
		Level:   cfg.LogLevel,
		Service: "sentineld",
		Version: version.Version,
	})
	logger := xglog.WithComponent("main")
	logger.Info().
		Str("version", version.Version).
		Str("commit", version.Commit).
		Msg("starting sentineld")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().Err(err).Msg("sentineld exited with error")
	}
}

func run(ctx context.Context, cfg config.Config, logger zerolog.Logger) error {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	st, err := store.Open(filepath.Join(cfg.DataDir, "sentinel.db"), store.DefaultConfig())
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() { _ = st.Close() }()

	hostTZ := os.Getenv("TZ")
	if hostTZ == "" {
		hostTZ = "UTC"
	}
	if err := st.EnsureDefaults(ctx, hostTZ); err != nil {
		return fmt.Errorf("ensure default settings: %w", err)
	}
	if err := st.EnsureDefaultSchedule(ctx); err != nil {
		return fmt.Errorf("ensure default schedule: %w", err)
	}

	blocklistDir := filepath.Join(cfg.DataDir, "blocklists")
	blacklist := lists.New(lists.KindBlacklist, filepath.Join(blocklistDir, "custom-blacklist.txt"))
	whitelist := lists.New(lists.KindWhitelist, filepath.Join(blocklistDir, "custom-whitelist.txt"))
	if err := refreshLists(ctx, st, blacklist, whitelist); err != nil {
		logger.Warn().Err(err).Msg("initial list refresh failed")
	}

	settings, err := st.AllSettings(ctx)
	if err != nil {
		return fmt.Errorf("read settings: %w", err)
	}

	classifier, err := buildClassifier(ctx, cfg, settings)
	if err != nil {
		logger.Warn().Err(err).Msg("classifier disabled")
	}

	notifier := webhook.New(settings["failure_webhook_url"], webhook.DefaultTimeout)

	judgeSvc := judge.New(st, blacklist, whitelist, classifier, notifier, judge.Config{})

	segCache := cache.NewMemoryCache("sponsorblock_segments", 30*time.Minute)
	sponsor := sponsorblock.New("", segCache)

	eventBus := bus.NewMemoryBus()

	sessionFactory := device.NewUnimplementedSessionFactory()
	registry := device.NewRegistry(st, eventBus, sessionFactory)

	metaFetcher := metadata.New("")
	mqttBridge := mqtt.New(st, eventBus, registry, version.Version)
	orch := runtime.New(st, eventBus, judgeSvc, sponsor, registry, metaFetcher, mqttBridge)
	apiServer := api.NewServer(st, eventBus, registry)

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())

	mgr, err := daemon.NewManager(cfg.Server, daemon.Deps{
		Logger:         logger,
		APIHandler:     apiServer,
		MetricsHandler: metricsMux,
		MetricsAddr:    cfg.Server.MetricsAddr,
	})
	if err != nil {
		return fmt.Errorf("build daemon manager: %w", err)
	}

	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()

	if err := registry.StartAll(runCtx); err != nil {
		logger.Warn().Err(err).Msg("device registry start failed")
	}
	go func() {
		if err := orch.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error().Err(err).Msg("orchestrator event loop exited")
		}
	}()
	go orch.RunSupervisor(runCtx)
	go runListRefreshLoop(runCtx, st, blacklist, whitelist)
	go watchListFile(runCtx, st, blacklist, "blocklist_source_urls")
	go watchListFile(runCtx, st, whitelist, "allowlist_source_urls")

	mgr.RegisterShutdownHook("runtime", func(context.Context) error {
		cancelRun()
		return nil
	})
	mgr.RegisterShutdownHook("devices", func(context.Context) error {
		registry.StopAll()
		return nil
	})
	mgr.RegisterShutdownHook("mqtt", func(ctx context.Context) error {
		return mqttBridge.Close(ctx)
	})

	return mgr.Start(ctx)
}

func buildClassifier(ctx context.Context, cfg config.Config, settings map[string]string) (judge.Classifier, error) {
	if settings["gemini_enabled"] == "false" {
		return nil, nil
	}
	apiKey := settings["gemini_api_key_runtime"]
	if apiKey == "" {
		apiKey = cfg.Classifier.APIKey
	}
	if apiKey == "" {
		return nil, errors.New("no Gemini API key configured")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("genai client: %w", err)
	}

	return judge.NewGeminiClassifier(client, cfg.Classifier.Model), nil
}

// refreshLists reloads both list stores from their configured remote
// sources (spec §4.2), concurrently since each reload is an independent
// set of HTTP fetches against unrelated remote sources.
func refreshLists(ctx context.Context, st *store.Store, blacklist, whitelist *lists.Store) error {
	settings, err := st.AllSettings(ctx)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return blacklist.Reload(gctx, splitSources(settings["blocklist_source_urls"]))
	})
	g.Go(func() error {
		return whitelist.Reload(gctx, splitSources(settings["allowlist_source_urls"]))
	})
	if err := g.Wait(); err != nil {
		return fmt.Errorf("list refresh errors: %w", err)
	}
	return nil
}

func runListRefreshLoop(ctx context.Context, st *store.Store, blacklist, whitelist *lists.Store) {
	ticker := time.NewTicker(listRefreshInterval)
	defer ticker.Stop()
	logger := xglog.WithComponent("lists")
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := refreshLists(ctx, st, blacklist, whitelist); err != nil {
				logger.Warn().Err(err).Msg("periodic list refresh failed")
			}
		}
	}
}

// watchListFile reloads a list store the moment its local file changes on
// disk, rather than waiting for the next periodic refresh (spec §4.2).
func watchListFile(ctx context.Context, st *store.Store, l *lists.Store, sourceSetting string) {
	logger := xglog.WithComponent("lists")
	settings, err := st.AllSettings(ctx)
	if err != nil {
		logger.Warn().Err(err).Msg("list watcher: read settings failed")
		return
	}
	if err := l.WatchLocalFile(ctx, splitSources(settings[sourceSetting])); err != nil && !errors.Is(err, context.Canceled) {
		logger.Warn().Err(err).Msg("list file watcher exited")
	}
}

// splitSources parses a comma- or newline-separated list of URLs.
func splitSources(raw string) []string {
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == '\n' || r == '\r'
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}
