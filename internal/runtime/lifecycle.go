// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package runtime

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ManuGH/xg2g/internal/config"
	"github.com/ManuGH/xg2g/internal/log"
)

// ShutdownHook performs cleanup during graceful shutdown. Hooks run in
// reverse registration order (LIFO).
type ShutdownHook func(ctx context.Context) error

// ErrLifecycleNotStarted is returned when Shutdown is called on a
// Lifecycle that was never started.
var ErrLifecycleNotStarted = errors.New("runtime: lifecycle not started")

type namedHook struct {
	name string
	hook ShutdownHook
}

// Lifecycle owns process-level startup and graceful shutdown: the HTTP
// API server, the metrics server, and the orchestrator's event loop and
// supervisor tick, plus any caller-registered cleanup hooks (device
// registry teardown, MQTT disconnect). Grounded on the donor's
// `internal/daemon.Manager`, with the proxy/HDHR/V3-worker server
// concerns dropped — Sentinel has no media-serving surface.
type Lifecycle struct {
	serverCfg    config.ServerConfig
	apiHandler   http.Handler
	metricsAddr  string
	metricsHTTP  http.Handler
	orchestrator *Orchestrator

	apiServer     *http.Server
	metricsServer *http.Server

	mu            sync.Mutex
	started       bool
	shutdownHooks []namedHook

	logger zerolog.Logger
}

// NewLifecycle constructs a Lifecycle. metricsHTTP may be nil to disable
// the metrics server.
func NewLifecycle(serverCfg config.ServerConfig, apiHandler http.Handler, metricsAddr string, metricsHTTP http.Handler, o *Orchestrator) *Lifecycle {
	return &Lifecycle{
		serverCfg:    serverCfg,
		apiHandler:   apiHandler,
		metricsAddr:  metricsAddr,
		metricsHTTP:  metricsHTTP,
		orchestrator: o,
		logger:       log.WithComponent("runtime"),
	}
}

// RegisterShutdownHook registers a cleanup function invoked during
// Shutdown, in reverse registration order.
func (l *Lifecycle) RegisterShutdownHook(name string, hook ShutdownHook) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.shutdownHooks = append(l.shutdownHooks, namedHook{name: name, hook: hook})
}

// Start runs the API server, metrics server, orchestrator event loop and
// supervisor tick, and blocks until ctx is canceled or a server fails.
func (l *Lifecycle) Start(ctx context.Context) error {
	l.mu.Lock()
	if l.started {
		l.mu.Unlock()
		return errors.New("runtime: lifecycle already started")
	}
	l.started = true
	l.mu.Unlock()

	l.logger.Info().Str("listen", l.serverCfg.ListenAddr).Msg("starting sentinel lifecycle")

	errChan := make(chan error, 2)

	l.startAPIServer(errChan)
	if l.metricsAddr != "" && l.metricsHTTP != nil {
		l.startMetricsServer(errChan)
	}

	orchCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go l.orchestrator.RunSupervisor(orchCtx)
	go func() {
		if err := l.orchestrator.Run(orchCtx); err != nil {
			errChan <- fmt.Errorf("orchestrator: %w", err)
		}
	}()

	select {
	case err := <-errChan:
		l.logger.Error().Err(err).Msg("server error, shutting down")
		if shutdownErr := l.Shutdown(context.Background()); shutdownErr != nil {
			return fmt.Errorf("%w (shutdown: %v)", err, shutdownErr)
		}
		return err
	case <-ctx.Done():
		l.logger.Info().Msg("shutdown signal received")
		return l.Shutdown(context.Background())
	}
}

func (l *Lifecycle) startAPIServer(errChan chan<- error) {
	l.apiServer = &http.Server{
		Addr:              l.serverCfg.ListenAddr,
		Handler:           l.apiHandler,
		ReadTimeout:       l.serverCfg.ReadTimeout,
		ReadHeaderTimeout: l.serverCfg.ReadTimeout / 2,
		WriteTimeout:      l.serverCfg.WriteTimeout,
		IdleTimeout:       l.serverCfg.IdleTimeout,
		MaxHeaderBytes:    l.serverCfg.MaxHeaderBytes,
	}

	go func() {
		l.logger.Info().Str("addr", l.serverCfg.ListenAddr).Msg("api server listening")
		if err := l.apiServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.logger.Error().Err(err).Msg("api server failed")
			errChan <- fmt.Errorf("api server: %w", err)
		}
	}()
}

func (l *Lifecycle) startMetricsServer(errChan chan<- error) {
	l.metricsServer = &http.Server{
		Addr:              l.metricsAddr,
		Handler:           l.metricsHTTP,
		ReadHeaderTimeout: l.serverCfg.ReadTimeout / 2,
	}

	go func() {
		l.logger.Info().Str("addr", l.metricsAddr).Msg("metrics server listening")
		if err := l.metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.logger.Error().Err(err).Msg("metrics server failed")
			errChan <- fmt.Errorf("metrics server: %w", err)
		}
	}()
}

// Shutdown gracefully stops the servers, then runs registered shutdown
// hooks in reverse order, within the configured shutdown timeout.
func (l *Lifecycle) Shutdown(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.started {
		return ErrLifecycleNotStarted
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, l.serverCfg.ShutdownTimeout)
	defer cancel()

	var errs []error

	if l.apiServer != nil {
		if err := l.apiServer.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("api server shutdown: %w", err))
		}
	}
	if l.metricsServer != nil {
		if err := l.metricsServer.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("metrics server shutdown: %w", err))
		}
	}

	for i := len(l.shutdownHooks) - 1; i >= 0; i-- {
		h := l.shutdownHooks[i]
		start := time.Now()
		if err := h.hook(shutdownCtx); err != nil {
			l.logger.Error().Err(err).Str("hook", h.name).Dur("duration", time.Since(start)).Msg("shutdown hook failed")
			errs = append(errs, fmt.Errorf("hook %s: %w", h.name, err))
		} else {
			l.logger.Debug().Str("hook", h.name).Dur("duration", time.Since(start)).Msg("shutdown hook completed")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %v", errs)
	}
	l.logger.Info().Msg("sentinel stopped cleanly")
	return nil
}
