// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package config loads the static, process-lifetime configuration of the
// supervisor: listen addresses, data directory, log level, and the
// connection details for the external classifier. Mutable,
// user-editable settings (spec §3 Setting rows) live in internal/store, not
// here.
package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ManuGH/xg2g/internal/log"
)

// ServerConfig controls the HTTP listeners.
type ServerConfig struct {
	ListenAddr      string
	MetricsAddr     string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	MaxHeaderBytes  int
}

// ClassifierConfig controls the external judge/classifier client.
type ClassifierConfig struct {
	APIKey  string
	Model   string
	Timeout time.Duration
}

// Config is the full static configuration for one sentineld process.
type Config struct {
	DataDir string
	LogLevel string

	Server     ServerConfig
	Classifier ClassifierConfig
}

// fileDefaults is the subset of Config a YAML file may override before
// environment variables are applied on top (spec: ambient config layer).
// Field names mirror Config/ServerConfig/ClassifierConfig but stay
// loosely typed (duration fields as strings) to match how they're
// already read from the environment.
type fileDefaults struct {
	DataDir  string `yaml:"data_dir"`
	LogLevel string `yaml:"log_level"`
	Server   struct {
		ListenAddr      string `yaml:"listen_addr"`
		MetricsAddr     string `yaml:"metrics_addr"`
		ReadTimeout     string `yaml:"read_timeout"`
		WriteTimeout    string `yaml:"write_timeout"`
		IdleTimeout     string `yaml:"idle_timeout"`
		ShutdownTimeout string `yaml:"shutdown_timeout"`
		MaxHeaderBytes  int    `yaml:"max_header_bytes"`
	} `yaml:"server"`
	Classifier struct {
		Model   string `yaml:"model"`
		Timeout string `yaml:"timeout"`
	} `yaml:"classifier"`
}

// loadFileDefaults reads an optional YAML file (path from
// SENTINEL_CONFIG_FILE) that lowers the hardcoded defaults below for a
// whole household deployment without requiring one environment variable
// per field. A missing file or path is not an error; a present-but-
// invalid file logs a warning and is ignored.
func loadFileDefaults() fileDefaults {
	var fd fileDefaults
	path := os.Getenv("SENTINEL_CONFIG_FILE")
	if path == "" {
		return fd
	}
	logger := log.WithComponent("config")
	raw, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warn().Str("path", path).Err(err).Msg("failed to read config file, using built-in defaults")
		}
		return fd
	}
	if err := yaml.Unmarshal(raw, &fd); err != nil {
		logger.Warn().Str("path", path).Err(err).Msg("failed to parse config file, using built-in defaults")
		return fileDefaults{}
	}
	return fd
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// Load reads configuration from an optional YAML file (lowest
// precedence), then the environment (highest precedence), falling back
// to sane defaults for a single-household deployment.
func Load() Config {
	fd := loadFileDefaults()
	return Config{
		DataDir:  ParseString("SENTINEL_DATA_DIR", orDefault(fd.DataDir, "/var/lib/sentinel")),
		LogLevel: ParseString("SENTINEL_LOG_LEVEL", orDefault(fd.LogLevel, "info")),
		Server: ServerConfig{
			ListenAddr:      ParseString("SENTINEL_LISTEN_ADDR", orDefault(fd.Server.ListenAddr, ":8080")),
			MetricsAddr:     ParseString("SENTINEL_METRICS_ADDR", orDefault(fd.Server.MetricsAddr, ":9090")),
			ReadTimeout:     ParseDuration("SENTINEL_READ_TIMEOUT", parseDurationOrDefault(fd.Server.ReadTimeout, 10*time.Second)),
			WriteTimeout:    ParseDuration("SENTINEL_WRITE_TIMEOUT", parseDurationOrDefault(fd.Server.WriteTimeout, 30*time.Second)),
			IdleTimeout:     ParseDuration("SENTINEL_IDLE_TIMEOUT", parseDurationOrDefault(fd.Server.IdleTimeout, 120*time.Second)),
			ShutdownTimeout: ParseDuration("SENTINEL_SHUTDOWN_TIMEOUT", parseDurationOrDefault(fd.Server.ShutdownTimeout, 10*time.Second)),
			MaxHeaderBytes:  ParseInt("SENTINEL_MAX_HEADER_BYTES", intOrDefault(fd.Server.MaxHeaderBytes, 1<<20)),
		},
		Classifier: ClassifierConfig{
			APIKey:  ParseString("SENTINEL_GEMINI_API_KEY", ""),
			Model:   ParseString("SENTINEL_GEMINI_MODEL", orDefault(fd.Classifier.Model, "gemini-2.0-flash")),
			Timeout: ParseDuration("SENTINEL_GEMINI_TIMEOUT", parseDurationOrDefault(fd.Classifier.Timeout, 10*time.Second)),
		},
	}
}

func intOrDefault(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}

func parseDurationOrDefault(raw string, def time.Duration) time.Duration {
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		log.WithComponent("config").Warn().Str("value", raw).Dur("default", def).Msg("invalid duration in config file, using default")
		return def
	}
	return d
}
