// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package next_edit

import (
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/nextedit/services/next_edit/analyzer"
	"github.com/AleutianAI/nextedit/services/next_edit/executor"
	"github.com/AleutianAI/nextedit/services/next_edit/session"
	"github.com/AleutianAI/nextedit/services/next_edit/storage"
)

// ServiceName identifies this service in logs and telemetry.
const ServiceName = "nextedit"

// Version is the service version reported by health and CLI.
const Version = "0.1.0"

// Config is the service configuration, loadable from YAML.
type Config struct {
	Server struct {
		// Host is the bind address. Defaults to 127.0.0.1.
		Host string `yaml:"host"`

		// Port is the listen port. Defaults to 8091.
		Port int `yaml:"port"`
	} `yaml:"server"`

	Workspace struct {
		// Root is the workspace directory edits are applied within.
		Root string `yaml:"root"`
	} `yaml:"workspace"`

	Storage struct {
		// Path is the session database directory.
		Path string `yaml:"path"`

		// InMemory disables persistence. Used by tests.
		InMemory bool `yaml:"in_memory"`
	} `yaml:"storage"`

	Telemetry struct {
		// Enabled turns on trace and metric export.
		Enabled bool `yaml:"enabled"`

		// TraceExporter is "otlp-grpc", "stdout", or "none".
		TraceExporter string `yaml:"trace_exporter"`

		// MetricExporter is "prometheus", "stdout", or "none".
		MetricExporter string `yaml:"metric_exporter"`

		// OTLPEndpoint is the collector endpoint for otlp-grpc.
		OTLPEndpoint string `yaml:"otlp_endpoint"`
	} `yaml:"telemetry"`

	Logging struct {
		// Level is debug, info, warn, or error. Defaults to info.
		Level string `yaml:"level"`
	} `yaml:"logging"`
}

// DefaultConfig returns a runnable local configuration.
func DefaultConfig() Config {
	var cfg Config
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = 8091
	cfg.Storage.Path = ".nextedit/sessions"
	cfg.Telemetry.TraceExporter = "none"
	cfg.Telemetry.MetricExporter = "prometheus"
	cfg.Logging.Level = "info"
	return cfg
}

// LoadConfig reads a YAML config file over the defaults.
//
// An empty path returns the defaults unchanged.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Service owns the engine's wiring: file store, executor, session store,
// context cache, and manager.
//
// # Thread Safety
//
// Safe for concurrent use once constructed.
type Service struct {
	config   Config
	logger   *slog.Logger
	manager  *session.Manager
	store    storage.SessionStore
	contexts *analyzer.ContextCache
}

// NewService constructs the service from configuration.
//
// # Inputs
//
//   - cfg: Service configuration. Workspace.Root is required.
//   - logger: Structured logger. Must be non-nil.
//
// # Outputs
//
//   - *Service: Ready service. Caller must Close when done.
//   - error: Non-nil when the workspace or database cannot be opened.
func NewService(cfg Config, logger *slog.Logger) (*Service, error) {
	files, err := executor.NewWorkspaceStore(cfg.Workspace.Root)
	if err != nil {
		return nil, fmt.Errorf("open workspace: %w", err)
	}

	storeCfg := storage.DefaultConfig()
	storeCfg.Path = cfg.Storage.Path
	storeCfg.InMemory = cfg.Storage.InMemory
	storeCfg.Logger = logger
	store, err := storage.NewBadgerStore(storeCfg)
	if err != nil {
		return nil, err
	}

	contexts, err := analyzer.NewContextCache(logger)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("create context cache: %w", err)
	}

	manager, err := session.NewManager(session.ManagerConfig{
		Analyzer: analyzer.NewPatternAnalyzer(logger),
		Executor: executor.New(files, logger),
		Files:    files,
		Store:    store,
		Contexts: contexts,
		Logger:   logger,
	})
	if err != nil {
		_ = contexts.Close()
		_ = store.Close()
		return nil, err
	}

	return &Service{
		config:   cfg,
		logger:   logger,
		manager:  manager,
		store:    store,
		contexts: contexts,
	}, nil
}

// Manager returns the session manager.
func (s *Service) Manager() *session.Manager {
	return s.manager
}

// Config returns the service configuration.
func (s *Service) Config() Config {
	return s.config
}

// Close releases the context cache and the session database.
func (s *Service) Close() error {
	cerr := s.contexts.Close()
	serr := s.store.Close()
	if cerr != nil {
		return cerr
	}
	return serr
}
