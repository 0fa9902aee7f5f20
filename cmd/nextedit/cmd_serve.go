// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/nextedit/pkg/logging"
	next_edit "github.com/AleutianAI/nextedit/services/next_edit"
	"github.com/AleutianAI/nextedit/services/next_edit/telemetry"
)

// shutdownTimeout bounds graceful server drain on SIGINT/SIGTERM.
const shutdownTimeout = 10 * time.Second

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Workspace.Root == "" {
		return fmt.Errorf("a workspace root is required (--workspace or config)")
	}
	if !filepath.IsAbs(cfg.Workspace.Root) {
		abs, err := filepath.Abs(cfg.Workspace.Root)
		if err != nil {
			return fmt.Errorf("resolve workspace root: %w", err)
		}
		cfg.Workspace.Root = abs
	}

	logger := logging.New(logging.Config{
		Level:   logging.ParseLevel(cfg.Logging.Level),
		Service: next_edit.ServiceName,
	})
	defer logger.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Telemetry.Enabled {
		telCfg := telemetry.DefaultConfig()
		telCfg.ServiceVersion = next_edit.Version
		if cfg.Telemetry.TraceExporter != "" {
			telCfg.TraceExporter = cfg.Telemetry.TraceExporter
		}
		if cfg.Telemetry.MetricExporter != "" {
			telCfg.MetricExporter = cfg.Telemetry.MetricExporter
		}
		if cfg.Telemetry.OTLPEndpoint != "" {
			telCfg.OTLPEndpoint = cfg.Telemetry.OTLPEndpoint
		}

		shutdownTelemetry, err := telemetry.Init(ctx, telCfg)
		if err != nil {
			return fmt.Errorf("init telemetry: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := shutdownTelemetry(shutdownCtx); err != nil {
				logger.Warn("telemetry shutdown failed", "error", err)
			}
		}()
	}

	svc, err := next_edit.NewService(cfg, logger.Slog())
	if err != nil {
		return err
	}
	defer svc.Close()

	if debugMode {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	if debugMode {
		router.Use(gin.Logger())
	}

	handlers := next_edit.NewHandlers(svc, logger.Slog())
	v1 := router.Group("/v1")
	next_edit.RegisterRoutes(v1, handlers)

	if metricsHandler := telemetry.MetricsHandler(); metricsHandler != nil {
		router.GET("/metrics", gin.WrapH(metricsHandler))
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening",
			"addr", addr, "workspace", cfg.Workspace.Root, "version", next_edit.Version)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("forced shutdown", "error", err)
		return err
	}
	return nil
}
