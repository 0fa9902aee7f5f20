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
	"fmt"

	"github.com/spf13/cobra"

	next_edit "github.com/AleutianAI/nextedit/services/next_edit"
)

// --- Global Command Variables ---
var (
	configPath    string
	workspaceRoot string
	listenHost    string
	listenPort    int
	storagePath   string
	logLevel      string
	debugMode     bool

	rootCmd = &cobra.Command{
		Use:   "nextedit",
		Short: "A reviewer-in-the-loop engine for dependency-aware code edits",
		Long: `Nextedit scans a workspace for maintenance markers, orders the
proposed edits by their dependencies, and walks a reviewer through
accepting, modifying, or skipping each one with full undo/redo.`,
	}

	// --- Server ---
	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Start the review engine HTTP server",
		RunE:  runServe, // Defined in cmd_serve.go
	}

	// --- Sessions ---
	sessionCmd = &cobra.Command{
		Use:   "session",
		Short: "Inspect stored review sessions",
	}
	listSessionsCmd = &cobra.Command{
		Use:   "list",
		Short: "List all stored review sessions",
		RunE:  runListSessions, // Defined in cmd_session.go
	}
	showSessionCmd = &cobra.Command{
		Use:   "show [session_id]",
		Short: "Show one stored session with its suggestions",
		Args:  cobra.ExactArgs(1),
		RunE:  runShowSession, // Defined in cmd_session.go
	}

	// --- Utilities ---
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the nextedit version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("%s %s\n", next_edit.ServiceName, next_edit.Version)
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().StringVar(&storagePath, "storage", "", "Session database directory (overrides config)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")

	serveCmd.Flags().StringVar(&workspaceRoot, "workspace", "", "Workspace root edits are applied within")
	serveCmd.Flags().StringVar(&listenHost, "host", "", "Bind address (overrides config)")
	serveCmd.Flags().IntVar(&listenPort, "port", 0, "Listen port (overrides config)")
	serveCmd.Flags().BoolVar(&debugMode, "debug", false, "Enable debug mode")

	sessionCmd.AddCommand(listSessionsCmd)
	sessionCmd.AddCommand(showSessionCmd)

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(sessionCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig merges the config file with CLI flag overrides.
func loadConfig() (next_edit.Config, error) {
	cfg, err := next_edit.LoadConfig(configPath)
	if err != nil {
		return cfg, err
	}
	if workspaceRoot != "" {
		cfg.Workspace.Root = workspaceRoot
	}
	if listenHost != "" {
		cfg.Server.Host = listenHost
	}
	if listenPort != 0 {
		cfg.Server.Port = listenPort
	}
	if storagePath != "" {
		cfg.Storage.Path = storagePath
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	return cfg, nil
}
