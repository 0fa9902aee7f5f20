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
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	next_edit "github.com/AleutianAI/nextedit/services/next_edit"
)

// getServerBaseURL returns the API base of a running serve instance.
func getServerBaseURL() (string, error) {
	cfg, err := loadConfig()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("http://%s:%d/v1/nextedit", cfg.Server.Host, cfg.Server.Port), nil
}

func runListSessions(cmd *cobra.Command, args []string) error {
	baseURL, err := getServerBaseURL()
	if err != nil {
		return err
	}

	resp, err := http.Get(baseURL + "/sessions")
	if err != nil {
		return fmt.Errorf("connect to nextedit server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server returned an error: %s", resp.Status)
	}

	var result next_edit.SessionListResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("parse server response: %w", err)
	}

	if result.Count == 0 {
		fmt.Println("No sessions found.")
		return nil
	}

	fmt.Println("Sessions:")
	fmt.Println("------------------------------------------------------------------")
	for _, s := range result.Sessions {
		fmt.Printf("ID: %s\nStatus: %s\nGoal: %s\nEdits: %d\nCreated: %s\n\n",
			s.ID, s.Status, s.Goal, len(s.Edits), s.CreatedAt.Format("2006-01-02 15:04:05"))
	}
	return nil
}

func runShowSession(cmd *cobra.Command, args []string) error {
	baseURL, err := getServerBaseURL()
	if err != nil {
		return err
	}

	resp, err := http.Get(baseURL + "/sessions/" + args[0])
	if err != nil {
		return fmt.Errorf("connect to nextedit server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server returned an error: %s", resp.Status)
	}

	var result next_edit.SessionResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("parse server response: %w", err)
	}

	s := result.Session
	fmt.Printf("Session %s (%s)\n", s.ID, s.Status)
	fmt.Printf("Goal: %s\n", s.Goal)
	fmt.Printf("Workspace: %s\n", s.WorkspaceURI)
	fmt.Printf("Progress: %d/%d (%d%%)\n\n",
		result.Progress.Completed+result.Progress.Skipped,
		result.Progress.Total, result.Progress.Percentage)

	for _, e := range s.Edits {
		fmt.Printf("  [%s] %s %s:%d-%d (priority %d)\n",
			e.Status, e.ID, e.FilePath, e.LineStart, e.LineEnd, e.Priority)
		if len(e.Dependencies) > 0 {
			fmt.Printf("      depends on: %v\n", e.Dependencies)
		}
	}
	return nil
}
