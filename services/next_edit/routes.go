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
	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers the review engine endpoints.
//
// # Description
//
// Registers the following under the provided router group:
//
//	POST   /nextedit/sessions                              - Start a session
//	GET    /nextedit/sessions                              - List sessions
//	GET    /nextedit/sessions/:id                          - Get a session
//	GET    /nextedit/sessions/:id/next                     - Next suggestion with its context
//	POST   /nextedit/sessions/:id/edits/:editId/apply      - Apply a suggestion
//	POST   /nextedit/sessions/:id/edits/:editId/skip       - Skip a suggestion
//	GET    /nextedit/sessions/:id/edits/:editId/diff       - Unified diff for a suggestion
//	GET    /nextedit/sessions/:id/edits/:editId/context    - Context for a suggestion
//	POST   /nextedit/sessions/:id/undo                     - Revert applied actions
//	POST   /nextedit/sessions/:id/redo                     - Reapply a reverted action
//	POST   /nextedit/sessions/:id/pause                    - Pause a session
//	POST   /nextedit/sessions/:id/resume                   - Resume a paused session
//	POST   /nextedit/sessions/:id/complete                 - Complete a session
//	POST   /nextedit/sessions/:id/cancel                   - Cancel a session
//	GET    /nextedit/sessions/:id/progress                 - Session progress
//	GET    /nextedit/sessions/:id/preview                  - Diffs for all unprocessed suggestions
//	GET    /nextedit/sessions/:id/changes                  - Net applied change per touched file
//	GET    /nextedit/health                                - Health check
//	GET    /nextedit/ready                                 - Readiness check
//
// # Inputs
//
//   - rg: Router group to register under (e.g. /v1).
//   - handlers: Handler set. Must be non-nil.
func RegisterRoutes(rg *gin.RouterGroup, handlers *Handlers) {
	nextedit := rg.Group("/nextedit")
	{
		nextedit.GET("/health", handlers.HandleHealth)
		nextedit.GET("/ready", handlers.HandleReady)

		sessions := nextedit.Group("/sessions")
		{
			sessions.POST("", handlers.HandleStartSession)
			sessions.GET("", handlers.HandleListSessions)
			sessions.GET("/:id", handlers.HandleGetSession)
			sessions.GET("/:id/next", handlers.HandleNextEdit)
			sessions.POST("/:id/edits/:editId/apply", handlers.HandleApplyEdit)
			sessions.POST("/:id/edits/:editId/skip", handlers.HandleSkipEdit)
			sessions.GET("/:id/edits/:editId/diff", handlers.HandleDiff)
			sessions.GET("/:id/edits/:editId/context", handlers.HandleContext)
			sessions.POST("/:id/undo", handlers.HandleUndo)
			sessions.POST("/:id/redo", handlers.HandleRedo)
			sessions.POST("/:id/pause", handlers.HandlePause)
			sessions.POST("/:id/resume", handlers.HandleResume)
			sessions.POST("/:id/complete", handlers.HandleComplete)
			sessions.POST("/:id/cancel", handlers.HandleCancel)
			sessions.GET("/:id/progress", handlers.HandleProgress)
			sessions.GET("/:id/preview", handlers.HandlePreview)
			sessions.GET("/:id/changes", handlers.HandleChanges)
		}
	}
}
