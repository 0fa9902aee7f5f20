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
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/AleutianAI/nextedit/services/next_edit/analyzer"
	"github.com/AleutianAI/nextedit/services/next_edit/edit"
	"github.com/AleutianAI/nextedit/services/next_edit/executor"
)

// Handlers holds the HTTP handlers for the review engine.
//
// Thread Safety: All handlers are safe for concurrent use.
type Handlers struct {
	service *Service
	logger  *slog.Logger
}

// NewHandlers creates the handler set over a service.
func NewHandlers(service *Service, logger *slog.Logger) *Handlers {
	return &Handlers{service: service, logger: logger}
}

// getOrCreateRequestID returns the X-Request-ID header, generating one
// if absent, and echoes it on the response.
func getOrCreateRequestID(c *gin.Context) string {
	requestID := c.GetHeader("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Header("X-Request-ID", requestID)
	return requestID
}

// statusForError maps the engine error taxonomy onto HTTP status codes.
func statusForError(err error) int {
	if errors.Is(err, edit.ErrNoMoreEdits) {
		return http.StatusGone
	}

	kind, ok := edit.KindOf(err)
	if !ok {
		return http.StatusInternalServerError
	}
	switch kind {
	case edit.KindSessionNotFound, edit.KindEditNotFound, edit.KindFileNotFound:
		return http.StatusNotFound
	case edit.KindSessionAlreadyActive, edit.KindEditAlreadyProcessed,
		edit.KindDependencyNotMet, edit.KindUndoFailed:
		return http.StatusConflict
	case edit.KindValidationError, edit.KindInvalidSessionID:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes the error envelope with the mapped status.
func (h *Handlers) respondError(c *gin.Context, logger *slog.Logger, err error) {
	status := statusForError(err)
	code := "INTERNAL_ERROR"
	if errors.Is(err, edit.ErrNoMoreEdits) {
		code = "NO_MORE_EDITS"
	} else if kind, ok := edit.KindOf(err); ok {
		code = string(kind)
	}

	if status >= http.StatusInternalServerError {
		logger.Error("request failed", "error", err)
	} else {
		logger.Warn("request rejected", "code", code, "error", err)
	}
	c.JSON(status, ErrorResponse{Error: err.Error(), Code: code})
}

// progressOrZero fetches progress, tolerating lookup failures on
// responses where progress is advisory.
func (h *Handlers) progressOrZero(c *gin.Context, sessionID string) edit.Progress {
	progress, err := h.service.Manager().GetProgress(c.Request.Context(), sessionID)
	if err != nil {
		return edit.Progress{}
	}
	return progress
}

// HandleStartSession handles POST /v1/nextedit/sessions.
//
// Status Codes:
//
//	201 Created: Session started
//	400 Bad Request: Missing workspace_uri or goal
//	409 Conflict: A session is already active
//	500 Internal Server Error: Analysis failed
func (h *Handlers) HandleStartSession(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := h.logger.With("request_id", requestID, "handler", "HandleStartSession")

	var req StartSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "Invalid request body",
			Code:  "INVALID_REQUEST",
		})
		return
	}

	opts := analyzer.DefaultOptions()
	if req.Options != nil {
		opts = *req.Options
	}

	session, err := h.service.Manager().Start(c.Request.Context(), req.WorkspaceURI, req.Goal, opts)
	if err != nil {
		h.respondError(c, logger, err)
		return
	}

	logger.Info("session started", "session_id", session.ID, "edits", len(session.Edits))
	c.JSON(http.StatusCreated, SessionResponse{
		Session:  session,
		Progress: session.Progress(),
	})
}

// HandleListSessions handles GET /v1/nextedit/sessions.
func (h *Handlers) HandleListSessions(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := h.logger.With("request_id", requestID, "handler", "HandleListSessions")

	sessions, err := h.service.Manager().List(c.Request.Context())
	if err != nil {
		h.respondError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, SessionListResponse{Sessions: sessions, Count: len(sessions)})
}

// HandleGetSession handles GET /v1/nextedit/sessions/:id.
func (h *Handlers) HandleGetSession(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := h.logger.With("request_id", requestID, "handler", "HandleGetSession")

	session, err := h.service.Manager().Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, SessionResponse{Session: session, Progress: session.Progress()})
}

// HandleNextEdit handles GET /v1/nextedit/sessions/:id/next.
//
// Status Codes:
//
//	200 OK: Next suggestion returned
//	400 Bad Request: Session not active
//	404 Not Found: Unknown session
//	410 Gone: Every suggestion has been processed
func (h *Handlers) HandleNextEdit(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := h.logger.With("request_id", requestID, "handler", "HandleNextEdit")
	sessionID := c.Param("id")

	next, err := h.service.Manager().GetNextEdit(c.Request.Context(), sessionID)
	if err != nil {
		h.respondError(c, logger, err)
		return
	}

	// Context rides along with the suggestion; a derivation failure is
	// not fatal to serving the edit.
	ectx, cerr := h.service.Manager().GetContext(c.Request.Context(), sessionID, next.ID)
	if cerr != nil {
		logger.Warn("context derivation failed", "edit_id", next.ID, "error", cerr)
	}
	c.JSON(http.StatusOK, NextEditResponse{
		Edit:     next,
		Context:  ectx,
		Progress: h.progressOrZero(c, sessionID),
	})
}

// HandleApplyEdit handles POST /v1/nextedit/sessions/:id/edits/:editId/apply.
//
// Status Codes:
//
//	200 OK: Edit applied
//	404 Not Found: Unknown session or edit
//	409 Conflict: Edit already processed or dependencies unmet
//	500 Internal Server Error: File substitution failed
func (h *Handlers) HandleApplyEdit(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := h.logger.With("request_id", requestID, "handler", "HandleApplyEdit")
	sessionID := c.Param("id")
	editID := c.Param("editId")

	var req ApplyEditRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			logger.Warn("Invalid request body", "error", err)
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error: "Invalid request body",
				Code:  "INVALID_REQUEST",
			})
			return
		}
	}

	result, err := h.service.Manager().ApplyEdit(c.Request.Context(), sessionID, editID, req.UserModification)
	if err != nil {
		h.respondError(c, logger, err)
		return
	}

	logger.Info("edit applied", "session_id", sessionID, "edit_id", editID)
	c.JSON(http.StatusOK, ApplyEditResponse{
		Result:   result,
		Progress: h.progressOrZero(c, sessionID),
	})
}

// HandleSkipEdit handles POST /v1/nextedit/sessions/:id/edits/:editId/skip.
func (h *Handlers) HandleSkipEdit(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := h.logger.With("request_id", requestID, "handler", "HandleSkipEdit")
	sessionID := c.Param("id")
	editID := c.Param("editId")

	var req SkipEditRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			logger.Warn("Invalid request body", "error", err)
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error: "Invalid request body",
				Code:  "INVALID_REQUEST",
			})
			return
		}
	}

	if err := h.service.Manager().SkipEdit(c.Request.Context(), sessionID, editID, req.Reason); err != nil {
		h.respondError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"skipped":  editID,
		"progress": h.progressOrZero(c, sessionID),
	})
}

// HandleUndo handles POST /v1/nextedit/sessions/:id/undo.
//
// Status Codes:
//
//	200 OK: Actions reverted
//	409 Conflict: Nothing to undo
func (h *Handlers) HandleUndo(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := h.logger.With("request_id", requestID, "handler", "HandleUndo")
	sessionID := c.Param("id")

	var req UndoRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			logger.Warn("Invalid request body", "error", err)
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error: "Invalid request body",
				Code:  "INVALID_REQUEST",
			})
			return
		}
	}

	level := executor.UndoEdit
	switch req.Level {
	case "", "edit":
	case "file":
		level = executor.UndoFile
	case "all":
		level = executor.UndoAll
	default:
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "level must be edit, file, or all",
			Code:  "INVALID_REQUEST",
		})
		return
	}

	reverted, err := h.service.Manager().Undo(c.Request.Context(), sessionID, level)
	if err != nil {
		h.respondError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, UndoResponse{
		Reverted: reverted,
		Progress: h.progressOrZero(c, sessionID),
	})
}

// HandleRedo handles POST /v1/nextedit/sessions/:id/redo.
func (h *Handlers) HandleRedo(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := h.logger.With("request_id", requestID, "handler", "HandleRedo")
	sessionID := c.Param("id")

	action, err := h.service.Manager().Redo(c.Request.Context(), sessionID)
	if err != nil {
		h.respondError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, RedoResponse{
		Action:   action,
		Progress: h.progressOrZero(c, sessionID),
	})
}

// HandlePause handles POST /v1/nextedit/sessions/:id/pause.
func (h *Handlers) HandlePause(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := h.logger.With("request_id", requestID, "handler", "HandlePause")

	session, err := h.service.Manager().Pause(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, SessionResponse{Session: session, Progress: session.Progress()})
}

// HandleResume handles POST /v1/nextedit/sessions/:id/resume.
func (h *Handlers) HandleResume(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := h.logger.With("request_id", requestID, "handler", "HandleResume")

	session, err := h.service.Manager().Resume(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, SessionResponse{Session: session, Progress: session.Progress()})
}

// HandleComplete handles POST /v1/nextedit/sessions/:id/complete.
func (h *Handlers) HandleComplete(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := h.logger.With("request_id", requestID, "handler", "HandleComplete")

	summary, err := h.service.Manager().Complete(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, SummaryResponse{Summary: summary})
}

// HandleCancel handles POST /v1/nextedit/sessions/:id/cancel.
func (h *Handlers) HandleCancel(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := h.logger.With("request_id", requestID, "handler", "HandleCancel")

	summary, err := h.service.Manager().Cancel(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, SummaryResponse{Summary: summary})
}

// HandleProgress handles GET /v1/nextedit/sessions/:id/progress.
func (h *Handlers) HandleProgress(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := h.logger.With("request_id", requestID, "handler", "HandleProgress")

	progress, err := h.service.Manager().GetProgress(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, progress)
}

// HandlePreview handles GET /v1/nextedit/sessions/:id/preview.
func (h *Handlers) HandlePreview(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := h.logger.With("request_id", requestID, "handler", "HandlePreview")

	previews, err := h.service.Manager().PreviewAll(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, PreviewResponse{Previews: previews, Count: len(previews)})
}

// HandleChanges handles GET /v1/nextedit/sessions/:id/changes.
func (h *Handlers) HandleChanges(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := h.logger.With("request_id", requestID, "handler", "HandleChanges")

	changes, err := h.service.Manager().GetChanges(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, ChangesResponse{Changes: changes, Count: len(changes)})
}

// HandleDiff handles GET /v1/nextedit/sessions/:id/edits/:editId/diff.
func (h *Handlers) HandleDiff(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := h.logger.With("request_id", requestID, "handler", "HandleDiff")
	editID := c.Param("editId")

	diff, err := h.service.Manager().GetDiff(c.Request.Context(), c.Param("id"), editID)
	if err != nil {
		h.respondError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, DiffResponse{EditID: editID, Diff: diff})
}

// HandleContext handles GET /v1/nextedit/sessions/:id/edits/:editId/context.
func (h *Handlers) HandleContext(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := h.logger.With("request_id", requestID, "handler", "HandleContext")

	ectx, err := h.service.Manager().GetContext(c.Request.Context(), c.Param("id"), c.Param("editId"))
	if err != nil {
		h.respondError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, ContextResponse{Context: ectx})
}

// HandleHealth handles GET /v1/nextedit/health.
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:  "healthy",
		Service: ServiceName,
		Version: Version,
	})
}

// HandleReady handles GET /v1/nextedit/ready.
//
// Ready means the session store answers a list query.
func (h *Handlers) HandleReady(c *gin.Context) {
	sessions, err := h.service.Manager().List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, ReadyResponse{Ready: false})
		return
	}
	c.JSON(http.StatusOK, ReadyResponse{Ready: true, SessionCount: len(sessions)})
}
