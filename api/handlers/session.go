// Package handlers provides HTTP API request handlers.
package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/danghica/cliver/internal/model"
	"github.com/danghica/cliver/internal/repository"
	"github.com/danghica/cliver/internal/session"
)

// SessionHandler handles HTTP requests for session inspection.
type SessionHandler struct {
	registry *session.Registry
	events   *repository.EventRepository
}

// NewSessionHandler creates a new SessionHandler. events may be nil when
// the SQLite event log is disabled.
func NewSessionHandler(registry *session.Registry, events *repository.EventRepository) *SessionHandler {
	return &SessionHandler{
		registry: registry,
		events:   events,
	}
}

// SessionResponse represents a session in API responses.
type SessionResponse struct {
	ID        string `json:"id"`
	State     string `json:"state"`
	Mode      string `json:"mode"`
	PID       *int   `json:"pid,omitempty"`
	Duration  string `json:"duration"`
	CreatedAt string `json:"createdAt"`
	LastInput string `json:"lastInput,omitempty"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error details.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// toSessionResponse converts a model.SessionInfo to SessionResponse.
func toSessionResponse(s model.SessionInfo) *SessionResponse {
	resp := &SessionResponse{
		ID:        s.ID,
		State:     string(s.State),
		Mode:      string(s.Mode),
		PID:       s.PID,
		Duration:  formatDuration(s.Duration()),
		CreatedAt: s.CreatedAt.Format(time.RFC3339),
	}
	if !s.LastInput.IsZero() {
		resp.LastInput = s.LastInput.Format(time.RFC3339)
	}
	return resp
}

// formatDuration formats a duration as a human-readable string.
func formatDuration(d time.Duration) string {
	return d.Round(time.Second).String()
}

// Health handles GET /health.
func (h *SessionHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"sessions": h.registry.Count(),
	})
}

// List handles GET /api/sessions - lists live sessions.
func (h *SessionHandler) List(c *gin.Context) {
	infos := h.registry.List()

	response := make([]*SessionResponse, len(infos))
	for i, info := range infos {
		response[i] = toSessionResponse(info)
	}

	c.JSON(http.StatusOK, response)
}

// Get handles GET /api/sessions/:id - gets a live session.
func (h *SessionHandler) Get(c *gin.Context) {
	sessionID := c.Param("id")

	sess, err := h.registry.Get(sessionID)
	if err != nil {
		sendSessionError(c, sessionID, err)
		return
	}

	c.JSON(http.StatusOK, toSessionResponse(sess.Info()))
}

// Delete handles DELETE /api/sessions/:id - closes a live session.
func (h *SessionHandler) Delete(c *gin.Context) {
	sessionID := c.Param("id")

	if err := h.registry.Terminate(c.Request.Context(), sessionID); err != nil {
		sendSessionError(c, sessionID, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// Events handles GET /api/sessions/:id/events - returns the stored event
// log of a session, live or not.
func (h *SessionHandler) Events(c *gin.Context) {
	if h.events == nil {
		sendError(c, http.StatusNotFound, "EVENT_LOG_DISABLED", "Event database is not configured")
		return
	}

	sessionID := c.Param("id")
	events, err := h.events.ListBySession(c.Request.Context(), sessionID)
	if err != nil {
		sendError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to read events: "+err.Error())
		return
	}
	if len(events) == 0 {
		sendError(c, http.StatusNotFound, "SESSION_NOT_FOUND", "Session "+sessionID+" not found")
		return
	}

	c.JSON(http.StatusOK, events)
}

// RegisterRoutes registers the session handler routes on a Gin router group.
func (h *SessionHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/sessions", h.List)
	rg.GET("/sessions/:id", h.Get)
	rg.DELETE("/sessions/:id", h.Delete)
	rg.GET("/sessions/:id/events", h.Events)
}

func sendSessionError(c *gin.Context, sessionID string, err error) {
	if errors.Is(err, model.ErrSessionNotFound) {
		sendError(c, http.StatusNotFound, "SESSION_NOT_FOUND", "Session "+sessionID+" not found")
		return
	}
	sendError(c, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
}

// sendError sends an error response with the appropriate status code.
func sendError(c *gin.Context, statusCode int, code, message string) {
	c.JSON(statusCode, ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
		},
	})
}
