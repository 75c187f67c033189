package handlers

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/pathpilot-backend/internal/logger"
	"github.com/yungbote/pathpilot-backend/internal/requestdata"
	"github.com/yungbote/pathpilot-backend/internal/services"
	"github.com/yungbote/pathpilot-backend/internal/types"
)

type SessionHandler struct {
	log        *logger.Logger
	sessionSvc services.SessionStateService
}

func NewSessionHandler(log *logger.Logger, sessionSvc services.SessionStateService) *SessionHandler {
	return &SessionHandler{
		log:        log.With("handler", "SessionHandler"),
		sessionSvc: sessionSvc,
	}
}

// POST /api/onboarding/sessions
func (h *SessionHandler) StartSession(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil || rd.UserID == uuid.Nil {
		RespondError(c, http.StatusUnauthorized, "unauthorized", fmt.Errorf("not authenticated"))
		return
	}

	var body struct {
		PathID      uuid.UUID              `json:"path_id"`
		SessionType string                 `json:"session_type"`
		Metadata    map[string]interface{} `json:"metadata,omitempty"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}

	session, err := h.sessionSvc.StartSession(c.Request.Context(), rd.UserID, rd.OrganizationID, body.PathID, body.SessionType, body.Metadata)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"session": session})
}

// GET /api/onboarding/sessions/:id
func (h *SessionHandler) GetSession(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_session_id", err)
		return
	}

	session, err := h.sessionSvc.GetSession(c.Request.Context(), sessionID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"session": session})
}

// POST /api/onboarding/sessions/:id/pause
func (h *SessionHandler) PauseSession(c *gin.Context) {
	h.transition(c, h.sessionSvc.PauseSession)
}

// POST /api/onboarding/sessions/:id/resume
func (h *SessionHandler) ResumeSession(c *gin.Context) {
	h.transition(c, h.sessionSvc.ResumeSession)
}

// POST /api/onboarding/sessions/:id/complete
func (h *SessionHandler) CompleteSession(c *gin.Context) {
	h.transition(c, h.sessionSvc.CompleteSession)
}

// POST /api/onboarding/sessions/:id/abandon
func (h *SessionHandler) AbandonSession(c *gin.Context) {
	h.transition(c, h.sessionSvc.AbandonSession)
}

func (h *SessionHandler) transition(c *gin.Context, fn func(ctx context.Context, sessionID uuid.UUID) (*types.OnboardingSession, error)) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_session_id", err)
		return
	}

	session, err := fn(c.Request.Context(), sessionID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"session": session})
}
