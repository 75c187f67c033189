package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/pathpilot-backend/internal/logger"
	"github.com/yungbote/pathpilot-backend/internal/requestdata"
	"github.com/yungbote/pathpilot-backend/internal/services"
)

type ProgressHandler struct {
	log         *logger.Logger
	progressSvc services.ProgressService
}

func NewProgressHandler(log *logger.Logger, progressSvc services.ProgressService) *ProgressHandler {
	return &ProgressHandler{
		log:         log.With("handler", "ProgressHandler"),
		progressSvc: progressSvc,
	}
}

// POST /api/onboarding/sessions/:id/steps/:stepID/track
func (h *ProgressHandler) TrackStepProgress(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil || rd.UserID == uuid.Nil {
		RespondError(c, http.StatusUnauthorized, "unauthorized", fmt.Errorf("not authenticated"))
		return
	}
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_session_id", err)
		return
	}
	stepID, err := uuid.Parse(c.Param("stepID"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_step_id", err)
		return
	}

	var delta services.ProgressDelta
	if err := c.ShouldBindJSON(&delta); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}

	record, err := h.progressSvc.TrackStepProgress(c.Request.Context(), sessionID, stepID, rd.UserID, delta)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"progress": record})
}

// POST /api/onboarding/sessions/:id/steps/:stepID/complete
func (h *ProgressHandler) RecordStepCompletion(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil || rd.UserID == uuid.Nil {
		RespondError(c, http.StatusUnauthorized, "unauthorized", fmt.Errorf("not authenticated"))
		return
	}
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_session_id", err)
		return
	}
	stepID, err := uuid.Parse(c.Param("stepID"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_step_id", err)
		return
	}

	var result services.StepResultInput
	if err := c.ShouldBindJSON(&result); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}

	record, err := h.progressSvc.RecordStepCompletion(c.Request.Context(), sessionID, stepID, rd.UserID, result)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"progress": record})
}

// GET /api/onboarding/sessions/:id/progress
func (h *ProgressHandler) GetOverallProgress(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_session_id", err)
		return
	}

	progress, err := h.progressSvc.GetOverallProgress(c.Request.Context(), sessionID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, progress)
}

// GET /api/onboarding/sessions/:id/blockers
func (h *ProgressHandler) IdentifyBlockers(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_session_id", err)
		return
	}

	blockers, err := h.progressSvc.IdentifyBlockers(c.Request.Context(), sessionID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"blockers": blockers})
}

// POST /api/onboarding/sessions/:id/milestones/:milestoneID/award
func (h *ProgressHandler) AwardMilestone(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_session_id", err)
		return
	}
	milestoneID, err := uuid.Parse(c.Param("milestoneID"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_milestone_id", err)
		return
	}

	achievement, err := h.progressSvc.AwardMilestone(c.Request.Context(), sessionID, milestoneID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"achievement": achievement})
}

// GET /api/onboarding/achievements
func (h *ProgressHandler) GetUserAchievements(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil || rd.UserID == uuid.Nil {
		RespondError(c, http.StatusUnauthorized, "unauthorized", fmt.Errorf("not authenticated"))
		return
	}

	achievements, err := h.progressSvc.GetUserAchievements(c.Request.Context(), rd.UserID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"achievements": achievements})
}
