package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/pathpilot-backend/internal/logger"
	"github.com/yungbote/pathpilot-backend/internal/services"
)

type AdaptationHandler struct {
	log           *logger.Logger
	adaptationSvc services.AdaptationService
}

func NewAdaptationHandler(log *logger.Logger, adaptationSvc services.AdaptationService) *AdaptationHandler {
	return &AdaptationHandler{
		log:           log.With("handler", "AdaptationHandler"),
		adaptationSvc: adaptationSvc,
	}
}

// POST /api/onboarding/sessions/:id/adapt
func (h *AdaptationHandler) AdaptPath(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_session_id", err)
		return
	}

	var behavior services.UserBehavior
	if err := c.ShouldBindJSON(&behavior); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}

	decision, err := h.adaptationSvc.AdaptPath(c.Request.Context(), sessionID, behavior)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, decision)
}
