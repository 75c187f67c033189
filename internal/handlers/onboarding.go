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

type OnboardingHandler struct {
	log           *logger.Logger
	matcherSvc    services.PathMatcherService
	nextStepSvc   services.NextStepService
	validationSvc services.ValidationService
	suggestionSvc services.SuggestionService
}

func NewOnboardingHandler(
	log *logger.Logger,
	matcherSvc services.PathMatcherService,
	nextStepSvc services.NextStepService,
	validationSvc services.ValidationService,
	suggestionSvc services.SuggestionService,
) *OnboardingHandler {
	return &OnboardingHandler{
		log:           log.With("handler", "OnboardingHandler"),
		matcherSvc:    matcherSvc,
		nextStepSvc:   nextStepSvc,
		validationSvc: validationSvc,
		suggestionSvc: suggestionSvc,
	}
}

// POST /api/onboarding/paths/generate
func (h *OnboardingHandler) GeneratePersonalizedPath(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil || rd.UserID == uuid.Nil {
		RespondError(c, http.StatusUnauthorized, "unauthorized", fmt.Errorf("not authenticated"))
		return
	}

	var body struct {
		SubscriptionTier string                        `json:"subscription_tier"`
		Preferences      *services.LearningPreferences `json:"preferences,omitempty"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}

	mc := services.MatchContext{
		OrganizationID:   rd.OrganizationID,
		UserRole:         rd.UserRole,
		SubscriptionTier: body.SubscriptionTier,
		Preferences:      body.Preferences,
	}
	path, err := h.matcherSvc.GeneratePersonalizedPath(c.Request.Context(), rd.UserID, mc)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"path": path})
}

// GET /api/onboarding/sessions/:id/next-step
func (h *OnboardingHandler) GetNextStep(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_session_id", err)
		return
	}

	step, err := h.nextStepSvc.GetNextStep(c.Request.Context(), sessionID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	// step == nil means the path is fully completed; that is a normal result.
	RespondOK(c, gin.H{"next_step": step})
}

// POST /api/onboarding/paths/validate-switch
func (h *OnboardingHandler) ValidatePathSwitch(c *gin.Context) {
	var body struct {
		CurrentPathID uuid.UUID             `json:"current_path_id"`
		NewPathID     uuid.UUID             `json:"new_path_id"`
		Reason        services.SwitchReason `json:"reason"`
		Note          string                `json:"note"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}

	result := h.validationSvc.ValidatePathSwitch(c.Request.Context(), body.CurrentPathID, body.NewPathID, body.Reason, body.Note)
	RespondOK(c, result)
}

// GET /api/onboarding/sessions/:id/validate-completion
func (h *OnboardingHandler) ValidatePathCompletion(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_session_id", err)
		return
	}

	result := h.validationSvc.ValidatePathCompletion(c.Request.Context(), sessionID)
	RespondOK(c, result)
}

// POST /api/onboarding/sessions/:id/suggest-alternatives
func (h *OnboardingHandler) SuggestAlternativePaths(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_session_id", err)
		return
	}

	var body struct {
		Issues []services.PathIssue `json:"issues"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}

	suggestions, err := h.suggestionSvc.SuggestAlternativePaths(c.Request.Context(), sessionID, body.Issues)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"suggestions": suggestions})
}
