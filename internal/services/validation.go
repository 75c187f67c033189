package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/pathpilot-backend/internal/logger"
	"github.com/yungbote/pathpilot-backend/internal/repos"
	"github.com/yungbote/pathpilot-backend/internal/requestdata"
	"github.com/yungbote/pathpilot-backend/internal/types"
)

// SwitchReason is a closed set. The source system matched free text against
// keyword lists, which broke on every wording change; the category is now the
// contract and free text rides along as an optional note.
type SwitchReason string

const (
	SwitchReasonDifficulty  SwitchReason = "difficulty"
	SwitchReasonTooEasy     SwitchReason = "too_easy"
	SwitchReasonContentType SwitchReason = "content_type"
	SwitchReasonPacing      SwitchReason = "pacing"
	SwitchReasonPreference  SwitchReason = "preference"
	SwitchReasonTechnical   SwitchReason = "technical"
)

func (r SwitchReason) Valid() bool {
	switch r {
	case SwitchReasonDifficulty, SwitchReasonTooEasy, SwitchReasonContentType,
		SwitchReasonPacing, SwitchReasonPreference, SwitchReasonTechnical:
		return true
	default:
		return false
	}
}

type SwitchValidation struct {
	IsValid bool     `json:"is_valid"`
	Issues  []string `json:"issues"`
}

type CompletionValidation struct {
	IsValid              bool        `json:"is_valid"`
	CompletionPercentage int         `json:"completion_percentage"`
	MissingSteps         []uuid.UUID `json:"missing_steps"`
	Issues               []string    `json:"issues"`
}

type ValidationService interface {
	// ValidatePathSwitch collects every violation; it never short-circuits on
	// the first one.
	ValidatePathSwitch(ctx context.Context, currentPathID, newPathID uuid.UUID, reason SwitchReason, note string) SwitchValidation
	// ValidatePathCompletion reports instead of erroring: an unresolvable
	// session comes back as an invalid result with an issue string, so UI
	// layers render it without exception handling.
	ValidatePathCompletion(ctx context.Context, sessionID uuid.UUID) CompletionValidation
}

type validationService struct {
	db           *gorm.DB
	log          *logger.Logger
	cfg          Config
	sessionRepo  repos.SessionRepo
	progressRepo repos.StepProgressRepo
	analytics    AnalyticsService
}

func NewValidationService(
	db *gorm.DB,
	baseLog *logger.Logger,
	cfg Config,
	sessionRepo repos.SessionRepo,
	progressRepo repos.StepProgressRepo,
	analytics AnalyticsService,
) ValidationService {
	return &validationService{
		db:           db,
		log:          baseLog.With("service", "ValidationService"),
		cfg:          cfg,
		sessionRepo:  sessionRepo,
		progressRepo: progressRepo,
		analytics:    analytics,
	}
}

func (s *validationService) ValidatePathSwitch(ctx context.Context, currentPathID, newPathID uuid.UUID, reason SwitchReason, note string) SwitchValidation {
	issues := []string{}

	if newPathID == uuid.Nil {
		issues = append(issues, "A new path is required")
	}
	if newPathID != uuid.Nil && currentPathID == newPathID {
		issues = append(issues, "Cannot switch to the same path")
	}
	if reason == "" {
		issues = append(issues, "A switch reason is required")
	} else if !reason.Valid() {
		issues = append(issues, fmt.Sprintf("Unknown switch reason %q", string(reason)))
	}

	result := SwitchValidation{IsValid: len(issues) == 0, Issues: issues}

	if rd := requestdata.GetRequestData(ctx); rd != nil && rd.UserID != uuid.Nil {
		s.analytics.RecordAudit(ctx, rd.UserID, nil, "path_switch_validated", map[string]interface{}{
			"current_path_id": currentPathID,
			"new_path_id":     newPathID,
			"reason":          string(reason),
			"note":            note,
			"is_valid":        result.IsValid,
			"issues":          issues,
		})
	}
	return result
}

func (s *validationService) ValidatePathCompletion(ctx context.Context, sessionID uuid.UUID) CompletionValidation {
	var session *types.OnboardingSession
	err := withStorage(ctx, s.cfg.StorageTimeout, func(ctx context.Context) error {
		var e error
		session, e = s.sessionRepo.GetWithPath(ctx, nil, sessionID)
		return e
	})
	if err != nil {
		s.log.Warn("completion validation could not load session", "session_id", sessionID, "error", err)
		return CompletionValidation{IsValid: false, MissingSteps: []uuid.UUID{}, Issues: []string{"Failed to load session data"}}
	}
	if session == nil || session.Path == nil {
		return CompletionValidation{IsValid: false, MissingSteps: []uuid.UUID{}, Issues: []string{"Session or path not found"}}
	}

	var records []*types.StepProgress
	err = withStorage(ctx, s.cfg.StorageTimeout, func(ctx context.Context) error {
		var e error
		records, e = s.progressRepo.ListBySession(ctx, nil, sessionID)
		return e
	})
	if err != nil {
		s.log.Warn("completion validation could not load progress", "session_id", sessionID, "error", err)
		return CompletionValidation{IsValid: false, MissingSteps: []uuid.UUID{}, Issues: []string{"Failed to load progress records"}}
	}

	overall, completed := summarizeProgress(session.Path, records)

	missing := []uuid.UUID{}
	for _, step := range session.Path.RequiredSteps() {
		if !completed[step.ID] {
			missing = append(missing, step.ID)
		}
	}

	result := CompletionValidation{
		IsValid:              len(missing) == 0,
		CompletionPercentage: overall,
		MissingSteps:         missing,
		Issues:               []string{},
	}
	if len(missing) > 0 {
		result.Issues = append(result.Issues, fmt.Sprintf("%d required step(s) are not completed", len(missing)))
	}
	return result
}
