package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/pathpilot-backend/internal/logger"
	errs "github.com/yungbote/pathpilot-backend/internal/pkg/errors"
	"github.com/yungbote/pathpilot-backend/internal/repos"
	"github.com/yungbote/pathpilot-backend/internal/types"
)

const (
	AdjustmentDifficulty  = "difficulty"
	AdjustmentPacing      = "pacing"
	AdjustmentContentType = "content_type"
	AdjustmentEngagement  = "engagement"
	AdjustmentNone        = "none"
)

type StepInteraction struct {
	StepID           uuid.UUID `json:"step_id"`
	TimeSpentSeconds int       `json:"time_spent_seconds"`
	ErrorRate        float64   `json:"error_rate"`
	SkipRate         float64   `json:"skip_rate"`
	ContentType      string    `json:"content_type"`
	Completed        bool      `json:"completed"`
}

type UserBehavior struct {
	StepInteractions      []StepInteraction `json:"step_interactions"`
	LearningStyle         string            `json:"learning_style"`
	PacePreference        string            `json:"pace_preference"`
	EngagementLevel       string            `json:"engagement_level"`
	StrugglingAreas       []string          `json:"struggling_areas"`
	PreferredContentTypes []string          `json:"preferred_content_types"`
}

// AdaptationDecision is derived, not primary state; it is persisted only as a
// best-effort audit entry.
type AdaptationDecision struct {
	SessionID          uuid.UUID `json:"session_id"`
	AdjustmentType     string    `json:"adjustment_type"`
	Reason             string    `json:"reason"`
	RecommendedActions []string  `json:"recommended_actions"`
}

type AdaptationService interface {
	AdaptPath(ctx context.Context, sessionID uuid.UUID, behavior UserBehavior) (*AdaptationDecision, error)
}

type adaptationService struct {
	db          *gorm.DB
	log         *logger.Logger
	cfg         Config
	sessionRepo repos.SessionRepo
	analytics   AnalyticsService
}

func NewAdaptationService(db *gorm.DB, baseLog *logger.Logger, cfg Config, sessionRepo repos.SessionRepo, analytics AnalyticsService) AdaptationService {
	return &adaptationService{
		db:          db,
		log:         baseLog.With("service", "AdaptationService"),
		cfg:         cfg,
		sessionRepo: sessionRepo,
		analytics:   analytics,
	}
}

// AdaptPath evaluates the behavior rules in priority order; the first match
// wins. Downstream recommendation templates branch on the literal substrings
// "fast"/"slow" inside pacing reasons, so those words are part of the
// contract and must survive any rewording.
func (s *adaptationService) AdaptPath(ctx context.Context, sessionID uuid.UUID, behavior UserBehavior) (*AdaptationDecision, error) {
	var session *types.OnboardingSession
	err := withStorage(ctx, s.cfg.StorageTimeout, func(ctx context.Context) error {
		var e error
		session, e = s.sessionRepo.GetWithPath(ctx, nil, sessionID)
		return e
	})
	if err != nil {
		return nil, errs.Storage("failed to load session", err)
	}
	if session == nil || session.Path == nil {
		return nil, errs.NotFound("Session or path not found")
	}

	decision := s.evaluate(session, behavior)
	decision.SessionID = sessionID
	decision.RecommendedActions = recommendedActionsFor(decision.AdjustmentType, decision.Reason)

	s.analytics.RecordAudit(ctx, session.UserID, &sessionID, "path_adaptation", map[string]interface{}{
		"adjustment_type": decision.AdjustmentType,
		"reason":          decision.Reason,
	})
	s.analytics.EmitEvent(ctx, session.UserID, &sessionID, &session.PathID, nil, EventPathAdapted, map[string]interface{}{
		"adjustment_type": decision.AdjustmentType,
	})
	return decision, nil
}

func (s *adaptationService) evaluate(session *types.OnboardingSession, behavior UserBehavior) *AdaptationDecision {
	meanError, meanSkip, meanObserved := interactionMeans(behavior.StepInteractions)

	// Rule 1: difficulty.
	if len(behavior.StrugglingAreas) > 0 {
		return &AdaptationDecision{
			AdjustmentType: AdjustmentDifficulty,
			Reason:         fmt.Sprintf("User is struggling with %d area(s): %s", len(behavior.StrugglingAreas), strings.Join(behavior.StrugglingAreas, ", ")),
		}
	}
	if meanError > s.cfg.AdaptationErrorRateThreshold {
		return &AdaptationDecision{
			AdjustmentType: AdjustmentDifficulty,
			Reason:         fmt.Sprintf("Error rate of %.0f%% indicates the user is struggling with the current difficulty", meanError*100),
		}
	}

	// Rule 2: engagement.
	if behavior.EngagementLevel == "low" && meanSkip > s.cfg.AdaptationSkipRateThreshold {
		return &AdaptationDecision{
			AdjustmentType: AdjustmentEngagement,
			Reason:         fmt.Sprintf("Low engagement with a skip rate of %.0f%%", meanSkip*100),
		}
	}

	// Rule 3: pacing.
	if estimated := meanEstimatedSeconds(session.Path); estimated > 0 && meanObserved > 0 {
		ratio := meanObserved / estimated
		if ratio <= s.cfg.PacingFastRatio {
			return &AdaptationDecision{
				AdjustmentType: AdjustmentPacing,
				Reason:         "User is moving fast relative to the estimated step duration",
			}
		}
		if ratio >= s.cfg.PacingSlowRatio {
			return &AdaptationDecision{
				AdjustmentType: AdjustmentPacing,
				Reason:         "User is moving slow relative to the estimated step duration",
			}
		}
	}

	// Rule 4: content type.
	if len(behavior.PreferredContentTypes) > 0 {
		if step := currentStep(session); step != nil && !containsFold(behavior.PreferredContentTypes, step.StepType) {
			return &AdaptationDecision{
				AdjustmentType: AdjustmentContentType,
				Reason:         fmt.Sprintf("Current step uses %q content, which is outside the user's preferred types", step.StepType),
			}
		}
	}

	return &AdaptationDecision{
		AdjustmentType: AdjustmentNone,
		Reason:         "No adjustments needed — user behavior indicates good progress",
	}
}

// recommendedActionsFor is a pure mapping from the decision to canned
// suggestions. Pacing re-branches on the fast/slow substring in the reason.
func recommendedActionsFor(adjustmentType, reason string) []string {
	switch adjustmentType {
	case AdjustmentDifficulty:
		return []string{
			"Offer simplified versions of the remaining steps",
			"Insert a refresher step covering the struggling areas",
			"Enable inline hints for interactive steps",
		}
	case AdjustmentEngagement:
		return []string{
			"Switch to shorter, interactive step formats",
			"Surface progress milestones more prominently",
		}
	case AdjustmentPacing:
		if strings.Contains(reason, "fast") {
			return []string{
				"Unlock optional advanced steps",
				"Condense the remaining walkthrough steps",
			}
		}
		return []string{
			"Extend estimated durations for the remaining steps",
			"Break long steps into smaller checkpoints",
			"Offer an option to pause and resume later",
		}
	case AdjustmentContentType:
		return []string{
			"Swap remaining steps to the user's preferred content formats",
			"Offer alternative formats alongside the authored content",
		}
	default:
		return []string{
			"Continue with the current path",
		}
	}
}

func interactionMeans(interactions []StepInteraction) (meanError, meanSkip, meanObservedSeconds float64) {
	if len(interactions) == 0 {
		return 0, 0, 0
	}
	var errSum, skipSum, timeSum float64
	timed := 0
	for _, it := range interactions {
		errSum += it.ErrorRate
		skipSum += it.SkipRate
		if it.TimeSpentSeconds > 0 {
			timeSum += float64(it.TimeSpentSeconds)
			timed++
		}
	}
	n := float64(len(interactions))
	meanError = errSum / n
	meanSkip = skipSum / n
	if timed > 0 {
		meanObservedSeconds = timeSum / float64(timed)
	}
	return meanError, meanSkip, meanObservedSeconds
}

func meanEstimatedSeconds(path *types.Path) float64 {
	if path == nil || len(path.Steps) == 0 {
		return 0
	}
	total := 0
	counted := 0
	for _, step := range path.Steps {
		if step.EstimatedTime > 0 {
			total += step.EstimatedTime * 60
			counted++
		}
	}
	if counted == 0 {
		return 0
	}
	return float64(total) / float64(counted)
}

func currentStep(session *types.OnboardingSession) *types.PathStep {
	if session == nil || session.Path == nil || len(session.Path.Steps) == 0 {
		return nil
	}
	idx := session.CurrentStepIndex
	if idx < 0 || idx >= len(session.Path.Steps) {
		idx = 0
	}
	return session.Path.Steps[idx]
}

func containsFold(haystack []string, needle string) bool {
	for _, v := range haystack {
		if strings.EqualFold(v, needle) {
			return true
		}
	}
	return false
}
