package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/pathpilot-backend/internal/logger"
	errs "github.com/yungbote/pathpilot-backend/internal/pkg/errors"
	"github.com/yungbote/pathpilot-backend/internal/repos"
	"github.com/yungbote/pathpilot-backend/internal/types"
)

// Allowed transitions: active<->paused, active->completed,
// active|paused->abandoned. Everything else is rejected; terminal states
// never leave.
var sessionTransitions = map[string]map[string]bool{
	types.SessionStatusActive: {
		types.SessionStatusPaused:    true,
		types.SessionStatusCompleted: true,
		types.SessionStatusAbandoned: true,
	},
	types.SessionStatusPaused: {
		types.SessionStatusActive:    true,
		types.SessionStatusAbandoned: true,
	},
}

type SessionStateService interface {
	StartSession(ctx context.Context, userID uuid.UUID, organizationID *uuid.UUID, pathID uuid.UUID, sessionType string, metadata map[string]interface{}) (*types.OnboardingSession, error)
	GetSession(ctx context.Context, sessionID uuid.UUID) (*types.OnboardingSession, error)
	PauseSession(ctx context.Context, sessionID uuid.UUID) (*types.OnboardingSession, error)
	ResumeSession(ctx context.Context, sessionID uuid.UUID) (*types.OnboardingSession, error)
	CompleteSession(ctx context.Context, sessionID uuid.UUID) (*types.OnboardingSession, error)
	AbandonSession(ctx context.Context, sessionID uuid.UUID) (*types.OnboardingSession, error)
}

type sessionStateService struct {
	db          *gorm.DB
	log         *logger.Logger
	cfg         Config
	sessionRepo repos.SessionRepo
	pathRepo    repos.PathRepo
	validation  ValidationService
	analytics   AnalyticsService
}

func NewSessionStateService(
	db *gorm.DB,
	baseLog *logger.Logger,
	cfg Config,
	sessionRepo repos.SessionRepo,
	pathRepo repos.PathRepo,
	validation ValidationService,
	analytics AnalyticsService,
) SessionStateService {
	return &sessionStateService{
		db:          db,
		log:         baseLog.With("service", "SessionStateService"),
		cfg:         cfg,
		sessionRepo: sessionRepo,
		pathRepo:    pathRepo,
		validation:  validation,
		analytics:   analytics,
	}
}

func (s *sessionStateService) StartSession(ctx context.Context, userID uuid.UUID, organizationID *uuid.UUID, pathID uuid.UUID, sessionType string, metadata map[string]interface{}) (*types.OnboardingSession, error) {
	if userID == uuid.Nil || pathID == uuid.Nil {
		return nil, errs.Invalid("user and path ids are required")
	}

	var path *types.Path
	err := withStorage(ctx, s.cfg.StorageTimeout, func(ctx context.Context) error {
		var e error
		path, e = s.pathRepo.GetWithSteps(ctx, nil, pathID)
		return e
	})
	if err != nil {
		return nil, errs.Storage("failed to load path", err)
	}
	if path == nil {
		return nil, errs.NotFound("path not found")
	}
	if !path.IsActive {
		return nil, errs.Invalid("cannot start a session on an inactive path")
	}

	if sessionType == "" {
		sessionType = "onboarding"
	}
	now := time.Now().UTC()
	var meta datatypes.JSON
	if len(metadata) > 0 {
		b, _ := json.Marshal(metadata)
		meta = datatypes.JSON(b)
	}
	session := &types.OnboardingSession{
		ID:             uuid.New(),
		UserID:         userID,
		OrganizationID: organizationID,
		PathID:         pathID,
		SessionType:    sessionType,
		Status:         types.SessionStatusActive,
		StartedAt:      now,
		LastActiveAt:   now,
		Metadata:       meta,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	err = withStorage(ctx, s.cfg.StorageTimeout, func(ctx context.Context) error {
		return s.sessionRepo.Create(ctx, nil, session)
	})
	if err != nil {
		return nil, errs.Storage("failed to create session", err)
	}

	s.analytics.EmitEvent(ctx, userID, &session.ID, &pathID, nil, EventSessionState, map[string]interface{}{
		"status": types.SessionStatusActive,
	})
	session.Path = path
	return session, nil
}

func (s *sessionStateService) GetSession(ctx context.Context, sessionID uuid.UUID) (*types.OnboardingSession, error) {
	var session *types.OnboardingSession
	err := withStorage(ctx, s.cfg.StorageTimeout, func(ctx context.Context) error {
		var e error
		session, e = s.sessionRepo.GetWithPath(ctx, nil, sessionID)
		return e
	})
	if err != nil {
		return nil, errs.Storage("failed to load session", err)
	}
	if session == nil {
		return nil, errs.NotFound("Session or path not found")
	}
	return session, nil
}

func (s *sessionStateService) PauseSession(ctx context.Context, sessionID uuid.UUID) (*types.OnboardingSession, error) {
	return s.transition(ctx, sessionID, types.SessionStatusPaused)
}

func (s *sessionStateService) ResumeSession(ctx context.Context, sessionID uuid.UUID) (*types.OnboardingSession, error) {
	return s.transition(ctx, sessionID, types.SessionStatusActive)
}

func (s *sessionStateService) CompleteSession(ctx context.Context, sessionID uuid.UUID) (*types.OnboardingSession, error) {
	// Completion is gated on the business rules, not just the state machine.
	check := s.validation.ValidatePathCompletion(ctx, sessionID)
	if !check.IsValid {
		return nil, errs.Invalid(fmt.Sprintf("path is not complete (%d%%)", check.CompletionPercentage))
	}
	return s.transition(ctx, sessionID, types.SessionStatusCompleted)
}

func (s *sessionStateService) AbandonSession(ctx context.Context, sessionID uuid.UUID) (*types.OnboardingSession, error) {
	return s.transition(ctx, sessionID, types.SessionStatusAbandoned)
}

// transition applies last-write-wins to the status field only; progress rows
// accepted before a pause or abandon are untouched.
func (s *sessionStateService) transition(ctx context.Context, sessionID uuid.UUID, target string) (*types.OnboardingSession, error) {
	var session *types.OnboardingSession
	err := withStorage(ctx, s.cfg.StorageTimeout, func(ctx context.Context) error {
		var e error
		session, e = s.sessionRepo.GetByID(ctx, nil, sessionID)
		return e
	})
	if err != nil {
		return nil, errs.Storage("failed to load session", err)
	}
	if session == nil {
		return nil, errs.NotFound("Session or path not found")
	}

	if !sessionTransitions[session.Status][target] {
		return nil, errs.Invalid(fmt.Sprintf("invalid session transition %s -> %s", session.Status, target))
	}

	now := time.Now().UTC()
	fields := map[string]interface{}{
		"status":         target,
		"last_active_at": now,
		"updated_at":     now,
	}
	switch target {
	case types.SessionStatusPaused:
		fields["paused_at"] = now
	case types.SessionStatusActive:
		fields["paused_at"] = nil
	case types.SessionStatusCompleted:
		fields["completed_at"] = now
		fields["progress_percentage"] = 100
	}

	err = withStorage(ctx, s.cfg.StorageTimeout, func(ctx context.Context) error {
		return s.sessionRepo.UpdateFields(ctx, nil, sessionID, fields)
	})
	if err != nil {
		return nil, errs.Storage("failed to update session status", err)
	}

	prev := session.Status
	session.Status = target
	session.LastActiveAt = now
	switch target {
	case types.SessionStatusPaused:
		session.PausedAt = &now
	case types.SessionStatusActive:
		session.PausedAt = nil
	case types.SessionStatusCompleted:
		session.CompletedAt = &now
		session.ProgressPercentage = 100
	}

	s.analytics.EmitEvent(ctx, session.UserID, &sessionID, &session.PathID, nil, EventSessionState, map[string]interface{}{
		"from": prev,
		"to":   target,
	})
	s.analytics.RecordAudit(ctx, session.UserID, &sessionID, "session_transition", map[string]interface{}{
		"from": prev,
		"to":   target,
	})
	return session, nil
}
