package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/pathpilot-backend/internal/logger"
	"github.com/yungbote/pathpilot-backend/internal/repos"
	"github.com/yungbote/pathpilot-backend/internal/types"
)

const (
	EventPathGenerated    = "path.generated"
	EventStepCompleted    = "step.completed"
	EventMilestoneAwarded = "milestone.awarded"
	EventPathAdapted      = "path.adapted"
	EventSessionState     = "session.state_changed"
)

// AnalyticsService writes telemetry and audit rows. Every method is
// best-effort: failures are logged and swallowed, never surfaced to the
// caller, and writes run on a detached context so an aborted request does not
// drop an already-accepted event.
type AnalyticsService interface {
	EmitEvent(ctx context.Context, userID uuid.UUID, sessionID, pathID, stepID *uuid.UUID, eventType string, data map[string]interface{})
	RecordAudit(ctx context.Context, userID uuid.UUID, sessionID *uuid.UUID, action string, detail map[string]interface{})
}

type analyticsService struct {
	db        *gorm.DB
	log       *logger.Logger
	eventRepo repos.AnalyticsEventRepo
	auditRepo repos.AuditLogRepo
	timeout   time.Duration
}

func NewAnalyticsService(db *gorm.DB, baseLog *logger.Logger, eventRepo repos.AnalyticsEventRepo, auditRepo repos.AuditLogRepo, timeout time.Duration) AnalyticsService {
	return &analyticsService{
		db:        db,
		log:       baseLog.With("service", "AnalyticsService"),
		eventRepo: eventRepo,
		auditRepo: auditRepo,
		timeout:   timeout,
	}
}

func (s *analyticsService) EmitEvent(ctx context.Context, userID uuid.UUID, sessionID, pathID, stepID *uuid.UUID, eventType string, data map[string]interface{}) {
	if userID == uuid.Nil || eventType == "" {
		return
	}
	b, _ := json.Marshal(data)
	now := time.Now().UTC()
	row := &types.AnalyticsEvent{
		ID:            uuid.New(),
		UserID:        userID,
		SessionID:     sessionID,
		PathID:        pathID,
		StepID:        stepID,
		ClientEventID: uuid.New().String(),
		Type:          eventType,
		Data:          datatypes.JSON(b),
		OccurredAt:    now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	dctx, cancel := s.detach()
	defer cancel()
	if _, err := s.eventRepo.CreateIgnoreDuplicates(dctx, nil, []*types.AnalyticsEvent{row}); err != nil {
		s.log.Warn("analytics event write failed", "type", eventType, "user_id", userID, "error", err)
	}
}

func (s *analyticsService) RecordAudit(ctx context.Context, userID uuid.UUID, sessionID *uuid.UUID, action string, detail map[string]interface{}) {
	if userID == uuid.Nil || action == "" {
		return
	}
	b, _ := json.Marshal(detail)
	now := time.Now().UTC()
	row := &types.AuditLog{
		ID:        uuid.New(),
		UserID:    userID,
		SessionID: sessionID,
		Action:    action,
		Detail:    datatypes.JSON(b),
		CreatedAt: now,
		UpdatedAt: now,
	}

	dctx, cancel := s.detach()
	defer cancel()
	if _, err := s.auditRepo.Create(dctx, nil, []*types.AuditLog{row}); err != nil {
		s.log.Warn("audit log write failed", "action", action, "user_id", userID, "error", err)
	}
}

// detach gives side-effect writes their own deadline independent of the
// request context, so a pause or client disconnect cannot cancel them.
func (s *analyticsService) detach() (context.Context, context.CancelFunc) {
	timeout := s.timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return context.WithTimeout(context.Background(), timeout)
}
