package services

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/pathpilot-backend/internal/logger"
	errs "github.com/yungbote/pathpilot-backend/internal/pkg/errors"
	"github.com/yungbote/pathpilot-backend/internal/repos"
	"github.com/yungbote/pathpilot-backend/internal/types"
)

type NextStepService interface {
	// GetNextStep returns the next actionable step for the session, or nil
	// when every step is done.
	GetNextStep(ctx context.Context, sessionID uuid.UUID) (*types.PathStep, error)
}

type nextStepService struct {
	db           *gorm.DB
	log          *logger.Logger
	cfg          Config
	sessionRepo  repos.SessionRepo
	progressRepo repos.StepProgressRepo
}

func NewNextStepService(db *gorm.DB, baseLog *logger.Logger, cfg Config, sessionRepo repos.SessionRepo, progressRepo repos.StepProgressRepo) NextStepService {
	return &nextStepService{
		db:           db,
		log:          baseLog.With("service", "NextStepService"),
		cfg:          cfg,
		sessionRepo:  sessionRepo,
		progressRepo: progressRepo,
	}
}

func (s *nextStepService) GetNextStep(ctx context.Context, sessionID uuid.UUID) (*types.PathStep, error) {
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

	var records []*types.StepProgress
	err = withStorage(ctx, s.cfg.StorageTimeout, func(ctx context.Context) error {
		var e error
		records, e = s.progressRepo.ListBySession(ctx, nil, sessionID)
		return e
	})
	if err != nil {
		return nil, errs.Storage("failed to load progress records", err)
	}

	return ResolveNextStep(session.Path, records), nil
}

// ResolveNextStep walks the authored step order and returns the first step
// that is not completed and whose dependencies are all completed. Steps are
// pre-ordered and validated acyclic at authoring time, so a greedy linear
// scan is sufficient; no topological sort happens here.
func ResolveNextStep(path *types.Path, records []*types.StepProgress) *types.PathStep {
	if path == nil {
		return nil
	}

	completed := make(map[uuid.UUID]bool, len(records))
	for _, r := range records {
		if r != nil && r.Status == types.StepStatusCompleted {
			completed[r.StepID] = true
		}
	}

	for _, step := range path.Steps {
		if step == nil || completed[step.ID] {
			continue
		}
		ready := true
		for _, dep := range step.DependencyIDs() {
			if !completed[dep] {
				ready = false
				break
			}
		}
		if ready {
			return step
		}
	}
	return nil
}
