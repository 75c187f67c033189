package services

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/yungbote/pathpilot-backend/internal/logger"
	errs "github.com/yungbote/pathpilot-backend/internal/pkg/errors"
	"github.com/yungbote/pathpilot-backend/internal/repos"
	"github.com/yungbote/pathpilot-backend/internal/types"
)

type LearningPreferences struct {
	LearningStyle         string   `json:"learning_style"`
	Pace                  string   `json:"pace"`
	PreferredContentTypes []string `json:"preferred_content_types"`
}

type MatchContext struct {
	OrganizationID   *uuid.UUID           `json:"organization_id,omitempty"`
	UserRole         string               `json:"user_role"`
	SubscriptionTier string               `json:"subscription_tier"`
	Preferences      *LearningPreferences `json:"preferences,omitempty"`
}

type PathMatcherService interface {
	// GeneratePersonalizedPath picks the best active catalog path for the
	// user's role and tier, preferring preference alignment when a learning
	// profile is present.
	GeneratePersonalizedPath(ctx context.Context, userID uuid.UUID, mc MatchContext) (*types.Path, error)
}

type pathMatcherService struct {
	db        *gorm.DB
	log       *logger.Logger
	cfg       Config
	pathRepo  repos.PathRepo
	analytics AnalyticsService
}

func NewPathMatcherService(db *gorm.DB, baseLog *logger.Logger, cfg Config, pathRepo repos.PathRepo, analytics AnalyticsService) PathMatcherService {
	return &pathMatcherService{
		db:        db,
		log:       baseLog.With("service", "PathMatcherService"),
		cfg:       cfg,
		pathRepo:  pathRepo,
		analytics: analytics,
	}
}

func (s *pathMatcherService) GeneratePersonalizedPath(ctx context.Context, userID uuid.UUID, mc MatchContext) (*types.Path, error) {
	if userID == uuid.Nil {
		return nil, errs.Invalid("user id is required")
	}

	filter := repos.PathFilter{
		TargetRole:       mc.UserRole,
		SubscriptionTier: mc.SubscriptionTier,
		ActiveOnly:       true,
	}
	var candidates []*types.Path
	err := withStorage(ctx, s.cfg.StorageTimeout, func(ctx context.Context) error {
		var e error
		candidates, e = s.pathRepo.FindMatching(ctx, nil, filter)
		return e
	})
	if err != nil {
		return nil, errs.Storage("failed to fetch matching paths", err)
	}
	if len(candidates) == 0 {
		return nil, errs.NotFound("no active path matches the given role and tier")
	}

	ranked := s.rank(ctx, candidates, mc.Preferences)
	best := ranked[0]

	// Winner comes back with its steps; FindMatching returns bare rows.
	var full *types.Path
	err = withStorage(ctx, s.cfg.StorageTimeout, func(ctx context.Context) error {
		var e error
		full, e = s.pathRepo.GetWithSteps(ctx, nil, best.ID)
		return e
	})
	if err != nil {
		return nil, errs.Storage("failed to fetch matching paths", err)
	}
	if full == nil {
		return nil, errs.NotFound("no active path matches the given role and tier")
	}

	s.analytics.EmitEvent(ctx, userID, nil, &full.ID, nil, EventPathGenerated, map[string]interface{}{
		"target_role":       full.TargetRole,
		"subscription_tier": full.SubscriptionTier,
		"candidates":        len(candidates),
	})
	return full, nil
}

// rank orders candidates best-first. Without preferences the catalog's
// duration ordering stands (shortest onboarding wins). With preferences each
// candidate is scored on content-type overlap and pace fit, which needs the
// step lists; those load concurrently.
func (s *pathMatcherService) rank(ctx context.Context, candidates []*types.Path, prefs *LearningPreferences) []*types.Path {
	if prefs == nil || len(candidates) < 2 {
		return candidates
	}

	scores := make(map[uuid.UUID]float64, len(candidates))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, candidate := range candidates {
		g.Go(func() error {
			full, err := s.pathRepo.GetWithSteps(gctx, nil, candidate.ID)
			if err != nil || full == nil {
				// Scoring is best-effort; an unloadable candidate scores zero.
				return nil
			}
			score := scorePathForPreferences(full, prefs)
			mu.Lock()
			scores[candidate.ID] = score
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	ranked := make([]*types.Path, len(candidates))
	copy(ranked, candidates)
	sort.SliceStable(ranked, func(i, j int) bool {
		return scores[ranked[i].ID] > scores[ranked[j].ID]
	})
	return ranked
}

func scorePathForPreferences(path *types.Path, prefs *LearningPreferences) float64 {
	score := 0.0
	if len(prefs.PreferredContentTypes) > 0 {
		matched := 0
		for _, step := range path.Steps {
			if containsFold(prefs.PreferredContentTypes, step.StepType) {
				matched++
			}
		}
		if len(path.Steps) > 0 {
			score += 10 * float64(matched) / float64(len(path.Steps))
		}
	}
	switch strings.ToLower(prefs.Pace) {
	case "fast":
		score -= float64(path.EstimatedDuration) / 60
	case "slow", "thorough":
		score += float64(path.EstimatedDuration) / 120
	}
	return score
}
