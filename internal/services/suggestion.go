package services

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/pathpilot-backend/internal/logger"
	errs "github.com/yungbote/pathpilot-backend/internal/pkg/errors"
	"github.com/yungbote/pathpilot-backend/internal/repos"
	"github.com/yungbote/pathpilot-backend/internal/types"
)

type PathIssue struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	Severity    string `json:"severity"`
}

type PathSuggestion struct {
	PathID            uuid.UUID `json:"path_id"`
	Name              string    `json:"name"`
	Reason            string    `json:"reason"`
	EstimatedDuration int       `json:"estimated_duration_minutes"`
}

type SuggestionService interface {
	SuggestAlternativePaths(ctx context.Context, sessionID uuid.UUID, issues []PathIssue) ([]PathSuggestion, error)
}

type suggestionService struct {
	db          *gorm.DB
	log         *logger.Logger
	cfg         Config
	sessionRepo repos.SessionRepo
	pathRepo    repos.PathRepo
}

func NewSuggestionService(db *gorm.DB, baseLog *logger.Logger, cfg Config, sessionRepo repos.SessionRepo, pathRepo repos.PathRepo) SuggestionService {
	return &suggestionService{
		db:          db,
		log:         baseLog.With("service", "SuggestionService"),
		cfg:         cfg,
		sessionRepo: sessionRepo,
		pathRepo:    pathRepo,
	}
}

var severityWeight = map[string]int{
	"high":   3,
	"medium": 2,
	"low":    1,
}

func (s *suggestionService) SuggestAlternativePaths(ctx context.Context, sessionID uuid.UUID, issues []PathIssue) ([]PathSuggestion, error) {
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
	current := session.Path

	// Highest-severity issue drives the filter when several are reported.
	sort.SliceStable(issues, func(i, j int) bool {
		return severityWeight[issues[i].Severity] > severityWeight[issues[j].Severity]
	})

	seen := map[uuid.UUID]bool{current.ID: true}
	suggestions := []PathSuggestion{}
	for _, issue := range issues {
		filter, reason := filterForIssue(current, issue)
		var candidates []*types.Path
		err := withStorage(ctx, s.cfg.StorageTimeout, func(ctx context.Context) error {
			var e error
			candidates, e = s.pathRepo.FindMatching(ctx, nil, filter)
			return e
		})
		if err != nil {
			return nil, errs.Storage("failed to fetch alternative paths", err)
		}
		for _, c := range candidates {
			if seen[c.ID] {
				continue
			}
			seen[c.ID] = true
			suggestions = append(suggestions, PathSuggestion{
				PathID:            c.ID,
				Name:              c.Name,
				Reason:            reason,
				EstimatedDuration: c.EstimatedDuration,
			})
		}
	}

	// Closest duration first: a replacement should not upend the user's time
	// budget more than the issue demands.
	sort.SliceStable(suggestions, func(i, j int) bool {
		di := math.Abs(float64(suggestions[i].EstimatedDuration - current.EstimatedDuration))
		dj := math.Abs(float64(suggestions[j].EstimatedDuration - current.EstimatedDuration))
		return di < dj
	})
	if len(suggestions) > s.cfg.MaxSuggestions {
		suggestions = suggestions[:s.cfg.MaxSuggestions]
	}
	return suggestions, nil
}

func filterForIssue(current *types.Path, issue PathIssue) (repos.PathFilter, string) {
	base := repos.PathFilter{
		TargetRole:       current.TargetRole,
		SubscriptionTier: current.SubscriptionTier,
		ActiveOnly:       true,
		ExcludeIDs:       []uuid.UUID{current.ID},
	}
	switch issue.Type {
	case "difficulty":
		// A gentler path takes longer for the same role.
		base.MinDurationMinutes = current.EstimatedDuration
		return base, fmt.Sprintf("A more gradual path for %s users", current.TargetRole)
	case "too_easy":
		base.MaxDurationMinutes = current.EstimatedDuration
		return base, "A more condensed path matching your experience level"
	case "pacing":
		base.MaxDurationMinutes = current.EstimatedDuration
		return base, "A path with a different pacing profile"
	case "content_type":
		return base, "A path using different content formats"
	case "technical":
		return base, "An alternative path avoiding the reported technical issue"
	default:
		return base, "An alternative path for your role"
	}
}
