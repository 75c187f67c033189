package services

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/pathpilot-backend/internal/logger"
	errs "github.com/yungbote/pathpilot-backend/internal/pkg/errors"
	"github.com/yungbote/pathpilot-backend/internal/repos"
	"github.com/yungbote/pathpilot-backend/internal/types"
)

// ProgressDelta carries one increment of step activity. Counters accumulate;
// lists append; StepResult shallow-merges over the stored document.
type ProgressDelta struct {
	Status           string                 `json:"status,omitempty"`
	TimeSpentSeconds int                    `json:"time_spent_seconds,omitempty"`
	AttemptsDelta    int                    `json:"attempts_delta,omitempty"`
	Score            *float64               `json:"score,omitempty"`
	UserActions      []map[string]any       `json:"user_actions,omitempty"`
	StepResult       map[string]interface{} `json:"step_result,omitempty"`
	Errors           []string               `json:"errors,omitempty"`
}

// StepResultInput is the payload for an explicit completion.
type StepResultInput struct {
	TimeSpentSeconds int                    `json:"time_spent_seconds,omitempty"`
	Score            *float64               `json:"score,omitempty"`
	Achievements     []string               `json:"achievements,omitempty"`
	Data             map[string]interface{} `json:"data,omitempty"`
}

type OverallProgress struct {
	SessionID        uuid.UUID            `json:"session_id"`
	CurrentStepIndex int                  `json:"current_step_index"`
	CompletedSteps   []uuid.UUID          `json:"completed_steps"`
	SkippedSteps     []uuid.UUID          `json:"skipped_steps"`
	Milestones       []*types.Achievement `json:"milestones"`
	OverallProgress  int                  `json:"overall_progress"`
	TimeSpentSeconds int                  `json:"time_spent_seconds"`
	LastUpdated      time.Time            `json:"last_updated"`
}

const (
	BlockerTypeRepeatedAttempts = "repeated_attempts"
	BlockerTypeHighErrorRate    = "high_error_rate"
)

type Blocker struct {
	StepID              uuid.UUID `json:"step_id"`
	StepTitle           string    `json:"step_title"`
	BlockerType         string    `json:"blocker_type"`
	Description         string    `json:"description"`
	Frequency           int       `json:"frequency"`
	SuggestedResolution string    `json:"suggested_resolution"`
}

var blockerResolutions = map[string]string{
	BlockerTypeRepeatedAttempts: "Offer a guided walkthrough or reduce the step's difficulty",
	BlockerTypeHighErrorRate:    "Surface inline help and link prerequisite material for this step",
}

type ProgressService interface {
	TrackStepProgress(ctx context.Context, sessionID, stepID, userID uuid.UUID, delta ProgressDelta) (*types.StepProgress, error)
	RecordStepCompletion(ctx context.Context, sessionID, stepID, userID uuid.UUID, result StepResultInput) (*types.StepProgress, error)
	GetOverallProgress(ctx context.Context, sessionID uuid.UUID) (*OverallProgress, error)
	IdentifyBlockers(ctx context.Context, sessionID uuid.UUID) ([]Blocker, error)
	AwardMilestone(ctx context.Context, sessionID, milestoneID uuid.UUID) (*types.Achievement, error)
	GetUserAchievements(ctx context.Context, userID uuid.UUID) ([]*types.Achievement, error)
}

type progressService struct {
	db              *gorm.DB
	log             *logger.Logger
	cfg             Config
	sessionRepo     repos.SessionRepo
	progressRepo    repos.StepProgressRepo
	achievementRepo repos.AchievementRepo
	analytics       AnalyticsService
}

func NewProgressService(
	db *gorm.DB,
	baseLog *logger.Logger,
	cfg Config,
	sessionRepo repos.SessionRepo,
	progressRepo repos.StepProgressRepo,
	achievementRepo repos.AchievementRepo,
	analytics AnalyticsService,
) ProgressService {
	return &progressService{
		db:              db,
		log:             baseLog.With("service", "ProgressService"),
		cfg:             cfg,
		sessionRepo:     sessionRepo,
		progressRepo:    progressRepo,
		achievementRepo: achievementRepo,
		analytics:       analytics,
	}
}

func (s *progressService) TrackStepProgress(ctx context.Context, sessionID, stepID, userID uuid.UUID, delta ProgressDelta) (*types.StepProgress, error) {
	if sessionID == uuid.Nil || stepID == uuid.Nil || userID == uuid.Nil {
		return nil, errs.Invalid("session, step and user ids are required")
	}

	var session *types.OnboardingSession
	err := withStorage(ctx, s.cfg.StorageTimeout, func(ctx context.Context) error {
		var e error
		session, e = s.sessionRepo.GetByID(ctx, nil, sessionID)
		return e
	})
	if err != nil {
		return nil, errs.Storage("Failed to track step progress", err)
	}
	if session == nil {
		return nil, errs.NotFound("Session or path not found")
	}

	var existing *types.StepProgress
	err = withStorage(ctx, s.cfg.StorageTimeout, func(ctx context.Context) error {
		var e error
		existing, e = s.progressRepo.GetBySessionAndStep(ctx, nil, sessionID, stepID)
		return e
	})
	if err != nil {
		return nil, errs.Storage("Failed to track step progress", err)
	}

	row, err := mergeProgress(existing, sessionID, stepID, userID, delta)
	if err != nil {
		return nil, err
	}

	err = withStorage(ctx, s.cfg.StorageTimeout, func(ctx context.Context) error {
		return s.progressRepo.Upsert(ctx, nil, row)
	})
	if err != nil {
		return nil, errs.Storage("Failed to track step progress", err)
	}

	s.touchSession(ctx, sessionID, delta.TimeSpentSeconds)
	return row, nil
}

// mergeProgress folds a delta into the stored record. Terminal statuses never
// regress to not_started/in_progress; the source system allowed that and
// corrupted progress reports, so it is rejected outright here.
func mergeProgress(existing *types.StepProgress, sessionID, stepID, userID uuid.UUID, delta ProgressDelta) (*types.StepProgress, error) {
	now := time.Now().UTC()

	row := existing
	if row == nil {
		status := delta.Status
		if status == "" {
			status = types.StepStatusInProgress
		}
		row = &types.StepProgress{
			ID:        uuid.New(),
			SessionID: sessionID,
			StepID:    stepID,
			UserID:    userID,
			Status:    status,
			StartedAt: &now,
			CreatedAt: now,
		}
	} else if delta.Status != "" && delta.Status != row.Status {
		if types.IsTerminalStepStatus(row.Status) && !types.IsTerminalStepStatus(delta.Status) {
			return nil, errs.Invalid(fmt.Sprintf("step progress is already %s and cannot move back to %s", row.Status, delta.Status))
		}
		row.Status = delta.Status
	}

	if row.Status == types.StepStatusCompleted && row.CompletedAt == nil {
		row.CompletedAt = &now
	}
	row.TimeSpentSeconds += delta.TimeSpentSeconds
	row.Attempts += delta.AttemptsDelta
	if delta.Score != nil {
		row.Score = delta.Score
	}
	if len(delta.UserActions) > 0 {
		row.UserActions = appendJSONList(row.UserActions, toAnySlice(delta.UserActions))
	}
	if len(delta.Errors) > 0 {
		row.Errors = appendJSONList(row.Errors, toAnyStrings(delta.Errors))
	}
	if len(delta.StepResult) > 0 {
		row.StepResult = mergeJSONObject(row.StepResult, delta.StepResult)
	}
	row.UpdatedAt = now
	return row, nil
}

func (s *progressService) RecordStepCompletion(ctx context.Context, sessionID, stepID, userID uuid.UUID, result StepResultInput) (*types.StepProgress, error) {
	var session *types.OnboardingSession
	err := withStorage(ctx, s.cfg.StorageTimeout, func(ctx context.Context) error {
		var e error
		session, e = s.sessionRepo.GetWithPath(ctx, nil, sessionID)
		return e
	})
	if err != nil {
		return nil, errs.Storage("failed to record step completion", err)
	}
	if session == nil || session.Path == nil {
		return nil, errs.NotFound("Session or path not found")
	}

	delta := ProgressDelta{
		Status:           types.StepStatusCompleted,
		TimeSpentSeconds: result.TimeSpentSeconds,
		AttemptsDelta:    1,
		Score:            result.Score,
		StepResult:       result.Data,
	}

	var existing *types.StepProgress
	err = withStorage(ctx, s.cfg.StorageTimeout, func(ctx context.Context) error {
		var e error
		existing, e = s.progressRepo.GetBySessionAndStep(ctx, nil, sessionID, stepID)
		return e
	})
	if err != nil {
		return nil, errs.Storage("failed to record step completion", err)
	}

	row, err := mergeProgress(existing, sessionID, stepID, userID, delta)
	if err != nil {
		return nil, err
	}
	if len(result.Achievements) > 0 {
		row.Achievements = appendJSONList(row.Achievements, toAnyStrings(result.Achievements))
	}

	err = withStorage(ctx, s.cfg.StorageTimeout, func(ctx context.Context) error {
		return s.progressRepo.Upsert(ctx, nil, row)
	})
	if err != nil {
		return nil, errs.Storage("failed to record step completion", err)
	}

	// Everything past this point is a side effect of a completed write and
	// must not fail the call.
	s.checkMilestones(ctx, session)
	s.advanceSession(ctx, session)
	s.analytics.EmitEvent(ctx, userID, &sessionID, &session.PathID, &stepID, EventStepCompleted, map[string]interface{}{
		"time_spent_seconds": result.TimeSpentSeconds,
		"score":              result.Score,
	})
	return row, nil
}

// checkMilestones awards every path milestone whose criteria just became
// satisfied. The unique (session_id, milestone_id) index makes re-evaluation
// idempotent.
func (s *progressService) checkMilestones(ctx context.Context, session *types.OnboardingSession) {
	records, err := s.progressRepo.ListBySession(ctx, nil, session.ID)
	if err != nil {
		s.log.Warn("milestone check skipped, progress load failed", "session_id", session.ID, "error", err)
		return
	}

	overall, completedIDs := summarizeProgress(session.Path, records)
	totalSeconds := 0
	for _, r := range records {
		totalSeconds += r.TimeSpentSeconds
	}

	now := time.Now().UTC()
	var awards []*types.Achievement
	for _, m := range session.Path.Milestones {
		crit, err := m.DecodeCriteria()
		if err != nil {
			s.log.Warn("milestone has malformed criteria", "milestone_id", m.ID, "error", err)
			continue
		}
		if !criteriaMet(crit, overall, completedIDs, session.StartedAt, totalSeconds, now) {
			continue
		}
		awards = append(awards, &types.Achievement{
			ID:          uuid.New(),
			SessionID:   session.ID,
			MilestoneID: m.ID,
			UserID:      session.UserID,
			Name:        m.Name,
			AwardedAt:   now,
			CreatedAt:   now,
			UpdatedAt:   now,
		})
	}
	if len(awards) == 0 {
		return
	}

	n, err := s.achievementRepo.CreateIgnoreDuplicates(ctx, nil, awards)
	if err != nil {
		s.log.Warn("milestone award write failed", "session_id", session.ID, "error", err)
		return
	}
	if n > 0 {
		s.analytics.EmitEvent(ctx, session.UserID, &session.ID, &session.PathID, nil, EventMilestoneAwarded, map[string]interface{}{
			"awarded": n,
		})
	}
}

func criteriaMet(crit types.MilestoneCriteria, overall int, completed map[uuid.UUID]bool, startedAt time.Time, totalSeconds int, now time.Time) bool {
	switch crit.Type {
	case types.MilestoneCriteriaProgressPercentage:
		return overall >= crit.ProgressPercentage
	case types.MilestoneCriteriaRequiredSteps:
		if len(crit.RequiredStepIDs) == 0 {
			return false
		}
		for _, id := range crit.RequiredStepIDs {
			if !completed[id] {
				return false
			}
		}
		return true
	case types.MilestoneCriteriaMaxTimeMinutes:
		// Time-bound milestones only make sense once the path is done.
		if overall < 100 {
			return false
		}
		return totalSeconds <= crit.MaxTimeMinutes*60
	default:
		return false
	}
}

func (s *progressService) GetOverallProgress(ctx context.Context, sessionID uuid.UUID) (*OverallProgress, error) {
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

	milestones, err := s.achievementRepo.ListBySession(ctx, nil, sessionID)
	if err != nil {
		// Achievements decorate the report; do not fail it over them.
		s.log.Warn("achievement load failed for progress report", "session_id", sessionID, "error", err)
		milestones = nil
	}

	overall, _ := summarizeProgress(session.Path, records)

	out := &OverallProgress{
		SessionID:        sessionID,
		CurrentStepIndex: session.CurrentStepIndex,
		CompletedSteps:   []uuid.UUID{},
		SkippedSteps:     []uuid.UUID{},
		Milestones:       milestones,
		OverallProgress:  overall,
		LastUpdated:      session.UpdatedAt,
	}
	for _, r := range records {
		switch r.Status {
		case types.StepStatusCompleted:
			out.CompletedSteps = append(out.CompletedSteps, r.StepID)
		case types.StepStatusSkipped:
			out.SkippedSteps = append(out.SkippedSteps, r.StepID)
		}
		out.TimeSpentSeconds += r.TimeSpentSeconds
		if r.UpdatedAt.After(out.LastUpdated) {
			out.LastUpdated = r.UpdatedAt
		}
	}
	return out, nil
}

// summarizeProgress computes the completion percentage over required steps
// and the completed-id set. A path with zero required steps is 0%, not a
// division error.
func summarizeProgress(path *types.Path, records []*types.StepProgress) (int, map[uuid.UUID]bool) {
	completed := make(map[uuid.UUID]bool, len(records))
	for _, r := range records {
		if r != nil && r.Status == types.StepStatusCompleted {
			completed[r.StepID] = true
		}
	}

	required := path.RequiredSteps()
	if len(required) == 0 {
		return 0, completed
	}
	done := 0
	for _, step := range required {
		if completed[step.ID] {
			done++
		}
	}
	return int(math.Round(100 * float64(done) / float64(len(required)))), completed
}

func (s *progressService) IdentifyBlockers(ctx context.Context, sessionID uuid.UUID) ([]Blocker, error) {
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

	titles := make(map[uuid.UUID]string, len(session.Path.Steps))
	for _, step := range session.Path.Steps {
		titles[step.ID] = step.Title
	}

	blockers := []Blocker{}
	for _, r := range records {
		if r.Status == types.StepStatusCompleted {
			continue
		}
		if r.Attempts > s.cfg.BlockerAttemptsThreshold {
			blockers = append(blockers, Blocker{
				StepID:              r.StepID,
				StepTitle:           titles[r.StepID],
				BlockerType:         BlockerTypeRepeatedAttempts,
				Description:         fmt.Sprintf("Step attempted %d times without completion", r.Attempts),
				Frequency:           r.Attempts,
				SuggestedResolution: blockerResolutions[BlockerTypeRepeatedAttempts],
			})
			continue
		}
		if rate := stepErrorRate(r); rate > s.cfg.BlockerErrorRateThreshold {
			blockers = append(blockers, Blocker{
				StepID:              r.StepID,
				StepTitle:           titles[r.StepID],
				BlockerType:         BlockerTypeHighErrorRate,
				Description:         fmt.Sprintf("Error rate %.0f%% exceeds the acceptable range", rate*100),
				Frequency:           r.Attempts,
				SuggestedResolution: blockerResolutions[BlockerTypeHighErrorRate],
			})
		}
	}
	return blockers, nil
}

func stepErrorRate(r *types.StepProgress) float64 {
	if r == nil || len(r.StepResult) == 0 {
		return 0
	}
	var doc map[string]interface{}
	if err := json.Unmarshal(r.StepResult, &doc); err != nil {
		return 0
	}
	if v, ok := doc["error_rate"].(float64); ok {
		return v
	}
	return 0
}

func (s *progressService) AwardMilestone(ctx context.Context, sessionID, milestoneID uuid.UUID) (*types.Achievement, error) {
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

	var milestone *types.PathMilestone
	for _, m := range session.Path.Milestones {
		if m.ID == milestoneID {
			milestone = m
			break
		}
	}
	if milestone == nil {
		return nil, errs.NotFound("milestone not found on this path")
	}

	now := time.Now().UTC()
	award := &types.Achievement{
		ID:          uuid.New(),
		SessionID:   sessionID,
		MilestoneID: milestoneID,
		UserID:      session.UserID,
		Name:        milestone.Name,
		AwardedAt:   now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	err = withStorage(ctx, s.cfg.StorageTimeout, func(ctx context.Context) error {
		_, e := s.achievementRepo.CreateIgnoreDuplicates(ctx, nil, []*types.Achievement{award})
		return e
	})
	if err != nil {
		return nil, errs.Storage("failed to award milestone", err)
	}

	s.analytics.EmitEvent(ctx, session.UserID, &sessionID, &session.PathID, nil, EventMilestoneAwarded, map[string]interface{}{
		"milestone_id": milestoneID,
		"name":         milestone.Name,
	})
	return award, nil
}

func (s *progressService) GetUserAchievements(ctx context.Context, userID uuid.UUID) ([]*types.Achievement, error) {
	var results []*types.Achievement
	err := withStorage(ctx, s.cfg.StorageTimeout, func(ctx context.Context) error {
		var e error
		results, e = s.achievementRepo.ListByUser(ctx, nil, userID)
		return e
	})
	if err != nil {
		return nil, errs.Storage("failed to load achievements", err)
	}
	return results, nil
}

// touchSession bumps activity fields on the session row. Best-effort: the
// progress write already landed.
func (s *progressService) touchSession(ctx context.Context, sessionID uuid.UUID, addedSeconds int) {
	now := time.Now().UTC()
	fields := map[string]interface{}{
		"last_active_at": now,
		"updated_at":     now,
	}
	if addedSeconds > 0 {
		fields["time_spent_seconds"] = gorm.Expr("time_spent_seconds + ?", addedSeconds)
	}
	if err := s.sessionRepo.UpdateFields(ctx, nil, sessionID, fields); err != nil {
		s.log.Warn("session activity update failed", "session_id", sessionID, "error", err)
	}
}

// advanceSession recomputes the aggregate columns cached on the session row
// after a completion. Best-effort.
func (s *progressService) advanceSession(ctx context.Context, session *types.OnboardingSession) {
	records, err := s.progressRepo.ListBySession(ctx, nil, session.ID)
	if err != nil {
		s.log.Warn("session advance skipped, progress load failed", "session_id", session.ID, "error", err)
		return
	}
	overall, _ := summarizeProgress(session.Path, records)

	nextIndex := len(session.Path.Steps)
	if next := ResolveNextStep(session.Path, records); next != nil {
		for i, step := range session.Path.Steps {
			if step.ID == next.ID {
				nextIndex = i
				break
			}
		}
	}

	now := time.Now().UTC()
	if err := s.sessionRepo.UpdateFields(ctx, nil, session.ID, map[string]interface{}{
		"progress_percentage": overall,
		"current_step_index":  nextIndex,
		"last_active_at":      now,
		"updated_at":          now,
	}); err != nil {
		s.log.Warn("session aggregate update failed", "session_id", session.ID, "error", err)
	}
}

func appendJSONList(existing datatypes.JSON, add []interface{}) datatypes.JSON {
	var list []interface{}
	if len(existing) > 0 {
		_ = json.Unmarshal(existing, &list)
	}
	list = append(list, add...)
	b, _ := json.Marshal(list)
	return datatypes.JSON(b)
}

func mergeJSONObject(existing datatypes.JSON, add map[string]interface{}) datatypes.JSON {
	doc := map[string]interface{}{}
	if len(existing) > 0 {
		_ = json.Unmarshal(existing, &doc)
	}
	for k, v := range add {
		doc[k] = v
	}
	b, _ := json.Marshal(doc)
	return datatypes.JSON(b)
}

func toAnySlice(in []map[string]any) []interface{} {
	out := make([]interface{}, 0, len(in))
	for _, v := range in {
		out = append(out, v)
	}
	return out
}

func toAnyStrings(in []string) []interface{} {
	out := make([]interface{}, 0, len(in))
	for _, v := range in {
		out = append(out, v)
	}
	return out
}
