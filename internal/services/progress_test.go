package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	errs "github.com/yungbote/pathpilot-backend/internal/pkg/errors"
	"github.com/yungbote/pathpilot-backend/internal/types"
)

func newProgressService(t *testing.T, sessions *fakeSessionRepo, progress *fakeStepProgressRepo, achievements *fakeAchievementRepo, analytics *fakeAnalytics) ProgressService {
	t.Helper()
	if achievements == nil {
		achievements = &fakeAchievementRepo{}
	}
	if analytics == nil {
		analytics = &fakeAnalytics{}
	}
	return NewProgressService(nil, newTestLogger(t), DefaultConfig(), sessions, progress, achievements, analytics)
}

func TestTrackStepProgressCreatesRecord(t *testing.T) {
	step := &types.PathStep{ID: uuid.New(), Title: "Create account", StepType: "form", IsRequired: true}
	path := buildPath(step)
	session := buildSession(path)

	progress := newFakeStepProgressRepo()
	svc := newProgressService(t, newFakeSessionRepo(session), progress, nil, nil)

	row, err := svc.TrackStepProgress(context.Background(), session.ID, step.ID, session.UserID, ProgressDelta{
		TimeSpentSeconds: 30,
		AttemptsDelta:    1,
	})
	if err != nil {
		t.Fatalf("TrackStepProgress: %v", err)
	}
	if row.Status != types.StepStatusInProgress {
		t.Fatalf("expected in_progress default, got %s", row.Status)
	}
	if row.TimeSpentSeconds != 30 || row.Attempts != 1 {
		t.Fatalf("counters not applied: %+v", row)
	}
	if row.StartedAt == nil {
		t.Fatalf("started_at not stamped")
	}
}

func TestTrackStepProgressAccumulatesOntoOneRow(t *testing.T) {
	step := &types.PathStep{ID: uuid.New(), Title: "Install CLI", StepType: "walkthrough", IsRequired: true}
	path := buildPath(step)
	session := buildSession(path)

	progress := newFakeStepProgressRepo()
	svc := newProgressService(t, newFakeSessionRepo(session), progress, nil, nil)

	for i := 0; i < 2; i++ {
		if _, err := svc.TrackStepProgress(context.Background(), session.ID, step.ID, session.UserID, ProgressDelta{TimeSpentSeconds: 10, AttemptsDelta: 1}); err != nil {
			t.Fatalf("TrackStepProgress #%d: %v", i, err)
		}
	}

	if len(progress.rows) != 1 {
		t.Fatalf("expected one row per (session, step), got %d", len(progress.rows))
	}
	row := progress.rows[[2]uuid.UUID{session.ID, step.ID}]
	if row.TimeSpentSeconds != 20 || row.Attempts != 2 {
		t.Fatalf("deltas did not accumulate: %+v", row)
	}
}

func TestTrackStepProgressRejectsTerminalRegression(t *testing.T) {
	step := &types.PathStep{ID: uuid.New(), Title: "Install CLI", StepType: "walkthrough", IsRequired: true}
	path := buildPath(step)
	session := buildSession(path)

	progress := newFakeStepProgressRepo(&types.StepProgress{
		ID:        uuid.New(),
		SessionID: session.ID,
		StepID:    step.ID,
		UserID:    session.UserID,
		Status:    types.StepStatusCompleted,
	})
	svc := newProgressService(t, newFakeSessionRepo(session), progress, nil, nil)

	_, err := svc.TrackStepProgress(context.Background(), session.ID, step.ID, session.UserID, ProgressDelta{Status: types.StepStatusInProgress})
	if !errors.Is(err, errs.ErrInvalidArgument) {
		t.Fatalf("expected invalid-argument on terminal regression, got %v", err)
	}
	if progress.upserts != 0 {
		t.Fatalf("regression must not reach storage, got %d upserts", progress.upserts)
	}
}

func TestTrackStepProgressUnknownSession(t *testing.T) {
	svc := newProgressService(t, newFakeSessionRepo(), newFakeStepProgressRepo(), nil, nil)

	_, err := svc.TrackStepProgress(context.Background(), uuid.New(), uuid.New(), uuid.New(), ProgressDelta{})
	if !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("expected not-found, got %v", err)
	}
}

func TestTrackStepProgressWrapsStorageFailure(t *testing.T) {
	step := &types.PathStep{ID: uuid.New(), Title: "Install CLI", StepType: "walkthrough", IsRequired: true}
	path := buildPath(step)
	session := buildSession(path)

	progress := newFakeStepProgressRepo()
	progress.failAll = errors.New("broken pipe")
	svc := newProgressService(t, newFakeSessionRepo(session), progress, nil, nil)

	_, err := svc.TrackStepProgress(context.Background(), session.ID, step.ID, session.UserID, ProgressDelta{})
	if !errors.Is(err, errs.ErrStorage) {
		t.Fatalf("expected storage error, got %v", err)
	}
}

func TestRecordStepCompletionAwardsMilestoneAndAdvances(t *testing.T) {
	step := &types.PathStep{ID: uuid.New(), Title: "Create account", StepType: "form", IsRequired: true}
	path := buildPath(step)
	path.Milestones = []*types.PathMilestone{{
		ID:       uuid.New(),
		PathID:   path.ID,
		Name:     "All done",
		Criteria: types.EncodeCriteria(types.MilestoneCriteria{Type: types.MilestoneCriteriaProgressPercentage, ProgressPercentage: 100}),
	}}
	session := buildSession(path)

	sessions := newFakeSessionRepo(session)
	progress := newFakeStepProgressRepo()
	achievements := &fakeAchievementRepo{}
	analytics := &fakeAnalytics{}
	svc := newProgressService(t, sessions, progress, achievements, analytics)

	row, err := svc.RecordStepCompletion(context.Background(), session.ID, step.ID, session.UserID, StepResultInput{TimeSpentSeconds: 45})
	if err != nil {
		t.Fatalf("RecordStepCompletion: %v", err)
	}
	if row.Status != types.StepStatusCompleted || row.CompletedAt == nil {
		t.Fatalf("completion not recorded: %+v", row)
	}
	if row.Attempts != 1 {
		t.Fatalf("completion counts as an attempt, got %d", row.Attempts)
	}
	if len(achievements.rows) != 1 {
		t.Fatalf("expected milestone award, got %d", len(achievements.rows))
	}
	if session.ProgressPercentage != 100 {
		t.Fatalf("session aggregate not advanced, got %d%%", session.ProgressPercentage)
	}

	found := false
	for _, ev := range analytics.eventTypes() {
		if ev == EventStepCompleted {
			found = true
		}
	}
	if !found {
		t.Fatalf("step completion event not emitted: %v", analytics.eventTypes())
	}
}

func TestRecordStepCompletionIsIdempotentForMilestones(t *testing.T) {
	step := &types.PathStep{ID: uuid.New(), Title: "Create account", StepType: "form", IsRequired: true}
	path := buildPath(step)
	path.Milestones = []*types.PathMilestone{{
		ID:       uuid.New(),
		PathID:   path.ID,
		Name:     "All done",
		Criteria: types.EncodeCriteria(types.MilestoneCriteria{Type: types.MilestoneCriteriaProgressPercentage, ProgressPercentage: 100}),
	}}
	session := buildSession(path)

	achievements := &fakeAchievementRepo{}
	svc := newProgressService(t, newFakeSessionRepo(session), newFakeStepProgressRepo(), achievements, nil)

	for i := 0; i < 2; i++ {
		if _, err := svc.RecordStepCompletion(context.Background(), session.ID, step.ID, session.UserID, StepResultInput{}); err != nil {
			t.Fatalf("RecordStepCompletion #%d: %v", i, err)
		}
	}
	if len(achievements.rows) != 1 {
		t.Fatalf("re-completion must not double-award, got %d", len(achievements.rows))
	}
}

func TestGetOverallProgressPercentage(t *testing.T) {
	stepA := &types.PathStep{ID: uuid.New(), Title: "A", StepType: "form", IsRequired: true}
	stepB := &types.PathStep{ID: uuid.New(), Title: "B", StepType: "video", IsRequired: true}
	stepC := &types.PathStep{ID: uuid.New(), Title: "C", StepType: "link", IsRequired: false}
	path := buildPath(stepA, stepB, stepC)
	session := buildSession(path)

	rec := completedRecord(session, stepA.ID)
	rec.TimeSpentSeconds = 120
	skipped := &types.StepProgress{
		ID:        uuid.New(),
		SessionID: session.ID,
		StepID:    stepC.ID,
		UserID:    session.UserID,
		Status:    types.StepStatusSkipped,
	}
	progress := newFakeStepProgressRepo(rec, skipped)
	svc := newProgressService(t, newFakeSessionRepo(session), progress, nil, nil)

	out, err := svc.GetOverallProgress(context.Background(), session.ID)
	if err != nil {
		t.Fatalf("GetOverallProgress: %v", err)
	}
	if out.OverallProgress != 50 {
		t.Fatalf("1 of 2 required steps should be 50%%, got %d", out.OverallProgress)
	}
	if len(out.CompletedSteps) != 1 || len(out.SkippedSteps) != 1 {
		t.Fatalf("step buckets wrong: %+v", out)
	}
	if out.TimeSpentSeconds != 120 {
		t.Fatalf("time aggregation wrong: %d", out.TimeSpentSeconds)
	}
}

func TestGetOverallProgressNoRequiredSteps(t *testing.T) {
	step := &types.PathStep{ID: uuid.New(), Title: "Optional tour", StepType: "video", IsRequired: false}
	path := buildPath(step)
	session := buildSession(path)

	svc := newProgressService(t, newFakeSessionRepo(session), newFakeStepProgressRepo(), nil, nil)

	out, err := svc.GetOverallProgress(context.Background(), session.ID)
	if err != nil {
		t.Fatalf("GetOverallProgress: %v", err)
	}
	if out.OverallProgress != 0 {
		t.Fatalf("no required steps must report 0%%, got %d", out.OverallProgress)
	}
}

func TestIdentifyBlockers(t *testing.T) {
	stepA := &types.PathStep{ID: uuid.New(), Title: "Setup env", StepType: "walkthrough", IsRequired: true}
	stepB := &types.PathStep{ID: uuid.New(), Title: "First deploy", StepType: "interactive", IsRequired: true}
	stepC := &types.PathStep{ID: uuid.New(), Title: "Read docs", StepType: "link", IsRequired: true}
	path := buildPath(stepA, stepB, stepC)
	session := buildSession(path)

	errDoc, _ := json.Marshal(map[string]interface{}{"error_rate": 0.6})
	progress := newFakeStepProgressRepo(
		&types.StepProgress{ID: uuid.New(), SessionID: session.ID, StepID: stepA.ID, UserID: session.UserID, Status: types.StepStatusInProgress, Attempts: 5},
		&types.StepProgress{ID: uuid.New(), SessionID: session.ID, StepID: stepB.ID, UserID: session.UserID, Status: types.StepStatusFailed, Attempts: 1, StepResult: datatypes.JSON(errDoc)},
		&types.StepProgress{ID: uuid.New(), SessionID: session.ID, StepID: stepC.ID, UserID: session.UserID, Status: types.StepStatusCompleted, Attempts: 9},
	)
	svc := newProgressService(t, newFakeSessionRepo(session), progress, nil, nil)

	blockers, err := svc.IdentifyBlockers(context.Background(), session.ID)
	if err != nil {
		t.Fatalf("IdentifyBlockers: %v", err)
	}
	if len(blockers) != 2 {
		t.Fatalf("expected 2 blockers, got %d: %+v", len(blockers), blockers)
	}
	byType := map[string]Blocker{}
	for _, b := range blockers {
		byType[b.BlockerType] = b
	}
	if b, ok := byType[BlockerTypeRepeatedAttempts]; !ok || b.StepID != stepA.ID {
		t.Fatalf("repeated attempts blocker missing: %+v", blockers)
	}
	if b, ok := byType[BlockerTypeHighErrorRate]; !ok || b.StepID != stepB.ID {
		t.Fatalf("high error rate blocker missing: %+v", blockers)
	}
}

func TestAwardMilestoneUnknownMilestone(t *testing.T) {
	path := buildPath(&types.PathStep{ID: uuid.New(), Title: "A", StepType: "form", IsRequired: true})
	session := buildSession(path)

	svc := newProgressService(t, newFakeSessionRepo(session), newFakeStepProgressRepo(), nil, nil)

	_, err := svc.AwardMilestone(context.Background(), session.ID, uuid.New())
	if !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("expected not-found for foreign milestone, got %v", err)
	}
}

func TestCriteriaMetMaxTimeRequiresFullCompletion(t *testing.T) {
	crit := types.MilestoneCriteria{Type: types.MilestoneCriteriaMaxTimeMinutes, MaxTimeMinutes: 10}
	now := time.Now().UTC()

	if criteriaMet(crit, 80, nil, now, 60, now) {
		t.Fatalf("time milestone must not fire before completion")
	}
	if !criteriaMet(crit, 100, nil, now, 9*60, now) {
		t.Fatalf("time milestone should fire at completion under budget")
	}
	if criteriaMet(crit, 100, nil, now, 11*60, now) {
		t.Fatalf("time milestone must not fire over budget")
	}
}
