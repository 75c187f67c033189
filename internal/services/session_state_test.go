package services

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	errs "github.com/yungbote/pathpilot-backend/internal/pkg/errors"
	"github.com/yungbote/pathpilot-backend/internal/types"
)

func newSessionStateFixture(t *testing.T, path *types.Path, sessions *fakeSessionRepo, progress *fakeStepProgressRepo) SessionStateService {
	t.Helper()
	log := newTestLogger(t)
	analytics := &fakeAnalytics{}
	paths := &fakePathRepo{}
	if path != nil {
		paths.paths = append(paths.paths, path)
	}
	validation := NewValidationService(nil, log, DefaultConfig(), sessions, progress, analytics)
	return NewSessionStateService(nil, log, DefaultConfig(), sessions, paths, validation, analytics)
}

func TestStartSession(t *testing.T) {
	step := &types.PathStep{ID: uuid.New(), Title: "A", StepType: "form", IsRequired: true}
	path := buildPath(step)
	sessions := newFakeSessionRepo()
	svc := newSessionStateFixture(t, path, sessions, newFakeStepProgressRepo())

	userID := uuid.New()
	session, err := svc.StartSession(context.Background(), userID, nil, path.ID, "", nil)
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	if session.Status != types.SessionStatusActive {
		t.Fatalf("new sessions start active, got %s", session.Status)
	}
	if session.SessionType != "onboarding" {
		t.Fatalf("default session type wrong: %s", session.SessionType)
	}
	if _, ok := sessions.sessions[session.ID]; !ok {
		t.Fatalf("session not persisted")
	}
}

func TestStartSessionInactivePath(t *testing.T) {
	path := buildPath(&types.PathStep{ID: uuid.New(), Title: "A", StepType: "form", IsRequired: true})
	path.IsActive = false
	svc := newSessionStateFixture(t, path, newFakeSessionRepo(), newFakeStepProgressRepo())

	_, err := svc.StartSession(context.Background(), uuid.New(), nil, path.ID, "", nil)
	if !errors.Is(err, errs.ErrInvalidArgument) {
		t.Fatalf("expected invalid-argument on inactive path, got %v", err)
	}
}

func TestPauseResumeRoundTrip(t *testing.T) {
	path := buildPath(&types.PathStep{ID: uuid.New(), Title: "A", StepType: "form", IsRequired: true})
	session := buildSession(path)
	sessions := newFakeSessionRepo(session)
	svc := newSessionStateFixture(t, path, sessions, newFakeStepProgressRepo())

	paused, err := svc.PauseSession(context.Background(), session.ID)
	if err != nil {
		t.Fatalf("PauseSession: %v", err)
	}
	if paused.Status != types.SessionStatusPaused || paused.PausedAt == nil {
		t.Fatalf("pause not applied: %+v", paused)
	}

	resumed, err := svc.ResumeSession(context.Background(), session.ID)
	if err != nil {
		t.Fatalf("ResumeSession: %v", err)
	}
	if resumed.Status != types.SessionStatusActive || resumed.PausedAt != nil {
		t.Fatalf("resume not applied: %+v", resumed)
	}
}

func TestCompleteSessionGatedOnCompletion(t *testing.T) {
	step := &types.PathStep{ID: uuid.New(), Title: "A", StepType: "form", IsRequired: true}
	path := buildPath(step)
	session := buildSession(path)
	sessions := newFakeSessionRepo(session)
	progress := newFakeStepProgressRepo()
	svc := newSessionStateFixture(t, path, sessions, progress)

	_, err := svc.CompleteSession(context.Background(), session.ID)
	if !errors.Is(err, errs.ErrInvalidArgument) {
		t.Fatalf("incomplete path must block completion, got %v", err)
	}

	progress.rows[[2]uuid.UUID{session.ID, step.ID}] = completedRecord(session, step.ID)
	completed, err := svc.CompleteSession(context.Background(), session.ID)
	if err != nil {
		t.Fatalf("CompleteSession: %v", err)
	}
	if completed.Status != types.SessionStatusCompleted || completed.CompletedAt == nil {
		t.Fatalf("completion not applied: %+v", completed)
	}
	if completed.ProgressPercentage != 100 {
		t.Fatalf("completed session must be 100%%, got %d", completed.ProgressPercentage)
	}
}

func TestInvalidTransitionsRejected(t *testing.T) {
	path := buildPath(&types.PathStep{ID: uuid.New(), Title: "A", StepType: "form", IsRequired: true})
	session := buildSession(path)
	session.Status = types.SessionStatusAbandoned
	sessions := newFakeSessionRepo(session)
	svc := newSessionStateFixture(t, path, sessions, newFakeStepProgressRepo())

	if _, err := svc.ResumeSession(context.Background(), session.ID); !errors.Is(err, errs.ErrInvalidArgument) {
		t.Fatalf("abandoned sessions must not resume, got %v", err)
	}
	if _, err := svc.PauseSession(context.Background(), session.ID); !errors.Is(err, errs.ErrInvalidArgument) {
		t.Fatalf("abandoned sessions must not pause, got %v", err)
	}
}

func TestAbandonFromPaused(t *testing.T) {
	path := buildPath(&types.PathStep{ID: uuid.New(), Title: "A", StepType: "form", IsRequired: true})
	session := buildSession(path)
	session.Status = types.SessionStatusPaused
	sessions := newFakeSessionRepo(session)
	svc := newSessionStateFixture(t, path, sessions, newFakeStepProgressRepo())

	abandoned, err := svc.AbandonSession(context.Background(), session.ID)
	if err != nil {
		t.Fatalf("AbandonSession: %v", err)
	}
	if abandoned.Status != types.SessionStatusAbandoned {
		t.Fatalf("abandon not applied: %+v", abandoned)
	}
}

func TestGetSessionUnknown(t *testing.T) {
	svc := newSessionStateFixture(t, nil, newFakeSessionRepo(), newFakeStepProgressRepo())

	_, err := svc.GetSession(context.Background(), uuid.New())
	if !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("expected not-found, got %v", err)
	}
}
