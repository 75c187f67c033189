package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"

	errs "github.com/yungbote/pathpilot-backend/internal/pkg/errors"
	"github.com/yungbote/pathpilot-backend/internal/types"
)

func newAdaptationFixture(t *testing.T) (AdaptationService, *types.OnboardingSession, *fakeAnalytics) {
	t.Helper()
	stepA := &types.PathStep{ID: uuid.New(), Title: "Watch intro", StepType: "video", IsRequired: true, EstimatedTime: 10}
	stepB := &types.PathStep{ID: uuid.New(), Title: "Hands-on lab", StepType: "interactive", IsRequired: true, EstimatedTime: 10}
	path := buildPath(stepA, stepB)
	session := buildSession(path)

	analytics := &fakeAnalytics{}
	svc := NewAdaptationService(nil, newTestLogger(t), DefaultConfig(), newFakeSessionRepo(session), analytics)
	return svc, session, analytics
}

func TestAdaptPathStrugglingAreasForceDifficulty(t *testing.T) {
	svc, session, _ := newAdaptationFixture(t)

	decision, err := svc.AdaptPath(context.Background(), session.ID, UserBehavior{
		StrugglingAreas: []string{"git", "docker"},
	})
	if err != nil {
		t.Fatalf("AdaptPath: %v", err)
	}
	if decision.AdjustmentType != AdjustmentDifficulty {
		t.Fatalf("expected difficulty adjustment, got %s", decision.AdjustmentType)
	}
	if !strings.Contains(decision.Reason, "git") {
		t.Fatalf("reason should name the struggling areas, got %q", decision.Reason)
	}
	if len(decision.RecommendedActions) == 0 {
		t.Fatalf("difficulty decisions carry recommended actions")
	}
}

func TestAdaptPathHighErrorRate(t *testing.T) {
	svc, session, _ := newAdaptationFixture(t)

	decision, err := svc.AdaptPath(context.Background(), session.ID, UserBehavior{
		StepInteractions: []StepInteraction{
			{ErrorRate: 0.5},
			{ErrorRate: 0.3},
		},
	})
	if err != nil {
		t.Fatalf("AdaptPath: %v", err)
	}
	if decision.AdjustmentType != AdjustmentDifficulty {
		t.Fatalf("mean error rate 0.4 should trigger difficulty, got %s", decision.AdjustmentType)
	}
}

func TestAdaptPathPacingFastAndSlow(t *testing.T) {
	svc, session, _ := newAdaptationFixture(t)

	// Estimated mean is 10 minutes; 120 observed seconds is a 0.2 ratio.
	fast, err := svc.AdaptPath(context.Background(), session.ID, UserBehavior{
		StepInteractions: []StepInteraction{{TimeSpentSeconds: 120}},
	})
	if err != nil {
		t.Fatalf("AdaptPath fast: %v", err)
	}
	if fast.AdjustmentType != AdjustmentPacing || !strings.Contains(fast.Reason, "fast") {
		t.Fatalf("expected fast pacing decision, got %+v", fast)
	}

	slow, err := svc.AdaptPath(context.Background(), session.ID, UserBehavior{
		StepInteractions: []StepInteraction{{TimeSpentSeconds: 30 * 60}},
	})
	if err != nil {
		t.Fatalf("AdaptPath slow: %v", err)
	}
	if slow.AdjustmentType != AdjustmentPacing || !strings.Contains(slow.Reason, "slow") {
		t.Fatalf("expected slow pacing decision, got %+v", slow)
	}
	if len(fast.RecommendedActions) == len(slow.RecommendedActions) {
		t.Fatalf("fast and slow pacing should produce different action sets")
	}
}

func TestAdaptPathContentTypeMismatch(t *testing.T) {
	svc, session, _ := newAdaptationFixture(t)
	session.CurrentStepIndex = 0 // current step is a video

	decision, err := svc.AdaptPath(context.Background(), session.ID, UserBehavior{
		StepInteractions:      []StepInteraction{{TimeSpentSeconds: 600}},
		PreferredContentTypes: []string{"interactive", "quiz"},
	})
	if err != nil {
		t.Fatalf("AdaptPath: %v", err)
	}
	if decision.AdjustmentType != AdjustmentContentType {
		t.Fatalf("expected content_type adjustment, got %s", decision.AdjustmentType)
	}
}

func TestAdaptPathNoAdjustmentNeeded(t *testing.T) {
	svc, session, analytics := newAdaptationFixture(t)

	decision, err := svc.AdaptPath(context.Background(), session.ID, UserBehavior{
		StepInteractions:      []StepInteraction{{TimeSpentSeconds: 600, ContentType: "video"}},
		PreferredContentTypes: []string{"video"},
	})
	if err != nil {
		t.Fatalf("AdaptPath: %v", err)
	}
	if decision.AdjustmentType != AdjustmentNone {
		t.Fatalf("expected no adjustment, got %s", decision.AdjustmentType)
	}
	if decision.Reason != "No adjustments needed — user behavior indicates good progress" {
		t.Fatalf("unexpected reason: %q", decision.Reason)
	}

	// The decision is still audited and emitted.
	if len(analytics.audits) == 0 || len(analytics.eventTypes()) == 0 {
		t.Fatalf("adaptation should audit and emit regardless of outcome")
	}
}

func TestAdaptPathUnknownSession(t *testing.T) {
	svc := NewAdaptationService(nil, newTestLogger(t), DefaultConfig(), newFakeSessionRepo(), &fakeAnalytics{})

	_, err := svc.AdaptPath(context.Background(), uuid.New(), UserBehavior{})
	if !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("expected not-found, got %v", err)
	}
}
