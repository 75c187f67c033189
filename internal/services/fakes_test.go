package services

import (
	"context"
	"sort"
	"sync"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/pathpilot-backend/internal/logger"
	"github.com/yungbote/pathpilot-backend/internal/repos"
	"github.com/yungbote/pathpilot-backend/internal/types"
)

func newTestLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	return log
}

// fakePathRepo keeps paths in a slice and mirrors the filter semantics of the
// postgres repo, including the duration ordering.
type fakePathRepo struct {
	mu      sync.Mutex
	paths   []*types.Path
	failAll error
}

func (f *fakePathRepo) FindMatching(ctx context.Context, tx *gorm.DB, filter repos.PathFilter) ([]*types.Path, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll != nil {
		return nil, f.failAll
	}
	excluded := map[uuid.UUID]bool{}
	for _, id := range filter.ExcludeIDs {
		excluded[id] = true
	}
	out := []*types.Path{}
	for _, p := range f.paths {
		if filter.ActiveOnly && !p.IsActive {
			continue
		}
		if filter.TargetRole != "" && p.TargetRole != filter.TargetRole {
			continue
		}
		if filter.SubscriptionTier != "" && p.SubscriptionTier != filter.SubscriptionTier {
			continue
		}
		if filter.Difficulty != "" && p.Difficulty != filter.Difficulty {
			continue
		}
		if filter.MinDurationMinutes > 0 && p.EstimatedDuration < filter.MinDurationMinutes {
			continue
		}
		if filter.MaxDurationMinutes > 0 && p.EstimatedDuration > filter.MaxDurationMinutes {
			continue
		}
		if excluded[p.ID] {
			continue
		}
		out = append(out, p)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].EstimatedDuration < out[j].EstimatedDuration
	})
	return out, nil
}

func (f *fakePathRepo) GetWithSteps(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Path, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll != nil {
		return nil, f.failAll
	}
	for _, p := range f.paths {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, nil
}

func (f *fakePathRepo) Create(ctx context.Context, tx *gorm.DB, rows []*types.Path) ([]*types.Path, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll != nil {
		return nil, f.failAll
	}
	f.paths = append(f.paths, rows...)
	return rows, nil
}

func (f *fakePathRepo) Update(ctx context.Context, tx *gorm.DB, row *types.Path) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll != nil {
		return f.failAll
	}
	for i, p := range f.paths {
		if p.ID == row.ID {
			f.paths[i] = row
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

type fakeSessionRepo struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*types.OnboardingSession
	failAll  error
}

func newFakeSessionRepo(sessions ...*types.OnboardingSession) *fakeSessionRepo {
	f := &fakeSessionRepo{sessions: map[uuid.UUID]*types.OnboardingSession{}}
	for _, s := range sessions {
		f.sessions[s.ID] = s
	}
	return f
}

func (f *fakeSessionRepo) Create(ctx context.Context, tx *gorm.DB, row *types.OnboardingSession) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll != nil {
		return f.failAll
	}
	f.sessions[row.ID] = row
	return nil
}

func (f *fakeSessionRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.OnboardingSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll != nil {
		return nil, f.failAll
	}
	return f.sessions[id], nil
}

func (f *fakeSessionRepo) GetWithPath(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.OnboardingSession, error) {
	return f.GetByID(ctx, tx, id)
}

func (f *fakeSessionRepo) GetActiveByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.OnboardingSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll != nil {
		return nil, f.failAll
	}
	out := []*types.OnboardingSession{}
	for _, s := range f.sessions {
		if s.UserID == userID && s.Status == types.SessionStatusActive {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeSessionRepo) Update(ctx context.Context, tx *gorm.DB, row *types.OnboardingSession) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll != nil {
		return f.failAll
	}
	f.sessions[row.ID] = row
	return nil
}

func (f *fakeSessionRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, fields map[string]interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll != nil {
		return f.failAll
	}
	s, ok := f.sessions[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	if v, ok := fields["status"].(string); ok {
		s.Status = v
	}
	if v, ok := fields["progress_percentage"].(int); ok {
		s.ProgressPercentage = v
	}
	if v, ok := fields["current_step_index"].(int); ok {
		s.CurrentStepIndex = v
	}
	return nil
}

type fakeStepProgressRepo struct {
	mu      sync.Mutex
	rows    map[[2]uuid.UUID]*types.StepProgress
	upserts int
	failAll error
}

func newFakeStepProgressRepo(rows ...*types.StepProgress) *fakeStepProgressRepo {
	f := &fakeStepProgressRepo{rows: map[[2]uuid.UUID]*types.StepProgress{}}
	for _, r := range rows {
		f.rows[[2]uuid.UUID{r.SessionID, r.StepID}] = r
	}
	return f
}

func (f *fakeStepProgressRepo) Upsert(ctx context.Context, tx *gorm.DB, row *types.StepProgress) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll != nil {
		return f.failAll
	}
	f.upserts++
	f.rows[[2]uuid.UUID{row.SessionID, row.StepID}] = row
	return nil
}

func (f *fakeStepProgressRepo) GetBySessionAndStep(ctx context.Context, tx *gorm.DB, sessionID, stepID uuid.UUID) (*types.StepProgress, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll != nil {
		return nil, f.failAll
	}
	return f.rows[[2]uuid.UUID{sessionID, stepID}], nil
}

func (f *fakeStepProgressRepo) ListBySession(ctx context.Context, tx *gorm.DB, sessionID uuid.UUID) ([]*types.StepProgress, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll != nil {
		return nil, f.failAll
	}
	out := []*types.StepProgress{}
	for _, r := range f.rows {
		if r.SessionID == sessionID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeStepProgressRepo) ListByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.StepProgress, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll != nil {
		return nil, f.failAll
	}
	out := []*types.StepProgress{}
	for _, r := range f.rows {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	return out, nil
}

type fakeAchievementRepo struct {
	mu      sync.Mutex
	rows    []*types.Achievement
	failAll error
}

func (f *fakeAchievementRepo) CreateIgnoreDuplicates(ctx context.Context, tx *gorm.DB, rows []*types.Achievement) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll != nil {
		return 0, f.failAll
	}
	inserted := 0
	for _, row := range rows {
		dup := false
		for _, existing := range f.rows {
			if existing.SessionID == row.SessionID && existing.MilestoneID == row.MilestoneID {
				dup = true
				break
			}
		}
		if dup {
			continue
		}
		f.rows = append(f.rows, row)
		inserted++
	}
	return inserted, nil
}

func (f *fakeAchievementRepo) ListBySession(ctx context.Context, tx *gorm.DB, sessionID uuid.UUID) ([]*types.Achievement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll != nil {
		return nil, f.failAll
	}
	out := []*types.Achievement{}
	for _, a := range f.rows {
		if a.SessionID == sessionID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeAchievementRepo) ListByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.Achievement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll != nil {
		return nil, f.failAll
	}
	out := []*types.Achievement{}
	for _, a := range f.rows {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	return out, nil
}

// fakeAnalytics records telemetry calls so tests can assert on best-effort
// side effects without a database.
type fakeAnalytics struct {
	mu     sync.Mutex
	events []string
	audits []string
}

func (f *fakeAnalytics) EmitEvent(ctx context.Context, userID uuid.UUID, sessionID, pathID, stepID *uuid.UUID, eventType string, data map[string]interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, eventType)
}

func (f *fakeAnalytics) RecordAudit(ctx context.Context, userID uuid.UUID, sessionID *uuid.UUID, action string, detail map[string]interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.audits = append(f.audits, action)
}

func (f *fakeAnalytics) eventTypes() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.events...)
}
