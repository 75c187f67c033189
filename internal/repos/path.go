package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/pathpilot-backend/internal/logger"
	"github.com/yungbote/pathpilot-backend/internal/types"
)

// PathFilter narrows catalog queries. Zero values mean "don't filter".
type PathFilter struct {
	TargetRole         string
	SubscriptionTier   string
	Difficulty         string
	ActiveOnly         bool
	MinDurationMinutes int
	MaxDurationMinutes int
	ExcludeIDs         []uuid.UUID
}

type PathRepo interface {
	FindMatching(ctx context.Context, tx *gorm.DB, filter PathFilter) ([]*types.Path, error)
	GetWithSteps(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Path, error)
	Create(ctx context.Context, tx *gorm.DB, rows []*types.Path) ([]*types.Path, error)
	Update(ctx context.Context, tx *gorm.DB, row *types.Path) error
}

type pathRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPathRepo(db *gorm.DB, baseLog *logger.Logger) PathRepo {
	repoLog := baseLog.With("repo", "PathRepo")
	return &pathRepo{db: db, log: repoLog}
}

func (r *pathRepo) FindMatching(ctx context.Context, tx *gorm.DB, filter PathFilter) ([]*types.Path, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	q := transaction.WithContext(ctx).Model(&types.Path{})
	if filter.ActiveOnly {
		q = q.Where("is_active = ?", true)
	}
	if filter.TargetRole != "" {
		q = q.Where("target_role = ?", filter.TargetRole)
	}
	if filter.SubscriptionTier != "" {
		q = q.Where("subscription_tier = ?", filter.SubscriptionTier)
	}
	if filter.Difficulty != "" {
		q = q.Where("difficulty = ?", filter.Difficulty)
	}
	if filter.MinDurationMinutes > 0 {
		q = q.Where("estimated_duration_minutes >= ?", filter.MinDurationMinutes)
	}
	if filter.MaxDurationMinutes > 0 {
		q = q.Where("estimated_duration_minutes <= ?", filter.MaxDurationMinutes)
	}
	if len(filter.ExcludeIDs) > 0 {
		q = q.Where("id NOT IN ?", filter.ExcludeIDs)
	}

	var results []*types.Path
	if err := q.Order("estimated_duration_minutes ASC").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *pathRepo) GetWithSteps(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Path, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if id == uuid.Nil {
		return nil, nil
	}

	var result types.Path
	err := transaction.WithContext(ctx).
		Preload("Steps", func(db *gorm.DB) *gorm.DB {
			return db.Order("step_order ASC")
		}).
		Preload("Milestones").
		Where("id = ?", id).
		First(&result).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (r *pathRepo) Create(ctx context.Context, tx *gorm.DB, rows []*types.Path) ([]*types.Path, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if len(rows) == 0 {
		return []*types.Path{}, nil
	}

	if err := transaction.WithContext(ctx).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *pathRepo) Update(ctx context.Context, tx *gorm.DB, row *types.Path) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if row == nil || row.ID == uuid.Nil {
		return nil
	}

	if err := transaction.WithContext(ctx).Save(row).Error; err != nil {
		return err
	}
	return nil
}
