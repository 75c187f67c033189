package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yungbote/pathpilot-backend/internal/logger"
	"github.com/yungbote/pathpilot-backend/internal/types"
)

type AchievementRepo interface {
	// CreateIgnoreDuplicates appends awards; a re-award of the same milestone
	// in the same session is silently dropped by the unique index.
	CreateIgnoreDuplicates(ctx context.Context, tx *gorm.DB, rows []*types.Achievement) (int, error)
	ListBySession(ctx context.Context, tx *gorm.DB, sessionID uuid.UUID) ([]*types.Achievement, error)
	ListByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.Achievement, error)
}

type achievementRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAchievementRepo(db *gorm.DB, baseLog *logger.Logger) AchievementRepo {
	repoLog := baseLog.With("repo", "AchievementRepo")
	return &achievementRepo{db: db, log: repoLog}
}

func (r *achievementRepo) CreateIgnoreDuplicates(ctx context.Context, tx *gorm.DB, rows []*types.Achievement) (int, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if len(rows) == 0 {
		return 0, nil
	}

	res := transaction.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "session_id"}, {Name: "milestone_id"}},
			DoNothing: true,
		}).
		Create(&rows)
	if res.Error != nil {
		return 0, res.Error
	}
	return int(res.RowsAffected), nil
}

func (r *achievementRepo) ListBySession(ctx context.Context, tx *gorm.DB, sessionID uuid.UUID) ([]*types.Achievement, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.Achievement
	if sessionID == uuid.Nil {
		return results, nil
	}

	if err := transaction.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("awarded_at ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *achievementRepo) ListByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.Achievement, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.Achievement
	if userID == uuid.Nil {
		return results, nil
	}

	if err := transaction.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("awarded_at DESC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
