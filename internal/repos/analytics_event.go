package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yungbote/pathpilot-backend/internal/logger"
	"github.com/yungbote/pathpilot-backend/internal/types"
)

type AnalyticsEventRepo interface {
	CreateIgnoreDuplicates(ctx context.Context, tx *gorm.DB, rows []*types.AnalyticsEvent) (int, error)
	GetBySessionID(ctx context.Context, tx *gorm.DB, sessionID uuid.UUID) ([]*types.AnalyticsEvent, error)
}

type analyticsEventRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAnalyticsEventRepo(db *gorm.DB, baseLog *logger.Logger) AnalyticsEventRepo {
	repoLog := baseLog.With("repo", "AnalyticsEventRepo")
	return &analyticsEventRepo{db: db, log: repoLog}
}

func (r *analyticsEventRepo) CreateIgnoreDuplicates(ctx context.Context, tx *gorm.DB, rows []*types.AnalyticsEvent) (int, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if len(rows) == 0 {
		return 0, nil
	}

	res := transaction.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "client_event_id"}},
			DoNothing: true,
		}).
		Create(&rows)
	if res.Error != nil {
		return 0, res.Error
	}
	return int(res.RowsAffected), nil
}

func (r *analyticsEventRepo) GetBySessionID(ctx context.Context, tx *gorm.DB, sessionID uuid.UUID) ([]*types.AnalyticsEvent, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.AnalyticsEvent
	if sessionID == uuid.Nil {
		return results, nil
	}

	if err := transaction.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("occurred_at ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
