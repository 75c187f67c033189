package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yungbote/pathpilot-backend/internal/logger"
	"github.com/yungbote/pathpilot-backend/internal/types"
)

type StepProgressRepo interface {
	// Upsert inserts or updates the row for (session_id, step_id) in one
	// statement. Concurrent duplicate submits land on the same row via the
	// unique index; never check-then-insert.
	Upsert(ctx context.Context, tx *gorm.DB, row *types.StepProgress) error
	GetBySessionAndStep(ctx context.Context, tx *gorm.DB, sessionID, stepID uuid.UUID) (*types.StepProgress, error)
	ListBySession(ctx context.Context, tx *gorm.DB, sessionID uuid.UUID) ([]*types.StepProgress, error)
	ListByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.StepProgress, error)
}

type stepProgressRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewStepProgressRepo(db *gorm.DB, baseLog *logger.Logger) StepProgressRepo {
	repoLog := baseLog.With("repo", "StepProgressRepo")
	return &stepProgressRepo{db: db, log: repoLog}
}

func (r *stepProgressRepo) Upsert(ctx context.Context, tx *gorm.DB, row *types.StepProgress) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if row == nil {
		return nil
	}

	if err := transaction.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "session_id"}, {Name: "step_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"status",
				"started_at",
				"completed_at",
				"time_spent_seconds",
				"attempts",
				"score",
				"user_actions",
				"step_result",
				"errors",
				"achievements",
				"updated_at",
			}),
		}).
		Create(row).Error; err != nil {
		return err
	}
	return nil
}

func (r *stepProgressRepo) GetBySessionAndStep(ctx context.Context, tx *gorm.DB, sessionID, stepID uuid.UUID) (*types.StepProgress, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if sessionID == uuid.Nil || stepID == uuid.Nil {
		return nil, nil
	}

	var result types.StepProgress
	err := transaction.WithContext(ctx).
		Where("session_id = ? AND step_id = ?", sessionID, stepID).
		First(&result).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (r *stepProgressRepo) ListBySession(ctx context.Context, tx *gorm.DB, sessionID uuid.UUID) ([]*types.StepProgress, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.StepProgress
	if sessionID == uuid.Nil {
		return results, nil
	}

	if err := transaction.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *stepProgressRepo) ListByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.StepProgress, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.StepProgress
	if userID == uuid.Nil {
		return results, nil
	}

	if err := transaction.WithContext(ctx).
		Where("user_id = ?", userID).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
