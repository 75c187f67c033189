package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/pathpilot-backend/internal/logger"
	"github.com/yungbote/pathpilot-backend/internal/types"
)

type AuditLogRepo interface {
	Create(ctx context.Context, tx *gorm.DB, rows []*types.AuditLog) ([]*types.AuditLog, error)
	GetBySessionID(ctx context.Context, tx *gorm.DB, sessionID uuid.UUID) ([]*types.AuditLog, error)
}

type auditLogRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAuditLogRepo(db *gorm.DB, baseLog *logger.Logger) AuditLogRepo {
	repoLog := baseLog.With("repo", "AuditLogRepo")
	return &auditLogRepo{db: db, log: repoLog}
}

func (r *auditLogRepo) Create(ctx context.Context, tx *gorm.DB, rows []*types.AuditLog) ([]*types.AuditLog, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if len(rows) == 0 {
		return []*types.AuditLog{}, nil
	}

	if err := transaction.WithContext(ctx).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *auditLogRepo) GetBySessionID(ctx context.Context, tx *gorm.DB, sessionID uuid.UUID) ([]*types.AuditLog, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.AuditLog
	if sessionID == uuid.Nil {
		return results, nil
	}

	if err := transaction.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
