package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/pathpilot-backend/internal/logger"
	"github.com/yungbote/pathpilot-backend/internal/types"
)

type SessionRepo interface {
	Create(ctx context.Context, tx *gorm.DB, row *types.OnboardingSession) error
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.OnboardingSession, error)
	GetWithPath(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.OnboardingSession, error)
	GetActiveByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.OnboardingSession, error)
	Update(ctx context.Context, tx *gorm.DB, row *types.OnboardingSession) error
	UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, fields map[string]interface{}) error
}

type sessionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSessionRepo(db *gorm.DB, baseLog *logger.Logger) SessionRepo {
	repoLog := baseLog.With("repo", "SessionRepo")
	return &sessionRepo{db: db, log: repoLog}
}

func (r *sessionRepo) Create(ctx context.Context, tx *gorm.DB, row *types.OnboardingSession) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if row == nil {
		return nil
	}

	if err := transaction.WithContext(ctx).Create(row).Error; err != nil {
		return err
	}
	return nil
}

func (r *sessionRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.OnboardingSession, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if id == uuid.Nil {
		return nil, nil
	}

	var result types.OnboardingSession
	err := transaction.WithContext(ctx).Where("id = ?", id).First(&result).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (r *sessionRepo) GetWithPath(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.OnboardingSession, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if id == uuid.Nil {
		return nil, nil
	}

	var result types.OnboardingSession
	err := transaction.WithContext(ctx).
		Preload("Path").
		Preload("Path.Steps", func(db *gorm.DB) *gorm.DB {
			return db.Order("step_order ASC")
		}).
		Preload("Path.Milestones").
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

func (r *sessionRepo) GetActiveByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.OnboardingSession, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.OnboardingSession
	if userID == uuid.Nil {
		return results, nil
	}

	if err := transaction.WithContext(ctx).
		Where("user_id = ? AND status IN ?", userID, []string{types.SessionStatusActive, types.SessionStatusPaused}).
		Order("last_active_at DESC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *sessionRepo) Update(ctx context.Context, tx *gorm.DB, row *types.OnboardingSession) error {
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

// UpdateFields writes only the given columns; last-write-wins applies to the
// session row, never to progress rows.
func (r *sessionRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, fields map[string]interface{}) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if id == uuid.Nil || len(fields) == 0 {
		return nil
	}

	if err := transaction.WithContext(ctx).
		Model(&types.OnboardingSession{}).
		Where("id = ?", id).
		Updates(fields).Error; err != nil {
		return err
	}
	return nil
}
