package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Achievement rows are append-only: once a milestone is awarded it is never
// updated or revoked. The (session_id, milestone_id) unique index makes the
// award idempotent under duplicate submits.
type Achievement struct {
	ID          uuid.UUID          `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	SessionID   uuid.UUID          `gorm:"type:uuid;not null;index:idx_session_milestone,unique" json:"session_id"`
	Session     *OnboardingSession `gorm:"constraint:OnDelete:CASCADE;foreignKey:SessionID;references:ID" json:"session,omitempty"`
	MilestoneID uuid.UUID          `gorm:"type:uuid;not null;index:idx_session_milestone,unique" json:"milestone_id"`
	Milestone   *PathMilestone     `gorm:"constraint:OnDelete:CASCADE;foreignKey:MilestoneID;references:ID" json:"milestone,omitempty"`
	UserID      uuid.UUID          `gorm:"type:uuid;not null;index" json:"user_id"`
	Name        string             `gorm:"column:name;not null" json:"name"`
	AwardedAt   time.Time          `gorm:"column:awarded_at;not null;default:now()" json:"awarded_at"`
	Metadata    datatypes.JSON     `gorm:"type:jsonb;column:metadata" json:"metadata"`
	CreatedAt   time.Time          `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt   time.Time          `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt   gorm.DeletedAt     `gorm:"index" json:"deleted_at,omitempty"`
}

func (Achievement) TableName() string { return "achievement" }
