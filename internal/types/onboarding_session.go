package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	SessionStatusActive    = "active"
	SessionStatusPaused    = "paused"
	SessionStatusCompleted = "completed"
	SessionStatusAbandoned = "abandoned"
)

// OnboardingSession is one user's traversal of a path. completed/abandoned
// are terminal.
type OnboardingSession struct {
	ID                 uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID             uuid.UUID      `gorm:"type:uuid;not null;index" json:"user_id"`
	User               *User          `gorm:"constraint:OnDelete:CASCADE;foreignKey:UserID;references:ID" json:"user,omitempty"`
	OrganizationID     *uuid.UUID     `gorm:"type:uuid;index" json:"organization_id,omitempty"`
	PathID             uuid.UUID      `gorm:"type:uuid;not null;index" json:"path_id"`
	Path               *Path          `gorm:"constraint:OnDelete:CASCADE;foreignKey:PathID;references:ID" json:"path,omitempty"`
	SessionType        string         `gorm:"column:session_type;not null;default:'onboarding'" json:"session_type"`
	Status             string         `gorm:"column:status;not null;default:'active';index" json:"status"`
	CurrentStepIndex   int            `gorm:"column:current_step_index;not null;default:0" json:"current_step_index"`
	ProgressPercentage int            `gorm:"column:progress_percentage;not null;default:0" json:"progress_percentage"`
	TimeSpentSeconds   int            `gorm:"column:time_spent_seconds;not null;default:0" json:"time_spent_seconds"`
	StartedAt          time.Time      `gorm:"column:started_at;not null;default:now()" json:"started_at"`
	LastActiveAt       time.Time      `gorm:"column:last_active_at;not null;default:now()" json:"last_active_at"`
	CompletedAt        *time.Time     `gorm:"column:completed_at" json:"completed_at,omitempty"`
	PausedAt           *time.Time     `gorm:"column:paused_at" json:"paused_at,omitempty"`
	Metadata           datatypes.JSON `gorm:"type:jsonb;column:metadata" json:"metadata"`
	CreatedAt          time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt          time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt          gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (OnboardingSession) TableName() string { return "onboarding_session" }

func (s *OnboardingSession) IsTerminal() bool {
	if s == nil {
		return false
	}
	return s.Status == SessionStatusCompleted || s.Status == SessionStatusAbandoned
}
