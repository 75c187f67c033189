package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	StepStatusNotStarted = "not_started"
	StepStatusInProgress = "in_progress"
	StepStatusCompleted  = "completed"
	StepStatusSkipped    = "skipped"
	StepStatusFailed     = "failed"
)

// StepProgress is unique per (session_id, step_id); the composite unique index
// backs the atomic upsert in the progress repo.
type StepProgress struct {
	ID               uuid.UUID          `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	SessionID        uuid.UUID          `gorm:"type:uuid;not null;index:idx_session_step,unique" json:"session_id"`
	Session          *OnboardingSession `gorm:"constraint:OnDelete:CASCADE;foreignKey:SessionID;references:ID" json:"session,omitempty"`
	StepID           uuid.UUID          `gorm:"type:uuid;not null;index:idx_session_step,unique" json:"step_id"`
	Step             *PathStep          `gorm:"constraint:OnDelete:CASCADE;foreignKey:StepID;references:ID" json:"step,omitempty"`
	UserID           uuid.UUID          `gorm:"type:uuid;not null;index" json:"user_id"`
	Status           string             `gorm:"column:status;not null;default:'not_started'" json:"status"`
	StartedAt        *time.Time         `gorm:"column:started_at" json:"started_at,omitempty"`
	CompletedAt      *time.Time         `gorm:"column:completed_at" json:"completed_at,omitempty"`
	TimeSpentSeconds int                `gorm:"column:time_spent_seconds;not null;default:0" json:"time_spent_seconds"`
	Attempts         int                `gorm:"column:attempts;not null;default:0" json:"attempts"`
	Score            *float64           `gorm:"column:score" json:"score,omitempty"`
	UserActions      datatypes.JSON     `gorm:"type:jsonb;column:user_actions" json:"user_actions"`
	StepResult       datatypes.JSON     `gorm:"type:jsonb;column:step_result" json:"step_result"`
	Errors           datatypes.JSON     `gorm:"type:jsonb;column:errors" json:"errors"`
	Achievements     datatypes.JSON     `gorm:"type:jsonb;column:achievements" json:"achievements"`
	CreatedAt        time.Time          `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt        time.Time          `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt        gorm.DeletedAt     `gorm:"index" json:"deleted_at,omitempty"`
}

func (StepProgress) TableName() string { return "step_progress" }

// IsTerminalStepStatus reports whether a status must never regress to
// not_started/in_progress once written.
func IsTerminalStepStatus(status string) bool {
	switch status {
	case StepStatusCompleted, StepStatusSkipped, StepStatusFailed:
		return true
	default:
		return false
	}
}
