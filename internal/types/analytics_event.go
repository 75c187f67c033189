package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// AnalyticsEvent is a best-effort telemetry row. ClientEventID dedupes
// retried submissions.
type AnalyticsEvent struct {
	ID            uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID        uuid.UUID      `gorm:"type:uuid;not null;index" json:"user_id"`
	SessionID     *uuid.UUID     `gorm:"type:uuid;index" json:"session_id,omitempty"`
	PathID        *uuid.UUID     `gorm:"type:uuid;index" json:"path_id,omitempty"`
	StepID        *uuid.UUID     `gorm:"type:uuid;index" json:"step_id,omitempty"`
	ClientEventID string         `gorm:"column:client_event_id;not null;uniqueIndex" json:"client_event_id"`
	Type          string         `gorm:"column:type;not null;index" json:"type"`
	Data          datatypes.JSON `gorm:"type:jsonb;column:data" json:"data"`
	OccurredAt    time.Time      `gorm:"column:occurred_at;not null;default:now()" json:"occurred_at"`
	CreatedAt     time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt     time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (AnalyticsEvent) TableName() string { return "analytics_event" }
