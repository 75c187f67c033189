package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// AuditLog records derived decisions (adaptations, state transitions) for
// later review. Writes are best-effort.
type AuditLog struct {
	ID        uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID    uuid.UUID      `gorm:"type:uuid;not null;index" json:"user_id"`
	SessionID *uuid.UUID     `gorm:"type:uuid;index" json:"session_id,omitempty"`
	Action    string         `gorm:"column:action;not null;index" json:"action"`
	Detail    datatypes.JSON `gorm:"type:jsonb;column:detail" json:"detail"`
	CreatedAt time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (AuditLog) TableName() string { return "audit_log" }
