package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User rows are provisioned by the external identity provider; this service
// only reads the role/tier columns it needs for path matching.
type User struct {
	ID               uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	ExternalID       string         `gorm:"uniqueIndex;not null;column:external_id" json:"external_id"`
	Role             string         `gorm:"column:role;not null;default:'member'" json:"role"`
	SubscriptionTier string         `gorm:"column:subscription_tier;not null;default:'free'" json:"subscription_tier"`
	OrganizationID   *uuid.UUID     `gorm:"type:uuid;index" json:"organization_id,omitempty"`
	CreatedAt        time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt        time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt        gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (User) TableName() string { return "user" }
