package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Path is an authored onboarding template. Rows are written by the content
// tooling; this service treats them as read-only catalog data.
type Path struct {
	ID                 uuid.UUID        `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	Name               string           `gorm:"column:name;not null" json:"name"`
	Description        string           `gorm:"column:description" json:"description"`
	TargetRole         string           `gorm:"column:target_role;not null;index" json:"target_role"`
	SubscriptionTier   string           `gorm:"column:subscription_tier;not null;index" json:"subscription_tier"`
	Difficulty         string           `gorm:"column:difficulty;not null;default:'standard'" json:"difficulty"`
	EstimatedDuration  int              `gorm:"column:estimated_duration_minutes;not null;default:0" json:"estimated_duration_minutes"`
	IsActive           bool             `gorm:"column:is_active;not null;default:true;index" json:"is_active"`
	Prerequisites      datatypes.JSON   `gorm:"type:jsonb;column:prerequisites" json:"prerequisites"`
	LearningObjectives datatypes.JSON   `gorm:"type:jsonb;column:learning_objectives" json:"learning_objectives"`
	SuccessCriteria    datatypes.JSON   `gorm:"type:jsonb;column:success_criteria" json:"success_criteria"`
	Steps              []*PathStep      `gorm:"foreignKey:PathID;references:ID" json:"steps,omitempty"`
	Milestones         []*PathMilestone `gorm:"foreignKey:PathID;references:ID" json:"milestones,omitempty"`
	CreatedAt          time.Time        `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt          time.Time        `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt          gorm.DeletedAt   `gorm:"index" json:"deleted_at,omitempty"`
}

func (Path) TableName() string { return "path" }

// RequiredSteps returns the steps that count toward completion, preserving
// step order.
func (p *Path) RequiredSteps() []*PathStep {
	if p == nil {
		return nil
	}
	out := make([]*PathStep, 0, len(p.Steps))
	for _, s := range p.Steps {
		if s != nil && s.IsRequired {
			out = append(out, s)
		}
	}
	return out
}
