package types

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// PathStep is an atomic onboarding unit. Dependencies reference sibling step
// ids within the same path; the authoring import validates the set is acyclic,
// so the runtime resolver never does its own cycle detection.
type PathStep struct {
	ID              uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	PathID          uuid.UUID      `gorm:"type:uuid;not null;index:idx_path_step_order,unique" json:"path_id"`
	Path            *Path          `gorm:"constraint:OnDelete:CASCADE;foreignKey:PathID;references:ID" json:"path,omitempty"`
	StepOrder       int            `gorm:"column:step_order;not null;index:idx_path_step_order,unique" json:"step_order"`
	Title           string         `gorm:"column:title;not null" json:"title"`
	StepType        string         `gorm:"column:step_type;not null" json:"step_type"`
	IsRequired      bool           `gorm:"column:is_required;not null;default:true" json:"is_required"`
	Dependencies    datatypes.JSON `gorm:"type:jsonb;column:dependencies" json:"dependencies"`
	EstimatedTime   int            `gorm:"column:estimated_time_minutes;not null;default:0" json:"estimated_time_minutes"`
	Content         datatypes.JSON `gorm:"type:jsonb;column:content" json:"content"`
	ValidationRules datatypes.JSON `gorm:"type:jsonb;column:validation_rules" json:"validation_rules"`
	CreatedAt       time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt       time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (PathStep) TableName() string { return "path_step" }

// DependencyIDs decodes the jsonb dependency list. Unparseable entries are
// dropped rather than failing the traversal.
func (s *PathStep) DependencyIDs() []uuid.UUID {
	if s == nil || len(s.Dependencies) == 0 {
		return nil
	}
	var raw []string
	if err := json.Unmarshal(s.Dependencies, &raw); err != nil {
		return nil
	}
	out := make([]uuid.UUID, 0, len(raw))
	for _, v := range raw {
		if id, err := uuid.Parse(v); err == nil {
			out = append(out, id)
		}
	}
	return out
}
