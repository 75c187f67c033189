package types

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	MilestoneCriteriaProgressPercentage = "progress_percentage"
	MilestoneCriteriaRequiredSteps      = "required_steps"
	MilestoneCriteriaMaxTimeMinutes     = "max_time_minutes"
)

// MilestoneCriteria is a tagged union: Type selects which of the remaining
// fields is meaningful.
type MilestoneCriteria struct {
	Type               string      `json:"type"`
	ProgressPercentage int         `json:"progress_percentage,omitempty"`
	RequiredStepIDs    []uuid.UUID `json:"required_step_ids,omitempty"`
	MaxTimeMinutes     int         `json:"max_time_minutes,omitempty"`
}

type PathMilestone struct {
	ID        uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	PathID    uuid.UUID      `gorm:"type:uuid;not null;index" json:"path_id"`
	Path      *Path          `gorm:"constraint:OnDelete:CASCADE;foreignKey:PathID;references:ID" json:"path,omitempty"`
	Name      string         `gorm:"column:name;not null" json:"name"`
	Criteria  datatypes.JSON `gorm:"type:jsonb;column:criteria;not null" json:"criteria"`
	CreatedAt time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (PathMilestone) TableName() string { return "path_milestone" }

func (m *PathMilestone) DecodeCriteria() (MilestoneCriteria, error) {
	var c MilestoneCriteria
	if m == nil || len(m.Criteria) == 0 {
		return c, nil
	}
	err := json.Unmarshal(m.Criteria, &c)
	return c, err
}

func EncodeCriteria(c MilestoneCriteria) datatypes.JSON {
	b, _ := json.Marshal(c)
	return datatypes.JSON(b)
}
