package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	PlanStatusActive    = "active"
	PlanStatusCompleted = "completed"
	PlanStatusArchived  = "archived"
)

const (
	PlanUnitStatusPending    = "pending"
	PlanUnitStatusInProgress = "in_progress"
	PlanUnitStatusCompleted  = "completed"
	PlanUnitStatusSkipped    = "skipped"
)

// StudyPlan owns exactly 90 PlanUnits spanning consecutive calendar days
// from StartDate.
type StudyPlan struct {
	ID                 uuid.UUID  `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID             uuid.UUID  `gorm:"type:uuid;not null;index" json:"user_id"`
	User               *User      `gorm:"constraint:OnDelete:CASCADE;foreignKey:UserID;references:ID" json:"user,omitempty"`
	Track              string     `gorm:"column:track;not null" json:"track"`
	StartDate          time.Time  `gorm:"column:start_date;not null" json:"start_date"`
	WeekdayMinutes     int        `gorm:"column:weekday_minutes;not null" json:"weekday_minutes"`
	WeekendMinutes     int        `gorm:"column:weekend_minutes;not null" json:"weekend_minutes"`
	PreparednessTarget float64    `gorm:"column:preparedness_target;not null" json:"preparedness_target"`
	Status             string     `gorm:"column:status;not null;default:active;index" json:"status"`
	Units              []PlanUnit `gorm:"foreignKey:PlanID;references:ID" json:"units,omitempty"`
	CreatedAt          time.Time  `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt          time.Time  `gorm:"not null;default:now()" json:"updated_at"`
}

func (StudyPlan) TableName() string { return "study_plan" }

// PlanUnitPayload is the generated content of one day: the ordered question
// list plus the focus-area labels shown to the user.
type PlanUnitPayload struct {
	QuestionIDs []uuid.UUID `json:"question_ids"`
	FocusAreas  []string    `json:"focus_areas"`
}

// PlanUnit is one day of a plan. Nightly adjustment rewrites Payload on
// pending units only; Day and PlanID never change after creation.
type PlanUnit struct {
	ID        uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	PlanID    uuid.UUID      `gorm:"type:uuid;not null;index:idx_plan_unit_day,unique" json:"plan_id"`
	Plan      *StudyPlan     `gorm:"constraint:OnDelete:CASCADE;foreignKey:PlanID;references:ID" json:"plan,omitempty"`
	Day       time.Time      `gorm:"column:day;not null;index:idx_plan_unit_day,unique" json:"day"`
	Payload   datatypes.JSON `gorm:"type:jsonb;column:payload" json:"payload,omitempty"`
	Status    string         `gorm:"column:status;not null;default:pending;index" json:"status"`
	CreatedAt time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now()" json:"updated_at"`
}

func (PlanUnit) TableName() string { return "plan_unit" }
