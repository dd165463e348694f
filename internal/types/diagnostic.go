package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	TrackBeginner     = "Beginner"
	TrackIntermediate = "Intermediate"
	TrackGood         = "Good"
	TrackAdvanced     = "Advanced"
)

const (
	ReadinessExcellent  = "Excellent"
	ReadinessGood       = "Good"
	ReadinessAverage    = "Average"
	ReadinessNeedsWork  = "Needs Improvement"
	DiagnosticSetLength = 25
)

// DiagnosticSet is the fixed 25-question baseline test shared by all users.
// It is constructed once per canonical name and never mutated afterwards.
type DiagnosticSet struct {
	ID        uuid.UUID           `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	Name      string              `gorm:"column:name;not null;uniqueIndex" json:"name"`
	Active    bool                `gorm:"column:active;not null;default:true;index" json:"active"`
	Items     []DiagnosticSetItem `gorm:"foreignKey:SetID;references:ID" json:"items,omitempty"`
	CreatedAt time.Time           `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time           `gorm:"not null;default:now()" json:"updated_at"`
}

func (DiagnosticSet) TableName() string { return "diagnostic_set" }

type DiagnosticSetItem struct {
	ID         uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	SetID      uuid.UUID `gorm:"type:uuid;not null;index:idx_diag_set_seq,unique" json:"set_id"`
	QuestionID uuid.UUID `gorm:"type:uuid;not null" json:"question_id"`
	Question   *Question `gorm:"foreignKey:QuestionID;references:ID" json:"question,omitempty"`
	Sequence   int       `gorm:"column:sequence;not null;index:idx_diag_set_seq,unique" json:"sequence"`
	CreatedAt  time.Time `gorm:"not null;default:now()" json:"created_at"`
}

func (DiagnosticSetItem) TableName() string { return "diagnostic_set_item" }

// DiagnosticResult is the scored outcome stored on a completed session.
type DiagnosticResult struct {
	Capability       float64            `json:"capability"`
	Accuracy         float64            `json:"accuracy"`
	SpeedScore       float64            `json:"speed_score"`
	StabilityScore   float64            `json:"stability_score"`
	CategoryAccuracy map[string]float64 `json:"category_accuracy"`
	Track            string             `json:"track"`
	ReadinessBand    string             `json:"readiness_band"`
}

// DiagnosticSession tracks one user's pass through a set. At most one
// completed session may exist per (user, set); completion is transactional.
type DiagnosticSession struct {
	ID          uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID      uuid.UUID      `gorm:"type:uuid;not null;index:idx_diag_session_user_set" json:"user_id"`
	User        *User          `gorm:"constraint:OnDelete:CASCADE;foreignKey:UserID;references:ID" json:"user,omitempty"`
	SetID       uuid.UUID      `gorm:"type:uuid;not null;index:idx_diag_session_user_set" json:"set_id"`
	Set         *DiagnosticSet `gorm:"foreignKey:SetID;references:ID" json:"set,omitempty"`
	StartedAt   time.Time      `gorm:"column:started_at;not null;default:now()" json:"started_at"`
	CompletedAt *time.Time     `gorm:"column:completed_at;index" json:"completed_at,omitempty"`
	Result      datatypes.JSON `gorm:"type:jsonb;column:result" json:"result,omitempty"`
	// InitialCapabilities maps "subcategory|band" to the capability computed
	// from the diagnostic attempts in that group.
	InitialCapabilities datatypes.JSON `gorm:"type:jsonb;column:initial_capabilities" json:"initial_capabilities,omitempty"`
	CreatedAt           time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt           time.Time      `gorm:"not null;default:now()" json:"updated_at"`
}

func (DiagnosticSession) TableName() string { return "diagnostic_session" }
