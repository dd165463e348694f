package types

import (
	"time"

	"github.com/google/uuid"
)

// Attempt is append-only. DifficultyBand and Subcategory are snapshots taken
// at attempt time so later question edits do not rewrite history.
type Attempt struct {
	ID             uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID         uuid.UUID `gorm:"type:uuid;not null;index:idx_attempt_user_question" json:"user_id"`
	User           *User     `gorm:"constraint:OnDelete:CASCADE;foreignKey:UserID;references:ID" json:"user,omitempty"`
	QuestionID     uuid.UUID `gorm:"type:uuid;not null;index:idx_attempt_user_question" json:"question_id"`
	Question       *Question `gorm:"foreignKey:QuestionID;references:ID" json:"question,omitempty"`
	Correct        bool      `gorm:"column:correct;not null" json:"correct"`
	Skipped        bool      `gorm:"column:skipped;not null;default:false" json:"skipped"`
	TimeSec        float64   `gorm:"column:time_sec;not null;default:0" json:"time_sec"`
	DifficultyBand string    `gorm:"column:difficulty_band;not null" json:"difficulty_band"`
	Subcategory    string    `gorm:"column:subcategory;not null" json:"subcategory"`
	CreatedAt      time.Time `gorm:"not null;default:now();index" json:"created_at"`
}

func (Attempt) TableName() string { return "attempt" }
