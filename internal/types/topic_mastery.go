package types

import (
	"time"

	"github.com/google/uuid"
)

const (
	MasteryCategoryNeedsFocus = "Needs focus"
	MasteryCategoryOnTrack    = "On track"
	MasteryCategoryMastered   = "Mastered"
)

// TopicMastery is the persisted per-(user, topic) proficiency record. Rows
// are upserted whenever new attempts exist for the pair and never deleted.
type TopicMastery struct {
	ID              uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID          uuid.UUID `gorm:"type:uuid;not null;index:idx_mastery_user_topic,unique" json:"user_id"`
	User            *User     `gorm:"constraint:OnDelete:CASCADE;foreignKey:UserID;references:ID" json:"user,omitempty"`
	TopicID         uuid.UUID `gorm:"type:uuid;not null;index:idx_mastery_user_topic,unique" json:"topic_id"`
	Topic           *Topic    `gorm:"foreignKey:TopicID;references:ID" json:"topic,omitempty"`
	MasteryPct      float64   `gorm:"column:mastery_pct;not null" json:"mastery_pct"`
	MasteryCategory string    `gorm:"column:mastery_category;not null" json:"mastery_category"`
	AccuracyEasy    float64   `gorm:"column:accuracy_easy;not null;default:0" json:"accuracy_easy"`
	AccuracyMedium  float64   `gorm:"column:accuracy_medium;not null;default:0" json:"accuracy_medium"`
	AccuracyHard    float64   `gorm:"column:accuracy_hard;not null;default:0" json:"accuracy_hard"`
	ExposureScore   float64   `gorm:"column:exposure_score;not null;default:0" json:"exposure_score"`
	EfficiencyScore float64   `gorm:"column:efficiency_score;not null;default:0" json:"efficiency_score"`
	LastUpdated     time.Time `gorm:"column:last_updated;not null;default:now()" json:"last_updated"`
	CreatedAt       time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt       time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (TopicMastery) TableName() string { return "topic_mastery" }
