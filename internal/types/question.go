package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	DifficultyEasy   = "Easy"
	DifficultyMedium = "Medium"
	DifficultyHard   = "Hard"
)

// DifficultyBands lists the bands from easiest to hardest.
var DifficultyBands = []string{DifficultyEasy, DifficultyMedium, DifficultyHard}

// Question rows are created by content ingestion and are read-only to this
// core. Subcategory is denormalized from the topic so selection can bucket
// without a join.
type Question struct {
	ID              uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	TopicID         uuid.UUID      `gorm:"type:uuid;not null;index" json:"topic_id"`
	Topic           *Topic         `gorm:"foreignKey:TopicID;references:ID" json:"topic,omitempty"`
	Stem            string         `gorm:"column:stem;type:text;not null" json:"stem"`
	Subcategory     string         `gorm:"column:subcategory;not null;index" json:"subcategory"`
	DifficultyBand  string         `gorm:"column:difficulty_band;not null;index" json:"difficulty_band"`
	DifficultyScore float64        `gorm:"column:difficulty_score;not null;default:0" json:"difficulty_score"`
	ImportanceIndex float64        `gorm:"column:importance_index;not null;default:0" json:"importance_index"`
	LearningImpact  float64        `gorm:"column:learning_impact;not null;default:0" json:"learning_impact"`
	Active          bool           `gorm:"column:active;not null;default:true;index" json:"active"`
	CreatedAt       time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt       time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Question) TableName() string { return "question" }
