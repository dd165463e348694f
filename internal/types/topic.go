package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// The five fixed top-level categories of the question bank. Every topic and
// every diagnostic blueprint slot belongs to exactly one of these.
const (
	CategoryArithmetic   = "Arithmetic"
	CategoryAlgebra      = "Algebra"
	CategoryGeometry     = "Geometry & Mensuration"
	CategoryNumberSystem = "Number System"
	CategoryModernMath   = "Modern Math"
)

// Categories lists the top-level categories in canonical order.
var Categories = []string{
	CategoryArithmetic,
	CategoryAlgebra,
	CategoryGeometry,
	CategoryNumberSystem,
	CategoryModernMath,
}

// Topic is a node in the two-level syllabus hierarchy. A nil ParentID marks
// a top-level category node; children are subcategories.
type Topic struct {
	ID               uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	Name             string         `gorm:"column:name;not null;index" json:"name"`
	ParentID         *uuid.UUID     `gorm:"type:uuid;index" json:"parent_id,omitempty"`
	Parent           *Topic         `gorm:"foreignKey:ParentID;references:ID" json:"parent,omitempty"`
	Category         string         `gorm:"column:category;not null;index" json:"category"`
	CentralityWeight float64        `gorm:"column:centrality_weight;not null;default:1" json:"centrality_weight"`
	Active           bool           `gorm:"column:active;not null;default:true;index" json:"active"`
	CreatedAt        time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt        time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt        gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Topic) TableName() string { return "topic" }
