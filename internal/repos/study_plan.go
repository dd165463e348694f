package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ascribenow/Workandcat-sub001/internal/logger"
	"github.com/ascribenow/Workandcat-sub001/internal/types"
)

type StudyPlanRepo interface {
	// Create persists the plan and its full unit calendar in one
	// transaction.
	Create(ctx context.Context, tx *gorm.DB, plan *types.StudyPlan, units []*types.PlanUnit) error
	GetByID(ctx context.Context, tx *gorm.DB, planID uuid.UUID) (*types.StudyPlan, error)
	GetActive(ctx context.Context, tx *gorm.DB) ([]*types.StudyPlan, error)
}

type studyPlanRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewStudyPlanRepo(db *gorm.DB, baseLog *logger.Logger) StudyPlanRepo {
	return &studyPlanRepo{db: db, log: baseLog.With("repo", "StudyPlanRepo")}
}

func (r *studyPlanRepo) Create(ctx context.Context, tx *gorm.DB, plan *types.StudyPlan, units []*types.PlanUnit) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	return transaction.WithContext(ctx).Transaction(func(inner *gorm.DB) error {
		if err := inner.Create(plan).Error; err != nil {
			return err
		}
		for _, unit := range units {
			unit.PlanID = plan.ID
		}
		if len(units) == 0 {
			return nil
		}
		return inner.CreateInBatches(&units, 30).Error
	})
}

func (r *studyPlanRepo) GetByID(ctx context.Context, tx *gorm.DB, planID uuid.UUID) (*types.StudyPlan, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if planID == uuid.Nil {
		return nil, nil
	}

	var row types.StudyPlan
	err := transaction.WithContext(ctx).
		Where("id = ?", planID).
		Limit(1).
		Find(&row).Error
	if err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, nil
	}
	return &row, nil
}

func (r *studyPlanRepo) GetActive(ctx context.Context, tx *gorm.DB) ([]*types.StudyPlan, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.StudyPlan
	if err := transaction.WithContext(ctx).
		Where("status = ?", types.PlanStatusActive).
		Order("created_at ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
