package repos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/ascribenow/Workandcat-sub001/internal/logger"
	"github.com/ascribenow/Workandcat-sub001/internal/types"
)

type PlanUnitRepo interface {
	GetByPlan(ctx context.Context, tx *gorm.DB, planID uuid.UUID) ([]*types.PlanUnit, error)
	// GetPendingFrom returns up to limit pending units of the plan whose
	// day is on or after from, ordered by day.
	GetPendingFrom(ctx context.Context, tx *gorm.DB, planID uuid.UUID, from time.Time, limit int) ([]*types.PlanUnit, error)
	// UpdatePayload rewrites the generated payload of a unit, guarded on
	// the unit still being pending. Returns whether a row was updated.
	UpdatePayload(ctx context.Context, tx *gorm.DB, unitID uuid.UUID, payload datatypes.JSON) (bool, error)
}

type planUnitRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPlanUnitRepo(db *gorm.DB, baseLog *logger.Logger) PlanUnitRepo {
	return &planUnitRepo{db: db, log: baseLog.With("repo", "PlanUnitRepo")}
}

func (r *planUnitRepo) GetByPlan(ctx context.Context, tx *gorm.DB, planID uuid.UUID) ([]*types.PlanUnit, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.PlanUnit
	if planID == uuid.Nil {
		return results, nil
	}

	if err := transaction.WithContext(ctx).
		Where("plan_id = ?", planID).
		Order("day ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *planUnitRepo) GetPendingFrom(ctx context.Context, tx *gorm.DB, planID uuid.UUID, from time.Time, limit int) ([]*types.PlanUnit, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.PlanUnit
	if planID == uuid.Nil {
		return results, nil
	}

	query := transaction.WithContext(ctx).
		Where("plan_id = ? AND status = ? AND day >= ?", planID, types.PlanUnitStatusPending, from).
		Order("day ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *planUnitRepo) UpdatePayload(ctx context.Context, tx *gorm.DB, unitID uuid.UUID, payload datatypes.JSON) (bool, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	res := transaction.WithContext(ctx).
		Model(&types.PlanUnit{}).
		Where("id = ? AND status = ?", unitID, types.PlanUnitStatusPending).
		Updates(map[string]interface{}{
			"payload":    payload,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
