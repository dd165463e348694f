package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ascribenow/Workandcat-sub001/internal/logger"
	"github.com/ascribenow/Workandcat-sub001/internal/types"
)

type DiagnosticSetRepo interface {
	GetByName(ctx context.Context, tx *gorm.DB, name string) (*types.DiagnosticSet, error)
	GetFirstActive(ctx context.Context, tx *gorm.DB) (*types.DiagnosticSet, error)
	// Create persists the set and its items in one transaction.
	Create(ctx context.Context, tx *gorm.DB, set *types.DiagnosticSet, items []*types.DiagnosticSetItem) error
	GetItems(ctx context.Context, tx *gorm.DB, setID uuid.UUID) ([]*types.DiagnosticSetItem, error)
}

type diagnosticSetRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewDiagnosticSetRepo(db *gorm.DB, baseLog *logger.Logger) DiagnosticSetRepo {
	return &diagnosticSetRepo{db: db, log: baseLog.With("repo", "DiagnosticSetRepo")}
}

func (r *diagnosticSetRepo) GetByName(ctx context.Context, tx *gorm.DB, name string) (*types.DiagnosticSet, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var row types.DiagnosticSet
	err := transaction.WithContext(ctx).
		Where("name = ?", name).
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

func (r *diagnosticSetRepo) GetFirstActive(ctx context.Context, tx *gorm.DB) (*types.DiagnosticSet, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var row types.DiagnosticSet
	err := transaction.WithContext(ctx).
		Where("active = ?", true).
		Order("created_at ASC").
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

func (r *diagnosticSetRepo) Create(ctx context.Context, tx *gorm.DB, set *types.DiagnosticSet, items []*types.DiagnosticSetItem) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	return transaction.WithContext(ctx).Transaction(func(inner *gorm.DB) error {
		if err := inner.Create(set).Error; err != nil {
			return err
		}
		for _, item := range items {
			item.SetID = set.ID
		}
		if len(items) == 0 {
			return nil
		}
		return inner.Create(&items).Error
	})
}

func (r *diagnosticSetRepo) GetItems(ctx context.Context, tx *gorm.DB, setID uuid.UUID) ([]*types.DiagnosticSetItem, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.DiagnosticSetItem
	if setID == uuid.Nil {
		return results, nil
	}

	if err := transaction.WithContext(ctx).
		Where("set_id = ?", setID).
		Order("sequence ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
