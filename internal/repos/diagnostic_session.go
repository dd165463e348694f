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

type DiagnosticSessionRepo interface {
	Create(ctx context.Context, tx *gorm.DB, session *types.DiagnosticSession) error
	GetByID(ctx context.Context, tx *gorm.DB, sessionID uuid.UUID) (*types.DiagnosticSession, error)
	GetOpenByUserAndSet(ctx context.Context, tx *gorm.DB, userID, setID uuid.UUID) (*types.DiagnosticSession, error)
	GetCompletedByUserAndSet(ctx context.Context, tx *gorm.DB, userID, setID uuid.UUID) (*types.DiagnosticSession, error)
	// MarkCompleted stamps completion and stores the result blobs. The
	// update is guarded on completed_at still being NULL; it reports
	// whether a row was actually updated so callers can detect a lost
	// race.
	MarkCompleted(ctx context.Context, tx *gorm.DB, sessionID uuid.UUID, result datatypes.JSON, initialCaps datatypes.JSON) (bool, error)
}

type diagnosticSessionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewDiagnosticSessionRepo(db *gorm.DB, baseLog *logger.Logger) DiagnosticSessionRepo {
	return &diagnosticSessionRepo{db: db, log: baseLog.With("repo", "DiagnosticSessionRepo")}
}

func (r *diagnosticSessionRepo) Create(ctx context.Context, tx *gorm.DB, session *types.DiagnosticSession) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).Create(session).Error
}

func (r *diagnosticSessionRepo) GetByID(ctx context.Context, tx *gorm.DB, sessionID uuid.UUID) (*types.DiagnosticSession, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if sessionID == uuid.Nil {
		return nil, nil
	}

	var row types.DiagnosticSession
	err := transaction.WithContext(ctx).
		Where("id = ?", sessionID).
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

func (r *diagnosticSessionRepo) GetOpenByUserAndSet(ctx context.Context, tx *gorm.DB, userID, setID uuid.UUID) (*types.DiagnosticSession, error) {
	return r.getByUserAndSet(ctx, tx, userID, setID, false)
}

func (r *diagnosticSessionRepo) GetCompletedByUserAndSet(ctx context.Context, tx *gorm.DB, userID, setID uuid.UUID) (*types.DiagnosticSession, error) {
	return r.getByUserAndSet(ctx, tx, userID, setID, true)
}

func (r *diagnosticSessionRepo) getByUserAndSet(ctx context.Context, tx *gorm.DB, userID, setID uuid.UUID, completed bool) (*types.DiagnosticSession, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if userID == uuid.Nil || setID == uuid.Nil {
		return nil, nil
	}

	query := transaction.WithContext(ctx).Where("user_id = ? AND set_id = ?", userID, setID)
	if completed {
		query = query.Where("completed_at IS NOT NULL")
	} else {
		query = query.Where("completed_at IS NULL")
	}

	var row types.DiagnosticSession
	if err := query.Limit(1).Find(&row).Error; err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, nil
	}
	return &row, nil
}

func (r *diagnosticSessionRepo) MarkCompleted(ctx context.Context, tx *gorm.DB, sessionID uuid.UUID, result datatypes.JSON, initialCaps datatypes.JSON) (bool, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	now := time.Now().UTC()
	res := transaction.WithContext(ctx).
		Model(&types.DiagnosticSession{}).
		Where("id = ? AND completed_at IS NULL", sessionID).
		Updates(map[string]interface{}{
			"completed_at":         now,
			"result":               result,
			"initial_capabilities": initialCaps,
			"updated_at":           now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
