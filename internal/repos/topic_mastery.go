package repos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ascribenow/Workandcat-sub001/internal/logger"
	"github.com/ascribenow/Workandcat-sub001/internal/types"
)

type TopicMasteryRepo interface {
	Upsert(ctx context.Context, tx *gorm.DB, record *types.TopicMastery) error
	GetByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.TopicMastery, error)
}

type topicMasteryRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewTopicMasteryRepo(db *gorm.DB, baseLog *logger.Logger) TopicMasteryRepo {
	return &topicMasteryRepo{db: db, log: baseLog.With("repo", "TopicMasteryRepo")}
}

func (r *topicMasteryRepo) Upsert(ctx context.Context, tx *gorm.DB, record *types.TopicMastery) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if record == nil || record.UserID == uuid.Nil || record.TopicID == uuid.Nil {
		return nil
	}

	now := time.Now().UTC()
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	record.LastUpdated = now
	record.UpdatedAt = now

	// On conflict, overwrite the derived metrics; the row itself survives.
	return transaction.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}, {Name: "topic_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"mastery_pct", "mastery_category",
				"accuracy_easy", "accuracy_medium", "accuracy_hard",
				"exposure_score", "efficiency_score",
				"last_updated", "updated_at",
			}),
		}).
		Create(record).Error
}

func (r *topicMasteryRepo) GetByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.TopicMastery, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.TopicMastery
	if userID == uuid.Nil {
		return results, nil
	}

	if err := transaction.WithContext(ctx).
		Where("user_id = ?", userID).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
