package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/ascribenow/Workandcat-sub001/internal/config"
	"github.com/ascribenow/Workandcat-sub001/internal/logger"
	"github.com/ascribenow/Workandcat-sub001/internal/services"
	"github.com/ascribenow/Workandcat-sub001/internal/types"
)

type stubPlanRepo struct {
	plans []*types.StudyPlan
}

func (s *stubPlanRepo) Create(ctx context.Context, tx *gorm.DB, plan *types.StudyPlan, units []*types.PlanUnit) error {
	s.plans = append(s.plans, plan)
	return nil
}

func (s *stubPlanRepo) GetByID(ctx context.Context, tx *gorm.DB, planID uuid.UUID) (*types.StudyPlan, error) {
	for _, p := range s.plans {
		if p.ID == planID {
			return p, nil
		}
	}
	return nil, nil
}

func (s *stubPlanRepo) GetActive(ctx context.Context, tx *gorm.DB) ([]*types.StudyPlan, error) {
	return s.plans, nil
}

type stubQuestionRepo struct{}

func (stubQuestionRepo) GetActive(ctx context.Context, tx *gorm.DB) ([]*types.Question, error) {
	return nil, nil
}

func (stubQuestionRepo) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.Question, error) {
	return nil, nil
}

type stubAttemptRepo struct{}

func (stubAttemptRepo) Create(ctx context.Context, tx *gorm.DB, attempts []*types.Attempt) ([]*types.Attempt, error) {
	return attempts, nil
}

func (stubAttemptRepo) GetByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.Attempt, error) {
	return nil, nil
}

type stubTopicRepo struct{}

func (stubTopicRepo) GetActive(ctx context.Context, tx *gorm.DB) ([]*types.Topic, error) {
	return nil, nil
}

func (stubTopicRepo) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.Topic, error) {
	return nil, nil
}

type stubMasteryRepo struct{}

func (stubMasteryRepo) Upsert(ctx context.Context, tx *gorm.DB, record *types.TopicMastery) error {
	return nil
}

func (stubMasteryRepo) GetByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.TopicMastery, error) {
	return nil, nil
}

type stubUnitRepo struct{}

func (stubUnitRepo) GetByPlan(ctx context.Context, tx *gorm.DB, planID uuid.UUID) ([]*types.PlanUnit, error) {
	return nil, nil
}

func (stubUnitRepo) GetPendingFrom(ctx context.Context, tx *gorm.DB, planID uuid.UUID, from time.Time, limit int) ([]*types.PlanUnit, error) {
	return nil, nil
}

func (stubUnitRepo) UpdatePayload(ctx context.Context, tx *gorm.DB, unitID uuid.UUID, payload datatypes.JSON) (bool, error) {
	return true, nil
}

func newStubPlanService(t *testing.T, log *logger.Logger, planRepo *stubPlanRepo) *services.PlanService {
	t.Helper()
	cfg := config.Default()
	mastery := services.NewMasteryService(nil, log, cfg, stubAttemptRepo{}, stubQuestionRepo{}, stubTopicRepo{}, stubMasteryRepo{})
	return services.NewPlanService(nil, log, cfg, mastery, services.NewSpacingPolicy(cfg.Spacing), stubQuestionRepo{}, stubAttemptRepo{}, planRepo, stubUnitRepo{})
}

func TestRunNoActivePlans(t *testing.T) {
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("init logger: %v", err)
	}
	repo := &stubPlanRepo{}
	adjuster := NewNightlyAdjuster(log, repo, newStubPlanService(t, log, repo))

	if err := adjuster.Run(context.Background()); err != nil {
		t.Fatalf("Run with no plans: %v", err)
	}
}

func TestRunSkipsFailingPlans(t *testing.T) {
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("init logger: %v", err)
	}

	// The adjuster sees an active plan the service's repo does not know
	// about, so the per-plan adjustment fails. Run must swallow that.
	listRepo := &stubPlanRepo{plans: []*types.StudyPlan{{
		ID:     uuid.New(),
		UserID: uuid.New(),
		Track:  types.TrackBeginner,
		Status: types.PlanStatusActive,
	}}}
	svc := newStubPlanService(t, log, &stubPlanRepo{})

	adjuster := NewNightlyAdjuster(log, listRepo, svc)
	if err := adjuster.Run(context.Background()); err != nil {
		t.Fatalf("Run should skip failing plans, got %v", err)
	}
}
