package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/ascribenow/Workandcat-sub001/internal/logger"
	"github.com/ascribenow/Workandcat-sub001/internal/types"
)

func testLogger(t interface{ Fatalf(string, ...interface{}) }) *logger.Logger {
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("init logger: %v", err)
	}
	return log
}

type fakeQuestionRepo struct {
	questions []*types.Question
}

func (f *fakeQuestionRepo) GetActive(ctx context.Context, tx *gorm.DB) ([]*types.Question, error) {
	var out []*types.Question
	for _, q := range f.questions {
		if q.Active {
			out = append(out, q)
		}
	}
	return out, nil
}

func (f *fakeQuestionRepo) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.Question, error) {
	want := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var out []*types.Question
	for _, q := range f.questions {
		if want[q.ID] {
			out = append(out, q)
		}
	}
	return out, nil
}

type fakeAttemptRepo struct {
	attempts []*types.Attempt
}

func (f *fakeAttemptRepo) Create(ctx context.Context, tx *gorm.DB, attempts []*types.Attempt) ([]*types.Attempt, error) {
	f.attempts = append(f.attempts, attempts...)
	return attempts, nil
}

func (f *fakeAttemptRepo) GetByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.Attempt, error) {
	var out []*types.Attempt
	for _, a := range f.attempts {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	return out, nil
}

type fakeTopicRepo struct {
	topics []*types.Topic
}

func (f *fakeTopicRepo) GetActive(ctx context.Context, tx *gorm.DB) ([]*types.Topic, error) {
	return f.topics, nil
}

func (f *fakeTopicRepo) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.Topic, error) {
	want := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var out []*types.Topic
	for _, tp := range f.topics {
		if want[tp.ID] {
			out = append(out, tp)
		}
	}
	return out, nil
}

type fakeMasteryRepo struct {
	upserts []*types.TopicMastery
}

func (f *fakeMasteryRepo) Upsert(ctx context.Context, tx *gorm.DB, record *types.TopicMastery) error {
	f.upserts = append(f.upserts, record)
	return nil
}

func (f *fakeMasteryRepo) GetByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.TopicMastery, error) {
	var out []*types.TopicMastery
	for _, m := range f.upserts {
		if m.UserID == userID {
			out = append(out, m)
		}
	}
	return out, nil
}

type fakeSetRepo struct {
	sets  []*types.DiagnosticSet
	items map[uuid.UUID][]*types.DiagnosticSetItem
}

func (f *fakeSetRepo) GetByName(ctx context.Context, tx *gorm.DB, name string) (*types.DiagnosticSet, error) {
	for _, s := range f.sets {
		if s.Name == name {
			return s, nil
		}
	}
	return nil, nil
}

func (f *fakeSetRepo) GetFirstActive(ctx context.Context, tx *gorm.DB) (*types.DiagnosticSet, error) {
	for _, s := range f.sets {
		if s.Active {
			return s, nil
		}
	}
	return nil, nil
}

func (f *fakeSetRepo) Create(ctx context.Context, tx *gorm.DB, set *types.DiagnosticSet, items []*types.DiagnosticSetItem) error {
	f.sets = append(f.sets, set)
	if f.items == nil {
		f.items = make(map[uuid.UUID][]*types.DiagnosticSetItem)
	}
	for _, item := range items {
		item.SetID = set.ID
	}
	f.items[set.ID] = items
	return nil
}

func (f *fakeSetRepo) GetItems(ctx context.Context, tx *gorm.DB, setID uuid.UUID) ([]*types.DiagnosticSetItem, error) {
	return f.items[setID], nil
}

type fakeSessionRepo struct {
	sessions []*types.DiagnosticSession
}

func (f *fakeSessionRepo) Create(ctx context.Context, tx *gorm.DB, session *types.DiagnosticSession) error {
	f.sessions = append(f.sessions, session)
	return nil
}

func (f *fakeSessionRepo) GetByID(ctx context.Context, tx *gorm.DB, sessionID uuid.UUID) (*types.DiagnosticSession, error) {
	for _, s := range f.sessions {
		if s.ID == sessionID {
			return s, nil
		}
	}
	return nil, nil
}

func (f *fakeSessionRepo) GetOpenByUserAndSet(ctx context.Context, tx *gorm.DB, userID, setID uuid.UUID) (*types.DiagnosticSession, error) {
	for _, s := range f.sessions {
		if s.UserID == userID && s.SetID == setID && s.CompletedAt == nil {
			return s, nil
		}
	}
	return nil, nil
}

func (f *fakeSessionRepo) GetCompletedByUserAndSet(ctx context.Context, tx *gorm.DB, userID, setID uuid.UUID) (*types.DiagnosticSession, error) {
	for _, s := range f.sessions {
		if s.UserID == userID && s.SetID == setID && s.CompletedAt != nil {
			return s, nil
		}
	}
	return nil, nil
}

func (f *fakeSessionRepo) MarkCompleted(ctx context.Context, tx *gorm.DB, sessionID uuid.UUID, result datatypes.JSON, initialCaps datatypes.JSON) (bool, error) {
	for _, s := range f.sessions {
		if s.ID == sessionID {
			if s.CompletedAt != nil {
				return false, nil
			}
			now := time.Now().UTC()
			s.CompletedAt = &now
			s.Result = result
			s.InitialCapabilities = initialCaps
			return true, nil
		}
	}
	return false, nil
}

type fakePlanRepo struct {
	plans []*types.StudyPlan
	units map[uuid.UUID][]*types.PlanUnit
}

func (f *fakePlanRepo) Create(ctx context.Context, tx *gorm.DB, plan *types.StudyPlan, units []*types.PlanUnit) error {
	f.plans = append(f.plans, plan)
	if f.units == nil {
		f.units = make(map[uuid.UUID][]*types.PlanUnit)
	}
	for _, u := range units {
		u.PlanID = plan.ID
	}
	f.units[plan.ID] = units
	return nil
}

func (f *fakePlanRepo) GetByID(ctx context.Context, tx *gorm.DB, planID uuid.UUID) (*types.StudyPlan, error) {
	for _, p := range f.plans {
		if p.ID == planID {
			return p, nil
		}
	}
	return nil, nil
}

func (f *fakePlanRepo) GetActive(ctx context.Context, tx *gorm.DB) ([]*types.StudyPlan, error) {
	var out []*types.StudyPlan
	for _, p := range f.plans {
		if p.Status == types.PlanStatusActive {
			out = append(out, p)
		}
	}
	return out, nil
}

type fakeUnitRepo struct {
	units   []*types.PlanUnit
	updated []uuid.UUID
}

func (f *fakeUnitRepo) GetByPlan(ctx context.Context, tx *gorm.DB, planID uuid.UUID) ([]*types.PlanUnit, error) {
	var out []*types.PlanUnit
	for _, u := range f.units {
		if u.PlanID == planID {
			out = append(out, u)
		}
	}
	return out, nil
}

func (f *fakeUnitRepo) GetPendingFrom(ctx context.Context, tx *gorm.DB, planID uuid.UUID, from time.Time, limit int) ([]*types.PlanUnit, error) {
	var out []*types.PlanUnit
	for _, u := range f.units {
		if len(out) >= limit {
			break
		}
		if u.PlanID == planID && u.Status == types.PlanUnitStatusPending && !u.Day.Before(from) {
			out = append(out, u)
		}
	}
	return out, nil
}

func (f *fakeUnitRepo) UpdatePayload(ctx context.Context, tx *gorm.DB, unitID uuid.UUID, payload datatypes.JSON) (bool, error) {
	for _, u := range f.units {
		if u.ID == unitID {
			if u.Status != types.PlanUnitStatusPending {
				return false, nil
			}
			u.Payload = payload
			f.updated = append(f.updated, unitID)
			return true, nil
		}
	}
	return false, nil
}
