package services

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/ascribenow/Workandcat-sub001/internal/config"
	"github.com/ascribenow/Workandcat-sub001/internal/logger"
	"github.com/ascribenow/Workandcat-sub001/internal/repos"
	"github.com/ascribenow/Workandcat-sub001/internal/types"
)

type PlanService struct {
	db  *gorm.DB
	log *logger.Logger
	cfg config.EngineConfig

	mastery      *MasteryService
	spacing      SpacingPolicy
	questionRepo repos.QuestionRepo
	attemptRepo  repos.AttemptRepo
	planRepo     repos.StudyPlanRepo
	unitRepo     repos.PlanUnitRepo
}

func NewPlanService(db *gorm.DB, baseLog *logger.Logger, cfg config.EngineConfig, mastery *MasteryService, spacing SpacingPolicy, questionRepo repos.QuestionRepo, attemptRepo repos.AttemptRepo, planRepo repos.StudyPlanRepo, unitRepo repos.PlanUnitRepo) *PlanService {
	return &PlanService{
		db:           db,
		log:          baseLog.With("service", "PlanService"),
		cfg:          cfg,
		mastery:      mastery,
		spacing:      spacing,
		questionRepo: questionRepo,
		attemptRepo:  attemptRepo,
		planRepo:     planRepo,
		unitRepo:     unitRepo,
	}
}

// CreatePlan builds a 90-day calendar of daily question sets for the user
// and persists it with the plan in one transaction.
func (s *PlanService) CreatePlan(ctx context.Context, userID uuid.UUID, track string, weekdayMinutes, weekendMinutes int, startDate time.Time) (uuid.UUID, error) {
	profile, err := s.mastery.BuildProfile(ctx, userID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("build mastery profile: %w", err)
	}
	questions, err := s.questionRepo.GetActive(ctx, nil)
	if err != nil {
		return uuid.Nil, fmt.Errorf("fetch candidates: %w", err)
	}
	if len(questions) == 0 {
		return uuid.Nil, ErrNoActiveQuestions
	}
	attempts, err := s.attemptRepo.GetByUser(ctx, nil, userID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("fetch attempt history: %w", err)
	}

	now := time.Now().UTC()
	stats := collectAttemptStats(attempts, now, s.spacing.RecentWindow())
	startDay := startDate.Truncate(24 * time.Hour)
	// rand.Rand is not safe for concurrent use; scope one to this call.
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	plan := &types.StudyPlan{
		ID:                 uuid.New(),
		UserID:             userID,
		Track:              track,
		StartDate:          startDay,
		WeekdayMinutes:     weekdayMinutes,
		WeekendMinutes:     weekendMinutes,
		PreparednessTarget: preparednessAmbition(profile, s.cfg.Plan),
		Status:             types.PlanStatusActive,
	}

	units := make([]*types.PlanUnit, 0, s.cfg.Plan.HorizonDays)
	// servedInPlan feeds the frequency penalty so consecutive days do not
	// converge on the same high-score questions.
	servedInPlan := make(map[uuid.UUID]int)

	for dayIdx := 0; dayIdx < s.cfg.Plan.HorizonDays; dayIdx++ {
		day := startDay.AddDate(0, 0, dayIdx)
		count := dailyQuestionCount(track, isWeekend(day))

		picked := s.selectForDay(profile, questions, stats, servedInPlan, now, dayIdx, count, rng)
		payload, err := encodePayload(picked)
		if err != nil {
			return uuid.Nil, fmt.Errorf("encode unit payload: %w", err)
		}
		for _, c := range picked {
			servedInPlan[c.Question.ID]++
		}

		units = append(units, &types.PlanUnit{
			ID:      uuid.New(),
			Day:     day,
			Payload: payload,
			Status:  types.PlanUnitStatusPending,
		})
	}

	if err := s.planRepo.Create(ctx, nil, plan, units); err != nil {
		return uuid.Nil, fmt.Errorf("persist plan: %w", err)
	}
	s.log.Info("study plan created", "plan_id", plan.ID, "units", len(units), "track", track)
	return plan.ID, nil
}

// AdjustNightly refreshes the payloads of the plan's next pending units
// from a fresh mastery profile. Completed and in-progress units are never
// touched; all updates for the plan commit in one transaction.
func (s *PlanService) AdjustNightly(ctx context.Context, planID uuid.UUID) error {
	plan, err := s.planRepo.GetByID(ctx, nil, planID)
	if err != nil {
		return fmt.Errorf("fetch plan: %w", err)
	}
	if plan == nil {
		return ErrPlanNotFound
	}

	// Refreshing also upserts the TopicMastery rows, so the nightly run
	// doubles as the mastery-record recompute for the user.
	profile, err := s.mastery.RefreshMasteryRecords(ctx, plan.UserID)
	if err != nil {
		return fmt.Errorf("refresh mastery: %w", err)
	}
	questions, err := s.questionRepo.GetActive(ctx, nil)
	if err != nil {
		return fmt.Errorf("fetch candidates: %w", err)
	}
	if len(questions) == 0 {
		return ErrNoActiveQuestions
	}
	attempts, err := s.attemptRepo.GetByUser(ctx, nil, plan.UserID)
	if err != nil {
		return fmt.Errorf("fetch attempt history: %w", err)
	}

	now := time.Now().UTC()
	today := now.Truncate(24 * time.Hour)
	stats := collectAttemptStats(attempts, now, s.spacing.RecentWindow())

	units, err := s.unitRepo.GetPendingFrom(ctx, nil, plan.ID, today, s.cfg.Plan.NightlyWindowUnits)
	if err != nil {
		return fmt.Errorf("fetch pending units: %w", err)
	}
	if len(units) == 0 {
		return nil
	}

	servedInPlan := make(map[uuid.UUID]int)
	// The nightly batch adjusts plans concurrently; each call gets its own
	// rng because rand.Rand is not safe for concurrent use.
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, unit := range units {
			dayIdx := int(unit.Day.Sub(plan.StartDate).Hours() / 24)
			count := dailyQuestionCount(plan.Track, isWeekend(unit.Day))

			picked := s.selectForDay(profile, questions, stats, servedInPlan, now, dayIdx, count, rng)
			payload, err := encodePayload(picked)
			if err != nil {
				return fmt.Errorf("encode unit payload: %w", err)
			}
			for _, c := range picked {
				servedInPlan[c.Question.ID]++
			}

			updated, err := s.unitRepo.UpdatePayload(ctx, tx, unit.ID, payload)
			if err != nil {
				return fmt.Errorf("update unit %s: %w", unit.ID, err)
			}
			if !updated {
				// Unit left pending status between fetch and write;
				// leave it alone.
				s.log.Debug("plan unit no longer pending, skipped", "unit_id", unit.ID)
			}
		}
		return nil
	})
}

// selectForDay runs the quota selection with the phase-adjusted category
// split for the given day offset.
func (s *PlanService) selectForDay(profile *MasteryProfile, questions []*types.Question, stats map[uuid.UUID]attemptStats, servedInPlan map[uuid.UUID]int, now time.Time, dayIdx, count int, rng *rand.Rand) []*candidate {
	// Fold plan-local serves into the history stats so the frequency
	// penalty sees them.
	effective := make(map[uuid.UUID]attemptStats, len(stats))
	for id, st := range stats {
		effective[id] = st
	}
	for id, n := range servedInPlan {
		st := effective[id]
		st.Count += n
		effective[id] = st
	}

	cands := buildCandidates(profile, questions, effective, s.spacing, now, s.cfg.Selector)
	bandShares := bandMixFor(profile.Overall, s.cfg.Selector)
	catShares := phaseCategoryShares(dayIdx, s.cfg.Plan)
	return pickCandidates(cands, count, bandShares, catShares, rng)
}

// preparednessAmbition measures how much mastery the plan asks the user to
// gain, normalized to the horizon and clamped to [0,1].
func preparednessAmbition(profile *MasteryProfile, cfg config.PlanConfig) float64 {
	current := cfg.DefaultMastery
	if !profile.Empty() {
		current = profile.Overall
	}
	target := current + cfg.MasteryGainTarget
	if target > cfg.MasteryCeiling {
		target = cfg.MasteryCeiling
	}
	daysAvailable := cfg.HorizonDays
	if daysAvailable <= 0 {
		daysAvailable = 90
	}
	ambition := (target - current) * (90.0 / float64(daysAvailable))
	return clamp01(ambition)
}

// phaseCategoryShares shifts the weak/on-track/mastered split across the
// three plan phases: weak-topic emphasis first, balance in the middle,
// consolidation and mastered-topic challenge at the end.
func phaseCategoryShares(dayIdx int, cfg config.PlanConfig) map[string]float64 {
	switch {
	case dayIdx < 30:
		return map[string]float64{
			types.MasteryCategoryNeedsFocus: cfg.WeakShare + 0.15,
			types.MasteryCategoryOnTrack:    cfg.OnTrackShare - 0.10,
			types.MasteryCategoryMastered:   cfg.MasteredShare - 0.05,
		}
	case dayIdx < 60:
		return map[string]float64{
			types.MasteryCategoryNeedsFocus: cfg.WeakShare,
			types.MasteryCategoryOnTrack:    cfg.OnTrackShare,
			types.MasteryCategoryMastered:   cfg.MasteredShare,
		}
	default:
		return map[string]float64{
			types.MasteryCategoryNeedsFocus: cfg.WeakShare - 0.30,
			types.MasteryCategoryOnTrack:    cfg.OnTrackShare + 0.05,
			types.MasteryCategoryMastered:   cfg.MasteredShare + 0.25,
		}
	}
}

// dailyQuestionCount is the per-day target by track, higher on weekends.
func dailyQuestionCount(track string, weekend bool) int {
	switch track {
	case types.TrackGood, types.TrackAdvanced:
		if weekend {
			return 40
		}
		return 25
	case types.TrackIntermediate:
		if weekend {
			return 30
		}
		return 20
	default:
		if weekend {
			return 25
		}
		return 15
	}
}

func isWeekend(day time.Time) bool {
	wd := day.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// encodePayload builds the stored unit payload: ordered question ids plus
// the focus-area labels derived from the weakest picked topics.
func encodePayload(picked []*candidate) (datatypes.JSON, error) {
	payload := types.PlanUnitPayload{
		QuestionIDs: make([]uuid.UUID, 0, len(picked)),
		FocusAreas:  focusAreas(picked),
	}
	for _, c := range picked {
		payload.QuestionIDs = append(payload.QuestionIDs, c.Question.ID)
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(raw), nil
}

// focusAreas lists up to three subcategories the day concentrates on,
// preferring needs-focus material.
func focusAreas(picked []*candidate) []string {
	const maxAreas = 3
	areas := make([]string, 0, maxAreas)
	seen := make(map[string]bool)

	add := func(label string) bool {
		if label == "" || seen[label] {
			return false
		}
		seen[label] = true
		areas = append(areas, label)
		return len(areas) >= maxAreas
	}

	for _, c := range picked {
		if c.MasteryCategory != types.MasteryCategoryNeedsFocus {
			continue
		}
		if add(c.Question.Subcategory) {
			return areas
		}
	}
	for _, c := range picked {
		if add(c.Question.Subcategory) {
			return areas
		}
	}
	return areas
}
