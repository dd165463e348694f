package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ascribenow/Workandcat-sub001/internal/config"
	"github.com/ascribenow/Workandcat-sub001/internal/logger"
	"github.com/ascribenow/Workandcat-sub001/internal/repos"
	"github.com/ascribenow/Workandcat-sub001/internal/types"
)

// TopicMasteryStat is one topic's slice of a mastery profile.
type TopicMasteryStat struct {
	TopicID         uuid.UUID
	TopicName       string
	Category        string
	Mastery         float64
	MasteryCategory string
	AccuracyEasy    float64
	AccuracyMedium  float64
	AccuracyHard    float64
	Exposure        float64
	Efficiency      float64
	AttemptCount    int
}

// MasteryProfile is a read-only snapshot of a user's proficiency, computed
// once per operation and never mutated afterwards. Downstream selection must
// work from this snapshot rather than re-querying mid-computation.
type MasteryProfile struct {
	UserID           uuid.UUID
	Topics           map[uuid.UUID]TopicMasteryStat
	Overall          float64
	CategoryAverages map[string]float64
}

// MasteryFor returns the topic's mastery, or 0 for a topic the user has
// never attempted (an unseen topic is maximally in need of work).
func (p *MasteryProfile) MasteryFor(topicID uuid.UUID) float64 {
	if p == nil {
		return 0
	}
	if stat, ok := p.Topics[topicID]; ok {
		return stat.Mastery
	}
	return 0
}

// CategoryFor returns the mastery category label for the topic; unseen
// topics are "Needs focus".
func (p *MasteryProfile) CategoryFor(topicID uuid.UUID) string {
	if p == nil {
		return types.MasteryCategoryNeedsFocus
	}
	if stat, ok := p.Topics[topicID]; ok {
		return stat.MasteryCategory
	}
	return types.MasteryCategoryNeedsFocus
}

// Empty reports whether the user has no attempt history at all.
func (p *MasteryProfile) Empty() bool {
	return p == nil || len(p.Topics) == 0
}

type MasteryService struct {
	db  *gorm.DB
	log *logger.Logger
	cfg config.EngineConfig

	attemptRepo  repos.AttemptRepo
	questionRepo repos.QuestionRepo
	topicRepo    repos.TopicRepo
	masteryRepo  repos.TopicMasteryRepo
}

func NewMasteryService(db *gorm.DB, baseLog *logger.Logger, cfg config.EngineConfig, attemptRepo repos.AttemptRepo, questionRepo repos.QuestionRepo, topicRepo repos.TopicRepo, masteryRepo repos.TopicMasteryRepo) *MasteryService {
	return &MasteryService{
		db:           db,
		log:          baseLog.With("service", "MasteryService"),
		cfg:          cfg,
		attemptRepo:  attemptRepo,
		questionRepo: questionRepo,
		topicRepo:    topicRepo,
		masteryRepo:  masteryRepo,
	}
}

// BuildProfile fetches the user's attempt history once and aggregates it
// into a profile snapshot. An empty history yields an empty profile with
// overall mastery 0; it is not an error.
func (s *MasteryService) BuildProfile(ctx context.Context, userID uuid.UUID) (*MasteryProfile, error) {
	attempts, err := s.attemptRepo.GetByUser(ctx, nil, userID)
	if err != nil {
		return nil, fmt.Errorf("fetch attempts: %w", err)
	}

	questionIDs := make([]uuid.UUID, 0, len(attempts))
	seen := make(map[uuid.UUID]bool, len(attempts))
	for _, a := range attempts {
		if !seen[a.QuestionID] {
			seen[a.QuestionID] = true
			questionIDs = append(questionIDs, a.QuestionID)
		}
	}
	questions, err := s.questionRepo.GetByIDs(ctx, nil, questionIDs)
	if err != nil {
		return nil, fmt.Errorf("fetch attempted questions: %w", err)
	}

	topicIDs := make([]uuid.UUID, 0, len(questions))
	seenTopics := make(map[uuid.UUID]bool, len(questions))
	for _, q := range questions {
		if !seenTopics[q.TopicID] {
			seenTopics[q.TopicID] = true
			topicIDs = append(topicIDs, q.TopicID)
		}
	}
	topics, err := s.topicRepo.GetByIDs(ctx, nil, topicIDs)
	if err != nil {
		return nil, fmt.Errorf("fetch attempted topics: %w", err)
	}

	return buildProfile(userID, attempts, questions, topics, s.cfg), nil
}

// RefreshMasteryRecords rebuilds the profile and upserts one TopicMastery
// row per topic. A failed upsert is logged and skipped; it does not abort
// the batch.
func (s *MasteryService) RefreshMasteryRecords(ctx context.Context, userID uuid.UUID) (*MasteryProfile, error) {
	profile, err := s.BuildProfile(ctx, userID)
	if err != nil {
		return nil, err
	}

	for topicID, stat := range profile.Topics {
		record := &types.TopicMastery{
			UserID:          userID,
			TopicID:         topicID,
			MasteryPct:      stat.Mastery,
			MasteryCategory: stat.MasteryCategory,
			AccuracyEasy:    stat.AccuracyEasy,
			AccuracyMedium:  stat.AccuracyMedium,
			AccuracyHard:    stat.AccuracyHard,
			ExposureScore:   stat.Exposure,
			EfficiencyScore: stat.Efficiency,
		}
		if err := s.masteryRepo.Upsert(ctx, nil, record); err != nil {
			s.log.Warn("mastery upsert failed, skipping topic", "topic_id", topicID, "error", err)
		}
	}
	return profile, nil
}

// buildProfile is the pure aggregation over an attempt snapshot.
func buildProfile(userID uuid.UUID, attempts []*types.Attempt, questions []*types.Question, topics []*types.Topic, cfg config.EngineConfig) *MasteryProfile {
	profile := &MasteryProfile{
		UserID:           userID,
		Topics:           make(map[uuid.UUID]TopicMasteryStat),
		CategoryAverages: make(map[string]float64),
	}
	if len(attempts) == 0 {
		return profile
	}

	questionTopic := make(map[uuid.UUID]uuid.UUID, len(questions))
	for _, q := range questions {
		questionTopic[q.ID] = q.TopicID
	}
	topicByID := make(map[uuid.UUID]*types.Topic, len(topics))
	for _, t := range topics {
		topicByID[t.ID] = t
	}

	// Attempts arrive in chronological order; group them per topic while
	// preserving that order so the EWMA favors recent work.
	grouped := make(map[uuid.UUID][]*types.Attempt)
	order := make([]uuid.UUID, 0)
	for _, a := range attempts {
		topicID, ok := questionTopic[a.QuestionID]
		if !ok {
			continue
		}
		if _, exists := grouped[topicID]; !exists {
			order = append(order, topicID)
		}
		grouped[topicID] = append(grouped[topicID], a)
	}

	var sum float64
	categorySums := make(map[string]float64)
	categoryCounts := make(map[string]int)

	for _, topicID := range order {
		topicAttempts := grouped[topicID]
		stat := aggregateTopic(topicID, topicAttempts, cfg.Mastery)
		if t, ok := topicByID[topicID]; ok {
			stat.TopicName = t.Name
			stat.Category = t.Category
		}
		profile.Topics[topicID] = stat
		sum += stat.Mastery
		if stat.Category != "" {
			categorySums[stat.Category] += stat.Mastery
			categoryCounts[stat.Category]++
		}
	}

	if len(profile.Topics) > 0 {
		profile.Overall = sum / float64(len(profile.Topics))
	}
	for cat, total := range categorySums {
		profile.CategoryAverages[cat] = total / float64(categoryCounts[cat])
	}
	return profile
}

// aggregateTopic folds one topic's chronological attempts into its stat.
func aggregateTopic(topicID uuid.UUID, attempts []*types.Attempt, cfg config.MasteryConfig) TopicMasteryStat {
	stat := TopicMasteryStat{TopicID: topicID, AttemptCount: len(attempts)}

	var correctByBand, totalByBand [3]int
	mastery := 0.5
	var effSum float64
	var effCount int

	for _, a := range attempts {
		val := 0.0
		if a.Correct && !a.Skipped {
			val = 1.0
		}
		mastery = cfg.EwmaAlpha*val + (1-cfg.EwmaAlpha)*mastery

		idx := bandIndex(a.DifficultyBand)
		if idx >= 0 {
			totalByBand[idx]++
			if a.Correct && !a.Skipped {
				correctByBand[idx]++
			}
		}

		if a.TimeSec > 0 {
			target := targetSecForBand(a.DifficultyBand)
			effSum += clamp01(target / a.TimeSec)
			effCount++
		}
	}

	stat.Mastery = clamp01(mastery)
	stat.MasteryCategory = masteryCategoryFor(stat.Mastery, cfg)
	if totalByBand[0] > 0 {
		stat.AccuracyEasy = float64(correctByBand[0]) / float64(totalByBand[0])
	}
	if totalByBand[1] > 0 {
		stat.AccuracyMedium = float64(correctByBand[1]) / float64(totalByBand[1])
	}
	if totalByBand[2] > 0 {
		stat.AccuracyHard = float64(correctByBand[2]) / float64(totalByBand[2])
	}
	if cfg.ExposureFullAtCount > 0 {
		stat.Exposure = clamp01(float64(len(attempts)) / float64(cfg.ExposureFullAtCount))
	}
	if effCount > 0 {
		stat.Efficiency = effSum / float64(effCount)
	}
	return stat
}

func masteryCategoryFor(mastery float64, cfg config.MasteryConfig) string {
	switch {
	case mastery >= cfg.MasteredAtOrAbove:
		return types.MasteryCategoryMastered
	case mastery >= cfg.NeedsFocusBelow:
		return types.MasteryCategoryOnTrack
	default:
		return types.MasteryCategoryNeedsFocus
	}
}

func bandIndex(band string) int {
	switch band {
	case types.DifficultyEasy:
		return 0
	case types.DifficultyMedium:
		return 1
	case types.DifficultyHard:
		return 2
	default:
		return -1
	}
}

// targetSecForBand mirrors the diagnostic pacing targets; it is used as the
// efficiency yardstick for regular practice attempts too.
func targetSecForBand(band string) float64 {
	switch band {
	case types.DifficultyHard:
		return 210
	case types.DifficultyMedium:
		return 150
	default:
		return 90
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// attemptStats carries the per-question history signals consumed by spacing
// and frequency rules.
type attemptStats struct {
	Count           int
	LastAt          *time.Time
	RecentIncorrect int
}

// collectAttemptStats folds a chronological attempt history into
// per-question stats. recentWindow bounds the incorrect-attempt lookback.
func collectAttemptStats(attempts []*types.Attempt, now time.Time, recentWindow time.Duration) map[uuid.UUID]attemptStats {
	stats := make(map[uuid.UUID]attemptStats)
	for _, a := range attempts {
		st := stats[a.QuestionID]
		st.Count++
		t := a.CreatedAt
		if st.LastAt == nil || t.After(*st.LastAt) {
			tt := t
			st.LastAt = &tt
		}
		if !a.Correct && !a.Skipped && now.Sub(t) <= recentWindow {
			st.RecentIncorrect++
		}
		stats[a.QuestionID] = st
	}
	return stats
}
