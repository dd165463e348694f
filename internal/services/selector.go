package services

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ascribenow/Workandcat-sub001/internal/config"
	"github.com/ascribenow/Workandcat-sub001/internal/logger"
	"github.com/ascribenow/Workandcat-sub001/internal/repos"
	"github.com/ascribenow/Workandcat-sub001/internal/types"
)

// candidate is a question annotated with everything the quota selection
// needs: its composite score, spacing compliance and mastery bucket.
type candidate struct {
	Question        *types.Question
	Score           float64
	SpacingOK       bool
	MasteryCategory string
}

// difficulty windows over topic mastery. A band is the best fit when the
// user's mastery sits at the window midpoint.
var difficultyWindows = map[string][2]float64{
	types.DifficultyEasy:   {0.0, 0.60},
	types.DifficultyMedium: {0.40, 0.85},
	types.DifficultyHard:   {0.70, 1.0},
}

type SelectorService struct {
	db  *gorm.DB
	log *logger.Logger
	cfg config.EngineConfig

	mastery      *MasteryService
	spacing      SpacingPolicy
	questionRepo repos.QuestionRepo
	attemptRepo  repos.AttemptRepo
}

func NewSelectorService(db *gorm.DB, baseLog *logger.Logger, cfg config.EngineConfig, mastery *MasteryService, spacing SpacingPolicy, questionRepo repos.QuestionRepo, attemptRepo repos.AttemptRepo) *SelectorService {
	return &SelectorService{
		db:           db,
		log:          baseLog.With("service", "SelectorService"),
		cfg:          cfg,
		mastery:      mastery,
		spacing:      spacing,
		questionRepo: questionRepo,
		attemptRepo:  attemptRepo,
	}
}

// SelectQuestions picks a practice session for the user: profile snapshot,
// candidate fetch, then pure quota selection. The returned order is
// shuffled; the band/category composition is deterministic.
func (s *SelectorService) SelectQuestions(ctx context.Context, userID uuid.UUID, targetCount int) ([]uuid.UUID, error) {
	if targetCount <= 0 {
		targetCount = s.cfg.Selector.DefaultTargetCount
	}
	if targetCount > s.cfg.Selector.MaxTargetCount {
		targetCount = s.cfg.Selector.MaxTargetCount
	}

	profile, err := s.mastery.BuildProfile(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("build mastery profile: %w", err)
	}
	questions, err := s.questionRepo.GetActive(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch candidates: %w", err)
	}
	if len(questions) == 0 {
		return nil, ErrNoActiveQuestions
	}
	attempts, err := s.attemptRepo.GetByUser(ctx, nil, userID)
	if err != nil {
		return nil, fmt.Errorf("fetch attempt history: %w", err)
	}

	now := time.Now().UTC()
	stats := collectAttemptStats(attempts, now, s.spacing.RecentWindow())
	cands := buildCandidates(profile, questions, stats, s.spacing, now, s.cfg.Selector)

	bandShares := bandMixFor(profile.Overall, s.cfg.Selector)
	catShares := map[string]float64{
		types.MasteryCategoryNeedsFocus: s.cfg.Selector.NeedsFocusShare,
		types.MasteryCategoryOnTrack:    s.cfg.Selector.OnTrackShare,
		types.MasteryCategoryMastered:   s.cfg.Selector.MasteredShare,
	}

	// rand.Rand is not safe for concurrent use; scope one to the request.
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	ids := selectWithQuotas(cands, targetCount, bandShares, catShares, rng)
	s.log.Debug("adaptive selection done", "requested", targetCount, "selected", len(ids))
	return ids, nil
}

// buildCandidates scores every question against the profile snapshot.
func buildCandidates(profile *MasteryProfile, questions []*types.Question, stats map[uuid.UUID]attemptStats, spacing SpacingPolicy, now time.Time, cfg config.SelectorConfig) []*candidate {
	cands := make([]*candidate, 0, len(questions))
	for _, q := range questions {
		st := stats[q.ID]
		spacingOK := spacing.CanAttemptAt(st.LastAt, st.RecentIncorrect, now)
		mastery := profile.MasteryFor(q.TopicID)
		cands = append(cands, &candidate{
			Question:        q,
			Score:           adaptiveScore(q, mastery, st.Count, spacingOK, cfg),
			SpacingOK:       spacingOK,
			MasteryCategory: profile.CategoryFor(q.TopicID),
		})
	}
	return cands
}

// adaptiveScore is the composite priority of one question:
// weighted sum of mastery gap, learning impact, difficulty fit and spacing,
// scaled by importance and dampened for questions served before.
func adaptiveScore(q *types.Question, topicMastery float64, attemptCount int, spacingOK bool, cfg config.SelectorConfig) float64 {
	gap := 1 - topicMastery
	impact := math.Min(q.LearningImpact/10, 1)
	match := difficultyMatch(q.DifficultyBand, topicMastery)
	spacingBonus := cfg.SpacingPenalty
	if spacingOK {
		spacingBonus = 1.0
	}

	base := cfg.MasteryGapWeight*gap +
		cfg.LearningImpactWeight*impact +
		cfg.DifficultyMatchWeight*match +
		cfg.SpacingBonusWeight*spacingBonus

	importanceWeight := cfg.ImportanceDefault
	if q.ImportanceIndex > 0 {
		importanceWeight = math.Min(q.ImportanceIndex/5, 1)
	}

	frequencyPenalty := math.Max(cfg.FrequencyPenaltyMin, 1-cfg.FrequencyPenaltyStep*float64(attemptCount))

	return base * importanceWeight * frequencyPenalty
}

// difficultyMatch is a triangular fit of the band's mastery window: 1.0 at
// the midpoint, 0.5 at the edges, and a distance-penalized floor of 0.1
// outside.
func difficultyMatch(band string, mastery float64) float64 {
	window, ok := difficultyWindows[band]
	if !ok {
		return 0.1
	}
	lo, hi := window[0], window[1]
	mid := (lo + hi) / 2
	half := (hi - lo) / 2

	if mastery >= lo && mastery <= hi {
		if half == 0 {
			return 1.0
		}
		return 1.0 - 0.5*math.Abs(mastery-mid)/half
	}
	dist := lo - mastery
	if mastery > hi {
		dist = mastery - hi
	}
	return math.Max(0.1, 0.5-2*dist)
}

// bandMixFor maps overall mastery to the target difficulty distribution.
func bandMixFor(overall float64, cfg config.SelectorConfig) map[string]float64 {
	switch {
	case overall < cfg.BeginnerBelow:
		return map[string]float64{types.DifficultyEasy: 0.6, types.DifficultyMedium: 0.3, types.DifficultyHard: 0.1}
	case overall < cfg.IntermediateBelow:
		return map[string]float64{types.DifficultyEasy: 0.3, types.DifficultyMedium: 0.5, types.DifficultyHard: 0.2}
	default:
		return map[string]float64{types.DifficultyEasy: 0.1, types.DifficultyMedium: 0.4, types.DifficultyHard: 0.5}
	}
}

// apportion splits total into integer quotas proportional to shares using
// largest remainders; ties resolve to the earlier slot so the split is
// deterministic.
func apportion(total int, shares []float64) []int {
	quotas := make([]int, len(shares))
	if total <= 0 || len(shares) == 0 {
		return quotas
	}
	var shareSum float64
	for _, s := range shares {
		shareSum += s
	}
	if shareSum <= 0 {
		quotas[0] = total
		return quotas
	}

	type rem struct {
		idx  int
		frac float64
	}
	remainders := make([]rem, len(shares))
	assigned := 0
	for i, s := range shares {
		exact := float64(total) * s / shareSum
		quotas[i] = int(exact)
		assigned += quotas[i]
		remainders[i] = rem{idx: i, frac: exact - float64(quotas[i])}
	}
	sort.SliceStable(remainders, func(i, j int) bool {
		return remainders[i].frac > remainders[j].frac
	})
	for k := 0; assigned < total; k++ {
		quotas[remainders[k%len(remainders)].idx]++
		assigned++
	}
	return quotas
}

// selectWithQuotas runs pickCandidates and strips the result to ids.
func selectWithQuotas(cands []*candidate, target int, bandShares map[string]float64, catShares map[string]float64, rng *rand.Rand) []uuid.UUID {
	picked := pickCandidates(cands, target, bandShares, catShares, rng)
	ids := make([]uuid.UUID, len(picked))
	for i, c := range picked {
		ids[i] = c.Question.ID
	}
	return ids
}

// pickCandidates fills the difficulty-band quotas, then the per-band
// mastery-category sub-quotas, backfilling from spacing-compliant leftovers
// before touching non-compliant ones. The result is shuffled; its
// (band, category) multiset is a pure function of the inputs.
func pickCandidates(cands []*candidate, target int, bandShares map[string]float64, catShares map[string]float64, rng *rand.Rand) []*candidate {
	if target <= 0 || len(cands) == 0 {
		return []*candidate{}
	}

	// Stable priority order: score desc, then question id.
	ordered := make([]*candidate, len(cands))
	copy(ordered, cands)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Score != ordered[j].Score {
			return ordered[i].Score > ordered[j].Score
		}
		return ordered[i].Question.ID.String() < ordered[j].Question.ID.String()
	})

	bands := types.DifficultyBands
	bandSharesList := make([]float64, len(bands))
	for i, band := range bands {
		bandSharesList[i] = bandShares[band]
	}
	bandQuotas := apportion(target, bandSharesList)

	masteryCats := []string{
		types.MasteryCategoryNeedsFocus,
		types.MasteryCategoryOnTrack,
		types.MasteryCategoryMastered,
	}
	catSharesList := make([]float64, len(masteryCats))
	for i, cat := range masteryCats {
		catSharesList[i] = catShares[cat]
	}

	taken := make(map[uuid.UUID]bool, target)
	picked := make([]*candidate, 0, target)

	take := func(limit int, match func(*candidate) bool) int {
		n := 0
		for _, c := range ordered {
			if n >= limit {
				break
			}
			if taken[c.Question.ID] || !match(c) {
				continue
			}
			taken[c.Question.ID] = true
			picked = append(picked, c)
			n++
		}
		return n
	}

	for bi, band := range bands {
		quota := bandQuotas[bi]
		if quota == 0 {
			continue
		}
		got := 0
		catQuotas := apportion(quota, catSharesList)
		for ci, cat := range masteryCats {
			sub := catQuotas[ci]
			got += take(sub, func(c *candidate) bool {
				return c.SpacingOK && c.Question.DifficultyBand == band && c.MasteryCategory == cat
			})
		}
		// Sub-quota shortfalls backfill within the band, compliant first.
		if got < quota {
			got += take(quota-got, func(c *candidate) bool {
				return c.SpacingOK && c.Question.DifficultyBand == band
			})
		}
		if got < quota {
			take(quota-got, func(c *candidate) bool {
				return c.Question.DifficultyBand == band
			})
		}
	}

	// Band-level shortfall pads from any remaining candidates so the
	// session is never short while candidates exist at all.
	if len(picked) < target {
		take(target-len(picked), func(c *candidate) bool { return c.SpacingOK })
	}
	if len(picked) < target {
		take(target-len(picked), func(*candidate) bool { return true })
	}

	if rng != nil {
		rng.Shuffle(len(picked), func(i, j int) { picked[i], picked[j] = picked[j], picked[i] })
	}
	return picked
}
