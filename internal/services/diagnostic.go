package services

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ascribenow/Workandcat-sub001/internal/config"
	"github.com/ascribenow/Workandcat-sub001/internal/logger"
	"github.com/ascribenow/Workandcat-sub001/internal/repos"
	"github.com/ascribenow/Workandcat-sub001/internal/types"
)

// blueprintSlot is one position of the fixed diagnostic. The distribution
// across categories is Arithmetic 7, Algebra 6, Geometry & Mensuration 6,
// Number System 3, Modern Math 3.
type blueprintSlot struct {
	Sequence    int
	Category    string
	Subcategory string
	Band        string
}

var diagnosticBlueprint = []blueprintSlot{
	{1, types.CategoryArithmetic, "Percentages", types.DifficultyEasy},
	{2, types.CategoryArithmetic, "Ratio & Proportion", types.DifficultyEasy},
	{3, types.CategoryArithmetic, "Averages", types.DifficultyMedium},
	{4, types.CategoryArithmetic, "Profit & Loss", types.DifficultyMedium},
	{5, types.CategoryArithmetic, "Simple & Compound Interest", types.DifficultyMedium},
	{6, types.CategoryArithmetic, "Time & Work", types.DifficultyHard},
	{7, types.CategoryArithmetic, "Time-Speed-Distance", types.DifficultyHard},
	{8, types.CategoryAlgebra, "Linear Equations", types.DifficultyEasy},
	{9, types.CategoryAlgebra, "Quadratic Equations", types.DifficultyMedium},
	{10, types.CategoryAlgebra, "Inequalities", types.DifficultyMedium},
	{11, types.CategoryAlgebra, "Progressions", types.DifficultyMedium},
	{12, types.CategoryAlgebra, "Functions", types.DifficultyHard},
	{13, types.CategoryAlgebra, "Logarithms", types.DifficultyHard},
	{14, types.CategoryGeometry, "Lines & Angles", types.DifficultyEasy},
	{15, types.CategoryGeometry, "Triangles", types.DifficultyMedium},
	{16, types.CategoryGeometry, "Circles", types.DifficultyMedium},
	{17, types.CategoryGeometry, "Mensuration", types.DifficultyMedium},
	{18, types.CategoryGeometry, "Coordinate Geometry", types.DifficultyHard},
	{19, types.CategoryGeometry, "Polygons", types.DifficultyEasy},
	{20, types.CategoryNumberSystem, "Divisibility", types.DifficultyEasy},
	{21, types.CategoryNumberSystem, "HCF & LCM", types.DifficultyMedium},
	{22, types.CategoryNumberSystem, "Remainders", types.DifficultyHard},
	{23, types.CategoryModernMath, "Permutation & Combination", types.DifficultyMedium},
	{24, types.CategoryModernMath, "Probability", types.DifficultyMedium},
	{25, types.CategoryModernMath, "Set Theory", types.DifficultyEasy},
}

// QuestionSummary is what a test taker sees for one diagnostic position:
// no answer, no scoring metadata.
type QuestionSummary struct {
	Sequence       int       `json:"sequence"`
	QuestionID     uuid.UUID `json:"question_id"`
	Stem           string    `json:"stem"`
	Subcategory    string    `json:"subcategory"`
	DifficultyBand string    `json:"difficulty_band"`
}

// DiagnosticAttemptInput is one answered (or skipped) diagnostic question as
// reported by the caller.
type DiagnosticAttemptInput struct {
	QuestionID uuid.UUID `json:"question_id"`
	Correct    bool      `json:"correct"`
	Skipped    bool      `json:"skipped"`
	TimeSec    float64   `json:"time_sec"`
}

// scoredAttempt is a diagnostic attempt joined with its question's taxonomy
// snapshot, ready for pure scoring.
type scoredAttempt struct {
	Correct     bool
	TimeSec     float64
	Band        string
	Subcategory string
	Category    string
}

type DiagnosticService struct {
	db  *gorm.DB
	log *logger.Logger
	cfg config.EngineConfig

	questionRepo repos.QuestionRepo
	attemptRepo  repos.AttemptRepo
	setRepo      repos.DiagnosticSetRepo
	sessionRepo  repos.DiagnosticSessionRepo
}

func NewDiagnosticService(db *gorm.DB, baseLog *logger.Logger, cfg config.EngineConfig, questionRepo repos.QuestionRepo, attemptRepo repos.AttemptRepo, setRepo repos.DiagnosticSetRepo, sessionRepo repos.DiagnosticSessionRepo) *DiagnosticService {
	return &DiagnosticService{
		db:           db,
		log:          baseLog.With("service", "DiagnosticService"),
		cfg:          cfg,
		questionRepo: questionRepo,
		attemptRepo:  attemptRepo,
		setRepo:      setRepo,
		sessionRepo:  sessionRepo,
	}
}

// CreateSet builds the canonical 25-question diagnostic set, or returns the
// existing one. With zero active questions in the bank this is a hard
// configuration error; an individual unfillable slot is only a warning.
func (s *DiagnosticService) CreateSet(ctx context.Context) (uuid.UUID, error) {
	existing, err := s.setRepo.GetByName(ctx, nil, s.cfg.Diagnostic.SetName)
	if err != nil {
		return uuid.Nil, fmt.Errorf("look up diagnostic set: %w", err)
	}
	if existing != nil {
		return existing.ID, nil
	}

	questions, err := s.questionRepo.GetActive(ctx, nil)
	if err != nil {
		return uuid.Nil, fmt.Errorf("fetch active questions: %w", err)
	}
	if len(questions) == 0 {
		return uuid.Nil, ErrNoActiveQuestions
	}

	picks, unfilled := fillBlueprint(diagnosticBlueprint, questions)
	for _, seq := range unfilled {
		s.log.Warn("diagnostic slot left unfilled", "sequence", seq)
	}

	set := &types.DiagnosticSet{ID: uuid.New(), Name: s.cfg.Diagnostic.SetName, Active: true}
	items := make([]*types.DiagnosticSetItem, 0, len(picks))
	for seq, q := range picks {
		items = append(items, &types.DiagnosticSetItem{
			ID:         uuid.New(),
			QuestionID: q.ID,
			Sequence:   seq,
		})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Sequence < items[j].Sequence })

	if err := s.setRepo.Create(ctx, nil, set, items); err != nil {
		return uuid.Nil, fmt.Errorf("persist diagnostic set: %w", err)
	}
	s.log.Info("diagnostic set created", "set_id", set.ID, "items", len(items))
	return set.ID, nil
}

// fillBlueprint assigns one question per slot without reuse, degrading per
// slot through: exact (subcategory, band) by importance, same subcategory at
// an adjacent band, same category, then any active question. Returns the
// picks keyed by sequence and the sequences left unfilled.
func fillBlueprint(blueprint []blueprintSlot, questions []*types.Question) (map[int]*types.Question, []int) {
	// Deterministic candidate order: importance desc, then id.
	ordered := make([]*types.Question, len(questions))
	copy(ordered, questions)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].ImportanceIndex != ordered[j].ImportanceIndex {
			return ordered[i].ImportanceIndex > ordered[j].ImportanceIndex
		}
		return ordered[i].ID.String() < ordered[j].ID.String()
	})

	used := make(map[uuid.UUID]bool, len(blueprint))
	picks := make(map[int]*types.Question, len(blueprint))
	var unfilled []int

	pick := func(match func(*types.Question) bool) *types.Question {
		for _, q := range ordered {
			if used[q.ID] {
				continue
			}
			if match(q) {
				return q
			}
		}
		return nil
	}

	for _, slot := range blueprint {
		q := pick(func(c *types.Question) bool {
			return c.Subcategory == slot.Subcategory && c.DifficultyBand == slot.Band
		})
		if q == nil {
			for _, band := range adjacentBands(slot.Band) {
				q = pick(func(c *types.Question) bool {
					return c.Subcategory == slot.Subcategory && c.DifficultyBand == band
				})
				if q != nil {
					break
				}
			}
		}
		if q == nil {
			q = pick(func(c *types.Question) bool {
				return c.Topic != nil && c.Topic.Category == slot.Category
			})
		}
		if q == nil {
			q = pick(func(*types.Question) bool { return true })
		}
		if q == nil {
			unfilled = append(unfilled, slot.Sequence)
			continue
		}
		used[q.ID] = true
		picks[slot.Sequence] = q
	}
	return picks, unfilled
}

// adjacentBands returns the fallback difficulty order for a target band.
func adjacentBands(band string) []string {
	switch band {
	case types.DifficultyHard:
		return []string{types.DifficultyMedium, types.DifficultyEasy}
	case types.DifficultyMedium:
		return []string{types.DifficultyEasy, types.DifficultyHard}
	default:
		return []string{types.DifficultyMedium, types.DifficultyHard}
	}
}

// Start opens a session against the active set. A missing active set is a
// hard error. An existing open session is reused; a completed one blocks a
// restart.
func (s *DiagnosticService) Start(ctx context.Context, userID uuid.UUID) (uuid.UUID, error) {
	set, err := s.setRepo.GetFirstActive(ctx, nil)
	if err != nil {
		return uuid.Nil, fmt.Errorf("fetch active diagnostic set: %w", err)
	}
	if set == nil {
		return uuid.Nil, ErrNoActiveDiagnosticSet
	}

	completed, err := s.sessionRepo.GetCompletedByUserAndSet(ctx, nil, userID, set.ID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("check completed session: %w", err)
	}
	if completed != nil {
		return uuid.Nil, ErrDiagnosticCompleted
	}

	open, err := s.sessionRepo.GetOpenByUserAndSet(ctx, nil, userID, set.ID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("check open session: %w", err)
	}
	if open != nil {
		return open.ID, nil
	}

	session := &types.DiagnosticSession{ID: uuid.New(), UserID: userID, SetID: set.ID}
	if err := s.sessionRepo.Create(ctx, nil, session); err != nil {
		return uuid.Nil, fmt.Errorf("create diagnostic session: %w", err)
	}
	return session.ID, nil
}

// Questions returns the session's ordered question summaries, answers
// withheld.
func (s *DiagnosticService) Questions(ctx context.Context, sessionID uuid.UUID) ([]QuestionSummary, error) {
	session, err := s.sessionRepo.GetByID(ctx, nil, sessionID)
	if err != nil {
		return nil, fmt.Errorf("fetch session: %w", err)
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}

	items, err := s.setRepo.GetItems(ctx, nil, session.SetID)
	if err != nil {
		return nil, fmt.Errorf("fetch set items: %w", err)
	}
	questionIDs := make([]uuid.UUID, 0, len(items))
	for _, item := range items {
		questionIDs = append(questionIDs, item.QuestionID)
	}
	questions, err := s.questionRepo.GetByIDs(ctx, nil, questionIDs)
	if err != nil {
		return nil, fmt.Errorf("fetch set questions: %w", err)
	}
	byID := make(map[uuid.UUID]*types.Question, len(questions))
	for _, q := range questions {
		byID[q.ID] = q
	}

	summaries := make([]QuestionSummary, 0, len(items))
	for _, item := range items {
		q, ok := byID[item.QuestionID]
		if !ok {
			s.log.Warn("diagnostic item references missing question", "question_id", item.QuestionID)
			continue
		}
		summaries = append(summaries, QuestionSummary{
			Sequence:       item.Sequence,
			QuestionID:     q.ID,
			Stem:           q.Stem,
			Subcategory:    q.Subcategory,
			DifficultyBand: q.DifficultyBand,
		})
	}
	return summaries, nil
}

// Complete scores the session exactly once. Re-completing a finished
// session is an explicit error; callers wanting the stored outcome use
// Result.
func (s *DiagnosticService) Complete(ctx context.Context, sessionID uuid.UUID, inputs []DiagnosticAttemptInput) (*types.DiagnosticResult, error) {
	session, err := s.sessionRepo.GetByID(ctx, nil, sessionID)
	if err != nil {
		return nil, fmt.Errorf("fetch session: %w", err)
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}
	if session.CompletedAt != nil {
		return nil, ErrDiagnosticCompleted
	}

	questionIDs := make([]uuid.UUID, 0, len(inputs))
	for _, in := range inputs {
		questionIDs = append(questionIDs, in.QuestionID)
	}
	questions, err := s.questionRepo.GetByIDs(ctx, nil, questionIDs)
	if err != nil {
		return nil, fmt.Errorf("fetch answered questions: %w", err)
	}
	byID := make(map[uuid.UUID]*types.Question, len(questions))
	for _, q := range questions {
		byID[q.ID] = q
	}

	scored := make([]scoredAttempt, 0, len(inputs))
	rows := make([]*types.Attempt, 0, len(inputs))
	for _, in := range inputs {
		q, ok := byID[in.QuestionID]
		if !ok {
			s.log.Warn("attempt references unknown question, skipping", "question_id", in.QuestionID)
			continue
		}
		category := ""
		if q.Topic != nil {
			category = q.Topic.Category
		}
		scored = append(scored, scoredAttempt{
			Correct:     in.Correct && !in.Skipped,
			TimeSec:     in.TimeSec,
			Band:        q.DifficultyBand,
			Subcategory: q.Subcategory,
			Category:    category,
		})
		rows = append(rows, &types.Attempt{
			ID:             uuid.New(),
			UserID:         session.UserID,
			QuestionID:     q.ID,
			Correct:        in.Correct,
			Skipped:        in.Skipped,
			TimeSec:        in.TimeSec,
			DifficultyBand: q.DifficultyBand,
			Subcategory:    q.Subcategory,
		})
	}

	result := scoreDiagnostic(scored, s.cfg.Diagnostic)
	initialCaps := initialCapabilities(scored, s.cfg.Diagnostic)

	resultBlob, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("encode result: %w", err)
	}
	capsBlob, err := json.Marshal(initialCaps)
	if err != nil {
		return nil, fmt.Errorf("encode initial capabilities: %w", err)
	}

	// Check-then-write runs as one transaction; the guarded update is the
	// at-most-once gate against a concurrent completion. Losing the race
	// errors out of the transaction func so the attempt insert rolls back
	// with it.
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.attemptRepo.Create(ctx, tx, rows); err != nil {
			return fmt.Errorf("persist diagnostic attempts: %w", err)
		}
		updated, err := s.sessionRepo.MarkCompleted(ctx, tx, session.ID, resultBlob, capsBlob)
		if err != nil {
			return fmt.Errorf("mark session completed: %w", err)
		}
		if !updated {
			return ErrDiagnosticCompleted
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// Result returns the stored outcome of a completed session. This is the
// idempotent re-fetch path; it never rescores.
func (s *DiagnosticService) Result(ctx context.Context, sessionID uuid.UUID) (*types.DiagnosticResult, error) {
	session, err := s.sessionRepo.GetByID(ctx, nil, sessionID)
	if err != nil {
		return nil, fmt.Errorf("fetch session: %w", err)
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}
	if session.CompletedAt == nil {
		return nil, ErrDiagnosticNotComplete
	}
	var result types.DiagnosticResult
	if err := json.Unmarshal(session.Result, &result); err != nil {
		return nil, fmt.Errorf("decode stored result: %w", err)
	}
	return &result, nil
}

// scoreDiagnostic computes the capability composite over the full attempt
// list. Empty input scores zero across the board.
func scoreDiagnostic(attempts []scoredAttempt, cfg config.DiagnosticConfig) types.DiagnosticResult {
	result := types.DiagnosticResult{CategoryAccuracy: map[string]float64{}}
	capability, accuracy, speed, stability := capabilityScore(attempts, cfg)
	result.Capability = capability
	result.Accuracy = accuracy
	result.SpeedScore = speed
	result.StabilityScore = stability
	result.Track = trackFor(capability, cfg)
	result.ReadinessBand = readinessFor(capability, cfg)

	catCorrect := make(map[string]int)
	catTotal := make(map[string]int)
	for _, a := range attempts {
		if a.Category == "" {
			continue
		}
		catTotal[a.Category]++
		if a.Correct {
			catCorrect[a.Category]++
		}
	}
	for cat, total := range catTotal {
		result.CategoryAccuracy[cat] = float64(catCorrect[cat]) / float64(total)
	}
	return result
}

// capabilityScore returns (capability, accuracy, speed, stability) for a
// group of attempts. Capability is rounded to 3 decimals and clamped to
// [0,1].
func capabilityScore(attempts []scoredAttempt, cfg config.DiagnosticConfig) (float64, float64, float64, float64) {
	if len(attempts) == 0 {
		return 0, 0, 0, 0
	}

	correct := 0
	var speedSum float64
	for _, a := range attempts {
		if a.Correct {
			correct++
		}
		speedSum += speedScore(a, cfg)
	}
	accuracy := float64(correct) / float64(len(attempts))
	speed := speedSum / float64(len(attempts))
	stability := stabilityScore(attempts, accuracy, cfg)

	capability := cfg.AccuracyWeight*accuracy + cfg.SpeedWeight*speed + cfg.StabilityWeight*stability
	capability = clamp01(math.Round(capability*1000) / 1000)
	return capability, accuracy, speed, stability
}

// speedScore is 1.0 at or under the band's target time, decaying as
// target/time below it, floored.
func speedScore(a scoredAttempt, cfg config.DiagnosticConfig) float64 {
	target := targetSec(a.Band, cfg)
	if a.TimeSec <= 0 || a.TimeSec <= target {
		return 1.0
	}
	score := target / a.TimeSec
	if score < cfg.SpeedScoreFloor {
		return cfg.SpeedScoreFloor
	}
	return score
}

// stabilityScore measures consistency across subcategory groups with at
// least two attempts: low variance of correctness and pacing means high
// stability. With no such group it falls back to raw accuracy.
func stabilityScore(attempts []scoredAttempt, accuracy float64, cfg config.DiagnosticConfig) float64 {
	groups := make(map[string][]scoredAttempt)
	for _, a := range attempts {
		groups[a.Subcategory] = append(groups[a.Subcategory], a)
	}

	var sum float64
	var count int
	for _, group := range groups {
		if len(group) < 2 {
			continue
		}
		correctness := make([]float64, len(group))
		timeRatios := make([]float64, len(group))
		for i, a := range group {
			if a.Correct {
				correctness[i] = 1
			}
			target := targetSec(a.Band, cfg)
			if a.TimeSec > 0 && target > 0 {
				timeRatios[i] = a.TimeSec / target
			}
		}
		spread := (variance(correctness) + variance(timeRatios)) / 2
		if spread > 1 {
			spread = 1
		}
		sum += 1 - spread
		count++
	}
	if count == 0 {
		return accuracy
	}
	return sum / float64(count)
}

func variance(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var mean float64
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))
	var sum float64
	for _, v := range values {
		d := v - mean
		sum += d * d
	}
	return sum / float64(len(values))
}

func targetSec(band string, cfg config.DiagnosticConfig) float64 {
	switch band {
	case types.DifficultyHard:
		return cfg.TargetSecHard
	case types.DifficultyMedium:
		return cfg.TargetSecMedium
	default:
		return cfg.TargetSecEasy
	}
}

func trackFor(capability float64, cfg config.DiagnosticConfig) string {
	switch {
	case capability >= cfg.TrackGoodAt:
		return types.TrackGood
	case capability >= cfg.TrackIntermedAt:
		return types.TrackIntermediate
	default:
		return types.TrackBeginner
	}
}

func readinessFor(capability float64, cfg config.DiagnosticConfig) string {
	switch {
	case capability >= cfg.ReadyExcellentAt:
		return types.ReadinessExcellent
	case capability >= cfg.ReadyGoodAt:
		return types.ReadinessGood
	case capability >= cfg.ReadyAverageAt:
		return types.ReadinessAverage
	default:
		return types.ReadinessNeedsWork
	}
}

// initialCapabilities computes the per-(subcategory, band) starting
// capability map stored on the session.
func initialCapabilities(attempts []scoredAttempt, cfg config.DiagnosticConfig) map[string]float64 {
	groups := make(map[string][]scoredAttempt)
	for _, a := range attempts {
		key := a.Subcategory + "|" + a.Band
		groups[key] = append(groups[key], a)
	}
	out := make(map[string]float64, len(groups))
	for key, group := range groups {
		capability, _, _, _ := capabilityScore(group, cfg)
		out[key] = capability
	}
	return out
}
