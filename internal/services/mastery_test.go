package services

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/ascribenow/Workandcat-sub001/internal/config"
	"github.com/ascribenow/Workandcat-sub001/internal/types"
)

func mkAttempt(userID, questionID uuid.UUID, correct bool, band string, at time.Time) *types.Attempt {
	return &types.Attempt{
		ID:             uuid.New(),
		UserID:         userID,
		QuestionID:     questionID,
		Correct:        correct,
		TimeSec:        60,
		DifficultyBand: band,
		Subcategory:    "Percentages",
		CreatedAt:      at,
	}
}

func TestBuildProfileEmptyHistory(t *testing.T) {
	profile := buildProfile(uuid.New(), nil, nil, nil, config.Default())
	if !profile.Empty() {
		t.Fatal("profile from no attempts should be empty")
	}
	if profile.Overall != 0 {
		t.Fatalf("empty profile overall = %v, want 0", profile.Overall)
	}
	if got := profile.MasteryFor(uuid.New()); got != 0 {
		t.Fatalf("unseen topic mastery = %v, want 0", got)
	}
	if got := profile.CategoryFor(uuid.New()); got != types.MasteryCategoryNeedsFocus {
		t.Fatalf("unseen topic category = %q, want %q", got, types.MasteryCategoryNeedsFocus)
	}
}

func TestBuildProfileOverallIsTopicMean(t *testing.T) {
	cfg := config.Default()
	userID := uuid.New()
	strongTopic := &types.Topic{ID: uuid.New(), Name: "Percentages", Category: types.CategoryArithmetic}
	weakTopic := &types.Topic{ID: uuid.New(), Name: "Probability", Category: types.CategoryModernMath}
	strongQ := &types.Question{ID: uuid.New(), TopicID: strongTopic.ID, DifficultyBand: types.DifficultyEasy, Active: true}
	weakQ := &types.Question{ID: uuid.New(), TopicID: weakTopic.ID, DifficultyBand: types.DifficultyEasy, Active: true}

	base := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	var attempts []*types.Attempt
	for i := 0; i < 6; i++ {
		attempts = append(attempts, mkAttempt(userID, strongQ.ID, true, types.DifficultyEasy, base.Add(time.Duration(i)*time.Hour)))
		attempts = append(attempts, mkAttempt(userID, weakQ.ID, false, types.DifficultyEasy, base.Add(time.Duration(i)*time.Hour)))
	}

	profile := buildProfile(userID, attempts,
		[]*types.Question{strongQ, weakQ},
		[]*types.Topic{strongTopic, weakTopic},
		cfg)

	if len(profile.Topics) != 2 {
		t.Fatalf("topics = %d, want 2", len(profile.Topics))
	}
	for id, stat := range profile.Topics {
		if stat.Mastery < 0 || stat.Mastery > 1 {
			t.Fatalf("topic %s mastery %v out of [0,1]", id, stat.Mastery)
		}
	}
	strong := profile.Topics[strongTopic.ID]
	weak := profile.Topics[weakTopic.ID]
	if strong.Mastery <= weak.Mastery {
		t.Fatalf("all-correct topic (%v) should outrank all-incorrect topic (%v)", strong.Mastery, weak.Mastery)
	}
	wantOverall := (strong.Mastery + weak.Mastery) / 2
	if math.Abs(profile.Overall-wantOverall) > 1e-9 {
		t.Fatalf("overall = %v, want mean of topics %v", profile.Overall, wantOverall)
	}
	if math.Abs(profile.CategoryAverages[types.CategoryArithmetic]-strong.Mastery) > 1e-9 {
		t.Fatalf("arithmetic average = %v, want %v", profile.CategoryAverages[types.CategoryArithmetic], strong.Mastery)
	}
}

func TestEwmaFavorsRecentWork(t *testing.T) {
	cfg := config.Default().Mastery
	topicID := uuid.New()
	userID := uuid.New()
	qID := uuid.New()
	base := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)

	improving := make([]*types.Attempt, 0, 8)
	declining := make([]*types.Attempt, 0, 8)
	for i := 0; i < 8; i++ {
		at := base.Add(time.Duration(i) * time.Hour)
		improving = append(improving, mkAttempt(userID, qID, i >= 4, types.DifficultyMedium, at))
		declining = append(declining, mkAttempt(userID, qID, i < 4, types.DifficultyMedium, at))
	}

	up := aggregateTopic(topicID, improving, cfg)
	down := aggregateTopic(topicID, declining, cfg)
	if up.Mastery <= down.Mastery {
		t.Fatalf("recent-correct history (%v) should outrank recent-incorrect history (%v)", up.Mastery, down.Mastery)
	}
}

func TestMasteryCategoryBoundaries(t *testing.T) {
	cfg := config.Default().Mastery
	cases := []struct {
		mastery float64
		want    string
	}{
		{0.0, types.MasteryCategoryNeedsFocus},
		{0.59, types.MasteryCategoryNeedsFocus},
		{0.60, types.MasteryCategoryOnTrack},
		{0.84, types.MasteryCategoryOnTrack},
		{0.85, types.MasteryCategoryMastered},
		{1.0, types.MasteryCategoryMastered},
	}
	for _, tc := range cases {
		if got := masteryCategoryFor(tc.mastery, cfg); got != tc.want {
			t.Fatalf("masteryCategoryFor(%v) = %q, want %q", tc.mastery, got, tc.want)
		}
	}
}

func TestAggregateTopicBandAccuracy(t *testing.T) {
	cfg := config.Default().Mastery
	userID := uuid.New()
	qID := uuid.New()
	base := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)

	attempts := []*types.Attempt{
		mkAttempt(userID, qID, true, types.DifficultyEasy, base),
		mkAttempt(userID, qID, true, types.DifficultyEasy, base.Add(time.Hour)),
		mkAttempt(userID, qID, false, types.DifficultyMedium, base.Add(2*time.Hour)),
		mkAttempt(userID, qID, true, types.DifficultyMedium, base.Add(3*time.Hour)),
		mkAttempt(userID, qID, false, types.DifficultyHard, base.Add(4*time.Hour)),
	}
	stat := aggregateTopic(uuid.New(), attempts, cfg)

	if stat.AccuracyEasy != 1.0 {
		t.Fatalf("easy accuracy = %v, want 1.0", stat.AccuracyEasy)
	}
	if stat.AccuracyMedium != 0.5 {
		t.Fatalf("medium accuracy = %v, want 0.5", stat.AccuracyMedium)
	}
	if stat.AccuracyHard != 0.0 {
		t.Fatalf("hard accuracy = %v, want 0.0", stat.AccuracyHard)
	}
	if stat.AttemptCount != 5 {
		t.Fatalf("attempt count = %d, want 5", stat.AttemptCount)
	}
	if want := 5.0 / 20.0; math.Abs(stat.Exposure-want) > 1e-9 {
		t.Fatalf("exposure = %v, want %v", stat.Exposure, want)
	}
}

func TestCollectAttemptStats(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	window := 14 * 24 * time.Hour
	userID := uuid.New()
	q1 := uuid.New()
	q2 := uuid.New()

	recentMiss := mkAttempt(userID, q1, false, types.DifficultyEasy, now.Add(-2*24*time.Hour))
	oldMiss := mkAttempt(userID, q1, false, types.DifficultyEasy, now.Add(-20*24*time.Hour))
	hit := mkAttempt(userID, q1, true, types.DifficultyEasy, now.Add(-1*24*time.Hour))
	other := mkAttempt(userID, q2, true, types.DifficultyEasy, now.Add(-5*24*time.Hour))

	stats := collectAttemptStats([]*types.Attempt{oldMiss, recentMiss, hit, other}, now, window)

	st := stats[q1]
	if st.Count != 3 {
		t.Fatalf("q1 count = %d, want 3", st.Count)
	}
	if st.RecentIncorrect != 1 {
		t.Fatalf("q1 recent incorrect = %d, want 1 (old miss outside window)", st.RecentIncorrect)
	}
	if st.LastAt == nil || !st.LastAt.Equal(hit.CreatedAt) {
		t.Fatalf("q1 last attempt = %v, want %v", st.LastAt, hit.CreatedAt)
	}
	if stats[q2].Count != 1 {
		t.Fatalf("q2 count = %d, want 1", stats[q2].Count)
	}
}

func TestRefreshMasteryRecordsUpserts(t *testing.T) {
	log := testLogger(t)
	cfg := config.Default()
	userID := uuid.New()

	topic := &types.Topic{ID: uuid.New(), Name: "Triangles", Category: types.CategoryGeometry}
	question := &types.Question{ID: uuid.New(), TopicID: topic.ID, DifficultyBand: types.DifficultyMedium, Active: true}
	attemptRepo := &fakeAttemptRepo{}
	base := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 4; i++ {
		attemptRepo.attempts = append(attemptRepo.attempts, mkAttempt(userID, question.ID, true, types.DifficultyMedium, base.Add(time.Duration(i)*time.Hour)))
	}
	masteryRepo := &fakeMasteryRepo{}

	svc := NewMasteryService(nil, log, cfg, attemptRepo, &fakeQuestionRepo{questions: []*types.Question{question}}, &fakeTopicRepo{topics: []*types.Topic{topic}}, masteryRepo)

	profile, err := svc.RefreshMasteryRecords(context.Background(), userID)
	if err != nil {
		t.Fatalf("RefreshMasteryRecords: %v", err)
	}
	if len(profile.Topics) != 1 {
		t.Fatalf("profile topics = %d, want 1", len(profile.Topics))
	}
	if len(masteryRepo.upserts) != 1 {
		t.Fatalf("upserts = %d, want 1", len(masteryRepo.upserts))
	}
	record := masteryRepo.upserts[0]
	if record.UserID != userID || record.TopicID != topic.ID {
		t.Fatalf("upsert keyed (%s, %s), want (%s, %s)", record.UserID, record.TopicID, userID, topic.ID)
	}
	if record.MasteryPct != profile.Topics[topic.ID].Mastery {
		t.Fatalf("record mastery = %v, want %v", record.MasteryPct, profile.Topics[topic.ID].Mastery)
	}
}
