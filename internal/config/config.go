package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// EngineConfig carries every tunable used by the selection, diagnostic and
// planning services. Components receive it explicitly; there are no package
// level defaults consulted at call time.
type EngineConfig struct {
	Spacing    SpacingConfig    `yaml:"spacing"`
	Mastery    MasteryConfig    `yaml:"mastery"`
	Diagnostic DiagnosticConfig `yaml:"diagnostic"`
	Selector   SelectorConfig   `yaml:"selector"`
	Plan       PlanConfig       `yaml:"plan"`
}

// SpacingConfig is the cooldown ladder, indexed by the number of recent
// incorrect attempts on the question. More recent mistakes mean a shorter
// cooldown so the user can retry sooner.
type SpacingConfig struct {
	CooldownHoursNoIncorrect    int `yaml:"cooldown_hours_no_incorrect"`
	CooldownHoursOneIncorrect   int `yaml:"cooldown_hours_one_incorrect"`
	CooldownHoursTwoIncorrect   int `yaml:"cooldown_hours_two_incorrect"`
	CooldownHoursManyIncorrect  int `yaml:"cooldown_hours_many_incorrect"`
	RecentIncorrectWindowDays   int `yaml:"recent_incorrect_window_days"`
	RecentIncorrectManyMistakes int `yaml:"recent_incorrect_many_mistakes"`
}

type MasteryConfig struct {
	EwmaAlpha           float64 `yaml:"ewma_alpha"`
	NeedsFocusBelow     float64 `yaml:"needs_focus_below"`
	MasteredAtOrAbove   float64 `yaml:"mastered_at_or_above"`
	ExposureFullAtCount int     `yaml:"exposure_full_at_count"`
}

type DiagnosticConfig struct {
	SetName          string  `yaml:"set_name"`
	TargetSecEasy    float64 `yaml:"target_sec_easy"`
	TargetSecMedium  float64 `yaml:"target_sec_medium"`
	TargetSecHard    float64 `yaml:"target_sec_hard"`
	AccuracyWeight   float64 `yaml:"accuracy_weight"`
	SpeedWeight      float64 `yaml:"speed_weight"`
	StabilityWeight  float64 `yaml:"stability_weight"`
	SpeedScoreFloor  float64 `yaml:"speed_score_floor"`
	TrackGoodAt      float64 `yaml:"track_good_at"`
	TrackIntermedAt  float64 `yaml:"track_intermediate_at"`
	ReadyExcellentAt float64 `yaml:"readiness_excellent_at"`
	ReadyGoodAt      float64 `yaml:"readiness_good_at"`
	ReadyAverageAt   float64 `yaml:"readiness_average_at"`
}

type SelectorConfig struct {
	DefaultTargetCount int `yaml:"default_target_count"`
	MaxTargetCount     int `yaml:"max_target_count"`

	MasteryGapWeight      float64 `yaml:"mastery_gap_weight"`
	LearningImpactWeight  float64 `yaml:"learning_impact_weight"`
	DifficultyMatchWeight float64 `yaml:"difficulty_match_weight"`
	SpacingBonusWeight    float64 `yaml:"spacing_bonus_weight"`

	SpacingPenalty       float64 `yaml:"spacing_penalty"`
	ImportanceDefault    float64 `yaml:"importance_default"`
	FrequencyPenaltyStep float64 `yaml:"frequency_penalty_step"`
	FrequencyPenaltyMin  float64 `yaml:"frequency_penalty_min"`

	BeginnerBelow     float64 `yaml:"beginner_below"`
	IntermediateBelow float64 `yaml:"intermediate_below"`

	// Per-band mastery-category sub-quotas, applied within each
	// difficulty bucket.
	NeedsFocusShare float64 `yaml:"needs_focus_share"`
	OnTrackShare    float64 `yaml:"on_track_share"`
	MasteredShare   float64 `yaml:"mastered_share"`
}

type PlanConfig struct {
	HorizonDays        int     `yaml:"horizon_days"`
	NightlyWindowUnits int     `yaml:"nightly_window_units"`
	MasteryGainTarget  float64 `yaml:"mastery_gain_target"`
	MasteryCeiling     float64 `yaml:"mastery_ceiling"`
	DefaultMastery     float64 `yaml:"default_mastery"`

	WeakShare     float64 `yaml:"weak_share"`
	OnTrackShare  float64 `yaml:"on_track_share"`
	MasteredShare float64 `yaml:"mastered_share"`
}

// Default returns the production tuning. Tests construct their own instances
// from this and override what they exercise.
func Default() EngineConfig {
	return EngineConfig{
		Spacing: SpacingConfig{
			CooldownHoursNoIncorrect:    72,
			CooldownHoursOneIncorrect:   48,
			CooldownHoursTwoIncorrect:   24,
			CooldownHoursManyIncorrect:  12,
			RecentIncorrectWindowDays:   14,
			RecentIncorrectManyMistakes: 3,
		},
		Mastery: MasteryConfig{
			EwmaAlpha:           0.25,
			NeedsFocusBelow:     0.60,
			MasteredAtOrAbove:   0.85,
			ExposureFullAtCount: 20,
		},
		Diagnostic: DiagnosticConfig{
			SetName:          "baseline-diagnostic-v1",
			TargetSecEasy:    90,
			TargetSecMedium:  150,
			TargetSecHard:    210,
			AccuracyWeight:   0.55,
			SpeedWeight:      0.25,
			StabilityWeight:  0.20,
			SpeedScoreFloor:  0.1,
			TrackGoodAt:      0.75,
			TrackIntermedAt:  0.50,
			ReadyExcellentAt: 0.80,
			ReadyGoodAt:      0.65,
			ReadyAverageAt:   0.45,
		},
		Selector: SelectorConfig{
			DefaultTargetCount:    12,
			MaxTargetCount:        15,
			MasteryGapWeight:      0.4,
			LearningImpactWeight:  0.3,
			DifficultyMatchWeight: 0.2,
			SpacingBonusWeight:    0.1,
			SpacingPenalty:        0.3,
			ImportanceDefault:     0.5,
			FrequencyPenaltyStep:  0.1,
			FrequencyPenaltyMin:   0.1,
			BeginnerBelow:         0.40,
			IntermediateBelow:     0.75,
			NeedsFocusShare:       0.7,
			OnTrackShare:          0.2,
			MasteredShare:         0.1,
		},
		Plan: PlanConfig{
			HorizonDays:        90,
			NightlyWindowUnits: 7,
			MasteryGainTarget:  0.30,
			MasteryCeiling:     0.85,
			DefaultMastery:     0.50,
			WeakShare:          0.6,
			OnTrackShare:       0.3,
			MasteredShare:      0.1,
		},
	}
}

// Load reads overrides from a YAML file on top of Default. An empty path
// returns Default unchanged.
func Load(path string) (EngineConfig, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read engine config: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parse engine config: %w", err)
	}
	return cfg, nil
}
