package services

import (
	"time"

	"github.com/ascribenow/Workandcat-sub001/internal/config"
)

// SpacingPolicy decides whether a question may be re-served. It is a pure
// value type; both the adaptive selector and the plan generator consult it.
type SpacingPolicy struct {
	cfg config.SpacingConfig
}

func NewSpacingPolicy(cfg config.SpacingConfig) SpacingPolicy {
	return SpacingPolicy{cfg: cfg}
}

// CanAttempt reports whether enough time has elapsed since the last attempt.
// A nil timestamp means the question was never served and is always
// eligible. The cooldown shortens as the recent incorrect count grows, so
// questions the user is getting wrong come back sooner.
func (p SpacingPolicy) CanAttempt(lastAttempt *time.Time, recentIncorrect int) bool {
	if lastAttempt == nil {
		return true
	}
	return time.Since(*lastAttempt) >= p.Cooldown(recentIncorrect)
}

// CanAttemptAt is CanAttempt evaluated against an explicit clock.
func (p SpacingPolicy) CanAttemptAt(lastAttempt *time.Time, recentIncorrect int, now time.Time) bool {
	if lastAttempt == nil {
		return true
	}
	return now.Sub(*lastAttempt) >= p.Cooldown(recentIncorrect)
}

// Cooldown returns the required gap for the given recent incorrect count.
func (p SpacingPolicy) Cooldown(recentIncorrect int) time.Duration {
	hours := p.cfg.CooldownHoursNoIncorrect
	switch {
	case recentIncorrect >= p.cfg.RecentIncorrectManyMistakes:
		hours = p.cfg.CooldownHoursManyIncorrect
	case recentIncorrect == 2:
		hours = p.cfg.CooldownHoursTwoIncorrect
	case recentIncorrect == 1:
		hours = p.cfg.CooldownHoursOneIncorrect
	}
	return time.Duration(hours) * time.Hour
}

// RecentWindow is the lookback used when counting recent incorrect attempts.
func (p SpacingPolicy) RecentWindow() time.Duration {
	return time.Duration(p.cfg.RecentIncorrectWindowDays) * 24 * time.Hour
}
