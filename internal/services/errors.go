package services

import "errors"

// Configuration errors surface to the caller as hard failures; data-absence
// cases degrade through fallbacks instead and never raise.
var (
	ErrNoActiveDiagnosticSet = errors.New("no active diagnostic set")
	ErrNoActiveQuestions     = errors.New("no active questions")
	ErrSessionNotFound       = errors.New("diagnostic session not found")
	ErrDiagnosticCompleted   = errors.New("diagnostic already completed")
	ErrDiagnosticNotComplete = errors.New("diagnostic not completed yet")
	ErrPlanNotFound          = errors.New("study plan not found")
)
