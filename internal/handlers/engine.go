package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ascribenow/Workandcat-sub001/internal/services"
)

// EngineHandler adapts the core entry points to HTTP. Authentication is the
// surrounding system's concern; user ids arrive as already-trusted
// parameters.
type EngineHandler struct {
	mastery    *services.MasteryService
	diagnostic *services.DiagnosticService
	selector   *services.SelectorService
	plan       *services.PlanService
}

func NewEngineHandler(mastery *services.MasteryService, diagnostic *services.DiagnosticService, selector *services.SelectorService, plan *services.PlanService) *EngineHandler {
	return &EngineHandler{mastery: mastery, diagnostic: diagnostic, selector: selector, plan: plan}
}

func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *EngineHandler) GetMasteryProfile(c *gin.Context) {
	userID, ok := parseID(c, c.Param("user_id"))
	if !ok {
		return
	}
	profile, err := h.mastery.BuildProfile(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"profile": profile})
}

func (h *EngineHandler) CreateDiagnosticSet(c *gin.Context) {
	setID, err := h.diagnostic.CreateSet(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"set_id": setID})
}

func (h *EngineHandler) StartDiagnostic(c *gin.Context) {
	var req struct {
		UserID uuid.UUID `json:"user_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	sessionID, err := h.diagnostic.Start(c.Request.Context(), req.UserID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session_id": sessionID})
}

func (h *EngineHandler) GetDiagnosticQuestions(c *gin.Context) {
	sessionID, ok := parseID(c, c.Param("session_id"))
	if !ok {
		return
	}
	questions, err := h.diagnostic.Questions(c.Request.Context(), sessionID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"questions": questions})
}

func (h *EngineHandler) CompleteDiagnostic(c *gin.Context) {
	sessionID, ok := parseID(c, c.Param("session_id"))
	if !ok {
		return
	}
	var req struct {
		Attempts []services.DiagnosticAttemptInput `json:"attempts" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	result, err := h.diagnostic.Complete(c.Request.Context(), sessionID, req.Attempts)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"result": result})
}

func (h *EngineHandler) GetDiagnosticResult(c *gin.Context) {
	sessionID, ok := parseID(c, c.Param("session_id"))
	if !ok {
		return
	}
	result, err := h.diagnostic.Result(c.Request.Context(), sessionID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"result": result})
}

func (h *EngineHandler) SelectAdaptiveQuestions(c *gin.Context) {
	var req struct {
		UserID      uuid.UUID `json:"user_id" binding:"required"`
		TargetCount int       `json:"target_count"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ids, err := h.selector.SelectQuestions(c.Request.Context(), req.UserID, req.TargetCount)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"question_ids": ids})
}

func (h *EngineHandler) CreatePlan(c *gin.Context) {
	var req struct {
		UserID         uuid.UUID `json:"user_id" binding:"required"`
		Track          string    `json:"track" binding:"required"`
		WeekdayMinutes int       `json:"weekday_minutes"`
		WeekendMinutes int       `json:"weekend_minutes"`
		StartDate      string    `json:"start_date" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	startDate, err := time.Parse("2006-01-02", req.StartDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "start_date must be YYYY-MM-DD"})
		return
	}
	planID, err := h.plan.CreatePlan(c.Request.Context(), req.UserID, req.Track, req.WeekdayMinutes, req.WeekendMinutes, startDate)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"plan_id": planID})
}

func (h *EngineHandler) AdjustPlanNightly(c *gin.Context) {
	planID, ok := parseID(c, c.Param("plan_id"))
	if !ok {
		return
	}
	if err := h.plan.AdjustNightly(c.Request.Context(), planID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "adjusted"})
}

func parseID(c *gin.Context, raw string) (uuid.UUID, bool) {
	id, err := uuid.Parse(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return uuid.Nil, false
	}
	return id, true
}

func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrSessionNotFound), errors.Is(err, services.ErrPlanNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrDiagnosticCompleted), errors.Is(err, services.ErrDiagnosticNotComplete):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrNoActiveDiagnosticSet), errors.Is(err, services.ErrNoActiveQuestions):
		c.JSON(http.StatusPreconditionFailed, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
