package jobs

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/ascribenow/Workandcat-sub001/internal/logger"
	"github.com/ascribenow/Workandcat-sub001/internal/repos"
	"github.com/ascribenow/Workandcat-sub001/internal/services"
)

// NightlyAdjuster re-runs selection for every active plan's upcoming
// pending units. Each plan commits independently; one plan failing does not
// corrupt or abort the others.
type NightlyAdjuster struct {
	log      *logger.Logger
	planRepo repos.StudyPlanRepo
	planSvc  *services.PlanService

	// Concurrency is the number of plans adjusted in parallel.
	Concurrency int
}

func NewNightlyAdjuster(baseLog *logger.Logger, planRepo repos.StudyPlanRepo, planSvc *services.PlanService) *NightlyAdjuster {
	return &NightlyAdjuster{
		log:         baseLog.With("job", "NightlyAdjuster"),
		planRepo:    planRepo,
		planSvc:     planSvc,
		Concurrency: 4,
	}
}

// Run adjusts all active plans. Per-plan failures are logged and skipped;
// Run itself only fails when the plan list cannot be fetched.
func (j *NightlyAdjuster) Run(ctx context.Context) error {
	plans, err := j.planRepo.GetActive(ctx, nil)
	if err != nil {
		j.log.Error("failed to list active plans", "error", err)
		return err
	}
	j.log.Info("nightly adjustment starting", "plans", len(plans))

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(j.Concurrency)
	for _, plan := range plans {
		group.Go(func() error {
			if err := j.planSvc.AdjustNightly(groupCtx, plan.ID); err != nil {
				j.log.Warn("plan adjustment failed, skipping", "plan_id", plan.ID, "error", err)
			}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return err
	}
	j.log.Info("nightly adjustment finished", "plans", len(plans))
	return nil
}
