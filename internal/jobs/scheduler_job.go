package job

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/maheshrc27/publish-engine/internal/models"
	"github.com/maheshrc27/publish-engine/pkg/logging"
)

// Ticker is satisfied by *scheduler.Scheduler.
type Ticker interface {
	Tick(ctx context.Context, now time.Time) ([]*models.PostResult, error)
}

type SchedulerJob struct {
	scheduler Ticker
	log       *zap.Logger
}

// NewSchedulerJob runs ticks without a deadline of their own; every target
// is bounded by the orchestrator instead. Ticks are allowed to overlap when
// one runs longer than the cron interval.
func NewSchedulerJob(scheduler Ticker) *SchedulerJob {
	return &SchedulerJob{scheduler: scheduler, log: logging.WithComponent("scheduler_job")}
}

func (j *SchedulerJob) Run() {
	results, err := j.scheduler.Tick(context.Background(), time.Now())
	if err != nil {
		j.log.Error("scheduler tick failed", zap.Error(err))
	}
	for _, r := range results {
		if r.Status != models.PostStatusPublished {
			j.log.Warn("post not fully published",
				zap.Int64("post_id", r.PostID),
				zap.String("cycle_id", r.CycleID),
				zap.String("status", string(r.Status)),
			)
		}
	}
}
