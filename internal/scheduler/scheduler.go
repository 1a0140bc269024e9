package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/maheshrc27/publish-engine/internal/models"
	"github.com/maheshrc27/publish-engine/internal/orchestrator"
	"github.com/maheshrc27/publish-engine/internal/repository"
	"github.com/maheshrc27/publish-engine/pkg/logging"
)

const (
	DefaultBatchSize       = 50
	DefaultPostConcurrency = 8
)

type Options struct {
	BatchSize       int
	PostConcurrency int
}

// Scheduler publishes posts whose scheduled time has passed. Ticks may
// overlap; the claim on each post decides which tick publishes it.
type Scheduler struct {
	posts repository.PostRepository
	orch  orchestrator.Orchestrator
	opts  Options
	log   *zap.Logger
}

func New(posts repository.PostRepository, orch orchestrator.Orchestrator, opts Options) *Scheduler {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.PostConcurrency <= 0 {
		opts.PostConcurrency = DefaultPostConcurrency
	}
	return &Scheduler{
		posts: posts,
		orch:  orch,
		opts:  opts,
		log:   logging.WithComponent("scheduler"),
	}
}

// Tick claims and publishes every due post. A listing failure aborts the
// tick; claim failures are returned joined after the other posts ran.
func (s *Scheduler) Tick(ctx context.Context, now time.Time) ([]*models.PostResult, error) {
	due, err := s.posts.ListDue(ctx, now, s.opts.BatchSize)
	if err != nil {
		return nil, fmt.Errorf("list due posts: %w", err)
	}
	if len(due) == 0 {
		return nil, nil
	}

	var (
		mu      sync.Mutex
		results []*models.PostResult
		errs    []error
	)

	g := new(errgroup.Group)
	g.SetLimit(s.opts.PostConcurrency)
	for _, post := range due {
		post := post
		g.Go(func() error {
			claimed, err := s.posts.Claim(ctx, post.ID, []models.PostStatus{models.PostStatusScheduled}, now)
			if err != nil {
				s.log.Error("failed to claim post", zap.Int64("post_id", post.ID), zap.Error(err))
				mu.Lock()
				errs = append(errs, fmt.Errorf("claim post %d: %w", post.ID, err))
				mu.Unlock()
				return nil
			}
			if !claimed {
				s.log.Debug("post claimed by another tick", zap.Int64("post_id", post.ID))
				return nil
			}
			post.Status = models.PostStatusPublishing

			res := s.orch.Publish(ctx, post)
			mu.Lock()
			results = append(results, res)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	s.log.Info("scheduler tick finished",
		zap.Int("due", len(due)),
		zap.Int("published", len(results)),
		zap.Int("claim_errors", len(errs)),
	)
	return results, errors.Join(errs...)
}
