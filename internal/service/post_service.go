package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/maheshrc27/publish-engine/internal/models"
	"github.com/maheshrc27/publish-engine/internal/orchestrator"
	"github.com/maheshrc27/publish-engine/internal/repository"
	"github.com/maheshrc27/publish-engine/internal/transfer"
	"github.com/maheshrc27/publish-engine/internal/validation"
	"github.com/maheshrc27/publish-engine/pkg/logging"
)

var (
	ErrInvalidPost      = errors.New("invalid post")
	ErrPostNotFound     = errors.New("post not found")
	ErrAccountNotFound  = errors.New("social account not found")
	ErrNoValidTargets   = errors.New("post is not valid for any selected account")
	ErrNotRepublishable = errors.New("post is not in a republishable state")
)

// Dispatcher hands an immediate post to the background queue.
type Dispatcher interface {
	Dispatch(ctx context.Context, postID int64) error
}

type PostService interface {
	Submit(ctx context.Context, workspaceID int64, req *transfer.SubmitPostRequest) (*transfer.SubmitPostResponse, error)
	Validate(ctx context.Context, workspaceID int64, req *transfer.SubmitPostRequest) (*transfer.SubmitPostResponse, error)
	Result(ctx context.Context, workspaceID, postID int64) (*models.PostResult, error)
	Republish(ctx context.Context, workspaceID, postID int64) (*models.PostResult, error)
}

// DefaultStaleAfter is used when NewPostService is given no staleness bound.
const DefaultStaleAfter = 30 * time.Minute

type postService struct {
	pr         repository.PostRepository
	ac         repository.SocialAccountRepository
	pa         repository.PublishAttemptRepository
	validator  *validation.Validator
	orch       orchestrator.Orchestrator
	dispatcher Dispatcher
	staleAfter time.Duration
	now        func() time.Time
	log        *zap.Logger
}

func NewPostService(
	pr repository.PostRepository,
	ac repository.SocialAccountRepository,
	pa repository.PublishAttemptRepository,
	validator *validation.Validator,
	orch orchestrator.Orchestrator,
	dispatcher Dispatcher,
	staleAfter time.Duration,
) PostService {
	if staleAfter <= 0 {
		staleAfter = DefaultStaleAfter
	}
	return &postService{
		pr:         pr,
		ac:         ac,
		pa:         pa,
		validator:  validator,
		orch:       orch,
		dispatcher: dispatcher,
		staleAfter: staleAfter,
		now:        time.Now,
		log:        logging.WithComponent("post_service"),
	}
}

func (s *postService) Submit(ctx context.Context, workspaceID int64, req *transfer.SubmitPostRequest) (*transfer.SubmitPostResponse, error) {
	resp, err := s.Validate(ctx, workspaceID, req)
	if err != nil {
		return resp, err
	}

	now := s.now()
	post := models.Post{
		WorkspaceID:   workspaceID,
		Content:       req.Content,
		Title:         req.Title,
		Format:        req.Format,
		Media:         req.Media,
		TargetIDs:     uniqueIDs(req.TargetIDs),
		ScheduledTime: req.ScheduledTime,
		Status:        models.PostStatusScheduled,
	}
	if req.Draft {
		post.Status = models.PostStatusDraft
	} else if post.ScheduledTime == nil {
		post.ScheduledTime = &now
	}

	postID, err := s.pr.Create(ctx, nil, &post)
	if err != nil {
		return resp, fmt.Errorf("error creating post: %w", err)
	}
	resp.PostID = postID
	resp.Status = post.Status

	log := s.log.With(zap.Int64("post_id", postID), zap.Int64("workspace_id", workspaceID))
	if post.Status == models.PostStatusScheduled && !post.ScheduledTime.After(now) {
		// The scheduler picks the post up on its next tick if this fails.
		if err := s.dispatcher.Dispatch(ctx, postID); err != nil {
			log.Warn("failed to dispatch immediate post", zap.Error(err))
		}
	}
	log.Info("post submitted", zap.String("status", string(post.Status)), zap.Int("targets", len(post.TargetIDs)))

	return resp, nil
}

// Validate checks the draft against every selected account without
// persisting anything. ErrNoValidTargets comes back with the full report.
func (s *postService) Validate(ctx context.Context, workspaceID int64, req *transfer.SubmitPostRequest) (*transfer.SubmitPostResponse, error) {
	if req == nil {
		return nil, fmt.Errorf("%w: empty request", ErrInvalidPost)
	}
	if req.Format == "" {
		req.Format = models.FormatPost
	}
	ids := uniqueIDs(req.TargetIDs)
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: no target accounts selected", ErrInvalidPost)
	}

	accounts, err := s.targets(ctx, workspaceID, ids)
	if err != nil {
		return nil, err
	}

	platforms := make([]models.Platform, 0, len(accounts))
	for _, a := range accounts {
		platforms = append(platforms, a.Platform)
	}
	report := s.validator.Validate(validation.Draft{
		Content: req.Content,
		Media:   req.Media,
		Format:  req.Format,
	}, platforms)

	resp := &transfer.SubmitPostResponse{Validation: make([]transfer.TargetValidation, 0, len(accounts))}
	passing := 0
	for _, a := range accounts {
		res := report[a.Platform]
		if res.Valid {
			passing++
		}
		resp.Validation = append(resp.Validation, transfer.TargetValidation{
			TargetID: a.ID,
			Platform: a.Platform,
			Valid:    res.Valid,
			Errors:   res.Errors,
			Warnings: res.Warnings,
		})
	}
	if passing == 0 {
		return resp, ErrNoValidTargets
	}
	return resp, nil
}

// targets loads the accounts in the order given. Every one must belong to
// the workspace and be active.
func (s *postService) targets(ctx context.Context, workspaceID int64, ids []int64) ([]*models.SocialAccount, error) {
	accounts, err := s.ac.ListByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("error loading social accounts: %w", err)
	}
	byID := make(map[int64]*models.SocialAccount, len(accounts))
	for _, a := range accounts {
		byID[a.ID] = a
	}

	var missing []string
	out := make([]*models.SocialAccount, 0, len(ids))
	for _, id := range ids {
		a, ok := byID[id]
		if !ok || a.WorkspaceID != workspaceID || !a.Active {
			missing = append(missing, fmt.Sprint(id))
			continue
		}
		out = append(out, a)
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, strings.Join(missing, ", "))
	}
	return out, nil
}

func (s *postService) Result(ctx context.Context, workspaceID, postID int64) (*models.PostResult, error) {
	post, err := s.post(ctx, workspaceID, postID)
	if err != nil {
		return nil, err
	}

	result := &models.PostResult{
		PostID:    post.ID,
		CycleID:   post.CycleID,
		Status:    post.Status,
		PerTarget: []models.TargetOutcome{},
	}
	if post.PublishedAt != nil {
		result.PublishedAt = *post.PublishedAt
	}
	if post.CycleID == "" {
		return result, nil
	}

	attempts, err := s.pa.ListByCycle(ctx, post.ID, post.CycleID)
	if err != nil {
		return nil, fmt.Errorf("error loading publish attempts: %w", err)
	}
	for _, a := range attempts {
		result.PerTarget = append(result.PerTarget, models.OutcomeFromAttempt(a))
	}
	// A republish in flight keeps the post in publishing; otherwise the
	// status is derived from the stored cycle the same way it was written.
	if post.Status != models.PostStatusPublishing && len(attempts) > 0 {
		result.Status = models.Aggregate(result.PerTarget)
	}
	return result, nil
}

// Republish runs a new cycle for a post whose last cycle failed on at least
// one target. Every target is sent again. A post stuck in publishing for
// longer than staleAfter is taken over as well.
func (s *postService) Republish(ctx context.Context, workspaceID, postID int64) (*models.PostResult, error) {
	post, err := s.post(ctx, workspaceID, postID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	var claimed bool
	if post.Status == models.PostStatusPublishing {
		claimed, err = s.pr.ReclaimStale(ctx, post.ID, now.Add(-s.staleAfter), now)
	} else {
		claimed, err = s.pr.Claim(ctx, post.ID,
			[]models.PostStatus{models.PostStatusFailed, models.PostStatusPartiallyPublished}, now)
	}
	if err != nil {
		return nil, fmt.Errorf("error claiming post: %w", err)
	}
	if !claimed {
		return nil, fmt.Errorf("%w: status is %s", ErrNotRepublishable, post.Status)
	}
	post.Status = models.PostStatusPublishing

	s.log.Info("republishing post", zap.Int64("post_id", post.ID), zap.String("previous_cycle", post.CycleID))
	return s.orch.Publish(ctx, post), nil
}

func (s *postService) post(ctx context.Context, workspaceID, postID int64) (*models.Post, error) {
	if postID <= 0 {
		return nil, ErrPostNotFound
	}
	post, err := s.pr.GetByID(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("error getting post: %w", err)
	}
	if post == nil || post.WorkspaceID != workspaceID {
		return nil, ErrPostNotFound
	}
	return post, nil
}

func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
