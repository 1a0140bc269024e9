package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/maheshrc27/publish-engine/internal/events"
	"github.com/maheshrc27/publish-engine/internal/models"
	"github.com/maheshrc27/publish-engine/internal/publisher"
	"github.com/maheshrc27/publish-engine/internal/repository"
	"github.com/maheshrc27/publish-engine/internal/token"
	"github.com/maheshrc27/publish-engine/internal/validation"
	"github.com/maheshrc27/publish-engine/pkg/logging"
	"github.com/maheshrc27/publish-engine/pkg/telemetry"
)

const (
	DefaultTargetConcurrency = 4
	DefaultTargetTimeout     = 2 * time.Minute
)

// Orchestrator runs one publish cycle of a post across all its targets.
type Orchestrator interface {
	// Publish never fails as a whole: every failure is recorded on the
	// target it belongs to and reflected in the aggregate status.
	Publish(ctx context.Context, post *models.Post) *models.PostResult
}

type Options struct {
	TargetConcurrency int
	TargetTimeout     time.Duration
}

type orchestrator struct {
	posts      repository.PostRepository
	attempts   repository.PublishAttemptRepository
	accounts   repository.SocialAccountRepository
	tokens     token.Manager
	validator  *validation.Validator
	publishers publisher.Registry
	events     events.Publisher
	opts       Options
	now        func() time.Time
	log        *zap.Logger
}

func NewOrchestrator(
	posts repository.PostRepository,
	attempts repository.PublishAttemptRepository,
	accounts repository.SocialAccountRepository,
	tokens token.Manager,
	validator *validation.Validator,
	publishers publisher.Registry,
	ev events.Publisher,
	opts Options,
) Orchestrator {
	if opts.TargetConcurrency <= 0 {
		opts.TargetConcurrency = DefaultTargetConcurrency
	}
	if opts.TargetTimeout <= 0 {
		opts.TargetTimeout = DefaultTargetTimeout
	}
	if ev == nil {
		ev = events.NoopPublisher{}
	}
	return &orchestrator{
		posts:      posts,
		attempts:   attempts,
		accounts:   accounts,
		tokens:     tokens,
		validator:  validator,
		publishers: publishers,
		events:     ev,
		opts:       opts,
		now:        time.Now,
		log:        logging.WithComponent("orchestrator"),
	}
}

// target is one account of the post within the current cycle.
type target struct {
	attempt *models.PublishAttempt
	account *models.SocialAccount
}

func (o *orchestrator) Publish(ctx context.Context, post *models.Post) *models.PostResult {
	executedAt := o.now()
	cycleID := newCycleID(post.ID, executedAt)
	log := o.log.With(zap.Int64("post_id", post.ID), zap.String("cycle_id", cycleID))

	// A claimed post must reach a final status, so the cycle ignores the
	// caller's deadline and cancellation. Each target has its own deadline.
	ctx, span := telemetry.StartSpan(context.WithoutCancel(ctx), "orchestrator.Publish")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("post.id", post.ID),
		attribute.String("post.cycle_id", cycleID),
		attribute.Int("post.targets", len(post.TargetIDs)),
	)

	if post.ScheduledTime != nil {
		if late := executedAt.Sub(*post.ScheduledTime); late > time.Minute {
			log.Info("publishing late post", zap.Duration("late_by", late))
		}
	}

	targets := o.prepare(ctx, post, cycleID, executedAt, log)

	outcomes := make([]models.TargetOutcome, len(targets))
	g := new(errgroup.Group)
	g.SetLimit(o.opts.TargetConcurrency)
	for i, t := range targets {
		i, t := i, t
		if t.attempt.Status.Terminal() {
			outcomes[i] = models.OutcomeFromAttempt(t.attempt)
			continue
		}
		g.Go(func() error {
			outcomes[i] = o.publishTarget(ctx, post, t, log)
			return nil
		})
	}
	_ = g.Wait()

	result := &models.PostResult{
		PostID:      post.ID,
		CycleID:     cycleID,
		Status:      models.Aggregate(outcomes),
		PublishedAt: executedAt,
		PerTarget:   outcomes,
	}

	if err := o.posts.Complete(ctx, post.ID, result.Status, cycleID, executedAt); err != nil {
		log.Error("failed to persist post status", zap.String("status", string(result.Status)), zap.Error(err))
	}
	post.Status = result.Status
	post.CycleID = cycleID
	post.PublishedAt = &executedAt

	span.SetAttributes(attribute.String("post.status", string(result.Status)))
	if result.Status == models.PostStatusFailed {
		span.SetStatus(codes.Error, "no target published")
	}
	log.Info("publish cycle finished", zap.String("status", string(result.Status)), zap.Int("targets", len(outcomes)))

	o.events.PostResult(ctx, result)
	return result
}

// prepare creates the pending attempt rows and settles the targets that can
// be decided before any network call: unknown accounts and content that
// fails validation.
func (o *orchestrator) prepare(ctx context.Context, post *models.Post, cycleID string, at time.Time, log *zap.Logger) []*target {
	ids := uniqueIDs(post.TargetIDs)

	found := make(map[int64]*models.SocialAccount, len(ids))
	accounts, loadErr := o.accounts.ListByIDs(ctx, ids)
	if loadErr != nil {
		log.Error("failed to load target accounts", zap.Error(loadErr))
	}
	for _, a := range accounts {
		found[a.ID] = a
	}

	targets := make([]*target, 0, len(ids))
	for _, id := range ids {
		t := &target{
			account: found[id],
			attempt: &models.PublishAttempt{
				PostID:      post.ID,
				CycleID:     cycleID,
				AccountID:   id,
				Status:      models.AttemptStatusPending,
				AttemptedAt: at,
			},
		}
		if t.account != nil {
			t.attempt.Platform = t.account.Platform
		}
		if _, err := o.attempts.CreatePending(ctx, t.attempt); err != nil {
			log.Error("failed to record pending attempt", zap.Int64("account_id", id), zap.Error(err))
		}
		targets = append(targets, t)
	}

	var platforms []models.Platform
	for _, t := range targets {
		tlog := log.With(zap.Int64("account_id", t.attempt.AccountID))
		switch {
		case loadErr != nil:
			o.fail(ctx, t, models.ErrorKindCredential, fmt.Sprintf("load account: %v", loadErr), tlog)
		case t.account == nil:
			o.fail(ctx, t, models.ErrorKindCredential, token.ErrAccountNotFound.Error(), tlog)
		default:
			platforms = append(platforms, t.account.Platform)
		}
	}

	report := o.validator.Validate(validation.Draft{
		Content: post.Content,
		Media:   post.Media,
		Format:  post.Format,
	}, platforms)
	for _, t := range targets {
		if t.attempt.Status.Terminal() {
			continue
		}
		if res := report[t.account.Platform]; !res.Valid {
			tlog := log.With(zap.Int64("account_id", t.account.ID), zap.String("platform", string(t.account.Platform)))
			o.fail(ctx, t, models.ErrorKindValidation, violations(res.Errors), tlog)
		}
	}
	return targets
}

func (o *orchestrator) publishTarget(ctx context.Context, post *models.Post, t *target, log *zap.Logger) models.TargetOutcome {
	log = log.With(zap.Int64("account_id", t.account.ID), zap.String("platform", string(t.account.Platform)))

	ctx, span := telemetry.StartSpan(ctx, "orchestrator.publishTarget")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("account.id", t.account.ID),
		attribute.String("account.platform", string(t.account.Platform)),
	)

	tctx, cancel := context.WithTimeout(ctx, o.opts.TargetTimeout)
	defer cancel()

	outcome := o.runTarget(tctx, post, t, log)
	if outcome.Status == models.AttemptStatusFailed {
		span.SetStatus(codes.Error, outcome.Error)
		span.SetAttributes(attribute.String("error.kind", string(outcome.ErrorKind)))
	}
	return outcome
}

func (o *orchestrator) runTarget(ctx context.Context, post *models.Post, t *target, log *zap.Logger) models.TargetOutcome {
	pub, ok := o.publishers.Lookup(t.account.Platform)
	if !ok {
		return o.fail(ctx, t, models.ErrorKindPermanent, "no publisher for platform "+string(t.account.Platform), log)
	}

	cred, err := o.tokens.Resolve(ctx, t.account.ID)
	if err != nil {
		if ctx.Err() != nil {
			return o.fail(ctx, t, models.ErrorKindTimeout, "token resolution timed out", log)
		}
		kind := models.ErrorKindCredential
		var cerr *token.CredentialError
		if errors.As(err, &cerr) {
			kind = cerr.Kind
		}
		return o.fail(ctx, t, kind, err.Error(), log)
	}

	if t.attempt.ID != 0 {
		marked, err := o.attempts.MarkPublishing(context.WithoutCancel(ctx), t.attempt.ID)
		if err != nil {
			log.Warn("failed to mark attempt publishing", zap.Error(err))
		} else if !marked {
			log.Warn("attempt left pending state before publishing, skipping")
			return models.OutcomeFromAttempt(t.attempt)
		}
	}
	t.attempt.Status = models.AttemptStatusPublishing

	req := &publisher.Request{
		AccessToken: cred.AccessToken,
		AccountID:   cred.Account.AccountID,
		Content:     post.Content,
		Title:       post.Title,
		Format:      post.Format,
		Media:       post.Media,
	}

	type published struct {
		res *publisher.Result
		err error
	}
	done := make(chan published, 1)
	go func() {
		res, err := pub.Publish(ctx, req)
		done <- published{res, err}
	}()

	// A publisher that ignores cancellation is left behind; its late result
	// lands in the buffered channel and is dropped.
	select {
	case <-ctx.Done():
		return o.fail(ctx, t, models.ErrorKindTimeout, fmt.Sprintf("no response within %s", o.opts.TargetTimeout), log)
	case p := <-done:
		if p.err != nil {
			if errors.Is(p.err, context.DeadlineExceeded) {
				return o.fail(ctx, t, models.ErrorKindTimeout, fmt.Sprintf("no response within %s", o.opts.TargetTimeout), log)
			}
			msg := p.err.Error()
			var perr *publisher.Error
			if errors.As(p.err, &perr) && perr.Message != "" {
				msg = perr.Message
			}
			return o.fail(ctx, t, publisher.KindOf(p.err), msg, log)
		}
		return o.succeed(ctx, t, p.res, log)
	}
}

func (o *orchestrator) succeed(ctx context.Context, t *target, res *publisher.Result, log *zap.Logger) models.TargetOutcome {
	t.attempt.Status = models.AttemptStatusSucceeded
	t.attempt.RemotePostID = res.RemotePostID
	t.attempt.Permalink = res.Permalink
	t.attempt.Retries = res.Retries
	o.finish(ctx, t, log)
	log.Info("target published", zap.String("remote_post_id", res.RemotePostID), zap.Int("retries", res.Retries))
	return models.OutcomeFromAttempt(t.attempt)
}

func (o *orchestrator) fail(ctx context.Context, t *target, kind models.ErrorKind, msg string, log *zap.Logger) models.TargetOutcome {
	t.attempt.Status = models.AttemptStatusFailed
	t.attempt.ErrorKind = kind
	t.attempt.ErrorMessage = msg
	o.finish(ctx, t, log)
	log.Warn("target failed", zap.String("error_kind", string(kind)), zap.String("error", msg))
	return models.OutcomeFromAttempt(t.attempt)
}

// finish persists the outcome on a context detached from the target
// deadline, so a timeout is still recorded.
func (o *orchestrator) finish(ctx context.Context, t *target, log *zap.Logger) {
	if t.attempt.ID == 0 {
		return
	}
	ok, err := o.attempts.Finish(context.WithoutCancel(ctx), t.attempt)
	switch {
	case err != nil:
		log.Error("failed to persist attempt outcome", zap.Int64("attempt_id", t.attempt.ID), zap.Error(err))
	case !ok:
		log.Warn("attempt already terminal", zap.Int64("attempt_id", t.attempt.ID))
	}
}

func newCycleID(postID int64, at time.Time) string {
	id, err := gonanoid.New()
	if err != nil {
		return fmt.Sprintf("%d-%d", postID, at.UnixNano())
	}
	return id
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

func violations(vs []validation.Violation) string {
	msgs := make([]string, 0, len(vs))
	for _, v := range vs {
		msgs = append(msgs, v.Message)
	}
	return strings.Join(msgs, "; ")
}
