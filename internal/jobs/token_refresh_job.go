package job

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/maheshrc27/publish-engine/internal/repository"
	"github.com/maheshrc27/publish-engine/internal/token"
	"github.com/maheshrc27/publish-engine/pkg/logging"
)

const defaultRefreshConcurrency = 10

// TokenRefreshJob renews tokens ahead of the publishes that would otherwise
// refresh them inline.
type TokenRefreshJob struct {
	sr          repository.SocialAccountRepository
	tokens      token.Manager
	lookahead   time.Duration
	concurrency int
	timeout     time.Duration
	now         func() time.Time
	log         *zap.Logger
}

func NewTokenRefreshJob(sr repository.SocialAccountRepository, tokens token.Manager, lookahead time.Duration, concurrency int) *TokenRefreshJob {
	if lookahead <= 0 {
		lookahead = token.DefaultLookahead
	}
	if concurrency <= 0 {
		concurrency = defaultRefreshConcurrency
	}
	return &TokenRefreshJob{
		sr:          sr,
		tokens:      tokens,
		lookahead:   lookahead,
		concurrency: concurrency,
		timeout:     5 * time.Minute,
		now:         time.Now,
		log:         logging.WithComponent("token_refresh_job"),
	}
}

// RefreshTokens is the cron entry point.
func (j *TokenRefreshJob) RefreshTokens() {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()
	j.Run(ctx)
}

// Run resolves every active account expiring within the lookahead and
// returns how many resolved cleanly.
func (j *TokenRefreshJob) Run(ctx context.Context) (refreshed, failed int) {
	accounts, err := j.sr.ListExpiring(ctx, j.now().Add(j.lookahead))
	if err != nil {
		j.log.Error("failed to list expiring accounts", zap.Error(err))
		return 0, 0
	}

	results := make([]error, len(accounts))
	g := new(errgroup.Group)
	g.SetLimit(j.concurrency)
	for i, acc := range accounts {
		i, acc := i, acc
		g.Go(func() error {
			_, results[i] = j.tokens.Resolve(ctx, acc.ID)
			return nil
		})
	}
	_ = g.Wait()

	for i, err := range results {
		if err != nil {
			failed++
			j.log.Warn("token refresh failed",
				zap.Int64("account_id", accounts[i].ID),
				zap.String("platform", string(accounts[i].Platform)),
				zap.Error(err),
			)
			continue
		}
		refreshed++
	}

	if len(accounts) > 0 {
		j.log.Info("token refresh finished", zap.Int("refreshed", refreshed), zap.Int("failed", failed))
	}
	return refreshed, failed
}
