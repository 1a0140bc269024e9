package token

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/maheshrc27/publish-engine/internal/models"
	"github.com/maheshrc27/publish-engine/internal/repository"
	"github.com/maheshrc27/publish-engine/pkg/logging"
)

const (
	DefaultLookahead = 7 * 24 * time.Hour

	// DefaultRenewTimeout bounds one shared renewal, independent of the
	// callers waiting on it.
	DefaultRenewTimeout = 30 * time.Second
)

// Credential is a publish-ready token for one account.
type Credential struct {
	Account     *models.SocialAccount
	AccessToken string
}

type Cipher interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(encoded string) (string, error)
}

type Manager interface {
	// Resolve returns a usable token for the account, renewing it first when
	// it expires within the lookahead window. Errors are *CredentialError.
	Resolve(ctx context.Context, accountID int64) (*Credential, error)
}

type manager struct {
	accounts   repository.SocialAccountRepository
	cipher     Cipher
	strategies map[models.Platform]Strategy
	notifier   Notifier
	lookahead  time.Duration
	renewAfter time.Duration
	group      singleflight.Group
	now        func() time.Time
	log        *zap.Logger
}

func NewManager(
	accounts repository.SocialAccountRepository,
	cipher Cipher,
	strategies map[models.Platform]Strategy,
	notifier Notifier,
	lookahead time.Duration,
) Manager {
	if notifier == nil {
		notifier = NoopNotifier{}
	}
	if lookahead <= 0 {
		lookahead = DefaultLookahead
	}
	return &manager{
		accounts:   accounts,
		cipher:     cipher,
		strategies: strategies,
		notifier:   notifier,
		lookahead:  lookahead,
		renewAfter: DefaultRenewTimeout,
		now:        time.Now,
		log:        logging.WithComponent("token_manager"),
	}
}

func (m *manager) Resolve(ctx context.Context, accountID int64) (*Credential, error) {
	account, err := m.accounts.GetByID(ctx, accountID)
	if err != nil {
		return nil, credentialErr(accountID, fmt.Errorf("load account: %w", err))
	}
	if account == nil {
		return nil, credentialErr(accountID, ErrAccountNotFound)
	}
	if !account.Active {
		return nil, reauthErr(accountID, ErrAccountInactive)
	}

	accessToken, err := m.cipher.Decrypt(account.AccessToken)
	if err != nil {
		return nil, credentialErr(accountID, fmt.Errorf("decrypt access token: %w", err))
	}

	if !m.needsRenewal(account) {
		return &Credential{Account: account, AccessToken: accessToken}, nil
	}

	// Concurrent publishes to one account share a single renewal. It runs
	// detached from any one caller; each caller waits on its own context.
	ch := m.group.DoChan(strconv.FormatInt(accountID, 10), func() (interface{}, error) {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.renewAfter)
		defer cancel()
		return m.renew(rctx, account, accessToken)
	})
	select {
	case <-ctx.Done():
		return nil, credentialErr(accountID, fmt.Errorf("wait for token renewal: %w", ctx.Err()))
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Credential), nil
	}
}

func (m *manager) needsRenewal(account *models.SocialAccount) bool {
	if account.TokenExpiresAt == nil {
		return false
	}
	return account.TokenExpiresAt.Sub(m.now()) <= m.lookahead
}

func (m *manager) renew(ctx context.Context, account *models.SocialAccount, accessToken string) (*Credential, error) {
	log := m.log.With(zap.Int64("account_id", account.ID), zap.String("platform", string(account.Platform)))

	strategy, ok := m.strategies[account.Platform]
	if !ok {
		return nil, credentialErr(account.ID, fmt.Errorf("%w: %s", ErrNoStrategy, account.Platform))
	}

	expired := !account.TokenExpiresAt.After(m.now())
	current := &Credential{Account: account, AccessToken: accessToken}

	var refreshToken string
	switch strategy.Mode() {
	case ModeNone:
		if !expired {
			return current, nil
		}
		return nil, m.requireReauth(ctx, account, ErrTokenExpired, true)

	case ModeRefreshToken:
		rt, err := m.cipher.Decrypt(account.RefreshToken)
		if err != nil {
			return nil, credentialErr(account.ID, fmt.Errorf("decrypt refresh token: %w", err))
		}
		if rt == "" {
			if !expired {
				return current, nil
			}
			return nil, m.requireReauth(ctx, account, fmt.Errorf("%w and no refresh token stored", ErrTokenExpired), true)
		}
		refreshToken = rt
	}

	renewed, err := strategy.Renew(ctx, account, accessToken, refreshToken)
	if err != nil {
		if !expired {
			log.Warn("token renewal failed, using current token", zap.Error(err))
			return current, nil
		}
		if errors.Is(err, ErrInvalidGrant) {
			return nil, m.requireReauth(ctx, account, err, false)
		}
		return nil, credentialErr(account.ID, fmt.Errorf("renew token: %w", err))
	}

	return m.store(ctx, account, renewed, log)
}

// store persists the renewed pair unless another writer already replaced the
// token, in which case the stored winner is used instead.
func (m *manager) store(ctx context.Context, account *models.SocialAccount, renewed *Renewed, log *zap.Logger) (*Credential, error) {
	sealedAccess, err := m.cipher.Encrypt(renewed.AccessToken)
	if err != nil {
		return nil, credentialErr(account.ID, fmt.Errorf("encrypt access token: %w", err))
	}
	sealedRefresh, err := m.cipher.Encrypt(renewed.RefreshToken)
	if err != nil {
		return nil, credentialErr(account.ID, fmt.Errorf("encrypt refresh token: %w", err))
	}

	update := &models.SocialAccount{
		AccessToken:    sealedAccess,
		RefreshToken:   sealedRefresh,
		TokenExpiresAt: renewed.ExpiresAt,
	}
	updated, err := m.accounts.UpdateToken(ctx, account.ID, account.AccessToken, update)
	if err != nil {
		log.Error("failed to persist renewed token", zap.Error(err))
		return m.renewedCredential(account, update, renewed.AccessToken), nil
	}
	if updated {
		log.Info("token renewed")
		return m.renewedCredential(account, update, renewed.AccessToken), nil
	}

	log.Info("token was renewed concurrently, reloading")
	winner, err := m.accounts.GetByID(ctx, account.ID)
	if err != nil || winner == nil {
		return m.renewedCredential(account, update, renewed.AccessToken), nil
	}
	plain, err := m.cipher.Decrypt(winner.AccessToken)
	if err != nil {
		return nil, credentialErr(account.ID, fmt.Errorf("decrypt access token: %w", err))
	}
	return &Credential{Account: winner, AccessToken: plain}, nil
}

func (m *manager) renewedCredential(account *models.SocialAccount, update *models.SocialAccount, plain string) *Credential {
	next := *account
	next.AccessToken = update.AccessToken
	if update.RefreshToken != "" {
		next.RefreshToken = update.RefreshToken
	}
	next.TokenExpiresAt = update.TokenExpiresAt
	return &Credential{Account: &next, AccessToken: plain}
}

func (m *manager) requireReauth(ctx context.Context, account *models.SocialAccount, cause error, deactivate bool) error {
	if deactivate {
		if err := m.accounts.Deactivate(ctx, account.ID); err != nil {
			m.log.Error("failed to deactivate account", zap.Int64("account_id", account.ID), zap.Error(err))
		}
	}
	m.notifier.ReauthRequired(ctx, account, cause.Error())
	return reauthErr(account.ID, cause)
}
