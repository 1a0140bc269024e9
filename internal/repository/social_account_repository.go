package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/maheshrc27/publish-engine/internal/models"
	"github.com/maheshrc27/publish-engine/pkg/logging"
)

// SocialAccountRepository is the credential store. Tokens pass through it
// encrypted; decryption belongs to the token manager.
type SocialAccountRepository interface {
	GetByID(ctx context.Context, id int64) (*models.SocialAccount, error)
	ListByIDs(ctx context.Context, ids []int64) ([]*models.SocialAccount, error)
	ListExpiring(ctx context.Context, before time.Time) ([]*models.SocialAccount, error)
	UpdateToken(ctx context.Context, id int64, oldAccessToken string, sa *models.SocialAccount) (bool, error)
	Deactivate(ctx context.Context, id int64) error
}

type socialAccountRepository struct {
	db  *sql.DB
	log *zap.Logger
}

func NewSocialAccountRepository(db *sql.DB) SocialAccountRepository {
	return &socialAccountRepository{db: db, log: logging.WithComponent("social_account_repository")}
}

const socialAccountColumns = `id, workspace_id, platform, account_id, account_name, access_token,
	COALESCE(refresh_token, ''), token_expires_at, active, created_at, updated_at`

func scanSocialAccount(row rowScanner) (*models.SocialAccount, error) {
	var sa models.SocialAccount
	err := row.Scan(&sa.ID, &sa.WorkspaceID, &sa.Platform, &sa.AccountID, &sa.AccountName,
		&sa.AccessToken, &sa.RefreshToken, &sa.TokenExpiresAt, &sa.Active, &sa.CreatedAt, &sa.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &sa, nil
}

func (r *socialAccountRepository) GetByID(ctx context.Context, id int64) (*models.SocialAccount, error) {
	query := `SELECT ` + socialAccountColumns + ` FROM social_accounts WHERE id = $1`

	sa, err := scanSocialAccount(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		r.log.Error("get social account", zap.Int64("account_id", id), zap.Error(err))
		return nil, err
	}
	return sa, nil
}

// ListByIDs returns the accounts that exist; missing ids are simply absent.
func (r *socialAccountRepository) ListByIDs(ctx context.Context, ids []int64) ([]*models.SocialAccount, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := `SELECT ` + socialAccountColumns + ` FROM social_accounts WHERE id = ANY($1)`
	return r.list(ctx, query, pq.Array(ids))
}

// ListExpiring returns active accounts whose token expires at or before the
// given instant, already expired ones included.
func (r *socialAccountRepository) ListExpiring(ctx context.Context, before time.Time) ([]*models.SocialAccount, error) {
	query := `SELECT ` + socialAccountColumns + ` FROM social_accounts
		WHERE active AND token_expires_at IS NOT NULL AND token_expires_at <= $1
		ORDER BY token_expires_at ASC`
	return r.list(ctx, query, before)
}

func (r *socialAccountRepository) list(ctx context.Context, query string, args ...any) ([]*models.SocialAccount, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		r.log.Error("list social accounts", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	var accounts []*models.SocialAccount
	for rows.Next() {
		sa, err := scanSocialAccount(rows)
		if err != nil {
			r.log.Error("scan social account", zap.Error(err))
			return nil, err
		}
		accounts = append(accounts, sa)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return accounts, nil
}

// UpdateToken swaps in a new token pair only while the stored access token is
// still oldAccessToken. It reports false when another writer got there first.
// An empty refresh token keeps the stored one.
func (r *socialAccountRepository) UpdateToken(ctx context.Context, id int64, oldAccessToken string, sa *models.SocialAccount) (bool, error) {
	query := `
		UPDATE social_accounts
		SET
			access_token = $3,
			refresh_token = COALESCE(NULLIF($4, ''), refresh_token),
			token_expires_at = $5,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = $1 AND access_token = $2
	`
	result, err := r.db.ExecContext(ctx, query, id, oldAccessToken, sa.AccessToken, sa.RefreshToken, sa.TokenExpiresAt)
	if err != nil {
		r.log.Error("update token", zap.Int64("account_id", id), zap.Error(err))
		return false, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

func (r *socialAccountRepository) Deactivate(ctx context.Context, id int64) error {
	query := `UPDATE social_accounts SET active = FALSE, updated_at = CURRENT_TIMESTAMP WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		r.log.Error("deactivate social account", zap.Int64("account_id", id), zap.Error(err))
		return err
	}
	return nil
}
