package repository

import (
	"context"
	"database/sql"
	"time"

	"go.uber.org/zap"

	"github.com/maheshrc27/publish-engine/internal/models"
	"github.com/maheshrc27/publish-engine/pkg/logging"
)

// PublishAttemptRepository records per-target outcomes. Rows in a terminal
// status are never modified again.
type PublishAttemptRepository interface {
	CreatePending(ctx context.Context, attempt *models.PublishAttempt) (int64, error)
	MarkPublishing(ctx context.Context, id int64) (bool, error)
	Finish(ctx context.Context, attempt *models.PublishAttempt) (bool, error)
	ListByCycle(ctx context.Context, postID int64, cycleID string) ([]*models.PublishAttempt, error)
}

type publishAttemptRepository struct {
	db  *sql.DB
	log *zap.Logger
}

func NewPublishAttemptRepository(db *sql.DB) PublishAttemptRepository {
	return &publishAttemptRepository{db: db, log: logging.WithComponent("publish_attempt_repository")}
}

func (r *publishAttemptRepository) CreatePending(ctx context.Context, a *models.PublishAttempt) (int64, error) {
	query := `
		INSERT INTO publish_attempts (post_id, cycle_id, account_id, platform, status, attempted_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		RETURNING id
	`

	if a.AttemptedAt.IsZero() {
		a.AttemptedAt = time.Now()
	}
	var id int64
	err := r.db.QueryRowContext(ctx, query, a.PostID, a.CycleID, a.AccountID, a.Platform,
		models.AttemptStatusPending, a.AttemptedAt).Scan(&id)
	if err != nil {
		r.log.Error("insert attempt", zap.Int64("post_id", a.PostID), zap.Error(err))
		return 0, err
	}
	a.ID = id
	a.Status = models.AttemptStatusPending
	return id, nil
}

func (r *publishAttemptRepository) MarkPublishing(ctx context.Context, id int64) (bool, error) {
	query := `UPDATE publish_attempts SET status = $1, updated_at = $2 WHERE id = $3 AND status = $4`
	result, err := r.db.ExecContext(ctx, query, models.AttemptStatusPublishing, time.Now(), id, models.AttemptStatusPending)
	if err != nil {
		r.log.Error("mark attempt publishing", zap.Int64("attempt_id", id), zap.Error(err))
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

// Finish writes the terminal outcome. It reports false when the row was
// already terminal.
func (r *publishAttemptRepository) Finish(ctx context.Context, a *models.PublishAttempt) (bool, error) {
	query := `
		UPDATE publish_attempts
		SET status = $1,
			remote_post_id = $2,
			permalink = $3,
			error_kind = $4,
			error_message = $5,
			retries = $6,
			updated_at = $7
		WHERE id = $8 AND status IN ('pending', 'publishing')
	`
	result, err := r.db.ExecContext(ctx, query, a.Status, a.RemotePostID, a.Permalink, a.ErrorKind,
		a.ErrorMessage, a.Retries, time.Now(), a.ID)
	if err != nil {
		r.log.Error("finish attempt", zap.Int64("attempt_id", a.ID), zap.Error(err))
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

func (r *publishAttemptRepository) ListByCycle(ctx context.Context, postID int64, cycleID string) ([]*models.PublishAttempt, error) {
	query := `
		SELECT id, post_id, cycle_id, account_id, platform, status, COALESCE(remote_post_id, ''),
			COALESCE(permalink, ''), COALESCE(error_kind, ''), COALESCE(error_message, ''), retries,
			attempted_at, updated_at
		FROM publish_attempts
		WHERE post_id = $1 AND cycle_id = $2
		ORDER BY id ASC
	`
	rows, err := r.db.QueryContext(ctx, query, postID, cycleID)
	if err != nil {
		r.log.Error("list attempts", zap.Int64("post_id", postID), zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	var attempts []*models.PublishAttempt
	for rows.Next() {
		var a models.PublishAttempt
		err := rows.Scan(&a.ID, &a.PostID, &a.CycleID, &a.AccountID, &a.Platform, &a.Status, &a.RemotePostID,
			&a.Permalink, &a.ErrorKind, &a.ErrorMessage, &a.Retries, &a.AttemptedAt, &a.UpdatedAt)
		if err != nil {
			r.log.Error("scan attempt", zap.Error(err))
			return nil, err
		}
		attempts = append(attempts, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return attempts, nil
}
