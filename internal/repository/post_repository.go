package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/maheshrc27/publish-engine/internal/models"
	"github.com/maheshrc27/publish-engine/pkg/logging"
)

type PostRepository interface {
	GetByID(ctx context.Context, id int64) (*models.Post, error)
	Create(ctx context.Context, tx *sql.Tx, post *models.Post) (int64, error)
	ListDue(ctx context.Context, now time.Time, limit int) ([]*models.Post, error)
	Claim(ctx context.Context, id int64, from []models.PostStatus, now time.Time) (bool, error)
	// ReclaimStale takes over a post left in publishing since before
	// staleBefore, typically by a process that died mid-cycle.
	ReclaimStale(ctx context.Context, id int64, staleBefore, now time.Time) (bool, error)
	Complete(ctx context.Context, id int64, status models.PostStatus, cycleID string, publishedAt time.Time) error
}

type postRepository struct {
	db  *sql.DB
	log *zap.Logger
}

func NewPostRepository(db *sql.DB) PostRepository {
	return &postRepository{db: db, log: logging.WithComponent("post_repository")}
}

const postColumns = `id, workspace_id, content, title, format, media, target_ids, scheduled_time,
	status, COALESCE(cycle_id, ''), published_at, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPost(row rowScanner) (*models.Post, error) {
	var post models.Post
	var media []byte
	err := row.Scan(&post.ID, &post.WorkspaceID, &post.Content, &post.Title, &post.Format, &media,
		pq.Array(&post.TargetIDs), &post.ScheduledTime, &post.Status, &post.CycleID, &post.PublishedAt,
		&post.CreatedAt, &post.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if len(media) > 0 {
		if err := json.Unmarshal(media, &post.Media); err != nil {
			return nil, fmt.Errorf("decode media of post %d: %w", post.ID, err)
		}
	}
	return &post, nil
}

func (r *postRepository) Create(ctx context.Context, tx *sql.Tx, post *models.Post) (int64, error) {
	query := `
		INSERT INTO posts (workspace_id, content, title, format, media, target_ids, scheduled_time, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`

	media, err := json.Marshal(post.Media)
	if err != nil {
		return 0, fmt.Errorf("encode media: %w", err)
	}
	args := []any{post.WorkspaceID, post.Content, post.Title, post.Format, media,
		pq.Array(post.TargetIDs), post.ScheduledTime, post.Status}

	var id int64
	if tx != nil {
		err = tx.QueryRowContext(ctx, query, args...).Scan(&id)
	} else {
		err = r.db.QueryRowContext(ctx, query, args...).Scan(&id)
	}
	if err != nil {
		r.log.Error("insert post", zap.Error(err))
		return 0, err
	}

	return id, nil
}

func (r *postRepository) GetByID(ctx context.Context, id int64) (*models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts WHERE id = $1`

	post, err := scanPost(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		r.log.Error("get post", zap.Int64("post_id", id), zap.Error(err))
		return nil, err
	}
	return post, nil
}

// ListDue returns scheduled posts whose time has come, oldest first.
func (r *postRepository) ListDue(ctx context.Context, now time.Time, limit int) ([]*models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts
		WHERE status = $1 AND (scheduled_time IS NULL OR scheduled_time <= $2)
		ORDER BY scheduled_time ASC NULLS FIRST
		LIMIT $3`

	rows, err := r.db.QueryContext(ctx, query, models.PostStatusScheduled, now, limit)
	if err != nil {
		r.log.Error("list due posts", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	var posts []*models.Post
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			r.log.Error("scan due post", zap.Error(err))
			return nil, err
		}
		posts = append(posts, post)
	}
	if err := rows.Err(); err != nil {
		r.log.Error("iterate due posts", zap.Error(err))
		return nil, err
	}
	return posts, nil
}

// Claim moves a post into publishing only if it is still in one of the from
// states. Exactly one concurrent caller gets true.
func (r *postRepository) Claim(ctx context.Context, id int64, from []models.PostStatus, now time.Time) (bool, error) {
	query := `
		UPDATE posts
		SET status = $1,
			updated_at = $2
		WHERE id = $3 AND status = ANY($4)
	`

	states := make([]string, len(from))
	for i, s := range from {
		states[i] = string(s)
	}

	result, err := r.db.ExecContext(ctx, query, models.PostStatusPublishing, now, id, pq.Array(states))
	if err != nil {
		r.log.Error("claim post", zap.Int64("post_id", id), zap.Error(err))
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

func (r *postRepository) ReclaimStale(ctx context.Context, id int64, staleBefore, now time.Time) (bool, error) {
	query := `
		UPDATE posts
		SET updated_at = $1
		WHERE id = $2 AND status = $3 AND updated_at < $4
	`

	result, err := r.db.ExecContext(ctx, query, now, id, models.PostStatusPublishing, staleBefore)
	if err != nil {
		r.log.Error("reclaim stale post", zap.Int64("post_id", id), zap.Error(err))
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

func (r *postRepository) Complete(ctx context.Context, id int64, status models.PostStatus, cycleID string, publishedAt time.Time) error {
	query := `
		UPDATE posts
		SET status = $1,
			cycle_id = $2,
			published_at = $3,
			updated_at = $3
		WHERE id = $4
	`
	_, err := r.db.ExecContext(ctx, query, status, cycleID, publishedAt, id)
	if err != nil {
		r.log.Error("complete post", zap.Int64("post_id", id), zap.Error(err))
		return err
	}
	return nil
}
